package persistence

import (
	"time"

	"github.com/krishnaadithya/edqa.ai/internal/caption"
)

// TranscriptCacheEntry holds parsed segments keyed by caption content or path.
type TranscriptCacheEntry struct {
	CacheKey   string
	SourcePath string
	Transcript caption.Transcript
	ExpiresAt  time.Time
	UpdatedAt  time.Time
}
