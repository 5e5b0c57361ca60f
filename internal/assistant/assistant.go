package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/krishnaadithya/edqa.ai/internal/caption"
	"github.com/krishnaadithya/edqa.ai/internal/quiz"
	"github.com/krishnaadithya/edqa.ai/internal/segment"
	"github.com/krishnaadithya/edqa.ai/pkg/log"
)

// Completer sends a single user prompt to a language model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Assistant turns transcripts into key segments and quiz questions.
type Assistant struct {
	completer   Completer
	matcher     segment.Reconciler
	concurrency int
}

type Option func(*Assistant)

// WithMatcher overrides the default substring matcher.
func WithMatcher(m segment.Reconciler) Option {
	return func(a *Assistant) {
		if m != nil {
			a.matcher = m
		}
	}
}

// WithConcurrency bounds parallel question generation requests.
func WithConcurrency(n int) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

func New(completer Completer, opts ...Option) (*Assistant, error) {
	if completer == nil {
		return nil, errors.New("completer is required")
	}
	a := &Assistant{
		completer:   completer,
		matcher:     segment.NewMatcher(),
		concurrency: 2,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// IdentifyKeySegments asks the model for the important topics of the
// transcript and maps each one back onto a caption segment.
func (a *Assistant) IdentifyKeySegments(ctx context.Context, segments []caption.Segment) ([]segment.KeySegment, error) {
	if len(segments) == 0 {
		return []segment.KeySegment{}, nil
	}

	analysis, err := a.completer.Complete(ctx, buildAnalysisPrompt(caption.JoinText(segments)))
	if err != nil {
		return nil, fmt.Errorf("failed to analyze transcript: %w", err)
	}

	keys := a.matcher.Match(analysis, segments)
	log.Debug("Matched %d of %d analysis blocks", len(keys), strings.Count(analysis, segment.Marker))
	return keys, nil
}

// GenerateQuestions returns the raw model output for one key segment.
func (a *Assistant) GenerateQuestions(ctx context.Context, key segment.KeySegment, grade, n int) (string, error) {
	out, err := a.completer.Complete(ctx, buildQuestionPrompt(key, grade, n))
	if err != nil {
		return "", fmt.Errorf("failed to generate questions for %q: %w", key.Title, err)
	}
	return out, nil
}

// GenerateQuiz generates questions for every key segment. Items keep key
// segment order and carry the segment start as their timestamp.
func (a *Assistant) GenerateQuiz(ctx context.Context, keys []segment.KeySegment, grade, n int) ([]quiz.Item, error) {
	perKey := make([][]quiz.Item, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, key := range keys {
		g.Go(func() error {
			raw, err := a.GenerateQuestions(gctx, key, grade, n)
			if err != nil {
				return err
			}
			perKey[i] = quiz.ParseQuestions(raw, key.Start)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := make([]quiz.Item, 0, len(keys)*max(n, 0))
	for _, group := range perKey {
		items = append(items, group...)
	}
	return items, nil
}
