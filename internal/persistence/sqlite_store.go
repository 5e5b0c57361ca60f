package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	_ "modernc.org/sqlite"

	"github.com/krishnaadithya/edqa.ai/internal/caption"
	"github.com/krishnaadithya/edqa.ai/internal/jobs"
	"github.com/krishnaadithya/edqa.ai/internal/quiz"
	"github.com/krishnaadithya/edqa.ai/internal/segment"
)

const transcriptDefaultTTL = 24 * time.Hour

//go:embed migrations/*.sql
var migrationFiles embed.FS

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	// Bootstrap schema_migrations table so we can track applied versions.
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

func (s *SQLiteStore) LoadJobs(ctx context.Context) ([]*jobs.ProcessJob, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, source, dedupe_key, payload_json, status, error, result_json, created_at, updated_at
		 FROM jobs
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*jobs.ProcessJob, 0)
	for rows.Next() {
		var item jobs.ProcessJob
		var status, payloadJSON, resultJSON string
		if err := rows.Scan(
			&item.ID,
			&item.Source,
			&item.DedupeKey,
			&payloadJSON,
			&status,
			&item.Error,
			&resultJSON,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payloadJSON), &item.Payload); err != nil {
			return nil, fmt.Errorf("decode payload of job %s: %w", item.ID, err)
		}
		if resultJSON != "" {
			var result quiz.Result
			if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
				return nil, fmt.Errorf("decode result of job %s: %w", item.ID, err)
			}
			item.Result = &result
		}
		item.Status = jobs.Status(status)
		ret = append(ret, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLiteStore) DeleteJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
	return err
}

func (s *SQLiteStore) UpsertJob(ctx context.Context, job *jobs.ProcessJob) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	payloadJSON, err := json.Marshal(job.Payload)
	if err != nil {
		return err
	}
	var resultJSON []byte
	if job.Result != nil {
		if resultJSON, err = json.Marshal(job.Result); err != nil {
			return err
		}
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
			id, source, dedupe_key, payload_json, status, error, result_json, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source=excluded.source,
			dedupe_key=excluded.dedupe_key,
			payload_json=excluded.payload_json,
			status=excluded.status,
			error=excluded.error,
			result_json=excluded.result_json,
			updated_at=excluded.updated_at`,
		job.ID,
		job.Source,
		job.DedupeKey,
		string(payloadJSON),
		string(job.Status),
		job.Error,
		string(resultJSON),
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

type transcriptPayload struct {
	Segments []caption.Segment `json:"segments"`
}

// PutTranscript caches parsed segments. A zero ExpiresAt gets the default TTL.
func (s *SQLiteStore) PutTranscript(ctx context.Context, entry TranscriptCacheEntry) error {
	if strings.TrimSpace(entry.CacheKey) == "" {
		return fmt.Errorf("cache key is required")
	}
	jsonPayload, err := json.Marshal(transcriptPayload{Segments: entry.Transcript.Segments})
	if err != nil {
		return err
	}
	updatedAt := entry.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	expiresAt := entry.ExpiresAt.UTC()
	if expiresAt.IsZero() {
		expiresAt = updatedAt.Add(transcriptDefaultTTL)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO transcripts (
			cache_key, source_path, format, language, segments_json, expires_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			source_path=excluded.source_path,
			format=excluded.format,
			language=excluded.language,
			segments_json=excluded.segments_json,
			expires_at=excluded.expires_at,
			updated_at=excluded.updated_at`,
		entry.CacheKey,
		entry.SourcePath,
		entry.Transcript.Format,
		entry.Transcript.Language.String(),
		string(jsonPayload),
		expiresAt,
		updatedAt,
	)
	return err
}

// GetTranscript returns the cached transcript unless it expired before now.
func (s *SQLiteStore) GetTranscript(ctx context.Context, cacheKey string, now time.Time) (caption.Transcript, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT source_path, format, language, segments_json
		 FROM transcripts
		 WHERE cache_key = ? AND expires_at > ?`,
		cacheKey,
		now.UTC(),
	)
	var sourcePath, format, lang, segmentsJSON string
	if err := row.Scan(&sourcePath, &format, &lang, &segmentsJSON); err != nil {
		if err == sql.ErrNoRows {
			return caption.Transcript{}, false, nil
		}
		return caption.Transcript{}, false, err
	}
	var payload transcriptPayload
	if err := json.Unmarshal([]byte(segmentsJSON), &payload); err != nil {
		return caption.Transcript{}, false, err
	}
	langTag, err := language.Parse(lang)
	if err != nil {
		langTag = language.Und
	}
	segments := payload.Segments
	if segments == nil {
		segments = []caption.Segment{}
	}
	return caption.Transcript{
		Segments: segments,
		Language: langTag,
		Format:   format,
		Path:     sourcePath,
	}, true, nil
}

// DeleteExpiredTranscripts removes transcripts whose expires_at is before now.
func (s *SQLiteStore) DeleteExpiredTranscripts(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transcripts WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SaveKeySegments replaces the key segments stored for a job.
func (s *SQLiteStore) SaveKeySegments(ctx context.Context, jobID string, keys []segment.KeySegment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM key_segments WHERE job_id = ?`, jobID); err != nil {
		return err
	}
	for i, key := range keys {
		if _, err = tx.ExecContext(
			ctx,
			`INSERT INTO key_segments (job_id, position, start_seconds, end_seconds, title, text, analysis)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			jobID, i, key.Start, key.End, key.Title, key.Text, key.Analysis,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadKeySegments(ctx context.Context, jobID string) ([]segment.KeySegment, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT start_seconds, end_seconds, title, text, analysis
		 FROM key_segments
		 WHERE job_id = ?
		 ORDER BY position ASC`,
		jobID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]segment.KeySegment, 0)
	for rows.Next() {
		var key segment.KeySegment
		if err := rows.Scan(&key.Start, &key.End, &key.Title, &key.Text, &key.Analysis); err != nil {
			return nil, err
		}
		ret = append(ret, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// DeleteJobData removes all data associated with a job.
func (s *SQLiteStore) DeleteJobData(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM key_segments WHERE job_id = ?`, jobID)
	return err
}
