package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krishnaadithya/edqa.ai/internal/quiz"
)

type memoryStore struct {
	mu   sync.Mutex
	jobs map[string]*ProcessJob
}

func newMemoryStore() *memoryStore {
	return &memoryStore{jobs: make(map[string]*ProcessJob)}
}

func (m *memoryStore) LoadJobs(_ context.Context) ([]*ProcessJob, error) {
	return m.snapshot(), nil
}

func (m *memoryStore) snapshot() []*ProcessJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	ret := make([]*ProcessJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		ret = append(ret, cloneJob(j))
	}
	return ret
}

func (m *memoryStore) UpsertJob(_ context.Context, job *ProcessJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = cloneJob(job)
	return nil
}

func (m *memoryStore) DeleteJob(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, jobID)
	return nil
}

func (m *memoryStore) DeleteJobData(_ context.Context, _ string) error {
	return nil
}

func TestQueue_RecoversPendingAndRunningJobsFromStore(t *testing.T) {
	store := newMemoryStore()
	now := time.Now()
	store.jobs["job-1"] = &ProcessJob{
		ID:        "job-1",
		Source:    "cron",
		DedupeKey: "file|/captions/a.srt",
		Status:    StatusPending,
		Payload: JobPayload{
			CaptionFile: "/captions/a.srt",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	store.jobs["job-2"] = &ProcessJob{
		ID:        "job-2",
		Source:    "cron",
		DedupeKey: "file|/captions/b.srt",
		Status:    StatusRunning,
		Payload: JobPayload{
			CaptionFile: "/captions/b.srt",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	q := NewQueue(1, store)

	jobs := q.List()
	require.Len(t, jobs, 2)
	byID := map[string]*ProcessJob{}
	for _, j := range jobs {
		byID[j.ID] = j
	}
	require.Contains(t, byID, "job-2")
	assert.Equal(t, StatusPending, byID["job-2"].Status)

	q.Start(func(_ context.Context, _ *ProcessJob) (*quiz.Result, error) { return nil, nil })
	defer q.Stop()

	require.Eventually(t, func() bool {
		got, ok := q.Get("job-1")
		return ok && got.Status == StatusSuccess
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		got, ok := q.Get("job-2")
		return ok && got.Status == StatusSuccess
	}, time.Second, 10*time.Millisecond)
}

func TestQueue_HydrateRestoresIDCounterAndDedupe(t *testing.T) {
	store := newMemoryStore()
	now := time.Now()
	store.jobs["job-7"] = &ProcessJob{
		ID: "job-7", DedupeKey: "file|/captions/a.srt", Status: StatusPending,
		CreatedAt: now, UpdatedAt: now,
	}

	q := NewQueue(1, store)

	dup, created := q.Enqueue(EnqueueRequest{DedupeKey: "file|/captions/a.srt"})
	assert.False(t, created)
	assert.Equal(t, "job-7", dup.ID)

	fresh, created := q.Enqueue(EnqueueRequest{DedupeKey: "file|/captions/b.srt"})
	assert.True(t, created)
	assert.Equal(t, "job-8", fresh.ID)
}
