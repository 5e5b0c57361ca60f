package jobs

import "context"

// Store persists job states for queue restart recovery.
type Store interface {
	LoadJobs(ctx context.Context) ([]*ProcessJob, error)
	UpsertJob(ctx context.Context, job *ProcessJob) error
	DeleteJob(ctx context.Context, jobID string) error
	// DeleteJobData removes cached key segments for a job.
	DeleteJobData(ctx context.Context, jobID string) error
}
