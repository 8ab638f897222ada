package storage

import (
	"context"
	"slices"
	"time"

	"github.com/hakim/cybershield/internal/models"
)

// Store is the job persistence contract used by the orchestrator.
// Implementations must be safe for concurrent use; every method is atomic
// with respect to the job it touches and values returned are copies.
type Store interface {
	// CreateJob inserts a new job. It fails if the id already exists.
	CreateJob(ctx context.Context, job models.Job) error
	// GetJob returns models.ErrNotFound for unknown ids.
	GetJob(ctx context.Context, id string) (models.Job, error)
	// ListJobs returns the requester's jobs, newest first.
	ListJobs(ctx context.Context, requester string) ([]models.Job, error)
	// ListRecent returns up to limit jobs in state across all requesters,
	// newest first. A limit <= 0 means no limit.
	ListRecent(ctx context.Context, state models.JobState, limit int) ([]models.Job, error)
	// SwapJob applies update only if the job's state is one of expected,
	// otherwise it returns models.ErrStateConflict and the current job.
	SwapJob(ctx context.Context, id string, expected []models.JobState, update func(*models.Job)) (models.Job, error)
	// CompleteJob stores result and moves the job from running to completed
	// in one step. It returns models.ErrStateConflict if the job is no
	// longer running, in which case nothing is stored.
	CompleteJob(ctx context.Context, id string, result models.Result, at time.Time) (models.Job, error)
	// GetResult returns models.ErrNotFound when no result exists.
	GetResult(ctx context.Context, id string) (models.Result, error)
	// MergeEnrichment updates only the enrichment fields of a stored result.
	MergeEnrichment(ctx context.Context, id string, e models.Enrichment) (models.Result, error)
	Close() error
}

// completable reports whether a job in state s may be completed.
func completable(s models.JobState) bool {
	return s == models.StateRunning
}

func stateIn(s models.JobState, expected []models.JobState) bool {
	return slices.Contains(expected, s)
}

// sortNewestFirst orders jobs by CreatedAt descending, breaking ties by id
// so listings are stable.
func sortNewestFirst(jobs []models.Job) {
	slices.SortFunc(jobs, func(a, b models.Job) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
}

// newestInState keeps jobs in state, sorts them newest first and cuts the
// list at limit.
func newestInState(jobs []models.Job, state models.JobState, limit int) []models.Job {
	jobs = slices.DeleteFunc(jobs, func(j models.Job) bool { return j.State != state })
	sortNewestFirst(jobs)
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs
}
