package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hakim/cybershield/internal/models"
)

// memoryEntry holds one job and its result under the job's own lock.
type memoryEntry struct {
	mu     sync.Mutex
	job    models.Job
	result *models.Result
}

// MemoryStore keeps jobs in process memory. The map lock only guards the
// index; mutations of a job happen under that job's entry lock, so work on
// different jobs never serializes.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
}

// NewMemoryStore returns an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry)}
}

func (s *MemoryStore) entry(id string) (*memoryEntry, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, models.ErrNotFound)
	}
	return e, nil
}

func (s *MemoryStore) CreateJob(_ context.Context, job models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.entries[job.ID] = &memoryEntry{job: job}
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, id string) (models.Job, error) {
	e, err := s.entry(id)
	if err != nil {
		return models.Job{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job, nil
}

func (s *MemoryStore) ListJobs(_ context.Context, requester string) ([]models.Job, error) {
	s.mu.RLock()
	entries := make([]*memoryEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	jobs := []models.Job{}
	for _, e := range entries {
		e.mu.Lock()
		if e.job.Requester == requester {
			jobs = append(jobs, e.job)
		}
		e.mu.Unlock()
	}
	sortNewestFirst(jobs)
	return jobs, nil
}

func (s *MemoryStore) ListRecent(_ context.Context, state models.JobState, limit int) ([]models.Job, error) {
	s.mu.RLock()
	entries := make([]*memoryEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	jobs := make([]models.Job, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		jobs = append(jobs, e.job)
		e.mu.Unlock()
	}
	return newestInState(jobs, state, limit), nil
}

func (s *MemoryStore) SwapJob(_ context.Context, id string, expected []models.JobState, update func(*models.Job)) (models.Job, error) {
	e, err := s.entry(id)
	if err != nil {
		return models.Job{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if !stateIn(e.job.State, expected) {
		return e.job, fmt.Errorf("job %s is %s: %w", id, e.job.State, models.ErrStateConflict)
	}
	next := e.job
	update(&next)
	e.job = next
	return next, nil
}

func (s *MemoryStore) CompleteJob(_ context.Context, id string, result models.Result, at time.Time) (models.Job, error) {
	e, err := s.entry(id)
	if err != nil {
		return models.Job{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if !completable(e.job.State) {
		return e.job, fmt.Errorf("job %s is %s: %w", id, e.job.State, models.ErrStateConflict)
	}
	stored := result.Clone()
	e.result = &stored
	e.job.MarkTerminal(models.StateCompleted, at, "")
	return e.job, nil
}

func (s *MemoryStore) GetResult(_ context.Context, id string) (models.Result, error) {
	e, err := s.entry(id)
	if err != nil {
		return models.Result{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.result == nil {
		return models.Result{}, fmt.Errorf("result %s: %w", id, models.ErrNotFound)
	}
	return e.result.Clone(), nil
}

func (s *MemoryStore) MergeEnrichment(_ context.Context, id string, enrichment models.Enrichment) (models.Result, error) {
	e, err := s.entry(id)
	if err != nil {
		return models.Result{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.result == nil {
		return models.Result{}, fmt.Errorf("result %s: %w", id, models.ErrNotFound)
	}
	e.result.Apply(enrichment)
	return e.result.Clone(), nil
}

func (s *MemoryStore) Close() error { return nil }
