package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/hakim/cybershield/internal/models"
	"go.etcd.io/bbolt"
)

const (
	bucketJobs           = "jobs"
	bucketResults        = "results"
	bucketRequesterIndex = "requester_index"
)

// BoltStore persists jobs and results in a bbolt database. bbolt allows a
// single writer at a time, so every read-modify-write runs inside one
// db.Update and is atomic with respect to all other mutations.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens a bbolt database at the given path and initializes required buckets
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketJobs, bucketResults, bucketRequesterIndex} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the bbolt database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) CreateJob(_ context.Context, job models.Job) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		jobs := tx.Bucket([]byte(bucketJobs))
		if jobs.Get([]byte(job.ID)) != nil {
			return fmt.Errorf("job %s already exists", job.ID)
		}
		if err := putJSON(jobs, job.ID, job); err != nil {
			return err
		}

		// requester -> []job_id
		index := tx.Bucket([]byte(bucketRequesterIndex))
		var ids []string
		if err := getJSON(index, job.Requester, &ids); err != nil && err != errMissing {
			return err
		}
		if !slices.Contains(ids, job.ID) {
			ids = append(ids, job.ID)
		}
		return putJSON(index, job.Requester, ids)
	})
}

func (s *BoltStore) GetJob(_ context.Context, id string) (models.Job, error) {
	var job models.Job
	err := s.db.View(func(tx *bbolt.Tx) error {
		return loadJob(tx, id, &job)
	})
	return job, err
}

func (s *BoltStore) ListJobs(_ context.Context, requester string) ([]models.Job, error) {
	jobs := []models.Job{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		var ids []string
		if err := getJSON(tx.Bucket([]byte(bucketRequesterIndex)), requester, &ids); err != nil {
			if err == errMissing {
				return nil
			}
			return err
		}
		for _, id := range ids {
			var job models.Job
			if err := loadJob(tx, id, &job); err != nil {
				return err
			}
			jobs = append(jobs, job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(jobs)
	return jobs, nil
}

func (s *BoltStore) ListRecent(_ context.Context, state models.JobState, limit int) ([]models.Job, error) {
	jobs := []models.Job{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketJobs)).ForEach(func(_, v []byte) error {
			var job models.Job
			if err := json.Unmarshal(v, &job); err != nil {
				return err
			}
			if job.State == state {
				jobs = append(jobs, job)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return newestInState(jobs, state, limit), nil
}

func (s *BoltStore) SwapJob(_ context.Context, id string, expected []models.JobState, update func(*models.Job)) (models.Job, error) {
	var job models.Job
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := loadJob(tx, id, &job); err != nil {
			return err
		}
		if !stateIn(job.State, expected) {
			return fmt.Errorf("job %s is %s: %w", id, job.State, models.ErrStateConflict)
		}
		update(&job)
		return putJSON(tx.Bucket([]byte(bucketJobs)), id, job)
	})
	return job, err
}

func (s *BoltStore) CompleteJob(_ context.Context, id string, result models.Result, at time.Time) (models.Job, error) {
	var job models.Job
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := loadJob(tx, id, &job); err != nil {
			return err
		}
		if !completable(job.State) {
			return fmt.Errorf("job %s is %s: %w", id, job.State, models.ErrStateConflict)
		}
		if err := putJSON(tx.Bucket([]byte(bucketResults)), id, result); err != nil {
			return err
		}
		job.MarkTerminal(models.StateCompleted, at, "")
		return putJSON(tx.Bucket([]byte(bucketJobs)), id, job)
	})
	return job, err
}

func (s *BoltStore) GetResult(_ context.Context, id string) (models.Result, error) {
	var result models.Result
	err := s.db.View(func(tx *bbolt.Tx) error {
		return loadResult(tx, id, &result)
	})
	return result, err
}

func (s *BoltStore) MergeEnrichment(_ context.Context, id string, e models.Enrichment) (models.Result, error) {
	var result models.Result
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := loadResult(tx, id, &result); err != nil {
			return err
		}
		result.Apply(e)
		return putJSON(tx.Bucket([]byte(bucketResults)), id, result)
	})
	return result, err
}

// errMissing marks an absent key inside a transaction
var errMissing = errors.New("key missing")

func loadJob(tx *bbolt.Tx, id string, job *models.Job) error {
	err := getJSON(tx.Bucket([]byte(bucketJobs)), id, job)
	if err == errMissing {
		return fmt.Errorf("job %s: %w", id, models.ErrNotFound)
	}
	return err
}

func loadResult(tx *bbolt.Tx, id string, result *models.Result) error {
	err := getJSON(tx.Bucket([]byte(bucketResults)), id, result)
	if err == errMissing {
		return fmt.Errorf("result %s: %w", id, models.ErrNotFound)
	}
	return err
}

func getJSON(b *bbolt.Bucket, key string, v any) error {
	data := b.Get([]byte(key))
	if data == nil {
		return errMissing
	}
	return json.Unmarshal(data, v)
}

func putJSON(b *bbolt.Bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}
