package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hakim/cybershield/internal/models"
	"github.com/hakim/cybershield/internal/storage"
)

// seedCompleted stores a completed job for target with the given findings.
func seedCompleted(t *testing.T, s storage.Store, target string, at time.Time, score int, findings ...models.Finding) models.Job {
	t.Helper()
	ctx := context.Background()
	job := models.NewJob(target, "cli", "full", at)
	if err := s.CreateJob(ctx, job); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SwapJob(ctx, job.ID, []models.JobState{models.StateQueued}, func(j *models.Job) { j.MarkRunning(at) }); err != nil {
		t.Fatal(err)
	}
	result := models.Result{JobID: job.ID, Target: target, Findings: findings, Score: score, CreatedAt: at}
	done, err := s.CompleteJob(ctx, job.ID, result, at.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	return done
}

func TestDiffScans(t *testing.T) {
	s := storage.NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

	sqli := models.Finding{Name: "SQL Injection", Location: "https://example.uz/login", Severity: models.SeverityHigh}
	csp := models.Finding{Name: "Missing CSP", Location: "https://example.uz/", Severity: models.SeverityLow}

	first := seedCompleted(t, s, "https://example.uz", base, 59, sqli, csp)
	seedCompleted(t, s, "https://other.uz", base.Add(time.Hour), 100)
	second := seedCompleted(t, s, "https://example.uz", base.Add(2*time.Hour), 95, csp)

	dr, err := diffScans(ctx, s, "cli", second.ID, "")
	if err != nil {
		t.Fatalf("diffScans: %v", err)
	}
	if dr.PreviousID != first.ID {
		t.Errorf("PreviousID = %s, want %s", dr.PreviousID, first.ID)
	}
	if len(dr.ResolvedFindings) != 1 || len(dr.NewFindings) != 0 || dr.ScoreDelta() != 36 {
		t.Errorf("diff = %+v", dr)
	}

	if _, err := diffScans(ctx, s, "cli", first.ID, ""); !errors.Is(err, errNoPrevious) {
		t.Errorf("first scan err = %v, want errNoPrevious", err)
	}

	// Explicit previous id skips the history lookup.
	dr, err = diffScans(ctx, s, "someone-else", first.ID, second.ID)
	if err != nil || len(dr.NewFindings) != 1 {
		t.Errorf("explicit diff = %+v, %v", dr, err)
	}
}

func TestDiffScansRejectsUnfinished(t *testing.T) {
	s := storage.NewMemoryStore()
	job := models.NewJob("https://example.uz", "cli", "full", time.Now())
	if err := s.CreateJob(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	if _, err := diffScans(context.Background(), s, "cli", job.ID, ""); err == nil {
		t.Error("expected error for a queued scan")
	}
	if _, err := diffScans(context.Background(), s, "cli", "missing", ""); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("missing scan err = %v", err)
	}
}
