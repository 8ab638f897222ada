package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hakim/cybershield/internal/config"
	"github.com/hakim/cybershield/internal/models"
	"github.com/hakim/cybershield/internal/pipeline"
	"github.com/hakim/cybershield/internal/storage"
	"go.uber.org/zap"
)

func TestBuildRunnersHonoursEnabled(t *testing.T) {
	c := config.DefaultConfig()
	c.Tools.Nuclei.Enabled = true
	c.Tools.Nmap.Enabled = false
	c.Tools.Zap.Timeout = "2m"

	specs, err := buildRunners(c)
	if err != nil {
		t.Fatalf("buildRunners: %v", err)
	}
	if len(specs) != 2 || specs[0].Runner.Name() != "zap" || specs[1].Runner.Name() != "nuclei" {
		t.Fatalf("runners = %+v", specs)
	}
	if specs[0].Timeout != 2*time.Minute {
		t.Errorf("zap timeout = %v", specs[0].Timeout)
	}
}

func TestOpenStoreBackends(t *testing.T) {
	c := config.DefaultConfig()
	s, err := openStore(c)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*storage.MemoryStore); !ok {
		t.Errorf("default store = %T, want *storage.MemoryStore", s)
	}

	c.Store = config.StoreBolt
	c.DBPath = filepath.Join(t.TempDir(), "data", "jobs.db")
	s, err = openStore(c)
	if err != nil {
		t.Fatalf("openStore(bolt): %v", err)
	}
	defer s.Close()
	if _, ok := s.(*storage.BoltStore); !ok {
		t.Errorf("bolt store = %T", s)
	}
}

func TestAppScanWithoutTools(t *testing.T) {
	c := config.DefaultConfig()
	c.ScanDir = t.TempDir()
	c.Tools.Zap.Enabled = false
	c.Tools.Nmap.Enabled = false

	a, err := newApp(context.Background(), c, zap.NewNop())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close(5 * time.Second)

	job, err := a.orchestrator.Submit(context.Background(), pipeline.SubmitRequest{Target: "example.uz"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	result, err := a.orchestrator.WaitAnalyzed(ctx, job.ID)
	if err != nil {
		t.Fatalf("WaitAnalyzed: %v", err)
	}
	if !result.Synthetic || len(result.Findings) < 3 {
		t.Errorf("result = %+v, want synthetic findings", result)
	}
	if result.Analyzed || result.AnalysisError == "" {
		t.Errorf("enrichment without API key should record an error: %+v", result)
	}

	got, _ := a.orchestrator.Get(context.Background(), job.ID)
	if got.State != models.StateCompleted {
		t.Errorf("state = %s", got.State)
	}
}
