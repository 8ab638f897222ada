package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hakim/cybershield/internal/findings"
)

type fakeRunner struct {
	name string
	run  func(ctx context.Context, target, outputPath string) (*Report, error)
}

func (f *fakeRunner) Name() string     { return f.name }
func (f *fakeRunner) Artifact() string { return f.name + ".json" }
func (f *fakeRunner) Run(ctx context.Context, target, outputPath string) (*Report, error) {
	return f.run(ctx, target, outputPath)
}

func TestInvokeNormalizesFindings(t *testing.T) {
	dir := t.TempDir()
	var gotPath string
	r := &fakeRunner{name: "fake", run: func(_ context.Context, _ string, outputPath string) (*Report, error) {
		gotPath = outputPath
		return &Report{
			Findings:   []findings.RawFinding{{Name: "A", Risk: "High"}, {Name: "B", Risk: "weird"}},
			ServerInfo: map[string]string{"server": "nginx"},
		}, nil
	}}

	out, ok := Invoke(context.Background(), r, "example.uz", dir, time.Second, nil)
	if !ok || out.Err != nil {
		t.Fatalf("expected success, got ok=%v err=%v", ok, out.Err)
	}
	if gotPath != filepath.Join(dir, "fake.json") {
		t.Errorf("artifact path = %q", gotPath)
	}
	if len(out.Findings) != 2 || out.Findings[0].Severity != "high" || out.Findings[1].Severity != "low" {
		t.Fatalf("unexpected findings %+v", out.Findings)
	}
	if out.Findings[0].Source != "fake" {
		t.Errorf("source = %q", out.Findings[0].Source)
	}
	if run := out.ToolRun(); !run.OK || run.Findings != 2 {
		t.Errorf("unexpected tool run %+v", run)
	}
}

func TestInvokeTimeout(t *testing.T) {
	r := &fakeRunner{name: "slow", run: func(ctx context.Context, _, _ string) (*Report, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	start := time.Now()
	out, ok := Invoke(context.Background(), r, "example.uz", t.TempDir(), 50*time.Millisecond, nil)
	if ok {
		t.Fatal("expected ok=false on timeout")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("timeout not enforced")
	}
	if len(out.Findings) != 0 || out.Err == nil || !strings.Contains(out.Err.Error(), "timed out") {
		t.Fatalf("unexpected output %+v", out)
	}
	if run := out.ToolRun(); run.OK || run.Error == "" {
		t.Errorf("unexpected tool run %+v", run)
	}
}

func TestInvokeError(t *testing.T) {
	r := &fakeRunner{name: "broken", run: func(context.Context, string, string) (*Report, error) {
		return nil, errors.New("boom")
	}}
	out, ok := Invoke(context.Background(), r, "example.uz", t.TempDir(), time.Second, nil)
	if ok || out.Err == nil || len(out.Findings) != 0 {
		t.Fatalf("unexpected output ok=%v %+v", ok, out)
	}
}

func TestInvokeNilReport(t *testing.T) {
	r := &fakeRunner{name: "quiet", run: func(context.Context, string, string) (*Report, error) {
		return nil, nil
	}}

	out, ok := Invoke(context.Background(), r, "example.uz", t.TempDir(), time.Second, nil)
	if ok || len(out.Findings) != 0 {
		t.Fatalf("expected degraded output, got ok=%v %+v", ok, out)
	}
	if !errors.Is(out.Err, errNoReport) {
		t.Errorf("err = %v, want errNoReport", out.Err)
	}
	if run := out.ToolRun(); run.OK || run.Error == "" {
		t.Errorf("tool run = %+v", run)
	}
}

func TestReadArtifactWaitsForLateWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "late.json")
	go func() {
		time.Sleep(60 * time.Millisecond)
		_ = os.WriteFile(path, []byte(`{"site":[]}`), 0o644)
	}()

	data, err := ReadArtifact(context.Background(), path, 10, 25*time.Millisecond)
	if err != nil {
		t.Fatalf("ReadArtifact: %v", err)
	}
	if string(data) != `{"site":[]}` {
		t.Errorf("data = %q", data)
	}
}

func TestReadArtifactGivesUp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	if _, err := ReadArtifact(context.Background(), path, 3, time.Millisecond); err == nil {
		t.Fatal("expected error for missing artifact")
	}

	empty := filepath.Join(t.TempDir(), "empty.json")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadArtifact(context.Background(), empty, 2, time.Millisecond); !errors.Is(err, errEmptyArtifact) {
		t.Fatalf("expected empty artifact error, got %v", err)
	}
}

func TestReadArtifactAllowEmpty(t *testing.T) {
	empty := filepath.Join(t.TempDir(), "empty.jsonl")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	data, err := ReadArtifactAllowEmpty(context.Background(), empty, 2, time.Millisecond)
	if err != nil || len(data) != 0 {
		t.Fatalf("ReadArtifactAllowEmpty = %q, %v; want empty, nil", data, err)
	}

	missing := filepath.Join(t.TempDir(), "missing.jsonl")
	if _, err := ReadArtifactAllowEmpty(context.Background(), missing, 2, time.Millisecond); err == nil {
		t.Fatal("expected error for missing artifact")
	}
}

func TestReadArtifactHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ReadArtifact(ctx, filepath.Join(t.TempDir(), "x"), 5, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
