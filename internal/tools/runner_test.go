package tools

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestRunToolCapturesOutput(t *testing.T) {
	requireShell(t)

	res, err := RunTool(context.Background(), Command{
		Binary: "sh",
		Args:   []string{"-c", "echo out; echo err >&2; echo $CYBERSHIELD_TEST"},
		Env:    []string{"CYBERSHIELD_TEST=env-ok"},
	})
	if err != nil {
		t.Fatalf("RunTool: %v", err)
	}
	if string(res.Stdout) != "out\nenv-ok\n" {
		t.Errorf("stdout = %q", res.Stdout)
	}
	if strings.TrimSpace(res.Stderr) != "err" {
		t.Errorf("stderr = %q", res.Stderr)
	}
}

func TestRunToolExitCode(t *testing.T) {
	requireShell(t)

	res, err := RunTool(context.Background(), Command{Binary: "sh", Args: []string{"-c", "exit 3"}})
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d", res.ExitCode)
	}
}

func TestRunToolKilledOnTimeout(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := RunTool(ctx, Command{Binary: "sh", Args: []string{"-c", "exec sleep 10"}}); err == nil {
		t.Fatal("expected cancellation error")
	}
	if time.Since(start) > 8*time.Second {
		t.Fatal("process was not killed")
	}
}

func TestZapRunnerWithFakeBinary(t *testing.T) {
	requireShell(t)

	dir := t.TempDir()
	fixture := filepath.Join(dir, "fixture.json")
	if err := os.WriteFile(fixture, []byte(zapFixture), 0o644); err != nil {
		t.Fatal(err)
	}

	script := "#!/bin/sh\n" +
		"while [ $# -gt 0 ]; do\n" +
		"  if [ \"$1\" = \"-quickout\" ]; then out=\"$2\"; fi\n" +
		"  shift\n" +
		"done\n" +
		"cp " + fixture + " \"$out\"\n"
	binary := filepath.Join(dir, "zap.sh")
	if err := os.WriteFile(binary, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	runner := NewZapRunner(Options{Binary: binary, ArtifactAttempts: 2, ArtifactInterval: 10 * time.Millisecond})
	out, ok := Invoke(context.Background(), runner, "example.uz", dir, 5*time.Second, nil)
	if !ok {
		t.Fatalf("zap invocation failed: %v", out.Err)
	}
	if len(out.Findings) != 3 {
		t.Fatalf("expected 3 findings, got %d", len(out.Findings))
	}
	if out.ServerInfo["host"] != "example.uz" {
		t.Errorf("server info = %v", out.ServerInfo)
	}
}

func TestZapRunnerMissingArtifact(t *testing.T) {
	requireShell(t)

	runner := NewZapRunner(Options{Binary: "true", ArtifactAttempts: 2, ArtifactInterval: time.Millisecond})
	out, ok := Invoke(context.Background(), runner, "example.uz", t.TempDir(), 5*time.Second, nil)
	if ok || len(out.Findings) != 0 {
		t.Fatalf("expected degraded output, got ok=%v %+v", ok, out)
	}
}

// writeNucleiScript writes a fake nuclei that creates an empty -o file and
// exits with code.
func writeNucleiScript(t *testing.T, dir string, code int) string {
	t.Helper()
	script := "#!/bin/sh\n" +
		"while [ $# -gt 0 ]; do\n" +
		"  if [ \"$1\" = \"-o\" ]; then out=\"$2\"; fi\n" +
		"  shift\n" +
		"done\n" +
		": > \"$out\"\n" +
		"exit " + strconv.Itoa(code) + "\n"
	binary := filepath.Join(dir, "nuclei")
	if err := os.WriteFile(binary, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return binary
}

func TestNucleiRunnerCleanRunWithoutMatches(t *testing.T) {
	requireShell(t)

	dir := t.TempDir()
	runner := NewNucleiRunner(Options{Binary: writeNucleiScript(t, dir, 0), ArtifactAttempts: 5, ArtifactInterval: time.Second})

	start := time.Now()
	out, ok := Invoke(context.Background(), runner, "example.uz", dir, 5*time.Second, nil)
	if !ok || out.Err != nil {
		t.Fatalf("expected clean run, got ok=%v err=%v", ok, out.Err)
	}
	if len(out.Findings) != 0 {
		t.Errorf("findings = %+v", out.Findings)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("empty report was polled for %s", elapsed)
	}
}

func TestNucleiRunnerFailedRunWithEmptyReport(t *testing.T) {
	requireShell(t)

	dir := t.TempDir()
	runner := NewNucleiRunner(Options{Binary: writeNucleiScript(t, dir, 2), ArtifactAttempts: 2, ArtifactInterval: time.Millisecond})

	out, ok := Invoke(context.Background(), runner, "example.uz", dir, 5*time.Second, nil)
	if ok || !errors.Is(out.Err, errEmptyArtifact) {
		t.Fatalf("expected empty artifact failure, got ok=%v err=%v", ok, out.Err)
	}
}

func TestCheckToolMissing(t *testing.T) {
	res := CheckTool(ToolRequirement{Name: "ghost", Binary: "cybershield-no-such-binary"})
	if res.Found {
		t.Fatal("expected missing tool")
	}

	reqs := WithBinaries(DefaultTools(), map[string]string{"zap": "/opt/zap/zap.sh"})
	if reqs[0].Binary != "/opt/zap/zap.sh" || reqs[1].Binary != "nmap" {
		t.Errorf("unexpected binaries %+v", reqs)
	}
}
