package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// waitDelay bounds how long Wait keeps copying output after the context
// killed the process, e.g. when a grandchild still holds the pipes.
const waitDelay = 5 * time.Second

// Command describes one external tool invocation
type Command struct {
	Binary string
	Args   []string
	// Env is appended to the current environment.
	Env []string
	Dir string
}

// ToolResult contains the result of a tool execution
type ToolResult struct {
	Stdout   []byte
	Stderr   string
	ExitCode int
}

// RunTool executes a tool binary and returns its captured output.
// Stdout and stderr are copied concurrently by exec so a chatty tool cannot
// block on a full pipe, and the process is killed when ctx is done.
func RunTool(ctx context.Context, c Command) (*ToolResult, error) {
	cmd := exec.CommandContext(ctx, c.Binary, c.Args...)
	cmd.WaitDelay = waitDelay
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var stdoutBuf bytes.Buffer
	var stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", c.Binary, err)
	}

	err := cmd.Wait()

	result := &ToolResult{
		Stdout:   stdoutBuf.Bytes(),
		Stderr:   stderrBuf.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
	}

	if err != nil {
		if ctx.Err() != nil {
			return result, fmt.Errorf("%s cancelled: %w", c.Binary, ctx.Err())
		}
		return result, fmt.Errorf("%s failed with exit code %d: %w", c.Binary, result.ExitCode, err)
	}

	return result, nil
}
