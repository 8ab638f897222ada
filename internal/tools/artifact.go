package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// Artifact polling defaults.
const (
	DefaultArtifactAttempts = 5
	DefaultArtifactInterval = 500 * time.Millisecond
)

var errEmptyArtifact = errors.New("artifact is empty")

// ReadArtifact reads the report a tool left at path, retrying up to
// attempts times while the file is missing or still empty.
func ReadArtifact(ctx context.Context, path string, attempts int, interval time.Duration) ([]byte, error) {
	return readArtifact(ctx, path, attempts, interval, false)
}

// ReadArtifactAllowEmpty is ReadArtifact for tools whose empty report means
// "nothing found". It only retries while the file is missing.
func ReadArtifactAllowEmpty(ctx context.Context, path string, attempts int, interval time.Duration) ([]byte, error) {
	return readArtifact(ctx, path, attempts, interval, true)
}

func readArtifact(ctx context.Context, path string, attempts int, interval time.Duration, allowEmpty bool) ([]byte, error) {
	if attempts <= 0 {
		attempts = DefaultArtifactAttempts
	}
	if interval <= 0 {
		interval = DefaultArtifactInterval
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		data, err := os.ReadFile(path)
		if err == nil && (len(data) > 0 || allowEmpty) {
			return data, nil
		}
		if err == nil {
			err = errEmptyArtifact
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("waiting for artifact %s: %w", path, ctx.Err())
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("reading artifact %s after %d attempts: %w", path, attempts, lastErr)
}
