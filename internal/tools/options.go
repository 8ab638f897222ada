package tools

import (
	"fmt"
	"time"
)

// Options configures a runner's binary and artifact polling.
type Options struct {
	Binary           string
	Args             []string
	ArtifactAttempts int
	ArtifactInterval time.Duration
}

func (o Options) withBinary(fallback string) Options {
	if o.Binary == "" {
		o.Binary = fallback
	}
	return o
}

// withRunError attaches the tool's own failure, if any, to an artifact error.
func withRunError(artifactErr, runErr error) error {
	if runErr == nil {
		return artifactErr
	}
	return fmt.Errorf("%w (tool: %w)", artifactErr, runErr)
}
