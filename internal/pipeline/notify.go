package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hakim/cybershield/internal/models"
)

// NotifyConfig configures where to send completion notifications.
type NotifyConfig struct {
	WebhookURL string // if empty, no notifications
	Client     *http.Client
}

// completionPayload is the JSON body posted to the webhook endpoint.
type completionPayload struct {
	ScanID         string                 `json:"scan_id"`
	Target         string                 `json:"target"`
	State          models.JobState        `json:"state"`
	Score          *int                   `json:"score,omitempty"`
	SeverityCounts *models.SeverityCounts `json:"severity_counts,omitempty"`
	FindingCount   int                    `json:"finding_count"`
	Error          string                 `json:"error,omitempty"`
}

// SendCompletion posts a JSON payload describing a terminal job to the
// webhook URL. result is nil for jobs that did not complete.
// Returns nil if WebhookURL is empty (no-op). Callers should treat errors
// as warnings.
func (n *NotifyConfig) SendCompletion(ctx context.Context, job models.Job, result *models.Result) error {
	if n == nil || n.WebhookURL == "" {
		return nil
	}

	payload := completionPayload{
		ScanID: job.ID,
		Target: job.Target,
		State:  job.State,
		Error:  job.Error,
	}
	if result != nil {
		score, counts := result.Score, result.SeverityCounts
		payload.Score = &score
		payload.SeverityCounts = &counts
		payload.FindingCount = len(result.Findings)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := n.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: posting to %s: %w", n.WebhookURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned non-2xx status %d", resp.StatusCode)
	}

	return nil
}
