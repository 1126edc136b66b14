package webhookutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RunData is posted to a run's webhook once the run reaches a terminal state.
type RunData struct {
	ID       string `json:"id"`
	Model    string `json:"model"`
	Status   string `json:"status"`
	State    string `json:"state"`
	LocalDir string `json:"local_dir,omitempty"`
	Error    string `json:"error,omitempty"`
}

var successStatuses = []int{http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNoContent}

var httpClient = &http.Client{Timeout: 30 * time.Second}

func Invoke[T any](ctx context.Context, url string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return backoff.Permanent(err)
	}

	req.Header.Set("Content-Type", "application/json")
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !slices.Contains(successStatuses, resp.StatusCode) {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// InvokeWithRetries retries failed deliveries with exponential backoff
// starting at one second.
func InvokeWithRetries[T any](ctx context.Context, url string, data T, maxAttempts int) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second

	return backoff.Retry(func() error {
		return Invoke(ctx, url, data)
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxAttempts-1)), ctx))
}
