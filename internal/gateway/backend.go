package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultBackendTimeout bounds a single backend call when no timeout is
// configured.
const DefaultBackendTimeout = 10 * time.Second

// BackendClient issues outbound GETs to backend instances. One client (and
// its connection pool) is shared by the whole process.
type BackendClient struct {
	http *http.Client
}

// NewBackendClient creates a pooled client with the given per-request
// timeout (0 means DefaultBackendTimeout).
func NewBackendClient(timeout time.Duration) *BackendClient {
	if timeout <= 0 {
		timeout = DefaultBackendTimeout
	}
	return &BackendClient{
		http: &http.Client{Timeout: timeout},
	}
}

// Get fetches url and returns the response status and raw JSON body.
func (bc *BackendClient) Get(ctx context.Context, url string) (int, json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("backend: build request %s: %w", url, err)
	}

	resp, err := bc.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("backend: get %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("backend: read %s: %w", url, err)
	}

	return resp.StatusCode, body, nil
}
