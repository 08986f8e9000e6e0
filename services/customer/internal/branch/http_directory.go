package branch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// HTTPDirectory reads branches from the branch service REST API.
type HTTPDirectory struct {
	baseURL string
	client  *retryablehttp.Client
}

func NewHTTPDirectory(baseURL string, timeout time.Duration, retries int, logger *slog.Logger) *HTTPDirectory {
	client := retryablehttp.NewClient()
	client.RetryMax = retries
	client.RetryWaitMin = 50 * time.Millisecond
	client.RetryWaitMax = 500 * time.Millisecond
	client.HTTPClient.Timeout = timeout
	client.Logger = nil
	if logger != nil {
		client.Logger = logger
	}
	return &HTTPDirectory{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (d *HTTPDirectory) Status(ctx context.Context, code string) (Status, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/api/branches/"+url.PathEscape(code), nil)
	if err != nil {
		return Status{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return Status{}, fmt.Errorf("branch directory: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Status{}, fmt.Errorf("%w: %s", ErrBranchNotFound, code)
	case resp.StatusCode != http.StatusOK:
		return Status{}, fmt.Errorf("branch directory: unexpected status %d for %s", resp.StatusCode, code)
	}

	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return Status{}, fmt.Errorf("decode branch %s: %w", code, err)
	}
	if st.BranchCode == "" {
		st.BranchCode = code
	}
	return st, nil
}
