// Package classifier is the HTTP client for the classification store, the
// upstream service holding attack records labeled by the NIDS classifier.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/joao-k-santos/IRS-LLM/internal/types"
)

// Client calls the classification store. Calls are throttled client-side; the
// store also serves the classifier's own writes and the watcher must stay a
// polite reader.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a classification store client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(10), 10),
	}
}

// FetchUnprocessed returns the attack records not yet handled by the
// pipeline, in the store's return order. Rows arrive as positional arrays
// under a "dados" key.
func (c *Client) FetchUnprocessed(ctx context.Context, token string) ([]types.AttackRecord, error) {
	body, err := c.do(ctx, http.MethodGet, "/dados/ataques/novos", token, nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Dados [][]any `json:"dados"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, types.NewParseError("attack listing is not valid JSON", err)
	}

	records := make([]types.AttackRecord, 0, len(payload.Dados))
	for i, row := range payload.Dados {
		rec, err := types.AttackFromRow(row)
		if err != nil {
			return nil, types.WrapError(types.PARSE_FAILED, fmt.Sprintf("attack row %d", i), err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// MarkProcessed flips the record's processado flag. Idempotent: marking an
// already-processed or unknown flow is a no-op, not an error.
func (c *Client) MarkProcessed(ctx context.Context, token, flowID string) error {
	payload, _ := json.Marshal(map[string]string{"flow_id": flowID})
	_, err := c.do(ctx, http.MethodPut, "/dados/ataques/processar/"+flowID, token, payload)
	var pe *types.PipelineError
	if err != nil && errors.As(err, &pe) && pe.Status == http.StatusNotFound {
		return nil
	}
	return err
}

// Health probes the store's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthcheck", nil)
	if err != nil {
		return types.NewNetworkError("failed to build health request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.NewNetworkError("classifier health probe failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return types.NewUpstreamError("classifier healthcheck", resp.StatusCode, "")
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, token string, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, types.NewNetworkError("canceled while rate limited", err)
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, types.NewNetworkError("failed to build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, types.NewNetworkError("classifier request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewNetworkError("failed to read classifier response", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, types.NewAuthError("classification store rejected bearer", nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, types.NewUpstreamError("classification store", resp.StatusCode, string(body))
	}
	return body, nil
}
