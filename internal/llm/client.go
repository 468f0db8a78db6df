// Package llm talks to the generative-text service and extracts structured
// data from its free-form output.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/joao-k-santos/IRS-LLM/internal/types"
)

// Client is a direct HTTP client for the generative service's
// /api/generate endpoint. Streaming is never requested: the pipeline assumes
// one complete response body per call.
type Client struct {
	baseURL    string
	keepAlive  string
	httpClient *http.Client
}

// NewClient creates a client with the given per-call deadline. The deadline
// is hour-scale in production; generation is slow and the pipeline holds at
// most one request in flight.
func NewClient(baseURL, keepAlive string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		keepAlive:  keepAlive,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	Stream    bool   `json:"stream"`
	KeepAlive string `json:"keep_alive,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate posts a single-shot prompt and returns the model's raw text.
func (c *Client) Generate(ctx context.Context, model, prompt, token string) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Model:     model,
		Prompt:    prompt,
		Stream:    false,
		KeepAlive: c.keepAlive,
	})
	if err != nil {
		return "", types.NewParseError("failed to marshal generate request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", types.NewNetworkError("failed to build generate request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return "", types.NewTimeoutError("generate call exceeded deadline", err)
		}
		return "", types.NewNetworkError("generate call failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.NewNetworkError("failed to read generate response", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return "", types.NewAuthError("generative service rejected bearer", nil)
	}
	if resp.StatusCode != http.StatusOK {
		return "", types.NewUpstreamError("generative service", resp.StatusCode, string(body))
	}

	var gr generateResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return "", types.NewParseError("generate response is not valid JSON", err)
	}
	return gr.Response, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
