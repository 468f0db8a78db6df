// Package registry is the HTTP client for the rule/context store. All local
// persistence goes through this service's authenticated surface; the watcher
// never touches storage directly.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/joao-k-santos/IRS-LLM/internal/types"
)

// Client calls the rule/context store.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a rule/context store client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// RegisterContext persists one generated context.
func (c *Client) RegisterContext(ctx context.Context, token string, summary types.Context) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return types.NewParseError("failed to marshal context", err)
	}
	_, err = c.do(ctx, http.MethodPost, "/registrar_ataque", token, payload)
	return err
}

// RegisterRule persists one generated mitigation rule together with the flow
// ids it addresses.
func (c *Client) RegisterRule(ctx context.Context, token string, rule types.Rule) error {
	payload, err := json.Marshal(rule)
	if err != nil {
		return types.NewParseError("failed to marshal rule", err)
	}
	_, err = c.do(ctx, http.MethodPost, "/registrar_regra", token, payload)
	return err
}

// ListContexts returns every registered context, most recent first. The
// store answers in insertion order, so the listing is reversed here.
func (c *Client) ListContexts(ctx context.Context, token string) ([]types.Context, error) {
	body, err := c.do(ctx, http.MethodGet, "/listar_ataques", token, nil)
	if err != nil {
		return nil, err
	}
	var contexts []types.Context
	if err := json.Unmarshal(body, &contexts); err != nil {
		return nil, types.NewParseError("context listing is not valid JSON", err)
	}
	for i, j := 0, len(contexts)-1; i < j; i, j = i+1, j-1 {
		contexts[i], contexts[j] = contexts[j], contexts[i]
	}
	return contexts, nil
}

// ListTrustedDevices returns the trusted-IP allowlist.
func (c *Client) ListTrustedDevices(ctx context.Context, token string) ([]string, error) {
	body, err := c.do(ctx, http.MethodGet, "/listar_dispositivos", token, nil)
	if err != nil {
		return nil, err
	}
	var devices []struct {
		IP string `json:"ip-dispositivo"`
	}
	if err := json.Unmarshal(body, &devices); err != nil {
		return nil, types.NewParseError("device listing is not valid JSON", err)
	}
	ips := make([]string, 0, len(devices))
	for _, d := range devices {
		if d.IP != "" {
			ips = append(ips, d.IP)
		}
	}
	return ips, nil
}

// Health probes the store's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthcheck", nil)
	if err != nil {
		return types.NewNetworkError("failed to build health request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.NewNetworkError("registry health probe failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return types.NewUpstreamError("registry healthcheck", resp.StatusCode, "")
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, token string, payload []byte) ([]byte, error) {
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
		return nil, types.NewNetworkError("registry request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewNetworkError("failed to read registry response", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, types.NewAuthError("rule/context store rejected bearer", nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, types.NewUpstreamError("rule/context store", resp.StatusCode, string(body))
	}
	return body, nil
}
