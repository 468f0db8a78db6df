// Package auth implements the token broker: it obtains and caches one bearer
// token per collaborator service. Tokens live only in process memory and are
// not proactively refreshed; the watcher drops a cached token when a
// downstream call answers 401 so the next cycle re-authenticates.
package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/joao-k-santos/IRS-LLM/internal/types"
)

// Service scopes known to the broker.
const (
	ScopeClassifier = "classifier"
	ScopeRegistry   = "registry"
)

const (
	obtainAttempts = 5
	obtainBackoff  = 500 * time.Millisecond
)

// Credentials identify one service's token endpoint.
type Credentials struct {
	BaseURL  string
	Username string
	Password string
}

// Broker obtains and caches per-service bearer tokens.
type Broker struct {
	mu       sync.Mutex
	tokens   map[string]string
	services map[string]Credentials

	httpClient *http.Client
}

// NewBroker creates a broker for the given service scopes.
func NewBroker(services map[string]Credentials) *Broker {
	return &Broker{
		tokens:     make(map[string]string),
		services:   services,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Token returns the cached bearer for the named service, authenticating
// against its /token endpoint on first use. Network failures are retried
// with exponential backoff; rejected credentials fail immediately.
func (b *Broker) Token(ctx context.Context, service string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if tok, ok := b.tokens[service]; ok {
		return tok, nil
	}

	creds, ok := b.services[service]
	if !ok {
		return "", types.NewError(types.AUTH_CREDENTIALS_REJECTED, "unknown service scope: "+service)
	}

	tok, err := b.obtain(ctx, service, creds)
	if err != nil {
		return "", err
	}
	b.tokens[service] = tok
	return tok, nil
}

// Invalidate drops the cached token for a service. Safe to call for scopes
// that were never acquired.
func (b *Broker) Invalidate(service string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tokens, service)
}

func (b *Broker) obtain(ctx context.Context, service string, creds Credentials) (string, error) {
	form := url.Values{
		"username": {creds.Username},
		"password": {creds.Password},
	}

	var lastErr error
	for attempt := 0; attempt < obtainAttempts; attempt++ {
		if attempt > 0 {
			backoff := obtainBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return "", types.WrapError(types.AUTH_ENDPOINT_UNREACHABLE,
					"canceled while waiting to retry token request for "+service, ctx.Err())
			case <-time.After(backoff):
			}
		}

		tok, retryable, err := b.requestToken(ctx, service, creds.BaseURL, form)
		if err == nil {
			return tok, nil
		}
		if !retryable {
			return "", err
		}
		lastErr = err
	}

	return "", types.WrapError(types.AUTH_ENDPOINT_UNREACHABLE,
		fmt.Sprintf("token endpoint for %s unreachable after %d attempts", service, obtainAttempts), lastErr)
}

// requestToken performs one POST /token call. The second return value reports
// whether the failure is worth retrying.
func (b *Broker) requestToken(ctx context.Context, service, baseURL string, form url.Values) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(baseURL, "/")+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", false, types.WrapError(types.AUTH_ENDPOINT_UNREACHABLE, "failed to build token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", true, types.WrapError(types.AUTH_ENDPOINT_UNREACHABLE,
			"token request for "+service+" failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, types.WrapError(types.AUTH_ENDPOINT_UNREACHABLE, "failed to read token response", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", false, &types.PipelineError{
			Code:    types.AUTH_CREDENTIALS_REJECTED,
			Message: fmt.Sprintf("credentials for %s rejected (status %d)", service, resp.StatusCode),
			Status:  resp.StatusCode,
			Body:    string(body),
		}
	default:
		return "", true, types.NewUpstreamError(service+" token endpoint", resp.StatusCode, string(body))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", false, types.NewParseError("token response is not valid JSON", err)
	}
	if payload.AccessToken == "" {
		return "", false, types.NewError(types.AUTH_CREDENTIALS_REJECTED,
			"token response for "+service+" carries no access_token")
	}
	return payload.AccessToken, false, nil
}

// ValidLocally reports whether a bearer still looks usable without a network
// call: three JWT segments and an exp claim in the future. The broker holds
// no signing secret, so this is an expiry check, not signature verification.
func ValidLocally(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	claims, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}
	var payload struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(claims, &payload); err != nil {
		return false
	}
	return payload.Exp > time.Now().Unix()
}
