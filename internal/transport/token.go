package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tozny/e3db-go/e3errors"
)

// tokenState is the bearer-token state machine: None -> Refreshing ->
// Valid, or Refreshing -> None on failure.
type tokenState int

const (
	tokenNone tokenState = iota
	tokenRefreshing
	tokenValid
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

// ensureToken returns a valid bearer token, refreshing it first if absent
// or expired. The whole refresh (including the network round trip) runs
// under t.mu so that concurrent callers serialize on the single shared
// token slot, per this package's concurrency contract.
func (t *Transport) ensureToken(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == tokenValid && time.Now().Before(t.tokenExpiry) {
		return t.accessToken, nil
	}

	t.state = tokenRefreshing
	tok, expiry, err := t.fetchToken(ctx)
	if err != nil {
		t.state = tokenNone
		t.logger.Debug("auth token refresh failed", "error", err)
		return "", e3errors.New(e3errors.AuthFailure, "Transport.ensureToken", err)
	}

	t.accessToken = tok
	t.tokenExpiry = expiry
	t.state = tokenValid
	return tok, nil
}

// InvalidateToken forces the next request to refresh the bearer token.
// Client.Close calls it; a failed refresh (including a 401/403 from the
// token endpoint) resets the token state inside ensureToken instead.
func (t *Transport) InvalidateToken() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = tokenNone
	t.accessToken = ""
}

func (t *Transport) fetchToken(ctx context.Context) (string, time.Time, error) {
	reqCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	body := "grant_type=client_credentials"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, t.baseURL+"/v1/auth/token", strings.NewReader(body))
	if err != nil {
		return "", time.Time{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.apiKeyID, t.apiSecret)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", time.Time{}, err
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", time.Time{}, fmt.Errorf("transport: auth rejected credentials (status %d)", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", time.Time{}, fmt.Errorf("transport: unexpected status %d fetching token", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return "", time.Time{}, fmt.Errorf("transport: decoding token response: %w", err)
	}
	return tr.AccessToken, time.Unix(tr.ExpiresAt, 0), nil
}
