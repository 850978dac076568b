// Package transport is the minimal HTTP collaborator described in §4.9 of
// the spec: a bearer-token state machine, a per-request timeout, and a
// courtesy client-side outbound rate limiter. It does not retry failed
// requests; a single logical attempt either succeeds or surfaces a typed
// e3errors error.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tozny/e3db-go/e3errors"
)

const defaultTimeout = 30 * time.Second

// AuthMode selects how a request authenticates.
type AuthMode int

const (
	// AuthBearer attaches the current bearer token, refreshing it first
	// if necessary.
	AuthBearer AuthMode = iota
	// AuthNone sends no Authorization header (registration, and other
	// token-gated-by-body endpoints).
	AuthNone
)

// Transport is a Client's single HTTP collaborator: it owns the bearer
// token cache and the outbound rate limiter, and is safe for concurrent
// use.
type Transport struct {
	httpClient *http.Client
	baseURL    string
	apiKeyID   string
	apiSecret  string
	timeout    time.Duration
	limiter    *rate.Limiter
	logger     *slog.Logger

	mu          sync.Mutex
	state       tokenState
	accessToken string
	tokenExpiry time.Time
}

// Option configures a Transport at construction time.
type Option func(*Transport)

// WithHTTPClient overrides the underlying *http.Client (e.g. to point at an
// httptest.Server's client in tests).
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) { t.httpClient = c }
}

// WithTimeout overrides the default 30s per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(t *Transport) { t.timeout = d }
}

// WithRateLimit overrides the default outbound rate limit. A limiter with
// an effectively unlimited rate disables throttling.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(t *Transport) { t.limiter = rate.NewLimiter(limit, burst) }
}

// WithLogger overrides the default slog.Logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// New builds a Transport against baseURL, authenticating to the token
// endpoint with apiKeyID/apiSecret.
func New(baseURL, apiKeyID, apiSecret string, opts ...Option) *Transport {
	t := &Transport{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKeyID:   apiKeyID,
		apiSecret:  apiSecret,
		timeout:    defaultTimeout,
		limiter:    rate.NewLimiter(rate.Limit(50), 100),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Response is the decoded outcome of a request: the status code, the raw
// body (for callers that need the body whether or not a JSON target was
// supplied), and any response headers the caller asked about.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// DoJSON sends method/path with an optional JSON request body and query
// parameters, waiting on the outbound rate limiter and attaching a bearer
// token when auth == AuthBearer. If out is non-nil and the response status
// is 2xx, the response body is JSON-decoded into out.
func (t *Transport) DoJSON(ctx context.Context, method, path string, query url.Values, reqBody, out interface{}, auth AuthMode) (*Response, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		raw, err := json.Marshal(reqBody)
		if err != nil {
			return nil, e3errors.New(e3errors.TransportError, "Transport.DoJSON", err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	fullURL := t.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return nil, e3errors.New(e3errors.TransportError, "Transport.DoJSON", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, fullURL, bodyReader)
	if err != nil {
		return nil, e3errors.New(e3errors.TransportError, "Transport.DoJSON", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if auth == AuthBearer {
		tok, err := t.ensureToken(ctx)
		if err != nil {
			return nil, err // already a typed e3errors.AuthFailure
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.logger.Debug("request failed", "method", method, "path", path, "error", err)
		return nil, e3errors.New(e3errors.TransportError, "Transport.DoJSON", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, e3errors.New(e3errors.TransportError, "Transport.DoJSON", err)
	}

	r := &Response{StatusCode: resp.StatusCode, Body: raw, Header: resp.Header}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return r, e3errors.New(e3errors.TransportError, "Transport.DoJSON", fmt.Errorf("decoding response: %w", err))
		}
	}
	return r, nil
}

// BaseURL returns the configured API base URL.
func (t *Transport) BaseURL() string { return t.baseURL }
