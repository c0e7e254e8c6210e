// Package apiclient is the typed HTTP client for the HippoSync backend.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"pkt.systems/hipposync/schema"
	"pkt.systems/pslog"
)

const (
	// DefaultTimeout bounds every backend call when no timeout is configured.
	DefaultTimeout = 120 * time.Second
	// RequestIDHeader carries a per-request correlation id.
	RequestIDHeader = "X-Request-ID"

	maxResponseBytes = 16 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
	// Timeout applies to each call. Zero uses DefaultTimeout, negative disables it.
	Timeout time.Duration
	Logger  pslog.Logger
}

// Client issues calls against the backend. A Client is immutable once built;
// WithToken returns an authenticated copy.
type Client struct {
	base      *url.URL
	http      *http.Client
	userAgent string
	timeout   time.Duration
	token     string
	log       pslog.Logger
}

// New constructs an unauthenticated client.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("apiclient: base url is required")
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("apiclient: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("apiclient: base url %q must include scheme and host", raw)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		base:      base,
		http:      httpClient,
		userAgent: strings.TrimSpace(cfg.UserAgent),
		timeout:   timeout,
		log:       cfg.Logger,
	}, nil
}

// WithToken returns a copy of the client that attaches the bearer token.
// An empty token yields an unauthenticated copy.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = strings.TrimSpace(token)
	return &clone
}

// Token returns the bearer token attached to this client.
func (c *Client) Token() string {
	return c.token
}

// Authenticated reports whether a bearer token is attached.
func (c *Client) Authenticated() bool {
	return c.token != ""
}

// BaseURL returns the configured backend base url.
func (c *Client) BaseURL() string {
	return c.base.String()
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	auth        bool
}

func (c *Client) jsonRequest(method, path string, payload any) (request, error) {
	req := request{method: method, path: path, auth: true}
	if payload == nil {
		return req, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return request{}, err
	}
	req.body = bytes.NewReader(data)
	req.contentType = "application/json"
	return req, nil
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if r.auth && c.token == "" {
		return schema.ErrNotLoggedIn
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	endpoint := c.base.JoinPath(r.path)
	if len(r.query) > 0 {
		endpoint.RawQuery = r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, endpoint.String(), r.body)
	if err != nil {
		return err
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if r.auth {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	log := c.logger(ctx).With("method", r.method, "path", r.path, "request_id", requestID)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn("api request failed", "err", err)
		return &TransportError{Method: r.method, Path: r.path, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		log.Warn("api response read failed", "status", resp.StatusCode, "err", err)
		return &TransportError{Method: r.method, Path: r.path, Err: err}
	}
	log.Debug("api request", "status", resp.StatusCode, "bytes", len(body), "duration_ms", time.Since(start).Milliseconds())
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(r.method, r.path, resp.StatusCode, body)
		log.Debug("api error response", "status", resp.StatusCode, "detail", apiErr.Detail)
		return apiErr
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("apiclient: decode %s %s: %w", r.method, r.path, err)
	}
	return nil
}

func (c *Client) logger(ctx context.Context) pslog.Logger {
	if c.log != nil {
		return c.log
	}
	return pslog.Ctx(ctx)
}
