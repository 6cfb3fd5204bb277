// Package api is the HTTP client for the screening service. It owns the
// failure taxonomy: every error it returns is a services.ServiceError.
package api

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

	"go.uber.org/zap"

	"github.com/autisahara/companion/internal/middleware"
	"github.com/autisahara/companion/internal/services"
)

const (
	DefaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
	maxErrBytes    = 4 << 10
)

// HTTPClient is satisfied by *http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	baseURL   string
	http      HTTPClient
	transport http.RoundTripper
	timeout   time.Duration
	log       *zap.Logger
	lang      func() string
}

type Option func(*Client)

// WithHTTPClient replaces the whole HTTP stack, transport middleware included.
func WithHTTPClient(h HTTPClient) Option { return func(c *Client) { c.http = h } }

// WithTransport sets the base transport under the middleware chain.
func WithTransport(rt http.RoundTripper) Option { return func(c *Client) { c.transport = rt } }

// WithTimeout sets the per-call deadline. Values above DefaultTimeout are
// lowered to it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = min(d, DefaultTimeout)
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithLanguage supplies the current language for Accept-Language.
func WithLanguage(lang func() string) Option { return func(c *Client) { c.lang = lang } }

var (
	_ services.StatusClient     = (*Client)(nil)
	_ services.AuthClient       = (*Client)(nil)
	_ services.SubmissionClient = (*Client)(nil)
)

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		timeout: DefaultTimeout,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Transport: middleware.Chain(c.transport,
			middleware.Locale(c.lang),
			middleware.RequestID,
			middleware.NoStore,
		)}
	}
	c.log = c.log.Named("api")
	return c
}

type request struct {
	method string
	path   string
	token  string
	body   any
	header http.Header
	// errOut, when set, receives the decoded body of a non-2xx answer
	// other than 401.
	errOut any
}

// call performs one bounded round trip. out may be nil. The returned status is
// only meaningful when err is nil.
func (c *Client) call(ctx context.Context, r request, out any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return 0, fmt.Errorf("encode %s body: %w", r.path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return 0, fmt.Errorf("build request %s: %w", r.path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	middleware.SetBearer(req, r.token)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("request failed", zap.String("method", r.method), zap.String("path", r.path), zap.Error(err))
		return 0, services.NewUnreachableError(err)
	}
	defer func() { _ = resp.Body.Close() }()
	c.log.Debug("request done", zap.String("method", r.method), zap.String("path", r.path),
		zap.Int("status", resp.StatusCode), zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBytes))
		if resp.StatusCode == http.StatusUnauthorized {
			return resp.StatusCode, services.NewAuthInvalidError(errorMessage(raw, "token rejected"))
		}
		if r.errOut != nil {
			_ = json.Unmarshal(raw, r.errOut)
		}
		return resp.StatusCode, services.NewServerError(resp.StatusCode, errorMessage(raw, ""))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return resp.StatusCode, nil
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, services.NewUnreachableError(err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return 0, malformed("decode %s: %v", r.path, err)
	}
	return resp.StatusCode, nil
}

// malformed reports a 2xx answer the client refuses to trust.
func malformed(format string, args ...any) error {
	return services.NewServerError(http.StatusBadGateway, "malformed response: "+fmt.Sprintf(format, args...))
}

// errorMessage extracts "detail" or "error" from a JSON error body.
func errorMessage(raw []byte, fallback string) string {
	if len(raw) == 0 {
		return fallback
	}
	var e struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil {
		if e.Detail != "" {
			return e.Detail
		}
		if e.Error != "" {
			return e.Error
		}
	}
	if fallback != "" {
		return fallback
	}
	return strings.TrimSpace(string(raw))
}

func isStatus(err error, code int) bool {
	status, ok := services.ServerStatus(err)
	return ok && status == code
}

var errEmptyToken = errors.New("empty token")
