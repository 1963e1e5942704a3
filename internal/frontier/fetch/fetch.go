// Package fetch performs single, deadline-bounded HTTP exchanges with content
// providers and classifies their outcome into the failure taxonomy used by
// the rest of the content core. It never retries.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultMaxBodyBytes = 4 << 20
	defaultUserAgent    = "Frontier/1.0 (+https://github.com/RobinCoderZhao/frontier)"
)

// Options configures a Fetcher.
type Options struct {
	Timeout           time.Duration `yaml:"timeout" env:"FRONTIER_FETCH_TIMEOUT"`
	UserAgent         string        `yaml:"user_agent"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"FRONTIER_FETCH_RPS"`
	Burst             int           `yaml:"burst"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes"`
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		Timeout:      defaultTimeout,
		UserAgent:    defaultUserAgent,
		MaxBodyBytes: defaultMaxBodyBytes,
	}
}

// Request describes one outbound call.
type Request struct {
	Method  string
	URL     string
	Header  http.Header
	Timeout time.Duration // zero uses Options.Timeout
}

// Response is a fully read 2xx response.
type Response struct {
	Status   int
	Header   http.Header
	Body     []byte
	FinalURL string
	Duration time.Duration
}

// Fetcher wraps an http.Client with a per-call deadline.
type Fetcher struct {
	client  *http.Client
	opts    Options
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option mutates a Fetcher at construction time.
type Option func(*Fetcher)

// WithHTTPClient replaces the underlying client. Its own Timeout should be
// zero; deadlines are applied per request.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithLogger sets the logger used for per-request debug lines.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New creates a Fetcher.
func New(opts Options, options ...Option) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}

	f := &Fetcher{
		client: &http.Client{},
		opts:   opts,
		logger: slog.Default(),
	}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	for _, option := range options {
		option(f)
	}
	return f
}

// Timeout returns the default per-request deadline.
func (f *Fetcher) Timeout() time.Duration {
	return f.opts.Timeout
}

// Fetch executes req under its deadline. When the deadline expires the
// request context is cancelled, which aborts the connection, and ErrTimeout
// is returned. Non-2xx statuses come back as *HTTPError.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = f.opts.Timeout
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := Redact(req.URL)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	if f.limiter != nil {
		// Wait fails early when the next token lies beyond the deadline.
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, f.transportError(ctx, target, timeout, context.DeadlineExceeded)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", target, ErrConfiguration)
	}
	httpReq.Header.Set("User-Agent", f.opts.UserAgent)
	httpReq.Header.Set("Accept", "application/json")
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, f.transportError(ctx, target, timeout, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes))
	if err != nil {
		return nil, f.transportError(ctx, target, timeout, err)
	}

	duration := time.Since(start)
	f.logger.DebugContext(ctx, "provider exchange",
		"method", method,
		"url", target,
		"status", resp.StatusCode,
		"duration", duration,
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: %w", target, newHTTPError(resp.StatusCode, body))
	}

	finalURL := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &Response{
		Status:   resp.StatusCode,
		Header:   resp.Header,
		Body:     body,
		FinalURL: finalURL,
		Duration: duration,
	}, nil
}

// FetchInto runs Fetch and hands the body to parse. A parse error is
// reported as ErrMalformedResponse.
func (f *Fetcher) FetchInto(ctx context.Context, req Request, parse func([]byte) error) (*Response, error) {
	resp, err := f.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := parse(resp.Body); err != nil {
		return resp, fmt.Errorf("decode %s: %w: %v", Redact(req.URL), ErrMalformedResponse, err)
	}
	return resp, nil
}

func (f *Fetcher) transportError(ctx context.Context, target string, timeout time.Duration, err error) error {
	// A cancelled caller is not a provider failure.
	if errors.Is(context.Cause(ctx), context.Canceled) {
		return fmt.Errorf("fetch %s: %w", target, context.Canceled)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("fetch %s: %w after %s", target, ErrTimeout, timeout)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	return fmt.Errorf("fetch %s: %w: %v", target, ErrNetworkUnreachable, err)
}

var secretParams = []string{"apiKey", "apikey", "api_key", "key", "client_id", "token"}

// Redact masks credential query parameters so URLs can be logged.
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	q := u.Query()
	changed := false
	for _, p := range secretParams {
		if q.Has(p) {
			q.Set(p, "REDACTED")
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	u.User = nil
	return u.String()
}
