// Package assistant answers short reader questions about markets and the
// news with a language model.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/RobinCoderZhao/frontier/internal/frontier/fetch"
	"github.com/RobinCoderZhao/frontier/internal/frontier/metrics"
	"github.com/RobinCoderZhao/frontier/pkg/llm"
)

const (
	// MaxPromptLength is the longest accepted question, in characters.
	MaxPromptLength = 1000
	maxReplyLength  = 500
	defaultTimeout  = 15 * time.Second
)

const systemPrompt = `You are the reader assistant of The Financial Frontier, a finance news site.
Answer questions about markets, economics and current business news in at most three short sentences.
Do not give personalised investment advice.`

// ErrInvalidPrompt is returned for empty or oversized questions.
var ErrInvalidPrompt = errors.New("invalid prompt")

// Reply is the assistant's answer.
type Reply struct {
	Text      string    `json:"reply"`
	Timestamp time.Time `json:"timestamp"`
}

// Assistant wraps an llm.Client with prompt validation and a deadline.
type Assistant struct {
	client  llm.Client
	timeout time.Duration
	now     func() time.Time
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithTimeout bounds each question.
func WithTimeout(d time.Duration) Option {
	return func(a *Assistant) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger sets the assistant logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assistant) { a.logger = l }
}

// WithMetrics counts questions by outcome.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Assistant) { a.metrics = m }
}

// New creates an Assistant. A nil client yields an assistant that reports
// a configuration error for every question.
func New(client llm.Client, opts ...Option) *Assistant {
	a := &Assistant{
		client:  client,
		timeout: defaultTimeout,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Ask answers prompt. Errors wrap the fetch failure classes so callers can
// branch on them like on provider failures.
func (a *Assistant) Ask(ctx context.Context, prompt string) (Reply, error) {
	prompt = strings.TrimSpace(prompt)
	switch {
	case prompt == "":
		return Reply{}, fmt.Errorf("%w: prompt is empty", ErrInvalidPrompt)
	case utf8.RuneCountInString(prompt) > MaxPromptLength:
		return Reply{}, fmt.Errorf("%w: prompt exceeds %d characters", ErrInvalidPrompt, MaxPromptLength)
	}
	if a.client == nil {
		a.metrics.RecordAssistant("configuration")
		return Reply{}, fmt.Errorf("ask: %w: no language model configured", fetch.ErrConfiguration)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.client.Generate(ctx, &llm.Request{
		System:   systemPrompt,
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		err = classify(ctx, err)
		a.metrics.RecordAssistant(fetch.Classify(err))
		a.logger.Warn("assistant request failed", "provider", a.client.Provider(), "error", err)
		return Reply{}, err
	}

	text := truncate(strings.TrimSpace(resp.Content), maxReplyLength)
	if text == "" {
		a.metrics.RecordAssistant("malformed")
		return Reply{}, fmt.Errorf("ask: %w: empty reply", fetch.ErrMalformedResponse)
	}

	a.metrics.RecordAssistant("ok")
	a.logger.Debug("assistant answered", "prompt_chars", len(prompt), "reply_chars", len(text), "latency_ms", resp.LatencyMs)
	return Reply{Text: text, Timestamp: a.now().UTC()}, nil
}

func classify(ctx context.Context, err error) error {
	var urlErr *url.Error
	switch {
	case errors.Is(err, context.Canceled) && !errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("ask: %w", context.Canceled)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("ask: %w", fetch.ErrTimeout)
	case errors.Is(err, llm.ErrNotConfigured), errors.Is(err, llm.ErrUnauthorized):
		return fmt.Errorf("ask: %w: %w", fetch.ErrConfiguration, err)
	case errors.Is(err, llm.ErrQuota):
		return fmt.Errorf("ask: %w: %w", fetch.ErrRateLimited, err)
	case errors.Is(err, llm.ErrEmptyResponse):
		return fmt.Errorf("ask: %w: %w", fetch.ErrMalformedResponse, err)
	case errors.As(err, &urlErr):
		if urlErr.Timeout() {
			return fmt.Errorf("ask: %w", fetch.ErrTimeout)
		}
		return fmt.Errorf("ask: %w: %v", fetch.ErrNetworkUnreachable, urlErr.Err)
	default:
		return fmt.Errorf("ask: %w", err)
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
