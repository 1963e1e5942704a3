// Package llm provides a small interface over the language models that back
// the site's market assistant. Gemini is the hosted provider; Ollama serves
// local development.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider represents an LLM provider.
type Provider string

const (
	Gemini Provider = "gemini"
	Ollama Provider = "ollama"
)

var (
	// ErrNotConfigured is returned when a client cannot be built from its
	// Config, typically because the API key is missing.
	ErrNotConfigured = errors.New("llm: not configured")
	// ErrUnauthorized matches provider errors for a rejected credential.
	ErrUnauthorized = errors.New("llm: credential rejected")
	// ErrQuota matches provider errors for exhausted quota or rate limits.
	ErrQuota = errors.New("llm: quota exceeded")
	// ErrEmptyResponse is returned when the provider answers without text.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// Config holds configuration for an LLM client.
type Config struct {
	Provider    Provider      `yaml:"provider" env:"LLM_PROVIDER"`
	Model       string        `yaml:"model" env:"LLM_MODEL"`
	APIKey      string        `yaml:"api_key" env:"GEMINI_KEY"`
	BaseURL     string        `yaml:"base_url" env:"LLM_BASE_URL"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
}

// DefaultConfig returns the assistant defaults: a short, fast Gemini model.
func DefaultConfig() Config {
	return Config{
		Provider:    Gemini,
		Model:       "gemini-2.0-flash",
		Timeout:     15 * time.Second,
		MaxTokens:   150,
		Temperature: 0.7,
	}
}

// Client is the interface for LLM interactions.
type Client interface {
	// Generate sends a prompt and returns the model's answer.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// Provider returns the name of the provider.
	Provider() Provider

	// Close releases any resources held by the client.
	Close() error
}

// Message represents a single message in a conversation.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Request holds the parameters for a generation request.
type Request struct {
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// Response holds the result of a generation.
type Response struct {
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason,omitempty"`
	TokensIn     int    `json:"tokens_in"`
	TokensOut    int    `json:"tokens_out"`
	Model        string `json:"model"`
	LatencyMs    int64  `json:"latency_ms"`
}

// APIError is a non-success answer from a provider.
type APIError struct {
	Provider Provider
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.Status, e.Message)
}

// Is lets callers test provider errors against ErrUnauthorized and ErrQuota.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == 401 || e.Status == 403
	case ErrQuota:
		return e.Status == 429
	}
	return false
}

// NewClient creates a new LLM client based on the provided config.
func NewClient(cfg Config) (Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	switch cfg.Provider {
	case Gemini, "":
		return newGeminiClient(cfg)
	case Ollama:
		return newOllamaClient(cfg)
	default:
		return nil, fmt.Errorf("%w: unsupported provider %q", ErrNotConfigured, cfg.Provider)
	}
}

func pick[T int | float64](override, fallback T) T {
	if override > 0 {
		return override
	}
	return fallback
}
