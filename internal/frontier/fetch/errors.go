package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Failure classes. Every error produced by the content core wraps exactly one
// of these (or is an *HTTPError) so callers can branch with errors.Is.
var (
	ErrConfiguration      = errors.New("configuration error")
	ErrNetworkUnreachable = errors.New("network unreachable")
	ErrTimeout            = errors.New("timeout")
	ErrMalformedResponse  = errors.New("malformed response")
	ErrRateLimited        = errors.New("rate limited")
	ErrNotFound           = errors.New("no results")
)

// HTTPError is a completed exchange with a non-2xx status.
type HTTPError struct {
	Status  int
	Body    string
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("http %d", e.Status)
}

// Is reports 429 responses as ErrRateLimited.
func (e *HTTPError) Is(target error) bool {
	return target == ErrRateLimited && e.Status == http.StatusTooManyRequests
}

// Unauthorized reports whether the provider rejected the credentials.
func (e *HTTPError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

func newHTTPError(status int, body []byte) *HTTPError {
	e := &HTTPError{Status: status, Body: truncate(string(body), 512)}

	// The proxy answers {"error": "..."}; providers use "message".
	var payload struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		var s string
		switch {
		case json.Unmarshal(payload.Error, &s) == nil && s != "":
			e.Message = s
		case payload.Message != "":
			e.Message = payload.Message
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	e.Message = truncate(e.Message, 200)
	return e
}

// Classify maps an error onto a short stable label for logs and metrics.
func Classify(err error) string {
	var httpErr *HTTPError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNetworkUnreachable):
		return "network"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.As(err, &httpErr):
		return "http"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "unknown"
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	// Keep at most n bytes without splitting a multi-byte rune.
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
