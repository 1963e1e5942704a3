// Package api provides the JSON HTTP surface of The Financial Frontier.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RobinCoderZhao/frontier/internal/frontier/assistant"
	"github.com/RobinCoderZhao/frontier/internal/frontier/content"
	"github.com/RobinCoderZhao/frontier/internal/frontier/fetch"
)

// Server holds the dependencies for the API.
type Server struct {
	content        *content.Service
	assistant      *assistant.Assistant
	gatherer       prometheus.Gatherer
	warmCategories []string
	allowedOrigin  string
	logger         *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithAssistant enables POST /api/chat.
func WithAssistant(a *assistant.Assistant) Option {
	return func(s *Server) { s.assistant = a }
}

// WithGatherer exposes the metrics of g at /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithWarmCategories sets the categories POST /api/refresh reloads.
func WithWarmCategories(categories []string) Option {
	return func(s *Server) { s.warmCategories = categories }
}

// WithAllowedOrigin sets the CORS origin. "*" allows any.
func WithAllowedOrigin(origin string) Option {
	return func(s *Server) { s.allowedOrigin = origin }
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a new API Server instance.
func NewServer(svc *content.Service, opts ...Option) *Server {
	s := &Server{
		content:        svc,
		assistant:      assistant.New(nil),
		warmCategories: []string{content.DefaultCategory},
		allowedOrigin:  "*",
		logger:         slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Routes returns the configured http.Handler for the API.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Articles
	mux.HandleFunc("GET /api/headlines", s.handleHeadlines())
	mux.HandleFunc("GET /api/search", s.handleSearch())
	mux.HandleFunc("GET /api/sources/{source}", s.handleSource())
	mux.HandleFunc("GET /api/regions", s.handleRegions())
	mux.HandleFunc("GET /api/regions/{region}", s.handleRegion())

	// Media
	mux.HandleFunc("GET /api/regions/{region}/videos", s.handleRegionVideos())
	mux.HandleFunc("GET /api/videos", s.handleVideos())
	mux.HandleFunc("GET /api/images", s.handleImage())

	mux.HandleFunc("POST /api/refresh", s.handleRefresh())
	mux.HandleFunc("POST /api/chat", s.handleChat())

	mux.HandleFunc("GET /healthz", s.handleHealth())
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return s.cors(mux)
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// --- Helpers ---

type errorBody struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorBody{Error: message})
}

// respondFailure maps a core error onto a status code.
func (s *Server) respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	status, body := http.StatusBadGateway, errorBody{Error: "upstream provider failed"}
	switch {
	case errors.Is(err, content.ErrInvalidArgument), errors.Is(err, assistant.ErrInvalidPrompt):
		status, body = http.StatusBadRequest, errorBody{Error: err.Error()}
	case errors.Is(err, fetch.ErrConfiguration):
		status, body = http.StatusServiceUnavailable, errorBody{Error: "service is not configured", Retryable: true}
	case errors.Is(err, fetch.ErrNotFound):
		status, body = http.StatusNotFound, errorBody{Error: "no results"}
	case errors.Is(err, fetch.ErrRateLimited):
		status, body = http.StatusTooManyRequests, errorBody{Error: "provider quota exceeded", Retryable: true}
	case errors.Is(err, fetch.ErrTimeout):
		status, body = http.StatusGatewayTimeout, errorBody{Error: "provider timed out", Retryable: true}
	case errors.Is(err, fetch.ErrNetworkUnreachable):
		status, body = http.StatusServiceUnavailable, errorBody{Error: "provider unreachable", Retryable: true}
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the answer.
		return
	}

	level := slog.LevelWarn
	if errors.Is(err, fetch.ErrConfiguration) {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "request failed", "path", r.URL.Path, "status", status, "error", err)
	respondJSON(w, status, body)
}

// intParam reads a positive integer query parameter. Missing means 0.
func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("invalid " + name)
	}
	return n, nil
}

func boolParam(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.New("invalid " + name)
	}
	return v, nil
}
