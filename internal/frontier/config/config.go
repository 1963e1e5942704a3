// Package config provides The Financial Frontier configuration management.
package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RobinCoderZhao/frontier/internal/frontier/cache"
	"github.com/RobinCoderZhao/frontier/internal/frontier/endpoint"
	"github.com/RobinCoderZhao/frontier/internal/frontier/fallback"
	"github.com/RobinCoderZhao/frontier/internal/frontier/fetch"
	"github.com/RobinCoderZhao/frontier/internal/frontier/scheduler"
	appconfig "github.com/RobinCoderZhao/frontier/pkg/config"
	"github.com/RobinCoderZhao/frontier/pkg/llm"
)

// FileName is the project-level configuration file.
const FileName = "frontier.yaml"

// Config is the main configuration.
type Config struct {
	// Host is the host the site is served from. Local hosts talk to the
	// providers directly, every other host goes through the proxy.
	Host        string `yaml:"host" env:"FRONTIER_HOST"`
	ProxyURL    string `yaml:"proxy_url" env:"FRONTIER_PROXY_URL"`
	// ProxyScheme is the scheme of the same-origin proxy when ProxyURL is
	// empty. Defaults to https.
	ProxyScheme string `yaml:"proxy_scheme" env:"FRONTIER_PROXY_SCHEME"`

	Providers ProvidersConfig   `yaml:"providers"`
	Cache     CacheConfig       `yaml:"cache"`
	Fetch     fetch.Options     `yaml:"fetch"`
	Refresh   RefreshConfig     `yaml:"refresh"`
	Fallback  fallback.Options  `yaml:"fallback"`
	Feeds     map[string]string `yaml:"feeds"` // source id -> RSS/Atom URL

	RepresentativeImages bool `yaml:"representative_images" env:"FRONTIER_REPRESENTATIVE_IMAGES"`
	EnrichLimit          int  `yaml:"enrich_limit"`

	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	LLM    llm.Config   `yaml:"llm"`
}

// ProvidersConfig locates the upstream APIs for direct mode.
type ProvidersConfig struct {
	News  ProviderConfig `yaml:"news"`
	Image ProviderConfig `yaml:"image"`
	Video ProviderConfig `yaml:"video"`
}

// ProviderConfig is one upstream API.
type ProviderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"api_key"`
	RedirectURL string `yaml:"redirect_url,omitempty"` // image only
}

// CacheConfig holds settings for the result cache.
type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl" env:"FRONTIER_CACHE_TTL"`
	MaxEntries int           `yaml:"max_entries"`
}

// RefreshConfig holds settings for the periodic cache refresh.
type RefreshConfig struct {
	Interval       time.Duration `yaml:"interval" env:"FRONTIER_REFRESH_INTERVAL"`
	WarmCategories []string      `yaml:"warm_categories" env:"FRONTIER_WARM_CATEGORIES"`
}

// ServerConfig holds settings for the serve command.
type ServerConfig struct {
	Addr          string `yaml:"addr" env:"FRONTIER_ADDR"`
	AllowedOrigin string `yaml:"allowed_origin" env:"FRONTIER_ALLOWED_ORIGIN"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`   // debug, info, warn, error
	Format string `yaml:"format" env:"LOG_FORMAT"` // json or text
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	defaults := endpoint.DefaultSettings()
	return Config{
		Host: "localhost",
		Providers: ProvidersConfig{
			News:  ProviderConfig{BaseURL: defaults.News.BaseURL},
			Image: ProviderConfig{BaseURL: defaults.Image.BaseURL, RedirectURL: defaults.ImageRedirectURL},
			Video: ProviderConfig{BaseURL: defaults.Video.BaseURL},
		},
		Cache:   CacheConfig{TTL: cache.DefaultTTL, MaxEntries: cache.DefaultMaxEntries},
		Fetch:   fetch.DefaultOptions(),
		Refresh: RefreshConfig{Interval: scheduler.DefaultInterval, WarmCategories: []string{"business"}},
		Server:  ServerConfig{Addr: ":8080", AllowedOrigin: "*"},
		Log:     LogConfig{Level: "info", Format: "text"},
		LLM:     llm.DefaultConfig(),
	}
}

// Load loads configuration from path. An empty path looks for
// frontier.yaml in the working directory, then ~/.frontier.yaml.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	switch {
	case path != "":
		if err := appconfig.Load(path, &cfg); err != nil {
			return cfg, err
		}
	case fileExists(FileName):
		if err := appconfig.Load(FileName, &cfg); err != nil {
			return cfg, err
		}
	default:
		globalPath := ""
		if home, err := os.UserHomeDir(); err == nil {
			globalPath = filepath.Join(home, "."+FileName)
		}
		if err := appconfig.LoadOrDefault(globalPath, &cfg); err != nil {
			return cfg, err
		}
	}

	// Provider credentials
	if key := os.Getenv("NEWS_KEY"); key != "" {
		cfg.Providers.News.APIKey = key
	}
	if key := os.Getenv("UNSPLASH_KEY"); key != "" {
		cfg.Providers.Image.APIKey = key
	}
	if key := os.Getenv("YOUTUBE_KEY"); key != "" {
		cfg.Providers.Video.APIKey = key
	}

	return cfg, nil
}

// Settings returns the endpoint settings described by c.
func (c Config) Settings() endpoint.Settings {
	return endpoint.Settings{
		ProxyURL:         c.ProxyURL,
		ProxyScheme:      c.ProxyScheme,
		News:             endpoint.Provider{BaseURL: c.Providers.News.BaseURL, APIKey: c.Providers.News.APIKey},
		Image:            endpoint.Provider{BaseURL: c.Providers.Image.BaseURL, APIKey: c.Providers.Image.APIKey},
		Video:            endpoint.Provider{BaseURL: c.Providers.Video.BaseURL, APIKey: c.Providers.Video.APIKey},
		ImageRedirectURL: c.Providers.Image.RedirectURL,
	}
}

// AssistantEnabled reports whether a language model is configured.
func (c Config) AssistantEnabled() bool {
	return c.LLM.APIKey != "" || c.LLM.Provider == llm.Ollama
}

// NewLogger builds the process logger.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(l.Level)}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
