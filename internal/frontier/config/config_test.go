package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/RobinCoderZhao/frontier/internal/frontier/endpoint"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Host != "localhost" || cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Fatalf("expected 5m cache TTL, got %v", cfg.Cache.TTL)
	}
	if cfg.Providers.News.BaseURL != "https://newsapi.org" {
		t.Fatalf("unexpected news base URL %q", cfg.Providers.News.BaseURL)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FRONTIER_TEST_PROXY", "https://frontier.example.com/api")
	path := writeFile(t, dir, "frontier.yaml", `
host: frontier.example.com
proxy_url: ${FRONTIER_TEST_PROXY}
cache:
  ttl: 90s
  max_entries: 100
refresh:
  interval: 2m
  warm_categories: [business, technology]
feeds:
  ft: https://www.ft.com/rss/home
fallback:
  site_name: Frontier Test
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ProxyURL != "https://frontier.example.com/api" {
		t.Fatalf("expected expanded proxy url, got %q", cfg.ProxyURL)
	}
	if cfg.Cache.TTL != 90*time.Second || cfg.Cache.MaxEntries != 100 {
		t.Fatalf("unexpected cache config %+v", cfg.Cache)
	}
	if len(cfg.Refresh.WarmCategories) != 2 || cfg.Refresh.Interval != 2*time.Minute {
		t.Fatalf("unexpected refresh config %+v", cfg.Refresh)
	}
	if cfg.Feeds["ft"] != "https://www.ft.com/rss/home" {
		t.Fatalf("unexpected feeds %v", cfg.Feeds)
	}
	if cfg.Fallback.SiteName != "Frontier Test" {
		t.Fatalf("unexpected fallback config %+v", cfg.Fallback)
	}
	// Unset keys keep their defaults.
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.Server.Addr)
	}

	if endpoint.Resolve(cfg.Host, cfg.Settings()).Mode() != endpoint.ModeProxy {
		t.Fatal("expected proxy mode for a public host")
	}
}

func TestLoad_WorkingDirectoryFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, FileName, "server:\n  addr: \":9090\"\n")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("expected :9090, got %q", cfg.Server.Addr)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing explicit config file")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("NEWS_KEY", "n-key")
	t.Setenv("UNSPLASH_KEY", "u-key")
	t.Setenv("YOUTUBE_KEY", "y-key")
	t.Setenv("GEMINI_KEY", "g-key")
	t.Setenv("FRONTIER_CACHE_TTL", "1m")
	t.Setenv("FRONTIER_WARM_CATEGORIES", "business, science")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	s := cfg.Settings()
	if s.News.APIKey != "n-key" || s.Image.APIKey != "u-key" || s.Video.APIKey != "y-key" {
		t.Fatalf("credentials not applied: %+v", s)
	}
	if !cfg.AssistantEnabled() {
		t.Fatal("expected the assistant to be enabled with GEMINI_KEY set")
	}
	if cfg.Cache.TTL != time.Minute {
		t.Fatalf("expected 1m TTL, got %v", cfg.Cache.TTL)
	}
	if strings.Join(cfg.Refresh.WarmCategories, ",") != "business,science" {
		t.Fatalf("unexpected warm categories %v", cfg.Refresh.WarmCategories)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.Log.Level)
	}
}

func TestSettings_SameOriginProxyScheme(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "frontier.example.com"

	p, ok := endpoint.Resolve(cfg.Host, cfg.Settings()).(*endpoint.Proxy)
	if !ok {
		t.Fatal("expected proxy mode")
	}
	if p.BaseURL != "https://frontier.example.com/api" {
		t.Fatalf("expected https same-origin proxy, got %s", p.BaseURL)
	}

	cfg.ProxyScheme = "http"
	if got := endpoint.Resolve(cfg.Host, cfg.Settings()).(*endpoint.Proxy).BaseURL; got != "http://frontier.example.com/api" {
		t.Fatalf("expected configured scheme, got %s", got)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatal("info record should be filtered at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"k":"v"`) {
		t.Fatalf("unexpected output %q", out)
	}
}
