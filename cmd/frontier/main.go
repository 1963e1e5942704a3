// Frontier serves and inspects the content of The Financial Frontier.
//
// Usage:
//
//	frontier serve                 # run the JSON API
//	frontier headlines -c business # print top headlines
//	frontier region europe         # print regional news
//	frontier version               # print the version
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/frontier/internal/frontier/cache"
	"github.com/RobinCoderZhao/frontier/internal/frontier/config"
	"github.com/RobinCoderZhao/frontier/internal/frontier/content"
	"github.com/RobinCoderZhao/frontier/internal/frontier/endpoint"
	"github.com/RobinCoderZhao/frontier/internal/frontier/fallback"
	"github.com/RobinCoderZhao/frontier/internal/frontier/fetch"
	"github.com/RobinCoderZhao/frontier/internal/frontier/metrics"
)

var version = "dev"

// globals are the persistent flags shared by every command.
type globals struct {
	configPath string
	host       string
	asJSON     bool

	cfg    config.Config
	logger *slog.Logger
}

func main() {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:           "frontier",
		Short:         "The Financial Frontier content service",
		Long:          "Frontier fetches finance news, images and videos from the configured providers, caches them and serves them to the site.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load()
		},
	}
	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", "", "config file (default frontier.yaml or ~/.frontier.yaml)")
	rootCmd.PersistentFlags().StringVar(&g.host, "host", "", "site host; local hosts call providers directly")
	rootCmd.PersistentFlags().BoolVar(&g.asJSON, "json", false, "print JSON output")

	rootCmd.AddCommand(serveCmd(g))
	rootCmd.AddCommand(headlinesCmd(g))
	rootCmd.AddCommand(searchCmd(g))
	rootCmd.AddCommand(sourceCmd(g))
	rootCmd.AddCommand(regionCmd(g))
	rootCmd.AddCommand(videosCmd(g))
	rootCmd.AddCommand(imageCmd(g))
	rootCmd.AddCommand(askCmd(g))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("frontier %s\n", version)
		},
	}
}

func (g *globals) load() error {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load(g.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if g.host != "" {
		cfg.Host = g.host
	}
	g.cfg = cfg
	g.logger = cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(g.logger)
	return nil
}

// newService wires the content core. m may be nil.
func (g *globals) newService(m *metrics.Metrics) (*content.Service, error) {
	cfg := g.cfg

	store, err := cache.NewStore(cfg.Cache.TTL, cfg.Cache.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	ep := endpoint.Resolve(cfg.Host, cfg.Settings())
	g.logger.Debug("endpoint resolved", "host", cfg.Host, "mode", ep.Mode().String())

	return content.New(
		ep,
		fetch.New(cfg.Fetch, fetch.WithLogger(g.logger)),
		store,
		fallback.New(cfg.Fallback),
		content.WithLogger(g.logger),
		content.WithMetrics(m),
		content.WithFeeds(cfg.Feeds),
		content.WithRepresentativeImages(cfg.RepresentativeImages),
		content.WithEnrichLimit(cfg.EnrichLimit),
	), nil
}
