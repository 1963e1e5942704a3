package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/frontier/internal/api"
	"github.com/RobinCoderZhao/frontier/internal/frontier/assistant"
	"github.com/RobinCoderZhao/frontier/internal/frontier/metrics"
	"github.com/RobinCoderZhao/frontier/internal/frontier/scheduler"
	"github.com/RobinCoderZhao/frontier/pkg/llm"
)

const shutdownTimeout = 5 * time.Second

func serveCmd(g *globals) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON API",
		Long:  "Serve the content API, refresh the cache on a schedule and expose Prometheus metrics at /metrics.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				g.cfg.Server.Addr = addr
			}
			return runServe(cmd.Context(), g)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}

func runServe(ctx context.Context, g *globals) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := g.cfg
	logger := g.logger

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	svc, err := g.newService(m)
	if err != nil {
		return err
	}

	var client llm.Client
	if cfg.AssistantEnabled() {
		client, err = llm.NewClient(cfg.LLM)
		if err != nil {
			return fmt.Errorf("create LLM client: %w", err)
		}
		defer client.Close()
	} else {
		logger.Warn("no language model configured, /api/chat will answer 503")
	}

	server := api.NewServer(svc,
		api.WithAssistant(assistant.New(client, assistant.WithTimeout(cfg.LLM.Timeout), assistant.WithLogger(logger), assistant.WithMetrics(m))),
		api.WithGatherer(reg),
		api.WithWarmCategories(cfg.Refresh.WarmCategories),
		api.WithAllowedOrigin(cfg.Server.AllowedOrigin),
		api.WithLogger(logger),
	)

	sched := scheduler.New(cfg.Refresh.Interval, scheduler.WithLogger(logger), scheduler.RunImmediately())
	sched.Add(scheduler.Job{
		Name: "refresh",
		Fn: func(ctx context.Context) error {
			return svc.Refresh(ctx, cfg.Refresh.WarmCategories)
		},
	})
	go sched.Start(ctx)
	defer sched.Stop()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting API server", "addr", cfg.Server.Addr, "mode", svc.Mode().String(), "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
