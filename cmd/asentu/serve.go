package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Asenturisk/asentu-browser/pkg/config"
	"github.com/Asenturisk/asentu-browser/pkg/resolver"
	"github.com/Asenturisk/asentu-browser/pkg/server"
	"github.com/Asenturisk/asentu-browser/pkg/telemetry"
)

func newServeCmd(a *app) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the resolver daemon",
		Long: `Run the resolver daemon that desktop windows query through the ipc backend.

The daemon owns the mapping cache, warms it on start, and reloads the fallback
table when the configuration file changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("listen") {
				a.cfg.Server.Listen = listen
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (host:port or unix:///path), overrides server.listen")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	if a.cfg.Resolver.Backend != config.BackendDirect {
		return fmt.Errorf("serve requires the %s backend, got %q", config.BackendDirect, a.cfg.Resolver.Backend)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName: a.cfg.Telemetry.ServiceName,
		Endpoint:    a.cfg.Telemetry.OTLPEndpoint,
		Insecure:    a.cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			a.logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	direct, err := a.newDirect()
	if err != nil {
		return err
	}

	srv := server.New(direct, server.WithLogger(a.logger), server.WithMetrics(a.metrics))

	a.logger.Info("starting resolver daemon",
		"listen", a.cfg.Server.Listen,
		"mappings_url", a.cfg.Resolver.MappingsURL,
		"cache_ttl", a.cfg.Resolver.CacheTTL.String(),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.ListenAndServe(ctx, a.cfg.Server.Listen)
	})

	g.Go(func() error {
		mapping := direct.Mapping(ctx)
		a.logger.Info("mapping cache warmed", "entries", len(mapping))
		return nil
	})

	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, func(cfg *config.Config) {
			a.applyReload(direct, cfg)
		}, config.WithWatcherLogger(a.logger), config.WithWatcherMetrics(a.metrics))
		if err != nil {
			return err
		}
		g.Go(func() error {
			return w.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		a.logger.Error("resolver daemon stopped", "error", err)
		return err
	}
	a.logger.Info("resolver daemon stopped")
	return nil
}

// applyReload applies the fallback table from a reloaded configuration and
// warns about every other changed setting, which keeps its running value.
func (a *app) applyReload(direct *resolver.Direct, next *config.Config) {
	direct.SetFallback(next.Resolver.FallbackMapping())
	a.logger.Info("fallback table updated", "entries", len(next.Resolver.Fallback))

	if changed := a.cfg.RestartRequired(next); len(changed) > 0 {
		a.logger.Warn("configuration changes require a restart to take effect", "settings", changed)
	}
}
