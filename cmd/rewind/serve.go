package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/rewind/examples/users"
	"github.com/platinummonkey/rewind/pkg/api"
	"github.com/platinummonkey/rewind/pkg/config"
	"github.com/platinummonkey/rewind/pkg/migration"
	"github.com/platinummonkey/rewind/pkg/observability"
	"github.com/platinummonkey/rewind/pkg/swagger"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the users API in every declared version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, opts)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, opts *options) error {
	logger := observability.NewLogger(cfg.LogLevel(), nil).WithField("service", cfg.Observability.OTel.ServiceName)

	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel, logger)
	if err != nil {
		return err
	}
	otelMetrics, err := observability.NewOTelMetrics()
	if err != nil {
		return err
	}

	migratorOpts := []migration.Option{
		migration.WithLogger(logger),
		migration.WithOTelMetrics(otelMetrics),
		migration.WithConfig(migration.Config{
			PlanCacheSize: cfg.Versioning.PlanCacheSize,
			PlanCacheTTL:  cfg.Versioning.PlanCacheTTL,
		}),
	}
	serverOpts := []api.Option{
		api.WithLogger(logger),
		api.WithVersionHeader(cfg.Versioning.Header),
		api.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		api.WithTracing(cfg.Observability.OTel.Enabled),
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		serverOpts = append(serverOpts, api.WithCORS(cfg.Server.CORSOrigins...))
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(registry)
		migratorOpts = append(migratorOpts, migration.WithMetrics(metrics))
		serverOpts = append(serverOpts, api.WithMetrics(metrics, registry))
	}

	app, err := users.Build(opts.generationLogger(os.Stderr), metrics, migratorOpts...)
	if err != nil {
		return err
	}

	health := observability.NewHealthChecker(cfg.Observability.OTel.ServiceVersion)
	health.Register("versions", true, func(context.Context) error {
		if len(app.Versioned.Dates()) == 0 {
			return errors.New("no API versions are declared")
		}
		return nil
	})
	docs, err := swagger.NewHandlers(app.Versioned, app.Schemas, swagger.Info{
		Title:       "Users API",
		Description: "Served by rewind; send " + cfg.Versioning.Header + ": YYYY-MM-DD to pick a version.",
	})
	if err != nil {
		return err
	}
	serverOpts = append(serverOpts,
		api.WithChangelog(app.Changelog),
		api.WithHealthChecker(health),
		api.WithDocs(docs),
	)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewServer(app.Versioned, app.Bundle, serverOpts...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	shutdown.Register("otel", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers)
	})
	shutdown.Register("http", srv.Shutdown)

	// A failed listener cancels gctx, which drives the shutdown hooks.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithFields(map[string]interface{}{
			"addr":     srv.Addr,
			"versions": len(app.Bundle.Versions()),
			"header":   cfg.Versioning.Header,
		}).Info("Starting rewind server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return shutdown.Wait(gctx)
	})
	return g.Wait()
}
