// Package observability provides structured logging, Prometheus and OpenTelemetry
// metrics, tracing setup, health checks and graceful shutdown.
//
// # Overview
//
// The migration pipeline and the HTTP server report through this package.
// Nothing here is required: every consumer accepts nil metrics and falls back
// to the global (no-op by default) OpenTelemetry providers.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("api_version", "2024-01-01").Info("request migrated")
//
// Request-scoped loggers travel in the context:
//
//	ctx = observability.WithLogger(ctx, logger)
//	observability.FromContext(ctx).Debug("...")
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
//	router.Use(observability.HTTPMetricsMiddleware(metrics, "X-API-Version"))
//	observability.RegisterMetricsEndpoint(router, prometheus.DefaultGatherer)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "rewind",
//		Insecure:    true,
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers)
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version)
//	checker.Register("routers", true, func(ctx context.Context) error { ... })
//	router.HandleFunc("/healthz", checker.Readiness)
package observability
