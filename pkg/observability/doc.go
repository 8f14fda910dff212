// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, health checks and graceful shutdown.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("user_id", id).Info("session refreshed")
//
// Request-scoped loggers carry the correlation id:
//
//	ctx = observability.WithCorrelationID(ctx, id)
//	observability.FromContext(ctx).Warn("view not found")
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.RecordSessionLookup("hit")
//
// Every Record* method accepts a nil receiver, so components can be built
// without metrics in tests.
//
// # Tracing
//
//	tp, err := observability.InitTracing(ctx, cfg, logger)
//	defer observability.ShutdownTracing(ctx, tp)
package observability
