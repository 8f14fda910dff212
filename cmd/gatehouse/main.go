package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/platinummonkey/gatehouse/pkg/api"
	"github.com/platinummonkey/gatehouse/pkg/auth"
	"github.com/platinummonkey/gatehouse/pkg/billing"
	"github.com/platinummonkey/gatehouse/pkg/config"
	"github.com/platinummonkey/gatehouse/pkg/httputil"
	"github.com/platinummonkey/gatehouse/pkg/limits"
	"github.com/platinummonkey/gatehouse/pkg/observability"
	"github.com/platinummonkey/gatehouse/pkg/rbac"
	"github.com/platinummonkey/gatehouse/pkg/storage/postgres"
)

var (
	migrateOnly = flag.Bool("migrate-only", false, "Apply database migrations and exit")
	version     = "dev"
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	ctx := context.Background()

	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    1.0,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing, continuing without it")
	}

	conns, err := postgres.NewConnectionManager(ctx, postgres.ConnectionConfig{
		PrimaryURL:  cfg.Storage.PostgresURL,
		ReplicaURLs: postgres.ParseReplicaURLs(cfg.Storage.PostgresReplicaURLs),
		MaxConns:    cfg.Storage.PostgresMaxConns,
		MinConns:    cfg.Storage.PostgresMinConns,
		Timeout:     cfg.Storage.PostgresTimeout,
		MaxLifetime: cfg.Storage.ConnMaxLifetime,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	applied, err := postgres.RunMigrations(ctx, conns.Primary(), logger)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	logger.WithField("applied", applied).Info("Database schema up to date")
	if *migrateOnly {
		conns.Close()
		return
	}

	var redisClient *redis.Client
	if cfg.Storage.RedisURL != "" {
		redisClient, err = postgres.NewRedisClient(ctx, postgres.RedisConfig{
			URL:      cfg.Storage.RedisURL,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
			PoolSize: cfg.Storage.RedisPoolSize,
		})
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	// Grants and workspaces are read from a replica, writes go to the primary
	reads := rbac.NewSQLStore(conns.Replica())
	writes := rbac.NewSQLStore(conns.Primary())

	sessions, err := newSessionCache(ctx, cfg, redisClient, auth.NewProvisioner(
		auth.NewSQLUserStore(conns.Primary()), writes, logger.WithField("component", "provisioner"),
	), logger, metrics)
	if err != nil {
		log.Fatalf("Failed to initialize sessions: %v", err)
	}

	sweeper, err := auth.NewSweeper(sessions, cfg.Auth.SweepSchedule, logger.WithField("component", "sweeper"))
	if err != nil {
		log.Fatalf("Failed to schedule session sweeps: %v", err)
	}
	sweeper.Start()

	payments := billing.NewCachedLimitsProvider(
		billing.NewSQLPaymentStore(conns.Primary()),
		cfg.Limits.CacheSize,
		cfg.Limits.CacheTTL,
		metrics,
	)

	var notifier limits.Notifier = limits.NewLogNotifier(logger.WithField("component", "limits"))
	if cfg.Limits.SupportWebhookURL != "" {
		notifier = limits.NewWebhookNotifier(cfg.Limits.SupportWebhookURL, &http.Client{Timeout: cfg.Limits.NotifyTimeout})
	}

	checker := limits.NewChecker(limits.Config{
		Provider:      payments,
		Usage:         limits.NewSQLUsage(conns.Replica()),
		SkipLimits:    cfg.Security.SkipLimits,
		Notifier:      notifier,
		NotifyTimeout: cfg.Limits.NotifyTimeout,
		Logger:        logger.WithField("component", "limits"),
		Metrics:       metrics,
	})

	server := api.NewServer(api.Config{
		Sessions:     sessions,
		Store:        reads,
		Limits:       checker,
		Payments:     payments,
		SkipSecurity: cfg.Security.SkipSecurity,
		Logger:       logger,
		Metrics:      metrics,
	})

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := newHealthServer(cfg, conns, redisClient, registry)

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.Register(func(ctx context.Context) error {
		return conns.Close()
	})
	if redisClient != nil {
		shutdown.Register(func(ctx context.Context) error {
			return redisClient.Close()
		})
	}
	if tp != nil {
		shutdown.Register(func(ctx context.Context) error {
			return observability.ShutdownTracing(ctx, tp)
		})
	}
	shutdown.Register(sweeper.Stop)
	shutdown.Register(healthServer.Shutdown)

	go func() {
		logger.Infof("Health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Health server failed")
		}
	}()

	go func() {
		logger.WithFields(map[string]interface{}{
			"addr":          httpServer.Addr,
			"skip_security": cfg.Security.SkipSecurity,
			"skip_limits":   cfg.Security.SkipLimits,
			"log_level":     logger.Level().String(),
			"version":       version,
		}).Info("Starting gatehouse")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	if err := shutdown.WaitForSignal(); err != nil {
		logger.WithError(err).Error("Shutdown completed with errors")
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}

func newSessionCache(ctx context.Context, cfg *config.Config, redisClient *redis.Client, provisioner auth.PrincipalProvisioner, logger *observability.Logger, metrics *observability.Metrics) (*auth.SessionCache, error) {
	sessionCfg := auth.SessionConfig{
		Provisioner:       provisioner,
		VerifiedRefresh:   cfg.Auth.VerifiedRefresh,
		UnverifiedRefresh: cfg.Auth.UnverifiedRefresh,
		VerifyAttempts:    cfg.Auth.VerifyAttempts,
		VerifyDelay:       cfg.Auth.VerifyDelay,
		VerifyTimeout:     cfg.Auth.VerifyTimeout,
		SweepInterval:     cfg.Auth.SweepInterval,
		SkipSecurity:      cfg.Security.SkipSecurity,
		Logger:            logger.WithField("component", "sessions"),
		Metrics:           metrics,
	}

	if !cfg.Security.SkipSecurity {
		discoverCtx, cancel := context.WithTimeout(ctx, cfg.Auth.VerifyTimeout)
		defer cancel()

		verifier, err := auth.NewOIDCVerifier(discoverCtx, cfg.Auth.OIDCIssuer, &http.Client{Timeout: cfg.Auth.VerifyTimeout})
		if err != nil {
			return nil, err
		}
		sessionCfg.Verifier = verifier
	}
	if redisClient != nil {
		sessionCfg.Mirror = auth.NewRedisMirror(redisClient, cfg.Auth.SessionTTLCap)
	}

	return auth.NewSessionCache(sessionCfg), nil
}

func newHealthServer(cfg *config.Config, conns *postgres.ConnectionManager, redisClient *redis.Client, registry *prometheus.Registry) *http.Server {
	health := observability.NewHealthChecker(observability.PingFunc(conns.HealthCheck), redisClient, version)

	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", health.Liveness)
	mux.HandleFunc("/health/ready", health.Readiness)
	if cfg.Observability.MetricsEnabled {
		mux.Handle("/metrics", observability.MetricsHandler(registry))
	}

	return &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           httputil.Chain(httputil.RecoveryMiddleware, httputil.LoggingMiddleware)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
