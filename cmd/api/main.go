package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/incident-response-ai/cmd/mainconfig"
	"github.com/wolfman30/incident-response-ai/internal/api/router"
	"github.com/wolfman30/incident-response-ai/internal/app/bootstrap"
	appconfig "github.com/wolfman30/incident-response-ai/internal/config"
	httpmiddleware "github.com/wolfman30/incident-response-ai/internal/http/middleware"
	"github.com/wolfman30/incident-response-ai/internal/quota"
	"github.com/wolfman30/incident-response-ai/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.NewWithOptions(logging.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "incident-api",
	})
	logger.Info("starting incident-response-ai API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var awsCfg *aws.Config
	if loaded, err := mainconfig.LoadAWSConfig(ctx, cfg); err != nil {
		logger.Warn("aws config unavailable; bedrock and ses disabled", "error", err)
	} else {
		awsCfg = &loaded
	}

	metricsHandler, registry := setupMetrics()

	app, err := bootstrap.BuildIncidentApp(ctx, cfg, bootstrap.IncidentDeps{
		Logger:     logger,
		AWS:        awsCfg,
		Registerer: registry,
	})
	if err != nil {
		logger.Error("failed to build incident service", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}

	rateLimiter := setupRateLimiter(cfg)
	if rateLimiter != nil {
		go rateLimiter.Run(ctx.Done(), time.Minute, 10*time.Minute)
	}

	r := router.New(&router.Config{
		Logger:             logger,
		IncidentHandler:    app.Handler,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        rateLimiter,
		AnalysisQuota:      setupQuota(cfg, redisClient, logger),
		RequestTimeout:     cfg.RequestTimeout,
	})

	srv := newServer(cfg, r)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics returns the /metrics handler and the registry the app's
// collectors are registered on.
func setupMetrics() (http.Handler, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), registry
}

func setupRateLimiter(cfg *appconfig.Config) *httpmiddleware.RateLimiter {
	if cfg.RateLimitPerSecond <= 0 {
		return nil
	}
	return httpmiddleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
}

// setupQuota returns nil when Redis is unavailable or the quota is disabled.
func setupQuota(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) *quota.Limiter {
	if redisClient == nil || cfg.AnalysisQuota <= 0 {
		return nil
	}
	return quota.NewLimiter(redisClient, quota.Config{
		MaxPerWindow: cfg.AnalysisQuota,
		Window:       cfg.AnalysisQuotaWindow,
	}, logger)
}

// newServer sizes the write timeout past the per-request deadline so slow
// model calls can still answer with their fallback.
func newServer(cfg *appconfig.Config, handler http.Handler) *http.Server {
	writeTimeout := 15 * time.Second
	if cfg.RequestTimeout > 0 {
		writeTimeout = cfg.RequestTimeout + 10*time.Second
	}
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}
}
