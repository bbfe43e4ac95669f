package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/incident-response-ai/internal/config"
	"github.com/wolfman30/incident-response-ai/internal/observability/metrics"
	"github.com/wolfman30/incident-response-ai/pkg/logging"
)

func TestSetupMetricsExposesLLMMetrics(t *testing.T) {
	handler, registry := setupMetrics()
	if handler == nil || registry == nil {
		t.Fatalf("expected non-nil handler and registry")
	}

	llmMetrics := metrics.NewLLMMetrics(registry)
	llmMetrics.ObserveFallback("timeout")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "go_goroutines") {
		t.Fatalf("expected go runtime collector to be exported")
	}
	if !strings.Contains(body, "fallback") {
		t.Fatalf("expected fallback counter to be exported")
	}
}

func TestSetupRateLimiter(t *testing.T) {
	if rl := setupRateLimiter(&appconfig.Config{}); rl != nil {
		t.Fatalf("expected nil limiter when rate is zero")
	}
	if rl := setupRateLimiter(&appconfig.Config{RateLimitPerSecond: 5, RateLimitBurst: 10}); rl == nil {
		t.Fatalf("expected limiter")
	}
}

func TestSetupQuota(t *testing.T) {
	logger := logging.New("error")
	if q := setupQuota(&appconfig.Config{AnalysisQuota: 10}, nil, logger); q != nil {
		t.Fatalf("expected nil quota without redis")
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	if q := setupQuota(&appconfig.Config{}, client, logger); q != nil {
		t.Fatalf("expected nil quota when disabled")
	}
	if q := setupQuota(&appconfig.Config{AnalysisQuota: 10, AnalysisQuotaWindow: time.Hour}, client, logger); q == nil {
		t.Fatalf("expected quota limiter")
	}
}

func TestNewServerWriteTimeoutCoversRequestTimeout(t *testing.T) {
	srv := newServer(&appconfig.Config{Port: "9090", RequestTimeout: 90 * time.Second}, http.NotFoundHandler())
	if srv.Addr != ":9090" {
		t.Fatalf("expected addr :9090, got %s", srv.Addr)
	}
	if srv.WriteTimeout <= 90*time.Second {
		t.Fatalf("expected write timeout beyond request timeout, got %s", srv.WriteTimeout)
	}

	srv = newServer(&appconfig.Config{Port: "8080"}, http.NotFoundHandler())
	if srv.WriteTimeout != 15*time.Second {
		t.Fatalf("expected default write timeout, got %s", srv.WriteTimeout)
	}
}
