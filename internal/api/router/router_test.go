package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/incident-response-ai/internal/incident"
	"github.com/wolfman30/incident-response-ai/internal/llm"
	"github.com/wolfman30/incident-response-ai/internal/quota"
	"github.com/wolfman30/incident-response-ai/pkg/logging"
)

type staticInvoker struct{ text string }

func (s staticInvoker) Invoke(context.Context, llm.ProviderConfig, llm.Prompt, bool) (string, error) {
	return s.text, nil
}

const analysisJSON = `{"summary":"Fall in the bedroom.","violations":[],"notifications_required":["Supervisor"],"risk_assessments":[],"recommendations":[]}`

func newTestConfig(t *testing.T) *Config {
	t.Helper()
	logger := logging.Default()
	registry := llm.NewRegistry(llm.ProviderOpenAI, llm.ProviderConfig{ID: llm.ProviderOpenAI, Credential: "sk-test"})
	orch := incident.NewOrchestrator(staticInvoker{text: analysisJSON}, incident.StaticPolicies("Section 3"), logger)
	svc := incident.NewService(registry, orch, incident.NewSessionStore(), logger)

	reg := prometheus.NewRegistry()
	return &Config{
		Logger:          logger,
		IncidentHandler: incident.NewHandler(svc, registry, logger),
		AdminAuthSecret: "admin-secret",
		MetricsHandler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		RequestTimeout:  5 * time.Second,
	}
}

func serve(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := New(newTestConfig(t))

	rr := serve(router, http.MethodGet, "/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "healthy" || resp["active_provider"] != "openai" {
		t.Errorf("unexpected health response %v", resp)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
}

func TestRouterRoutesRegistered(t *testing.T) {
	router := New(newTestConfig(t))

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/providers"},
		{http.MethodGet, "/metrics"},
		{http.MethodPost, "/providers/switch"},
		{http.MethodPost, "/analyze"},
		{http.MethodPost, "/update_analysis"},
		{http.MethodPost, "/regenerate/report"},
		{http.MethodPost, "/clear_context"},
		{http.MethodPost, "/sessions/s1/email/send"},
		{http.MethodPost, "/admin/providers/keys"},
	} {
		rr := serve(router, route.method, route.path, "{}", nil)
		if rr.Code == http.StatusNotFound || rr.Code == http.StatusMethodNotAllowed {
			t.Errorf("%s %s: route not registered (got %d)", route.method, route.path, rr.Code)
		}
	}
}

func TestRouterAnalyze(t *testing.T) {
	router := New(newTestConfig(t))

	rr := serve(router, http.MethodPost, "/analyze", `{"transcript":"I fell in the bedroom","session_id":"s1"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["analysis_summary"] != "Fall in the bedroom." {
		t.Errorf("unexpected summary %v", resp["analysis_summary"])
	}
}

func TestRouterAdminRequiresToken(t *testing.T) {
	router := New(newTestConfig(t))
	body := `{"provider_id":"claude","api_key":"sk-ant"}`

	if rr := serve(router, http.MethodPost, "/admin/providers/keys", body, nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	rr := serve(router, http.MethodPost, "/admin/providers/keys", body, map[string]string{"Authorization": "Bearer " + adminToken(t)})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRouterAnalysisQuota(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cfg := newTestConfig(t)
	cfg.AnalysisQuota = quota.NewLimiter(client, quota.Config{MaxPerWindow: 1, Window: time.Hour}, nil)
	router := New(cfg)

	headers := map[string]string{"X-Client-ID": "desk-1"}
	body := `{"transcript":"I fell"}`
	if rr := serve(router, http.MethodPost, "/analyze", body, headers); rr.Code != http.StatusOK {
		t.Fatalf("expected first analysis allowed, got %d", rr.Code)
	}
	if rr := serve(router, http.MethodPost, "/analyze", body, headers); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected quota exceeded, got %d", rr.Code)
	}
	if rr := serve(router, http.MethodGet, "/health", "", headers); rr.Code != http.StatusOK {
		t.Fatalf("health must not count against the quota, got %d", rr.Code)
	}

	if rr := serve(router, http.MethodDelete, "/admin/quota/desk-1", "", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected quota reset to require a token, got %d", rr.Code)
	}
	admin := map[string]string{"Authorization": "Bearer " + adminToken(t)}
	rr := serve(router, http.MethodGet, "/admin/quota/desk-1", "", admin)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"count":2`) {
		t.Fatalf("expected usage count 2, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr := serve(router, http.MethodDelete, "/admin/quota/desk-1", "", admin); rr.Code != http.StatusOK {
		t.Fatalf("expected quota reset, got %d", rr.Code)
	}
	if rr := serve(router, http.MethodPost, "/analyze", body, headers); rr.Code != http.StatusOK {
		t.Fatalf("expected analysis allowed after reset, got %d", rr.Code)
	}
}

func adminToken(t *testing.T) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte("admin-secret"))
	if err != nil {
		t.Fatal(err)
	}
	return token
}
