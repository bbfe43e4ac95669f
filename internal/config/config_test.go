package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("AI_PROVIDER", "")
	t.Setenv("LLM_TIMEOUT", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("BEDROCK_MODEL_ID", "")
	t.Setenv("REDIS_TLS", "")
	t.Setenv("REQUEST_TIMEOUT", "")
	t.Setenv("SHUTDOWN_TIMEOUT", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.AIProvider != "openai" {
		t.Fatalf("expected default provider openai, got %s", cfg.AIProvider)
	}
	if cfg.LLMTimeout != 25*time.Second {
		t.Fatalf("expected default llm timeout, got %s", cfg.LLMTimeout)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("expected wildcard cors default, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.BedrockModelID != "" {
		t.Fatalf("expected default bedrock model empty, got %s", cfg.BedrockModelID)
	}
	if cfg.SupervisorEmail != "supervisor@emmacare.com" {
		t.Fatalf("expected default supervisor email, got %s", cfg.SupervisorEmail)
	}
	if cfg.EmailDeliveryEnabled {
		t.Fatalf("expected email delivery disabled by default")
	}
	if cfg.RedisTLS {
		t.Fatalf("expected redis tls disabled by default")
	}
	if cfg.RequestTimeout != 90*time.Second || cfg.ShutdownTimeout != 30*time.Second {
		t.Fatalf("expected default request/shutdown timeouts, got %s/%s", cfg.RequestTimeout, cfg.ShutdownTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("AI_PROVIDER", " Claude ")
	t.Setenv("CLAUDE_API_KEY", "sk-ant")
	t.Setenv("LLM_TIMEOUT", "15s")
	t.Setenv("LLM_TEMPERATURE", "0.1")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("ANALYSIS_QUOTA", "5")
	t.Setenv("EMAIL_DELIVERY_ENABLED", "true")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.AIProvider != "claude" {
		t.Fatalf("expected normalized provider, got %q", cfg.AIProvider)
	}
	if cfg.ClaudeAPIKey != "sk-ant" {
		t.Fatalf("expected claude key override, got %s", cfg.ClaudeAPIKey)
	}
	if cfg.LLMTimeout != 15*time.Second {
		t.Fatalf("expected timeout override, got %s", cfg.LLMTimeout)
	}
	if cfg.LLMTemperature != 0.1 {
		t.Fatalf("expected temperature override, got %f", cfg.LLMTemperature)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("expected two cors origins, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.AnalysisQuota != 5 {
		t.Fatalf("expected quota override, got %d", cfg.AnalysisQuota)
	}
	if !cfg.EmailDeliveryEnabled {
		t.Fatalf("expected email delivery enabled")
	}
}

func TestLoadRecipientsOverlaysFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recipients.yaml")
	content := "supervisor: lead@care.example\nfamily_contact: \"\"\nsignature: North Team\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write recipients: %v", err)
	}

	cfg := &Config{
		SupervisorEmail:    "supervisor@emmacare.com",
		RiskAssessorEmail:  "riskassessment@emmacare.com",
		FamilyContactEmail: "family.contact@emmacare.com",
		OrganizationName:   "Emma Care Coordination Team",
		RecipientsFile:     path,
	}
	got, err := cfg.LoadRecipients()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Supervisor != "lead@care.example" {
		t.Fatalf("expected supervisor from file, got %s", got.Supervisor)
	}
	if got.FamilyContact != "family.contact@emmacare.com" {
		t.Fatalf("expected blank file entry to keep default, got %s", got.FamilyContact)
	}
	if got.Signature != "North Team" {
		t.Fatalf("expected signature from file, got %s", got.Signature)
	}
}

func TestLoadRecipientsMissingFile(t *testing.T) {
	cfg := &Config{SupervisorEmail: "supervisor@emmacare.com", RecipientsFile: filepath.Join(t.TempDir(), "nope.yaml")}
	got, err := cfg.LoadRecipients()
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
	if got.Supervisor != "supervisor@emmacare.com" {
		t.Fatalf("expected defaults returned on error, got %s", got.Supervisor)
	}
}
