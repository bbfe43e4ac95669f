package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	LogFormat          string
	CORSAllowedOrigins []string
	AdminJWTSecret     string

	// LLM provider configuration
	AIProvider          string
	OpenAIAPIKey        string
	OpenAIModel         string
	ClaudeAPIKey        string
	ClaudeModel         string
	ClaudeBaseURL       string
	GeminiAPIKey        string
	GeminiModel         string
	BedrockModelID      string
	LLMTimeout          time.Duration
	LLMMaxConcurrency   int
	LLMMaxTokens        int
	LLMTemperature      float64
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Policy corpus and recipient directory
	PoliciesPath       string
	WatchPolicies      bool
	RecipientsFile     string
	SupervisorEmail    string
	RiskAssessorEmail  string
	FamilyContactEmail string
	OrganizationName   string

	// Rate limiting
	RateLimitPerSecond  float64
	RateLimitBurst      int
	RedisAddr           string
	RedisPassword       string
	RedisTLS            bool
	AnalysisQuota       int
	AnalysisQuotaWindow time.Duration

	// Email delivery
	EmailDeliveryEnabled bool
	EmailProvider        string
	SendGridAPIKey       string
	SendGridFromEmail    string
	SendGridFromName     string
	SESFromEmail         string

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),

		AIProvider:          strings.ToLower(strings.TrimSpace(getEnv("AI_PROVIDER", "openai"))),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		ClaudeAPIKey:        getEnv("CLAUDE_API_KEY", ""),
		ClaudeModel:         getEnv("CLAUDE_MODEL", "claude-3-opus-20240229"),
		ClaudeBaseURL:       getEnv("CLAUDE_BASE_URL", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		LLMTimeout:          getEnvAsDuration("LLM_TIMEOUT", 25*time.Second),
		LLMMaxConcurrency:   getEnvAsInt("LLM_MAX_CONCURRENCY", 8),
		LLMMaxTokens:        getEnvAsInt("LLM_MAX_TOKENS", 2000),
		LLMTemperature:      getEnvAsFloat("LLM_TEMPERATURE", 0.3),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		PoliciesPath:       getEnv("POLICIES_PATH", ""),
		WatchPolicies:      getEnvAsBool("WATCH_POLICIES", true),
		RecipientsFile:     getEnv("RECIPIENTS_FILE", ""),
		SupervisorEmail:    getEnv("DEFAULT_SUPERVISOR_EMAIL", "supervisor@emmacare.com"),
		RiskAssessorEmail:  getEnv("DEFAULT_RISK_ASSESSOR_EMAIL", "riskassessment@emmacare.com"),
		FamilyContactEmail: getEnv("DEFAULT_FAMILY_CONTACT_EMAIL", "family.contact@emmacare.com"),
		OrganizationName:   getEnv("ORGANIZATION_NAME", "Emma Care Coordination Team"),

		RateLimitPerSecond:  getEnvAsFloat("RATE_LIMIT_PER_SECOND", 5),
		RateLimitBurst:      getEnvAsInt("RATE_LIMIT_BURST", 20),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisTLS:            getEnvAsBool("REDIS_TLS", false),
		AnalysisQuota:       getEnvAsInt("ANALYSIS_QUOTA", 60),
		AnalysisQuotaWindow: getEnvAsDuration("ANALYSIS_QUOTA_WINDOW", time.Hour),

		EmailDeliveryEnabled: getEnvAsBool("EMAIL_DELIVERY_ENABLED", false),
		EmailProvider:        strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey:       getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail:    getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:     getEnv("SENDGRID_FROM_NAME", "Emma Care"),
		SESFromEmail:         getEnv("SES_FROM_EMAIL", ""),

		RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 90*time.Second),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
