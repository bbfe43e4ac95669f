package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/incident-response-ai/internal/config"
	"github.com/wolfman30/incident-response-ai/internal/llm"
	"github.com/wolfman30/incident-response-ai/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, analysis quota disabled", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildRegistry seeds the provider registry from the environment.
// Bedrock counts as configured only when both a region and a model id are set.
func BuildRegistry(cfg *appconfig.Config, logger *logging.Logger) *llm.Registry {
	if logger == nil {
		logger = logging.Default()
	}
	active, err := llm.ParseProviderID(cfg.AIProvider)
	if err != nil {
		logger.Warn("unknown AI_PROVIDER, defaulting to openai", "value", cfg.AIProvider)
		active = llm.ProviderOpenAI
	}

	bedrockRegion := ""
	if strings.TrimSpace(cfg.BedrockModelID) != "" {
		bedrockRegion = strings.TrimSpace(cfg.AWSRegion)
	}

	registry := llm.NewRegistry(active,
		llm.ProviderConfig{ID: llm.ProviderOpenAI, Credential: strings.TrimSpace(cfg.OpenAIAPIKey), Model: cfg.OpenAIModel},
		llm.ProviderConfig{ID: llm.ProviderClaude, Credential: strings.TrimSpace(cfg.ClaudeAPIKey), Model: cfg.ClaudeModel},
		llm.ProviderConfig{ID: llm.ProviderGemini, Credential: strings.TrimSpace(cfg.GeminiAPIKey), Model: cfg.GeminiModel},
		llm.ProviderConfig{ID: llm.ProviderBedrock, Credential: bedrockRegion, Model: strings.TrimSpace(cfg.BedrockModelID)},
	)

	status := registry.Status()
	if !status.Configured {
		logger.Warn("active provider has no credential; analyses will use the minimal fallback", "provider", status.ActiveProvider)
	}
	logger.Info("llm providers loaded", "active", status.ActiveProvider, "available", status.Available)
	return registry
}
