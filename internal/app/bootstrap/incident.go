package bootstrap

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/prometheus/client_golang/prometheus"

	appconfig "github.com/wolfman30/incident-response-ai/internal/config"
	"github.com/wolfman30/incident-response-ai/internal/incident"
	"github.com/wolfman30/incident-response-ai/internal/llm"
	"github.com/wolfman30/incident-response-ai/internal/observability/metrics"
	"github.com/wolfman30/incident-response-ai/internal/policies"
	"github.com/wolfman30/incident-response-ai/pkg/logging"
)

// IncidentDeps are the externally constructed pieces BuildIncidentApp needs.
type IncidentDeps struct {
	Logger *logging.Logger
	// AWS is the base SDK config. Nil disables bedrock and SES.
	AWS *aws.Config
	// Registerer receives the LLM metrics. Nil uses the default registry.
	Registerer prometheus.Registerer
	// Factory overrides the SDK-backed client factory, mainly for tests.
	Factory llm.ClientFactory
}

// IncidentApp is the assembled analysis stack.
type IncidentApp struct {
	Registry      *llm.Registry
	Adapter       *llm.Adapter
	Policies      *policies.Store
	Sessions      *incident.SessionStore
	Orchestrator  *incident.Orchestrator
	Service       *incident.Service
	Handler       *incident.Handler
	Metrics       *metrics.LLMMetrics
	EmailProvider string
}

// BuildIncidentApp wires providers, policies, the orchestrator and the HTTP
// handler. When cfg.WatchPolicies is set the policy file is reloaded on change
// until ctx ends.
func BuildIncidentApp(ctx context.Context, cfg *appconfig.Config, deps IncidentDeps) (*IncidentApp, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	registerer := deps.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	llmMetrics := metrics.NewLLMMetrics(registerer)

	factory := deps.Factory
	if factory == nil {
		factory = &llm.DefaultFactory{
			AnthropicBaseURL: cfg.ClaudeBaseURL,
			Bedrock:          bedrockConstructor(deps.AWS),
		}
	}

	registry := BuildRegistry(cfg, logger)
	adapter := llm.NewAdapter(factory, llm.AdapterOptions{
		Timeout:        cfg.LLMTimeout,
		MaxConcurrency: int64(cfg.LLMMaxConcurrency),
		MaxTokens:      int32(cfg.LLMMaxTokens),
		Temperature:    float32(cfg.LLMTemperature),
		Metrics:        llmMetrics,
		Logger:         logger,
	})
	registry.OnCredentialChange(adapter.Invalidate)

	policyStore := policies.NewStore(cfg.PoliciesPath, logger)
	if cfg.WatchPolicies && strings.TrimSpace(cfg.PoliciesPath) != "" {
		if err := policyStore.Watch(ctx); err != nil {
			logger.Warn("policy watch disabled", "path", cfg.PoliciesPath, "error", err)
		}
	}

	orchestrator := incident.NewOrchestrator(adapter, policyStore, logger,
		incident.WithMetrics(llmMetrics),
	)

	recipients, err := cfg.LoadRecipients()
	if err != nil {
		logger.Warn("recipients file ignored, using environment defaults", "error", err)
	}

	sessions := incident.NewSessionStore()
	opts := []incident.ServiceOption{
		incident.WithRecipients(incident.Recipients{
			Supervisor:    recipients.Supervisor,
			RiskAssessor:  recipients.RiskAssessor,
			FamilyContact: recipients.FamilyContact,
			Signature:     recipients.Signature,
		}),
	}

	sender, emailProvider, reason := BuildEmailSender(cfg, deps.AWS, logger)
	if sender != nil {
		opts = append(opts, incident.WithEmailSender(sender))
		logger.Info("email delivery enabled", "provider", emailProvider)
	} else {
		logger.Info("email delivery disabled", "provider", emailProvider, "reason", reason)
	}

	service := incident.NewService(registry, orchestrator, sessions, logger, opts...)

	return &IncidentApp{
		Registry:      registry,
		Adapter:       adapter,
		Policies:      policyStore,
		Sessions:      sessions,
		Orchestrator:  orchestrator,
		Service:       service,
		Handler:       incident.NewHandler(service, registry, logger.With("component", "incident_http")),
		Metrics:       llmMetrics,
		EmailProvider: emailProvider,
	}, nil
}

// Close releases cached vendor clients.
func (a *IncidentApp) Close() error {
	if a == nil || a.Adapter == nil {
		return nil
	}
	return a.Adapter.Close()
}

// bedrockConstructor copies the base AWS config per region so a region change
// through the key endpoint yields a fresh client.
func bedrockConstructor(base *aws.Config) func(ctx context.Context, region string) (llm.BedrockConverseAPI, error) {
	if base == nil {
		return nil
	}
	return func(_ context.Context, region string) (llm.BedrockConverseAPI, error) {
		region = strings.TrimSpace(region)
		if region == "" {
			return nil, errors.New("bootstrap: bedrock region is empty")
		}
		awsCfg := base.Copy()
		awsCfg.Region = region
		return bedrockruntime.NewFromConfig(awsCfg), nil
	}
}
