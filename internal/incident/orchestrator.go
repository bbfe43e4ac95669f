package incident

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/incident-response-ai/internal/llm"
	"github.com/wolfman30/incident-response-ai/internal/observability/metrics"
	"github.com/wolfman30/incident-response-ai/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrUpdateNotApplied is returned when an update or regeneration exhausted its
// attempts. Stored artifacts are left as they were.
var ErrUpdateNotApplied = errors.New("incident: update failed, previous version retained")

// Invoker sends a prompt to one provider and returns raw text.
type Invoker interface {
	Invoke(ctx context.Context, cfg llm.ProviderConfig, prompt llm.Prompt, expectJSON bool) (string, error)
}

// PolicySource supplies the current policy corpus.
type PolicySource interface {
	Text() string
}

// StaticPolicies is a fixed policy corpus.
type StaticPolicies string

func (p StaticPolicies) Text() string { return string(p) }

// State is a step of one orchestration run.
type State string

const (
	StateBuilding         State = "building"
	StateInvoking         State = "invoking"
	StateValidating       State = "validating"
	StateSuccess          State = "success"
	StateRetrying         State = "retrying"
	StateFallbackInvoking State = "fallback_invoking"
	StateFailed           State = "failed"
)

const maxAttempts = 2

// Trace records how a run reached its result.
type Trace struct {
	Kind         PromptKind     `json:"kind"`
	Target       Target         `json:"target"`
	Provider     llm.ProviderID `json:"provider"`
	Attempts     int            `json:"attempts"`
	States       []State        `json:"states"`
	FallbackUsed bool           `json:"fallback_used"`
	// RejectedOutput is the last model reply that failed validation, PII scrubbed.
	RejectedOutput string `json:"rejected_output,omitempty"`
	Err            error  `json:"-"`
}

func (t *Trace) enter(s State) { t.States = append(t.States, s) }

// Final returns the terminal state of the run.
func (t Trace) Final() State {
	if len(t.States) == 0 {
		return StateBuilding
	}
	return t.States[len(t.States)-1]
}

// Orchestrator runs build, invoke and validate with one same-provider retry.
// The provider config is supplied per call and never read from shared state.
type Orchestrator struct {
	invoker  Invoker
	policies PolicySource
	builder  PromptBuilder
	fallback FallbackAnalyzer
	metrics  *metrics.LLMMetrics
	tracer   trace.Tracer
	logger   *logging.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

func WithFallbackAnalyzer(f FallbackAnalyzer) OrchestratorOption {
	return func(o *Orchestrator) {
		if f != nil {
			o.fallback = f
		}
	}
}

func WithMetrics(m *metrics.LLMMetrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

func NewOrchestrator(invoker Invoker, policies PolicySource, logger *logging.Logger, opts ...OrchestratorOption) *Orchestrator {
	if invoker == nil {
		panic("incident: invoker cannot be nil")
	}
	if policies == nil {
		policies = StaticPolicies("")
	}
	if logger == nil {
		logger = logging.Default()
	}
	o := &Orchestrator{
		invoker:  invoker,
		policies: policies,
		fallback: MinimalFallback{},
		tracer:   otel.Tracer("incident.internal.incident"),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Analyze produces an analysis for transcript. It always returns a valid
// analysis: when both attempts fail the fallback analyzer answers instead.
func (o *Orchestrator) Analyze(ctx context.Context, cfg llm.ProviderConfig, transcript string) (Analysis, Trace) {
	var result Analysis
	tr := o.run(ctx, cfg, KindInitialAnalysis, TargetAnalysis,
		func() llm.Prompt {
			return o.builder.Build(KindInitialAnalysis, transcript, o.policies.Text(), nil)
		},
		func(raw string) error {
			a, err := ParseAnalysis(raw)
			if err == nil {
				result = a
			}
			return err
		})
	if tr.Final() == StateSuccess {
		o.finish(tr)
		return result, tr
	}

	tr.enter(StateFallbackInvoking)
	tr.FallbackUsed = true
	o.metrics.ObserveFallback(failureClass(tr.Err))
	o.logger.Warn("analysis fell back to rule-based result",
		"provider", cfg.ID, "attempts", tr.Attempts, "error", tr.Err)
	o.finish(tr)
	return o.fallback.Analyze(transcript), tr
}

// Reanalyze revises prior analysis with additional transcript text.
func (o *Orchestrator) Reanalyze(ctx context.Context, cfg llm.ProviderConfig, info, transcript string, prior Analysis) (Analysis, Trace, error) {
	priorJSON, _ := json.Marshal(prior)
	var result Analysis
	tr := o.run(ctx, cfg, KindUpdate, TargetAnalysis,
		func() llm.Prompt {
			return o.builder.Build(KindUpdate, info, o.policies.Text(), &PriorContext{
				Target:     TargetAnalysis,
				Transcript: transcript,
				Artifact:   string(priorJSON),
			})
		},
		func(raw string) error {
			a, err := ParseAnalysis(raw)
			if err == nil {
				result = a
			}
			return err
		})
	if err := o.settle(&tr); err != nil {
		return prior, tr, err
	}
	return result, tr, nil
}

// ReviseReport rewrites base using new information (KindUpdate) or reviewer feedback (KindRegenerateComponent).
func (o *Orchestrator) ReviseReport(ctx context.Context, cfg llm.ProviderConfig, kind PromptKind, text, transcript string, base IncidentReport) (IncidentReport, Trace, error) {
	baseJSON, _ := json.MarshalIndent(base, "", "  ")
	result := base
	tr := o.run(ctx, cfg, kind, TargetReport,
		func() llm.Prompt {
			return o.builder.Build(kind, text, o.policies.Text(), &PriorContext{
				Target:     TargetReport,
				Transcript: transcript,
				Artifact:   string(baseJSON),
			})
		},
		func(raw string) error {
			r, err := ParseReport(raw, base)
			if err == nil {
				result = r
			}
			return err
		})
	if err := o.settle(&tr); err != nil {
		return base, tr, err
	}
	return result, tr, nil
}

// ReviseEmail rewrites base using new information or reviewer feedback.
func (o *Orchestrator) ReviseEmail(ctx context.Context, cfg llm.ProviderConfig, kind PromptKind, text string, analysis Analysis, base EmailDraft) (EmailDraft, Trace, error) {
	baseJSON, _ := json.MarshalIndent(base, "", "  ")
	analysisJSON, _ := json.Marshal(analysis)
	result := base
	tr := o.run(ctx, cfg, kind, TargetEmail,
		func() llm.Prompt {
			return o.builder.Build(kind, text, o.policies.Text(), &PriorContext{
				Target:   TargetEmail,
				Artifact: string(baseJSON),
				Analysis: string(analysisJSON),
			})
		},
		func(raw string) error {
			e, err := ParseEmail(raw, base)
			if err == nil {
				result = e
			}
			return err
		})
	if err := o.settle(&tr); err != nil {
		return base, tr, err
	}
	return result, tr, nil
}

// settle closes out an update-style run: anything but success is reported as not applied.
func (o *Orchestrator) settle(tr *Trace) error {
	if tr.Final() == StateSuccess {
		o.finish(*tr)
		return nil
	}
	tr.enter(StateFailed)
	o.logger.Warn("update not applied", "kind", tr.Kind, "target", tr.Target,
		"provider", tr.Provider, "attempts", tr.Attempts, "error", tr.Err)
	o.finish(*tr)
	return fmt.Errorf("%w: %w", ErrUpdateNotApplied, tr.Err)
}

func (o *Orchestrator) finish(tr Trace) {
	o.metrics.ObserveOutcome(string(tr.Kind), string(tr.Final()))
}

// run drives the invoke/validate loop. It stops after a success, after
// maxAttempts failures, or when ctx ends.
func (o *Orchestrator) run(ctx context.Context, cfg llm.ProviderConfig, kind PromptKind, target Target, build func() llm.Prompt, validate func(raw string) error) Trace {
	ctx, span := o.tracer.Start(ctx, "incident.orchestrate", trace.WithAttributes(
		attribute.String("incident.kind", string(kind)),
		attribute.String("incident.target", string(target)),
		attribute.String("llm.provider", string(cfg.ID)),
	))
	defer span.End()

	tr := Trace{Kind: kind, Target: target, Provider: cfg.ID}
	tr.enter(StateBuilding)
	prompt := build()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			tr.enter(StateRetrying)
		}
		tr.Attempts = attempt
		tr.enter(StateInvoking)

		raw, err := o.invoker.Invoke(ctx, cfg, prompt, true)
		if err == nil {
			tr.enter(StateValidating)
			err = validate(raw)
			if err != nil {
				o.metrics.ObserveValidationFailure(failureClass(err))
				var pf *PartialFailure
				if errors.As(err, &pf) {
					tr.RejectedOutput = ScrubPII(strings.TrimSpace(pf.Raw))
					o.logger.Warn("model output rejected", "kind", kind, "provider", cfg.ID,
						"attempt", attempt, "raw", tr.RejectedOutput)
				}
			}
		}
		if err == nil {
			tr.enter(StateSuccess)
			span.SetAttributes(attribute.Int("incident.attempts", attempt))
			return tr
		}

		tr.Err = err
		span.RecordError(err)
		o.logger.Warn("orchestration attempt failed", "kind", kind, "provider", cfg.ID,
			"attempt", attempt, "error", err)
		if ctx.Err() != nil {
			break
		}
	}

	span.SetStatus(codes.Error, "attempts exhausted")
	span.SetAttributes(attribute.Int("incident.attempts", tr.Attempts))
	return tr
}

func failureClass(err error) string {
	switch {
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrSchemaViolation):
		return "schema_violation"
	case errors.Is(err, llm.ErrProviderTimeout):
		return "provider_timeout"
	case errors.Is(err, llm.ErrProviderUnavailable):
		return "provider_unavailable"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "provider_error"
	}
}
