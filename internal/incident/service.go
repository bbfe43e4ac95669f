package incident

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/incident-response-ai/internal/llm"
	"github.com/wolfman30/incident-response-ai/internal/notify"
	"github.com/wolfman30/incident-response-ai/pkg/logging"
)

var (
	ErrEmptyTranscript   = errors.New("incident: transcript is required")
	ErrEmptyUpdate       = errors.New("incident: new information is required")
	ErrUnknownUpdateType = errors.New("incident: unknown update type")
	ErrUnknownComponent  = errors.New("incident: unknown component")
	ErrNoAnalysis        = errors.New("incident: session has no analysis yet")
	ErrEmailDisabled     = errors.New("incident: email delivery is disabled")
)

// AnalyzeRequest starts (or restarts) a session from a transcript.
type AnalyzeRequest struct {
	SessionID  string
	Transcript string
}

type AnalyzeResult struct {
	SessionID    string
	Analysis     Analysis
	Report       IncidentReport
	Email        EmailDraft
	Provider     llm.ProviderID
	FallbackUsed bool
}

type UpdateRequest struct {
	SessionID      string
	NewInformation string
	UpdateType     UpdateType
}

type RegenerateRequest struct {
	SessionID string
	Component string
	Feedback  string
}

// UpdateResult carries every artifact after an update or regeneration.
type UpdateResult struct {
	SessionID     string
	UpdateType    UpdateType
	Analysis      Analysis
	Report        IncidentReport
	Email         EmailDraft
	ChangedFields []string
	Provider      llm.ProviderID
}

// Health is the service status shown on the health endpoint.
type Health struct {
	Status         string         `json:"status"`
	ActiveProvider llm.ProviderID `json:"active_provider"`
	Configured     bool           `json:"configured"`
	ActiveSessions int            `json:"active_sessions"`
}

// ParseUpdateType validates raw. An empty value means incident_report.
func ParseUpdateType(raw string) (UpdateType, error) {
	switch t := UpdateType(strings.ToLower(strings.TrimSpace(raw))); t {
	case "":
		return UpdateIncidentReport, nil
	case UpdateIncidentReport, UpdateEmail, UpdateTranscript:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownUpdateType, raw)
	}
}

// Service ties the orchestrator, registry and session store together.
type Service struct {
	registry     *llm.Registry
	orchestrator *Orchestrator
	store        *SessionStore
	recipients   Recipients
	sender       notify.EmailSender
	now          func() time.Time
	logger       *logging.Logger
}

type ServiceOption func(*Service)

func WithRecipients(r Recipients) ServiceOption {
	return func(s *Service) { s.recipients = r.withDefaults() }
}

// WithEmailSender enables SendEmail. Without it delivery is disabled.
func WithEmailSender(sender notify.EmailSender) ServiceOption {
	return func(s *Service) { s.sender = sender }
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(registry *llm.Registry, orchestrator *Orchestrator, store *SessionStore, logger *logging.Logger, opts ...ServiceOption) *Service {
	if registry == nil {
		panic("incident: registry cannot be nil")
	}
	if orchestrator == nil {
		panic("incident: orchestrator cannot be nil")
	}
	if store == nil {
		store = NewSessionStore()
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		registry:     registry,
		orchestrator: orchestrator,
		store:        store,
		recipients:   DefaultRecipients(),
		now:          time.Now,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze runs the initial analysis and replaces every artifact in the
// session. Provider faults never surface here; the fallback answers instead.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResult, error) {
	transcript := s.screen(req.Transcript, "transcript")
	if transcript == "" {
		return AnalyzeResult{}, ErrEmptyTranscript
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	cfg := s.registry.Active()
	s.logger.Info("analyzing transcript", "session_id", sessionID, "provider", cfg.ID,
		"preview", logPreview(transcript))

	analysis, tr := s.orchestrator.Analyze(ctx, cfg, transcript)
	report := DeriveReport(analysis, ExtractFacts(transcript), s.now())
	email := DeriveEmail(analysis, report, s.recipients)

	unlock, err := s.store.Lock(ctx, sessionID)
	if err != nil {
		return AnalyzeResult{}, err
	}
	s.store.GetOrCreate(sessionID)
	_, err = s.store.Update(sessionID, func(sess *Session) error {
		sess.Transcript = transcript
		sess.Analysis = &analysis
		sess.Report = &report
		sess.Email = &email
		sess.LastUpdateType = ""
		sess.LastUpdateInfo = ""
		return nil
	})
	unlock()
	if err != nil {
		return AnalyzeResult{}, fmt.Errorf("incident: store analysis: %w", err)
	}

	s.logger.Info("analysis complete", "session_id", sessionID, "provider", cfg.ID,
		"fallback_used", tr.FallbackUsed, "attempts", tr.Attempts, "violations", len(analysis.Violations))

	return AnalyzeResult{
		SessionID:    sessionID,
		Analysis:     analysis.clone(),
		Report:       report,
		Email:        email.clone(),
		Provider:     cfg.ID,
		FallbackUsed: tr.FallbackUsed,
	}, nil
}

// Update folds new information into one artifact of an existing session.
// Empty text is rejected before any provider call, so the stored session
// stays byte-for-byte identical.
func (s *Service) Update(ctx context.Context, req UpdateRequest) (UpdateResult, error) {
	if strings.TrimSpace(req.NewInformation) == "" {
		return UpdateResult{}, ErrEmptyUpdate
	}
	updateType, err := ParseUpdateType(string(req.UpdateType))
	if err != nil {
		return UpdateResult{}, err
	}
	info := s.screen(req.NewInformation, "new_information")
	if info == "" {
		return UpdateResult{}, ErrEmptyUpdate
	}

	return s.revise(ctx, req.SessionID, updateType, info, KindUpdate)
}

// Regenerate rewrites the report or email using reviewer feedback.
func (s *Service) Regenerate(ctx context.Context, req RegenerateRequest) (UpdateResult, error) {
	var updateType UpdateType
	switch strings.ToLower(strings.TrimSpace(req.Component)) {
	case "report", "incident_report":
		updateType = UpdateIncidentReport
	case "email", "email_draft":
		updateType = UpdateEmail
	default:
		return UpdateResult{}, fmt.Errorf("%w: %q", ErrUnknownComponent, req.Component)
	}
	feedback := s.screen(req.Feedback, "feedback")
	if feedback == "" {
		return UpdateResult{}, ErrEmptyUpdate
	}
	return s.revise(ctx, req.SessionID, updateType, feedback, KindRegenerateComponent)
}

// revise reads the session, asks the model for the new artifact without
// holding the session gate, then commits only if nobody else wrote meanwhile.
// A lost race re-runs the revision on top of the newer version, so
// same-session updates still apply one after another.
func (s *Service) revise(ctx context.Context, sessionID string, updateType UpdateType, text string, kind PromptKind) (UpdateResult, error) {
	cfg := s.registry.Active()
	s.logger.Info("updating session", "session_id", sessionID, "update_type", updateType,
		"kind", kind, "provider", cfg.ID, "preview", logPreview(text))

	for round := 1; ; round++ {
		sess, err := s.load(ctx, sessionID)
		if err != nil {
			return UpdateResult{}, err
		}

		next, changed, err := s.reviseArtifacts(ctx, cfg, sess, updateType, text, kind)
		if err != nil {
			return UpdateResult{}, err
		}

		stored, err := s.commit(ctx, sess.Version, next, updateType, text)
		if errors.Is(err, ErrStaleSession) && round < maxRevisionRounds {
			s.logger.Info("session changed during update, revising again",
				"session_id", sessionID, "update_type", updateType, "round", round)
			continue
		}
		if err != nil {
			return UpdateResult{}, fmt.Errorf("%w: %w", ErrUpdateNotApplied, err)
		}

		if len(changed) == 0 {
			s.logger.Warn("no changes detected in update", "session_id", sessionID, "update_type", updateType)
		} else {
			s.logger.Info("session artifacts updated", "session_id", sessionID, "update_type", updateType, "changed_fields", changed)
		}
		return UpdateResult{
			SessionID:     sessionID,
			UpdateType:    updateType,
			Analysis:      *stored.Analysis,
			Report:        *stored.Report,
			Email:         *stored.Email,
			ChangedFields: changed,
			Provider:      cfg.ID,
		}, nil
	}
}

// maxRevisionRounds bounds how often one update is re-run after losing a
// write race to another update of the same session.
const maxRevisionRounds = 3

func (s *Service) load(ctx context.Context, sessionID string) (Session, error) {
	unlock, err := s.store.Lock(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	defer unlock()

	sess, ok := s.store.Get(sessionID)
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if sess.Analysis == nil || sess.Report == nil || sess.Email == nil {
		return Session{}, ErrNoAnalysis
	}
	return sess, nil
}

func (s *Service) commit(ctx context.Context, version int64, next Session, updateType UpdateType, text string) (Session, error) {
	unlock, err := s.store.Lock(ctx, next.ID)
	if err != nil {
		return Session{}, err
	}
	defer unlock()

	return s.store.Update(next.ID, expectVersion(version, func(cur *Session) error {
		cur.Transcript = next.Transcript
		cur.Analysis = next.Analysis
		cur.Report = next.Report
		cur.Email = next.Email
		cur.LastUpdateType = updateType
		cur.LastUpdateInfo = text
		return nil
	}))
}

// reviseArtifacts computes the replacement artifacts for one update from sess.
// It is the only step that talks to the model.
func (s *Service) reviseArtifacts(ctx context.Context, cfg llm.ProviderConfig, sess Session, updateType UpdateType, text string, kind PromptKind) (Session, []string, error) {
	next := sess.clone()
	var changed []string
	switch updateType {
	case UpdateIncidentReport:
		report, _, err := s.orchestrator.ReviseReport(ctx, cfg, kind, text, sess.Transcript, *sess.Report)
		if err != nil {
			return Session{}, nil, err
		}
		changed = changedFields(*sess.Report, report)
		next.Report = &report

	case UpdateEmail:
		email, _, err := s.orchestrator.ReviseEmail(ctx, cfg, kind, text, *sess.Analysis, *sess.Email)
		if err != nil {
			return Session{}, nil, err
		}
		email = EnsureRecipients(email, *sess.Analysis, s.recipients)
		changed = changedFields(*sess.Email, email)
		next.Email = &email

	case UpdateTranscript:
		analysis, _, err := s.orchestrator.Reanalyze(ctx, cfg, text, sess.Transcript, *sess.Analysis)
		if err != nil {
			return Session{}, nil, err
		}
		combined := combineTranscript(sess.Transcript, text)
		report := DeriveReport(analysis, ExtractFacts(combined), s.now())
		email := DeriveEmail(analysis, report, s.recipients)
		changed = changedFields(*sess.Analysis, analysis)
		next.Transcript = combined
		next.Analysis = &analysis
		next.Report = &report
		next.Email = &email

	default:
		return Session{}, nil, fmt.Errorf("%w: %q", ErrUnknownUpdateType, updateType)
	}
	return next, changed, nil
}

// ClearSession drops all stored context for id.
func (s *Service) ClearSession(id string) bool {
	removed := s.store.Delete(id)
	s.logger.Info("session cleared", "session_id", id, "existed", removed)
	return removed
}

// Session returns a copy of the stored session.
func (s *Service) Session(id string) (Session, error) {
	sess, ok := s.store.Get(id)
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

func (s *Service) Health() Health {
	status := s.registry.Status()
	return Health{
		Status:         "healthy",
		ActiveProvider: status.ActiveProvider,
		Configured:     status.Configured,
		ActiveSessions: s.store.Len(),
	}
}

// SendEmail delivers the stored draft for id through the configured sender.
func (s *Service) SendEmail(ctx context.Context, id string) (EmailDraft, error) {
	if s.sender == nil {
		return EmailDraft{}, ErrEmailDisabled
	}
	sess, ok := s.store.Get(id)
	if !ok {
		return EmailDraft{}, ErrSessionNotFound
	}
	if sess.Email == nil {
		return EmailDraft{}, ErrNoAnalysis
	}
	draft := *sess.Email
	msg := notify.EmailMessage{
		To:          draft.To,
		CC:          draft.CC,
		Subject:     draft.Subject,
		Body:        draft.Body,
		Urgent:      draft.Priority == PriorityHigh,
		Attachments: draft.Attachments,
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return EmailDraft{}, fmt.Errorf("incident: send email: %w", err)
	}
	s.logger.Info("incident email sent", "session_id", id, "recipients", len(draft.To)+len(draft.CC))
	return draft, nil
}

// screen sanitizes caller text and logs any injection signals.
func (s *Service) screen(text, field string) string {
	result := ScanInput(text)
	if len(result.Reasons) > 0 {
		s.logger.Warn("prompt injection signals in input", "field", field,
			"score", result.Score, "reasons", result.Reasons)
	}
	return strings.TrimSpace(result.Sanitized)
}

func combineTranscript(original, addition string) string {
	return fmt.Sprintf("Original Transcript:\n%s\n\nAdditional Transcript Information:\n%s", original, addition)
}

// changedFields lists the top-level JSON fields that differ between before and after.
func changedFields(before, after any) []string {
	var b, a map[string]any
	if raw, err := json.Marshal(before); err == nil {
		_ = json.Unmarshal(raw, &b)
	}
	if raw, err := json.Marshal(after); err == nil {
		_ = json.Unmarshal(raw, &a)
	}
	var changed []string
	for key, v := range a {
		if !reflect.DeepEqual(b[key], v) {
			changed = append(changed, key)
		}
	}
	for key := range b {
		if _, ok := a[key]; !ok {
			changed = append(changed, key)
		}
	}
	sort.Strings(changed)
	return changed
}
