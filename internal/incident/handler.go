package incident

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/incident-response-ai/internal/llm"
	"github.com/wolfman30/incident-response-ai/pkg/logging"
)

const maxRequestBody = 1 << 20

// Handler wires HTTP requests to the incident service and provider registry.
type Handler struct {
	service  *Service
	registry *llm.Registry
	logger   *logging.Logger
}

func NewHandler(service *Service, registry *llm.Registry, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, registry: registry, logger: logger}
}

type analyzeRequest struct {
	Transcript string `json:"transcript"`
	SessionID  string `json:"session_id"`
	Metadata   struct {
		SessionID string `json:"session_id"`
	} `json:"metadata"`
}

type analyzeResponse struct {
	SessionID             string         `json:"session_id"`
	AnalysisSummary       string         `json:"analysis_summary"`
	IncidentReport        IncidentReport `json:"incident_report"`
	EmailDraft            EmailDraft     `json:"email_draft"`
	PolicyViolations      []Violation    `json:"policy_violations"`
	Recommendations       []string       `json:"recommendations"`
	NotificationsRequired []string       `json:"notifications_required"`
	RiskAssessments       []string       `json:"risk_assessments"`
	Provider              llm.ProviderID `json:"provider"`
	FallbackUsed          bool           `json:"fallback_used"`
}

// Analyze handles POST /analyze.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !h.decode(w, r, &req) {
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = req.Metadata.SessionID
	}

	res, err := h.service.Analyze(r.Context(), AnalyzeRequest{SessionID: sessionID, Transcript: req.Transcript})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, analyzeResponse{
		SessionID:             res.SessionID,
		AnalysisSummary:       res.Analysis.Summary,
		IncidentReport:        res.Report,
		EmailDraft:            res.Email,
		PolicyViolations:      res.Analysis.Violations,
		Recommendations:       res.Analysis.Recommendations,
		NotificationsRequired: res.Analysis.NotificationsRequired,
		RiskAssessments:       res.Analysis.RiskAssessments,
		Provider:              res.Provider,
		FallbackUsed:          res.FallbackUsed,
	})
}

type updateRequest struct {
	SessionID      string `json:"session_id"`
	NewInformation string `json:"new_information"`
	UpdateType     string `json:"update_type"`
}

type regenerateRequest struct {
	SessionID string `json:"session_id"`
	Feedback  string `json:"feedback"`
}

type updateResponse struct {
	Status           string         `json:"status"`
	UpdateType       UpdateType     `json:"update_type"`
	AnalysisSummary  string         `json:"analysis_summary"`
	IncidentReport   IncidentReport `json:"incident_report"`
	EmailDraft       EmailDraft     `json:"email_draft"`
	PolicyViolations []Violation    `json:"policy_violations"`
	Recommendations  []string       `json:"recommendations"`
	ChangedFields    []string       `json:"changed_fields"`
}

// UpdateAnalysis handles POST /update_analysis.
func (h *Handler) UpdateAnalysis(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.Update(r.Context(), UpdateRequest{
		SessionID:      req.SessionID,
		NewInformation: req.NewInformation,
		UpdateType:     UpdateType(req.UpdateType),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toUpdateResponse(res))
}

// Regenerate handles POST /regenerate/{component}.
func (h *Handler) Regenerate(w http.ResponseWriter, r *http.Request) {
	var req regenerateRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.Regenerate(r.Context(), RegenerateRequest{
		SessionID: req.SessionID,
		Component: chi.URLParam(r, "component"),
		Feedback:  req.Feedback,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toUpdateResponse(res))
}

func toUpdateResponse(res UpdateResult) updateResponse {
	changed := res.ChangedFields
	if changed == nil {
		changed = []string{}
	}
	return updateResponse{
		Status:           "success",
		UpdateType:       res.UpdateType,
		AnalysisSummary:  res.Analysis.Summary,
		IncidentReport:   res.Report,
		EmailDraft:       res.Email,
		PolicyViolations: res.Analysis.Violations,
		Recommendations:  res.Analysis.Recommendations,
		ChangedFields:    changed,
	}
}

// ClearContext handles POST /clear_context.
func (h *Handler) ClearContext(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	cleared := h.service.ClearSession(req.SessionID)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Context cleared",
		"cleared": cleared,
	})
}

// SendEmail handles POST /sessions/{sessionID}/email/send.
func (h *Handler) SendEmail(w http.ResponseWriter, r *http.Request) {
	draft, err := h.service.SendEmail(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "sent", "email_draft": draft})
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.Health())
}

type providersResponse struct {
	ActiveProvider llm.ProviderID            `json:"active_provider"`
	Configured     bool                      `json:"configured"`
	Available      map[llm.ProviderID]bool   `json:"available"`
	Models         map[llm.ProviderID]string `json:"models"`
}

func (h *Handler) providers() providersResponse {
	st := h.registry.Status()
	return providersResponse{
		ActiveProvider: st.ActiveProvider,
		Configured:     st.Configured,
		Available:      st.Available,
		Models:         st.Models,
	}
}

// ListProviders handles GET /providers.
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.providers())
}

// SwitchProvider handles POST /providers/switch.
func (h *Handler) SwitchProvider(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProviderID string `json:"provider_id"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	id, err := llm.ParseProviderID(req.ProviderID)
	if err == nil {
		err = h.registry.SetActive(id)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Info("active provider switched", "provider", id)
	h.writeJSON(w, http.StatusOK, h.providers())
}

// UpdateProviderKey handles POST /admin/providers/keys.
func (h *Handler) UpdateProviderKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProviderID string `json:"provider_id"`
		APIKey     string `json:"api_key"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	id, err := llm.ParseProviderID(req.ProviderID)
	if err == nil {
		err = h.registry.UpdateCredential(id, req.APIKey)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Info("provider credential updated", "provider", id, "cleared", req.APIKey == "")
	h.writeJSON(w, http.StatusOK, h.providers())
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request", "path", r.URL.Path, "error", err)
		h.writeJSON(w, http.StatusBadRequest, errorBody("Invalid request body"))
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := errorBody(err.Error())
	switch {
	case errors.Is(err, ErrUpdateNotApplied):
		status = http.StatusConflict
		body = map[string]any{"status": "failed", "message": "update failed, previous version retained"}
	case errors.Is(err, ErrEmptyTranscript), errors.Is(err, ErrEmptyUpdate),
		errors.Is(err, ErrUnknownUpdateType), errors.Is(err, ErrUnknownComponent),
		errors.Is(err, llm.ErrUnknownProvider):
		status = http.StatusBadRequest
	case errors.Is(err, llm.ErrNotConfigured):
		status = http.StatusConflict
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrNoAnalysis):
		status = http.StatusNotFound
	case errors.Is(err, ErrEmailDisabled):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	h.writeJSON(w, status, body)
}

func errorBody(msg string) map[string]any {
	return map[string]any{"status": "error", "message": msg}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
