package quota

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

type usageResponse struct {
	ClientID     string     `json:"client_id"`
	Count        int        `json:"count"`
	Max          int        `json:"max"`
	Allowed      bool       `json:"allowed"`
	WindowExpiry *time.Time `json:"window_expiry,omitempty"`
}

// Usage reports the analysis count for the {clientID} URL parameter without
// counting the lookup itself.
func (l *Limiter) Usage(w http.ResponseWriter, r *http.Request) {
	clientID := strings.TrimSpace(chi.URLParam(r, "clientID"))
	if clientID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "client id is required"})
		return
	}
	res, err := l.Stats(r.Context(), clientID)
	if err != nil {
		l.logger.Error("quota usage lookup failed", "client_id", clientID, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "message": "quota store unavailable"})
		return
	}
	out := usageResponse{ClientID: clientID, Count: res.CurrentCount, Max: res.MaxAllowed, Allowed: res.Allowed}
	if !res.WindowExpiry.IsZero() {
		out.WindowExpiry = &res.WindowExpiry
	}
	writeJSON(w, http.StatusOK, out)
}

// ResetUsage clears the counter for the {clientID} URL parameter.
func (l *Limiter) ResetUsage(w http.ResponseWriter, r *http.Request) {
	clientID := strings.TrimSpace(chi.URLParam(r, "clientID"))
	if clientID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "client id is required"})
		return
	}
	if err := l.Reset(r.Context(), clientID); err != nil {
		l.logger.Error("quota reset failed", "client_id", clientID, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "message": "quota store unavailable"})
		return
	}
	l.logger.Info("analysis quota reset", "client_id", clientID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "client_id": clientID})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
