package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	const reviewUI = "https://review.emmacare.com"

	tests := []struct {
		name        string
		allowed     []string
		method      string
		origin      string
		preflight   bool
		wantStatus  int
		wantOrigin  string
		wantHandler bool
	}{
		{name: "listed origin", allowed: []string{reviewUI}, method: http.MethodPost, origin: reviewUI, wantStatus: http.StatusOK, wantOrigin: reviewUI, wantHandler: true},
		{name: "case and trailing slash ignored", allowed: []string{reviewUI + "/"}, method: http.MethodGet, origin: "https://Review.EmmaCare.com", wantStatus: http.StatusOK, wantOrigin: "https://Review.EmmaCare.com", wantHandler: true},
		{name: "unknown origin passes through without headers", allowed: []string{reviewUI}, method: http.MethodGet, origin: "https://unknown.example", wantStatus: http.StatusOK, wantHandler: true},
		{name: "no origin header", allowed: []string{"*"}, method: http.MethodGet, wantStatus: http.StatusOK, wantHandler: true},
		{name: "wildcard echoes origin", allowed: []string{"*"}, method: http.MethodGet, origin: "https://random.example", wantStatus: http.StatusOK, wantOrigin: "https://random.example", wantHandler: true},
		{name: "preflight allowed", allowed: []string{reviewUI}, method: http.MethodOptions, origin: reviewUI, preflight: true, wantStatus: http.StatusNoContent, wantOrigin: reviewUI},
		{name: "preflight rejected", allowed: []string{reviewUI}, method: http.MethodOptions, origin: "https://evil.example", preflight: true, wantStatus: http.StatusForbidden},
		{name: "bare options is not a preflight", allowed: []string{reviewUI}, method: http.MethodOptions, origin: reviewUI, wantStatus: http.StatusOK, wantOrigin: reviewUI, wantHandler: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(tt.method, "/analyze", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()

			CORS(tt.allowed)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantHandler, called)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantOrigin != "" {
				assert.Equal(t, corsAllowedMethods, rec.Header().Get("Access-Control-Allow-Methods"))
				assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Client-ID")
				assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Retry-After")
			}
		})
	}
}
