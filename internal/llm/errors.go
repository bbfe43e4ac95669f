package llm

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownProvider     = errors.New("llm: unknown provider")
	ErrNotConfigured       = errors.New("llm: provider not configured")
	ErrProviderUnavailable = errors.New("llm: provider unavailable")
	ErrProviderTimeout     = errors.New("llm: provider timeout")
)

// ProviderError is a non-success result reported by a vendor. StatusCode is
// zero for transport failures and malformed envelopes.
type ProviderError struct {
	Provider   ProviderID
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm: %s error %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("llm: %s error: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ErrorKind classifies err for logs and metrics labels.
func ErrorKind(err error) string {
	var perr *ProviderError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrProviderTimeout):
		return "timeout"
	case errors.Is(err, ErrProviderUnavailable):
		return "unavailable"
	case errors.As(err, &perr):
		return "provider_error"
	default:
		return "error"
	}
}
