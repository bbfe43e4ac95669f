package llm

import (
	"fmt"
	"strings"
)

// ProviderID names a model vendor the adapter can talk to.
type ProviderID string

const (
	ProviderOpenAI  ProviderID = "openai"
	ProviderClaude  ProviderID = "claude"
	ProviderGemini  ProviderID = "gemini"
	ProviderBedrock ProviderID = "bedrock"
)

// KnownProviders is the fixed, ordered set of providers the registry tracks.
var KnownProviders = []ProviderID{ProviderOpenAI, ProviderClaude, ProviderGemini, ProviderBedrock}

// ParseProviderID case-folds and validates a provider name.
func ParseProviderID(raw string) (ProviderID, error) {
	id := ProviderID(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range KnownProviders {
		if id == known {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, raw)
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(id ProviderID) string {
	switch id {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderClaude:
		return "claude-3-opus-20240229"
	case ProviderGemini:
		return "gemini-2.5-flash"
	default:
		return ""
	}
}

// ProviderConfig is an immutable snapshot of one provider's settings.
// For bedrock the credential is the AWS region; requests are signed with the
// ambient AWS credential chain.
type ProviderConfig struct {
	ID         ProviderID
	Credential string
	Model      string
}

// Available reports whether the provider has a usable credential.
func (c ProviderConfig) Available() bool {
	if strings.TrimSpace(c.Credential) == "" {
		return false
	}
	if c.ID == ProviderBedrock && strings.TrimSpace(c.Model) == "" {
		return false
	}
	return true
}

func (c ProviderConfig) model() string {
	if m := strings.TrimSpace(c.Model); m != "" {
		return m
	}
	return DefaultModel(c.ID)
}
