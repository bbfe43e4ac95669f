package llm

import (
	"context"
	"errors"
	"fmt"
)

// ClientFactory builds a vendor client for one provider config.
type ClientFactory interface {
	NewClient(ctx context.Context, cfg ProviderConfig) (Client, error)
}

// ClientFactoryFunc adapts a function to ClientFactory.
type ClientFactoryFunc func(ctx context.Context, cfg ProviderConfig) (Client, error)

func (f ClientFactoryFunc) NewClient(ctx context.Context, cfg ProviderConfig) (Client, error) {
	return f(ctx, cfg)
}

// DefaultFactory builds the real SDK-backed clients.
type DefaultFactory struct {
	AnthropicBaseURL string
	// Bedrock returns a Converse client for the given region. Nil disables bedrock.
	Bedrock func(ctx context.Context, region string) (BedrockConverseAPI, error)
}

func (f *DefaultFactory) NewClient(ctx context.Context, cfg ProviderConfig) (Client, error) {
	switch cfg.ID {
	case ProviderOpenAI:
		return NewOpenAIClient(cfg.Credential), nil
	case ProviderClaude:
		return NewAnthropicClient(cfg.Credential, f.AnthropicBaseURL), nil
	case ProviderGemini:
		return NewGeminiClient(ctx, cfg.Credential)
	case ProviderBedrock:
		if f.Bedrock == nil {
			return nil, errors.New("llm: bedrock client constructor not configured")
		}
		api, err := f.Bedrock(ctx, cfg.Credential)
		if err != nil {
			return nil, fmt.Errorf("llm: bedrock client: %w", err)
		}
		return NewBedrockClient(api), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.ID)
	}
}
