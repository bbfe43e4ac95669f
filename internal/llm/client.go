package llm

import "context"

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// Prompt is the provider-neutral instruction pair produced by the prompt builder.
type Prompt struct {
	System string
	User   string
}

// ChatMessage is an internal message representation that can include system prompts.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

type Request struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	// ExpectJSON asks the vendor for a JSON-object response where it supports one.
	ExpectJSON bool
}

type Response struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// Client is one vendor's completion endpoint.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

func requestFromPrompt(model string, p Prompt, maxTokens int32, temperature float32, expectJSON bool) Request {
	req := Request{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		ExpectJSON:  expectJSON,
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: p.User}},
	}
	if p.System != "" {
		req.System = []string{p.System}
	}
	return req
}
