package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChatClient struct {
	last     openai.ChatCompletionRequest
	response openai.ChatCompletionResponse
	err      error
}

func (s *stubChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.last = req
	return s.response, s.err
}

func TestOpenAIClient_Complete(t *testing.T) {
	api := &stubChatClient{response: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: " {\"a\":1} "}, FinishReason: openai.FinishReasonStop}},
		Usage:   openai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}}
	client := newOpenAIClientWithAPI(api)

	resp, err := client.Complete(context.Background(), requestFromPrompt("gpt-test", Prompt{System: "be terse", User: "hi"}, 100, 0.3, true))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, resp.Text)
	assert.Equal(t, int32(15), resp.Usage.TotalTokens)

	require.Len(t, api.last.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, api.last.Messages[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, api.last.Messages[1].Role)
	require.NotNil(t, api.last.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, api.last.ResponseFormat.Type)
}

func TestOpenAIClient_Errors(t *testing.T) {
	client := newOpenAIClientWithAPI(&stubChatClient{err: &openai.APIError{HTTPStatusCode: 401, Message: "bad key"}})
	_, err := client.Complete(context.Background(), Request{Model: "m", Messages: []ChatMessage{{Role: ChatRoleUser, Content: "x"}}})
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 401, perr.StatusCode)

	client = newOpenAIClientWithAPI(&stubChatClient{})
	_, err = client.Complete(context.Background(), Request{Model: "m", Messages: []ChatMessage{{Role: ChatRoleUser, Content: "x"}}})
	require.True(t, errors.As(err, &perr))
	assert.Contains(t, perr.Message, "no choices")
}

func TestAnthropicClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var body anthropicRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-test", body.Model)
		assert.Equal(t, "system text", body.System)
		if assert.Len(t, body.Messages, 1) {
			assert.Equal(t, "user", body.Messages[0].Role)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"{\"summary\":\"x\"}"}],"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":4}}`))
	}))
	defer srv.Close()

	client := NewAnthropicClient("sk-ant", srv.URL)
	resp, err := client.Complete(context.Background(), requestFromPrompt("claude-test", Prompt{System: "system text", User: "hi"}, 100, 0.3, true))
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"x"}`, resp.Text)
	assert.Equal(t, int32(7), resp.Usage.TotalTokens)
}

func TestAnthropicClient_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	_, err := NewAnthropicClient("k", srv.URL).Complete(context.Background(), requestFromPrompt("m", Prompt{User: "hi"}, 10, 0, false))
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusTooManyRequests, perr.StatusCode)
	assert.Contains(t, perr.Message, "slow down")
}

func TestAnthropicClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := NewAnthropicClient("k", srv.URL).Complete(context.Background(), requestFromPrompt("m", Prompt{User: "hi"}, 10, 0, false))
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusOK, perr.StatusCode)
}

type fakeConverseAPI struct {
	input *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
	err   error
}

func (f *fakeConverseAPI) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = params
	return f.out, f.err
}

func TestBedrockClient_Complete(t *testing.T) {
	api := &fakeConverseAPI{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: "{}"}},
		}},
		StopReason: brtypes.StopReasonEndTurn,
		Usage:      &brtypes.TokenUsage{InputTokens: aws.Int32(2), OutputTokens: aws.Int32(1), TotalTokens: aws.Int32(3)},
	}}
	client := NewBedrockClient(api)

	resp, err := client.Complete(context.Background(), requestFromPrompt("anthropic.claude-3-haiku", Prompt{System: "sys", User: "hi"}, 50, 0.2, true))
	require.NoError(t, err)
	assert.Equal(t, "{}", resp.Text)
	assert.Equal(t, int32(3), resp.Usage.TotalTokens)
	assert.Equal(t, "anthropic.claude-3-haiku", aws.ToString(api.input.ModelId))
	assert.Len(t, api.input.System, 1)
	assert.Equal(t, int32(50), aws.ToInt32(api.input.InferenceConfig.MaxTokens))
}

func TestBedrockClient_EmptyOutput(t *testing.T) {
	client := NewBedrockClient(&fakeConverseAPI{out: &bedrockruntime.ConverseOutput{}})
	_, err := client.Complete(context.Background(), requestFromPrompt("m", Prompt{User: "hi"}, 0, -1, false))
	var perr *ProviderError
	assert.True(t, errors.As(err, &perr))
}

func TestDefaultFactory_BedrockDisabled(t *testing.T) {
	f := &DefaultFactory{}
	_, err := f.NewClient(context.Background(), ProviderConfig{ID: ProviderBedrock, Credential: "us-east-1", Model: "m"})
	assert.Error(t, err)

	c, err := f.NewClient(context.Background(), ProviderConfig{ID: ProviderClaude, Credential: "k"})
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, c)
}

func TestFlattenMessages(t *testing.T) {
	got := flattenMessages([]ChatMessage{
		{Role: ChatRoleUser, Content: "first"},
		{Role: ChatRoleAssistant, Content: "reply"},
		{Role: ChatRoleUser, Content: "  "},
	})
	assert.Equal(t, "first\n\nAssistant: reply", got)
}
