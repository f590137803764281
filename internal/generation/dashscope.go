package generation

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/haiwise/knowledge-cli/internal/resilience"
	"github.com/haiwise/knowledge-cli/pkg/dashscope"
)

// DashScope generates responses through the DashScope OpenAI-compatible API.
// The full completion envelope is returned as JSON so the answer parser can
// unwrap it the same way it unwraps other chat-completion payloads. On
// provider failure it degrades to the deterministic mock.
type DashScope struct {
	client    dashscope.Client
	model     string
	maxTokens int
	fallback  *Mock
}

// NewDashScope creates a DashScope-backed generator.
func NewDashScope(client dashscope.Client, model string, maxTokens int) *DashScope {
	return &DashScope{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		fallback:  NewMock(),
	}
}

// Invoke sends the prompt and returns the completion envelope as JSON.
func (g *DashScope) Invoke(ctx context.Context, messages []Message) (string, error) {
	req := dashscope.ChatCompletionRequest{
		Model:    g.model,
		Messages: make([]dashscope.Message, len(messages)),
	}
	if g.maxTokens > 0 {
		req.MaxTokens = &g.maxTokens
	}
	for i, m := range messages {
		req.Messages[i] = dashscope.Message{Role: m.Role, Content: m.Content}
	}

	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("dashscope", "chat_completion")
	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*dashscope.ChatCompletionResponse, error) {
		return g.client.ChatCompletion(ctx, req)
	})
	if err != nil {
		zap.L().Warn("generation: dashscope call failed, falling back to mock", zap.Error(err))
		return g.fallback.Invoke(ctx, messages)
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		zap.L().Warn("generation: marshal completion envelope", zap.Error(err))
		return g.fallback.Invoke(ctx, messages)
	}
	return string(raw), nil
}
