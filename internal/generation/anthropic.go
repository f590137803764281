package generation

import (
	"context"

	"go.uber.org/zap"

	"github.com/haiwise/knowledge-cli/internal/resilience"
	"github.com/haiwise/knowledge-cli/pkg/anthropic"
)

// Anthropic generates responses through the Anthropic messages API. On
// provider failure it degrades to the deterministic mock so a query never
// dies on a transient API error.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	fallback  *Mock
}

// NewAnthropic creates an Anthropic-backed generator.
func NewAnthropic(client anthropic.Client, model string, maxTokens int64) *Anthropic {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &Anthropic{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		fallback:  NewMock(),
	}
}

// Invoke sends the prompt and returns the response text.
func (g *Anthropic) Invoke(ctx context.Context, messages []Message) (string, error) {
	req := anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		Messages:  make([]anthropic.Message, len(messages)),
	}
	for i, m := range messages {
		req.Messages[i] = anthropic.Message{Role: m.Role, Content: m.Content}
	}

	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("anthropic", "create_message")
	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return g.client.CreateMessage(ctx, req)
	})
	if err != nil {
		zap.L().Warn("generation: anthropic call failed, falling back to mock", zap.Error(err))
		return g.fallback.Invoke(ctx, messages)
	}

	resp.Usage.LogCost(g.model, "query")
	return resp.Text(), nil
}
