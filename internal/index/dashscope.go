package index

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/haiwise/knowledge-cli/internal/resilience"
	"github.com/haiwise/knowledge-cli/pkg/dashscope"
)

// DashScopeEmbedder embeds text through the DashScope embeddings endpoint.
type DashScopeEmbedder struct {
	client dashscope.Client
	model  string
	dim    int
}

// NewDashScopeEmbedder creates a DashScope-backed embedder; dim <= 0 uses
// DefaultDimension.
func NewDashScopeEmbedder(client dashscope.Client, model string, dim int) *DashScopeEmbedder {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &DashScopeEmbedder{client: client, model: model, dim: dim}
}

func (e *DashScopeEmbedder) Dimension() int { return e.dim }

// Embed returns the embedding vector for a single text. Throttling and
// server-side failures are retried before the error reaches the caller.
func (e *DashScopeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("dashscope", "embeddings")

	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*dashscope.EmbeddingsResponse, error) {
		return e.client.Embeddings(ctx, dashscope.EmbeddingsRequest{
			Model:      e.model,
			Input:      []string{text},
			Dimensions: e.dim,
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "index: embed text")
	}
	if len(resp.Data) == 0 {
		return nil, eris.New("index: embeddings response is empty")
	}
	return resp.Data[0].Embedding, nil
}
