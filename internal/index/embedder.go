// Package index provides the embedding capability and the vector index
// backends consumed by the retriever. Per-unit embedding failures degrade
// to zero vectors so a single bad unit never aborts an index build.
package index

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"math"
	"math/rand"

	"go.uber.org/zap"
)

// DefaultDimension matches the production embedding model.
const DefaultDimension = 1536

// Embedder turns text into a fixed-length vector. Implementations must be
// deterministic for identical input within one index lifetime.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// MockEmbedder produces deterministic pseudo-random unit vectors seeded by
// an md5 digest of the text. It makes offline runs and tests reproducible
// without a network backend.
type MockEmbedder struct {
	dim int
}

// NewMockEmbedder creates a mock embedder; dim <= 0 uses DefaultDimension.
func NewMockEmbedder(dim int) *MockEmbedder {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &MockEmbedder{dim: dim}
}

func (m *MockEmbedder) Dimension() int { return m.dim }

// Embed returns an L2-normalized vector derived from the text digest.
// Identical text always yields an identical vector.
func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	sum := md5.Sum([]byte(text))
	seed := int64(binary.BigEndian.Uint64(sum[:8]))

	rng := rand.New(rand.NewSource(seed))
	vec := make([]float32, m.dim)
	var norm float64
	for i := range vec {
		vec[i] = rng.Float32()
		norm += float64(vec[i]) * float64(vec[i])
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec, nil
}

// fitDimension repairs a dimension mismatch by zero-padding or truncating.
// Required compatibility shim before indexing or searching.
func fitDimension(vec []float32, dim int) []float32 {
	if len(vec) == dim {
		return vec
	}
	zap.L().Warn("index: embedding dimension mismatch",
		zap.Int("want", dim),
		zap.Int("got", len(vec)),
	)
	if len(vec) > dim {
		return vec[:dim]
	}
	out := make([]float32, dim)
	copy(out, vec)
	return out
}

// embedOrZero embeds one unit of content, substituting a zero vector on
// failure so index builds degrade instead of aborting.
func embedOrZero(ctx context.Context, e Embedder, content, id string) []float32 {
	vec, err := e.Embed(ctx, content)
	if err != nil {
		zap.L().Warn("index: embedding failed, using zero vector",
			zap.String("unit", id),
			zap.Error(err),
		)
		return make([]float32, e.Dimension())
	}
	return fitDimension(vec, e.Dimension())
}
