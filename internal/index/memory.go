package index

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/haiwise/knowledge-cli/internal/model"
)

// FlatIndex is a brute-force in-memory vector index over L2 distance,
// with JSON persistence. Distances are converted to similarity scores in
// (0,1] as 1/(1+distance) so downstream fusion sees a consistent range.
type FlatIndex struct {
	mu       sync.RWMutex
	embedder Embedder
	ids      []string
	vectors  [][]float32
}

// NewFlat creates an empty flat index backed by the given embedder.
func NewFlat(embedder Embedder) *FlatIndex {
	return &FlatIndex{embedder: embedder}
}

// Len reports the number of indexed vectors.
func (x *FlatIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids)
}

// Build replaces the index contents with vectors for the given units.
// Units are processed sequentially; an embedding failure for one unit
// substitutes a zero vector rather than aborting the build.
func (x *FlatIndex) Build(ctx context.Context, units []model.KnowledgeUnit) error {
	x.mu.Lock()
	x.ids = nil
	x.vectors = nil
	x.mu.Unlock()
	return x.Add(ctx, units)
}

// Add appends vectors for the given units to the existing index.
func (x *FlatIndex) Add(ctx context.Context, units []model.KnowledgeUnit) error {
	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "index: add canceled")
		}
		id := u.ID()
		vec := embedOrZero(ctx, x.embedder, u.Content, id)

		x.mu.Lock()
		x.ids = append(x.ids, id)
		x.vectors = append(x.vectors, vec)
		x.mu.Unlock()
	}
	zap.L().Info("index: flat index updated",
		zap.Int("added", len(units)),
		zap.Int("total", x.Len()),
	)
	return nil
}

// Search embeds the query and returns up to k nearest matches. An empty
// index yields an empty result, not an error.
func (x *FlatIndex) Search(ctx context.Context, query string, k int) ([]model.RetrievedMatch, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.ids) == 0 || k <= 0 {
		return nil, nil
	}

	qvec, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "index: embed query")
	}
	qvec = fitDimension(qvec, x.embedder.Dimension())

	type hit struct {
		idx  int
		dist float64
	}
	hits := make([]hit, len(x.vectors))
	for i, v := range x.vectors {
		hits[i] = hit{idx: i, dist: l2Distance(qvec, v)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	if k > len(hits) {
		k = len(hits)
	}
	matches := make([]model.RetrievedMatch, k)
	for i := 0; i < k; i++ {
		matches[i] = model.RetrievedMatch{
			ID:    x.ids[hits[i].idx],
			Score: 1.0 / (1.0 + hits[i].dist),
		}
	}
	return matches, nil
}

// flatSnapshot is the on-disk representation of a FlatIndex.
type flatSnapshot struct {
	Dimension int         `json:"dimension"`
	IDs       []string    `json:"ids"`
	Vectors   [][]float32 `json:"vectors"`
}

// Save writes the index to path as JSON.
func (x *FlatIndex) Save(path string) error {
	x.mu.RLock()
	snap := flatSnapshot{
		Dimension: x.embedder.Dimension(),
		IDs:       x.ids,
		Vectors:   x.vectors,
	}
	x.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "index: marshal snapshot")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "index: write %s", path)
	}
	zap.L().Debug("index: snapshot saved", zap.String("path", path), zap.Int("vectors", len(snap.IDs)))
	return nil
}

// LoadFlat reads a saved index from path. Vectors whose dimension differs
// from the embedder's are repaired by zero-padding or truncation.
func LoadFlat(path string, embedder Embedder) (*FlatIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "index: read %s", path)
	}
	var snap flatSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, eris.Wrapf(err, "index: decode %s", path)
	}

	x := NewFlat(embedder)
	x.ids = snap.IDs
	x.vectors = make([][]float32, len(snap.Vectors))
	for i, v := range snap.Vectors {
		x.vectors[i] = fitDimension(v, embedder.Dimension())
	}
	zap.L().Info("index: snapshot loaded", zap.String("path", path), zap.Int("vectors", len(x.ids)))
	return x, nil
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
