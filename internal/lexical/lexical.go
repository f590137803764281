// Package lexical implements the sparse retrieval backend: a simple
// term-overlap index over knowledge units. Scores are raw overlap counts;
// the retriever normalizes them during fusion.
package lexical

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/haiwise/knowledge-cli/internal/model"
)

// Index is an in-memory lexical index. Unlike the vector backends it
// returns unit content inline with each match.
type Index struct {
	mu   sync.RWMutex
	ids  []string
	docs []string
}

// New creates an empty lexical index.
func New() *Index {
	return &Index{}
}

// Len reports the number of indexed documents.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids)
}

// Build replaces the index contents with the given units.
func (x *Index) Build(units []model.KnowledgeUnit) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.ids = make([]string, len(units))
	x.docs = make([]string, len(units))
	for i, u := range units {
		x.ids[i] = u.ID()
		x.docs[i] = u.Content
	}
	zap.L().Info("lexical: index built", zap.Int("documents", len(units)))
}

// Search scores each document by the number of query terms it contains and
// returns up to k matches with score > 0, highest first. Ties keep
// insertion order so results are reproducible.
func (x *Index) Search(_ context.Context, query string, k int) ([]model.RetrievedMatch, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 || len(x.ids) == 0 || k <= 0 {
		return nil, nil
	}

	var matches []model.RetrievedMatch
	for i, doc := range x.docs {
		lower := strings.ToLower(doc)
		score := 0
		for _, term := range terms {
			if strings.Contains(lower, term) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, model.RetrievedMatch{
				ID:      x.ids[i],
				Score:   float64(score),
				Content: doc,
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// snapshot is the on-disk representation of the index.
type snapshot struct {
	IDs  []string `json:"ids"`
	Docs []string `json:"docs"`
}

// Save writes the index to path as JSON.
func (x *Index) Save(path string) error {
	x.mu.RLock()
	snap := snapshot{IDs: x.ids, Docs: x.docs}
	x.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "lexical: marshal snapshot")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "lexical: write %s", path)
	}
	return nil
}

// Load reads a saved index from path.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "lexical: read %s", path)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, eris.Wrapf(err, "lexical: decode %s", path)
	}
	x := New()
	x.ids = snap.IDs
	x.docs = snap.Docs
	return x, nil
}
