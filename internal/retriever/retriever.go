// Package retriever fuses dense (vector) and sparse (lexical) search into
// one deterministic ranked result set: normalize, weight, merge, dedup,
// truncate.
package retriever

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/haiwise/knowledge-cli/internal/model"
)

// Searcher is the capability the retriever consumes from each backend.
// Vector backends report similarity in [0,1] and no content; lexical
// backends report raw overlap scores with content inline.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]model.RetrievedMatch, error)
}

// Weights holds the fusion policy constants for this corpus. The lexical
// score is divided by LexicalScale and clamped to 1.0 before weighting;
// the scale is a fixed constant, not adaptive.
type Weights struct {
	Vector       float64
	Lexical      float64
	LexicalScale float64
}

// DefaultWeights expresses the prior that dense retrieval is more reliable
// than lexical overlap for this corpus.
func DefaultWeights() Weights {
	return Weights{Vector: 0.7, Lexical: 0.3, LexicalScale: 10.0}
}

// Retriever queries the configured backends and fuses their results.
type Retriever struct {
	vector  Searcher
	lexical Searcher
	weights Weights
}

// New creates a Retriever. lexical may be nil, in which case retrieval is
// vector-only regardless of the useLexical flag.
func New(vector Searcher, lexical Searcher, weights Weights) *Retriever {
	if weights.LexicalScale <= 0 {
		weights = DefaultWeights()
	}
	return &Retriever{vector: vector, lexical: lexical, weights: weights}
}

// partial accumulates the per-backend sub-scores for one match identifier
// during fusion. An identifier present in only one backend keeps a zero
// contribution from the other.
type partial struct {
	id          string
	vectorScore float64
	bm25Score   float64
	content     string
}

// Retrieve runs hybrid retrieval for query and returns at most k fused
// documents, deduplicated by source and sorted by score descending.
// Neither backend returning anything is an empty result, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, useLexical bool) ([]model.RetrievedDocument, error) {
	if k <= 0 {
		return nil, nil
	}

	vecMatches, err := r.vector.Search(ctx, query, k)
	if err != nil {
		return nil, eris.Wrap(err, "retriever: vector search")
	}

	var lexMatches []model.RetrievedMatch
	if useLexical && r.lexical != nil {
		lexMatches, err = r.lexical.Search(ctx, query, k)
		if err != nil {
			// Sparse retrieval is an optional enrichment; degrade to
			// vector-only rather than failing the query.
			zap.L().Warn("retriever: lexical search failed, continuing vector-only", zap.Error(err))
			lexMatches = nil
		}
	}

	merged := r.merge(vecMatches, lexMatches)
	deduped := deduplicate(merged)
	if len(deduped) > k {
		deduped = deduped[:k]
	}

	zap.L().Info("retriever: retrieval done",
		zap.Int("vector_matches", len(vecMatches)),
		zap.Int("lexical_matches", len(lexMatches)),
		zap.Int("results", len(deduped)),
	)
	return deduped, nil
}

// merge fuses both match sets into scored documents. The working map is
// insertion-ordered (vector hits first, then lexical-only hits) so equal
// fused scores keep a reproducible order under the stable sort.
func (r *Retriever) merge(vecMatches, lexMatches []model.RetrievedMatch) []model.RetrievedDocument {
	order := make([]string, 0, len(vecMatches)+len(lexMatches))
	byID := make(map[string]*partial, len(vecMatches)+len(lexMatches))

	for _, m := range vecMatches {
		if _, ok := byID[m.ID]; !ok {
			byID[m.ID] = &partial{id: m.ID}
			order = append(order, m.ID)
		}
		byID[m.ID].vectorScore = m.Score
	}
	for _, m := range lexMatches {
		p, ok := byID[m.ID]
		if !ok {
			p = &partial{id: m.ID}
			byID[m.ID] = p
			order = append(order, m.ID)
		}
		p.bm25Score = m.Score
		p.content = m.Content
	}

	docs := make([]model.RetrievedDocument, 0, len(order))
	for _, id := range order {
		p := byID[id]

		normalized := 0.0
		if p.bm25Score > 0 {
			normalized = p.bm25Score / r.weights.LexicalScale
			if normalized > 1.0 {
				normalized = 1.0
			}
		}
		final := r.weights.Vector*p.vectorScore + r.weights.Lexical*normalized

		source, location := model.SplitUnitID(id)
		docs = append(docs, model.RetrievedDocument{
			Content:  p.content,
			Source:   source,
			Location: location,
			Score:    final,
			Metadata: map[string]any{
				"vector_score": p.vectorScore,
				"bm25_score":   p.bm25Score,
			},
		})
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Score > docs[j].Score })
	return docs
}

// deduplicate keeps the first (highest-scored) document per source. The
// dedup key is the source, not the fusion identifier: distinct chunks of
// one source collapse into the best one.
func deduplicate(docs []model.RetrievedDocument) []model.RetrievedDocument {
	seen := make(map[string]bool, len(docs))
	unique := docs[:0:0]
	for _, d := range docs {
		if seen[d.Source] {
			continue
		}
		seen[d.Source] = true
		unique = append(unique, d)
	}
	return unique
}
