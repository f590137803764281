package model

// ContentKind classifies the origin of a knowledge unit.
type ContentKind string

const (
	KindCode     ContentKind = "code"
	KindDocument ContentKind = "document"
)

// KnowledgeUnit is an immutable retrievable fragment produced by the chunker.
// Content is never empty and never exceeds the configured chunk size except
// when a single atomic construct cannot be split any smaller.
type KnowledgeUnit struct {
	Content  string         `json:"content"`
	Source   string         `json:"source"`
	Metadata map[string]any `json:"metadata"`
}

// ID returns the unit's stable fusion identifier: source plus the
// per-source chunk sequence number. Retrieval backends key matches by it;
// the retriever later splits it back apart for citation anchors.
func (u KnowledgeUnit) ID() string {
	return UnitID(u.Source, u.ChunkID())
}

// ChunkID returns the unit's sequence index within its source, or 0 when
// the metadata is missing or malformed.
func (u KnowledgeUnit) ChunkID() int {
	switch v := u.Metadata["chunk_id"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
