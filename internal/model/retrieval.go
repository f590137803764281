package model

import (
	"fmt"
	"strings"
)

// RetrievedMatch is a single hit from one search backend. It lives only
// inside a retrieval call; the retriever fuses matches from all backends
// into RetrievedDocuments.
type RetrievedMatch struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Content string  `json:"content,omitempty"`
}

// RetrievedDocument is the fused, public result unit of hybrid retrieval.
// Within one retrieval call, Source values are unique and results are
// sorted by Score descending. Metadata carries the contributing raw
// sub-scores for auditability.
type RetrievedDocument struct {
	Content  string         `json:"content"`
	Source   string         `json:"source"`
	Location string         `json:"location"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// Citation formats the document's provenance anchor.
func (d RetrievedDocument) Citation() string {
	return "[" + d.Source + "#" + d.Location + "]"
}

// UnitID builds the fusion identifier for a chunk of a source.
func UnitID(source string, chunkID int) string {
	return fmt.Sprintf("%s#chunk%d", source, chunkID)
}

// SplitUnitID splits a fusion identifier back into source and location.
// Identifiers without a location component get location "unknown".
func SplitUnitID(id string) (source, location string) {
	if i := strings.LastIndex(id, "#"); i >= 0 {
		return id[:i], id[i+1:]
	}
	return id, "unknown"
}
