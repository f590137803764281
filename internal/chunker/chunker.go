// Package chunker splits cleaned document text into bounded,
// semantically-scoped knowledge units: function/method bodies for source
// code, paragraph/section groups for prose. Splitting is deterministic and
// never fails; malformed input degrades to a single raw unit.
package chunker

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/haiwise/knowledge-cli/internal/model"
)

const (
	// DefaultChunkSize is the maximum unit size in characters.
	DefaultChunkSize = 500
	// DefaultOverlap is the number of characters shared between
	// consecutive windows of an oversized unit.
	DefaultOverlap = 50
)

// Boundary recognizers per code language. Each matches the opening of a
// function/method/class definition at the start of a line; the text between
// consecutive openings is one boundary-delimited unit.
var boundaryPatterns = map[string]*regexp.Regexp{
	"python": regexp.MustCompile(`(?m)^[ \t]*(?:def|class)\s+\w+`),
	"java":   regexp.MustCompile(`(?m)^[ \t]*(?:public|private|protected)?\s*(?:static\s+)?[\w<>\[\]]+\s+\w+\s*\([^)\n]*\)\s*\{`),
	"go":     regexp.MustCompile(`(?m)^func\s+(?:\([^)]+\)\s+)?\w+\s*\(`),
}

var (
	paragraphSplit = regexp.MustCompile(`\n[ \t]*\n`)
	atxHeading     = regexp.MustCompile(`^#+\s*\S`)
	setextHeading  = regexp.MustCompile(`(?s)^.+\n[=-]+\s*$`)
)

// Chunker produces KnowledgeUnits from raw text.
type Chunker struct {
	chunkSize int
	overlap   int
}

// New creates a Chunker. Non-positive or inconsistent sizes fall back to
// the defaults; overlap is always kept strictly below the chunk size.
func New(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 10
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}
}

// Split chunks text from source into ordered knowledge units. Code kinds
// are split on definition boundaries; everything else is treated as prose.
func (c *Chunker) Split(text, source, kind string) []model.KnowledgeUnit {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var units []model.KnowledgeUnit
	if _, ok := boundaryPatterns[kind]; ok {
		units = c.splitCode(text, source, kind)
	} else {
		units = c.splitDocument(text, source)
	}

	zap.L().Debug("chunker: split done",
		zap.String("source", source),
		zap.String("kind", kind),
		zap.Int("units", len(units)),
	)
	return units
}

// splitCode slices text at definition boundaries and bounds each slice.
func (c *Chunker) splitCode(text, source, kind string) []model.KnowledgeUnit {
	pattern := boundaryPatterns[kind]

	var blocks []string
	starts := pattern.FindAllStringIndex(text, -1)
	if len(starts) == 0 {
		blocks = []string{text}
	} else {
		// Preamble before the first definition stays retrievable as its
		// own block.
		if starts[0][0] > 0 {
			blocks = append(blocks, text[:starts[0][0]])
		}
		for i, loc := range starts {
			end := len(text)
			if i+1 < len(starts) {
				end = starts[i+1][0]
			}
			blocks = append(blocks, text[loc[0]:end])
		}
	}

	meta := func(chunkID int) map[string]any {
		return map[string]any{
			"type":     string(model.KindCode),
			"language": kind,
			"chunk_id": chunkID,
		}
	}

	var units []model.KnowledgeUnit
	chunkID := 0
	for _, block := range blocks {
		trimmed := strings.TrimSpace(block)
		if trimmed == "" {
			continue
		}
		if runeLen(trimmed) <= c.chunkSize {
			units = append(units, model.KnowledgeUnit{
				Content:  trimmed,
				Source:   source,
				Metadata: meta(chunkID),
			})
			chunkID++
			continue
		}
		for _, content := range c.splitOversized(block) {
			units = append(units, model.KnowledgeUnit{
				Content:  content,
				Source:   source,
				Metadata: meta(chunkID),
			})
			chunkID++
		}
	}
	return units
}

// splitDocument groups blank-line-delimited paragraphs into bounded units,
// tracking the most recent heading as the active section label.
func (c *Chunker) splitDocument(text, source string) []model.KnowledgeUnit {
	paragraphs := paragraphSplit.Split(text, -1)

	var units []model.KnowledgeUnit
	chunkID := 0
	section := ""

	emit := func(content string) {
		units = append(units, model.KnowledgeUnit{
			Content: content,
			Source:  source,
			Metadata: map[string]any{
				"type":     string(model.KindDocument),
				"chunk_id": chunkID,
				"section":  section,
			},
		})
		chunkID++
	}

	var current strings.Builder
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if atxHeading.MatchString(p) || setextHeading.MatchString(p) {
			section = p
		}

		if runeLen(current.String())+runeLen(p) > c.chunkSize && current.Len() > 0 {
			for _, content := range c.boundContents(current.String()) {
				emit(content)
			}
			carry := ""
			if c.overlap > 0 {
				carry = tailRunes(current.String(), c.overlap)
			}
			current.Reset()
			if carry != "" {
				current.WriteString(carry)
				current.WriteString("\n")
			}
			current.WriteString(p)
			current.WriteString("\n")
		} else {
			current.WriteString(p)
			current.WriteString("\n")
		}
	}

	for _, content := range c.boundContents(current.String()) {
		emit(content)
	}
	return units
}

// splitOversized re-splits a block that exceeds the chunk size: first
// line-wise with overlap carry, then fixed windows for anything that still
// does not fit. Every returned content is non-empty and within chunkSize.
func (c *Chunker) splitOversized(block string) []string {
	var out []string
	var current strings.Builder

	flush := func() {
		out = append(out, c.boundContents(current.String())...)
		carry := tailRunes(current.String(), c.overlap)
		current.Reset()
		if carry != "" {
			current.WriteString(carry)
			current.WriteString("\n")
		}
	}

	for _, line := range strings.Split(block, "\n") {
		if runeLen(current.String())+runeLen(line) > c.chunkSize && current.Len() > 0 {
			flush()
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	out = append(out, c.boundContents(current.String())...)
	return out
}

// boundContents trims a buffer and windows it if it still exceeds the
// chunk size, advancing by chunkSize-overlap so consecutive windows share
// an overlap region. Returns nothing for blank buffers.
func (c *Chunker) boundContents(buf string) []string {
	trimmed := strings.TrimSpace(buf)
	if trimmed == "" {
		return nil
	}
	if runeLen(trimmed) <= c.chunkSize {
		return []string{trimmed}
	}

	runes := []rune(trimmed)
	step := c.chunkSize - c.overlap
	var out []string
	for i := 0; i < len(runes); i += step {
		end := i + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		w := strings.TrimSpace(string(runes[i:end]))
		if w != "" {
			out = append(out, w)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}

// tailRunes returns the last n runes of s.
func tailRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(runes[len(runes)-n:]))
}
