// Package answer turns a raw, possibly malformed generator response into
// the strict AnswerPayload contract. Parsing never fails: a strict decode
// tier is followed by a repair tier and a plain-text fallback, and every
// tier yields a complete, clamped, citation-validated payload.
package answer

import (
	"encoding/json"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/haiwise/knowledge-cli/internal/model"
)

const (
	// envelopeConfidence is assigned when the response arrived wrapped in
	// a generation API envelope: the model answered, the wrapper is noise.
	envelopeConfidence = 0.9
	// fallbackConfidence is assigned when no structured payload could be
	// recovered at all.
	fallbackConfidence = 0.5
	// maxSynthCitations caps how many retrieved documents are cited when
	// the generator supplied no traceable citations of its own.
	maxSynthCitations = 3
	// maxKeyPoints caps the derived key-point list.
	maxKeyPoints = 5
	// minKeyPointLen discards fragments at or below this many runes.
	minKeyPointLen = 5
)

var (
	bareKeys    = regexp.MustCompile(`([{,]\s*)(\w+)\s*:`)
	fenceOpen   = regexp.MustCompile("^```[a-zA-Z]*\\s*")
	terminators = "。！？；\n"
)

// Parser parses generator responses against a retrieved document set.
type Parser struct{}

// NewParser creates a Parser.
func NewParser() *Parser {
	return &Parser{}
}

// envelope is the generation-API wrapper shape some backends return
// verbatim: a list of choices carrying message or completion text.
type envelope struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
}

// loosePayload is the direct answer shape before backfilling. Pointer
// fields distinguish absent from zero-valued.
type loosePayload struct {
	Answer      *string            `json:"answer"`
	Confidence  *float64           `json:"confidence"`
	Citations   []string           `json:"citations"`
	Notes       *string            `json:"notes"`
	UsedMetrics []model.UsedMetric `json:"used_metrics"`
}

// Parse converts raw into a valid AnswerPayload. It always succeeds; the
// recovery tier taken is reflected in the confidence and notes fields.
func (p *Parser) Parse(raw string, docs []model.RetrievedDocument) model.AnswerPayload {
	// Tier 1: strict decode. Envelope variant first, then direct shape.
	if env, ok := decodeEnvelope(raw); ok {
		return p.fromEnvelope(env, docs)
	}
	if loose, ok := decodeDirect(raw); ok {
		return p.fromDirect(loose, docs)
	}

	// Tier 2: repair.
	if loose, ok := p.repair(raw); ok {
		zap.L().Debug("answer: repaired malformed response")
		return p.fromDirect(loose, docs)
	}

	// Tier 3: fallback.
	zap.L().Warn("answer: response not valid JSON, using fallback", zap.Int("raw_len", len(raw)))
	text := extractAnswerText(raw)
	return model.AnswerPayload{
		Answer:      text,
		Confidence:  fallbackConfidence,
		Citations:   synthesizeCitations(docs),
		KeyPoints:   extractKeyPoints(text),
		Notes:       "raw response was not valid JSON",
		UsedMetrics: []model.UsedMetric{},
	}
}

// decodeEnvelope reports whether raw is a generation API envelope with at
// least one choice.
func decodeEnvelope(raw string) (envelope, bool) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return envelope{}, false
	}
	return env, len(env.Choices) > 0
}

// decodeDirect reports whether raw decodes as a direct answer object.
func decodeDirect(raw string) (loosePayload, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return loosePayload{}, false
	}
	var loose loosePayload
	if err := json.Unmarshal([]byte(trimmed), &loose); err != nil {
		return loosePayload{}, false
	}
	return loose, true
}

// fromEnvelope unwraps the first choice into a payload.
func (p *Parser) fromEnvelope(env envelope, docs []model.RetrievedDocument) model.AnswerPayload {
	content := env.Choices[0].Message.Content
	if content == "" {
		content = env.Choices[0].Text
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return model.AnswerPayload{
			Answer:      model.DefaultAnswer,
			Confidence:  0,
			Citations:   []string{model.NoCitation},
			KeyPoints:   []string{},
			Notes:       "failed to unwrap generation API envelope",
			UsedMetrics: []model.UsedMetric{},
		}
	}

	return model.AnswerPayload{
		Answer:      content,
		Confidence:  envelopeConfidence,
		Citations:   synthesizeCitations(docs),
		KeyPoints:   extractKeyPoints(content),
		Notes:       "direct response from generation API",
		UsedMetrics: []model.UsedMetric{},
	}
}

// fromDirect backfills missing fields, clamps confidence and validates
// citations for a decoded direct-shape payload.
func (p *Parser) fromDirect(loose loosePayload, docs []model.RetrievedDocument) model.AnswerPayload {
	answer := model.DefaultAnswer
	if loose.Answer != nil {
		answer = *loose.Answer
	}

	confidence := 0.0
	if loose.Confidence != nil {
		confidence = clamp01(*loose.Confidence)
	}

	notes := ""
	if loose.Notes != nil {
		notes = *loose.Notes
	}

	metrics := loose.UsedMetrics
	if metrics == nil {
		metrics = []model.UsedMetric{}
	}

	return model.AnswerPayload{
		Answer:      answer,
		Confidence:  confidence,
		Citations:   validateCitations(loose.Citations, docs),
		KeyPoints:   extractKeyPoints(answer),
		Notes:       notes,
		UsedMetrics: metrics,
	}
}

// repair attempts to recover a direct payload from malformed JSON: first
// the largest brace-delimited substring with quote/key coercion, then a
// fenced code-block strip.
func (p *Parser) repair(raw string) (loosePayload, bool) {
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		candidate := raw[start : end+1]
		candidate = strings.ReplaceAll(candidate, "'", `"`)
		candidate = bareKeys.ReplaceAllString(candidate, `$1"$2":`)
		if loose, ok := decodeDirect(candidate); ok {
			return loose, true
		}
	}

	if stripped, ok := stripFence(raw); ok {
		if loose, ok := decodeDirect(stripped); ok {
			return loose, true
		}
	}
	return loosePayload{}, false
}

// stripFence removes a leading/trailing triple-backtick wrapper with an
// optional language tag. Reports whether a fence was present.
func stripFence(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed, false
	}
	trimmed = fenceOpen.ReplaceAllString(trimmed, "")
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed), true
}

// extractAnswerText pulls a best-effort answer string from an unparseable
// response: envelope content, fence-stripped body, or the trimmed raw text.
func extractAnswerText(raw string) string {
	if env, ok := decodeEnvelope(raw); ok {
		content := env.Choices[0].Message.Content
		if content == "" {
			content = env.Choices[0].Text
		}
		if s := strings.TrimSpace(content); s != "" {
			return s
		}
	}

	if stripped, ok := stripFence(raw); ok && stripped != "" {
		return stripped
	}
	if s := strings.TrimSpace(raw); s != "" {
		return s
	}
	return model.DefaultAnswer
}

// validateCitations keeps only citations retraceable to a retrieved
// document, falling back to synthesis when none validate or none were given.
func validateCitations(citations []string, docs []model.RetrievedDocument) []string {
	if len(citations) == 0 {
		return synthesizeCitations(docs)
	}

	var valid []string
	for _, c := range citations {
		for _, d := range docs {
			if strings.Contains(c, d.Source+"#"+d.Location) {
				valid = append(valid, c)
				break
			}
		}
	}
	if len(valid) == 0 {
		return synthesizeCitations(docs)
	}
	return valid
}

// synthesizeCitations cites the top retrieved documents, or the sentinel
// when nothing was retrieved.
func synthesizeCitations(docs []model.RetrievedDocument) []string {
	if len(docs) == 0 {
		return []string{model.NoCitation}
	}
	n := len(docs)
	if n > maxSynthCitations {
		n = maxSynthCitations
	}
	citations := make([]string, n)
	for i := 0; i < n; i++ {
		citations[i] = docs[i].Citation()
	}
	return citations
}

// extractKeyPoints splits the answer on sentence-terminal punctuation and
// newlines, keeping up to maxKeyPoints fragments longer than minKeyPointLen
// runes, in original order.
func extractKeyPoints(answer string) []string {
	if answer == "" || answer == model.DefaultAnswer {
		return []string{}
	}

	fragments := strings.FieldsFunc(answer, func(r rune) bool {
		return strings.ContainsRune(terminators, r)
	})

	points := []string{}
	for _, f := range fragments {
		f = strings.TrimSpace(f)
		if len([]rune(f)) <= minKeyPointLen {
			continue
		}
		points = append(points, f)
		if len(points) == maxKeyPoints {
			break
		}
	}
	return points
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
