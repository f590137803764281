// Package prompt assembles the generation prompt: a role template per agent
// kind, the retrieved context with citation markers, and the question.
package prompt

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/haiwise/knowledge-cli/internal/generation"
	"github.com/haiwise/knowledge-cli/internal/model"
)

// DefaultMaxContextChars bounds the assembled context passed to the
// generator. Counted in runes so CJK corpora are not penalized.
const DefaultMaxContextChars = 3500

const elisionMarker = "\n... [context truncated] ...\n"

// templates maps agent kind to its role preamble. Unknown kinds fall back
// to the dev template.
var templates = map[string]string{
	"dev":     "You are a logistics systems development expert. Answer the question using the context below:\n%s\nQuestion: %s",
	"product": "You are a logistics product expert. Answer the question using the context below:\n%s\nQuestion: %s",
	"test":    "You are a logistics testing expert. Answer the question using the context below:\n%s\nQuestion: %s",
}

// Builder assembles prompts with a fixed context budget.
type Builder struct {
	maxContextChars int
}

// NewBuilder creates a Builder. A non-positive budget gets the default.
func NewBuilder(maxContextChars int) *Builder {
	if maxContextChars <= 0 {
		maxContextChars = DefaultMaxContextChars
	}
	return &Builder{maxContextChars: maxContextChars}
}

// Build renders the prompt for question over docs as a single user message.
// Each document is introduced by its citation marker so the generator can
// cite sources the parser will later validate.
func (b *Builder) Build(question string, docs []model.RetrievedDocument, agent string) []generation.Message {
	var sb strings.Builder
	for _, d := range docs {
		sb.WriteString(fmt.Sprintf("[%s#%s]\n%s\n\n", d.Source, d.Location, d.Content))
	}
	context := b.truncate(sb.String())

	tmpl, ok := templates[agent]
	if !ok {
		tmpl = templates["dev"]
	}
	return generation.UserMessage(fmt.Sprintf(tmpl, context, question))
}

// truncate keeps the head and tail thirds of an oversized context and drops
// the middle, marking the elision.
func (b *Builder) truncate(context string) string {
	runes := []rune(context)
	if len(runes) <= b.maxContextChars {
		return context
	}

	zap.L().Debug("prompt: context truncated",
		zap.Int("chars", len(runes)),
		zap.Int("budget", b.maxContextChars),
	)
	keep := b.maxContextChars / 3
	return string(runes[:keep]) + elisionMarker + string(runes[len(runes)-keep:])
}
