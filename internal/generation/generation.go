// Package generation defines the text generation capability behind the
// answer pipeline and its provider implementations.
package generation

import "context"

// Message is one turn of a chat-style prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator produces a raw model response for a prompt. The response is an
// opaque string; the answer parser deals with whatever shape comes back.
type Generator interface {
	Invoke(ctx context.Context, messages []Message) (string, error)
}

// UserMessage builds a single-turn user prompt.
func UserMessage(content string) []Message {
	return []Message{{Role: "user", Content: content}}
}
