// Package llm defines the Provider interface for Large Language Model
// backends used by the correction pipeline.
//
// A provider wraps a remote or local model API (e.g., OpenAI GPT-4o, a
// local Ollama instance) and exposes a uniform completion interface so
// the orchestrator never couples to a specific SDK.
//
// Implementors must be safe for concurrent use.
package llm

import "context"

// Message is one turn of a conversation sent to the model.
type Message struct {
	// Role is "system", "user", or "assistant".
	Role string

	// Content is the text of the message.
	Content string
}

// Usage holds token accounting returned by the backend. Counts are in
// the model's native token unit and differ between providers for the
// same text.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Request carries everything the model needs to produce a completion.
// Messages must be non-empty.
type Request struct {
	// SystemPrompt is an optional high-priority instruction injected
	// before the conversation. Providers without a dedicated system
	// field prepend it as a "system"-role message.
	SystemPrompt string

	// Messages is the ordered conversation. The last message is
	// typically from the "user" role and drives the response.
	Messages []Message

	// Temperature controls output randomness in [0.0, 2.0]. Correction
	// prompts want low values; 0 requests the provider default.
	Temperature float64

	// MaxTokens caps completion length. Zero means provider default.
	MaxTokens int
}

// Response is the model's full reply.
type Response struct {
	Content string
	Usage   Usage
}

// Provider is the abstraction over any LLM backend.
//
// Complete must propagate context cancellation promptly. CountTokens is
// used to pack correction batches under a context budget; results need
// not be exact but should not undercount.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	CountTokens(messages []Message) (int, error)
}

// EstimateTokens is the shared local approximation used by providers
// without a tokenisation API: ~4 chars per token plus per-message
// overhead for role and formatting.
func EstimateTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += (len(m.Content) + 3) / 4
		total += 4
	}
	return total
}
