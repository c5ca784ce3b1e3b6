// Package llm defines the Provider interface for the text-generation
// collaborator used by the debate engine.
//
// A Provider wraps a remote or local model API (OpenAI, Anthropic, a local
// Ollama instance, …) behind a single Complete call. The engine never streams
// output and never offers tools — a debate turn is consumed whole — so the
// interface is deliberately small.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly. Every call site in the engine pairs a Complete call
// with a deterministic fallback: a Provider error degrades a turn, it never
// ends a session.
package llm

import "context"

// Message is a single entry in the conversation history sent to the model.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string

	// Name is an optional speaker name for multi-speaker contexts.
	Name string
}

// Usage holds token accounting returned by the backend. Counts are in the
// model's native token unit and may differ between providers for the same text.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a response.
// A zero-value request is invalid; at minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history. The last message is
	// typically from the "user" role and drives the response.
	Messages []Message

	// SystemPrompt is an optional high-priority instruction injected before
	// the conversation history. Providers without a dedicated system slot
	// prepend it as a "system"-role message.
	SystemPrompt string

	// Temperature controls output randomness in [0.0, 2.0]. Zero requests
	// the provider default.
	Temperature float64

	// MaxTokens caps completion length. Zero means the provider default.
	MaxTokens int

	// ForceJSON asks the model to respond with a single JSON document.
	// Providers enforce this as far as their API allows; callers must still
	// parse defensively and fall back on malformed output.
	ForceJSON bool
}

// CompletionResponse is the full model reply for one request.
type CompletionResponse struct {
	// Content is the text of the reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any text-generation backend.
//
// Implementations must be safe for concurrent use from multiple goroutines.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails or ctx is cancelled first.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
