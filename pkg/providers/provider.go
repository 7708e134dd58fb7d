package providers

import "context"

// Message is one turn of a chat completion request.
type Message struct {
	Role    string `json:"role"` // system | user | assistant
	Content string `json:"content"`
}

// LLMResponse is a completed (non-streaming) generation.
type LLMResponse struct {
	Content      string
	FinishReason string
}

// Fragment is one chunk of a streaming generation. A non-nil Err terminates
// the stream; the channel is closed afterwards. Streams are single-pass,
// forward-only and never end silently: the consumer always observes either
// normal close, an Err fragment, or its own context cancellation.
type Fragment struct {
	Text string
	Err  error
}

// LLMProvider is the text-generation capability. Both calls honor context
// cancellation and timeouts.
type LLMProvider interface {
	Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (*LLMResponse, error)
	ChatStream(ctx context.Context, messages []Message, model string, options map[string]interface{}) (<-chan Fragment, error)
}
