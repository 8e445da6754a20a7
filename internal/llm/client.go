package llm

import "context"

// Request is a single prompt for the chat provider.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Response is the provider's completed output.
type Response struct {
	Content    string
	StopReason string
}

// StreamCallback receives each output increment as it arrives. Returning
// an error stops the stream.
type StreamCallback func(chunk string) error

// Client is the chat/completion provider boundary. Mock implementations
// keep the orchestrator testable without real API calls.
type Client interface {
	Invoke(ctx context.Context, request Request) (*Response, error)
	InvokeStream(ctx context.Context, request Request, callback StreamCallback) (*Response, error)
}
