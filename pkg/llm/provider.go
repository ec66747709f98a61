package llm

import (
	"context"
	"fmt"
)

// Provider defines the interface for interacting with LLM backends.
// Implementations handle protocol-specific details such as request formatting,
// authentication, and response parsing. Providers hold no mutable state and
// are safe for unlimited concurrent use.
type Provider interface {
	// Complete sends a chat completion request and returns the full response.
	Complete(ctx context.Context, messages []Message, tools []Tool) (*Response, error)

	// Stream sends a chat completion request and returns a channel of
	// incremental deltas. The channel is closed when the response is done.
	Stream(ctx context.Context, messages []Message, tools []Tool) (<-chan Delta, error)

	// CompleteStructured asks the model for output conforming to schema and
	// unmarshals it into out. Output that cannot be parsed into the schema
	// fails with a *SchemaError; it is never silently coerced.
	CompleteStructured(ctx context.Context, messages []Message, schema Schema, out any) error
}

// Config holds common configuration for LLM providers.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
}

// SchemaError indicates the model produced output that does not conform to
// the requested schema. Callers decide whether to retry.
type SchemaError struct {
	Schema string
	Raw    string
	Err    error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("output does not match schema %q: %v", e.Schema, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}
