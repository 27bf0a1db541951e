// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// LLMService phrases routing replies and summarises retrieved passages for
// the patient. It is optional: without one the conversation answers from
// fixed templates, and a failed call falls back the same way.
type LLMService interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// Chat sends a conversation. Adapters whose API has no system role lift
	// system messages into the provider's system field.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)

	ModelName() string

	// Ping checks credentials and reachability without generating tokens
	// where the provider allows it.
	Ping(ctx context.Context) error

	Close() error
}

// GenerateOptions tunes a single-prompt completion. Zero values use the
// provider's defaults.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
	StopWords   []string
}

// ChatMessage is one turn. Role is "system", "user" or "assistant".
type ChatMessage struct {
	Role    string
	Content string
}

// ChatOptions tunes a chat completion. Zero values use the provider's
// defaults.
type ChatOptions struct {
	MaxTokens   int
	Temperature float64
}
