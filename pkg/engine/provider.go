package engine

import (
	"context"
	"encoding/json"
)

// CompletionMessage is the provider-facing view of one log message,
// flattened to role + content the way chat-completion APIs expect it.
type CompletionMessage struct {
	Role    string // "system" | "user" | "assistant" | "tool"
	Content string
	// ToolCallID is set on tool-result messages being replayed to the provider.
	ToolCallID string
	// ToolCalls is set on assistant messages being replayed to the provider.
	ToolCalls []ToolCall
}

// ChatOptions carries the per-call knobs the driver passes to a provider.
type ChatOptions struct {
	SystemInstruction string
	OutputSchema      json.RawMessage
}

// ChunkKind tags the variant of one streamed ChatChunk.
type ChunkKind string

const (
	ChunkContent          ChunkKind = "content"
	ChunkToolCall         ChunkKind = "tool_call"
	ChunkStructuredOutput ChunkKind = "structured_output"
	ChunkUsage            ChunkKind = "usage"
	ChunkError            ChunkKind = "error"
)

// ChatChunk is one element of a provider's lazy, single-pass chunk stream.
// Exactly the field(s) matching Kind are populated.
type ChatChunk struct {
	Kind ChunkKind

	// ChunkContent
	Delta string

	// ChunkToolCall: arguments is a fragment of streamed JSON and must be
	// concatenated by id across chunks sharing the same ID.
	ToolCallID        string
	ToolCallName      string
	ToolCallArguments string

	// ChunkStructuredOutput
	StructuredValue json.RawMessage

	// ChunkUsage: last-observed values are authoritative.
	Usage Usage

	// ChunkError
	Err error
}

// Provider is the streaming chat interface every concrete LLM vendor
// adapter implements. Chat returns a channel; the caller must drain it to
// completion or cancel via ctx.
type Provider interface {
	Model() string
	Chat(ctx context.Context, messages []CompletionMessage, tools []ToolDefinition, opts ChatOptions) (<-chan ChatChunk, error)
}

// CostEstimator is optionally implemented by a Provider to report a USD
// cost estimate for a given usage.
type CostEstimator interface {
	GetCost(u Usage) (float64, bool)
}

// AbortedMessage is the exact message, "Operation aborted", of a fatal
// provider error that the driver converts into a clean Aborted
// result rather than propagating it as an exception (§4.6.1).
const AbortedMessage = "Operation aborted"

// IsAborted reports whether an error's message matches the driver's
// recognized abort sentinel text.
func IsAborted(err error) bool {
	return err != nil && err.Error() == AbortedMessage
}
