// Package faketest provides a deterministic, in-memory engine.Provider for
// driving the driver's seed-suite scenarios without any network access.
// Grounded on the common fake-test-double pattern: a scripted sequence of
// canned responses popped one per Chat call, replayed verbatim so a test can
// assert on exact turn counts and tool-call sequences.
package faketest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/agentcore-go/agentcore/pkg/engine"
)

// ToolCallSpec describes one tool call a scripted turn should emit.
type ToolCallSpec struct {
	ID        string
	Name      string
	Arguments string // raw JSON
}

// Turn is one scripted response to a single Chat call.
type Turn struct {
	Text             string
	ToolCalls        []ToolCallSpec
	StructuredOutput json.RawMessage
	Usage            engine.Usage
	Err              error
}

// Provider replays a fixed script of Turns, one per call to Chat. Calling
// Chat more times than the script provides is an error, surfaced as a
// ChunkError so a test sees it fail loudly rather than hang.
type Provider struct {
	model string

	mu     sync.Mutex
	script []Turn
	calls  int

	// Requests records every Chat invocation's flattened messages, for
	// assertions about what the driver actually sent upstream.
	Requests [][]engine.CompletionMessage
}

// New constructs a Provider that will reply with script[0], script[1], ...
// on successive Chat calls.
func New(model string, script ...Turn) *Provider {
	return &Provider{model: model, script: script}
}

func (p *Provider) Model() string { return p.model }

// CallCount reports how many times Chat has been invoked so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *Provider) Chat(ctx context.Context, messages []engine.CompletionMessage, tools []engine.ToolDefinition, opts engine.ChatOptions) (<-chan engine.ChatChunk, error) {
	p.mu.Lock()
	idx := p.calls
	p.calls++
	p.Requests = append(p.Requests, messages)
	p.mu.Unlock()

	out := make(chan engine.ChatChunk, 4)
	go func() {
		defer close(out)
		if idx >= len(p.script) {
			out <- engine.ChatChunk{Kind: engine.ChunkError, Err: fmt.Errorf("faketest: Chat called %d times, script only has %d turns", idx+1, len(p.script))}
			return
		}
		turn := p.script[idx]
		if turn.Err != nil {
			select {
			case out <- engine.ChatChunk{Kind: engine.ChunkError, Err: turn.Err}:
			case <-ctx.Done():
			}
			return
		}
		if turn.Text != "" {
			out <- engine.ChatChunk{Kind: engine.ChunkContent, Delta: turn.Text}
		}
		for _, tc := range turn.ToolCalls {
			out <- engine.ChatChunk{Kind: engine.ChunkToolCall, ToolCallID: tc.ID, ToolCallName: tc.Name, ToolCallArguments: tc.Arguments}
		}
		if turn.StructuredOutput != nil {
			out <- engine.ChatChunk{Kind: engine.ChunkStructuredOutput, StructuredValue: turn.StructuredOutput}
		}
		out <- engine.ChatChunk{Kind: engine.ChunkUsage, Usage: turn.Usage}
	}()
	return out, nil
}

// GetCost implements engine.CostEstimator with a fixed $0.001/token rate,
// letting sub-agent-inheritance tests assert a non-nil cost is surfaced.
func (p *Provider) GetCost(u engine.Usage) (float64, bool) {
	return float64(u.InputTokens+u.OutputTokens) * 0.001, true
}
