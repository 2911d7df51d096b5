// Package openai is an example Provider Adapter (C5) satisfying
// engine.Provider against the OpenAI chat-completions streaming API,
// demonstrating the tagged-chunk contract against a real vendor SDK.
// Concrete provider transports are an external collaborator per this
// engine's scope (§1); this package exists to show the shape one takes.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentcore-go/agentcore/pkg/engine"
	gopenai "github.com/sashabaranov/go-openai"
)

// Provider adapts go-openai's streaming chat-completions client to
// engine.Provider.
type Provider struct {
	client *gopenai.Client
	model  string
}

// New constructs a Provider for the given model using apiKey.
func New(apiKey, model string) *Provider {
	return &Provider{client: gopenai.NewClient(apiKey), model: model}
}

func (p *Provider) Model() string { return p.model }

func (p *Provider) Chat(ctx context.Context, messages []engine.CompletionMessage, tools []engine.ToolDefinition, opts engine.ChatOptions) (<-chan engine.ChatChunk, error) {
	req := gopenai.ChatCompletionRequest{
		Model:    p.model,
		Messages: toOpenAIMessages(messages, opts.SystemInstruction),
		Tools:    toOpenAITools(tools),
		Stream:   true,
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai: starting stream: %w", err)
	}

	out := make(chan engine.ChatChunk)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if err != nil {
				if err.Error() == "EOF" {
					return
				}
				select {
				case out <- engine.ChatChunk{Kind: engine.ChunkError, Err: err}:
				case <-ctx.Done():
				}
				return
			}
			for _, choice := range resp.Choices {
				if choice.Delta.Content != "" {
					out <- engine.ChatChunk{Kind: engine.ChunkContent, Delta: choice.Delta.Content}
				}
				for _, tc := range choice.Delta.ToolCalls {
					out <- engine.ChatChunk{
						Kind:              engine.ChunkToolCall,
						ToolCallID:        tc.ID,
						ToolCallName:      tc.Function.Name,
						ToolCallArguments: tc.Function.Arguments,
					}
				}
			}
			if resp.Usage != nil {
				out <- engine.ChatChunk{Kind: engine.ChunkUsage, Usage: engine.Usage{
					InputTokens:  resp.Usage.PromptTokens,
					OutputTokens: resp.Usage.CompletionTokens,
				}}
			}
		}
	}()
	return out, nil
}

func toOpenAIMessages(messages []engine.CompletionMessage, systemInstruction string) []gopenai.ChatCompletionMessage {
	var out []gopenai.ChatCompletionMessage
	if systemInstruction != "" {
		out = append(out, gopenai.ChatCompletionMessage{Role: gopenai.ChatMessageRoleSystem, Content: systemInstruction})
	}
	for _, m := range messages {
		role := m.Role
		if role == "tool" {
			out = append(out, gopenai.ChatCompletionMessage{Role: gopenai.ChatMessageRoleTool, Content: m.Content, ToolCallID: m.ToolCallID})
			continue
		}
		out = append(out, gopenai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

func toOpenAITools(tools []engine.ToolDefinition) []gopenai.Tool {
	var out []gopenai.Tool
	for _, t := range tools {
		var params map[string]any
		_ = json.Unmarshal(t.Function.Parameters, &params)
		out = append(out, gopenai.Tool{
			Type: gopenai.ToolTypeFunction,
			Function: &gopenai.FunctionDefinition{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  params,
			},
		})
	}
	return out
}
