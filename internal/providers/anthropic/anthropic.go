// Package anthropic is an example Provider Adapter (C5) satisfying
// engine.Provider against the Claude Messages streaming API.
package anthropic

import (
	"context"
	"encoding/json"

	"github.com/agentcore-go/agentcore/pkg/engine"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Provider adapts anthropic-sdk-go's Messages streaming client to
// engine.Provider.
type Provider struct {
	client anthropic.Client
	model  anthropic.Model
}

// New constructs a Provider for the given model using apiKey.
func New(apiKey string, model anthropic.Model) *Provider {
	return &Provider{client: anthropic.NewClient(option.WithAPIKey(apiKey)), model: model}
}

func (p *Provider) Model() string { return string(p.model) }

func (p *Provider) Chat(ctx context.Context, messages []engine.CompletionMessage, tools []engine.ToolDefinition, opts engine.ChatOptions) (<-chan engine.ChatChunk, error) {
	params := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 4096,
		Messages:  toAnthropicMessages(messages),
		Tools:     toAnthropicTools(tools),
	}
	if opts.SystemInstruction != "" {
		params.System = []anthropic.TextBlockParam{{Text: opts.SystemInstruction}}
	}

	stream := p.client.Messages.NewStreaming(ctx, params)

	out := make(chan engine.ChatChunk)
	go func() {
		defer close(out)
		acc := anthropic.Message{}
		for stream.Next() {
			event := stream.Current()
			if err := acc.Accumulate(event); err != nil {
				select {
				case out <- engine.ChatChunk{Kind: engine.ChunkError, Err: err}:
				case <-ctx.Done():
				}
				return
			}
			switch delta := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if delta.Delta.Text != "" {
					out <- engine.ChatChunk{Kind: engine.ChunkContent, Delta: delta.Delta.Text}
				}
			}
		}
		if err := stream.Err(); err != nil {
			select {
			case out <- engine.ChatChunk{Kind: engine.ChunkError, Err: err}:
			case <-ctx.Done():
			}
			return
		}
		for _, block := range acc.Content {
			if tu, ok := block.AsAny().(anthropic.ToolUseBlock); ok {
				args, _ := json.Marshal(tu.Input)
				out <- engine.ChatChunk{Kind: engine.ChunkToolCall, ToolCallID: tu.ID, ToolCallName: tu.Name, ToolCallArguments: string(args)}
			}
		}
		out <- engine.ChatChunk{Kind: engine.ChunkUsage, Usage: engine.Usage{
			InputTokens:  int(acc.Usage.InputTokens),
			OutputTokens: int(acc.Usage.OutputTokens),
		}}
	}()
	return out, nil
}

func toAnthropicMessages(messages []engine.CompletionMessage) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, m := range messages {
		switch m.Role {
		case "tool":
			out = append(out, anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		case "assistant":
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return out
}

func toAnthropicTools(tools []engine.ToolDefinition) []anthropic.ToolUnionParam {
	var out []anthropic.ToolUnionParam
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(t.Function.Parameters, &schema); err != nil {
			continue
		}
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Function.Name,
				Description: anthropic.String(t.Function.Description),
				InputSchema: schema,
			},
		})
	}
	return out
}
