// Package gemini is an example Provider Adapter (C5) satisfying
// engine.Provider against Google's genai streaming content API.
package gemini

import (
	"context"
	"encoding/json"

	"github.com/agentcore-go/agentcore/pkg/engine"
	"google.golang.org/genai"
)

// Provider adapts google.golang.org/genai's streaming client to
// engine.Provider.
type Provider struct {
	client *genai.Client
	model  string
}

// New constructs a Provider for the given model using a preconfigured
// genai.Client (API-key or Vertex auth resolved by the caller).
func New(client *genai.Client, model string) *Provider {
	return &Provider{client: client, model: model}
}

func (p *Provider) Model() string { return p.model }

func (p *Provider) Chat(ctx context.Context, messages []engine.CompletionMessage, tools []engine.ToolDefinition, opts engine.ChatOptions) (<-chan engine.ChatChunk, error) {
	contents := toGeminiContents(messages)
	config := &genai.GenerateContentConfig{}
	if opts.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(opts.SystemInstruction, genai.RoleUser)
	}
	if decl := toGeminiTools(tools); len(decl) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: decl}}
	}

	stream := p.client.Models.GenerateContentStream(ctx, p.model, contents, config)

	out := make(chan engine.ChatChunk)
	go func() {
		defer close(out)
		stream(func(resp *genai.GenerateContentResponse, err error) bool {
			if err != nil {
				select {
				case out <- engine.ChatChunk{Kind: engine.ChunkError, Err: err}:
				case <-ctx.Done():
				}
				return false
			}
			for _, cand := range resp.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					if part.Text != "" {
						out <- engine.ChatChunk{Kind: engine.ChunkContent, Delta: part.Text}
					}
					if part.FunctionCall != nil {
						args, _ := json.Marshal(part.FunctionCall.Args)
						out <- engine.ChatChunk{
							Kind:              engine.ChunkToolCall,
							ToolCallID:        part.FunctionCall.Name,
							ToolCallName:      part.FunctionCall.Name,
							ToolCallArguments: string(args),
						}
					}
				}
			}
			if resp.UsageMetadata != nil {
				out <- engine.ChatChunk{Kind: engine.ChunkUsage, Usage: engine.Usage{
					InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
					OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
				}}
			}
			select {
			case <-ctx.Done():
				return false
			default:
				return true
			}
		})
	}()
	return out, nil
}

func toGeminiContents(messages []engine.CompletionMessage) []*genai.Content {
	var out []*genai.Content
	for _, m := range messages {
		role := genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(m.Content, role))
	}
	return out
}

func toGeminiTools(tools []engine.ToolDefinition) []*genai.FunctionDeclaration {
	var out []*genai.FunctionDeclaration
	for _, t := range tools {
		var schema *genai.Schema
		_ = json.Unmarshal(t.Function.Parameters, &schema)
		out = append(out, &genai.FunctionDeclaration{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  schema,
		})
	}
	return out
}
