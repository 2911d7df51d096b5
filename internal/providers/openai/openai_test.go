package openai

import (
	"encoding/json"
	"testing"

	"github.com/agentcore-go/agentcore/pkg/engine"
	gopenai "github.com/sashabaranov/go-openai"
)

func TestToOpenAIMessagesPrependsSystemInstruction(t *testing.T) {
	msgs := toOpenAIMessages([]engine.CompletionMessage{
		{Role: "user", Content: "hi"},
	}, "be concise")

	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != gopenai.ChatMessageRoleSystem || msgs[0].Content != "be concise" {
		t.Fatalf("expected a leading system message, got %+v", msgs[0])
	}
	if msgs[1].Role != "user" || msgs[1].Content != "hi" {
		t.Fatalf("unexpected user message: %+v", msgs[1])
	}
}

func TestToOpenAIMessagesOmitsSystemInstructionWhenEmpty(t *testing.T) {
	msgs := toOpenAIMessages([]engine.CompletionMessage{{Role: "user", Content: "hi"}}, "")
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message with no system instruction, got %d", len(msgs))
	}
}

func TestToOpenAIMessagesMapsToolRoleWithCallID(t *testing.T) {
	msgs := toOpenAIMessages([]engine.CompletionMessage{
		{Role: "tool", Content: "result", ToolCallID: "t1"},
	}, "")
	if len(msgs) != 1 || msgs[0].Role != gopenai.ChatMessageRoleTool || msgs[0].ToolCallID != "t1" {
		t.Fatalf("unexpected tool message: %+v", msgs[0])
	}
}

func TestToOpenAIToolsTranslatesDefinitions(t *testing.T) {
	defs := []engine.ToolDefinition{
		{Type: "function", Function: engine.ToolDefinitionFunc{
			Name:        "Read",
			Description: "reads a file",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}}}`),
		}},
	}
	out := toOpenAITools(defs)
	if len(out) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(out))
	}
	if out[0].Function.Name != "Read" || out[0].Function.Description != "reads a file" {
		t.Fatalf("unexpected tool translation: %+v", out[0].Function)
	}
	params, ok := out[0].Function.Parameters.(map[string]any)
	if !ok || params["type"] != "object" {
		t.Fatalf("expected parsed JSON-schema parameters, got %#v", out[0].Function.Parameters)
	}
}

func TestToOpenAIToolsEmptyInputYieldsNil(t *testing.T) {
	if out := toOpenAITools(nil); out != nil {
		t.Fatalf("expected nil for no tools, got %+v", out)
	}
}
