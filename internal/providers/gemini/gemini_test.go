package gemini

import (
	"testing"

	"github.com/agentcore-go/agentcore/pkg/engine"
	"google.golang.org/genai"
)

func TestToGeminiContentsMapsAssistantToModelRole(t *testing.T) {
	out := toGeminiContents([]engine.CompletionMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	})
	if len(out) != 2 {
		t.Fatalf("expected 2 contents, got %d", len(out))
	}
	if out[0].Role != genai.RoleUser {
		t.Fatalf("expected user role preserved, got %v", out[0].Role)
	}
	if out[1].Role != genai.RoleModel {
		t.Fatalf("expected assistant mapped to model role, got %v", out[1].Role)
	}
}

func TestToGeminiContentsEmptyInputYieldsNil(t *testing.T) {
	if out := toGeminiContents(nil); out != nil {
		t.Fatalf("expected nil for no messages, got %+v", out)
	}
}

func TestToGeminiToolsTranslatesNameAndDescription(t *testing.T) {
	defs := []engine.ToolDefinition{
		{Function: engine.ToolDefinitionFunc{Name: "Read", Description: "reads a file"}},
	}
	out := toGeminiTools(defs)
	if len(out) != 1 || out[0].Name != "Read" || out[0].Description != "reads a file" {
		t.Fatalf("unexpected tool translation: %+v", out)
	}
}

func TestToGeminiToolsEmptyInputYieldsNil(t *testing.T) {
	if out := toGeminiTools(nil); out != nil {
		t.Fatalf("expected nil for no tools, got %+v", out)
	}
}
