package agent

import (
	"encoding/json"

	"github.com/agentcore-go/agentcore/pkg/engine"
)

// skillToolPlaceholder is the built-in Skill tool as exposed to the
// provider, with its parameter schema. It is registered like any other tool so a "Skill"
// call passes through the ordinary lookup/hook/permission gate (§4.6.2 steps
// 1-7); only its handler invocation (step 9) is special-cased in favor of
// executeSkillTool, so Execute here is never actually called.
type skillToolPlaceholder struct{}

func (skillToolPlaceholder) Name() string        { return "Skill" }
func (skillToolPlaceholder) Description() string { return "Invoke a named skill, injecting its expanded content into the conversation." }
func (skillToolPlaceholder) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {"type": "string", "description": "Name of the skill to invoke"},
			"arguments": {"type": "string", "description": "Argument string substituted for $ARGUMENTS"}
		},
		"required": ["name"]
	}`)
}

func (skillToolPlaceholder) Execute(_ engine.ToolExecContext, _ json.RawMessage) (engine.ToolOutcome, error) {
	return engine.ToolOutcome{Content: "", IsError: true}, nil
}

// SkillTool returns the built-in Skill tool's definition for registration
// into a session's registry, making it visible to both the provider's
// function-calling catalog and the registry lookup at §4.6.2 step 1. The
// driver special-cases its handler invocation at step 9.
func SkillTool() engine.Tool { return skillToolPlaceholder{} }

// askUserQuestionToolName is the well-known name special-cased for the
// 60-second hard timeout and the mandatory-canUseTool configuration check.
const askUserQuestionToolName = "AskUserQuestion"

// skillInput is the parsed argument shape for a Skill tool invocation.
type skillInput struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}
