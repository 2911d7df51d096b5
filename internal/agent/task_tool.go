package agent

import (
	"encoding/json"
	"fmt"

	"github.com/agentcore-go/agentcore/pkg/engine"
)

// TaskTool is the built-in tool visible to the parent LLM that wraps
// RunSubagent (§4.8). It validates subagent_type against a registry of
// known AgentDefinitions before launching a child driver.
type TaskTool struct {
	Parent          ParentContext
	Definitions     map[string]AgentDefinition
	ResolveProvider ProviderResolver
}

func (t *TaskTool) Name() string        { return "Task" }
func (t *TaskTool) Description() string { return "Launch a sub-agent to carry out an isolated task and return its final result." }

func (t *TaskTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"description": {"type": "string"},
			"prompt": {"type": "string"},
			"subagent_type": {"type": "string"}
		},
		"required": ["description", "prompt", "subagent_type"]
	}`)
}

type taskInput struct {
	Description  string `json:"description"`
	Prompt       string `json:"prompt"`
	SubagentType string `json:"subagent_type"`
}

type taskOutput struct {
	Result       string       `json:"result"`
	AgentID      string       `json:"agent_id"`
	Usage        engine.Usage `json:"usage"`
	TotalCostUsd *float64     `json:"total_cost_usd,omitempty"`
	DurationMs   int64        `json:"duration_ms"`
	Error        string       `json:"error,omitempty"`
}

func (t *TaskTool) Execute(ctx engine.ToolExecContext, input json.RawMessage) (engine.ToolOutcome, error) {
	var in taskInput
	if err := json.Unmarshal(input, &in); err != nil {
		return engine.ToolOutcome{Content: fmt.Sprintf("Error: Invalid JSON arguments - %s", err), IsError: true}, nil
	}
	def, ok := t.Definitions[in.SubagentType]
	if !ok {
		return engine.ToolOutcome{Content: fmt.Sprintf("Error: unknown subagent_type %q", in.SubagentType), IsError: true}, nil
	}

	res := RunSubagent(ctx.Context, t.Parent, def, in.Prompt, in.SubagentType, t.ResolveProvider)

	out := taskOutput{
		Result:       res.Result,
		AgentID:      res.AgentID,
		Usage:        res.Usage,
		TotalCostUsd: res.CostUsd,
		DurationMs:   res.DurationMs,
		Error:        res.Error,
	}
	body, _ := json.Marshal(out)
	return engine.ToolOutcome{Content: string(body), IsError: res.Error != ""}, nil
}
