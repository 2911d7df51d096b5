package agent

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/agentcore-go/agentcore/internal/hooks"
	"github.com/agentcore-go/agentcore/internal/permission"
	"github.com/agentcore-go/agentcore/pkg/engine"
)

// AgentDefinition is this engine's AgentDefinition configuration entity (§3).
type AgentDefinition struct {
	Description    string
	Prompt         string
	Tools          []string // nil => inherit parent's full tool set
	Model          string   // "sonnet"|"opus"|"haiku"|"inherit"|""
	MaxTurns       int
	PermissionMode permission.Mode
}

// HasCustomTools reports d.tools != undefined, per the testable property §8.7.
func HasCustomTools(d AgentDefinition) bool { return d.Tools != nil }

// InheritsModel reports d.model ∈ {undefined,"inherit"}, per §8.7.
func InheritsModel(d AgentDefinition) bool { return d.Model == "" || d.Model == "inherit" }

// ParentContext is the one-way, read-only view of the parent session a
// sub-agent run resolves its configuration against and borrows its tool
// registry from. The parent retains only the sub-agent's final result, not
// a reference to its driver (§9 design note).
type ParentContext struct {
	Model                           string
	MaxTurns                        int
	PermissionMode                  permission.Mode
	AllowDangerouslySkipPermissions bool
	CanUseTool                      permission.CanUseToolFunc
	Registry                        engine.ToolLookup
	HookMgr                         *hooks.Manager
}

// ProviderResolver maps a logical model name to a concrete Provider.
// Provider selection by model name is an external collaborator's concern
// (§1); the sub-agent runner only consumes the result.
type ProviderResolver func(model string) (engine.Provider, error)

// SubagentResult is returned by RunSubagent and by the Task tool.
type SubagentResult struct {
	Result     string
	AgentID    string
	Usage      engine.Usage
	CostUsd    *float64
	DurationMs int64
	Error      string
}

func newAgentID() string {
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	return fmt.Sprintf("agent-%d-%s", time.Now().UnixMilli(), hex.EncodeToString(buf[:]))
}

// RunSubagent implements §4.8: resolves inherited/overridden configuration,
// constructs an isolated child driver with a fresh Hook Manager, and runs
// it to completion. Sub-agent failures never propagate as exceptions — any
// error is captured into the returned result's Error field.
func RunSubagent(ctx context.Context, parent ParentContext, def AgentDefinition, prompt, subagentType string, resolveProvider ProviderResolver) SubagentResult {
	start := time.Now()
	agentID := newAgentID()

	model := def.Model
	if InheritsModel(def) {
		model = parent.Model
	}
	maxTurns := def.MaxTurns
	if maxTurns <= 0 {
		maxTurns = parent.MaxTurns
	}
	mode := def.PermissionMode
	if mode == "" {
		mode = parent.PermissionMode
	}
	var allowedTools []string
	if HasCustomTools(def) {
		allowedTools = def.Tools
	}

	parent.HookMgr.Emit(ctx, hooks.SubagentStart, hooks.Input{
		AgentID: agentID, SubagentType: subagentType, Prompt: prompt, ParentMode: string(parent.PermissionMode),
	})

	result := runSubagentBody(ctx, parent, agentID, model, maxTurns, mode, allowedTools, def.Prompt, prompt, resolveProvider, start)

	parent.HookMgr.Emit(ctx, hooks.SubagentStop, hooks.Input{AgentID: agentID, SubagentType: subagentType})
	return result
}

func runSubagentBody(ctx context.Context, parent ParentContext, agentID, model string, maxTurns int, mode permission.Mode, allowedTools []string, systemPrompt, prompt string, resolveProvider ProviderResolver, start time.Time) (res SubagentResult) {
	defer func() {
		if r := recover(); r != nil {
			res = SubagentResult{AgentID: agentID, DurationMs: time.Since(start).Milliseconds(), Error: fmt.Sprintf("subagent panicked: %v", r)}
		}
	}()

	provider, err := resolveProvider(model)
	if err != nil {
		return SubagentResult{AgentID: agentID, DurationMs: time.Since(start).Milliseconds(), Error: err.Error()}
	}

	cfg := Config{
		MaxTurns:                         maxTurns,
		SystemPrompt:                     systemPrompt,
		AllowedTools:                     allowedTools,
		PermissionMode:                   mode,
		AllowDangerouslySkipPermissions:  parent.AllowDangerouslySkipPermissions,
		CanUseTool:                       parent.CanUseTool,
		Hooks:                            hooks.New(nil), // fresh: sub-agents do not inherit parent hooks
	}

	driver, err := NewDriver(agentID, provider, parent.Registry, cfg)
	if err != nil {
		return SubagentResult{AgentID: agentID, DurationMs: time.Since(start).Milliseconds(), Error: err.Error()}
	}

	out, err := driver.Run(ctx, prompt)
	if err != nil {
		return SubagentResult{AgentID: agentID, DurationMs: time.Since(start).Milliseconds(), Error: err.Error()}
	}

	sr := SubagentResult{Result: out.Result, AgentID: agentID, Usage: out.Usage, DurationMs: time.Since(start).Milliseconds()}
	if ce, ok := provider.(engine.CostEstimator); ok {
		if cost, ok2 := ce.GetCost(out.Usage); ok2 {
			sr.CostUsd = &cost
		}
	}
	return sr
}
