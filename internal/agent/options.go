// Package agent implements the ReAct driver (C6) and sub-agent runner (C8):
// the turn-by-turn loop that calls a provider, executes tools sequentially,
// checks for compaction, and the hierarchical child-driver launcher wrapped
// by the Task tool.
//
// Grounded on the teacher's internal/agent/loop.go (AgenticLoop.Run's phase
// structure: streamPhase/executeToolsPhase/continuePhase, goroutine+channel
// streaming) with one deliberate deviation: tool calls within one turn are
// executed strictly sequentially here, never via a parallel executor, per
// this engine's concurrency model (§5).
package agent

import (
	"encoding/json"

	"github.com/agentcore-go/agentcore/internal/hooks"
	"github.com/agentcore-go/agentcore/internal/permission"
	"github.com/agentcore-go/agentcore/internal/skills"
	"github.com/agentcore-go/agentcore/pkg/engine"
)

// DefaultMaxTurns is used when Config.MaxTurns is unset.
const DefaultMaxTurns = 25

// DefaultPreserveRecentRounds mirrors compaction.DefaultPreserveRecentRounds.
const DefaultPreserveRecentRounds = 2

// OutputFormat optionally constrains the provider's final response to a
// JSON schema, surfaced as a structured_output chunk.
type OutputFormat struct {
	Schema json.RawMessage
}

// Config is this engine's ReActLoopConfig (§3).
type Config struct {
	MaxTurns                        int
	SystemPrompt                    string
	AllowedTools                    []string
	Cwd                             string
	Env                             map[string]string
	PermissionMode                  permission.Mode
	AllowDangerouslySkipPermissions bool
	CanUseTool                      permission.CanUseToolFunc
	Hooks                           *hooks.Manager
	AutoCompactThreshold            int
	PreserveRecentRounds            int
	SkillRegistry                   *skills.Registry
	OutputFormat                    *OutputFormat
	ProviderTag                     string // provider tag recorded in SystemInit
}

// sanitize fills zero-valued fields with documented defaults, matching the
// teacher's sanitizeLoopConfig step.
func sanitize(cfg Config) Config {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if cfg.PreserveRecentRounds <= 0 {
		cfg.PreserveRecentRounds = DefaultPreserveRecentRounds
	}
	if cfg.PermissionMode == "" {
		cfg.PermissionMode = permission.ModeDefault
	}
	if cfg.Cwd == "" {
		cfg.Cwd = "."
	}
	return cfg
}

// ReActResult is the batched-mode return value.
type ReActResult struct {
	Result           string
	Messages         []engine.Message
	TurnCount        int
	Usage            engine.Usage
	IsError          bool
	StructuredOutput json.RawMessage
}

// EventKind tags one streamed driver event.
type EventKind string

const (
	EventAssistant   EventKind = "assistant"
	EventToolResult  EventKind = "tool_result"
	EventSkillSystem EventKind = "skill_system"
	EventUsage       EventKind = "usage"
	EventDone        EventKind = "done"
)

// Event is one element of the streaming entry point's output sequence.
type Event struct {
	Kind       EventKind
	Assistant  *engine.Message
	ToolResult *engine.Message
	Usage      *engine.Usage
	Done       *ReActResult
}
