// Package hooks implements the named, ordered interceptor pipeline around
// lifecycle events: session/prompt/tool/compaction/stop boundaries that may
// mutate inputs, deny actions, or request continuation.
package hooks

import (
	"context"
	"encoding/json"
	"regexp"
)

// EventName is drawn from a closed set — no event outside this list exists.
type EventName string

const (
	SessionStart       EventName = "SessionStart"
	SessionEnd         EventName = "SessionEnd"
	UserPromptSubmit   EventName = "UserPromptSubmit"
	PreToolUse         EventName = "PreToolUse"
	PostToolUse        EventName = "PostToolUse"
	PostToolUseFailure EventName = "PostToolUseFailure"
	PermissionRequest  EventName = "PermissionRequest"
	PreCompact         EventName = "PreCompact"
	Stop               EventName = "Stop"
	SubagentStart      EventName = "SubagentStart"
	SubagentStop       EventName = "SubagentStop"
)

// Input is the payload passed to a handler at emission time. Fields are
// populated according to the event; handlers should only read fields
// relevant to the event they registered for.
type Input struct {
	Event              EventName
	SessionID          string
	ToolUseID          string
	ToolName           string
	ToolInput          json.RawMessage
	Reason             string // SessionStart: "startup"|"resume"; SessionEnd: "completed"|"abort"|"max_turns_reached"
	Prompt             string
	AgentID            string
	SubagentType       string
	ParentMode         string
	Trigger            string // PreCompact: "manual"|"auto"
	CustomInstructions *string
}

// HookSpecificOutput carries the control-bearing fields a PreToolUse
// handler may return.
type HookSpecificOutput struct {
	HookEventName            EventName       `json:"hookEventName"`
	PermissionDecision       string          `json:"permissionDecision,omitempty"` // "deny"
	PermissionDecisionReason string          `json:"permissionDecisionReason,omitempty"`
	UpdatedInput             json.RawMessage `json:"updatedInput,omitempty"`
}

// Output is the structured record a handler returns. Only the fields
// relevant to the handler's event are meaningful; emit() collects the list
// of non-nil outputs returned by matching handlers, in registration order.
type Output struct {
	HookSpecificOutput *HookSpecificOutput `json:"hookSpecificOutput,omitempty"`
	Continue           *bool               `json:"continue,omitempty"`
	StopReason         *string             `json:"stopReason,omitempty"`
}

// Denies reports whether this output is a PreToolUse deny decision.
func (o *Output) Denies() bool {
	return o != nil && o.HookSpecificOutput != nil && o.HookSpecificOutput.PermissionDecision == "deny"
}

// UpdatedInput returns the replacement tool input this output carries, if any.
func (o *Output) UpdatedInput() (json.RawMessage, bool) {
	if o == nil || o.HookSpecificOutput == nil || len(o.HookSpecificOutput.UpdatedInput) == 0 {
		return nil, false
	}
	return o.HookSpecificOutput.UpdatedInput, true
}

// ShouldContinue reports whether a Stop handler requested the driver
// re-enter the loop instead of terminating.
func (o *Output) ShouldContinue() bool {
	return o != nil && o.Continue != nil && *o.Continue
}

// AbortReason returns the stop reason a PreCompact handler supplied, if any.
func (o *Output) AbortReason() (string, bool) {
	if o == nil || o.StopReason == nil {
		return "", false
	}
	return *o.StopReason, true
}

// Handler is a registered hook callback. It may perform I/O; emission is
// sequential, never concurrent, within one event (§4.4, §5).
type Handler func(ctx context.Context, in Input) (*Output, error)

// Matcher restricts a tool-scoped registration (PreToolUse, PostToolUse) to
// a subset of tool names: either an exact name or a compiled regex.
type Matcher struct {
	exact string
	re    *regexp.Regexp
}

// ExactMatcher matches only the given tool name.
func ExactMatcher(name string) Matcher { return Matcher{exact: name} }

// RegexMatcher matches any tool name satisfying pattern.
func RegexMatcher(pattern string) (Matcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Matcher{}, err
	}
	return Matcher{re: re}, nil
}

// Match reports whether name satisfies this matcher.
func (m Matcher) Match(name string) bool {
	if m.re != nil {
		return m.re.MatchString(name)
	}
	return m.exact == name
}

// AnyTool is the zero-value Matcher used for events that are not tool-scoped
// or for a registration that should fire for every tool name.
var AnyTool = Matcher{}

func (m Matcher) isAny() bool { return m.exact == "" && m.re == nil }
