package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentcore-go/agentcore/internal/hooks"
	"github.com/agentcore-go/agentcore/internal/permission"
	"github.com/agentcore-go/agentcore/pkg/engine"
)

// executeAndAppend runs one tool call per §4.6.2, appending (and, in
// streaming mode, emitting) its SkillSystem message (if any) followed by
// its ToolResult — in that order, matching the driver's turn loop.
func (d *Driver) executeAndAppend(ctx context.Context, tc engine.ToolCall, emit func(Event)) {
	start := time.Now()
	content, isError, skill := d.executeTool(ctx, tc)
	if d.toolLatency != nil {
		d.toolLatency.Observe(time.Since(start).Seconds())
	}

	if skill != nil {
		msg := engine.NewSkillSystem(d.sessionID, skill.Name, skill.Content)
		d.mu.Lock()
		d.log = append(d.log, msg)
		d.mu.Unlock()
		emit(Event{Kind: EventSkillSystem, Assistant: nil, ToolResult: &msg})
	}

	result := engine.NewToolResult(d.sessionID, tc.ID, tc.Name, content, isError)
	d.mu.Lock()
	d.log = append(d.log, result)
	d.mu.Unlock()
	emit(Event{Kind: EventToolResult, ToolResult: &result})
}

// executeTool implements the nine steps of §4.6.2. Parser errors, denied
// permissions, denied hooks, missing tools, and handler exceptions are all
// surfaced as ordinary is_error tool-result content; none of them
// terminate the loop (§4.6.2 Failure semantics).
func (d *Driver) executeTool(ctx context.Context, tc engine.ToolCall) (content string, isError bool, skillResult *engine.SkillSystem) {
	// Step 1: lookup. The built-in Skill tool is registered like any other
	// (see SkillTool()), so it passes through the same gate below; only its
	// handler invocation at step 9 differs from a generic tool's step 8.
	tool, ok := d.registry.Get(tc.Name)
	if !ok {
		return fmt.Sprintf("Error: Tool %q not found", tc.Name), true, nil
	}

	// Step 2: parse JSON arguments.
	input := tc.Arguments
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	if !json.Valid(input) {
		return fmt.Sprintf("Error: Invalid JSON arguments - %q is not valid JSON", string(tc.Arguments)), true, nil
	}

	// Step 3: AskUserQuestion special case.
	if tc.Name == askUserQuestionToolName && d.cfg.CanUseTool == nil {
		return "Error: AskUserQuestion requires a canUseTool callback to be configured", true, nil
	}

	// Step 4: PreToolUse.
	preOutputs := d.hookMgr.Emit(ctx, hooks.PreToolUse, hooks.Input{
		SessionID: d.sessionID, ToolUseID: tc.ID, ToolName: tc.Name, ToolInput: input,
	})
	for _, o := range preOutputs {
		if o.Denies() {
			reason := o.HookSpecificOutput.PermissionDecisionReason
			d.hookMgr.Emit(ctx, hooks.PermissionRequest, hooks.Input{
				SessionID: d.sessionID, ToolUseID: tc.ID, ToolName: tc.Name, Reason: reason,
			})
			return fmt.Sprintf("Error: %s", reason), true, nil
		}
	}

	// Step 5: last updatedInput wins.
	for _, o := range preOutputs {
		if ui, ok := o.UpdatedInput(); ok {
			input = ui
		}
	}

	// Step 6: permission manager.
	decision, err := d.checkPermission(ctx, tc.Name, input)
	if err != nil {
		return fmt.Sprintf("Error: %s", err), true, nil
	}
	if !decision.Allowed {
		d.hookMgr.Emit(ctx, hooks.PermissionRequest, hooks.Input{
			SessionID: d.sessionID, ToolUseID: tc.ID, ToolName: tc.Name, Reason: decision.Reason,
		})
		return fmt.Sprintf("Error: %s", decision.Reason), true, nil
	}

	// Step 7: final input.
	finalInput := input
	if decision.UpdatedInput != nil {
		finalInput = decision.UpdatedInput
	}

	// Step 9: the built-in Skill tool's handler is special-cased here,
	// after it has passed through the same PreToolUse/permission gate as
	// every other tool (steps 4-7) rather than bypassing them.
	if tc.Name == "Skill" {
		return d.executeSkillTool(finalInput)
	}

	// Step 8: invoke handler.
	execCtx := engine.ToolExecContext{Context: ctx, Cwd: d.cfg.Cwd, Env: d.cfg.Env, Session: d.sessionID}
	outcome, err := tool.Execute(execCtx, finalInput)
	if err != nil {
		d.hookMgr.Emit(ctx, hooks.PostToolUseFailure, hooks.Input{
			SessionID: d.sessionID, ToolUseID: tc.ID, ToolName: tc.Name, Reason: err.Error(),
		})
		return fmt.Sprintf("Error: %s", err), true, nil
	}
	d.hookMgr.Emit(ctx, hooks.PostToolUse, hooks.Input{
		SessionID: d.sessionID, ToolUseID: tc.ID, ToolName: tc.Name, ToolInput: finalInput,
	})
	return outcome.Content, outcome.IsError, outcome.SkillResult
}

// checkPermission wraps the permission manager's Check, applying the
// AskUserQuestion tool's independent 60-second hard timeout (§5) rather
// than the driver's own abort signal.
func (d *Driver) checkPermission(ctx context.Context, toolName string, input json.RawMessage) (permission.Decision, error) {
	if toolName != askUserQuestionToolName {
		return d.permMgr.Check(ctx, toolName, input)
	}

	type outcome struct {
		dec permission.Decision
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		dec, err := d.permMgr.Check(ctx, toolName, input)
		done <- outcome{dec, err}
	}()
	select {
	case o := <-done:
		return o.dec, o.err
	case <-time.After(askUserQuestionTimeout):
		return permission.Decision{}, ErrAskUserQuestionTimeout
	}
}
