package agent

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentcore-go/agentcore/internal/faketest"
	"github.com/agentcore-go/agentcore/internal/hooks"
	"github.com/agentcore-go/agentcore/internal/permission"
	"github.com/agentcore-go/agentcore/internal/skills"
	"github.com/agentcore-go/agentcore/pkg/engine"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type staticTool struct {
	name   string
	output string
}

func (t *staticTool) Name() string        { return t.name }
func (t *staticTool) Description() string { return "test tool" }
func (t *staticTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}
func (t *staticTool) Execute(ctx engine.ToolExecContext, input json.RawMessage) (engine.ToolOutcome, error) {
	return engine.ToolOutcome{Content: t.output}, nil
}

func newRegistry(tools ...engine.Tool) *engine.Registry {
	r := engine.NewRegistry()
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

// Scenario 1: a pure text answer with no tool calls terminates in one turn.
func TestScenarioPureTextAnswer(t *testing.T) {
	provider := faketest.New("fake-model", faketest.Turn{Text: "the answer is 42", Usage: engine.Usage{InputTokens: 10, OutputTokens: 5}})
	driver, err := NewDriver("s1", provider, newRegistry(), Config{SystemPrompt: "be helpful"})
	if err != nil {
		t.Fatal(err)
	}
	result, err := driver.Run(context.Background(), "what is the answer?")
	if err != nil {
		t.Fatal(err)
	}
	if result.Result != "the answer is 42" || result.IsError {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.TurnCount != 1 {
		t.Fatalf("expected exactly one turn, got %d", result.TurnCount)
	}
	if err := engine.ValidateConversation(result.Messages); err != nil {
		t.Fatalf("expected a valid conversation log, got %v", err)
	}
}

// Scenario 2: the driver stops with an error result once MaxTurns is exhausted.
func TestScenarioMaxTurnsExhaustion(t *testing.T) {
	toolCall := faketest.ToolCallSpec{ID: "t1", Name: "Loop", Arguments: `{}`}
	script := []faketest.Turn{
		{ToolCalls: []faketest.ToolCallSpec{toolCall}},
		{ToolCalls: []faketest.ToolCallSpec{toolCall}},
	}
	provider := faketest.New("fake-model", script...)
	reg := newRegistry(&staticTool{name: "Loop", output: "looped"})
	driver, err := NewDriver("s1", provider, reg, Config{MaxTurns: 2})
	if err != nil {
		t.Fatal(err)
	}
	result, err := driver.Run(context.Background(), "loop forever")
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError || result.Result != "Maximum turns reached" {
		t.Fatalf("expected a max-turns error result, got %+v", result)
	}
	if result.TurnCount != 2 {
		t.Fatalf("expected exactly 2 turns, got %d", result.TurnCount)
	}
}

// Scenario 3: a tool-call round trip appends a ToolResult and a second
// provider call resolves with a final text answer.
func TestScenarioToolRoundtrip(t *testing.T) {
	script := []faketest.Turn{
		{ToolCalls: []faketest.ToolCallSpec{{ID: "t1", Name: "Read", Arguments: `{"path":"a.txt"}`}}},
		{Text: "the file contains hello"},
	}
	provider := faketest.New("fake-model", script...)
	reg := newRegistry(&staticTool{name: "Read", output: "hello"})
	driver, err := NewDriver("s1", provider, reg, Config{})
	if err != nil {
		t.Fatal(err)
	}
	result, err := driver.Run(context.Background(), "read a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if result.Result != "the file contains hello" {
		t.Fatalf("unexpected final result: %+v", result)
	}
	if result.TurnCount != 2 {
		t.Fatalf("expected 2 turns (tool call + resolution), got %d", result.TurnCount)
	}
	var sawToolResult bool
	for _, m := range result.Messages {
		if m.IsToolResult() && m.ToolResult.Content == "hello" {
			sawToolResult = true
		}
	}
	if !sawToolResult {
		t.Fatal("expected the tool's output to appear as a ToolResult message")
	}
	if err := engine.ValidateConversation(result.Messages); err != nil {
		t.Fatalf("expected a valid conversation log, got %v", err)
	}
}

// Scenario 4: plan mode blocks every tool invocation, surfacing it as an
// is_error tool-result rather than terminating the run.
func TestScenarioPlanModeBlocksTools(t *testing.T) {
	script := []faketest.Turn{
		{ToolCalls: []faketest.ToolCallSpec{{ID: "t1", Name: "Write", Arguments: `{}`}}},
		{Text: "done"},
	}
	provider := faketest.New("fake-model", script...)
	reg := newRegistry(&staticTool{name: "Write", output: "should not run"})
	driver, err := NewDriver("s1", provider, reg, Config{PermissionMode: permission.ModePlan})
	if err != nil {
		t.Fatal(err)
	}
	result, err := driver.Run(context.Background(), "write a file")
	if err != nil {
		t.Fatal(err)
	}
	var blocked bool
	for _, m := range result.Messages {
		if m.IsToolResult() && m.ToolResult.IsError {
			blocked = true
		}
	}
	if !blocked {
		t.Fatal("expected the Write tool call to be denied under plan mode")
	}
}

// Scenario 5: compaction preserves the most recent rounds when the
// auto-compact token threshold is crossed. Exercised directly at the
// compactor level is covered in package compaction; here we assert the
// driver invokes it without disrupting the final result.
func TestScenarioCompactionPreservesTail(t *testing.T) {
	script := []faketest.Turn{
		{Text: "short answer", Usage: engine.Usage{InputTokens: 1000, OutputTokens: 10}},
	}
	provider := faketest.New("fake-model", script...)
	driver, err := NewDriver("s1", provider, newRegistry(), Config{AutoCompactThreshold: 1})
	if err != nil {
		t.Fatal(err)
	}
	result, err := driver.Run(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if result.Result != "short answer" {
		t.Fatalf("expected compaction to not disturb the final answer, got %+v", result)
	}
}

// WithMetrics registers a turn counter and tool-latency histogram that the
// driver updates as it runs, mirroring internal/compaction.WithMetrics.
func TestWithMetricsRecordsTurnsAndToolLatency(t *testing.T) {
	script := []faketest.Turn{
		{ToolCalls: []faketest.ToolCallSpec{{ID: "t1", Name: "Read", Arguments: `{}`}}},
		{Text: "done"},
	}
	provider := faketest.New("fake-model", script...)
	reg := newRegistry(&staticTool{name: "Read", output: "ok"})
	registry := prometheus.NewRegistry()
	driver, err := NewDriver("s1", provider, reg, Config{}, WithMetrics(registry))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := driver.Run(context.Background(), "go"); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(driver.turns); got != 2 {
		t.Fatalf("expected 2 turns recorded, got %v", got)
	}
	families, err := registry.Gather()
	if err != nil {
		t.Fatal(err)
	}
	var observations uint64
	for _, mf := range families {
		if mf.GetName() == "agentcore_driver_tool_duration_seconds" && len(mf.GetMetric()) == 1 {
			observations = mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	if observations != 1 {
		t.Fatalf("expected 1 tool-latency observation, got %d", observations)
	}
}

// Usage is aggregated (summed) across turns, per §3's Result.Usage
// requirement, rather than overwritten with only the last turn's counts.
func TestUsageAggregatesAcrossTurns(t *testing.T) {
	script := []faketest.Turn{
		{ToolCalls: []faketest.ToolCallSpec{{ID: "t1", Name: "Read", Arguments: `{}`}}, Usage: engine.Usage{InputTokens: 100, OutputTokens: 10}},
		{Text: "done", Usage: engine.Usage{InputTokens: 150, OutputTokens: 20}},
	}
	provider := faketest.New("fake-model", script...)
	reg := newRegistry(&staticTool{name: "Read", output: "ok"})
	driver, err := NewDriver("s1", provider, reg, Config{})
	if err != nil {
		t.Fatal(err)
	}
	result, err := driver.Run(context.Background(), "go")
	if err != nil {
		t.Fatal(err)
	}
	if result.Usage.InputTokens != 250 {
		t.Fatalf("expected aggregated input tokens 250, got %d", result.Usage.InputTokens)
	}
	if result.Usage.OutputTokens != 30 {
		t.Fatalf("expected aggregated output tokens 30, got %d", result.Usage.OutputTokens)
	}
}

// Scenario 6: an AgentDefinition that leaves Model and Tools unset reports
// InheritsModel and not HasCustomTools, and a sub-agent run under the
// parent's settings surfaces the child's result and a cost estimate.
func TestScenarioSubagentInheritance(t *testing.T) {
	childProvider := faketest.New("inherited-model", faketest.Turn{Text: "child done", Usage: engine.Usage{InputTokens: 3, OutputTokens: 2}})
	parent := ParentContext{
		Model:          "inherited-model",
		MaxTurns:       7,
		PermissionMode: permission.ModeAcceptEdits,
		Registry:       newRegistry(),
		HookMgr:        hooks.New(nil),
	}
	def := AgentDefinition{Description: "child", Prompt: "you are a helper"}
	if !InheritsModel(def) {
		t.Fatal("expected an unset Model to report InheritsModel true")
	}
	if HasCustomTools(def) {
		t.Fatal("expected a nil Tools to report HasCustomTools false")
	}

	resolver := func(model string) (engine.Provider, error) { return childProvider, nil }
	result := RunSubagent(context.Background(), parent, def, "do the task", "helper", resolver)
	if result.Error != "" {
		t.Fatalf("unexpected subagent error: %s", result.Error)
	}
	if result.Result != "child done" {
		t.Fatalf("unexpected subagent result: %+v", result)
	}
	if result.CostUsd == nil {
		t.Fatal("expected the fake provider's CostEstimator to surface a non-nil cost")
	}
}

// Scenario 7: a Skill tool call is routed through the same PreToolUse and
// permission gate as any other tool call (§4.6.2 steps 4-7 before step 9),
// so plan mode denies it without ever loading the skill or installing its
// allow-list scope.
func TestScenarioSkillCallGatedByPlanMode(t *testing.T) {
	dir := t.TempDir()
	content := "---\nname: reviewer\ndescription: reviews things\nallowedTools:\n  - Read\n---\nReview: $ARGUMENTS\n"
	if err := os.WriteFile(filepath.Join(dir, "reviewer.md"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	skillRegistry, err := skills.Load("", dir)
	if err != nil {
		t.Fatal(err)
	}

	script := []faketest.Turn{
		{ToolCalls: []faketest.ToolCallSpec{{ID: "t1", Name: "Skill", Arguments: `{"name":"reviewer","arguments":"x"}`}}},
		{Text: "done"},
	}
	provider := faketest.New("fake-model", script...)
	reg := newRegistry(SkillTool())
	driver, err := NewDriver("s1", provider, reg, Config{PermissionMode: permission.ModePlan, SkillRegistry: skillRegistry})
	if err != nil {
		t.Fatal(err)
	}

	result, err := driver.Run(context.Background(), "invoke the reviewer skill")
	if err != nil {
		t.Fatal(err)
	}

	var blocked bool
	for _, m := range result.Messages {
		if m.IsSkillSystem() {
			t.Fatal("expected plan mode to deny the Skill call before it ever loads the skill content")
		}
		if m.IsToolResult() && m.ToolResult.ToolName == "Skill" && m.ToolResult.IsError {
			blocked = true
		}
	}
	if !blocked {
		t.Fatal("expected the Skill tool call to be denied under plan mode")
	}

	planLog := driver.permMgr.PlanLog()
	var sawSkillDenial bool
	for _, e := range planLog {
		if e.ToolName == "Skill" {
			sawSkillDenial = true
		}
	}
	if !sawSkillDenial {
		t.Fatal("expected the permission manager's plan log to record the denied Skill call")
	}
}

func TestRunSubagentCapturesProviderResolutionFailure(t *testing.T) {
	parent := ParentContext{Model: "m", MaxTurns: 5, Registry: newRegistry(), HookMgr: hooks.New(nil)}
	def := AgentDefinition{Description: "child", Prompt: "p"}
	resolver := func(model string) (engine.Provider, error) { return nil, ErrNoProvider }

	result := RunSubagent(context.Background(), parent, def, "do it", "helper", resolver)
	if result.Error == "" {
		t.Fatal("expected a provider-resolution failure to be captured into result.Error")
	}
}
