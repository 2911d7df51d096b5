package permission

import (
	"context"
	"encoding/json"
	"testing"
)

func TestNewRejectsBypassWithoutFlag(t *testing.T) {
	if _, err := New(ModeBypassPermissions, false); err == nil {
		t.Fatal("expected construction to fail without allowDangerouslySkipPermissions")
	}
	if _, err := New(ModeBypassPermissions, true); err != nil {
		t.Fatalf("expected construction to succeed with the flag set, got %v", err)
	}
}

func TestIsEditToolAndIsSensitiveTool(t *testing.T) {
	for _, name := range []string{"Write", "Edit", "MultiEdit", "NotebookEdit"} {
		if !IsEditTool(name) {
			t.Errorf("expected %q to be an edit tool", name)
		}
		if !IsSensitiveTool(name) {
			t.Errorf("expected edit tool %q to also be sensitive", name)
		}
	}
	if !IsSensitiveTool("Bash") || !IsSensitiveTool("WebFetch") {
		t.Fatal("expected Bash and WebFetch to be sensitive")
	}
	if IsEditTool("Bash") {
		t.Fatal("Bash is sensitive but not an edit tool")
	}
	if IsSensitiveTool("Read") || IsEditTool("Read") {
		t.Fatal("Read is neither edit nor sensitive")
	}
}

func TestModeBypassPermissionsAllowsEverything(t *testing.T) {
	m, err := New(ModeBypassPermissions, true)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := m.Check(context.Background(), "Bash", nil)
	if err != nil || !dec.Allowed {
		t.Fatalf("expected bypassPermissions to allow Bash, got %+v, err=%v", dec, err)
	}
}

func TestModePlanDeniesAndLogs(t *testing.T) {
	m, err := New(ModePlan, false)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		dec, err := m.Check(context.Background(), "Read", json.RawMessage(`{}`))
		if err != nil {
			t.Fatal(err)
		}
		if dec.Allowed {
			t.Fatal("expected plan mode to deny every tool")
		}
	}
	if got := len(m.PlanLog()); got != 3 {
		t.Fatalf("expected 3 plan log entries after 3 checks, got %d", got)
	}
}

func TestModeDefaultAllowsNonSensitiveWithoutCallback(t *testing.T) {
	m, err := New(ModeDefault, false)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := m.Check(context.Background(), "Read", nil)
	if err != nil || !dec.Allowed {
		t.Fatalf("expected Read to be allowed with no callback, got %+v, err=%v", dec, err)
	}
}

func TestModeDefaultDeniesSensitiveWithoutCallback(t *testing.T) {
	m, err := New(ModeDefault, false)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := m.Check(context.Background(), "Bash", nil)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Allowed {
		t.Fatal("expected Bash to be denied without a canUseTool callback")
	}
}

func TestModeDefaultConsultsCallbackForSensitiveTool(t *testing.T) {
	called := false
	m, err := New(ModeDefault, false, WithCanUseTool(func(ctx context.Context, toolName string, input json.RawMessage) (Decision, error) {
		called = true
		return Decision{Allowed: true}, nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	dec, err := m.Check(context.Background(), "Bash", nil)
	if err != nil || !dec.Allowed || !called {
		t.Fatalf("expected callback to be consulted and approve, got %+v called=%v err=%v", dec, called, err)
	}
}

func TestModeAcceptEditsAutoApprovesEditSetWithoutCallback(t *testing.T) {
	m, err := New(ModeAcceptEdits, false)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := m.Check(context.Background(), "Write", nil)
	if err != nil || !dec.Allowed {
		t.Fatalf("expected Write to be auto-approved under acceptEdits, got %+v, err=%v", dec, err)
	}
	// Bash is sensitive but not in the edit set, so it still falls through
	// to the default-mode gate.
	dec, err = m.Check(context.Background(), "Bash", nil)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Allowed {
		t.Fatal("expected Bash to still require confirmation under acceptEdits")
	}
}

func TestSkillAllowListScopesChecksAboveMode(t *testing.T) {
	m, err := New(ModeDefault, false)
	if err != nil {
		t.Fatal(err)
	}
	m.SetSkillAllowList([]string{"Read"})
	if dec, _ := m.Check(context.Background(), "Read", nil); !dec.Allowed {
		t.Fatal("expected Read to be allowed while in the skill allow-list")
	}
	if dec, _ := m.Check(context.Background(), "Glob", nil); dec.Allowed {
		t.Fatal("expected Glob to be denied while scoped to a skill allow-list excluding it")
	}
	m.ClearSkillAllowList()
	if dec, _ := m.Check(context.Background(), "Glob", nil); !dec.Allowed {
		t.Fatal("expected Glob to be allowed again after clearing the skill scope")
	}
}

func TestSkillAllowListDoesNotConstrainBypassPermissions(t *testing.T) {
	m, err := New(ModeBypassPermissions, true)
	if err != nil {
		t.Fatal(err)
	}
	m.SetSkillAllowList([]string{"Read"})
	if dec, _ := m.Check(context.Background(), "Bash", nil); !dec.Allowed {
		t.Fatal("expected bypassPermissions to ignore the skill allow-list entirely")
	}
}

func TestSetModeIsObservedByMode(t *testing.T) {
	m, err := New(ModeDefault, false)
	if err != nil {
		t.Fatal(err)
	}
	m.SetMode(ModePlan)
	if m.Mode() != ModePlan {
		t.Fatalf("expected Mode() to report %q after SetMode", ModePlan)
	}
}
