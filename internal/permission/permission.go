// Package permission implements the four-mode authorization gate over tool
// invocations: plan ⊑ default ⊑ acceptEdits ⊑ bypassPermissions.
package permission

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"
)

// Mode is one of the four permission modes, forming a partial order of
// permissiveness from most to least restrictive.
type Mode string

const (
	ModePlan              Mode = "plan"
	ModeDefault           Mode = "default"
	ModeAcceptEdits       Mode = "acceptEdits"
	ModeBypassPermissions Mode = "bypassPermissions"
)

// editSetPatterns and sensitiveSetPatterns are the fixed predicates
// referenced by §4.3; exposed as pure functions so tests can assert them.
var editSetPatterns = []string{"Write", "Edit", "MultiEdit", "NotebookEdit"}
var sensitiveSetPatterns = []string{"Bash", "Write", "Edit", "MultiEdit", "NotebookEdit", "WebFetch"}

// IsEditTool reports whether name is in the fixed edit set (auto-approved
// under acceptEdits).
func IsEditTool(name string) bool { return containsExact(editSetPatterns, name) }

// IsSensitiveTool reports whether name is in the fixed sensitive set
// (gated through canUseTool under default mode).
func IsSensitiveTool(name string) bool { return containsExact(sensitiveSetPatterns, name) }

func containsExact(set []string, name string) bool {
	for _, s := range set {
		if s == name {
			return true
		}
	}
	return false
}

// PlanLogEntry records one denied check performed while in plan mode.
type PlanLogEntry struct {
	ToolName  string
	Input     json.RawMessage
	Timestamp time.Time
}

// Decision is the outcome of a permission check.
type Decision struct {
	Allowed      bool
	UpdatedInput json.RawMessage
	Reason       string
}

// CanUseToolFunc is the caller-supplied confirmation callback consulted for
// sensitive tools in default mode.
type CanUseToolFunc func(ctx context.Context, toolName string, input json.RawMessage) (Decision, error)

// Manager is the session's permission gate. Mode and the skill allow-list
// are mutable under a single-writer discipline (§5): the driver between
// turns, or the skill-execution wrapper bracketing a skill invocation.
type Manager struct {
	mu              sync.Mutex
	mode            Mode
	canUseTool      CanUseToolFunc
	skillAllowList  []string
	planLog         []PlanLogEntry
	logger          *slog.Logger
}

// Option configures a Manager at construction.
type Option func(*Manager)

// WithCanUseTool installs the confirmation callback for sensitive tools.
func WithCanUseTool(fn CanUseToolFunc) Option {
	return func(m *Manager) { m.canUseTool = fn }
}

// WithLogger installs a structured logger; defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// New constructs a Manager. Construction with mode=bypassPermissions fails
// unless allowDangerouslySkipPermissions is set — an integrity check, not
// a permission, per §4.3.
func New(mode Mode, allowDangerouslySkipPermissions bool, opts ...Option) (*Manager, error) {
	if mode == ModeBypassPermissions && !allowDangerouslySkipPermissions {
		return nil, fmt.Errorf("permission: bypassPermissions requires allowDangerouslySkipPermissions to be set")
	}
	m := &Manager{mode: mode, logger: slog.Default()}
	for _, o := range opts {
		o(m)
	}
	m.logger = m.logger.With("component", "permission")
	return m, nil
}

// Mode returns the manager's current mode.
func (m *Manager) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// SetMode changes the current mode. Single-writer discipline is the
// caller's responsibility (§5).
func (m *Manager) SetMode(mode Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = mode
}

// SetSkillAllowList installs a temporary allow-list scoping a skill's
// continuation. Only nil clears the scope; an empty non-nil slice is an
// active scope that denies every tool.
func (m *Manager) SetSkillAllowList(names []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skillAllowList = names
}

// ClearSkillAllowList clears the skill scope.
func (m *Manager) ClearSkillAllowList() {
	m.SetSkillAllowList(nil)
}

// PlanLog returns a copy of the plan log recorded while in plan mode.
func (m *Manager) PlanLog() []PlanLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PlanLogEntry, len(m.planLog))
	copy(out, m.planLog)
	return out
}

// Check evaluates the permission gate for one tool invocation, per the
// mode table of §4.3. The skill-scope check runs first, before the mode
// checks, except for bypassPermissions which always approves.
func (m *Manager) Check(ctx context.Context, toolName string, input json.RawMessage) (Decision, error) {
	m.mu.Lock()
	mode := m.mode
	skillList := m.skillAllowList
	m.mu.Unlock()

	if mode != ModeBypassPermissions && skillList != nil && !containsExact(skillList, toolName) {
		return Decision{Allowed: false, Reason: fmt.Sprintf("tool %q is not in the active skill's allowed-tools list", toolName)}, nil
	}

	switch mode {
	case ModeBypassPermissions:
		return Decision{Allowed: true}, nil

	case ModePlan:
		m.mu.Lock()
		m.planLog = append(m.planLog, PlanLogEntry{ToolName: toolName, Input: input, Timestamp: time.Now()})
		m.mu.Unlock()
		return Decision{Allowed: false, Reason: "Tool execution blocked in plan mode"}, nil

	case ModeAcceptEdits:
		if IsEditTool(toolName) {
			return Decision{Allowed: true}, nil
		}
		return m.defaultCheck(ctx, toolName, input)

	case ModeDefault:
		return m.defaultCheck(ctx, toolName, input)

	default:
		return Decision{}, fmt.Errorf("permission: unknown mode %q", mode)
	}
}

func (m *Manager) defaultCheck(ctx context.Context, toolName string, input json.RawMessage) (Decision, error) {
	if !IsSensitiveTool(toolName) {
		return Decision{Allowed: true}, nil
	}
	m.mu.Lock()
	cb := m.canUseTool
	m.mu.Unlock()
	if cb == nil {
		return Decision{Allowed: false, Reason: fmt.Sprintf("tool %q requires confirmation but no canUseTool callback is configured", toolName)}, nil
	}
	d, err := cb(ctx, toolName, input)
	if err != nil {
		m.logger.Error("canUseTool callback failed", "tool", toolName, "error", err)
		return Decision{Allowed: false, Reason: "confirmation callback failed"}, nil
	}
	return d, nil
}

// CompileMatcher builds a regexp matcher for callers that need to test an
// allow-list entry against a dynamic tool name.
func CompileMatcher(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(pattern)
}
