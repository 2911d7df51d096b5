// Package engine defines the typed message model, tool contract, and
// provider interface shared by the ReAct driver and its collaborators.
package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifies which variant of the Message sum type a value holds.
type Kind string

const (
	KindUser            Kind = "user"
	KindAssistant       Kind = "assistant"
	KindToolResult      Kind = "tool_result"
	KindSystemInit      Kind = "system.init"
	KindCompactBoundary Kind = "system.compact_boundary"
	KindSkillSystem     Kind = "system.skill"
	KindResult          Kind = "result"
)

// StopReason is the reason an Assistant turn ended.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
)

// ResultSubtype enumerates the terminal Result aggregate's outcome.
type ResultSubtype string

const (
	ResultSuccess                       ResultSubtype = "success"
	ResultErrorMaxTurns                 ResultSubtype = "error_max_turns"
	ResultErrorDuringExecution          ResultSubtype = "error_during_execution"
	ResultErrorMaxStructuredOutputRetry ResultSubtype = "error_max_structured_output_retries"
)

// Usage carries token accounting. Last-observed-wins semantics apply when
// accumulating usage across provider chunks (see Provider.Chat).
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ContentBlock is one element of an Assistant's ordered content list: either
// a text fragment or a tool-use request. Exactly one of Text/ToolUse is set.
type ContentBlock struct {
	Text    string   `json:"text,omitempty"`
	ToolUse *ToolUse `json:"tool_use,omitempty"`
}

// ToolUse is a tool invocation request embedded in an Assistant content block.
type ToolUse struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolCall mirrors a ToolUse in the flatter {id, function name, raw
// arguments} shape some providers surface directly; the driver always
// reconciles this back into ContentBlocks before appending to the log.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// User is a role-tagged text message. ParentToolUseID is non-empty when
// this message is a tool-call continuation inside a nested sub-agent.
type User struct {
	Text            string
	ParentToolUseID string
}

// Assistant is the model's turn output: ordered content blocks, an optional
// flat tool-calls view, a stop reason, and usage counters for this turn.
type Assistant struct {
	Content    []ContentBlock
	ToolCalls  []ToolCall
	StopReason StopReason
	Usage      Usage
}

// FinalText concatenates the text blocks of an Assistant message.
func (a *Assistant) FinalText() string {
	var out string
	for _, b := range a.Content {
		out += b.Text
	}
	return out
}

// HasToolCalls reports whether this Assistant turn requested tool execution.
func (a *Assistant) HasToolCalls() bool {
	return len(a.ToolCalls) > 0
}

// ToolResultPayload is the outcome of one tool invocation.
type ToolResultPayload struct {
	ToolUseID string
	ToolName  string
	Content   string
	IsError   bool
}

// SystemInit is emitted once at session start. It carries no prompt content.
type SystemInit struct {
	Model            string
	Provider         string
	ToolNames        []string
	WorkingDirectory string
	PermissionMode   string
	ExternalServers  []string
	SlashCommands    []string
}

// CompactTrigger distinguishes a manually-requested compaction from one
// triggered automatically by crossing the input-token threshold.
type CompactTrigger string

const (
	CompactManual CompactTrigger = "manual"
	CompactAuto   CompactTrigger = "auto"
)

// CompactBoundary marks where compaction replaced older rounds with a summary.
type CompactBoundary struct {
	Trigger   CompactTrigger
	PreTokens int
}

// SkillSystem is injected when a Skill tool invocation resolves successfully.
type SkillSystem struct {
	Name    string
	Content string
}

// Result is the optional terminal aggregate of a driver run.
type Result struct {
	Subtype    ResultSubtype
	Text       string
	IsError    bool
	DurationMs int64
	TurnCount  int
	Usage      Usage
}

// Message is the sum type exchanged between user, assistant, tools, and
// system. Exactly one of the variant fields matching Kind is populated.
type Message struct {
	UUID      string
	SessionID string
	CreatedAt time.Time
	Kind      Kind

	User            *User
	Assistant       *Assistant
	ToolResult      *ToolResultPayload
	SystemInit      *SystemInit
	CompactBoundary *CompactBoundary
	SkillSystem     *SkillSystem
	Result          *Result
}

func newMessage(sessionID string, kind Kind) Message {
	return Message{
		UUID:      uuid.NewString(),
		SessionID: sessionID,
		CreatedAt: time.Now(),
		Kind:      kind,
	}
}

// NewUser constructs a User message.
func NewUser(sessionID, text, parentToolUseID string) Message {
	m := newMessage(sessionID, KindUser)
	m.User = &User{Text: text, ParentToolUseID: parentToolUseID}
	return m
}

// NewAssistant constructs an Assistant message.
func NewAssistant(sessionID string, content []ContentBlock, toolCalls []ToolCall, stop StopReason, usage Usage) Message {
	m := newMessage(sessionID, KindAssistant)
	m.Assistant = &Assistant{Content: content, ToolCalls: toolCalls, StopReason: stop, Usage: usage}
	return m
}

// NewToolResult constructs a ToolResult message.
func NewToolResult(sessionID, toolUseID, toolName, content string, isError bool) Message {
	m := newMessage(sessionID, KindToolResult)
	m.ToolResult = &ToolResultPayload{ToolUseID: toolUseID, ToolName: toolName, Content: content, IsError: isError}
	return m
}

// NewSystemInit constructs a SystemInit message, validating required fields.
func NewSystemInit(sessionID string, init SystemInit) (Message, error) {
	if init.Model == "" {
		return Message{}, fmt.Errorf("engine: SystemInit requires a model")
	}
	if init.Provider == "" {
		return Message{}, fmt.Errorf("engine: SystemInit requires a provider tag")
	}
	if init.WorkingDirectory == "" {
		return Message{}, fmt.Errorf("engine: SystemInit requires a working directory")
	}
	if sessionID == "" {
		return Message{}, fmt.Errorf("engine: SystemInit requires a session id")
	}
	m := newMessage(sessionID, KindSystemInit)
	m.SystemInit = &init
	return m, nil
}

// NewCompactBoundary constructs a CompactBoundary message.
func NewCompactBoundary(sessionID string, trigger CompactTrigger, preTokens int) Message {
	m := newMessage(sessionID, KindCompactBoundary)
	m.CompactBoundary = &CompactBoundary{Trigger: trigger, PreTokens: preTokens}
	return m
}

// NewSkillSystem constructs a SkillSystem message.
func NewSkillSystem(sessionID, name, content string) Message {
	m := newMessage(sessionID, KindSkillSystem)
	m.SkillSystem = &SkillSystem{Name: name, Content: content}
	return m
}

// NewResult constructs a terminal Result message.
func NewResult(sessionID string, r Result) Message {
	m := newMessage(sessionID, KindResult)
	m.Result = &r
	return m
}

func (m Message) IsUser() bool            { return m.Kind == KindUser }
func (m Message) IsAssistant() bool       { return m.Kind == KindAssistant }
func (m Message) IsToolResult() bool      { return m.Kind == KindToolResult }
func (m Message) IsSystemInit() bool      { return m.Kind == KindSystemInit }
func (m Message) IsCompactBoundary() bool { return m.Kind == KindCompactBoundary }
func (m Message) IsSkillSystem() bool     { return m.Kind == KindSkillSystem }
func (m Message) IsResult() bool          { return m.Kind == KindResult }

// ValidateConversation checks the invariants of §3: SystemInit first and
// unique, ToolResults reference a preceding Assistant tool-use id, and
// per-Assistant tool-results are contiguous and order-consistent.
func ValidateConversation(log []Message) error {
	sawInit := false
	pendingByAssistant := map[string][]string // assistant uuid -> remaining tool-use ids in order
	idToAssistant := map[string]string{}      // tool-use id -> owning assistant uuid
	var lastAssistantWithPending string

	for i, m := range log {
		switch m.Kind {
		case KindSystemInit:
			if i != 0 {
				return fmt.Errorf("engine: SystemInit must be the first message, found at index %d", i)
			}
			if sawInit {
				return fmt.Errorf("engine: SystemInit must be unique per session")
			}
			sawInit = true
		case KindAssistant:
			var ids []string
			for _, b := range m.Assistant.Content {
				if b.ToolUse != nil {
					ids = append(ids, b.ToolUse.ID)
					idToAssistant[b.ToolUse.ID] = m.UUID
				}
			}
			if len(ids) > 0 {
				pendingByAssistant[m.UUID] = ids
				lastAssistantWithPending = m.UUID
			}
		case KindToolResult:
			owner, ok := idToAssistant[m.ToolResult.ToolUseID]
			if !ok {
				return fmt.Errorf("engine: ToolResult %q references unknown tool_use_id %q", m.UUID, m.ToolResult.ToolUseID)
			}
			remaining := pendingByAssistant[owner]
			if len(remaining) == 0 || remaining[0] != m.ToolResult.ToolUseID {
				return fmt.Errorf("engine: ToolResult %q out of order for assistant %q", m.UUID, owner)
			}
			if owner != lastAssistantWithPending {
				return fmt.Errorf("engine: ToolResult %q is not contiguous with its assistant's tool-use block order", m.UUID)
			}
			pendingByAssistant[owner] = remaining[1:]
		}
	}
	return nil
}
