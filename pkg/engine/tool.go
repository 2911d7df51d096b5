package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ToolExecContext is threaded into every tool handler invocation.
type ToolExecContext struct {
	Context context.Context
	Cwd     string
	Env     map[string]string
	Session string
}

// ToolOutcome is what a handler returns. A non-nil SkillResult makes the
// driver insert a SkillSystem message before the ordinary tool-result (see
// §4.6.2 step 9). The built-in Skill tool does not use this field: the
// driver handles a "Skill" call itself and builds the SkillSystem directly.
type ToolOutcome struct {
	Content     string
	IsError     bool
	SkillResult *SkillSystem
}

// Tool is the contract every invocable tool implements.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Execute(ctx ToolExecContext, input json.RawMessage) (ToolOutcome, error)
}

// ToolLookup is the read-only subset of Registry's surface handed to a
// sub-agent driver: Register/Unregister are deliberately excluded so a
// child can observe but never mutate its parent's tool registry (§9 design
// note on one-way parent/child handles).
type ToolLookup interface {
	Get(name string) (Tool, bool)
	Has(name string) bool
	GetAll() []Tool
	GetAllowed(allowList []string) []Tool
	GetDefinitions(allowList []string) []ToolDefinition
}

// ToolDefinition is the shape exposed to a provider for tool-calling.
type ToolDefinition struct {
	Type     string             `json:"type"`
	Function ToolDefinitionFunc `json:"function"`
}

type ToolDefinitionFunc struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Registry is a name-to-tool mapping with allow-list filtering and dynamic
// add/remove, safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register inserts or replaces a tool by name. It validates that the tool's
// declared schema is itself well-formed JSON Schema.
func (r *Registry) Register(t Tool) error {
	if t.Name() == "" {
		return fmt.Errorf("engine: tool name must not be empty")
	}
	if err := validateSchema(t.Schema()); err != nil {
		return fmt.Errorf("engine: tool %q has an invalid parameter schema: %w", t.Name(), err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
	return nil
}

func validateSchema(schema json.RawMessage) error {
	if len(schema) == 0 {
		return fmt.Errorf("schema must not be empty")
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", bytes.NewReader(schema)); err != nil {
		return err
	}
	_, err := c.Compile("schema.json")
	return err
}

// Unregister removes a tool by name; no-op if absent.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// GetAll returns every registered tool, sorted by name for deterministic output.
func (r *Registry) GetAll() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// GetAllowed returns the intersection of the registry with the given
// allow-list, preserving the list's order and silently skipping unknown
// names. An empty or nil list means "allow everything".
func (r *Registry) GetAllowed(allowList []string) []Tool {
	if len(allowList) == 0 {
		return r.GetAll()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(allowList))
	for _, name := range allowList {
		if t, ok := r.tools[name]; ok {
			out = append(out, t)
		}
	}
	return out
}

// GetDefinitions returns the schema list suitable for passing to a provider,
// restricted to an optional allow-list (nil means everything).
func (r *Registry) GetDefinitions(allowList []string) []ToolDefinition {
	tools := r.GetAllowed(allowList)
	defs := make([]ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, ToolDefinition{
			Type: "function",
			Function: ToolDefinitionFunc{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Schema(),
			},
		})
	}
	return defs
}
