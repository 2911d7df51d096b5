package mcp

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/agentcore-go/agentcore/pkg/engine"
)

func toolNameHash(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:8]
}

// bridgedTool adapts one RemoteTool into engine.Tool, proxying Execute to
// the owning server's Caller.
type bridgedTool struct {
	name        string
	description string
	schema      json.RawMessage
	serverID    string
	remoteName  string
	caller      Caller
}

func (t *bridgedTool) Name() string            { return t.name }
func (t *bridgedTool) Description() string     { return t.description }
func (t *bridgedTool) Schema() json.RawMessage { return t.schema }

func (t *bridgedTool) Execute(ctx engine.ToolExecContext, input json.RawMessage) (engine.ToolOutcome, error) {
	result, err := t.caller.CallTool(t.remoteName, input)
	if err != nil {
		return engine.ToolOutcome{Content: fmt.Sprintf("Error: %s", err), IsError: true}, nil
	}
	return engine.ToolOutcome{Content: formatToolCallResult(result), IsError: result.IsError}, nil
}

// serverState tracks one connected (or attempted) external server.
type serverState struct {
	status     Status
	caller     Caller
	toolNames  []string // local registry names contributed by this server
}

// Bridge owns the set of connected external servers and mirrors their tool
// catalogs into an engine.Registry under mcp_<server>_<tool> names.
type Bridge struct {
	mu        sync.Mutex
	registry  *engine.Registry
	servers   map[string]*serverState
	usedNames map[string]bool
	logger    *slog.Logger
}

// New constructs a Bridge that registers into registry.
func New(registry *engine.Registry, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		registry:  registry,
		servers:   make(map[string]*serverState),
		usedNames: make(map[string]bool),
		logger:    logger.With("component", "mcp-bridge"),
	}
}

// RegisterServer connects caller under serverID (connection establishment
// itself is the concrete transport's job — caller is already connected by
// the time it is handed to RegisterServer) and mirrors its tool catalog
// into the registry.
func (b *Bridge) RegisterServer(serverID string, caller Caller) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := &serverState{status: StatusConnected, caller: caller}
	for _, rt := range caller.Tools() {
		localName := safeToolName(serverID, rt.Name, b.usedNames)
		bt := &bridgedTool{
			name:        localName,
			description: fmt.Sprintf("[MCP:%s] %s", serverID, rt.Description),
			schema:      rt.InputSchema,
			serverID:    serverID,
			remoteName:  rt.Name,
			caller:      caller,
		}
		if err := b.registry.Register(bt); err != nil {
			b.logger.Error("failed to register bridged tool", "server", serverID, "tool", rt.Name, "error", err)
			continue
		}
		state.toolNames = append(state.toolNames, localName)
	}
	b.servers[serverID] = state
	b.logger.Info("connected external server", "server", serverID, "tools", len(state.toolNames))
	return nil
}

// MarkFailed records a connection failure for serverID without registering
// any tools. Connection failures are typed (see FailureKind) and non-fatal
// to the driver (§4.9).
func (b *Bridge) MarkFailed(serverID string, status Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.servers[serverID] = &serverState{status: status}
}

// UnregisterServer removes every tool serverID contributed from the
// registry and forgets the server.
func (b *Bridge) UnregisterServer(serverID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.servers[serverID]
	if !ok {
		return
	}
	for _, name := range state.toolNames {
		b.registry.Unregister(name)
		delete(b.usedNames, name)
	}
	if state.caller != nil {
		if err := state.caller.Close(); err != nil {
			b.logger.Warn("error closing external server connection", "server", serverID, "error", err)
		}
	}
	delete(b.servers, serverID)
}

// Status returns the connection status of every known server.
func (b *Bridge) Status() map[string]Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]Status, len(b.servers))
	for id, s := range b.servers {
		out[id] = s.status
	}
	return out
}

// ParseToolName exposes the mcp_<server>_<tool> parser for callers that
// need to recover the owning server from a bridged tool's registry name.
func ParseToolName(name string) (server, tool string, ok bool) {
	return parseToolName(name)
}

// FailureKind categorizes why a server connection attempt failed.
type FailureKind string

const (
	FailureConnection FailureKind = "connection"
	FailureTimeout    FailureKind = "timeout"
	FailureProtocol   FailureKind = "protocol"
	FailureTool       FailureKind = "tool"
)

// ConnectError is a typed, non-fatal connection failure.
type ConnectError struct {
	Kind     FailureKind
	ServerID string
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("mcp: %s connection to %q failed: %v", e.Kind, e.ServerID, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }
