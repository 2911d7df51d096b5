// Package mcp bridges an external tool-server protocol (multiple
// transports: subprocess stdio, streamable HTTP, SSE, or in-process SDK)
// into the engine's tool registry, name-prefixing every contributed tool to
// guarantee non-collision with built-ins.
//
// Grounded closely on the teacher's internal/mcp package: safeToolName,
// truncateWithHash, and formatToolCallResult are near-literal adaptations
// of internal/mcp/bridge.go; Bridge/Config/ServerConfig mirror
// internal/mcp/manager.go, with its boolean connection flag widened to the
// four-value Status enum.
package mcp

import (
	"encoding/json"
	"strings"
)

// Status is the connection state of one external server.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConnected Status = "connected"
	StatusFailed    Status = "failed"
	StatusNeedsAuth Status = "needs-auth"
)

// RemoteTool is one tool entry fetched from an external server's catalog.
type RemoteTool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// ToolCallResult is the content returned by a remote tool invocation.
type ToolCallResult struct {
	Content []ContentItem
	IsError bool
}

// ContentItem is one element of a tool-call result's content array.
type ContentItem struct {
	Type string
	Text string
}

// ServerConfig describes one external server to connect to.
type ServerConfig struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Transport string `yaml:"transport"` // "stdio" | "http" | "sse" | "inprocess"
	Command   string `yaml:"command,omitempty"`
	URL       string `yaml:"url,omitempty"`
	AutoStart bool   `yaml:"auto_start"`
}

// Config is the top-level external-tool configuration.
type Config struct {
	Enabled bool           `yaml:"enabled"`
	Servers []ServerConfig `yaml:"servers"`
}

// Caller is the minimal transport-agnostic surface a connected server
// exposes; concrete transports (stdio/http/sse/inprocess) implement this
// and are out of this engine's scope — only the calling convention is
// specified (§1).
type Caller interface {
	Tools() []RemoteTool
	CallTool(name string, arguments json.RawMessage) (ToolCallResult, error)
	Close() error
}

const maxToolNameLen = 64

// sanitizeToolPart lowercases and replaces any run of non-alphanumeric
// characters with a single underscore, matching the teacher's sanitizer.
func sanitizeToolPart(s string) string {
	var b strings.Builder
	lastWasSep := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastWasSep = false
			continue
		}
		if !lastWasSep {
			b.WriteRune('_')
			lastWasSep = true
		}
	}
	return strings.Trim(b.String(), "_")
}

// safeToolName builds the registry name "mcp_<server>_<tool>" for a remote
// tool, truncating with a content hash on collision or excess length.
func safeToolName(serverID, toolName string, used map[string]bool) string {
	base := "mcp_" + sanitizeToolPart(serverID) + "_" + sanitizeToolPart(toolName)
	name := base
	if len(name) > maxToolNameLen || used[name] {
		name = truncateWithHash(base, used)
	}
	used[name] = true
	return name
}

func truncateWithHash(base string, used map[string]bool) string {
	hash := toolNameHash(base)
	maxBase := maxToolNameLen - len(hash) - 1
	if maxBase < 0 {
		maxBase = 0
	}
	truncated := base
	if len(truncated) > maxBase {
		truncated = truncated[:maxBase]
	}
	candidate := truncated + "_" + hash
	for used[candidate] {
		hash = toolNameHash(candidate)
		candidate = truncated + "_" + hash
	}
	return candidate
}

// parseToolName splits a bridged local tool name "mcp_A_B_C" into
// {server:"A", tool:"B_C"}: the server is the first underscore-segment
// after the mcp_ prefix, everything after is the tool name. Names not
// starting with mcp_ or with fewer than two underscored parts are rejected.
func parseToolName(name string) (server, tool string, ok bool) {
	const prefix = "mcp_"
	if !strings.HasPrefix(name, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(name, prefix)
	idx := strings.Index(rest, "_")
	if idx <= 0 || idx == len(rest)-1 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}

func formatToolCallResult(r ToolCallResult) string {
	var b strings.Builder
	for i, item := range r.Content {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(item.Text)
	}
	return b.String()
}
