// Package session wires together the Tool Registry, MCP Bridge, Skill
// Registry, Permission Manager, Hook Manager, and ReAct Driver into one
// bound instance, following the teacher's Runtime's own construction
// pattern (internal/agent/runtime.go's NewRuntimeWithOptions: one registry,
// one provider, one option struct, all assembled in a single constructor).
package session

import (
	"context"
	"log/slog"

	"github.com/agentcore-go/agentcore/internal/agent"
	"github.com/agentcore-go/agentcore/internal/hooks"
	"github.com/agentcore-go/agentcore/internal/mcp"
	"github.com/agentcore-go/agentcore/internal/observability"
	"github.com/agentcore-go/agentcore/internal/permission"
	"github.com/agentcore-go/agentcore/internal/skills"
	"github.com/agentcore-go/agentcore/pkg/engine"
	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Options configures a Session at construction. Provider is required (New
// fails without it); every other field is optional, and zero values fall
// back to the driver's own documented defaults.
type Options struct {
	SessionID                      string
	Provider                       engine.Provider
	ProviderTag                    string
	SystemPrompt                   string
	Cwd                            string
	MaxTurns                       int
	PermissionMode                 permission.Mode
	AllowDangerouslySkipPermissions bool
	CanUseTool                     permission.CanUseToolFunc
	AutoCompactThreshold           int
	PreserveRecentRounds           int
	PersonalSkillsDir              string
	ProjectSkillsDir               string
	// MCPServers maps a server ID to an already-connected Caller.
	// Establishing the connection itself is a concrete transport's job,
	// out of this engine's scope (§1); the bridge only mirrors an
	// already-connected server's tool catalog into the registry.
	MCPServers                     map[string]mcp.Caller
	AgentDefinitions               map[string]agent.AgentDefinition
	ResolveProvider                agent.ProviderResolver
	Logger                         *slog.Logger
	// TraceExporter, if set, installs a process-global OpenTelemetry
	// TracerProvider batching spans to it (§5's per-turn span requirement).
	// Nil leaves whatever tracer provider the embedding application already
	// installed in place.
	TraceExporter sdktrace.SpanExporter
	// MetricsRegistry, if set, receives the driver's turn-count and
	// tool-latency metrics (and the compactor's invocation/fallback
	// counters). Nil leaves metrics unregistered.
	MetricsRegistry prometheus.Registerer
}

// Session is one bound, end-to-end-wired engine instance: a tool registry
// (with any MCP servers bridged in), a loaded skill registry, a permission
// manager, a hook manager, and the ReAct driver that ties them together.
type Session struct {
	ID               string
	Registry         *engine.Registry
	Bridge           *mcp.Bridge
	Skills           *skills.Registry
	Hooks            *hooks.Manager
	Driver           *agent.Driver
	TracingShutdown  func(context.Context) error
}

// New constructs a fully wired Session per this engine's control-flow
// contract (§2): build the registry, bridge any configured MCP servers into
// it, load skills, then hand everything to a new Driver.
func New(ctx context.Context, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var tracingShutdown func(context.Context) error
	if opts.TraceExporter != nil {
		shutdown, err := observability.NewTracerProvider(ctx, observability.TraceConfig{
			ServiceName: "agentcore", ServiceVersion: "dev", Exporter: opts.TraceExporter,
		})
		if err != nil {
			return nil, err
		}
		tracingShutdown = shutdown
	}

	registry := engine.NewRegistry()
	bridge := mcp.New(registry, logger)
	for serverID, caller := range opts.MCPServers {
		if err := bridge.RegisterServer(serverID, caller); err != nil {
			logger.Error("failed to register external tool server", "server", serverID, "error", err)
			bridge.MarkFailed(serverID, mcp.StatusFailed)
		}
	}

	skillRegistry, err := skills.Load(opts.PersonalSkillsDir, opts.ProjectSkillsDir)
	if err != nil {
		return nil, err
	}
	if err := registry.Register(agent.SkillTool()); err != nil {
		return nil, err
	}

	hookMgr := hooks.New(logger)

	if opts.AgentDefinitions != nil {
		resolve := opts.ResolveProvider
		if resolve == nil {
			resolve = func(string) (engine.Provider, error) { return opts.Provider, nil }
		}
		parentModel := ""
		if opts.Provider != nil {
			parentModel = opts.Provider.Model()
		}
		if err := registry.Register(&agent.TaskTool{
			Parent: agent.ParentContext{
				Model:                           parentModel,
				MaxTurns:                        opts.MaxTurns,
				PermissionMode:                  opts.PermissionMode,
				AllowDangerouslySkipPermissions: opts.AllowDangerouslySkipPermissions,
				CanUseTool:                      opts.CanUseTool,
				Registry:                        registry,
				HookMgr:                         hookMgr,
			},
			Definitions:     opts.AgentDefinitions,
			ResolveProvider: resolve,
		}); err != nil {
			return nil, err
		}
	}

	cfg := agent.Config{
		MaxTurns:                        opts.MaxTurns,
		SystemPrompt:                    opts.SystemPrompt,
		Cwd:                             opts.Cwd,
		PermissionMode:                  opts.PermissionMode,
		AllowDangerouslySkipPermissions: opts.AllowDangerouslySkipPermissions,
		CanUseTool:                      opts.CanUseTool,
		Hooks:                           hookMgr,
		AutoCompactThreshold:            opts.AutoCompactThreshold,
		PreserveRecentRounds:            opts.PreserveRecentRounds,
		SkillRegistry:                   skillRegistry,
		ProviderTag:                     opts.ProviderTag,
	}

	driverOpts := []agent.Option{agent.WithLogger(logger)}
	if opts.MetricsRegistry != nil {
		driverOpts = append(driverOpts, agent.WithMetrics(opts.MetricsRegistry))
	}
	driver, err := agent.NewDriver(opts.SessionID, opts.Provider, registry, cfg, driverOpts...)
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:              opts.SessionID,
		Registry:        registry,
		Bridge:          bridge,
		Skills:          skillRegistry,
		Hooks:           hookMgr,
		Driver:          driver,
		TracingShutdown: tracingShutdown,
	}, nil
}
