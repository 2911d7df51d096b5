package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/agentcore-go/agentcore/internal/compaction"
	"github.com/agentcore-go/agentcore/internal/hooks"
	"github.com/agentcore-go/agentcore/internal/permission"
	"github.com/agentcore-go/agentcore/pkg/engine"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// askUserQuestionTimeout is the hard timeout of §4.6.2 step 3 / §5,
// independent of the driver's own abort signal.
const askUserQuestionTimeout = 60 * time.Second

// summarizerAdapter folds a Provider's chat-chunk stream into the plain
// string-returning Summarizer interface the compactor expects.
type summarizerAdapter struct {
	provider engine.Provider
	cwd      string
}

func (s *summarizerAdapter) GenerateSummary(ctx context.Context, messages []engine.Message) (string, error) {
	completion := toCompletionMessages(messages)
	completion = append(completion, engine.CompletionMessage{
		Role:    "user",
		Content: "Summarize the conversation above concisely, preserving facts and decisions a continuation would need.",
	})
	chunks, err := s.provider.Chat(ctx, completion, nil, engine.ChatOptions{})
	if err != nil {
		return "", err
	}
	var text string
	for c := range chunks {
		switch c.Kind {
		case engine.ChunkContent:
			text += c.Delta
		case engine.ChunkError:
			return "", c.Err
		}
	}
	return text, nil
}

// Driver is one session's ReAct engine instance (§4.6). It owns its message
// log for the duration of one Run/RunStream call.
type Driver struct {
	sessionID string
	provider  engine.Provider
	registry  engine.ToolLookup
	permMgr   *permission.Manager
	hookMgr   *hooks.Manager
	compactor *compaction.Compactor
	cfg       Config
	logger    *slog.Logger
	tracer    trace.Tracer

	turns       prometheus.Counter
	toolLatency prometheus.Histogram
	metricsReg  prometheus.Registerer

	mu                sync.Mutex
	log               []engine.Message
	turnCount         int
	totalInputTokens  int
	totalOutputTokens int
	lastContextTokens int
	structuredOutput  json.RawMessage
}

// Option configures a Driver at construction.
type Option func(*Driver)

// WithLogger installs a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics installs a Prometheus registry to export turn and tool-call
// latency into, mirroring the teacher's general use of Prometheus for
// agent-loop observability (and the same pattern used by
// internal/compaction.WithMetrics). A nil registry leaves metrics
// unregistered (no-op).
func WithMetrics(reg prometheus.Registerer) Option {
	return func(d *Driver) {
		if reg == nil {
			return
		}
		d.turns = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentcore_driver_turns_total",
			Help: "Number of ReAct turns executed.",
		})
		d.toolLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "agentcore_driver_tool_duration_seconds",
			Help:    "Latency of individual tool-call executions.",
			Buckets: prometheus.DefBuckets,
		})
		reg.MustRegister(d.turns, d.toolLatency)
		d.metricsReg = reg
	}
}

// NewDriver constructs a Driver bound to provider and registry (a read-only
// tool view for sub-agents; the full *engine.Registry for a top-level
// session).
func NewDriver(sessionID string, provider engine.Provider, registry engine.ToolLookup, cfg Config, opts ...Option) (*Driver, error) {
	if provider == nil {
		return nil, ErrNoProvider
	}
	cfg = sanitize(cfg)

	permMgr, err := permission.New(cfg.PermissionMode, cfg.AllowDangerouslySkipPermissions, permission.WithCanUseTool(cfg.CanUseTool))
	if err != nil {
		return nil, err
	}

	hookMgr := cfg.Hooks
	if hookMgr == nil {
		hookMgr = hooks.New(nil)
	}

	d := &Driver{
		sessionID: sessionID,
		provider:  provider,
		registry:  registry,
		permMgr:   permMgr,
		hookMgr:   hookMgr,
		cfg:       cfg,
		logger:    slog.Default(),
		tracer:    otel.Tracer("agentcore/agent"),
	}
	for _, o := range opts {
		o(d)
	}
	d.logger = d.logger.With("component", "driver", "session", sessionID)
	compactOpts := []compaction.Option{compaction.WithLogger(d.logger)}
	if d.metricsReg != nil {
		compactOpts = append(compactOpts, compaction.WithMetrics(d.metricsReg))
	}
	d.compactor = compaction.New(&summarizerAdapter{provider: provider, cwd: cfg.Cwd}, hookMgr, compactOpts...)
	return d, nil
}

// Log returns a snapshot of the current message log.
func (d *Driver) Log() []engine.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]engine.Message, len(d.log))
	copy(out, d.log)
	return out
}

func hasSystemInit(log []engine.Message) bool {
	return len(log) > 0 && log[0].IsSystemInit()
}

// Run executes the batched entry point (§4.6).
func (d *Driver) Run(ctx context.Context, prompt string) (ReActResult, error) {
	return d.run(ctx, prompt, nil)
}

// RunStream executes the streaming entry point, returning a channel of
// Events that is closed when the run terminates.
func (d *Driver) RunStream(ctx context.Context, prompt string) <-chan Event {
	out := make(chan Event, 8)
	go func() {
		defer close(out)
		sink := func(e Event) {
			select {
			case out <- e:
			case <-ctx.Done():
			}
		}
		_, _ = d.run(ctx, prompt, sink)
	}()
	return out
}

func (d *Driver) run(ctx context.Context, prompt string, sink func(Event)) (ReActResult, error) {
	streaming := sink != nil
	emit := func(e Event) {
		if streaming {
			sink(e)
		}
	}
	defer d.permMgr.ClearSkillAllowList()

	if d.cfg.SystemPrompt != "" && !hasSystemInit(d.log) {
		init, err := engine.NewSystemInit(d.sessionID, engine.SystemInit{
			Model:            d.provider.Model(),
			Provider:         d.cfg.ProviderTag,
			WorkingDirectory: d.cfg.Cwd,
			PermissionMode:   string(d.permMgr.Mode()),
		})
		if err != nil {
			return ReActResult{}, err
		}
		d.log = append(d.log, init)
	}

	if streaming {
		reason := "startup"
		if d.turnCount > 0 {
			reason = "resume"
		}
		d.hookMgr.Emit(ctx, hooks.SessionStart, hooks.Input{SessionID: d.sessionID, Reason: reason})
	}

	d.hookMgr.Emit(ctx, hooks.UserPromptSubmit, hooks.Input{SessionID: d.sessionID, Prompt: prompt})
	d.log = append(d.log, engine.NewUser(d.sessionID, prompt, ""))

	for {
		if ctx.Err() != nil {
			return d.abortResult(streaming), nil
		}

		d.turnCount++
		if d.turns != nil {
			d.turns.Inc()
		}
		ctxTurn, span := d.tracer.Start(ctx, "agent.turn")
		assistant, err := d.callProviderOnce(ctxTurn)
		span.End()
		if err != nil {
			if engine.IsAborted(err) {
				return d.abortResult(streaming), nil
			}
			return ReActResult{}, err
		}
		d.log = append(d.log, assistant)
		emit(Event{Kind: EventAssistant, Assistant: &assistant})

		if d.cfg.AutoCompactThreshold > 0 && d.lastContextTokens > d.cfg.AutoCompactThreshold {
			d.runCompaction(ctx, engine.CompactAuto)
		}

		asst := assistant.Assistant
		if asst.HasToolCalls() {
			for _, tc := range asst.ToolCalls {
				d.executeAndAppend(ctx, tc, emit)
			}
			if d.turnCount >= d.cfg.MaxTurns {
				return d.maxTurnsResult(streaming), nil
			}
			continue
		}

		continueLoop := false
		for _, o := range d.hookMgr.Emit(ctx, hooks.Stop, hooks.Input{SessionID: d.sessionID}) {
			if o.ShouldContinue() {
				continueLoop = true
			}
		}
		if continueLoop {
			if d.turnCount >= d.cfg.MaxTurns {
				return d.maxTurnsResult(streaming), nil
			}
			continue
		}

		result := ReActResult{
			Result:           asst.FinalText(),
			Messages:         d.Log(),
			TurnCount:        d.turnCount,
			Usage:            engine.Usage{InputTokens: d.totalInputTokens, OutputTokens: d.totalOutputTokens},
			StructuredOutput: d.structuredOutput,
		}
		if streaming {
			emit(Event{Kind: EventUsage, Usage: &result.Usage})
			emit(Event{Kind: EventDone, Done: &result})
			d.hookMgr.Emit(ctx, hooks.SessionEnd, hooks.Input{SessionID: d.sessionID, Reason: "completed"})
		}
		return result, nil
	}
}

func (d *Driver) abortResult(streaming bool) ReActResult {
	if streaming {
		d.hookMgr.Emit(context.Background(), hooks.SessionEnd, hooks.Input{SessionID: d.sessionID, Reason: "abort"})
	}
	return ReActResult{
		Result:    "Operation aborted",
		IsError:   true,
		Messages:  d.Log(),
		TurnCount: d.turnCount,
		Usage:     engine.Usage{InputTokens: d.totalInputTokens, OutputTokens: d.totalOutputTokens},
	}
}

func (d *Driver) maxTurnsResult(streaming bool) ReActResult {
	if streaming {
		d.hookMgr.Emit(context.Background(), hooks.SessionEnd, hooks.Input{SessionID: d.sessionID, Reason: "max_turns_reached"})
	}
	return ReActResult{
		Result:    "Maximum turns reached",
		IsError:   true,
		Messages:  d.Log(),
		TurnCount: d.turnCount,
		Usage:     engine.Usage{InputTokens: d.totalInputTokens, OutputTokens: d.totalOutputTokens},
	}
}

func (d *Driver) runCompaction(ctx context.Context, trigger engine.CompactTrigger) {
	d.mu.Lock()
	preTokens := d.totalInputTokens
	d.mu.Unlock()
	newLog, result, err := d.compactor.Compact(ctx, d.Log(), trigger, d.cfg.PreserveRecentRounds, preTokens)
	if err != nil {
		d.logger.Error("compaction failed", "error", err)
		return
	}
	if result.SummaryGenerated {
		d.mu.Lock()
		d.log = newLog
		d.mu.Unlock()
	}
}

// toCompletionMessages flattens the typed log into the provider-facing
// role/content view.
func toCompletionMessages(log []engine.Message) []engine.CompletionMessage {
	var out []engine.CompletionMessage
	for _, m := range log {
		switch m.Kind {
		case engine.KindUser:
			out = append(out, engine.CompletionMessage{Role: "user", Content: m.User.Text})
		case engine.KindAssistant:
			out = append(out, engine.CompletionMessage{Role: "assistant", Content: m.Assistant.FinalText(), ToolCalls: m.Assistant.ToolCalls})
		case engine.KindToolResult:
			out = append(out, engine.CompletionMessage{Role: "tool", Content: m.ToolResult.Content, ToolCallID: m.ToolResult.ToolUseID})
		case engine.KindCompactBoundary:
			// Rendered as part of the following summary assistant message; no
			// separate provider-facing turn.
		case engine.KindSkillSystem:
			out = append(out, engine.CompletionMessage{Role: "system", Content: m.SkillSystem.Content})
		}
	}
	return out
}

// callProviderOnce implements §4.6.1: accumulates content deltas,
// concatenates tool-call argument fragments by id, tracks last-observed
// usage, and classifies the resulting stop reason.
func (d *Driver) callProviderOnce(ctx context.Context) (engine.Message, error) {
	allowed := d.registry.GetDefinitions(d.cfg.AllowedTools)
	messages := toCompletionMessages(d.Log())

	opts := engine.ChatOptions{SystemInstruction: d.cfg.SystemPrompt}
	if d.cfg.OutputFormat != nil {
		opts.OutputSchema = d.cfg.OutputFormat.Schema
	}

	chunks, err := d.provider.Chat(ctx, messages, allowed, opts)
	if err != nil {
		return engine.Message{}, err
	}

	var text string
	var structured json.RawMessage
	type fragment struct {
		name string
		args string
	}
	order := []string{}
	byID := map[string]*fragment{}
	usage := engine.Usage{}

	for c := range chunks {
		switch c.Kind {
		case engine.ChunkContent:
			text += c.Delta
		case engine.ChunkToolCall:
			f, ok := byID[c.ToolCallID]
			if !ok {
				f = &fragment{name: c.ToolCallName}
				byID[c.ToolCallID] = f
				order = append(order, c.ToolCallID)
			}
			if c.ToolCallName != "" {
				f.name = c.ToolCallName
			}
			f.args += c.ToolCallArguments
		case engine.ChunkStructuredOutput:
			structured = c.StructuredValue
		case engine.ChunkUsage:
			usage = c.Usage
		case engine.ChunkError:
			if engine.IsAborted(c.Err) {
				return engine.Message{}, c.Err
			}
			return engine.Message{}, c.Err
		}
	}

	// §3's Result.Usage is aggregated across the whole run, so each turn's
	// input/output tokens are summed here. lastContextTokens instead keeps
	// only the most recent call's input size (the provider resends the full
	// growing context each turn), which is what the auto-compact threshold
	// check needs.
	d.mu.Lock()
	d.totalInputTokens += usage.InputTokens
	d.totalOutputTokens += usage.OutputTokens
	d.lastContextTokens = usage.InputTokens
	d.mu.Unlock()

	var content []engine.ContentBlock
	var toolCalls []engine.ToolCall
	if text != "" {
		content = append(content, engine.ContentBlock{Text: text})
	}
	for _, id := range order {
		f := byID[id]
		tc := engine.ToolCall{ID: id, Name: f.name, Arguments: json.RawMessage(f.args)}
		toolCalls = append(toolCalls, tc)
		content = append(content, engine.ContentBlock{ToolUse: &engine.ToolUse{ID: id, Name: f.name, Input: json.RawMessage(f.args)}})
	}

	stop := engine.StopEndTurn
	if len(toolCalls) > 0 {
		stop = engine.StopToolUse
	}

	if structured != nil {
		d.mu.Lock()
		d.structuredOutput = structured
		d.mu.Unlock()
	}

	msg := engine.NewAssistant(d.sessionID, content, toolCalls, stop, usage)
	return msg, nil
}
