package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

type registration struct {
	id      string
	matcher Matcher
	handler Handler
}

// Manager dispatches hook handlers registered under a closed set of event
// names, running matching handlers sequentially in registration order and
// collecting their structured returns. Grounded on the teacher's
// uuid-keyed, priority-ordered dispatcher, simplified to plain registration
// order since the spec does not define a priority concept.
type Manager struct {
	mu       sync.Mutex
	handlers map[EventName][]registration
	logger   *slog.Logger
}

// New constructs an empty Manager. Sub-agents always receive a fresh
// Manager (§4.8): hooks are never inherited.
func New(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		handlers: make(map[EventName][]registration),
		logger:   logger.With("component", "hooks"),
	}
}

// Register adds a handler for event, optionally scoped by matcher (ignored
// for non-tool-scoped events). It returns a registration id usable for
// later removal, though nothing in this spec requires removal.
func (m *Manager) Register(event EventName, matcher Matcher, h Handler) string {
	id := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], registration{id: id, matcher: matcher, handler: h})
	return id
}

// Unregister removes a previously-registered handler by id.
func (m *Manager) Unregister(event EventName, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	regs := m.handlers[event]
	for i, r := range regs {
		if r.id == id {
			m.handlers[event] = append(regs[:i], regs[i+1:]...)
			return
		}
	}
}

// Emit runs all handlers registered for event whose matcher accepts
// in.ToolName (or all handlers, for non-tool-scoped events), sequentially
// in registration order, and returns the list of their non-nil returned
// records. A handler error is logged and treated as if it returned nil —
// it never aborts emission or the driver (§4.4).
func (m *Manager) Emit(ctx context.Context, event EventName, in Input) []*Output {
	m.mu.Lock()
	regs := append([]registration(nil), m.handlers[event]...)
	m.mu.Unlock()

	in.Event = event
	toolScoped := event == PreToolUse || event == PostToolUse
	var outputs []*Output
	for _, r := range regs {
		if toolScoped && !r.matcher.isAny() && !r.matcher.Match(in.ToolName) {
			continue
		}
		out, err := m.safeCall(ctx, r.handler, in)
		if err != nil {
			m.logger.Error("hook handler failed", "event", string(event), "tool", in.ToolName, "error", err)
			continue
		}
		if out != nil {
			outputs = append(outputs, out)
		}
	}
	return outputs
}

func (m *Manager) safeCall(ctx context.Context, h Handler, in Input) (out *Output, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("hook handler panicked: %v", rec)
		}
	}()
	return h(ctx, in)
}
