// Package compaction implements round-aware conversation summarization:
// it bounds context growth while preserving the most recent rounds intact.
//
// Grounded on the teacher's internal/compaction package — same Summarizer
// interface shape, same token-estimation heuristic and constant-naming
// style — but the partitioning algorithm here groups by conversation round
// (a User message and everything up to the next User message) rather than
// by token-budget chunk share, per this engine's §4.7.
package compaction

import (
	"context"
	"log/slog"

	"github.com/agentcore-go/agentcore/internal/hooks"
	"github.com/agentcore-go/agentcore/pkg/engine"
	"github.com/prometheus/client_golang/prometheus"
)

// CharsPerToken is the rough heuristic used to estimate token counts from
// message text when a provider's own tokenizer is unavailable, matching the
// teacher's own estimation constant.
const CharsPerToken = 4

// DefaultPreserveRecentRounds is the number of trailing rounds kept intact
// when preserveRecentRounds is unset.
const DefaultPreserveRecentRounds = 2

// FallbackSummary is used when the provider's summary call fails; the
// failure is never propagated to the caller (§4.7 step 5).
const FallbackSummary = "Summary generation failed. Continuing with preserved context."

// Summarizer generates a summary string over a list of messages. The
// driver's Provider implementation is adapted to this interface so the
// compactor stays decoupled from the full chat-chunk contract.
type Summarizer interface {
	GenerateSummary(ctx context.Context, messages []engine.Message) (string, error)
}

// Result is returned by Compact.
type Result struct {
	PreservedRounds  int
	SummaryGenerated bool
}

// Compactor partitions a log into rounds and replaces older rounds with a
// single provider-generated summary, bracketed by a CompactBoundary.
type Compactor struct {
	summarizer Summarizer
	hookMgr    *hooks.Manager
	logger     *slog.Logger

	invocations prometheus.Counter
	fallbacks   prometheus.Counter
}

// Option configures a Compactor.
type Option func(*Compactor)

// WithLogger installs a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compactor) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics installs a Prometheus registry to export compaction counters
// into, mirroring the teacher's general use of Prometheus for agent-loop
// observability. A nil registry leaves metrics unregistered (no-op).
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Compactor) {
		if reg == nil {
			return
		}
		c.invocations = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentcore_compactions_total",
			Help: "Number of conversation compaction attempts, including ones that left the log unchanged.",
		})
		c.fallbacks = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentcore_compaction_fallbacks_total",
			Help: "Number of compactions that fell back to the default summary after a provider failure.",
		})
		reg.MustRegister(c.invocations, c.fallbacks)
	}
}

// New constructs a Compactor bound to a summarizer and the driver's hook
// manager (PreCompact is emitted through it).
func New(summarizer Summarizer, hookMgr *hooks.Manager, opts ...Option) *Compactor {
	c := &Compactor{summarizer: summarizer, hookMgr: hookMgr, logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.With("component", "compactor")
	return c
}

// round is a maximal run of messages led by one User message (or, for the
// remainder before any User message — which cannot occur after a
// well-formed SystemInit — treated as its own leading round).
type round struct {
	messages []engine.Message
}

// partitionRounds splits the remainder of a log (after SystemInit removal)
// into rounds: each User message starts a new round, and every following
// Assistant/ToolResult/SkillSystem message accumulates into it. A trailing
// user-led group with no assistant reply yet still counts as one round,
// per this engine's resolution of the spec's open question on the matter.
func partitionRounds(msgs []engine.Message) []round {
	var rounds []round
	var current *round
	for _, m := range msgs {
		if m.IsUser() {
			if current != nil {
				rounds = append(rounds, *current)
			}
			current = &round{messages: []engine.Message{m}}
			continue
		}
		if current == nil {
			current = &round{}
		}
		current.messages = append(current.messages, m)
	}
	if current != nil {
		rounds = append(rounds, *current)
	}
	return rounds
}

func estimateTokens(msgs []engine.Message) int {
	total := 0
	for _, m := range msgs {
		switch {
		case m.IsUser():
			total += len(m.User.Text)
		case m.IsAssistant():
			total += len(m.Assistant.FinalText())
		case m.IsToolResult():
			total += len(m.ToolResult.Content)
		}
	}
	return total / CharsPerToken
}

// Compact runs the algorithm of §4.7 against log, returning the new log and
// the outcome. If there is nothing to compact (total_rounds - k <= 0), the
// original log is returned unchanged with SummaryGenerated=false.
// preTokens, when positive, is the driver's own total_input_tokens count
// (§4.6 passes this through as pre_tokens); a non-positive value falls back
// to estimateTokens(rest), e.g. for callers with no usage accounting.
func (c *Compactor) Compact(ctx context.Context, log []engine.Message, trigger engine.CompactTrigger, preserveRecentRounds int, preTokens int) ([]engine.Message, Result, error) {
	if preserveRecentRounds <= 0 {
		preserveRecentRounds = DefaultPreserveRecentRounds
	}
	if c.invocations != nil {
		c.invocations.Inc()
	}

	var init *engine.Message
	rest := log
	if len(log) > 0 && log[0].IsSystemInit() {
		m := log[0]
		init = &m
		rest = log[1:]
	}

	rounds := partitionRounds(rest)
	k := preserveRecentRounds
	if k > len(rounds) {
		k = len(rounds)
	}
	if len(rounds)-k <= 0 {
		return log, Result{PreservedRounds: len(rounds), SummaryGenerated: false}, nil
	}

	older := rounds[:len(rounds)-k]
	preserved := rounds[len(rounds)-k:]

	var olderMsgs []engine.Message
	for _, r := range older {
		olderMsgs = append(olderMsgs, r.messages...)
	}
	if preTokens <= 0 {
		preTokens = estimateTokens(rest)
	}

	outputs := c.hookMgr.Emit(ctx, hooks.PreCompact, hooks.Input{Trigger: string(trigger)})
	for _, o := range outputs {
		if reason, stopped := o.AbortReason(); stopped {
			c.logger.Info("compaction aborted by PreCompact hook", "reason", reason)
			return log, Result{PreservedRounds: len(rounds), SummaryGenerated: false}, nil
		}
	}

	summary, err := c.summarizer.GenerateSummary(ctx, olderMsgs)
	if err != nil {
		c.logger.Warn("summary generation failed, using fallback", "error", err)
		if c.fallbacks != nil {
			c.fallbacks.Inc()
		}
		summary = FallbackSummary
	}

	sessionID := ""
	if len(log) > 0 {
		sessionID = log[0].SessionID
	}

	newLog := make([]engine.Message, 0, len(preserved)+3)
	if init != nil {
		newLog = append(newLog, *init)
	}
	newLog = append(newLog, engine.NewCompactBoundary(sessionID, trigger, preTokens))
	newLog = append(newLog, engine.NewAssistant(sessionID, []engine.ContentBlock{{Text: summary}}, nil, engine.StopEndTurn, engine.Usage{}))
	for _, r := range preserved {
		newLog = append(newLog, r.messages...)
	}

	return newLog, Result{PreservedRounds: k, SummaryGenerated: true}, nil
}
