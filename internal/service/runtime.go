package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/parleyhq/parley/internal/adapter/otel"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/domain/agent"
	"github.com/parleyhq/parley/internal/domain/project"
	"github.com/parleyhq/parley/internal/port/completion"
)

// AgentRunner is one agent's poll/complete/post loop. Created and owned by
// the registry.
type AgentRunner struct {
	reg     *AgentRegistry
	ownerID string
	id      agent.Identity
	role    *project.Role
	model   string
	system  string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu            sync.Mutex
	lastSeen      int64
	contextTokens int
	startedAt     time.Time
}

func newAgentRunner(reg *AgentRegistry, ownerID string, id agent.Identity, role *project.Role, model string) *AgentRunner {
	ctx, cancel := context.WithCancel(context.Background())
	return &AgentRunner{
		reg:     reg,
		ownerID: ownerID,
		id:      id,
		role:    role,
		model:   model,
		system:  agent.BuildSystemPrompt(role.Slug, role.Title, id.Instance, role.Briefing),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

func (a *AgentRunner) start() {
	a.mu.Lock()
	a.startedAt = time.Now().UTC()
	a.mu.Unlock()
	go a.run()
}

func (a *AgentRunner) stop() {
	a.cancel()
	<-a.done
}

// State returns a snapshot of the runner.
func (a *AgentRunner) State() agent.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return agent.State{
		Identity:          a.id,
		Model:             a.model,
		IsRunning:         true,
		LastSeenMessageID: a.lastSeen,
		ContextTokens:     a.contextTokens,
		StartedAt:         a.startedAt,
	}
}

// run is the agent loop. It replays recent history once, then polls the
// board, answering messages addressed to its role. A usage-limit error stops
// the loop permanently; any other error is logged and the loop continues.
func (a *AgentRunner) run() {
	defer close(a.done)

	cfg := a.reg.cfg
	slog.Info("agent started", "agent", a.id.Key(), "model", a.model)

	if err := a.catchUp(); err != nil {
		slog.Warn("agent history replay failed", "agent", a.id.Key(), "error", err)
	}

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			slog.Info("agent stopped", "agent", a.id.Key())
			return
		case <-ticker.C:
			if err := a.tick(); err != nil {
				if errors.Is(err, domain.ErrUsageLimitExceeded) {
					slog.Warn("agent stopping: usage limit reached", "agent", a.id.Key())
					a.reg.remove(a.id)
					return
				}
				slog.Error("agent tick failed", "agent", a.id.Key(), "error", err)
			}
		}
	}
}

// catchUp fast-forwards past existing history so the agent only answers
// messages posted after it started.
func (a *AgentRunner) catchUp() error {
	msgs, err := a.reg.board.Recent(a.ctx, a.id.ProjectID, a.reg.cfg.HistoryDepth)
	if err != nil {
		return err
	}
	if len(msgs) > 0 {
		a.mu.Lock()
		a.lastSeen = msgs[len(msgs)-1].ID
		a.mu.Unlock()
	}
	return nil
}

// tick polls for new messages and answers those addressed to this agent.
// lastSeen only advances after a successful reply, so a timed-out completion
// is retried on the next cycle.
func (a *AgentRunner) tick() error {
	ctx, span := otel.StartAgentTickSpan(a.ctx, a.id.Key())
	defer span.End()

	a.mu.Lock()
	since := a.lastSeen
	a.mu.Unlock()

	msgs, err := a.reg.board.Poll(ctx, a.id.ProjectID, since, a.reg.cfg.PollBatchLimit)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	role := a.id.Role()
	relevant := false
	for i := range msgs {
		if msgs[i].FromRole != role && msgs[i].AddressedTo(role) {
			relevant = true
			break
		}
	}
	if !relevant {
		a.advance(msgs[len(msgs)-1].ID, 0)
		return nil
	}

	history, err := a.reg.board.Recent(ctx, a.id.ProjectID, a.reg.cfg.HistoryDepth)
	if err != nil {
		return err
	}
	turns := agent.BuildContext(history, a.id, a.reg.cfg.ContextWindow)

	res, err := a.reg.gateway.Complete(ctx, a.ownerID, a.id.ProjectID, completion.Request{
		Model:     a.model,
		System:    a.system,
		Messages:  turns,
		MaxTokens: a.reg.cfg.MaxTokens,
	})
	if err != nil {
		if errors.Is(err, domain.ErrTimeout) {
			// Do not advance; the same messages are picked up next cycle.
			return nil
		}
		return err
	}

	segments := agent.ParseReply(res.Content)
	posts := agent.ToPosts(segments, a.id.ProjectID, role)
	if len(posts) > 0 {
		if _, err := a.reg.board.PostAll(ctx, posts); err != nil {
			return err
		}
	}

	a.advance(msgs[len(msgs)-1].ID, agent.EstimateTokens(turns))
	return nil
}

func (a *AgentRunner) advance(lastID int64, tokens int) {
	a.mu.Lock()
	if lastID > a.lastSeen {
		a.lastSeen = lastID
	}
	if tokens > 0 {
		a.contextTokens = tokens
	}
	a.mu.Unlock()
}
