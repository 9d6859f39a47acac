package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/parleyhq/parley/internal/adapter/otel"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/domain/agent"
	"github.com/parleyhq/parley/internal/port/database"
)

// AgentRegistry owns the set of running agent loops. In-memory only: after a
// restart agents are started again and rebuild their context from the board.
type AgentRegistry struct {
	store   database.Store
	board   *BoardService
	gateway *MeteringGateway
	metrics *otel.Metrics
	cfg     config.Agent

	mu      sync.Mutex
	runners map[string]*AgentRunner
}

// NewAgentRegistry creates a new AgentRegistry.
func NewAgentRegistry(store database.Store, board *BoardService, gateway *MeteringGateway, metrics *otel.Metrics, cfg config.Agent) *AgentRegistry {
	return &AgentRegistry{
		store:   store,
		board:   board,
		gateway: gateway,
		metrics: metrics,
		cfg:     cfg,
		runners: make(map[string]*AgentRunner),
	}
}

// Start launches an agent loop for the identity. The role must be configured
// on the project; starting a running agent is a conflict.
func (r *AgentRegistry) Start(ctx context.Context, ownerID string, id agent.Identity, model string) (*agent.State, error) {
	role, err := r.store.GetRole(ctx, id.ProjectID, id.RoleSlug)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = role.Model
	}
	if model == "" {
		model = r.cfg.DefaultModel
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := id.Key()
	if _, running := r.runners[key]; running {
		return nil, fmt.Errorf("%w: agent %s already running", domain.ErrConflict, id.Role())
	}

	runner := newAgentRunner(r, ownerID, id, role, model)
	r.runners[key] = runner
	runner.start()

	if r.metrics != nil {
		r.metrics.AgentsRunning.Add(ctx, 1)
	}
	st := runner.State()
	return &st, nil
}

// Stop terminates a running agent loop. Stopping a stopped agent is a
// conflict.
func (r *AgentRegistry) Stop(ctx context.Context, id agent.Identity) error {
	r.mu.Lock()
	runner, ok := r.runners[id.Key()]
	if ok {
		delete(r.runners, id.Key())
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: agent %s is not running", domain.ErrConflict, id.Role())
	}

	runner.stop()
	if r.metrics != nil {
		r.metrics.AgentsRunning.Add(ctx, -1)
	}
	return nil
}

// List returns the runtime state of the project's agents, ordered by role.
func (r *AgentRegistry) List(projectID string) []agent.State {
	r.mu.Lock()
	defer r.mu.Unlock()

	var states []agent.State
	for _, runner := range r.runners {
		if runner.id.ProjectID != projectID {
			continue
		}
		states = append(states, runner.State())
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].Identity.Key() < states[j].Identity.Key()
	})
	return states
}

// StopAll terminates every running agent, for shutdown.
func (r *AgentRegistry) StopAll() {
	r.mu.Lock()
	runners := make([]*AgentRunner, 0, len(r.runners))
	for _, runner := range r.runners {
		runners = append(runners, runner)
	}
	r.runners = make(map[string]*AgentRunner)
	r.mu.Unlock()

	for _, runner := range runners {
		runner.stop()
	}
}

// remove drops a runner that stopped itself (usage limit reached).
func (r *AgentRegistry) remove(id agent.Identity) {
	r.mu.Lock()
	delete(r.runners, id.Key())
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.AgentsRunning.Add(context.Background(), -1)
	}
}
