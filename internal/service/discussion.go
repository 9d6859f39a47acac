package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/adapter/otel"
	"github.com/parleyhq/parley/internal/adapter/ws"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/domain/aggregate"
	"github.com/parleyhq/parley/internal/domain/board"
	"github.com/parleyhq/parley/internal/domain/discussion"
	"github.com/parleyhq/parley/internal/port/broadcast"
	"github.com/parleyhq/parley/internal/port/database"
)

// DiscussionService drives the structured discussion protocol: one active
// discussion per project moving through preparing/submitting/reviewing until
// complete, with per-round submissions aggregated on close.
type DiscussionService struct {
	store    database.DiscussionStore
	projects database.ProjectStore
	board    *BoardService
	bc       broadcast.Broadcaster
	metrics  *otel.Metrics
	cfg      config.Discussion
	now      func() time.Time
}

// NewDiscussionService creates a new DiscussionService.
func NewDiscussionService(store database.DiscussionStore, projects database.ProjectStore, board *BoardService, bc broadcast.Broadcaster, metrics *otel.Metrics, cfg config.Discussion) *DiscussionService {
	return &DiscussionService{
		store:    store,
		projects: projects,
		board:    board,
		bc:       bc,
		metrics:  metrics,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Start creates a discussion in its mode's initial state. A second active
// discussion in the same project is a conflict.
func (s *DiscussionService) Start(ctx context.Context, req discussion.StartRequest) (*discussion.Discussion, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.projects.GetProject(ctx, req.ProjectID); err != nil {
		return nil, err
	}

	maxRounds := req.MaxRounds
	if maxRounds == 0 {
		maxRounds = s.cfg.DefaultMaxRounds
	}
	timeout := req.Timeout
	if timeout == 0 {
		timeout = s.cfg.DefaultTimeout
	}

	phase, round := discussion.InitialState(req.Mode)
	d := &discussion.Discussion{
		ID:               uuid.NewString(),
		ProjectID:        req.ProjectID,
		Mode:             req.Mode,
		Topic:            req.Topic,
		IsActive:         true,
		Phase:            phase,
		Moderator:        req.Moderator,
		Participants:     req.Participants,
		CurrentRound:     round,
		MaxRounds:        maxRounds,
		Timeout:          timeout,
		AutoCloseTimeout: s.cfg.AutoCloseTimeout,
		CreatedAt:        s.now().UTC(),
	}

	if err := s.store.CreateDiscussion(ctx, d); err != nil {
		return nil, err
	}

	// Oxford starts in SUBMITTING: round 1 opens with the discussion itself.
	if phase == discussion.PhaseSubmitting && round == 1 {
		r := &discussion.Round{
			ID:           uuid.NewString(),
			DiscussionID: d.ID,
			Number:       1,
			Topic:        d.Topic,
			OpenedAt:     s.now().UTC(),
		}
		if err := s.store.CreateRound(ctx, r); err != nil {
			return nil, err
		}
	}

	s.announce(ctx, d, fmt.Sprintf("Discussion started: %s (mode %s)", d.Topic, d.Mode))
	s.broadcastPhase(ctx, d)
	slog.Info("discussion started", "discussion_id", d.ID, "project_id", d.ProjectID, "mode", d.Mode)
	return d, nil
}

// Get returns one discussion by id.
func (s *DiscussionService) Get(ctx context.Context, id string) (*discussion.Discussion, error) {
	return s.store.GetDiscussion(ctx, id)
}

// Active returns the project's active discussion or ErrNotFound.
func (s *DiscussionService) Active(ctx context.Context, projectID string) (*discussion.Discussion, error) {
	return s.store.GetActiveDiscussion(ctx, projectID)
}

// List returns all of a project's discussions, newest first.
func (s *DiscussionService) List(ctx context.Context, projectID string) ([]discussion.Discussion, error) {
	return s.store.ListDiscussions(ctx, projectID)
}

// Rounds returns a discussion's rounds in ascending number order.
func (s *DiscussionService) Rounds(ctx context.Context, discussionID string) ([]discussion.Round, error) {
	if _, err := s.store.GetDiscussion(ctx, discussionID); err != nil {
		return nil, err
	}
	return s.store.ListRounds(ctx, discussionID)
}

// OpenRound opens the next round and moves the discussion to SUBMITTING.
func (s *DiscussionService) OpenRound(ctx context.Context, discussionID, topic string) (*discussion.Round, error) {
	d, err := s.store.GetDiscussion(ctx, discussionID)
	if err != nil {
		return nil, err
	}
	return s.openRound(ctx, d, topic, false, "")
}

func (s *DiscussionService) openRound(ctx context.Context, d *discussion.Discussion, topic string, auto bool, triggerFrom string) (*discussion.Round, error) {
	if err := d.CanOpenRound(); err != nil {
		return nil, err
	}
	if topic == "" {
		topic = d.Topic
	}

	r := &discussion.Round{
		ID:            uuid.NewString(),
		DiscussionID:  d.ID,
		Number:        d.CurrentRound + 1,
		Topic:         topic,
		AutoTriggered: auto,
		TriggerFrom:   triggerFrom,
		OpenedAt:      s.now().UTC(),
	}
	if err := s.store.CreateRound(ctx, r); err != nil {
		return nil, err
	}

	d.CurrentRound = r.Number
	d.Phase = discussion.PhaseSubmitting
	if err := s.store.UpdateDiscussion(ctx, d); err != nil {
		return nil, err
	}

	s.announce(ctx, d, fmt.Sprintf("Round %d open: %s", r.Number, r.Topic))
	s.broadcastPhase(ctx, d)
	slog.Info("round opened", "discussion_id", d.ID, "round", r.Number, "auto", auto)
	return r, nil
}

// Submit posts a participant's formal contribution for the open round.
// One submission per (round, role); a duplicate is a conflict.
func (s *DiscussionService) Submit(ctx context.Context, discussionID, fromRole, body string) (*discussion.Submission, error) {
	d, err := s.store.GetDiscussion(ctx, discussionID)
	if err != nil {
		return nil, err
	}
	if err := d.CanSubmit(); err != nil {
		return nil, err
	}
	if !d.IsParticipant(fromRole) {
		return nil, fmt.Errorf("%w: %q is not a participant", domain.ErrValidation, fromRole)
	}
	if body == "" {
		return nil, fmt.Errorf("%w: body is required", domain.ErrValidation)
	}

	r, err := s.store.GetOpenRound(ctx, discussionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkNotSubmitted(ctx, r.ID, fromRole); err != nil {
		return nil, err
	}

	msg, err := s.board.Post(ctx, board.PostRequest{
		ProjectID: d.ProjectID,
		FromRole:  fromRole,
		ToRole:    board.RoleAll,
		Type:      board.TypeSubmission,
		Subject:   fmt.Sprintf("Round %d submission", r.Number),
		Body:      body,
	})
	if err != nil {
		return nil, err
	}

	sub := &discussion.Submission{
		RoundID:   r.ID,
		FromRole:  fromRole,
		MessageID: msg.ID,
		Body:      body,
		CreatedAt: msg.CreatedAt,
	}
	if err := s.store.CreateSubmission(ctx, sub); err != nil {
		return nil, err
	}

	s.maybeCloseOnQuorum(ctx, d, r)
	return sub, nil
}

// TrackSubmission links an existing board message as fromRole's submission
// for the open round.
func (s *DiscussionService) TrackSubmission(ctx context.Context, discussionID, fromRole string, messageID int64) (*discussion.Submission, error) {
	d, err := s.store.GetDiscussion(ctx, discussionID)
	if err != nil {
		return nil, err
	}
	if err := d.CanSubmit(); err != nil {
		return nil, err
	}
	if !d.IsParticipant(fromRole) {
		return nil, fmt.Errorf("%w: %q is not a participant", domain.ErrValidation, fromRole)
	}

	r, err := s.store.GetOpenRound(ctx, discussionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkNotSubmitted(ctx, r.ID, fromRole); err != nil {
		return nil, err
	}

	msg, err := s.board.Get(ctx, d.ProjectID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.FromRole != fromRole {
		return nil, fmt.Errorf("%w: message %d was not posted by %q", domain.ErrValidation, messageID, fromRole)
	}

	sub := &discussion.Submission{
		RoundID:   r.ID,
		FromRole:  fromRole,
		MessageID: msg.ID,
		Body:      msg.Body,
		CreatedAt: msg.CreatedAt,
	}
	if err := s.store.CreateSubmission(ctx, sub); err != nil {
		return nil, err
	}

	s.maybeCloseOnQuorum(ctx, d, r)
	return sub, nil
}

// CloseRound closes the open round, aggregates its submissions, posts the
// summary to the board, and moves the discussion to REVIEWING.
func (s *DiscussionService) CloseRound(ctx context.Context, discussionID string) (*discussion.Round, error) {
	d, err := s.store.GetDiscussion(ctx, discussionID)
	if err != nil {
		return nil, err
	}
	if err := d.CanCloseRound(); err != nil {
		return nil, err
	}
	return s.closeRound(ctx, d)
}

func (s *DiscussionService) closeRound(ctx context.Context, d *discussion.Discussion) (*discussion.Round, error) {
	ctx, span := otel.StartRoundSpan(ctx, d.ID, d.CurrentRound)
	defer span.End()

	r, err := s.store.GetOpenRound(ctx, d.ID)
	if err != nil {
		return nil, err
	}

	subs, err := s.store.ListSubmissions(ctx, r.ID)
	if err != nil {
		return nil, err
	}

	agg, err := aggregate.ForMode(d.Mode)
	if err != nil {
		return nil, err
	}
	res, err := agg.Aggregate(aggregate.Input{Discussion: d, Round: r, Submissions: subs})
	if err != nil {
		return nil, fmt.Errorf("aggregate round %d: %w", r.Number, err)
	}

	msg, err := s.board.Post(ctx, board.PostRequest{
		ProjectID: d.ProjectID,
		FromRole:  board.RoleSystem,
		ToRole:    board.RoleAll,
		Type:      board.TypeSystem,
		Subject:   fmt.Sprintf("Round %d summary", r.Number),
		Body:      res.Rendered,
	})
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	r.ClosedAt = &now
	r.Aggregate = res.Data
	r.AggregateMessageID = &msg.ID
	if err := s.store.UpdateRound(ctx, r); err != nil {
		return nil, err
	}

	d.Phase = discussion.PhaseReviewing
	if err := s.store.UpdateDiscussion(ctx, d); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RoundsClosed.Add(ctx, 1)
	}
	if s.bc != nil {
		s.bc.BroadcastProject(ctx, d.ProjectID, ws.EventRoundClosed, ws.RoundClosedEvent{
			DiscussionID: d.ID,
			RoundNumber:  r.Number,
			MessageID:    msg.ID,
		})
	}
	s.broadcastPhase(ctx, d)
	slog.Info("round closed", "discussion_id", d.ID, "round", r.Number, "submissions", len(subs))
	return r, nil
}

// End deactivates the discussion and marks it COMPLETE.
func (s *DiscussionService) End(ctx context.Context, discussionID string) (*discussion.Discussion, error) {
	d, err := s.store.GetDiscussion(ctx, discussionID)
	if err != nil {
		return nil, err
	}
	if !d.IsActive {
		return nil, fmt.Errorf("%w: discussion already ended", domain.ErrConflict)
	}

	now := s.now().UTC()
	d.IsActive = false
	d.Phase = discussion.PhaseComplete
	d.EndedAt = &now
	if err := s.store.UpdateDiscussion(ctx, d); err != nil {
		return nil, err
	}

	s.announce(ctx, d, fmt.Sprintf("Discussion ended: %s", d.Topic))
	s.broadcastPhase(ctx, d)
	slog.Info("discussion ended", "discussion_id", d.ID)
	return d, nil
}

// SetTeams assigns Oxford debate sides. Conflict for any other mode.
func (s *DiscussionService) SetTeams(ctx context.Context, discussionID string, teams discussion.Teams) (*discussion.Discussion, error) {
	d, err := s.store.GetDiscussion(ctx, discussionID)
	if err != nil {
		return nil, err
	}
	if d.Mode != discussion.ModeOxford {
		return nil, fmt.Errorf("%w: teams apply to oxford mode only", domain.ErrConflict)
	}
	for _, role := range append(append([]string{}, teams.For...), teams.Against...) {
		if !d.IsParticipant(role) {
			return nil, fmt.Errorf("%w: %q is not a participant", domain.ErrValidation, role)
		}
	}

	d.Teams = &teams
	if err := s.store.UpdateDiscussion(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// SetTimeout adjusts the Continuous auto-close timeout. Conflict for any
// other mode.
func (s *DiscussionService) SetTimeout(ctx context.Context, discussionID string, timeout time.Duration) (*discussion.Discussion, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("%w: timeout must be positive", domain.ErrValidation)
	}
	d, err := s.store.GetDiscussion(ctx, discussionID)
	if err != nil {
		return nil, err
	}
	if d.Mode != discussion.ModeContinuous {
		return nil, fmt.Errorf("%w: auto-close timeout applies to continuous mode only", domain.ErrConflict)
	}

	d.AutoCloseTimeout = timeout
	if err := s.store.UpdateDiscussion(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Pause suspends the discussion; no rounds open or close while paused.
func (s *DiscussionService) Pause(ctx context.Context, discussionID string) (*discussion.Discussion, error) {
	d, err := s.store.GetDiscussion(ctx, discussionID)
	if err != nil {
		return nil, err
	}
	if err := d.CanPause(); err != nil {
		return nil, err
	}

	d.Phase = discussion.PhasePaused
	if err := s.store.UpdateDiscussion(ctx, d); err != nil {
		return nil, err
	}
	s.broadcastPhase(ctx, d)
	return d, nil
}

// Resume returns a paused discussion to SUBMITTING when a round is open,
// REVIEWING otherwise.
func (s *DiscussionService) Resume(ctx context.Context, discussionID string) (*discussion.Discussion, error) {
	d, err := s.store.GetDiscussion(ctx, discussionID)
	if err != nil {
		return nil, err
	}
	if d.Phase != discussion.PhasePaused {
		return nil, fmt.Errorf("%w: discussion is not paused", domain.ErrConflict)
	}

	d.Phase = discussion.PhaseReviewing
	if _, err := s.store.GetOpenRound(ctx, discussionID); err == nil {
		d.Phase = discussion.PhaseSubmitting
	}
	if err := s.store.UpdateDiscussion(ctx, d); err != nil {
		return nil, err
	}
	s.broadcastPhase(ctx, d)
	return d, nil
}

// OnStatusPost auto-triggers a Continuous review round when a participant
// posts a status update while the discussion idles in REVIEWING.
func (s *DiscussionService) OnStatusPost(ctx context.Context, msg *board.Message) {
	d, err := s.store.GetActiveDiscussion(ctx, msg.ProjectID)
	if err != nil {
		return
	}
	if d.Mode != discussion.ModeContinuous || d.Phase != discussion.PhaseReviewing {
		return
	}
	if !d.IsParticipant(msg.FromRole) {
		return
	}

	topic := msg.Subject
	if topic == "" {
		topic = d.Topic
	}
	if _, err := s.openRound(ctx, d, topic, true, msg.FromRole); err != nil {
		slog.Warn("auto-trigger round failed", "discussion_id", d.ID, "error", err)
	}
}

// SweepAutoClose closes Continuous rounds whose auto-close timeout has
// elapsed without reaching quorum. Returns the number of rounds closed.
func (s *DiscussionService) SweepAutoClose(ctx context.Context) int {
	active, err := s.store.ListActiveByMode(ctx, discussion.ModeContinuous)
	if err != nil {
		slog.Error("auto-close sweep: list discussions", "error", err)
		return 0
	}

	closed := 0
	for i := range active {
		d := &active[i]
		if d.Phase != discussion.PhaseSubmitting {
			continue
		}
		r, err := s.store.GetOpenRound(ctx, d.ID)
		if err != nil {
			continue
		}
		timeout := d.AutoCloseTimeout
		if timeout <= 0 {
			timeout = s.cfg.AutoCloseTimeout
		}
		if r.Age(s.now()) < timeout {
			continue
		}
		if _, err := s.closeRound(ctx, d); err != nil {
			slog.Error("auto-close round", "discussion_id", d.ID, "round", r.Number, "error", err)
			continue
		}
		closed++
	}
	return closed
}

// RunSweeper runs SweepAutoClose on the configured interval until ctx is done.
func (s *DiscussionService) RunSweeper(ctx context.Context) {
	interval := s.cfg.AutoCloseSweep
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepAutoClose(ctx)
		}
	}
}

// maybeCloseOnQuorum auto-closes a Continuous round once every participant
// except the trigger author has submitted.
func (s *DiscussionService) maybeCloseOnQuorum(ctx context.Context, d *discussion.Discussion, r *discussion.Round) {
	if d.Mode != discussion.ModeContinuous {
		return
	}
	subs, err := s.store.ListSubmissions(ctx, r.ID)
	if err != nil {
		slog.Warn("quorum check failed", "round_id", r.ID, "error", err)
		return
	}
	if !discussion.QuorumReached(d.Participants, r.TriggerFrom, subs) {
		return
	}
	if _, err := s.closeRound(ctx, d); err != nil {
		slog.Error("quorum auto-close failed", "discussion_id", d.ID, "round", r.Number, "error", err)
	}
}

func (s *DiscussionService) checkNotSubmitted(ctx context.Context, roundID, fromRole string) error {
	subs, err := s.store.ListSubmissions(ctx, roundID)
	if err != nil {
		return err
	}
	for i := range subs {
		if subs[i].FromRole == fromRole {
			return fmt.Errorf("%w: %q already submitted this round", domain.ErrConflict, fromRole)
		}
	}
	return nil
}

func (s *DiscussionService) announce(ctx context.Context, d *discussion.Discussion, text string) {
	_, err := s.board.Post(ctx, board.PostRequest{
		ProjectID: d.ProjectID,
		FromRole:  board.RoleSystem,
		ToRole:    board.RoleAll,
		Type:      board.TypeSystem,
		Body:      text,
	})
	if err != nil {
		slog.Warn("discussion announcement failed", "discussion_id", d.ID, "error", err)
	}
}

func (s *DiscussionService) broadcastPhase(ctx context.Context, d *discussion.Discussion) {
	if s.bc == nil {
		return
	}
	s.bc.BroadcastProject(ctx, d.ProjectID, ws.EventDiscussionPhase, ws.DiscussionPhaseEvent{
		DiscussionID: d.ID,
		ProjectID:    d.ProjectID,
		Phase:        string(d.Phase),
		CurrentRound: d.CurrentRound,
	})
}
