package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/parleyhq/parley/internal/domain/discussion"
)

const discussionColumns = `id, project_id, mode, topic, is_active, phase, moderator, participants,
	current_round, max_rounds, timeout_seconds, auto_close_timeout_seconds, teams, created_at, ended_at`

func scanDiscussion(row scannable) (discussion.Discussion, error) {
	var (
		d            discussion.Discussion
		timeoutSec   int64
		autoCloseSec int64
		teamsJSON    []byte
	)
	err := row.Scan(&d.ID, &d.ProjectID, &d.Mode, &d.Topic, &d.IsActive, &d.Phase, &d.Moderator,
		&d.Participants, &d.CurrentRound, &d.MaxRounds, &timeoutSec, &autoCloseSec, &teamsJSON,
		&d.CreatedAt, &d.EndedAt)
	if err != nil {
		return d, err
	}
	d.Timeout = time.Duration(timeoutSec) * time.Second
	d.AutoCloseTimeout = time.Duration(autoCloseSec) * time.Second
	if len(teamsJSON) > 0 {
		var t discussion.Teams
		if err := json.Unmarshal(teamsJSON, &t); err != nil {
			return d, fmt.Errorf("unmarshal teams: %w", err)
		}
		d.Teams = &t
	}
	return d, nil
}

func teamsArg(t *discussion.Teams) (any, error) {
	if t == nil {
		return nil, nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal teams: %w", err)
	}
	return data, nil
}

// CreateDiscussion inserts a discussion. The partial unique index on
// (project_id) WHERE is_active maps a second active discussion to
// domain.ErrConflict.
func (s *Store) CreateDiscussion(ctx context.Context, d *discussion.Discussion) error {
	teams, err := teamsArg(d.Teams)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO discussions
		   (id, project_id, mode, topic, is_active, phase, moderator, participants,
		    current_round, max_rounds, timeout_seconds, auto_close_timeout_seconds, teams, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		d.ID, d.ProjectID, d.Mode, d.Topic, d.IsActive, d.Phase, d.Moderator, d.Participants,
		d.CurrentRound, d.MaxRounds, int64(d.Timeout/time.Second), int64(d.AutoCloseTimeout/time.Second),
		teams, d.CreatedAt)
	if err != nil {
		return conflictWrap(err, "create discussion")
	}
	return nil
}

// GetDiscussion returns a discussion by id.
func (s *Store) GetDiscussion(ctx context.Context, id string) (*discussion.Discussion, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+discussionColumns+` FROM discussions WHERE id = $1`, id)
	d, err := scanDiscussion(row)
	if err != nil {
		return nil, notFoundWrap(err, "get discussion %s", id)
	}
	return &d, nil
}

// GetActiveDiscussion returns the project's single active discussion.
func (s *Store) GetActiveDiscussion(ctx context.Context, projectID string) (*discussion.Discussion, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+discussionColumns+` FROM discussions WHERE project_id = $1 AND is_active`, projectID)
	d, err := scanDiscussion(row)
	if err != nil {
		return nil, notFoundWrap(err, "active discussion for project %s", projectID)
	}
	return &d, nil
}

// ListDiscussions returns all discussions for a project, newest first.
func (s *Store) ListDiscussions(ctx context.Context, projectID string) ([]discussion.Discussion, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+discussionColumns+` FROM discussions WHERE project_id = $1 ORDER BY created_at DESC`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("list discussions: %w", err)
	}
	defer rows.Close()
	return collectDiscussions(rows)
}

// ListActiveByMode returns all active discussions of a mode across projects.
// Used by the Continuous auto-close sweeper.
func (s *Store) ListActiveByMode(ctx context.Context, mode discussion.Mode) ([]discussion.Discussion, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+discussionColumns+` FROM discussions WHERE mode = $1 AND is_active`, mode)
	if err != nil {
		return nil, fmt.Errorf("list active by mode: %w", err)
	}
	defer rows.Close()
	return collectDiscussions(rows)
}

// UpdateDiscussion persists phase, round counter, activity, teams, and
// timeout changes.
func (s *Store) UpdateDiscussion(ctx context.Context, d *discussion.Discussion) error {
	teams, err := teamsArg(d.Teams)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE discussions SET is_active = $2, phase = $3, current_round = $4,
		   timeout_seconds = $5, auto_close_timeout_seconds = $6, teams = $7, ended_at = $8
		 WHERE id = $1`,
		d.ID, d.IsActive, d.Phase, d.CurrentRound,
		int64(d.Timeout/time.Second), int64(d.AutoCloseTimeout/time.Second), teams, d.EndedAt)
	return execExpectOne(tag, err, "update discussion %s", d.ID)
}

func collectDiscussions(rows pgx.Rows) ([]discussion.Discussion, error) {
	var ds []discussion.Discussion
	for rows.Next() {
		d, err := scanDiscussion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan discussion: %w", err)
		}
		ds = append(ds, d)
	}
	return ds, rows.Err()
}

// --- Rounds ---

const roundColumns = `id, discussion_id, number, topic, auto_triggered, trigger_from,
	opened_at, closed_at, aggregate, aggregate_message_id`

func scanRound(row scannable) (discussion.Round, error) {
	var r discussion.Round
	err := row.Scan(&r.ID, &r.DiscussionID, &r.Number, &r.Topic, &r.AutoTriggered, &r.TriggerFrom,
		&r.OpenedAt, &r.ClosedAt, &r.Aggregate, &r.AggregateMessageID)
	return r, err
}

// CreateRound inserts a round. A duplicate (discussion, number) maps to
// domain.ErrConflict.
func (s *Store) CreateRound(ctx context.Context, r *discussion.Round) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rounds (id, discussion_id, number, topic, auto_triggered, trigger_from, opened_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.DiscussionID, r.Number, r.Topic, r.AutoTriggered, r.TriggerFrom, r.OpenedAt)
	if err != nil {
		return conflictWrap(err, "create round %d", r.Number)
	}
	return nil
}

// GetRound returns one round by discussion and number.
func (s *Store) GetRound(ctx context.Context, discussionID string, number int) (*discussion.Round, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+roundColumns+` FROM rounds WHERE discussion_id = $1 AND number = $2`,
		discussionID, number)
	r, err := scanRound(row)
	if err != nil {
		return nil, notFoundWrap(err, "round %d of discussion %s", number, discussionID)
	}
	return &r, nil
}

// GetOpenRound returns the discussion's currently open round.
func (s *Store) GetOpenRound(ctx context.Context, discussionID string) (*discussion.Round, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+roundColumns+` FROM rounds
		 WHERE discussion_id = $1 AND closed_at IS NULL
		 ORDER BY number DESC LIMIT 1`, discussionID)
	r, err := scanRound(row)
	if err != nil {
		return nil, notFoundWrap(err, "open round of discussion %s", discussionID)
	}
	return &r, nil
}

// ListRounds returns all rounds of a discussion in order.
func (s *Store) ListRounds(ctx context.Context, discussionID string) ([]discussion.Round, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+roundColumns+` FROM rounds WHERE discussion_id = $1 ORDER BY number ASC`,
		discussionID)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	defer rows.Close()

	var rs []discussion.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		rs = append(rs, r)
	}
	return rs, rows.Err()
}

// UpdateRound persists close time and aggregate.
func (s *Store) UpdateRound(ctx context.Context, r *discussion.Round) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE rounds SET closed_at = $2, aggregate = $3, aggregate_message_id = $4 WHERE id = $1`,
		r.ID, r.ClosedAt, r.Aggregate, r.AggregateMessageID)
	return execExpectOne(tag, err, "update round %s", r.ID)
}

// --- Submissions ---

// CreateSubmission inserts the (round, role) submission; a duplicate returns
// domain.ErrConflict via the primary key.
func (s *Store) CreateSubmission(ctx context.Context, sub *discussion.Submission) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO submissions (round_id, from_role, message_id, body, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		sub.RoundID, sub.FromRole, sub.MessageID, sub.Body, sub.CreatedAt)
	if err != nil {
		return conflictWrap(err, "submission by %s", sub.FromRole)
	}
	return nil
}

// ListSubmissions returns a round's submissions in board order.
func (s *Store) ListSubmissions(ctx context.Context, roundID string) ([]discussion.Submission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT round_id, from_role, message_id, body, created_at
		 FROM submissions WHERE round_id = $1 ORDER BY message_id ASC`, roundID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var subs []discussion.Submission
	for rows.Next() {
		var sub discussion.Submission
		if err := rows.Scan(&sub.RoundID, &sub.FromRole, &sub.MessageID, &sub.Body, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
