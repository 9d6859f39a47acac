package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/parleyhq/parley/internal/domain/board"
)

const messageColumns = `id, project_id, from_role, to_role, type, subject, body, created_at`

func scanMessage(row scannable) (board.Message, error) {
	var m board.Message
	err := row.Scan(&m.ID, &m.ProjectID, &m.FromRole, &m.ToRole, &m.Type, &m.Subject, &m.Body, &m.CreatedAt)
	return m, err
}

// InsertMessage appends one message to the project board.
func (s *Store) InsertMessage(ctx context.Context, req board.PostRequest) (*board.Message, error) {
	msgs, err := s.InsertMessages(ctx, []board.PostRequest{req})
	if err != nil {
		return nil, err
	}
	return &msgs[0], nil
}

// InsertMessages appends several messages in one transaction. The project's
// message counter row is locked by the UPDATE, which serializes concurrent
// publishers and keeps ids gap-free.
func (s *Store) InsertMessages(ctx context.Context, reqs []board.PostRequest) ([]board.Message, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	msgs := make([]board.Message, 0, len(reqs))
	for _, req := range reqs {
		var nextID int64
		err := tx.QueryRow(ctx,
			`UPDATE projects SET last_message_id = last_message_id + 1
			 WHERE id = $1 RETURNING last_message_id`, req.ProjectID).Scan(&nextID)
		if err != nil {
			return nil, notFoundWrap(err, "next message id for project %s", req.ProjectID)
		}

		row := tx.QueryRow(ctx,
			`INSERT INTO messages (project_id, id, from_role, to_role, type, subject, body)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING `+messageColumns,
			req.ProjectID, nextID, req.FromRole, req.ToRole, req.Type, req.Subject, req.Body)

		m, err := scanMessage(row)
		if err != nil {
			return nil, fmt.Errorf("insert message: %w", err)
		}
		msgs = append(msgs, m)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return msgs, nil
}

// GetMessage fetches one message by its per-project id.
func (s *Store) GetMessage(ctx context.Context, projectID string, id int64) (*board.Message, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE project_id = $1 AND id = $2`, projectID, id)
	m, err := scanMessage(row)
	if err != nil {
		return nil, notFoundWrap(err, "message %d in project %s", id, projectID)
	}
	return &m, nil
}

// PollMessages returns messages with id > sinceID in ascending order.
func (s *Store) PollMessages(ctx context.Context, projectID string, sinceID int64, limit int) ([]board.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE project_id = $1 AND id > $2
		 ORDER BY id ASC LIMIT $3`, projectID, sinceID, limit)
	if err != nil {
		return nil, fmt.Errorf("poll messages: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

// RecentMessages returns the newest limit messages in ascending id order.
func (s *Store) RecentMessages(ctx context.Context, projectID string, limit int) ([]board.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+messageColumns+` FROM (
		   SELECT `+messageColumns+` FROM messages
		   WHERE project_id = $1 ORDER BY id DESC LIMIT $2
		 ) tail ORDER BY id ASC`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

func collectMessages(rows pgx.Rows) ([]board.Message, error) {
	var msgs []board.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
