package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/parleyhq/parley/internal/adapter/otel"
	"github.com/parleyhq/parley/internal/adapter/ws"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/domain/board"
	"github.com/parleyhq/parley/internal/port/broadcast"
	"github.com/parleyhq/parley/internal/port/database"
	"github.com/parleyhq/parley/internal/port/messagequeue"
)

// StatusObserver is notified after a status post lands on a board. The
// discussion engine uses it to auto-trigger Continuous review rounds.
type StatusObserver interface {
	OnStatusPost(ctx context.Context, msg *board.Message)
}

// BoardService appends to and reads from project message boards, fanning
// each accepted message out to WebSocket subscribers and the message queue.
type BoardService struct {
	store    database.BoardStore
	bc       broadcast.Broadcaster
	queue    messagequeue.Queue
	metrics  *otel.Metrics
	observer StatusObserver
}

// NewBoardService creates a new BoardService. queue and metrics may be nil.
func NewBoardService(store database.BoardStore, bc broadcast.Broadcaster, queue messagequeue.Queue, metrics *otel.Metrics) *BoardService {
	return &BoardService{store: store, bc: bc, queue: queue, metrics: metrics}
}

// SetStatusObserver wires the discussion engine in after construction; the
// two services reference each other.
func (s *BoardService) SetStatusObserver(o StatusObserver) {
	s.observer = o
}

// Post validates and appends one message, then fans it out.
func (s *BoardService) Post(ctx context.Context, req board.PostRequest) (*board.Message, error) {
	if err := validatePost(&req); err != nil {
		return nil, err
	}

	msg, err := s.store.InsertMessage(ctx, req)
	if err != nil {
		return nil, err
	}

	s.fanout(ctx, msg)
	return msg, nil
}

// PostAll appends several messages in one transaction with consecutive ids.
// All-or-nothing: a single invalid request rejects the whole batch.
func (s *BoardService) PostAll(ctx context.Context, reqs []board.PostRequest) ([]board.Message, error) {
	for i := range reqs {
		if err := validatePost(&reqs[i]); err != nil {
			return nil, err
		}
	}

	msgs, err := s.store.InsertMessages(ctx, reqs)
	if err != nil {
		return nil, err
	}

	for i := range msgs {
		s.fanout(ctx, &msgs[i])
	}
	return msgs, nil
}

// Get fetches one message by its per-project id.
func (s *BoardService) Get(ctx context.Context, projectID string, id int64) (*board.Message, error) {
	return s.store.GetMessage(ctx, projectID, id)
}

// Poll returns messages with id > sinceID in ascending order.
func (s *BoardService) Poll(ctx context.Context, projectID string, sinceID int64, limit int) ([]board.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.store.PollMessages(ctx, projectID, sinceID, limit)
}

// Recent returns the newest limit messages in ascending id order.
func (s *BoardService) Recent(ctx context.Context, projectID string, limit int) ([]board.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.RecentMessages(ctx, projectID, limit)
}

// fanout pushes an accepted message to subscribers, the queue, and the
// status observer. Board persistence already succeeded; failures here are
// logged, never returned.
func (s *BoardService) fanout(ctx context.Context, msg *board.Message) {
	if s.metrics != nil {
		s.metrics.MessagesPosted.Add(ctx, 1)
	}

	if s.bc != nil {
		s.bc.BroadcastProject(ctx, msg.ProjectID, ws.EventBoardMessage, ws.BoardMessageEvent{
			ID:        msg.ID,
			ProjectID: msg.ProjectID,
			FromRole:  msg.FromRole,
			ToRole:    msg.ToRole,
			Type:      msg.Type,
			Subject:   msg.Subject,
			Body:      msg.Body,
			CreatedAt: msg.CreatedAt,
		})
	}

	if s.queue != nil {
		subject := messagequeue.SubjectBoardMessages + "." + msg.ProjectID
		data, err := json.Marshal(msg)
		if err == nil {
			if err := s.queue.Publish(ctx, subject, data); err != nil {
				slog.Warn("board queue publish failed", "project_id", msg.ProjectID, "message_id", msg.ID, "error", err)
			}
		}
	}

	if s.observer != nil && msg.Type == board.TypeStatus {
		s.observer.OnStatusPost(ctx, msg)
	}
}

func validatePost(req *board.PostRequest) error {
	if req.ProjectID == "" {
		return fmt.Errorf("%w: project_id is required", domain.ErrValidation)
	}
	if req.FromRole == "" {
		return fmt.Errorf("%w: from_role is required", domain.ErrValidation)
	}
	if req.Body == "" {
		return fmt.Errorf("%w: body is required", domain.ErrValidation)
	}
	req.Normalize()
	switch req.Type {
	case board.TypeMessage, board.TypeStatus, board.TypeQuestion, board.TypeSubmission, board.TypeSystem:
	default:
		return fmt.Errorf("%w: unknown message type %q", domain.ErrValidation, req.Type)
	}
	return nil
}
