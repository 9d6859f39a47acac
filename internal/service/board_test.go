package service

import (
	"context"
	"errors"
	"testing"

	"github.com/parleyhq/parley/internal/adapter/ws"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/domain/board"
)

func TestBoardPostFanout(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	bc := &fakeBroadcaster{}
	queue := &fakeQueue{}
	svc := NewBoardService(store, bc, queue, nil)

	msg, err := svc.Post(ctx, board.PostRequest{
		ProjectID: "p1",
		FromRole:  "dev",
		Body:      "hello board",
	})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if msg.ID != 1 {
		t.Errorf("first message should have id 1, got %d", msg.ID)
	}
	if msg.ToRole != board.RoleAll || msg.Type != board.TypeMessage {
		t.Errorf("defaults not applied: to=%q type=%q", msg.ToRole, msg.Type)
	}

	events := bc.ofType(ws.EventBoardMessage)
	if len(events) != 1 {
		t.Fatalf("expected 1 board event, got %d", len(events))
	}
	if events[0].ProjectID != "p1" {
		t.Errorf("event project = %q, want p1", events[0].ProjectID)
	}
	if queue.published["board.messages.p1"] != 1 {
		t.Errorf("expected 1 queue publish, got %v", queue.published)
	}
}

func TestBoardPostValidation(t *testing.T) {
	svc := NewBoardService(newMemStore(), nil, nil, nil)
	tests := []struct {
		name string
		req  board.PostRequest
	}{
		{"missing project", board.PostRequest{FromRole: "a", Body: "x"}},
		{"missing from", board.PostRequest{ProjectID: "p1", Body: "x"}},
		{"missing body", board.PostRequest{ProjectID: "p1", FromRole: "a"}},
		{"unknown type", board.PostRequest{ProjectID: "p1", FromRole: "a", Body: "x", Type: "note"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Post(context.Background(), tt.req); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestBoardPostAllAtomicValidation(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewBoardService(store, nil, nil, nil)

	reqs := []board.PostRequest{
		{ProjectID: "p1", FromRole: "a", Body: "ok"},
		{ProjectID: "p1", FromRole: "a"}, // invalid: no body
	}
	if _, err := svc.PostAll(ctx, reqs); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if len(store.msgs["p1"]) != 0 {
		t.Error("invalid batch must not insert anything")
	}

	reqs[1].Body = "also ok"
	msgs, err := svc.PostAll(ctx, reqs)
	if err != nil {
		t.Fatalf("PostAll: %v", err)
	}
	if len(msgs) != 2 || msgs[0].ID != 1 || msgs[1].ID != 2 {
		t.Errorf("expected consecutive ids 1,2, got %+v", msgs)
	}
}

func TestBoardPollAndRecent(t *testing.T) {
	ctx := context.Background()
	svc := NewBoardService(newMemStore(), nil, nil, nil)

	for i := 0; i < 5; i++ {
		if _, err := svc.Post(ctx, board.PostRequest{ProjectID: "p1", FromRole: "a", Body: "m"}); err != nil {
			t.Fatal(err)
		}
	}

	polled, err := svc.Poll(ctx, "p1", 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(polled) != 2 || polled[0].ID != 4 {
		t.Errorf("Poll(since=3) = %+v, want ids 4,5", polled)
	}

	recent, err := svc.Recent(ctx, "p1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].ID != 4 || recent[1].ID != 5 {
		t.Errorf("Recent(2) should return the newest two in ascending order, got %+v", recent)
	}
}
