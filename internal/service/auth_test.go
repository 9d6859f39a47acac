package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/domain/billing"
	"github.com/parleyhq/parley/internal/domain/project"
)

func TestCreateUserAndVerifyToken(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewAuthService(store, store)

	u, token, err := svc.CreateUser(ctx, "dev@example.com", "hunter22", billing.TierFree)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if !strings.HasPrefix(token, "plk_") {
		t.Errorf("token should carry the plk_ prefix, got %q", token)
	}
	if u.UsagePeriod == "" {
		t.Error("usage period should be stamped")
	}

	got, err := svc.VerifyToken(ctx, token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("verified user %q, want %q", got.ID, u.ID)
	}

	if _, err := svc.VerifyToken(ctx, "plk_bogus"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestCheckPassword(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewAuthService(store, store)

	if _, _, err := svc.CreateUser(ctx, "dev@example.com", "hunter22", billing.TierFree); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.CheckPassword(ctx, "dev@example.com", "hunter22"); err != nil {
		t.Errorf("correct password rejected: %v", err)
	}
	if _, err := svc.CheckPassword(ctx, "dev@example.com", "wrong"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthorizeProject(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewAuthService(store, store)

	if err := store.CreateProject(ctx, &project.Project{ID: "p1", OwnerID: "owner"}); err != nil {
		t.Fatal(err)
	}

	if err := svc.AuthorizeProject(ctx, "owner", "p1"); err != nil {
		t.Errorf("owner should be authorized: %v", err)
	}
	if err := svc.AuthorizeProject(ctx, "intruder", "p1"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if err := svc.AuthorizeProject(ctx, "owner", "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
