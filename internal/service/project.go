package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/domain/agent"
	"github.com/parleyhq/parley/internal/domain/project"
	"github.com/parleyhq/parley/internal/port/database"
)

// ProjectService manages projects and their configured agent roles.
type ProjectService struct {
	store database.ProjectStore
}

// NewProjectService creates a new ProjectService.
func NewProjectService(store database.ProjectStore) *ProjectService {
	return &ProjectService{store: store}
}

// Create registers a project owned by ownerID.
func (s *ProjectService) Create(ctx context.Context, ownerID, name string) (*project.Project, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	p := &project.Project{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns one project by id.
func (s *ProjectService) Get(ctx context.Context, id string) (*project.Project, error) {
	return s.store.GetProject(ctx, id)
}

// UpsertRole creates or updates an agent role definition on a project. The
// stored briefing is sanitized before any agent prompt is built from it, but
// kept verbatim here so the author can review what they wrote.
func (s *ProjectService) UpsertRole(ctx context.Context, r *project.Role) (*project.Role, error) {
	if r.ProjectID == "" || r.Slug == "" {
		return nil, fmt.Errorf("%w: project_id and slug are required", domain.ErrValidation)
	}
	if _, err := s.store.GetProject(ctx, r.ProjectID); err != nil {
		return nil, err
	}
	if r.Title == "" {
		r.Title = r.Slug
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if err := s.store.UpsertRole(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// GetRole returns one configured role.
func (s *ProjectService) GetRole(ctx context.Context, projectID, slug string) (*project.Role, error) {
	return s.store.GetRole(ctx, projectID, slug)
}

// PreviewPrompt renders the system prompt an agent of this role would run
// with, sanitization applied.
func (s *ProjectService) PreviewPrompt(ctx context.Context, projectID, slug string, instance int) (string, error) {
	r, err := s.store.GetRole(ctx, projectID, slug)
	if err != nil {
		return "", err
	}
	return agent.BuildSystemPrompt(r.Slug, r.Title, instance, r.Briefing), nil
}
