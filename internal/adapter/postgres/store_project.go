package postgres

import (
	"context"

	"github.com/parleyhq/parley/internal/domain/project"
)

// CreateProject inserts a project with its message counter at zero.
func (s *Store) CreateProject(ctx context.Context, p *project.Project) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO projects (id, owner_id, name, created_at) VALUES ($1, $2, $3, $4)`,
		p.ID, p.OwnerID, p.Name, p.CreatedAt)
	if err != nil {
		return conflictWrap(err, "create project")
	}
	return nil
}

// GetProject returns a project by id.
func (s *Store) GetProject(ctx context.Context, id string) (*project.Project, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, name, created_at FROM projects WHERE id = $1`, id)
	var p project.Project
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.CreatedAt); err != nil {
		return nil, notFoundWrap(err, "get project %s", id)
	}
	return &p, nil
}

// GetRole returns a configured agent role.
func (s *Store) GetRole(ctx context.Context, projectID, slug string) (*project.Role, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT project_id, slug, title, briefing, model, created_at
		 FROM roles WHERE project_id = $1 AND slug = $2`, projectID, slug)
	var r project.Role
	if err := row.Scan(&r.ProjectID, &r.Slug, &r.Title, &r.Briefing, &r.Model, &r.CreatedAt); err != nil {
		return nil, notFoundWrap(err, "role %s in project %s", slug, projectID)
	}
	return &r, nil
}

// UpsertRole inserts or replaces a role configuration.
func (s *Store) UpsertRole(ctx context.Context, r *project.Role) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO roles (project_id, slug, title, briefing, model, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (project_id, slug)
		 DO UPDATE SET title = EXCLUDED.title, briefing = EXCLUDED.briefing, model = EXCLUDED.model`,
		r.ProjectID, r.Slug, r.Title, r.Briefing, r.Model, r.CreatedAt)
	if err != nil {
		return conflictWrap(err, "upsert role %s", r.Slug)
	}
	return nil
}
