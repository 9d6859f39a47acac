package service

import (
	"context"

	"github.com/parleyhq/parley/internal/domain/billing"
	"github.com/parleyhq/parley/internal/port/database"
)

// UsageReport is the user-level usage view: totals plus per-project rows.
type UsageReport struct {
	Period    string                   `json:"period"`
	Totals    billing.Summary          `json:"totals"`
	ByProject []billing.ProjectSummary `json:"by_project"`
}

// ProjectUsageReport is the project-level usage view with a per-model
// breakdown.
type ProjectUsageReport struct {
	ProjectID string                 `json:"project_id"`
	Totals    billing.Summary        `json:"totals"`
	ByModel   []billing.ModelSummary `json:"by_model"`
}

// UsageService reports recorded completion usage.
type UsageService struct {
	store database.BillingStore
}

// NewUsageService creates a new UsageService.
func NewUsageService(store database.BillingStore) *UsageService {
	return &UsageService{store: store}
}

// ForUser returns the caller's all-time totals and per-project breakdown.
func (s *UsageService) ForUser(ctx context.Context, userID string) (*UsageReport, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	totals, err := s.store.UsageSummaryByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	byProject, err := s.store.UsageByProjectForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &UsageReport{
		Period:    u.UsagePeriod,
		Totals:    *totals,
		ByProject: byProject,
	}, nil
}

// ForProject returns one project's totals and per-model breakdown.
func (s *UsageService) ForProject(ctx context.Context, projectID string) (*ProjectUsageReport, error) {
	totals, err := s.store.UsageSummaryByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	byModel, err := s.store.UsageByModel(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return &ProjectUsageReport{
		ProjectID: projectID,
		Totals:    *totals,
		ByModel:   byModel,
	}, nil
}
