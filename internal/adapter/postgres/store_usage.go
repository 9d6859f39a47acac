package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/parleyhq/parley/internal/domain/billing"
)

// AddUsage inserts the usage record and increments the user's monthly
// counters in one transaction.
func (s *Store) AddUsage(ctx context.Context, rec *billing.UsageRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO usage_records
		   (id, user_id, project_id, model, provider, input_tokens, output_tokens,
		    raw_cost_usd, marked_up_cost_usd, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.UserID, rec.ProjectID, rec.Model, rec.Provider,
		rec.InputTokens, rec.OutputTokens, rec.RawCostUSD, rec.MarkedUpCostUSD, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE users SET monthly_tokens_used = monthly_tokens_used + $2,
		   monthly_cost_usd = monthly_cost_usd + $3
		 WHERE id = $1`,
		rec.UserID, rec.TotalTokens(), rec.MarkedUpCostUSD)
	if err := execExpectOne(tag, err, "increment counters for user %s", rec.UserID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ProjectSpendSince sums marked-up cost attributed to the project since the
// given instant. Backs the trailing-24h ceiling check.
func (s *Store) ProjectSpendSince(ctx context.Context, projectID string, since time.Time) (float64, error) {
	var total float64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(marked_up_cost_usd), 0) FROM usage_records
		 WHERE project_id = $1 AND created_at >= $2`, projectID, since).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("project spend: %w", err)
	}
	return total, nil
}

const summarySelect = `COALESCE(SUM(marked_up_cost_usd), 0), COALESCE(SUM(input_tokens), 0),
	COALESCE(SUM(output_tokens), 0), COUNT(*)`

// UsageSummaryByUser aggregates a user's total usage.
func (s *Store) UsageSummaryByUser(ctx context.Context, userID string) (*billing.Summary, error) {
	var sum billing.Summary
	err := s.pool.QueryRow(ctx,
		`SELECT `+summarySelect+` FROM usage_records WHERE user_id = $1`, userID).
		Scan(&sum.TotalCostUSD, &sum.TotalTokensIn, &sum.TotalTokensOut, &sum.CallCount)
	if err != nil {
		return nil, fmt.Errorf("usage summary by user: %w", err)
	}
	return &sum, nil
}

// UsageSummaryByProject aggregates a project's total usage.
func (s *Store) UsageSummaryByProject(ctx context.Context, projectID string) (*billing.Summary, error) {
	var sum billing.Summary
	err := s.pool.QueryRow(ctx,
		`SELECT `+summarySelect+` FROM usage_records WHERE project_id = $1`, projectID).
		Scan(&sum.TotalCostUSD, &sum.TotalTokensIn, &sum.TotalTokensOut, &sum.CallCount)
	if err != nil {
		return nil, fmt.Errorf("usage summary by project: %w", err)
	}
	return &sum, nil
}

// UsageByModel breaks a project's usage down per model.
func (s *Store) UsageByModel(ctx context.Context, projectID string) ([]billing.ModelSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT model, `+summarySelect+` FROM usage_records
		 WHERE project_id = $1 GROUP BY model ORDER BY SUM(marked_up_cost_usd) DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("usage by model: %w", err)
	}
	defer rows.Close()

	var out []billing.ModelSummary
	for rows.Next() {
		var m billing.ModelSummary
		if err := rows.Scan(&m.Model, &m.TotalCostUSD, &m.TotalTokensIn, &m.TotalTokensOut, &m.CallCount); err != nil {
			return nil, fmt.Errorf("scan model summary: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UsageByProjectForUser breaks a user's usage down per project.
func (s *Store) UsageByProjectForUser(ctx context.Context, userID string) ([]billing.ProjectSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT project_id, `+summarySelect+` FROM usage_records
		 WHERE user_id = $1 GROUP BY project_id ORDER BY SUM(marked_up_cost_usd) DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("usage by project: %w", err)
	}
	defer rows.Close()

	var out []billing.ProjectSummary
	for rows.Next() {
		var p billing.ProjectSummary
		if err := rows.Scan(&p.ProjectID, &p.TotalCostUSD, &p.TotalTokensIn, &p.TotalTokensOut, &p.CallCount); err != nil {
			return nil, fmt.Errorf("scan project summary: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
