package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/adapter/otel"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/domain/billing"
	"github.com/parleyhq/parley/internal/port/cache"
	"github.com/parleyhq/parley/internal/port/completion"
	"github.com/parleyhq/parley/internal/port/database"
)

// CompletionResult is a served completion plus its billing outcome.
type CompletionResult struct {
	Content      string          `json:"content"`
	Model        string          `json:"model"`
	Provider     string          `json:"provider"`
	ToolCalls    json.RawMessage `json:"tool_calls,omitempty"`
	InputTokens  int64           `json:"input_tokens"`
	OutputTokens int64           `json:"output_tokens"`
	CostUSD      float64         `json:"cost_usd"`
}

// MeteringGateway is the single path to the completion provider. Every call
// passes the quota and ceiling checks before it is forwarded, and is
// recorded after it returns.
type MeteringGateway struct {
	store    database.BillingStore
	provider completion.Provider
	cache    cache.Cache
	metrics  *otel.Metrics
	cfg      config.Metering
	cryptKey []byte
	now      func() time.Time
}

// NewMeteringGateway creates a new MeteringGateway. cache and metrics may be
// nil; secretKey derives the credential encryption key.
func NewMeteringGateway(store database.BillingStore, provider completion.Provider, c cache.Cache, metrics *otel.Metrics, cfg config.Metering, secretKey string) *MeteringGateway {
	return &MeteringGateway{
		store:    store,
		provider: provider,
		cache:    c,
		metrics:  metrics,
		cfg:      cfg,
		cryptKey: billing.DeriveKey(secretKey),
		now:      time.Now,
	}
}

// Complete serves one metered completion for the user on behalf of a project.
// Rejections (quota, ceiling, missing credential) happen before the provider
// is called and leave no usage side effects.
func (g *MeteringGateway) Complete(ctx context.Context, userID, projectID string, req completion.Request) (*CompletionResult, error) {
	ctx, span := otel.StartCompletionSpan(ctx, userID, projectID, req.Model)
	defer span.End()

	u, err := g.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := g.now()
	if u.NeedsReset(now) {
		if err := g.store.ResetUsagePeriod(ctx, u.ID, billing.Period(now)); err != nil {
			return nil, err
		}
		u.MonthlyTokensUsed = 0
		u.MonthlyCostUSD = 0
		u.UsagePeriod = billing.Period(now)
	}

	if limit := g.monthlyCap(u.Tier); u.MonthlyTokensUsed >= limit {
		g.reject(ctx)
		return nil, fmt.Errorf("%w: monthly token cap reached (%d)", domain.ErrUsageLimitExceeded, limit)
	}

	spend, err := g.projectSpend(ctx, projectID, now)
	if err != nil {
		return nil, err
	}
	if spend >= g.cfg.ProjectCeilingUSD {
		g.reject(ctx)
		return nil, fmt.Errorf("%w: project spend ceiling reached ($%.2f in 24h)", domain.ErrUsageLimitExceeded, spend)
	}

	markup := g.cfg.Markup
	if u.Tier == billing.TierSelfKey {
		// Self-key calls run on the user's own credential at cost.
		markup = 1
		cred, err := g.store.GetCredential(ctx, u.ID, billing.ProviderFor(req.Model))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("%w: no %s credential on file", domain.ErrPaymentRequired, billing.ProviderFor(req.Model))
			}
			return nil, err
		}
		key, err := billing.DecryptKey(cred.Encrypted, g.cryptKey)
		if err != nil {
			return nil, fmt.Errorf("decrypt credential: %w", err)
		}
		req.APIKey = string(key)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CompletionTimeout)
	defer cancel()

	start := now
	res, err := g.provider.Complete(callCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() != nil {
			return nil, fmt.Errorf("%w: completion exceeded %s", domain.ErrTimeout, g.cfg.CompletionTimeout)
		}
		return nil, err
	}

	raw, billed := billing.ComputeCost(res.Model, res.Usage.InputTokens, res.Usage.OutputTokens, markup)
	rec := &billing.UsageRecord{
		ID:              uuid.NewString(),
		UserID:          u.ID,
		ProjectID:       projectID,
		Model:           res.Model,
		Provider:        res.Provider,
		InputTokens:     res.Usage.InputTokens,
		OutputTokens:    res.Usage.OutputTokens,
		RawCostUSD:      raw,
		MarkedUpCostUSD: billed,
		CreatedAt:       g.now().UTC(),
	}
	if err := g.store.AddUsage(ctx, rec); err != nil {
		return nil, fmt.Errorf("record usage: %w", err)
	}
	g.invalidateSpend(ctx, projectID)

	if g.metrics != nil {
		g.metrics.CompletionsServed.Add(ctx, 1)
		g.metrics.CompletionTokens.Add(ctx, rec.TotalTokens())
		g.metrics.CompletionCost.Record(ctx, billed)
		g.metrics.CompletionDuration.Record(ctx, g.now().Sub(start).Seconds())
	}
	slog.Debug("completion served", "user_id", u.ID, "project_id", projectID,
		"model", res.Model, "tokens", rec.TotalTokens(), "cost_usd", billed)

	return &CompletionResult{
		Content:      res.Content,
		Model:        res.Model,
		Provider:     res.Provider,
		ToolCalls:    res.ToolCalls,
		InputTokens:  res.Usage.InputTokens,
		OutputTokens: res.Usage.OutputTokens,
		CostUSD:      billed,
	}, nil
}

// StoreCredential encrypts and saves a self-key provider credential.
func (g *MeteringGateway) StoreCredential(ctx context.Context, userID, provider, apiKey string) error {
	if apiKey == "" {
		return fmt.Errorf("%w: api key is required", domain.ErrValidation)
	}
	enc, err := billing.EncryptKey([]byte(apiKey), g.cryptKey)
	if err != nil {
		return fmt.Errorf("encrypt credential: %w", err)
	}
	return g.store.UpsertCredential(ctx, &billing.Credential{
		UserID:    userID,
		Provider:  provider,
		Encrypted: enc,
		CreatedAt: g.now().UTC(),
	})
}

func (g *MeteringGateway) monthlyCap(tier billing.Tier) int64 {
	switch tier {
	case billing.TierPaid:
		return g.cfg.PaidMonthlyTokens
	case billing.TierSelfKey:
		return g.cfg.SelfKeyMonthlyTokens
	default:
		return g.cfg.FreeMonthlyTokens
	}
}

// projectSpend returns the project's trailing-24h marked-up spend, served
// from cache between recomputations.
func (g *MeteringGateway) projectSpend(ctx context.Context, projectID string, now time.Time) (float64, error) {
	key := spendCacheKey(projectID)
	if g.cache != nil {
		if data, ok, _ := g.cache.Get(ctx, key); ok {
			if v, err := strconv.ParseFloat(string(data), 64); err == nil {
				return v, nil
			}
		}
	}

	spend, err := g.store.ProjectSpendSince(ctx, projectID, now.Add(-24*time.Hour))
	if err != nil {
		return 0, err
	}

	if g.cache != nil {
		val := strconv.FormatFloat(spend, 'f', -1, 64)
		_ = g.cache.Set(ctx, key, []byte(val), g.cfg.SpendCacheTTL)
	}
	return spend, nil
}

func (g *MeteringGateway) invalidateSpend(ctx context.Context, projectID string) {
	if g.cache != nil {
		_ = g.cache.Delete(ctx, spendCacheKey(projectID))
	}
}

func (g *MeteringGateway) reject(ctx context.Context) {
	if g.metrics != nil {
		g.metrics.CompletionsRejected.Add(ctx, 1)
	}
}

func spendCacheKey(projectID string) string {
	return "spend24h:" + projectID
}
