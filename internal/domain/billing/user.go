// Package billing defines users, usage tiers, usage records, and the
// per-model pricing table backing the metered completion gateway.
package billing

import "time"

// Tier is a user's billing tier.
type Tier string

// Billing tiers. Free and Paid are capped monthly; SelfKey users bring their
// own provider credentials and are effectively uncapped.
const (
	TierFree    Tier = "free"
	TierPaid    Tier = "paid"
	TierSelfKey Tier = "self_key"
)

// User is the billing-relevant slice of a platform user. Monthly counters are
// lazily reset when UsagePeriod is not the current calendar month.
type User struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	Tier              Tier      `json:"tier"`
	MonthlyTokensUsed int64     `json:"monthly_tokens_used"`
	MonthlyCostUSD    float64   `json:"monthly_cost_usd"`
	UsagePeriod       string    `json:"usage_period"` // "2026-08"
	CreatedAt         time.Time `json:"created_at"`
}

// Period formats t as a calendar-month usage period.
func Period(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// NeedsReset reports whether the user's counters belong to a past period.
func (u *User) NeedsReset(now time.Time) bool {
	return u.UsagePeriod != Period(now)
}

// Credential is a stored self-key provider credential. The key material is
// encrypted at rest (see crypto.go).
type Credential struct {
	UserID    string    `json:"user_id"`
	Provider  string    `json:"provider"` // "openai", "anthropic", ...
	Encrypted []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
