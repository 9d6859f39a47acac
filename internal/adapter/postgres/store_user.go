package postgres

import (
	"context"

	"github.com/parleyhq/parley/internal/domain/billing"
)

const userColumns = `id, email, tier, monthly_tokens_used, monthly_cost_usd, usage_period, created_at`

func scanUser(row scannable) (billing.User, error) {
	var u billing.User
	err := row.Scan(&u.ID, &u.Email, &u.Tier, &u.MonthlyTokensUsed, &u.MonthlyCostUSD, &u.UsagePeriod, &u.CreatedAt)
	return u, err
}

// CreateUser inserts a user together with its password and API token hashes.
func (s *Store) CreateUser(ctx context.Context, u *billing.User, passwordHash, tokenHash string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, tier, password_hash, token_hash, usage_period, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Email, u.Tier, passwordHash, nullIfEmpty(tokenHash), u.UsagePeriod, u.CreatedAt)
	if err != nil {
		return conflictWrap(err, "create user")
	}
	return nil
}

// GetUser returns a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*billing.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFoundWrap(err, "get user %s", id)
	}
	return &u, nil
}

// GetUserByEmail returns a user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*billing.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFoundWrap(err, "get user by email")
	}
	return &u, nil
}

// GetUserWithPassword returns a user by email along with the bcrypt password
// hash, for login verification.
func (s *Store) GetUserWithPassword(ctx context.Context, email string) (*billing.User, string, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+`, password_hash FROM users WHERE email = $1`, email)
	var u billing.User
	var hash string
	err := row.Scan(&u.ID, &u.Email, &u.Tier, &u.MonthlyTokensUsed, &u.MonthlyCostUSD,
		&u.UsagePeriod, &u.CreatedAt, &hash)
	if err != nil {
		return nil, "", notFoundWrap(err, "get user by email")
	}
	return &u, hash, nil
}

// GetUserByTokenHash resolves an API token hash to its user.
func (s *Store) GetUserByTokenHash(ctx context.Context, tokenHash string) (*billing.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE token_hash = $1`, tokenHash)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFoundWrap(err, "get user by token")
	}
	return &u, nil
}

// ResetUsagePeriod zeroes the monthly counters and stamps the new period in
// one statement (lazy monthly reset).
func (s *Store) ResetUsagePeriod(ctx context.Context, userID, period string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET monthly_tokens_used = 0, monthly_cost_usd = 0, usage_period = $2 WHERE id = $1`,
		userID, period)
	return execExpectOne(tag, err, "reset usage period for user %s", userID)
}

// GetCredential returns a stored self-key provider credential.
func (s *Store) GetCredential(ctx context.Context, userID, provider string) (*billing.Credential, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT user_id, provider, encrypted, created_at
		 FROM credentials WHERE user_id = $1 AND provider = $2`, userID, provider)
	var c billing.Credential
	if err := row.Scan(&c.UserID, &c.Provider, &c.Encrypted, &c.CreatedAt); err != nil {
		return nil, notFoundWrap(err, "credential %s for user %s", provider, userID)
	}
	return &c, nil
}

// UpsertCredential stores or replaces a provider credential.
func (s *Store) UpsertCredential(ctx context.Context, c *billing.Credential) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO credentials (user_id, provider, encrypted, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, provider) DO UPDATE SET encrypted = EXCLUDED.encrypted`,
		c.UserID, c.Provider, c.Encrypted, c.CreatedAt)
	if err != nil {
		return conflictWrap(err, "upsert credential")
	}
	return nil
}
