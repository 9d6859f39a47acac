// Package service implements business logic on top of ports.
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/domain/billing"
	"github.com/parleyhq/parley/internal/port/database"
)

// tokenPrefix marks parley API tokens so they are recognizable in logs and
// secret scanners.
const tokenPrefix = "plk_"

// AuthService resolves API tokens and checks project access.
type AuthService struct {
	store    database.BillingStore
	projects database.ProjectStore
}

// NewAuthService creates a new AuthService.
func NewAuthService(store database.BillingStore, projects database.ProjectStore) *AuthService {
	return &AuthService{store: store, projects: projects}
}

// HashToken returns the hex SHA-256 digest stored and compared for API tokens.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// VerifyToken resolves a raw API token to its user.
func (s *AuthService) VerifyToken(ctx context.Context, token string) (*billing.User, error) {
	u, err := s.store.GetUserByTokenHash(ctx, HashToken(token))
	if err != nil {
		return nil, fmt.Errorf("%w: token not recognized", domain.ErrUnauthorized)
	}
	return u, nil
}

// AuthorizeProject checks that userID owns projectID.
func (s *AuthService) AuthorizeProject(ctx context.Context, userID, projectID string) error {
	p, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if p.OwnerID != userID {
		return fmt.Errorf("%w: project %s is not owned by caller", domain.ErrForbidden, projectID)
	}
	return nil
}

// CreateUser registers a user and returns the raw API token, shown once.
func (s *AuthService) CreateUser(ctx context.Context, email, password string, tier billing.Tier) (*billing.User, string, error) {
	if email == "" {
		return nil, "", fmt.Errorf("%w: email is required", domain.ErrValidation)
	}
	switch tier {
	case billing.TierFree, billing.TierPaid, billing.TierSelfKey:
	default:
		return nil, "", fmt.Errorf("%w: unknown tier %q", domain.ErrValidation, tier)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	token, err := generateToken()
	if err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	u := &billing.User{
		ID:          uuid.NewString(),
		Email:       email,
		Tier:        tier,
		UsagePeriod: billing.Period(now),
		CreatedAt:   now,
	}
	if err := s.store.CreateUser(ctx, u, string(hash), HashToken(token)); err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// CheckPassword verifies a login attempt against the stored bcrypt hash.
func (s *AuthService) CheckPassword(ctx context.Context, email, password string) (*billing.User, error) {
	u, hash, err := s.store.GetUserWithPassword(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown email", domain.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: wrong password", domain.ErrUnauthorized)
	}
	return u, nil
}

func generateToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return tokenPrefix + hex.EncodeToString(b), nil
}
