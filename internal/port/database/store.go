// Package database defines the persistence port (interfaces).
// Services depend on the narrow sub-interfaces; the postgres adapter
// implements Store, the union of all of them.
package database

import (
	"context"
	"time"

	"github.com/parleyhq/parley/internal/domain/billing"
	"github.com/parleyhq/parley/internal/domain/board"
	"github.com/parleyhq/parley/internal/domain/discussion"
	"github.com/parleyhq/parley/internal/domain/project"
)

// BoardStore persists the append-only per-project message log.
type BoardStore interface {
	// InsertMessage appends one message, assigning the project's next id.
	InsertMessage(ctx context.Context, req board.PostRequest) (*board.Message, error)

	// InsertMessages appends several messages in one transaction with
	// consecutive ids. All-or-nothing.
	InsertMessages(ctx context.Context, reqs []board.PostRequest) ([]board.Message, error)

	// GetMessage fetches one message by its per-project id.
	GetMessage(ctx context.Context, projectID string, id int64) (*board.Message, error)

	// PollMessages returns messages with id > sinceID in ascending id order.
	PollMessages(ctx context.Context, projectID string, sinceID int64, limit int) ([]board.Message, error)

	// RecentMessages returns the newest limit messages in ascending id order.
	RecentMessages(ctx context.Context, projectID string, limit int) ([]board.Message, error)
}

// DiscussionStore persists discussions, rounds, and submissions.
type DiscussionStore interface {
	CreateDiscussion(ctx context.Context, d *discussion.Discussion) error
	GetDiscussion(ctx context.Context, id string) (*discussion.Discussion, error)
	// GetActiveDiscussion returns the project's single active discussion or
	// domain.ErrNotFound.
	GetActiveDiscussion(ctx context.Context, projectID string) (*discussion.Discussion, error)
	ListDiscussions(ctx context.Context, projectID string) ([]discussion.Discussion, error)
	ListActiveByMode(ctx context.Context, mode discussion.Mode) ([]discussion.Discussion, error)
	UpdateDiscussion(ctx context.Context, d *discussion.Discussion) error

	CreateRound(ctx context.Context, r *discussion.Round) error
	GetRound(ctx context.Context, discussionID string, number int) (*discussion.Round, error)
	// GetOpenRound returns the discussion's round without a closed_at, or
	// domain.ErrNotFound.
	GetOpenRound(ctx context.Context, discussionID string) (*discussion.Round, error)
	ListRounds(ctx context.Context, discussionID string) ([]discussion.Round, error)
	UpdateRound(ctx context.Context, r *discussion.Round) error

	// CreateSubmission inserts the (round, role) submission; a duplicate
	// returns domain.ErrConflict.
	CreateSubmission(ctx context.Context, s *discussion.Submission) error
	ListSubmissions(ctx context.Context, roundID string) ([]discussion.Submission, error)
}

// ProjectStore resolves projects and configured agent roles.
type ProjectStore interface {
	CreateProject(ctx context.Context, p *project.Project) error
	GetProject(ctx context.Context, id string) (*project.Project, error)
	GetRole(ctx context.Context, projectID, slug string) (*project.Role, error)
	UpsertRole(ctx context.Context, r *project.Role) error
}

// BillingStore persists users, credentials, and usage.
type BillingStore interface {
	CreateUser(ctx context.Context, u *billing.User, passwordHash, tokenHash string) error
	GetUser(ctx context.Context, id string) (*billing.User, error)
	GetUserByEmail(ctx context.Context, email string) (*billing.User, error)
	GetUserByTokenHash(ctx context.Context, tokenHash string) (*billing.User, error)
	// GetUserWithPassword also returns the bcrypt password hash for login.
	GetUserWithPassword(ctx context.Context, email string) (*billing.User, string, error)

	// ResetUsagePeriod zeroes the monthly counters and stamps the new period
	// in one statement.
	ResetUsagePeriod(ctx context.Context, userID, period string) error

	// AddUsage inserts the record and increments the user's monthly counters
	// in one transaction.
	AddUsage(ctx context.Context, rec *billing.UsageRecord) error

	// ProjectSpendSince sums marked-up cost attributed to the project since
	// the given instant.
	ProjectSpendSince(ctx context.Context, projectID string, since time.Time) (float64, error)

	GetCredential(ctx context.Context, userID, provider string) (*billing.Credential, error)
	UpsertCredential(ctx context.Context, c *billing.Credential) error

	UsageSummaryByUser(ctx context.Context, userID string) (*billing.Summary, error)
	UsageSummaryByProject(ctx context.Context, projectID string) (*billing.Summary, error)
	UsageByModel(ctx context.Context, projectID string) ([]billing.ModelSummary, error)
	UsageByProjectForUser(ctx context.Context, userID string) ([]billing.ProjectSummary, error)
}

// Store is the full persistence surface implemented by the postgres adapter.
type Store interface {
	BoardStore
	DiscussionStore
	ProjectStore
	BillingStore
}
