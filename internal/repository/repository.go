// package repository defines the interfaces for the data persistence layer.
// These interfaces abstract the underlying database implementation from the service layer.
package repository

import (
	"context"
	"time"

	"github.com/devtrackhq/devtrack-service/internal/domain"
)

// UserRepository defines the contract for user records keyed on the GitHub user id.
type UserRepository interface {
	// Upsert inserts a user or merges the mutable profile fields into the
	// existing row. Subscription state is only set on first insert; later
	// upserts never reset it.
	Upsert(ctx context.Context, user domain.User) (*domain.User, error)

	// GetByGithubID returns apperrors.ErrNotFound if the user is unknown.
	GetByGithubID(ctx context.Context, githubID int64) (*domain.User, error)

	// ExpireSubscriptions flips is_subscribed off for every user whose
	// subscription expired before now, returning the number of rows changed.
	ExpireSubscriptions(ctx context.Context, now time.Time) (int64, error)
}

// OrganizationRepository defines the contract for organization records keyed
// on the GitHub org id.
type OrganizationRepository interface {
	// Upsert inserts or merges an organization. The installation id is always
	// refreshed since it changes across re-installs.
	Upsert(ctx context.Context, org domain.Organization) (*domain.Organization, error)

	// GetByName returns apperrors.ErrNotFound if no organization matches.
	GetByName(ctx context.Context, name string) (*domain.Organization, error)

	// AddMember registers a user as a member of the organization. Adding an
	// existing member is a no-op.
	AddMember(ctx context.Context, orgID, userID int64) error

	// ListForMember returns every organization the user is a member of.
	ListForMember(ctx context.Context, userID int64) ([]domain.Organization, error)
}

// RepoRepository defines the contract for repository records keyed on the
// GitHub repo id.
type RepoRepository interface {
	// Upsert inserts or merges a repository. The enabled-for-tasks flag is
	// user-controlled and only set on first insert.
	Upsert(ctx context.Context, repo domain.Repository) (*domain.Repository, error)

	// GetByOrgAndName returns apperrors.ErrNotFound if no repository matches.
	GetByOrgAndName(ctx context.Context, orgID int64, name string) (*domain.Repository, error)

	// ListByOrganization returns all repositories linked to the organization.
	ListByOrganization(ctx context.Context, orgID int64) ([]domain.Repository, error)

	// SetTasksEnabled toggles enrichment for a repository, addressed by its
	// provider repo id. Returns apperrors.ErrNotFound for unknown repos.
	SetTasksEnabled(ctx context.Context, providerRepoID int64, enabled bool) (*domain.Repository, error)
}

// CommitFilter narrows a commit listing. Start/End bound commit_time;
// Page/PageSize paginate (1-based page) when no date bounds are given.
type CommitFilter struct {
	Start    *time.Time
	End      *time.Time
	Page     int
	PageSize int
}

// CommitRepository defines the contract for enriched commit records keyed on sha.
type CommitRepository interface {
	// Upsert inserts a commit or merges the mutable provider fields. Stored
	// enrichment (summaries and tasks) is preserved unless refreshEnrichment
	// is set, in which case the new values overwrite it.
	Upsert(ctx context.Context, commit domain.Commit, refreshEnrichment bool) (*domain.Commit, error)

	// GetBySHA returns apperrors.ErrNotFound if the sha has not been stored.
	GetBySHA(ctx context.Context, sha string) (*domain.Commit, error)

	// ListByRepository returns commits ordered by commit_time descending.
	ListByRepository(ctx context.Context, repositoryID int64, filter CommitFilter) ([]domain.Commit, error)

	// ListCommitDates returns the distinct calendar days (UTC) that have at
	// least one stored commit across the given repositories.
	ListCommitDates(ctx context.Context, repositoryIDs []int64) ([]time.Time, error)
}

// PushEventRepository defines the contract for the append-only push event log.
type PushEventRepository interface {
	// Create stores the event and its ordered commit references in one
	// transaction. Push events are never updated afterwards.
	Create(ctx context.Context, event domain.PushEvent) (*domain.PushEvent, error)
}

// WaitlistRepository defines the contract for waitlist signups.
type WaitlistRepository interface {
	// Add returns apperrors.ErrAlreadyExists if the email is already signed up.
	Add(ctx context.Context, email string) (*domain.WaitlistEntry, error)
}
