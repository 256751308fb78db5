package domain

import (
	"time"
)

// User is a GitHub account known to the service. Users are created the first
// time they push to an instrumented repository or sign in, and are never
// hard-deleted.
type User struct {
	ID                    int64      `db:"id"`
	GithubID              int64      `db:"github_id"`
	Login                 string     `db:"login"`
	Name                  string     `db:"name"`
	Email                 *string    `db:"email"`
	AvatarURL             string     `db:"avatar_url"`
	ProfileURL            string     `db:"profile_url"`
	IsSubscribed          bool       `db:"is_subscribed"`
	SubscriptionExpiresAt *time.Time `db:"subscription_expires_at"`
	CreatedAt             time.Time  `db:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at"`
}

// Organization mirrors a GitHub org (or user account) the app is installed
// into. InstallationID can change across re-installs and is refreshed on
// every upsert.
type Organization struct {
	ID             int64     `db:"id"`
	OrgID          int64     `db:"org_id"`
	InstallationID int64     `db:"installation_id"`
	Name           string    `db:"name"`
	AvatarURL      string    `db:"avatar_url"`
	URL            string    `db:"url"`
	ReposURL       string    `db:"repos_url"`
	Description    *string   `db:"description"`
	OwnerID        int64     `db:"owner_id"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

type Repository struct {
	ID              int64     `db:"id"`
	RepoID          int64     `db:"repo_id"`
	Name            string    `db:"name"`
	FullName        string    `db:"full_name"`
	Private         bool      `db:"private"`
	OwnerID         int64     `db:"owner_id"`
	DefaultBranch   string    `db:"default_branch"`
	OrganizationID  int64     `db:"organization_id"`
	EnabledForTasks bool      `db:"enabled_for_tasks"`
	RepoCreatedAt   time.Time `db:"repo_created_at"`
	RepoUpdatedAt   time.Time `db:"repo_updated_at"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// FileSummary is one generated per-file summary attached to a commit.
type FileSummary struct {
	Filename string `json:"filename"`
	Summary  string `json:"summary"`
}

// Task is a single generated work item.
type Task struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// TaskBundle holds the two parallel task lists describing the same change at
// two levels of abstraction.
type TaskBundle struct {
	TechnicalTasks    []Task `json:"technicalTasks"`
	NonTechnicalTasks []Task `json:"nonTechnicalTasks"`
}

// Commit is a stored, enriched commit. Enrichment (Summaries and Tasks) is
// computed at most once per SHA; re-observation of the same SHA only updates
// the mutable provider fields.
type Commit struct {
	ID             int64         `db:"id"`
	SHA            string        `db:"sha"`
	CommitTime     time.Time     `db:"commit_time"`
	RepositoryID   int64         `db:"repository_id"`
	OrganizationID int64         `db:"organization_id"`
	Message        string        `db:"message"`
	Additions      int           `db:"additions"`
	Deletions      int           `db:"deletions"`
	Changes        int           `db:"changes"`
	AuthorName     *string       `db:"author_name"`
	Summaries      []FileSummary `db:"-"`
	Tasks          TaskBundle    `db:"-"`
	CreatedAt      time.Time     `db:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at"`
}

// PushEvent records one webhook delivery. It is append-only and never mutated
// after creation.
type PushEvent struct {
	ID             int64     `db:"id"`
	RepositoryID   int64     `db:"repository_id"`
	OrganizationID int64     `db:"organization_id"`
	PusherID       int64     `db:"pusher_id"`
	BeforeSHA      string    `db:"before_sha"`
	AfterSHA       string    `db:"after_sha"`
	Created        bool      `db:"created"`
	Deleted        bool      `db:"deleted"`
	Forced         bool      `db:"forced"`
	CompareURL     string    `db:"compare_url"`
	PushedAt       time.Time `db:"pushed_at"`
	CommitIDs      []int64   `db:"-"`
	CreatedAt      time.Time `db:"created_at"`
}

type WaitlistEntry struct {
	ID       int64     `db:"id"`
	Email    string    `db:"email"`
	JoinedAt time.Time `db:"joined_at"`
}

// CommitSource tags where a returned commit came from in backfill responses.
type CommitSource string

const (
	SourceDatabase CommitSource = "database"
	SourceGithub   CommitSource = "github"
)
