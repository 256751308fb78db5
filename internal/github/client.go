package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	gh "github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"github.com/devtrackhq/devtrack-service/internal/apperrors"
)

// ZeroSHA is the "before" value GitHub sends when a branch was just created
// and there is nothing to compare against.
const ZeroSHA = "0000000000000000000000000000000000000000"

// ChangedFile is one file-level change inside a diff.
type ChangedFile struct {
	Filename  string
	Status    string
	Additions int
	Deletions int
	Changes   int
	Patch     string
}

// Comparison is the diff between two commits plus aggregate stats.
type Comparison struct {
	Files          []ChangedFile
	TotalCommits   int
	TotalAdditions int
	TotalDeletions int
}

// CommitRef is a lightweight commit listing entry.
type CommitRef struct {
	SHA        string
	Message    string
	AuthorName string
	AuthorDate time.Time
}

// CommitDetail is a single commit's full diff.
type CommitDetail struct {
	SHA        string
	Message    string
	AuthorName string
	AuthorDate time.Time
	Additions  int
	Deletions  int
	Changes    int
	Files      []ChangedFile
}

// Installation is a GitHub App installation together with its account.
type Installation struct {
	ID               int64
	AccountID        int64
	AccountLogin     string
	AccountType      string
	AccountAvatarURL string
	AccountURL       string
	AccountReposURL  string
}

// Repo is a repository as listed for an installation.
type Repo struct {
	RepoID        int64
	Name          string
	FullName      string
	Private       bool
	DefaultBranch string
	OwnerLogin    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Account is the authenticated GitHub user behind a session token.
type Account struct {
	ID        int64
	Login     string
	Name      string
	Email     string
	AvatarURL string
	HTMLURL   string
}

const requestTimeout = 60 * time.Second

// Client wraps go-github with broker-issued credentials. Every call picks the
// right identity: the app JWT for app-scoped endpoints, an installation token
// for repository data, or a caller-supplied user token.
type Client struct {
	broker  *TokenBroker
	baseURL *url.URL
	log     *slog.Logger
}

// NewClient creates a Client talking to the public GitHub API.
func NewClient(broker *TokenBroker, log *slog.Logger) *Client {
	return &Client{
		broker: broker,
		log:    log,
	}
}

// rest builds a go-github client whose transport injects the given token.
func (c *Client) rest(token string) *gh.Client {
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Timeout:   requestTimeout,
		Transport: &oauth2.Transport{Source: source},
	}

	client := gh.NewClient(httpClient)
	if c.baseURL != nil {
		client.BaseURL = c.baseURL
	}

	return client
}

func (c *Client) installationREST(ctx context.Context, installationID int64) (*gh.Client, error) {
	token, err := c.broker.InstallationToken(ctx, installationID)
	if err != nil {
		return nil, err
	}

	return c.rest(token), nil
}

func (c *Client) appREST() (*gh.Client, error) {
	appJWT, err := c.broker.AppJWT()
	if err != nil {
		return nil, err
	}

	return c.rest(appJWT), nil
}

// upstreamErr normalizes a go-github error into the service error taxonomy.
func upstreamErr(resp *gh.Response, err error) error {
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}

	return &apperrors.UpstreamError{Service: "github", Status: status, Detail: err.Error()}
}

// CompareCommits fetches the diff between two SHAs. The caller must not pass
// ZeroSHA as before; use GetCommit for newly created branches instead.
func (c *Client) CompareCommits(ctx context.Context, org, repo, beforeSHA, afterSHA string, installationID int64) (*Comparison, error) {
	rest, err := c.installationREST(ctx, installationID)
	if err != nil {
		return nil, err
	}

	comparison, resp, err := rest.Repositories.CompareCommits(ctx, org, repo, beforeSHA, afterSHA, &gh.ListOptions{PerPage: 100})
	if err != nil {
		return nil, upstreamErr(resp, err)
	}

	result := &Comparison{
		Files:        make([]ChangedFile, 0, len(comparison.Files)),
		TotalCommits: comparison.GetTotalCommits(),
	}
	for _, f := range comparison.Files {
		file := toChangedFile(f)
		result.TotalAdditions += file.Additions
		result.TotalDeletions += file.Deletions
		result.Files = append(result.Files, file)
	}

	return result, nil
}

// GetCommit fetches one commit's file-level diff and stats.
func (c *Client) GetCommit(ctx context.Context, org, repo, sha string, installationID int64) (*CommitDetail, error) {
	rest, err := c.installationREST(ctx, installationID)
	if err != nil {
		return nil, err
	}

	commit, resp, err := rest.Repositories.GetCommit(ctx, org, repo, sha, &gh.ListOptions{PerPage: 100})
	if err != nil {
		return nil, upstreamErr(resp, err)
	}

	detail := &CommitDetail{
		SHA:        commit.GetSHA(),
		Message:    commit.GetCommit().GetMessage(),
		AuthorName: commit.GetCommit().GetAuthor().GetName(),
		AuthorDate: commit.GetCommit().GetAuthor().GetDate().Time,
		Additions:  commit.GetStats().GetAdditions(),
		Deletions:  commit.GetStats().GetDeletions(),
		Changes:    commit.GetStats().GetTotal(),
		Files:      make([]ChangedFile, 0, len(commit.Files)),
	}
	for _, f := range commit.Files {
		detail.Files = append(detail.Files, toChangedFile(f))
	}

	return detail, nil
}

// ListCommitsOptions narrows a commit listing by date window or page.
type ListCommitsOptions struct {
	Since   *time.Time
	Until   *time.Time
	Page    int
	PerPage int
}

// ListCommits lists commits for a repository, optionally filtered by a date
// window or paginated. It does not paginate transparently; the caller owns
// the page cursor.
func (c *Client) ListCommits(ctx context.Context, org, repo string, installationID int64, opts ListCommitsOptions) ([]CommitRef, error) {
	rest, err := c.installationREST(ctx, installationID)
	if err != nil {
		return nil, err
	}

	listOpts := &gh.CommitsListOptions{
		ListOptions: gh.ListOptions{Page: opts.Page, PerPage: opts.PerPage},
	}
	if listOpts.PerPage == 0 {
		listOpts.PerPage = 100
	}
	if opts.Since != nil {
		listOpts.Since = *opts.Since
	}
	if opts.Until != nil {
		listOpts.Until = *opts.Until
	}

	commits, resp, err := rest.Repositories.ListCommits(ctx, org, repo, listOpts)
	if err != nil {
		return nil, upstreamErr(resp, err)
	}

	refs := make([]CommitRef, 0, len(commits))
	for _, commit := range commits {
		refs = append(refs, CommitRef{
			SHA:        commit.GetSHA(),
			Message:    commit.GetCommit().GetMessage(),
			AuthorName: commit.GetCommit().GetAuthor().GetName(),
			AuthorDate: commit.GetCommit().GetAuthor().GetDate().Time,
		})
	}

	return refs, nil
}

// ListInstallations lists every installation of the app, authenticated with
// the app JWT.
func (c *Client) ListInstallations(ctx context.Context) ([]Installation, error) {
	rest, err := c.appREST()
	if err != nil {
		return nil, err
	}

	var all []Installation

	opts := &gh.ListOptions{PerPage: 100}
	for {
		installations, resp, err := rest.Apps.ListInstallations(ctx, opts)
		if err != nil {
			return nil, upstreamErr(resp, err)
		}

		for _, inst := range installations {
			all = append(all, Installation{
				ID:               inst.GetID(),
				AccountID:        inst.GetAccount().GetID(),
				AccountLogin:     inst.GetAccount().GetLogin(),
				AccountType:      inst.GetAccount().GetType(),
				AccountAvatarURL: inst.GetAccount().GetAvatarURL(),
				AccountURL:       inst.GetAccount().GetHTMLURL(),
				AccountReposURL:  inst.GetAccount().GetReposURL(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// ListInstallationRepos lists the repositories an installation grants access to.
func (c *Client) ListInstallationRepos(ctx context.Context, installationID int64) ([]Repo, error) {
	rest, err := c.installationREST(ctx, installationID)
	if err != nil {
		return nil, err
	}

	var all []Repo

	opts := &gh.ListOptions{PerPage: 100}
	for {
		repos, resp, err := rest.Apps.ListRepos(ctx, opts)
		if err != nil {
			return nil, upstreamErr(resp, err)
		}

		for _, r := range repos.Repositories {
			all = append(all, Repo{
				RepoID:        r.GetID(),
				Name:          r.GetName(),
				FullName:      r.GetFullName(),
				Private:       r.GetPrivate(),
				DefaultBranch: r.GetDefaultBranch(),
				OwnerLogin:    r.GetOwner().GetLogin(),
				CreatedAt:     r.GetCreatedAt().Time,
				UpdatedAt:     r.GetUpdatedAt().Time,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// IsOrgMember reports whether user belongs to org, checked with the
// installation's credentials.
func (c *Client) IsOrgMember(ctx context.Context, installationID int64, org, user string) (bool, error) {
	rest, err := c.installationREST(ctx, installationID)
	if err != nil {
		return false, err
	}

	member, resp, err := rest.Organizations.IsMember(ctx, org, user)
	if err != nil {
		return false, upstreamErr(resp, err)
	}

	return member, nil
}

// AuthenticatedUser resolves a caller-supplied OAuth token to its GitHub account.
func (c *Client) AuthenticatedUser(ctx context.Context, userToken string) (*Account, error) {
	user, resp, err := c.rest(userToken).Users.Get(ctx, "")
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: invalid session token", apperrors.ErrUnauthorized)
		}

		return nil, upstreamErr(resp, err)
	}

	return &Account{
		ID:        user.GetID(),
		Login:     user.GetLogin(),
		Name:      user.GetName(),
		Email:     user.GetEmail(),
		AvatarURL: user.GetAvatarURL(),
		HTMLURL:   user.GetHTMLURL(),
	}, nil
}

func toChangedFile(f *gh.CommitFile) ChangedFile {
	return ChangedFile{
		Filename:  f.GetFilename(),
		Status:    f.GetStatus(),
		Additions: f.GetAdditions(),
		Deletions: f.GetDeletions(),
		Changes:   f.GetChanges(),
		Patch:     f.GetPatch(),
	}
}
