package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devtrackhq/devtrack-service/internal/analysis"
	"github.com/devtrackhq/devtrack-service/internal/apperrors"
	"github.com/devtrackhq/devtrack-service/internal/domain"
	"github.com/devtrackhq/devtrack-service/internal/github"
	"github.com/devtrackhq/devtrack-service/internal/repository"
	"github.com/devtrackhq/devtrack-service/pkg/logger/sl"
)

const (
	// Number of commits enriched in parallel during a backfill.
	backfillConcurrency = 3

	// Number of installations synced in parallel during a preview.
	previewConcurrency = 5

	defaultPageSize = 30
)

// CommitQuery narrows a backfill request. A date range and pagination are
// mutually exclusive; dates win when both are present.
type CommitQuery struct {
	Start    *time.Time
	End      *time.Time
	Page     int
	PageSize int
}

// CommitRecord is a commit together with where it came from.
type CommitRecord struct {
	domain.Commit
	Source domain.CommitSource
}

// CommitPage is the aggregated backfill result.
type CommitPage struct {
	Commits  []CommitRecord
	Page     int
	PageSize int
}

// OrgPreview is one organization with its repositories, as surfaced by SyncPreview.
type OrgPreview struct {
	Organization domain.Organization
	Repositories []domain.Repository
}

// BackfillService drives the on-demand path: listing and enriching commits
// for a repository and syncing structural metadata for the caller's
// installations.
type BackfillService interface {
	GetCommits(ctx context.Context, orgName, repoName string, query CommitQuery) (*CommitPage, error)
	SyncPreview(ctx context.Context, account *github.Account) ([]OrgPreview, error)
	DatesToProcess(ctx context.Context, orgName string) ([]time.Time, error)
}

type BackfillServiceImpl struct {
	log      *slog.Logger
	client   GitHubClient
	analyzer Analyzer

	orgs    repository.OrganizationRepository
	repos   repository.RepoRepository
	commits repository.CommitRepository
	users   repository.UserRepository
}

func NewBackfillService(
	log *slog.Logger,
	client GitHubClient,
	analyzer Analyzer,
	orgs repository.OrganizationRepository,
	repos repository.RepoRepository,
	commits repository.CommitRepository,
	users repository.UserRepository,
) *BackfillServiceImpl {
	return &BackfillServiceImpl{
		log:      log,
		client:   client,
		analyzer: analyzer,
		orgs:     orgs,
		repos:    repos,
		commits:  commits,
		users:    users,
	}
}

// GetCommits returns commits for a repository. A date range that is already
// satisfied by stored commits never reaches GitHub; otherwise missing commits
// are fetched, enriched and persisted. A failure enriching one commit drops
// that commit from the result, it never aborts the batch.
func (s *BackfillServiceImpl) GetCommits(ctx context.Context, orgName, repoName string, query CommitQuery) (*CommitPage, error) {
	const op = "internal.service.backfill.GetCommits"
	log := s.log.With(slog.String("op", op), slog.String("org", orgName), slog.String("repo", repoName))

	org, err := s.orgs.GetByName(ctx, orgName)
	if err != nil {
		return nil, err
	}

	repo, err := s.repos.GetByOrgAndName(ctx, org.ID, repoName)
	if err != nil {
		return nil, err
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	dateScoped := query.Start != nil && query.End != nil

	if dateScoped {
		stored, err := s.commits.ListByRepository(ctx, repo.ID, repository.CommitFilter{
			Start: query.Start,
			End:   query.End,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: failed to list stored commits: %w", op, err)
		}

		if len(stored) > 0 {
			log.Info("serving commits from storage", slog.Int("count", len(stored)))
			return &CommitPage{
				Commits:  tagCommits(stored, domain.SourceDatabase),
				Page:     page,
				PageSize: pageSize,
			}, nil
		}
	}

	listOpts := github.ListCommitsOptions{
		Since:   query.Start,
		Until:   query.End,
		PerPage: pageSize,
	}
	if !dateScoped {
		listOpts.Page = page
	}

	refs, err := s.client.ListCommits(ctx, org.Name, repo.Name, org.InstallationID, listOpts)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list commits from github: %w", op, err)
	}

	var (
		mu      sync.Mutex
		records = make([]CommitRecord, 0, len(refs))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(backfillConcurrency)

	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			record, err := s.resolveCommit(gctx, org, repo, ref)
			if err != nil {
				log.Error("failed to process commit, skipping",
					slog.String("sha", ref.SHA), sl.Err(err))
				return nil
			}

			mu.Lock()
			records = append(records, *record)
			mu.Unlock()

			return nil
		})
	}

	// Per-commit failures are swallowed above, so Wait cannot fail.
	_ = g.Wait()

	// Fan-in scrambles completion order; restore the listing order.
	ordered := make([]CommitRecord, 0, len(records))
	for _, ref := range refs {
		for _, record := range records {
			if record.SHA == ref.SHA {
				ordered = append(ordered, record)
				break
			}
		}
	}

	log.Info("backfill complete",
		slog.Int("requested", len(refs)),
		slog.Int("returned", len(ordered)),
	)

	return &CommitPage{Commits: ordered, Page: page, PageSize: pageSize}, nil
}

// resolveCommit returns the stored commit if the sha is known, otherwise
// fetches the diff, enriches it and persists the result.
func (s *BackfillServiceImpl) resolveCommit(ctx context.Context, org *domain.Organization, repo *domain.Repository, ref github.CommitRef) (*CommitRecord, error) {
	stored, err := s.commits.GetBySHA(ctx, ref.SHA)
	if err == nil {
		return &CommitRecord{Commit: *stored, Source: domain.SourceDatabase}, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	detail, err := s.client.GetCommit(ctx, org.Name, repo.Name, ref.SHA, org.InstallationID)
	if err != nil {
		return nil, err
	}

	commit := domain.Commit{
		SHA:            detail.SHA,
		CommitTime:     detail.AuthorDate,
		RepositoryID:   repo.ID,
		OrganizationID: org.ID,
		Message:        detail.Message,
		Additions:      detail.Additions,
		Deletions:      detail.Deletions,
		Changes:        detail.Changes,
		Summaries:      []domain.FileSummary{},
		Tasks:          emptyTaskBundle(),
	}
	if detail.AuthorName != "" {
		name := detail.AuthorName
		commit.AuthorName = &name
	}

	if repo.EnabledForTasks {
		relevant := analysis.FilterFiles(detail.Files)
		commit.Summaries = s.analyzer.SummarizeFiles(ctx, relevant)

		// Unlike the webhook path, tasks are synthesized per commit here:
		// backfilled commits do not share a push to amortize the call over.
		if len(commit.Summaries) > 0 {
			commit.Tasks = s.analyzer.SynthesizeTasks(ctx, joinSummaries(commit.Summaries))
		}
	}

	persisted, err := s.commits.Upsert(ctx, commit, false)
	if err != nil {
		return nil, err
	}

	return &CommitRecord{Commit: *persisted, Source: domain.SourceGithub}, nil
}

// SyncPreview lists every installation of the app, keeps the ones the caller
// belongs to, and upserts their structural metadata. No commit content is
// touched.
func (s *BackfillServiceImpl) SyncPreview(ctx context.Context, account *github.Account) ([]OrgPreview, error) {
	const op = "internal.service.backfill.SyncPreview"
	log := s.log.With(slog.String("op", op), slog.String("login", account.Login))

	user, err := s.users.Upsert(ctx, newUserFromAccount(account))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to upsert user: %w", op, err)
	}

	installations, err := s.client.ListInstallations(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list installations: %w", op, err)
	}

	var (
		mu       sync.Mutex
		previews []OrgPreview
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(previewConcurrency)

	for _, installation := range installations {
		installation := installation
		g.Go(func() error {
			preview, err := s.syncInstallation(gctx, user, installation)
			if err != nil {
				log.Error("failed to sync installation, skipping",
					slog.Int64("installation_id", installation.ID), sl.Err(err))
				return nil
			}
			if preview == nil {
				return nil
			}

			mu.Lock()
			previews = append(previews, *preview)
			mu.Unlock()

			return nil
		})
	}

	_ = g.Wait()

	log.Info("preview synced", slog.Int("organizations", len(previews)))

	return previews, nil
}

// syncInstallation upserts one installation's org and repos if the user may
// see it. Returns nil without error when the user is not a member.
func (s *BackfillServiceImpl) syncInstallation(ctx context.Context, user *domain.User, installation github.Installation) (*OrgPreview, error) {
	if installation.AccountType == "Organization" {
		member, err := s.client.IsOrgMember(ctx, installation.ID, installation.AccountLogin, user.Login)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, nil
		}
	} else if installation.AccountLogin != user.Login {
		return nil, nil
	}

	org, err := s.orgs.Upsert(ctx, domain.Organization{
		OrgID:          installation.AccountID,
		InstallationID: installation.ID,
		Name:           installation.AccountLogin,
		AvatarURL:      installation.AccountAvatarURL,
		URL:            installation.AccountURL,
		ReposURL:       installation.AccountReposURL,
		OwnerID:        user.ID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.orgs.AddMember(ctx, org.ID, user.ID); err != nil {
		return nil, err
	}

	ghRepos, err := s.client.ListInstallationRepos(ctx, installation.ID)
	if err != nil {
		return nil, err
	}

	repos := make([]domain.Repository, 0, len(ghRepos))
	for _, r := range ghRepos {
		repo, err := s.repos.Upsert(ctx, domain.Repository{
			RepoID:          r.RepoID,
			Name:            r.Name,
			FullName:        r.FullName,
			Private:         r.Private,
			OwnerID:         user.ID,
			DefaultBranch:   r.DefaultBranch,
			OrganizationID:  org.ID,
			EnabledForTasks: true,
			RepoCreatedAt:   r.CreatedAt,
			RepoUpdatedAt:   r.UpdatedAt,
		})
		if err != nil {
			return nil, err
		}

		repos = append(repos, *repo)
	}

	return &OrgPreview{Organization: *org, Repositories: repos}, nil
}

// DatesToProcess diffs the commit days GitHub knows about against the days
// already stored, returning the days that still need a backfill. A repository
// whose listing fails is skipped so one broken repo cannot hide the rest.
func (s *BackfillServiceImpl) DatesToProcess(ctx context.Context, orgName string) ([]time.Time, error) {
	const op = "internal.service.backfill.DatesToProcess"
	log := s.log.With(slog.String("op", op), slog.String("org", orgName))

	org, err := s.orgs.GetByName(ctx, orgName)
	if err != nil {
		return nil, err
	}

	repos, err := s.repos.ListByOrganization(ctx, org.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list repositories: %w", op, err)
	}

	repoIDs := make([]int64, 0, len(repos))
	for _, repo := range repos {
		repoIDs = append(repoIDs, repo.ID)
	}

	stored, err := s.commits.ListCommitDates(ctx, repoIDs)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list commit dates: %w", op, err)
	}

	storedDays := make(map[time.Time]struct{}, len(stored))
	for _, date := range stored {
		storedDays[toDay(date)] = struct{}{}
	}

	missing := make(map[time.Time]struct{})
	for _, repo := range repos {
		refs, err := s.client.ListCommits(ctx, org.Name, repo.Name, org.InstallationID, github.ListCommitsOptions{})
		if err != nil {
			log.Error("failed to list commits, skipping repository",
				slog.String("repo", repo.Name), sl.Err(err))
			continue
		}

		for _, ref := range refs {
			day := toDay(ref.AuthorDate)
			if _, ok := storedDays[day]; !ok {
				missing[day] = struct{}{}
			}
		}
	}

	dates := make([]time.Time, 0, len(missing))
	for day := range missing {
		dates = append(dates, day)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })

	return dates, nil
}

// toDay truncates a timestamp to its UTC calendar day.
func toDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func tagCommits(commits []domain.Commit, source domain.CommitSource) []CommitRecord {
	records := make([]CommitRecord, 0, len(commits))
	for _, commit := range commits {
		records = append(records, CommitRecord{Commit: commit, Source: source})
	}

	return records
}
