package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/devtrackhq/devtrack-service/internal/domain"
	"github.com/devtrackhq/devtrack-service/internal/github"
	"github.com/devtrackhq/devtrack-service/internal/repository"
	"github.com/devtrackhq/devtrack-service/pkg/mailer"
)

type UserRepositoryMock struct {
	mock.Mock
}

var _ repository.UserRepository = (*UserRepositoryMock)(nil)

func (m *UserRepositoryMock) Upsert(ctx context.Context, user domain.User) (*domain.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *UserRepositoryMock) GetByGithubID(ctx context.Context, githubID int64) (*domain.User, error) {
	args := m.Called(ctx, githubID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *UserRepositoryMock) ExpireSubscriptions(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type OrganizationRepositoryMock struct {
	mock.Mock
}

var _ repository.OrganizationRepository = (*OrganizationRepositoryMock)(nil)

func (m *OrganizationRepositoryMock) Upsert(ctx context.Context, org domain.Organization) (*domain.Organization, error) {
	args := m.Called(ctx, org)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Organization), args.Error(1)
}

func (m *OrganizationRepositoryMock) GetByName(ctx context.Context, name string) (*domain.Organization, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Organization), args.Error(1)
}

func (m *OrganizationRepositoryMock) AddMember(ctx context.Context, orgID, userID int64) error {
	args := m.Called(ctx, orgID, userID)
	return args.Error(0)
}

func (m *OrganizationRepositoryMock) ListForMember(ctx context.Context, userID int64) ([]domain.Organization, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.Organization), args.Error(1)
}

type RepoRepositoryMock struct {
	mock.Mock
}

var _ repository.RepoRepository = (*RepoRepositoryMock)(nil)

func (m *RepoRepositoryMock) Upsert(ctx context.Context, repo domain.Repository) (*domain.Repository, error) {
	args := m.Called(ctx, repo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Repository), args.Error(1)
}

func (m *RepoRepositoryMock) GetByOrgAndName(ctx context.Context, orgID int64, name string) (*domain.Repository, error) {
	args := m.Called(ctx, orgID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Repository), args.Error(1)
}

func (m *RepoRepositoryMock) ListByOrganization(ctx context.Context, orgID int64) ([]domain.Repository, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.Repository), args.Error(1)
}

func (m *RepoRepositoryMock) SetTasksEnabled(ctx context.Context, providerRepoID int64, enabled bool) (*domain.Repository, error) {
	args := m.Called(ctx, providerRepoID, enabled)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Repository), args.Error(1)
}

type CommitRepositoryMock struct {
	mock.Mock
}

var _ repository.CommitRepository = (*CommitRepositoryMock)(nil)

func (m *CommitRepositoryMock) Upsert(ctx context.Context, commit domain.Commit, refreshEnrichment bool) (*domain.Commit, error) {
	args := m.Called(ctx, commit, refreshEnrichment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Commit), args.Error(1)
}

func (m *CommitRepositoryMock) GetBySHA(ctx context.Context, sha string) (*domain.Commit, error) {
	args := m.Called(ctx, sha)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Commit), args.Error(1)
}

func (m *CommitRepositoryMock) ListByRepository(ctx context.Context, repositoryID int64, filter repository.CommitFilter) ([]domain.Commit, error) {
	args := m.Called(ctx, repositoryID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.Commit), args.Error(1)
}

func (m *CommitRepositoryMock) ListCommitDates(ctx context.Context, repositoryIDs []int64) ([]time.Time, error) {
	args := m.Called(ctx, repositoryIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]time.Time), args.Error(1)
}

type PushEventRepositoryMock struct {
	mock.Mock
}

var _ repository.PushEventRepository = (*PushEventRepositoryMock)(nil)

func (m *PushEventRepositoryMock) Create(ctx context.Context, event domain.PushEvent) (*domain.PushEvent, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.PushEvent), args.Error(1)
}

type WaitlistRepositoryMock struct {
	mock.Mock
}

var _ repository.WaitlistRepository = (*WaitlistRepositoryMock)(nil)

func (m *WaitlistRepositoryMock) Add(ctx context.Context, email string) (*domain.WaitlistEntry, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.WaitlistEntry), args.Error(1)
}

type GitHubClientMock struct {
	mock.Mock
}

var _ GitHubClient = (*GitHubClientMock)(nil)

func (m *GitHubClientMock) CompareCommits(ctx context.Context, org, repo, beforeSHA, afterSHA string, installationID int64) (*github.Comparison, error) {
	args := m.Called(ctx, org, repo, beforeSHA, afterSHA, installationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*github.Comparison), args.Error(1)
}

func (m *GitHubClientMock) GetCommit(ctx context.Context, org, repo, sha string, installationID int64) (*github.CommitDetail, error) {
	args := m.Called(ctx, org, repo, sha, installationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*github.CommitDetail), args.Error(1)
}

func (m *GitHubClientMock) ListCommits(ctx context.Context, org, repo string, installationID int64, opts github.ListCommitsOptions) ([]github.CommitRef, error) {
	args := m.Called(ctx, org, repo, installationID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]github.CommitRef), args.Error(1)
}

func (m *GitHubClientMock) ListInstallations(ctx context.Context) ([]github.Installation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]github.Installation), args.Error(1)
}

func (m *GitHubClientMock) ListInstallationRepos(ctx context.Context, installationID int64) ([]github.Repo, error) {
	args := m.Called(ctx, installationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]github.Repo), args.Error(1)
}

func (m *GitHubClientMock) IsOrgMember(ctx context.Context, installationID int64, org, user string) (bool, error) {
	args := m.Called(ctx, installationID, org, user)
	return args.Bool(0), args.Error(1)
}

func (m *GitHubClientMock) AuthenticatedUser(ctx context.Context, userToken string) (*github.Account, error) {
	args := m.Called(ctx, userToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*github.Account), args.Error(1)
}

type AnalyzerMock struct {
	mock.Mock
}

var _ Analyzer = (*AnalyzerMock)(nil)

func (m *AnalyzerMock) SummarizeFiles(ctx context.Context, files []github.ChangedFile) []domain.FileSummary {
	args := m.Called(ctx, files)
	if args.Get(0) == nil {
		return nil
	}

	return args.Get(0).([]domain.FileSummary)
}

func (m *AnalyzerMock) SynthesizeTasks(ctx context.Context, joinedSummaries string) domain.TaskBundle {
	args := m.Called(ctx, joinedSummaries)
	return args.Get(0).(domain.TaskBundle)
}

type MailerMock struct {
	mock.Mock
}

var _ mailer.Mailer = (*MailerMock)(nil)

func (m *MailerMock) Send(ctx context.Context, to, subject, htmlBody string) error {
	args := m.Called(ctx, to, subject, htmlBody)
	return args.Error(0)
}
