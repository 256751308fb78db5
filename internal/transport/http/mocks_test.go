package http

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/devtrackhq/devtrack-service/internal/domain"
	"github.com/devtrackhq/devtrack-service/internal/github"
	"github.com/devtrackhq/devtrack-service/internal/service"
)

type IngestServiceMock struct {
	mock.Mock
}

var _ service.IngestService = (*IngestServiceMock)(nil)

func (m *IngestServiceMock) HandlePush(ctx context.Context, payload *github.PushPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

type BackfillServiceMock struct {
	mock.Mock
}

var _ service.BackfillService = (*BackfillServiceMock)(nil)

func (m *BackfillServiceMock) GetCommits(ctx context.Context, orgName, repoName string, query service.CommitQuery) (*service.CommitPage, error) {
	args := m.Called(ctx, orgName, repoName, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CommitPage), args.Error(1)
}

func (m *BackfillServiceMock) SyncPreview(ctx context.Context, account *github.Account) ([]service.OrgPreview, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.OrgPreview), args.Error(1)
}

func (m *BackfillServiceMock) DatesToProcess(ctx context.Context, orgName string) ([]time.Time, error) {
	args := m.Called(ctx, orgName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]time.Time), args.Error(1)
}

type AccountServiceMock struct {
	mock.Mock
}

var _ service.AccountService = (*AccountServiceMock)(nil)

func (m *AccountServiceMock) EnsureUser(ctx context.Context, account *github.Account) (*domain.User, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *AccountServiceMock) GetUserInfo(ctx context.Context, githubID int64) (*service.UserInfo, error) {
	args := m.Called(ctx, githubID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UserInfo), args.Error(1)
}

func (m *AccountServiceMock) JoinWaitlist(ctx context.Context, email string) (*domain.WaitlistEntry, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WaitlistEntry), args.Error(1)
}

func (m *AccountServiceMock) ToggleTasks(ctx context.Context, repoID int64, enabled bool) (*domain.Repository, error) {
	args := m.Called(ctx, repoID, enabled)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Repository), args.Error(1)
}

func (m *AccountServiceMock) ExpireSubscriptions(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type GitHubClientMock struct {
	mock.Mock
}

var _ service.GitHubClient = (*GitHubClientMock)(nil)

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
