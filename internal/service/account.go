package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/devtrackhq/devtrack-service/internal/domain"
	"github.com/devtrackhq/devtrack-service/internal/github"
	"github.com/devtrackhq/devtrack-service/internal/repository"
	"github.com/devtrackhq/devtrack-service/pkg/logger/sl"
	"github.com/devtrackhq/devtrack-service/pkg/mailer"
)

// New users get a trial subscription that the hourly sweep expires.
const subscriptionTTL = 3 * 24 * time.Hour

const waitlistMailSubject = "You're on the DevTrack waitlist"

const waitlistMailBody = `<html><body>
<p>Thanks for joining the DevTrack waitlist!</p>
<p>We'll let you know as soon as a spot opens up.</p>
</body></html>`

// UserInfo aggregates everything the dashboard needs about the caller.
type UserInfo struct {
	User          domain.User
	Organizations []OrgPreview
}

// AccountService covers the user-facing account operations: profile lookup,
// waitlist signup, the per-repo enrichment toggle and the subscription sweep.
type AccountService interface {
	EnsureUser(ctx context.Context, account *github.Account) (*domain.User, error)
	GetUserInfo(ctx context.Context, githubID int64) (*UserInfo, error)
	JoinWaitlist(ctx context.Context, email string) (*domain.WaitlistEntry, error)
	ToggleTasks(ctx context.Context, repoID int64, enabled bool) (*domain.Repository, error)
	ExpireSubscriptions(ctx context.Context) (int64, error)
}

type AccountServiceImpl struct {
	log      *slog.Logger
	mail     mailer.Mailer
	users    repository.UserRepository
	orgs     repository.OrganizationRepository
	repos    repository.RepoRepository
	waitlist repository.WaitlistRepository
}

func NewAccountService(
	log *slog.Logger,
	mail mailer.Mailer,
	users repository.UserRepository,
	orgs repository.OrganizationRepository,
	repos repository.RepoRepository,
	waitlist repository.WaitlistRepository,
) *AccountServiceImpl {
	return &AccountServiceImpl{
		log:      log,
		mail:     mail,
		users:    users,
		orgs:     orgs,
		repos:    repos,
		waitlist: waitlist,
	}
}

// EnsureUser upserts the GitHub account into the user table. First-time users
// get the trial subscription; an existing user's subscription state is left
// untouched by the upsert.
func (s *AccountServiceImpl) EnsureUser(ctx context.Context, account *github.Account) (*domain.User, error) {
	const op = "internal.service.account.EnsureUser"

	user, err := s.users.Upsert(ctx, newUserFromAccount(account))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to upsert user: %w", op, err)
	}

	return user, nil
}

func (s *AccountServiceImpl) GetUserInfo(ctx context.Context, githubID int64) (*UserInfo, error) {
	const op = "internal.service.account.GetUserInfo"

	user, err := s.users.GetByGithubID(ctx, githubID)
	if err != nil {
		return nil, err
	}

	orgs, err := s.orgs.ListForMember(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list organizations: %w", op, err)
	}

	previews := make([]OrgPreview, 0, len(orgs))
	for _, org := range orgs {
		repos, err := s.repos.ListByOrganization(ctx, org.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to list repositories: %w", op, err)
		}

		previews = append(previews, OrgPreview{Organization: org, Repositories: repos})
	}

	return &UserInfo{User: *user, Organizations: previews}, nil
}

// JoinWaitlist stores the signup and sends a confirmation email. A mail
// delivery failure is logged, the signup itself still succeeds.
func (s *AccountServiceImpl) JoinWaitlist(ctx context.Context, email string) (*domain.WaitlistEntry, error) {
	const op = "internal.service.account.JoinWaitlist"
	log := s.log.With(slog.String("op", op))

	entry, err := s.waitlist.Add(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := s.mail.Send(ctx, email, waitlistMailSubject, waitlistMailBody); err != nil {
		log.Error("failed to send waitlist confirmation", sl.Err(err))
	}

	return entry, nil
}

func (s *AccountServiceImpl) ToggleTasks(ctx context.Context, repoID int64, enabled bool) (*domain.Repository, error) {
	return s.repos.SetTasksEnabled(ctx, repoID, enabled)
}

// ExpireSubscriptions is invoked by the scheduler's hourly sweep.
func (s *AccountServiceImpl) ExpireSubscriptions(ctx context.Context) (int64, error) {
	return s.users.ExpireSubscriptions(ctx, time.Now().UTC())
}

func newUserFromAccount(account *github.Account) domain.User {
	expiresAt := time.Now().UTC().Add(subscriptionTTL)

	user := domain.User{
		GithubID:              account.ID,
		Login:                 account.Login,
		Name:                  account.Name,
		AvatarURL:             account.AvatarURL,
		ProfileURL:            account.HTMLURL,
		IsSubscribed:          true,
		SubscriptionExpiresAt: &expiresAt,
	}
	if account.Email != "" {
		email := account.Email
		user.Email = &email
	}

	return user
}
