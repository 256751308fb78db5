package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/devtrackhq/devtrack-service/internal/analysis"
	"github.com/devtrackhq/devtrack-service/internal/domain"
	"github.com/devtrackhq/devtrack-service/internal/github"
	"github.com/devtrackhq/devtrack-service/internal/repository"
)

// IngestService drives the webhook path: one verified push payload in, the
// full User/Org/Repo/Commit/PushEvent graph persisted and enriched.
type IngestService interface {
	HandlePush(ctx context.Context, payload *github.PushPayload) error
}

type IngestServiceImpl struct {
	log      *slog.Logger
	client   GitHubClient
	analyzer Analyzer

	users      repository.UserRepository
	orgs       repository.OrganizationRepository
	repos      repository.RepoRepository
	commits    repository.CommitRepository
	pushEvents repository.PushEventRepository

	refreshEnrichment bool
}

func NewIngestService(
	log *slog.Logger,
	client GitHubClient,
	analyzer Analyzer,
	users repository.UserRepository,
	orgs repository.OrganizationRepository,
	repos repository.RepoRepository,
	commits repository.CommitRepository,
	pushEvents repository.PushEventRepository,
	refreshEnrichment bool,
) *IngestServiceImpl {
	return &IngestServiceImpl{
		log:               log,
		client:            client,
		analyzer:          analyzer,
		users:             users,
		orgs:              orgs,
		repos:             repos,
		commits:           commits,
		pushEvents:        pushEvents,
		refreshEnrichment: refreshEnrichment,
	}
}

// HandlePush runs the ingestion pipeline. The graph upserts happen before any
// commit write so foreign keys are always resolvable; writes already committed
// are not rolled back on a later failure, the idempotent upsert keys make a
// re-delivery of the same push converge.
func (s *IngestServiceImpl) HandlePush(ctx context.Context, payload *github.PushPayload) error {
	const op = "internal.service.ingest.HandlePush"
	log := s.log.With(
		slog.String("op", op),
		slog.String("repo", payload.Repository.FullName),
		slog.String("after_sha", payload.After),
	)

	user, err := s.users.Upsert(ctx, domain.User{
		GithubID:     payload.Sender.ID,
		Login:        payload.Sender.Login,
		AvatarURL:    payload.Sender.AvatarURL,
		ProfileURL:   payload.Sender.HTMLURL,
		IsSubscribed: true,
		SubscriptionExpiresAt: func() *time.Time {
			t := time.Now().UTC().Add(subscriptionTTL)
			return &t
		}(),
	})
	if err != nil {
		return fmt.Errorf("%s: failed to upsert user: %w", op, err)
	}

	org, err := s.orgs.Upsert(ctx, domain.Organization{
		OrgID:          payload.Organization.ID,
		InstallationID: payload.Installation.ID,
		Name:           payload.Organization.Login,
		AvatarURL:      payload.Organization.AvatarURL,
		URL:            payload.Organization.URL,
		ReposURL:       payload.Organization.ReposURL,
		Description:    payload.Organization.Description,
		OwnerID:        user.ID,
	})
	if err != nil {
		return fmt.Errorf("%s: failed to upsert organization: %w", op, err)
	}

	if err := s.orgs.AddMember(ctx, org.ID, user.ID); err != nil {
		return fmt.Errorf("%s: failed to add org member: %w", op, err)
	}

	repo, err := s.repos.Upsert(ctx, domain.Repository{
		RepoID:          payload.Repository.ID,
		Name:            payload.Repository.Name,
		FullName:        payload.Repository.FullName,
		Private:         payload.Repository.Private,
		OwnerID:         user.ID,
		DefaultBranch:   payload.Repository.DefaultBranch,
		OrganizationID:  org.ID,
		EnabledForTasks: true,
		RepoCreatedAt:   payload.Repository.CreatedAt.Time,
		RepoUpdatedAt:   payload.Repository.UpdatedAt.Time,
	})
	if err != nil {
		return fmt.Errorf("%s: failed to upsert repository: %w", op, err)
	}

	var (
		summaries []domain.FileSummary
		tasks     = emptyTaskBundle()
		files     []github.ChangedFile
	)

	if repo.EnabledForTasks && !payload.Deleted {
		files, err = s.fetchChangedFiles(ctx, payload)
		if err != nil {
			return fmt.Errorf("%s: failed to fetch diff: %w", op, err)
		}

		relevant := analysis.FilterFiles(files)
		log.Info("filtered changed files",
			slog.Int("total", len(files)),
			slog.Int("relevant", len(relevant)),
		)

		summaries = s.analyzer.SummarizeFiles(ctx, relevant)

		// One bundle per push, applied to every commit it carries.
		if len(summaries) > 0 {
			tasks = s.analyzer.SynthesizeTasks(ctx, joinSummaries(summaries))
		}
	} else {
		log.Info("skipping enrichment",
			slog.Bool("enabled_for_tasks", repo.EnabledForTasks),
			slog.Bool("deleted", payload.Deleted),
		)
	}

	fileStats := make(map[string]github.ChangedFile, len(files))
	for _, f := range files {
		fileStats[f.Filename] = f
	}

	commitIDs := make([]int64, 0, len(payload.Commits))
	for _, pc := range payload.Commits {
		commit := domain.Commit{
			SHA:            pc.ID,
			CommitTime:     pc.Timestamp.Time,
			RepositoryID:   repo.ID,
			OrganizationID: org.ID,
			Message:        pc.Message,
			Tasks:          tasks,
			Summaries:      []domain.FileSummary{},
		}
		if pc.Author.Name != "" {
			name := pc.Author.Name
			commit.AuthorName = &name
		}

		for _, summary := range summaries {
			if !pc.Touches(summary.Filename) {
				continue
			}

			commit.Summaries = append(commit.Summaries, summary)

			if f, ok := fileStats[summary.Filename]; ok {
				commit.Additions += f.Additions
				commit.Deletions += f.Deletions
				commit.Changes += f.Changes
			}
		}

		stored, err := s.commits.Upsert(ctx, commit, s.refreshEnrichment)
		if err != nil {
			return fmt.Errorf("%s: failed to upsert commit %s: %w", op, pc.ID, err)
		}

		commitIDs = append(commitIDs, stored.ID)
	}

	pushedAt := time.Now().UTC()
	if payload.PushedAt != nil {
		pushedAt = payload.PushedAt.Time
	}

	if _, err := s.pushEvents.Create(ctx, domain.PushEvent{
		RepositoryID:   repo.ID,
		OrganizationID: org.ID,
		PusherID:       user.ID,
		BeforeSHA:      payload.Before,
		AfterSHA:       payload.After,
		Created:        payload.Created,
		Deleted:        payload.Deleted,
		Forced:         payload.Forced,
		CompareURL:     payload.Compare,
		PushedAt:       pushedAt,
		CommitIDs:      commitIDs,
	}); err != nil {
		return fmt.Errorf("%s: failed to create push event: %w", op, err)
	}

	log.Info("push ingested", slog.Int("commits", len(commitIDs)))

	return nil
}

// fetchChangedFiles returns the push's file-level diff. A newly created branch
// has the all-zero before sha and nothing to compare against, so the single
// after-commit's file list is used instead.
func (s *IngestServiceImpl) fetchChangedFiles(ctx context.Context, payload *github.PushPayload) ([]github.ChangedFile, error) {
	org := payload.Organization.Login
	repo := payload.Repository.Name

	if payload.Before == github.ZeroSHA {
		detail, err := s.client.GetCommit(ctx, org, repo, payload.After, payload.Installation.ID)
		if err != nil {
			return nil, err
		}

		return detail.Files, nil
	}

	comparison, err := s.client.CompareCommits(ctx, org, repo, payload.Before, payload.After, payload.Installation.ID)
	if err != nil {
		return nil, err
	}

	return comparison.Files, nil
}
