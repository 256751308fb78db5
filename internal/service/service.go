// package service holds the orchestration logic between the GitHub API, the
// LLM analysis pipeline and the persistence layer.
package service

import (
	"context"
	"strings"

	"github.com/devtrackhq/devtrack-service/internal/domain"
	"github.com/devtrackhq/devtrack-service/internal/github"
)

// GitHubClient is the slice of the GitHub API the services depend on.
// Satisfied by *github.Client.
type GitHubClient interface {
	CompareCommits(ctx context.Context, org, repo, beforeSHA, afterSHA string, installationID int64) (*github.Comparison, error)
	GetCommit(ctx context.Context, org, repo, sha string, installationID int64) (*github.CommitDetail, error)
	ListCommits(ctx context.Context, org, repo string, installationID int64, opts github.ListCommitsOptions) ([]github.CommitRef, error)
	ListInstallations(ctx context.Context) ([]github.Installation, error)
	ListInstallationRepos(ctx context.Context, installationID int64) ([]github.Repo, error)
	IsOrgMember(ctx context.Context, installationID int64, org, user string) (bool, error)
	AuthenticatedUser(ctx context.Context, userToken string) (*github.Account, error)
}

// Analyzer is the slice of the LLM pipeline the services depend on.
// Satisfied by *analysis.Summarizer.
type Analyzer interface {
	SummarizeFiles(ctx context.Context, files []github.ChangedFile) []domain.FileSummary
	SynthesizeTasks(ctx context.Context, joinedSummaries string) domain.TaskBundle
}

func joinSummaries(summaries []domain.FileSummary) string {
	parts := make([]string, 0, len(summaries))
	for _, s := range summaries {
		parts = append(parts, s.Summary)
	}

	return strings.Join(parts, "\n")
}

func emptyTaskBundle() domain.TaskBundle {
	return domain.TaskBundle{
		TechnicalTasks:    []domain.Task{},
		NonTechnicalTasks: []domain.Task{},
	}
}
