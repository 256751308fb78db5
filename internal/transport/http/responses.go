package http

import (
	"time"

	"github.com/devtrackhq/devtrack-service/internal/domain"
	"github.com/devtrackhq/devtrack-service/internal/service"
)

type userResponse struct {
	GithubID              int64      `json:"githubId"`
	Login                 string     `json:"login"`
	Name                  string     `json:"name"`
	Email                 *string    `json:"email"`
	AvatarURL             string     `json:"avatarUrl"`
	ProfileURL            string     `json:"profileUrl"`
	IsSubscribed          bool       `json:"isSubscribed"`
	SubscriptionExpiresAt *time.Time `json:"subscriptionExpiresAt"`
}

type orgResponse struct {
	OrgID          int64   `json:"orgId"`
	InstallationID int64   `json:"installationId"`
	Name           string  `json:"name"`
	AvatarURL      string  `json:"avatarUrl"`
	URL            string  `json:"url"`
	Description    *string `json:"description"`
}

type repoResponse struct {
	RepoID          int64  `json:"repoId"`
	Name            string `json:"name"`
	FullName        string `json:"fullName"`
	Private         bool   `json:"private"`
	DefaultBranch   string `json:"defaultBranch"`
	EnabledForTasks bool   `json:"enabledForTasks"`
}

type orgPreviewResponse struct {
	Organization orgResponse    `json:"organization"`
	Repositories []repoResponse `json:"repositories"`
}

type commitResponse struct {
	SHA        string               `json:"sha"`
	CommitTime time.Time            `json:"commitTime"`
	Message    string               `json:"message"`
	Additions  int                  `json:"additions"`
	Deletions  int                  `json:"deletions"`
	Changes    int                  `json:"changes"`
	AuthorName *string              `json:"authorName"`
	Summaries  []domain.FileSummary `json:"summaries"`
	Tasks      domain.TaskBundle    `json:"tasks"`
	Source     domain.CommitSource  `json:"source"`
}

type commitPageResponse struct {
	Commits  []commitResponse `json:"commits"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
	Count    int              `json:"count"`
}

type userInfoResponse struct {
	User          userResponse         `json:"user"`
	Organizations []orgPreviewResponse `json:"organizations"`
}

type waitlistResponse struct {
	Email    string    `json:"email"`
	JoinedAt time.Time `json:"joinedAt"`
}

func toUserResponse(user domain.User) userResponse {
	return userResponse{
		GithubID:              user.GithubID,
		Login:                 user.Login,
		Name:                  user.Name,
		Email:                 user.Email,
		AvatarURL:             user.AvatarURL,
		ProfileURL:            user.ProfileURL,
		IsSubscribed:          user.IsSubscribed,
		SubscriptionExpiresAt: user.SubscriptionExpiresAt,
	}
}

func toOrgResponse(org domain.Organization) orgResponse {
	return orgResponse{
		OrgID:          org.OrgID,
		InstallationID: org.InstallationID,
		Name:           org.Name,
		AvatarURL:      org.AvatarURL,
		URL:            org.URL,
		Description:    org.Description,
	}
}

func toRepoResponse(repo domain.Repository) repoResponse {
	return repoResponse{
		RepoID:          repo.RepoID,
		Name:            repo.Name,
		FullName:        repo.FullName,
		Private:         repo.Private,
		DefaultBranch:   repo.DefaultBranch,
		EnabledForTasks: repo.EnabledForTasks,
	}
}

func toOrgPreviewsResponse(previews []service.OrgPreview) []orgPreviewResponse {
	out := make([]orgPreviewResponse, 0, len(previews))
	for _, preview := range previews {
		repos := make([]repoResponse, 0, len(preview.Repositories))
		for _, repo := range preview.Repositories {
			repos = append(repos, toRepoResponse(repo))
		}

		out = append(out, orgPreviewResponse{
			Organization: toOrgResponse(preview.Organization),
			Repositories: repos,
		})
	}

	return out
}

func toCommitPageResponse(page *service.CommitPage) commitPageResponse {
	commits := make([]commitResponse, 0, len(page.Commits))
	for _, record := range page.Commits {
		commits = append(commits, commitResponse{
			SHA:        record.SHA,
			CommitTime: record.CommitTime,
			Message:    record.Message,
			Additions:  record.Additions,
			Deletions:  record.Deletions,
			Changes:    record.Changes,
			AuthorName: record.AuthorName,
			Summaries:  record.Summaries,
			Tasks:      record.Tasks,
			Source:     record.Source,
		})
	}

	return commitPageResponse{
		Commits:  commits,
		Page:     page.Page,
		PageSize: page.PageSize,
		Count:    len(commits),
	}
}

func toUserInfoResponse(info *service.UserInfo) userInfoResponse {
	return userInfoResponse{
		User:          toUserResponse(info.User),
		Organizations: toOrgPreviewsResponse(info.Organizations),
	}
}

func toWaitlistResponse(entry *domain.WaitlistEntry) waitlistResponse {
	return waitlistResponse{
		Email:    entry.Email,
		JoinedAt: entry.JoinedAt,
	}
}
