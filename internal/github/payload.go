package github

import (
	"encoding/json"
	"fmt"

	gh "github.com/google/go-github/v62/github"

	"github.com/devtrackhq/devtrack-service/internal/apperrors"
)

// PushPayload is the subset of GitHub's push webhook body the service acts
// on. Timestamps use gh.Timestamp because push payloads mix unix integers and
// RFC3339 strings for the same conceptual field.
type PushPayload struct {
	Before  string `json:"before"`
	After   string `json:"after"`
	Created bool   `json:"created"`
	Deleted bool   `json:"deleted"`
	Forced  bool   `json:"forced"`
	Compare string `json:"compare"`

	Repository   PayloadRepository   `json:"repository"`
	Organization PayloadOrganization `json:"organization"`
	Pusher       PayloadPusher       `json:"pusher"`
	Sender       PayloadSender       `json:"sender"`
	Commits      []PayloadCommit     `json:"commits"`
	Installation PayloadInstallation `json:"installation"`

	PushedAt *gh.Timestamp `json:"pushed_at,omitempty"`
}

type PayloadRepository struct {
	ID            int64        `json:"id"`
	Name          string       `json:"name"`
	FullName      string       `json:"full_name"`
	Private       bool         `json:"private"`
	DefaultBranch string       `json:"default_branch"`
	CreatedAt     gh.Timestamp `json:"created_at"`
	UpdatedAt     gh.Timestamp `json:"updated_at"`
}

type PayloadOrganization struct {
	ID          int64   `json:"id"`
	Login       string  `json:"login"`
	AvatarURL   string  `json:"avatar_url"`
	URL         string  `json:"url"`
	ReposURL    string  `json:"repos_url"`
	Description *string `json:"description"`
}

type PayloadPusher struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type PayloadSender struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
}

type PayloadCommit struct {
	ID        string       `json:"id"`
	Message   string       `json:"message"`
	Timestamp gh.Timestamp `json:"timestamp"`
	Added     []string     `json:"added"`
	Removed   []string     `json:"removed"`
	Modified  []string     `json:"modified"`
	Author    struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"author"`
}

type PayloadInstallation struct {
	ID int64 `json:"id"`
}

// ParsePushPayload decodes a push webhook body.
func ParsePushPayload(body []byte) (*PushPayload, error) {
	var payload PushPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidRequest, err)
	}

	return &payload, nil
}

// Touches reports whether the commit added, modified or removed the file.
func (c PayloadCommit) Touches(filename string) bool {
	for _, list := range [][]string{c.Added, c.Modified, c.Removed} {
		for _, f := range list {
			if f == filename {
				return true
			}
		}
	}

	return false
}
