package http

type toggleTasksRequest struct {
	RepoID  int64 `json:"repoId" validate:"required"`
	Enabled bool  `json:"enabled"`
}

type waitlistRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

type commitsParams struct {
	OrgName   string `validate:"required,gh_name,max=100"`
	RepoName  string `validate:"required,gh_name,max=100"`
	StartDate string `validate:"omitempty,mmddyyyy"`
	EndDate   string `validate:"omitempty,mmddyyyy"`
}

type datesParams struct {
	OrgName string `validate:"required,gh_name,max=100"`
}
