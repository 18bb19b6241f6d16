package bitbucket

// Project describes a Bitbucket Server project.
type Project struct {
	Key         string `json:"key"`
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
	Type        string `json:"type"`
}

// Repository describes a repository scoped within a Bitbucket Server project.
type Repository struct {
	Slug          string  `json:"slug"`
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	SCMIdentifier string  `json:"scmId"`
	State         string  `json:"state"`
	Public        bool    `json:"public"`
	Forkable      bool    `json:"forkable"`
	Project       Project `json:"project"`
}

// Branch describes a single branch as returned by the branch listing endpoint.
type Branch struct {
	ID              string `json:"id"`
	DisplayID       string `json:"displayId"`
	Type            string `json:"type"`
	LatestCommit    string `json:"latestCommit"`
	LatestChangeset string `json:"latestChangeset"`
	IsDefault       bool   `json:"isDefault"`
}

// BranchListOptions configures ListBranches queries.
type BranchListOptions struct {
	FilterText   string
	ResultLimit  int
	Details      bool
	BoostMatches bool
}

// branchPage mirrors the paged envelope Bitbucket Server wraps around branch listings.
type branchPage struct {
	Size          int      `json:"size"`
	Limit         int      `json:"limit"`
	IsLastPage    bool     `json:"isLastPage"`
	Start         int      `json:"start"`
	NextPageStart int      `json:"nextPageStart"`
	Values        []Branch `json:"values"`
}

// apiErrorEnvelope mirrors the error payload returned by Bitbucket Server.
type apiErrorEnvelope struct {
	Errors []apiErrorEntry `json:"errors"`
}

type apiErrorEntry struct {
	Message       string `json:"message"`
	ExceptionName string `json:"exceptionName"`
}

// branchDeletionRequest is the payload accepted by the branch-utils deletion endpoint.
type branchDeletionRequest struct {
	Name   string `json:"name"`
	DryRun bool   `json:"dryRun"`
}
