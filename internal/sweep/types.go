package sweep

import (
	"context"
	"time"

	"github.com/tidycloud/bbsweep/internal/bitbucket"
	"github.com/tidycloud/bbsweep/internal/protection"
)

// Target identifies the project and repository a sweep operation acts on.
type Target struct {
	ProjectKey     string
	RepositorySlug string
}

// DeletionAction enumerates the per-branch outcomes of a deletion batch.
type DeletionAction string

// Supported deletion actions.
const (
	DeletionActionDeleted          DeletionAction = "deleted"
	DeletionActionFailed           DeletionAction = "failed"
	DeletionActionSkippedProtected DeletionAction = "skipped_protected"
	DeletionActionSkippedDefault   DeletionAction = "skipped_default"
)

// DeletionOutcome records what happened to a single branch during a deletion batch.
type DeletionOutcome struct {
	BranchName string
	Action     DeletionAction
	Err        error
}

// BranchClient exposes the Bitbucket operations the sweep service consumes.
type BranchClient interface {
	GetProject(executionContext context.Context, projectKey string) (bitbucket.Project, error)
	GetRepository(executionContext context.Context, projectKey string, repositorySlug string) (bitbucket.Repository, error)
	ListBranches(executionContext context.Context, projectKey string, repositorySlug string, options bitbucket.BranchListOptions) ([]bitbucket.Branch, error)
	DeleteBranch(executionContext context.Context, projectKey string, repositorySlug string, branchName string) error
}

// ProtectedListLoader loads the protected branch names from a file path.
type ProtectedListLoader interface {
	Load(filePath string) protection.List
}

// Clock abstracts time-dependent functionality for deterministic testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the standard library.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}
