package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/tidycloud/bbsweep/internal/bitbucket"
	"github.com/tidycloud/bbsweep/internal/protection"
)

const (
	snapshotFileNameTemplateConstant        = "branches-%s-%s.txt"
	snapshotDateLayoutConstant              = "2006-01-02"
	snapshotLineTemplateConstant            = "%s\n"
	projectDetailsTemplateConstant          = "Project %s (id %d): %s\n"
	projectDescriptionTemplateConstant      = "  %s\n"
	repositoryDetailsTemplateConstant       = "Repository %s (id %d) in project %s, state %s\n"
	branchLineTemplateConstant              = "%s\n"
	defaultBranchLineTemplateConstant       = "%s (default)\n"
	deletionFailureMessageTemplateConstant  = "Failure while deleting branch '%s': %v\n"
	deletionSuccessMessageTemplateConstant  = "Deleted branch '%s'.\n"
	skipProtectedMessageTemplateConstant    = "Skipping protected branch '%s'.\n"
	skipDefaultMessageTemplateConstant      = "Skipping default branch '%s'.\n"
	snapshotWrittenMessageTemplateConstant  = "Saved %d branches to %s.\n"
	clientNotConfiguredMessageConstant      = "sweep service requires a branch client"
	loaderNotConfiguredMessageConstant      = "sweep service requires a protected list loader"
	branchesListedLogMessageConstant        = "branches listed"
	branchDeletedLogMessageConstant         = "branch deleted"
	branchDeletionFailedLogMessageConstant  = "branch deletion failed"
	snapshotWrittenLogMessageConstant       = "branch snapshot written"
	logFieldProjectKeyConstant              = "project_key"
	logFieldRepositorySlugConstant          = "repository_slug"
	logFieldBranchNameConstant              = "branch_name"
	logFieldBranchCountConstant             = "branch_count"
	logFieldSnapshotFileConstant            = "snapshot_file"
	snapshotCreationErrorTemplateConstant   = "unable to create snapshot file: %w"
	snapshotWriteErrorTemplateConstant      = "unable to write snapshot file: %w"
	branchListDetailsRequestedValueConstant = true
	branchListBoostMatchesValueConstant     = false
)

// Errors reported when the service is constructed without required dependencies.
var (
	ErrBranchClientNotConfigured        = errors.New(clientNotConfiguredMessageConstant)
	ErrProtectedListLoaderNotConfigured = errors.New(loaderNotConfiguredMessageConstant)
)

// Service coordinates branch listing, snapshotting, and protected deletion sweeps.
type Service struct {
	branchClient        BranchClient
	protectedListLoader ProtectedListLoader
	logger              *zap.Logger
	outputWriter        io.Writer
	clock               Clock
}

// NewService constructs a Service using the provided dependencies.
func NewService(branchClient BranchClient, protectedListLoader ProtectedListLoader, logger *zap.Logger, outputWriter io.Writer, clock Clock) (*Service, error) {
	if branchClient == nil {
		return nil, ErrBranchClientNotConfigured
	}
	if protectedListLoader == nil {
		return nil, ErrProtectedListLoaderNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if outputWriter == nil {
		outputWriter = io.Discard
	}
	if clock == nil {
		clock = SystemClock{}
	}

	service := &Service{
		branchClient:        branchClient,
		protectedListLoader: protectedListLoader,
		logger:              logger,
		outputWriter:        outputWriter,
		clock:               clock,
	}

	return service, nil
}

// ProjectDetails fetches, prints, and returns project metadata.
func (service *Service) ProjectDetails(executionContext context.Context, projectKey string) (bitbucket.Project, error) {
	project, projectError := service.branchClient.GetProject(executionContext, projectKey)
	if projectError != nil {
		return bitbucket.Project{}, projectError
	}

	fmt.Fprintf(service.outputWriter, projectDetailsTemplateConstant, project.Key, project.ID, project.Name)
	if len(project.Description) > 0 {
		fmt.Fprintf(service.outputWriter, projectDescriptionTemplateConstant, project.Description)
	}

	return project, nil
}

// RepositoryDetails fetches, prints, and returns repository metadata.
func (service *Service) RepositoryDetails(executionContext context.Context, target Target) (bitbucket.Repository, error) {
	repository, repositoryError := service.branchClient.GetRepository(executionContext, target.ProjectKey, target.RepositorySlug)
	if repositoryError != nil {
		return bitbucket.Repository{}, repositoryError
	}

	fmt.Fprintf(service.outputWriter, repositoryDetailsTemplateConstant, repository.Slug, repository.ID, repository.Project.Key, repository.State)

	return repository, nil
}

// ListBranches retrieves every branch for the target repository and prints the display names.
func (service *Service) ListBranches(executionContext context.Context, target Target) ([]bitbucket.Branch, error) {
	branches, listError := service.fetchBranches(executionContext, target)
	if listError != nil {
		return nil, listError
	}

	for _, branch := range branches {
		if branch.IsDefault {
			fmt.Fprintf(service.outputWriter, defaultBranchLineTemplateConstant, branch.DisplayID)
			continue
		}
		fmt.Fprintf(service.outputWriter, branchLineTemplateConstant, branch.DisplayID)
	}

	return branches, nil
}

// SaveSnapshot writes the current branch display names to a dated snapshot file.
//
// The file name follows branches-<slug>-<YYYY-MM-DD>.txt in the working
// directory; a same-day re-run truncates the previous snapshot.
func (service *Service) SaveSnapshot(executionContext context.Context, target Target) (string, error) {
	branches, listError := service.fetchBranches(executionContext, target)
	if listError != nil {
		return "", listError
	}

	snapshotDate := service.clock.Now().Format(snapshotDateLayoutConstant)
	snapshotFileName := fmt.Sprintf(snapshotFileNameTemplateConstant, target.RepositorySlug, snapshotDate)

	snapshotFile, createError := os.Create(snapshotFileName)
	if createError != nil {
		return "", fmt.Errorf(snapshotCreationErrorTemplateConstant, createError)
	}
	defer snapshotFile.Close()

	for _, branch := range branches {
		if _, writeError := fmt.Fprintf(snapshotFile, snapshotLineTemplateConstant, branch.DisplayID); writeError != nil {
			return "", fmt.Errorf(snapshotWriteErrorTemplateConstant, writeError)
		}
	}

	service.logger.Info(
		snapshotWrittenLogMessageConstant,
		zap.String(logFieldSnapshotFileConstant, snapshotFileName),
		zap.Int(logFieldBranchCountConstant, len(branches)),
	)
	fmt.Fprintf(service.outputWriter, snapshotWrittenMessageTemplateConstant, len(branches), snapshotFileName)

	return snapshotFileName, nil
}

// ShowProtected loads and prints the protected branch names from the provided file.
func (service *Service) ShowProtected(protectedFilePath string) protection.List {
	protectedList := service.protectedListLoader.Load(protectedFilePath)
	for _, protectedName := range protectedList.Names() {
		fmt.Fprintf(service.outputWriter, branchLineTemplateConstant, protectedName)
	}
	return protectedList
}

// DeleteBranches removes every branch that is neither protected nor the default branch.
//
// The protected list is re-read from disk for each invocation. Branches are
// handled in listing order; a failing deletion is recorded and reported but
// never aborts the remainder of the batch.
func (service *Service) DeleteBranches(executionContext context.Context, target Target, protectedFilePath string) ([]DeletionOutcome, error) {
	protectedList := service.protectedListLoader.Load(protectedFilePath)

	branches, listError := service.fetchBranches(executionContext, target)
	if listError != nil {
		return nil, listError
	}

	outcomes := make([]DeletionOutcome, 0, len(branches))
	for _, branch := range branches {
		outcome := service.deleteBranch(executionContext, target, branch, protectedList)
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

func (service *Service) deleteBranch(executionContext context.Context, target Target, branch bitbucket.Branch, protectedList protection.List) DeletionOutcome {
	if protectedList.Contains(branch.DisplayID) {
		fmt.Fprintf(service.outputWriter, skipProtectedMessageTemplateConstant, branch.DisplayID)
		return DeletionOutcome{BranchName: branch.DisplayID, Action: DeletionActionSkippedProtected}
	}

	if branch.IsDefault {
		fmt.Fprintf(service.outputWriter, skipDefaultMessageTemplateConstant, branch.DisplayID)
		return DeletionOutcome{BranchName: branch.DisplayID, Action: DeletionActionSkippedDefault}
	}

	deletionError := service.branchClient.DeleteBranch(executionContext, target.ProjectKey, target.RepositorySlug, branch.DisplayID)
	if deletionError != nil {
		service.logger.Warn(
			branchDeletionFailedLogMessageConstant,
			zap.String(logFieldProjectKeyConstant, target.ProjectKey),
			zap.String(logFieldRepositorySlugConstant, target.RepositorySlug),
			zap.String(logFieldBranchNameConstant, branch.DisplayID),
			zap.Error(deletionError),
		)
		fmt.Fprintf(service.outputWriter, deletionFailureMessageTemplateConstant, branch.DisplayID, deletionError)
		return DeletionOutcome{BranchName: branch.DisplayID, Action: DeletionActionFailed, Err: deletionError}
	}

	service.logger.Info(
		branchDeletedLogMessageConstant,
		zap.String(logFieldProjectKeyConstant, target.ProjectKey),
		zap.String(logFieldRepositorySlugConstant, target.RepositorySlug),
		zap.String(logFieldBranchNameConstant, branch.DisplayID),
	)
	fmt.Fprintf(service.outputWriter, deletionSuccessMessageTemplateConstant, branch.DisplayID)
	return DeletionOutcome{BranchName: branch.DisplayID, Action: DeletionActionDeleted}
}

func (service *Service) fetchBranches(executionContext context.Context, target Target) ([]bitbucket.Branch, error) {
	listOptions := bitbucket.BranchListOptions{
		Details:      branchListDetailsRequestedValueConstant,
		BoostMatches: branchListBoostMatchesValueConstant,
	}

	branches, listError := service.branchClient.ListBranches(executionContext, target.ProjectKey, target.RepositorySlug, listOptions)
	if listError != nil {
		return nil, listError
	}

	service.logger.Debug(
		branchesListedLogMessageConstant,
		zap.String(logFieldProjectKeyConstant, target.ProjectKey),
		zap.String(logFieldRepositorySlugConstant, target.RepositorySlug),
		zap.Int(logFieldBranchCountConstant, len(branches)),
	)

	return branches, nil
}
