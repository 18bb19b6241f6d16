package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/tidycloud/bbsweep/internal/bitbucket"
	"github.com/tidycloud/bbsweep/internal/protection"
	"github.com/tidycloud/bbsweep/internal/sweep"
)

const (
	menuHeaderConstant                       = "Please apply the steps respectively."
	menuPromptConstant                       = "Enter your preference: "
	menuOptionsConstant                      = "\n0. Set filename\n1. Set project key\n2. Set repository slug\n3. Get project details\n4. Get repository details\n5. Get branches\n6. Save branches\n7. Show not allowed branches\n8. Delete branches\n9. Quit\n"
	filenamePromptConstant                   = "Please enter filename (i.e., not-allowed-branches): "
	projectKeyPromptConstant                 = "Please enter project key (i.e., ISPJ): "
	repositorySlugPromptConstant             = "Please enter repository slug (i.e., prov-onends-adapter): "
	filenameConfirmationTemplateConstant     = "File %s is set.\n"
	projectKeyConfirmationTemplateConstant   = "Project key %s is set.\n"
	repositoryConfirmationTemplateConstant   = "Repository slug %s is set.\n"
	unrecognizedInputMessageTemplateConstant = "Unrecognized option %q. Choose one of the listed numbers, or 9 to quit.\n"
	farewellMessageConstant                  = "Thanks for using me - bye!\n"
	handlerFailureMessageTemplateConstant    = "Unexpected failure: %v\n"
	operationsNotConfiguredMessageConstant   = "console controller requires sweep operations"
	sessionEndedLogMessageConstant           = "interactive session ended"
	menuChoiceLogMessageConstant             = "menu choice dispatched"
	logFieldMenuChoiceConstant               = "menu_choice"
	quitCommandDigitConstant                 = "9"
	quitCommandLetterConstant                = "q"
)

// MenuCommand enumerates the recognized menu choices.
type MenuCommand string

// Recognized menu commands.
const (
	MenuCommandSetFilename       MenuCommand = "0"
	MenuCommandSetProjectKey     MenuCommand = "1"
	MenuCommandSetRepositorySlug MenuCommand = "2"
	MenuCommandProjectDetails    MenuCommand = "3"
	MenuCommandRepositoryDetails MenuCommand = "4"
	MenuCommandListBranches      MenuCommand = "5"
	MenuCommandSaveBranches      MenuCommand = "6"
	MenuCommandShowProtected     MenuCommand = "7"
	MenuCommandDeleteBranches    MenuCommand = "8"
)

// SessionState carries the operator-entered identifiers threaded through every handler.
type SessionState struct {
	ProjectKey        string
	RepositorySlug    string
	ProtectedFilePath string
}

// SweepOperations exposes the sweep service surface the console dispatches to.
type SweepOperations interface {
	ProjectDetails(executionContext context.Context, projectKey string) (bitbucket.Project, error)
	RepositoryDetails(executionContext context.Context, target sweep.Target) (bitbucket.Repository, error)
	ListBranches(executionContext context.Context, target sweep.Target) ([]bitbucket.Branch, error)
	SaveSnapshot(executionContext context.Context, target sweep.Target) (string, error)
	ShowProtected(protectedFilePath string) protection.List
	DeleteBranches(executionContext context.Context, target sweep.Target, protectedFilePath string) ([]sweep.DeletionOutcome, error)
}

// ErrOperationsNotConfigured indicates the controller was constructed without a sweep service.
var ErrOperationsNotConfigured = errors.New(operationsNotConfiguredMessageConstant)

type menuHandler func(executionContext context.Context) error

// Controller drives the interactive menu loop over a reader and writer pair.
type Controller struct {
	operations   SweepOperations
	inputReader  *bufio.Reader
	outputWriter io.Writer
	logger       *zap.Logger
	state        SessionState
	dispatch     map[MenuCommand]menuHandler
	headerStyle  *color.Color
	warningStyle *color.Color
}

// NewController constructs a Controller with the provided dependencies and initial state.
func NewController(operations SweepOperations, input io.Reader, output io.Writer, logger *zap.Logger, initialState SessionState) (*Controller, error) {
	if operations == nil {
		return nil, ErrOperationsNotConfigured
	}
	if output == nil {
		output = io.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	controller := &Controller{
		operations:   operations,
		inputReader:  bufio.NewReader(input),
		outputWriter: output,
		logger:       logger,
		state:        initialState,
		headerStyle:  color.New(color.Bold),
		warningStyle: color.New(color.FgYellow),
	}

	controller.dispatch = map[MenuCommand]menuHandler{
		MenuCommandSetFilename:       controller.handleSetFilename,
		MenuCommandSetProjectKey:     controller.handleSetProjectKey,
		MenuCommandSetRepositorySlug: controller.handleSetRepositorySlug,
		MenuCommandProjectDetails:    controller.handleProjectDetails,
		MenuCommandRepositoryDetails: controller.handleRepositoryDetails,
		MenuCommandListBranches:      controller.handleListBranches,
		MenuCommandSaveBranches:      controller.handleSaveBranches,
		MenuCommandShowProtected:     controller.handleShowProtected,
		MenuCommandDeleteBranches:    controller.handleDeleteBranches,
	}

	return controller, nil
}

// State returns a copy of the current session state.
func (controller *Controller) State() SessionState {
	return controller.state
}

// Run executes the menu loop until the operator quits, input ends, or a handler fails.
//
// Unrecognized input is rejected with a warning and the loop continues; only
// the explicit quit command (or end of input) terminates the session cleanly.
// A handler error is reported and ends the session.
func (controller *Controller) Run(executionContext context.Context) error {
	controller.headerStyle.Fprintln(controller.outputWriter, menuHeaderConstant)

	for {
		fmt.Fprint(controller.outputWriter, menuOptionsConstant)

		operatorChoice, readError := controller.readLine(menuPromptConstant)
		if readError != nil {
			if readError == io.EOF {
				controller.logger.Debug(sessionEndedLogMessageConstant)
				return nil
			}
			return readError
		}

		if operatorChoice == quitCommandDigitConstant || strings.EqualFold(operatorChoice, quitCommandLetterConstant) {
			fmt.Fprint(controller.outputWriter, farewellMessageConstant)
			controller.logger.Debug(sessionEndedLogMessageConstant)
			return nil
		}

		handler, recognized := controller.dispatch[MenuCommand(operatorChoice)]
		if !recognized {
			controller.warningStyle.Fprintf(controller.outputWriter, unrecognizedInputMessageTemplateConstant, operatorChoice)
			continue
		}

		controller.logger.Debug(menuChoiceLogMessageConstant, zap.String(logFieldMenuChoiceConstant, operatorChoice))

		if handlerError := handler(executionContext); handlerError != nil {
			fmt.Fprintf(controller.outputWriter, handlerFailureMessageTemplateConstant, handlerError)
			return handlerError
		}
	}
}

func (controller *Controller) readLine(prompt string) (string, error) {
	if len(prompt) > 0 {
		fmt.Fprint(controller.outputWriter, prompt)
	}

	line, readError := controller.inputReader.ReadString('\n')
	trimmedLine := strings.TrimSpace(line)
	if readError != nil {
		if readError == io.EOF && len(trimmedLine) > 0 {
			return trimmedLine, nil
		}
		return trimmedLine, readError
	}

	return trimmedLine, nil
}

func (controller *Controller) target() sweep.Target {
	return sweep.Target{ProjectKey: controller.state.ProjectKey, RepositorySlug: controller.state.RepositorySlug}
}

func (controller *Controller) handleSetFilename(executionContext context.Context) error {
	enteredFilename, readError := controller.readLine(filenamePromptConstant)
	if readError != nil && readError != io.EOF {
		return readError
	}

	controller.state.ProtectedFilePath = enteredFilename
	fmt.Fprintf(controller.outputWriter, filenameConfirmationTemplateConstant, enteredFilename)
	return nil
}

func (controller *Controller) handleSetProjectKey(executionContext context.Context) error {
	enteredProjectKey, readError := controller.readLine(projectKeyPromptConstant)
	if readError != nil && readError != io.EOF {
		return readError
	}

	controller.state.ProjectKey = enteredProjectKey
	fmt.Fprintf(controller.outputWriter, projectKeyConfirmationTemplateConstant, enteredProjectKey)
	return nil
}

func (controller *Controller) handleSetRepositorySlug(executionContext context.Context) error {
	enteredRepositorySlug, readError := controller.readLine(repositorySlugPromptConstant)
	if readError != nil && readError != io.EOF {
		return readError
	}

	controller.state.RepositorySlug = enteredRepositorySlug
	fmt.Fprintf(controller.outputWriter, repositoryConfirmationTemplateConstant, enteredRepositorySlug)
	return nil
}

func (controller *Controller) handleProjectDetails(executionContext context.Context) error {
	_, projectError := controller.operations.ProjectDetails(executionContext, controller.state.ProjectKey)
	return projectError
}

func (controller *Controller) handleRepositoryDetails(executionContext context.Context) error {
	_, repositoryError := controller.operations.RepositoryDetails(executionContext, controller.target())
	return repositoryError
}

func (controller *Controller) handleListBranches(executionContext context.Context) error {
	_, listError := controller.operations.ListBranches(executionContext, controller.target())
	return listError
}

func (controller *Controller) handleSaveBranches(executionContext context.Context) error {
	_, snapshotError := controller.operations.SaveSnapshot(executionContext, controller.target())
	return snapshotError
}

func (controller *Controller) handleShowProtected(executionContext context.Context) error {
	controller.operations.ShowProtected(controller.state.ProtectedFilePath)
	return nil
}

func (controller *Controller) handleDeleteBranches(executionContext context.Context) error {
	_, deletionError := controller.operations.DeleteBranches(executionContext, controller.target(), controller.state.ProtectedFilePath)
	return deletionError
}
