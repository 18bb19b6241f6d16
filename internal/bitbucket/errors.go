package bitbucket

import (
	"fmt"
	"strings"
)

const (
	operationErrorMessageTemplateConstant   = "%s operation failed"
	operationErrorWithCauseTemplateConstant = "%s operation failed: %s"
	responseDecodingErrorTemplateConstant   = "%s response decoding failed: %s"
	invalidInputErrorTemplateConstant       = "%s: %s"
	statusErrorTemplateConstant             = "%s returned status %d"
	statusErrorWithDetailTemplateConstant   = "%s returned status %d: %s"
	statusErrorMessageSeparatorConstant     = "; "
)

// OperationName describes a named Bitbucket REST workflow supported by the client.
type OperationName string

// Operation names reported in client errors.
const (
	GetProjectOperationNameConstant    OperationName = OperationName("GetProject")
	GetRepositoryOperationNameConstant OperationName = OperationName("GetRepository")
	ListBranchesOperationNameConstant  OperationName = OperationName("ListBranches")
	DeleteBranchOperationNameConstant  OperationName = OperationName("DeleteBranch")
)

// InvalidInputError surfaces validation issues for operation inputs.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// OperationError wraps execution issues for Bitbucket REST operations.
type OperationError struct {
	Operation OperationName
	Cause     error
}

// Error describes the operation failure.
func (operationError OperationError) Error() string {
	if operationError.Cause == nil {
		return fmt.Sprintf(operationErrorMessageTemplateConstant, operationError.Operation)
	}
	return fmt.Sprintf(operationErrorWithCauseTemplateConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// ResponseDecodingError indicates JSON decoding failures.
type ResponseDecodingError struct {
	Operation OperationName
	Cause     error
}

// Error describes the decoding failure.
func (decodingError ResponseDecodingError) Error() string {
	return fmt.Sprintf(responseDecodingErrorTemplateConstant, decodingError.Operation, decodingError.Cause)
}

// Unwrap exposes the underlying JSON error.
func (decodingError ResponseDecodingError) Unwrap() error {
	return decodingError.Cause
}

// APIStatusError reports a non-success HTTP status together with the server's error messages.
type APIStatusError struct {
	Operation  OperationName
	StatusCode int
	Messages   []string
}

// Error describes the failed HTTP exchange.
func (statusError APIStatusError) Error() string {
	if len(statusError.Messages) == 0 {
		return fmt.Sprintf(statusErrorTemplateConstant, statusError.Operation, statusError.StatusCode)
	}
	joinedMessages := strings.Join(statusError.Messages, statusErrorMessageSeparatorConstant)
	return fmt.Sprintf(statusErrorWithDetailTemplateConstant, statusError.Operation, statusError.StatusCode, joinedMessages)
}
