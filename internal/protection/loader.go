package protection

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"go.uber.org/zap"
)

const (
	fileNotFoundMessageTemplateConstant = "Failure during execution: %s could not be found.\n"
	readFailureMessageTemplateConstant  = "Unexpected failure reading %s: %v\n"
	loadFailureLogMessageConstant       = "protected branch list unavailable"
	logFieldFilePathConstant            = "file_path"
)

// List holds the ordered protected branch names loaded from a file.
type List struct {
	names []string
}

// NewList builds a List from the provided names, trimming each entry.
func NewList(names []string) List {
	trimmedNames := make([]string, 0, len(names))
	for _, name := range names {
		trimmedNames = append(trimmedNames, strings.TrimSpace(name))
	}
	return List{names: trimmedNames}
}

// Names returns the protected branch names in file order.
func (list List) Names() []string {
	duplicatedNames := make([]string, len(list.names))
	copy(duplicatedNames, list.names)
	return duplicatedNames
}

// Contains reports whether the trimmed candidate matches a protected name.
func (list List) Contains(branchName string) bool {
	trimmedCandidate := strings.TrimSpace(branchName)
	for _, protectedName := range list.names {
		if protectedName == trimmedCandidate {
			return true
		}
	}
	return false
}

// Loader reads protected branch names from operator-maintained text files.
type Loader struct {
	logger       *zap.Logger
	outputWriter io.Writer
}

// NewLoader constructs a loader reporting read failures to the provided writer.
func NewLoader(logger *zap.Logger, outputWriter io.Writer) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger, outputWriter: outputWriter}
}

// Load reads the file at filePath and returns one trimmed entry per line.
//
// A missing or unreadable file is reported to the operator and yields an
// empty list rather than an error. Every call re-reads the file, so edits
// between calls take effect immediately.
func (loader *Loader) Load(filePath string) List {
	fileHandle, openError := os.Open(filePath)
	if openError != nil {
		loader.reportOpenFailure(filePath, openError)
		return List{}
	}
	defer fileHandle.Close()

	loadedNames := []string{}
	lineScanner := bufio.NewScanner(fileHandle)
	for lineScanner.Scan() {
		loadedNames = append(loadedNames, strings.TrimSpace(lineScanner.Text()))
	}

	if scanError := lineScanner.Err(); scanError != nil {
		loader.reportReadFailure(filePath, scanError)
		return List{}
	}

	return List{names: loadedNames}
}

func (loader *Loader) reportOpenFailure(filePath string, openError error) {
	loader.logger.Warn(loadFailureLogMessageConstant, zap.String(logFieldFilePathConstant, filePath), zap.Error(openError))
	if loader.outputWriter == nil {
		return
	}
	if errors.Is(openError, fs.ErrNotExist) {
		fmt.Fprintf(loader.outputWriter, fileNotFoundMessageTemplateConstant, filePath)
		return
	}
	fmt.Fprintf(loader.outputWriter, readFailureMessageTemplateConstant, filePath, openError)
}

func (loader *Loader) reportReadFailure(filePath string, readError error) {
	loader.logger.Warn(loadFailureLogMessageConstant, zap.String(logFieldFilePathConstant, filePath), zap.Error(readError))
	if loader.outputWriter != nil {
		fmt.Fprintf(loader.outputWriter, readFailureMessageTemplateConstant, filePath, readError)
	}
}
