package protection_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tidycloud/bbsweep/internal/protection"
)

const (
	protectedFileNameConstant            = "not-allowed-branches"
	missingFileNameConstant              = "no-such-file"
	mixedWhitespaceFileContentConstant   = "main\n  release \n\n"
	initialFileContentConstant           = "main\n"
	updatedFileContentConstant           = "main\ndevelop\n"
	fileNotFoundReportFragmentConstant   = "could not be found"
	mainBranchNameConstant               = "main"
	releaseBranchNameConstant            = "release"
	developBranchNameConstant            = "develop"
	unlistedBranchNameConstant           = "feature/unlisted"
	paddedReleaseBranchNameConstant      = "  release "
	loaderSubtestNameTemplateConstant    = "%d_%s"
	caseTrimsEntriesMessageConstant      = "trims entries and keeps blank lines"
	caseMissingFileMessageConstant       = "missing file yields empty list"
	caseFreshReReadMessageConstant       = "edits take effect on the next load"
	expectedMixedWhitespaceEntryCountInt = 3
)

func TestLoaderLoadScenarios(testInstance *testing.T) {
	testCases := []struct {
		name   string
		verify func(*testing.T)
	}{
		{
			name: caseTrimsEntriesMessageConstant,
			verify: func(testInstance *testing.T) {
				tempDirectory := testInstance.TempDir()
				protectedFilePath := filepath.Join(tempDirectory, protectedFileNameConstant)
				require.NoError(testInstance, os.WriteFile(protectedFilePath, []byte(mixedWhitespaceFileContentConstant), 0o600))

				loader := protection.NewLoader(zap.NewNop(), &bytes.Buffer{})
				protectedList := loader.Load(protectedFilePath)

				require.Equal(testInstance, []string{mainBranchNameConstant, releaseBranchNameConstant, ""}, protectedList.Names())
				require.Len(testInstance, protectedList.Names(), expectedMixedWhitespaceEntryCountInt)
				require.True(testInstance, protectedList.Contains(mainBranchNameConstant))
				require.True(testInstance, protectedList.Contains(paddedReleaseBranchNameConstant))
				require.False(testInstance, protectedList.Contains(unlistedBranchNameConstant))
			},
		},
		{
			name: caseMissingFileMessageConstant,
			verify: func(testInstance *testing.T) {
				tempDirectory := testInstance.TempDir()
				missingFilePath := filepath.Join(tempDirectory, missingFileNameConstant)

				reportBuffer := &bytes.Buffer{}
				loader := protection.NewLoader(zap.NewNop(), reportBuffer)
				protectedList := loader.Load(missingFilePath)

				require.Empty(testInstance, protectedList.Names())
				require.Contains(testInstance, reportBuffer.String(), fileNotFoundReportFragmentConstant)
				require.Contains(testInstance, reportBuffer.String(), missingFilePath)
			},
		},
		{
			name: caseFreshReReadMessageConstant,
			verify: func(testInstance *testing.T) {
				tempDirectory := testInstance.TempDir()
				protectedFilePath := filepath.Join(tempDirectory, protectedFileNameConstant)
				require.NoError(testInstance, os.WriteFile(protectedFilePath, []byte(initialFileContentConstant), 0o600))

				loader := protection.NewLoader(zap.NewNop(), &bytes.Buffer{})
				firstList := loader.Load(protectedFilePath)
				require.False(testInstance, firstList.Contains(developBranchNameConstant))

				require.NoError(testInstance, os.WriteFile(protectedFilePath, []byte(updatedFileContentConstant), 0o600))
				secondList := loader.Load(protectedFilePath)
				require.True(testInstance, secondList.Contains(developBranchNameConstant))
			},
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(loaderSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			testCase.verify(testInstance)
		})
	}
}

func TestNewListTrimsEntries(testInstance *testing.T) {
	protectedList := protection.NewList([]string{paddedReleaseBranchNameConstant, mainBranchNameConstant})

	require.Equal(testInstance, []string{releaseBranchNameConstant, mainBranchNameConstant}, protectedList.Names())
	require.True(testInstance, protectedList.Contains(releaseBranchNameConstant))
}
