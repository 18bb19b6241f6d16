package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	versionCommandUseConstant              = "version"
	versionCommandShortDescriptionConstant = "Print the bbsweep version"
	versionOutputTemplateConstant          = "%s %s\n"
	developmentVersionValueConstant        = "development"
)

// Version is stamped at build time via -ldflags; the fallback marks local builds.
var Version = developmentVersionValueConstant

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   versionCommandUseConstant,
		Short: versionCommandShortDescriptionConstant,
		RunE: func(command *cobra.Command, arguments []string) error {
			_, writeError := fmt.Fprintf(command.OutOrStdout(), versionOutputTemplateConstant, applicationNameConstant, Version)
			return writeError
		},
	}
}
