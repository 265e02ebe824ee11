package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docchain/docchain/internal/build"
)

// NewVersionCommand returns the command to get docchain version
func NewVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Return the docchain version",
		Long:  "Return the docchain version.",
		RunE:  version,
		Args:  cobra.NoArgs,
	}

	return cmd
}

// print out the built version
func version(cmd *cobra.Command, _ []string) error {
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "docchain Version %s Date %s commit id %s\n", build.Version, build.Date, build.Commit)
	return err
}
