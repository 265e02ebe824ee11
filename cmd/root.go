// Package cmd contains all the commands included in the binary file.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCommand enables all children commands to read flags from CLI flags, environment variables prefixed with DOCCHAIN, or config.yaml (in that order).
func NewRootCommand() *cobra.Command {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("DOCCHAIN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	configPaths := []string{"/etc/docchain", "$HOME/.docchain", "."}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	root := &cobra.Command{
		Use:   "docchain",
		Short: "Fetch documents by id through a chain of storage backends",
		Long: `Fetch documents by id through a chain of storage backends.

Backends are consulted in the configured order: a keyed document store, a flat tabular file,
a relational table or an in-memory store. The first backend holding a document answers, and
results can be memoized for the lifetime of the command.`,
		SilenceUsage: true,
	}

	bindChainFlags(root)

	return root
}
