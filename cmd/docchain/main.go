package main

import (
	"os"

	"github.com/docchain/docchain/cmd"
	"github.com/docchain/docchain/cmd/get"
)

func main() {
	rootCmd := cmd.NewRootCommand()

	getCmd := get.NewGetCommand()
	rootCmd.AddCommand(getCmd)

	fileCmd := get.NewFileCommand()
	rootCmd.AddCommand(fileCmd)

	versionCmd := cmd.NewVersionCommand()
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
