package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

type rootFlags struct {
	configPath string
	logLevel   string
	ephemeral  bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "inserter",
		Short:         "Inserter: cached AI text generation for document editors",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "inserter.yaml", "path to config file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&flags.ephemeral, "ephemeral", false, "keep cache and settings in memory only")

	root.AddCommand(
		newServeCmd(flags),
		newPromptCmd(flags),
		newKeyCmd(flags),
		newCacheCmd(flags),
	)
	return root
}
