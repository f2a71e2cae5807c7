package commands

import (
	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X".
var version = "0.1.0"

var configPath string

// Execute runs the wxgate command line.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "wxgate",
		Short:         "Encrypted callback gateway for enterprise messaging",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file or directory")

	root.AddCommand(serveCmd(), configCmd(), tokenCmd(), versionCmd())
	return root
}
