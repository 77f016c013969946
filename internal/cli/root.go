// Package cli is the looperd command line.
package cli

import (
	"github.com/spf13/cobra"
)

const defaultConfig = "./looperd.yaml"

// NewRootCmd returns the looperd command. Without a subcommand it runs the
// daemon.
func NewRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "looperd",
		Short:         "Cooperative looper scheduler daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), cfgPath, cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultConfig, "path to config (yaml or json)")

	root.AddCommand(
		newRunCmd(&cfgPath),
		newCheckCmd(&cfgPath),
	)
	return root
}
