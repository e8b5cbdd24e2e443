package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "n/a"

var verboseFlag bool

var rootCmd = &cobra.Command{
	Use:   "grove-status",
	Short: "Pull request and CI status for every worktree",
	Long: `grove-status shows the pull/merge request state and CI pipeline outcome of
every branch checked out in your worktrees, across GitHub, GitLab and Codeberg.`,
	SilenceUsage: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		if verboseFlag {
			log.SetLevel(log.DebugLevel)
		}
	},
}

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
