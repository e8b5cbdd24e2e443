package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcampanini/grove-status/internal/shell"
)

var initCmd = &cobra.Command{
	Use:   "init <shell>",
	Short: "Generate a shell prompt function",
	Long: `Init outputs a grove_status_prompt function that shows the current branch's
request and CI status in your prompt. It asks a running "grove-status serve"
and prints nothing when the server is not reachable.

Add to your shell config:
  Fish:  grove-status init fish | source
  Zsh:   eval "$(grove-status init zsh)"
  Bash:  eval "$(grove-status init bash)"`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: shell.Supported,
	RunE:      runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	output, err := shell.NewFunctionGenerator().Generate(args[0])
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), output)
	return err
}
