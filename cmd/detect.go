package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/jmcampanini/grove-status/internal/config"
	"github.com/jmcampanini/grove-status/internal/forge"
	"github.com/jmcampanini/grove-status/internal/git"
)

var detectCmd = &cobra.Command{
	Use:   "detect [remote-url]",
	Short: "Print a repository entry detected from a git remote",
	Long: `Detect infers provider, base URL and repository path from a git remote URL and
prints a [[repositories]] entry ready to paste into grove-status.toml.

Without an argument, the current repository's default remote is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
}

// detectedRepository mirrors config.RepositoryConfig with empty fields omitted.
type detectedRepository struct {
	Path      string `toml:"path,omitempty"`
	Provider  string `toml:"provider"`
	BaseURL   string `toml:"base_url,omitempty"`
	Repo      string `toml:"repo"`
	CIBackend string `toml:"ci_backend,omitempty"`
}

func runDetect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	var remote, path string

	if len(args) == 1 {
		remote = args[0]
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		gitClient := git.New(cwd, config.DefaultConfig().Git.Timeout)

		root, err := gitClient.GetWorktreeRoot(ctx)
		if err != nil {
			return fmt.Errorf("git error: %w", err)
		}
		if root == "" {
			return errors.New("detect needs a remote URL argument outside a git repository")
		}
		if path, err = gitClient.GetMainWorktreePath(ctx); err != nil {
			return fmt.Errorf("failed to get main worktree path: %w", err)
		}
		remoteName, err := gitClient.GetDefaultRemote(ctx, "origin")
		if err != nil {
			return err
		}
		if remote, err = gitClient.GetRemoteURL(ctx, remoteName); err != nil {
			return err
		}
		if remote == "" {
			return fmt.Errorf("remote %q is not configured", remoteName)
		}
	}

	info, err := forge.DetectRemote(remote)
	if err != nil {
		return fmt.Errorf("failed to detect forge: %w", err)
	}
	return outputDetected(cmd, info, path)
}

func outputDetected(cmd *cobra.Command, info forge.RemoteInfo, path string) error {
	entry := detectedRepository{
		Path:     path,
		Provider: info.Kind.String(),
		BaseURL:  info.BaseURL,
		Repo:     info.Repo,
	}
	if info.Kind == forge.KindCodeberg {
		entry.CIBackend = string(forge.CIBackendForgejoActions)
	}

	var buf bytes.Buffer
	if info.Guessed {
		buf.WriteString("# host not recognized, assuming GitLab\n")
	}
	if err := toml.NewEncoder(&buf).Encode(map[string][]detectedRepository{"repositories": {entry}}); err != nil {
		return fmt.Errorf("failed to encode repository: %w", err)
	}

	_, err := fmt.Fprint(cmd.OutOrStdout(), buf.String())
	return err
}
