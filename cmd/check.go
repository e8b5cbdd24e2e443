package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jmcampanini/grove-status/internal/forge"
	"github.com/jmcampanini/grove-status/internal/workspace"
)

const checkTimeout = 15 * time.Second

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Test the forge connection of every repository",
	Long: `Check makes one authenticated request per repository (and per CI backend on
Codeberg) and reports whether it succeeded. Repositories without forge
configuration are listed with the reason and do not count as failures.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

type checkResult struct {
	Repository string
	Provider   string
	Configured bool
	Reason     string
	Err        error
}

func runCheck(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	env, err := loadEnvironment(ctx)
	if err != nil {
		return err
	}
	ws, err := env.openWorkspace(ctx, true)
	if err != nil {
		return err
	}

	results := checkRepositories(ctx, ws.Repositories(), env.cfg.Forge.Concurrency)
	if err := outputCheckTable(cmd, results); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d repositories failed the connection check", failed, len(results))
	}
	return nil
}

func checkRepositories(ctx context.Context, repos []workspace.Repository, concurrency int) []checkResult {
	results := make([]checkResult, len(repos))

	var g errgroup.Group
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, repo := range repos {
		g.Go(func() error {
			r := checkResult{
				Repository: repo.Name(),
				Provider:   repo.Client.Kind().DisplayName(),
				Configured: repo.Client.IsConfigured(),
				Reason:     repo.Client.Reason(),
			}
			if r.Configured {
				cctx, cancel := context.WithTimeout(ctx, checkTimeout)
				defer cancel()
				r.Err = forge.TestForgeConnection(cctx, repo.Client)
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func checkRows(results []checkResult) [][]string {
	rows := make([][]string, len(results))
	for i, r := range results {
		outcome := "✓ ok"
		switch {
		case !r.Configured:
			outcome = "skipped: " + r.Reason
		case r.Err != nil:
			outcome = "✗ " + r.Err.Error()
		}
		rows[i] = []string{r.Repository, r.Provider, truncateString(outcome, 80)}
	}
	return rows
}

func outputCheckTable(cmd *cobra.Command, results []checkResult) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "No repositories configured.")
		return err
	}

	purple := lipgloss.Color("99")
	headerStyle := lipgloss.NewStyle().Foreground(purple).Bold(true).Align(lipgloss.Center)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(purple)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("Repo", "Forge", "Result").
		Rows(checkRows(results)...)

	_, err := fmt.Fprintln(cmd.OutOrStdout(), t)
	return err
}
