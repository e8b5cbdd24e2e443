package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmcampanini/grove-status/internal/aggregator"
	"github.com/jmcampanini/grove-status/internal/status"
	"github.com/jmcampanini/grove-status/internal/workspace"
)

var (
	statusJSONFlag  bool
	statusWatchFlag bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pull request and CI status for every worktree",
	Long: `Fetch the pull/merge request and CI pipeline status of every branch checked
out in the configured repositories' worktrees.

With --json, prints the snapshot as JSON. Identical snapshots print identical bytes.

With --watch, keeps polling every poll.interval and prints a line whenever a
branch's status changes, e.g. when a request is merged or a pipeline fails.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSONFlag, "json", false, "Print the snapshot as JSON")
	statusCmd.Flags().BoolVarP(&statusWatchFlag, "watch", "w", false, "Keep polling and print status changes")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := loadEnvironment(ctx)
	if err != nil {
		return err
	}
	ws, err := env.openWorkspace(ctx, true)
	if err != nil {
		return err
	}
	agg := env.newAggregator()

	branches, err := ws.Branches(ctx)
	if err != nil {
		return fmt.Errorf("failed to list branches: %w", err)
	}

	if !statusWatchFlag {
		queries := make([]aggregator.BranchQuery, len(branches))
		for i, b := range branches {
			queries[i] = b.Query()
		}
		snap := agg.FetchStatusesForBranches(ctx, queries)
		if statusJSONFlag {
			return outputSnapshotJSON(cmd, snap)
		}
		_, updatedAt := agg.Latest()
		return outputStatusTable(cmd, branches, snap, updatedAt)
	}

	var (
		prev  aggregator.Snapshot
		first = true
	)
	err = agg.Run(ctx, env.cfg.Poll.Interval, ws.Queries, func(snap aggregator.Snapshot) {
		var err error
		switch {
		case statusJSONFlag:
			err = outputSnapshotJSON(cmd, snap)
		case first:
			_, updatedAt := agg.Latest()
			err = outputStatusTable(cmd, branches, snap, updatedAt)
		default:
			err = outputTransitions(cmd, aggregator.Diff(prev, snap), time.Now())
		}
		if err != nil {
			log.Warn("failed to write output", "err", err)
		}
		prev, first = snap, false
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func outputSnapshotJSON(cmd *cobra.Command, snap aggregator.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

// formatPipeline renders the pipeline cell; empty when there is no active request.
func formatPipeline(st status.PullRequestStatus) string {
	if !st.IsActive() {
		return ""
	}
	p := st.Pipeline()
	return p.Symbol() + " " + p.Label()
}

// statusRows builds one table row per branch, in branch order.
func statusRows(branches []workspace.Branch, snap aggregator.Snapshot) [][]string {
	rows := make([][]string, 0, len(branches))
	for _, b := range branches {
		st, _ := snap.Get(b.Repository, b.Branch)
		worktree := ""
		if b.WorktreePath != "" {
			worktree = filepath.Base(b.WorktreePath)
		}
		rows = append(rows, []string{
			b.Repository,
			truncateString(b.Branch, 40),
			worktree,
			st.FormatShort(),
			formatPipeline(st),
		})
	}
	return rows
}

// outputStatusTable renders a lipgloss table to stdout, followed by any
// provider that is not healthy.
func outputStatusTable(cmd *cobra.Command, branches []workspace.Branch, snap aggregator.Snapshot, updatedAt time.Time) error {
	out := cmd.OutOrStdout()
	if len(branches) == 0 {
		_, err := fmt.Fprintln(out, "No branches found.")
		return err
	}

	purple := lipgloss.Color("99")
	gray := lipgloss.Color("245")
	lightGray := lipgloss.Color("241")

	headerStyle := lipgloss.NewStyle().Foreground(purple).Bold(true).Align(lipgloss.Center)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	oddRowStyle := cellStyle.Foreground(gray)
	evenRowStyle := cellStyle.Foreground(lightGray)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(purple)).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row%2 == 0:
				return evenRowStyle
			default:
				return oddRowStyle
			}
		}).
		Headers("Repo", "Branch", "Worktree", "Request", "CI").
		Rows(statusRows(branches, snap)...)

	if _, err := fmt.Fprintln(out, t); err != nil {
		return err
	}

	for _, name := range providerNames(snap) {
		if state := snap.Providers[name]; state != aggregator.ProviderOK {
			if _, err := fmt.Fprintf(out, "%s: %s\n", name, describeProviderState(state)); err != nil {
				return err
			}
		}
	}

	if !updatedAt.IsZero() {
		_, err := fmt.Fprintf(out, "Updated %s\n", humanize.Time(updatedAt))
		return err
	}
	return nil
}

func providerNames(snap aggregator.Snapshot) []string {
	names := make([]string, 0, len(snap.Providers))
	for name := range snap.Providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func describeProviderState(state aggregator.ProviderState) string {
	switch state {
	case aggregator.ProviderUnconfigured:
		return "forge not configured, showing no requests"
	case aggregator.ProviderCoolingDown:
		return "rate limited, showing previous statuses"
	case aggregator.ProviderDisabled:
		return "credentials rejected, check the token"
	case aggregator.ProviderDegraded:
		return "some requests failed, showing previous statuses"
	default:
		return string(state)
	}
}

// outputTransitions prints one line per changed branch.
func outputTransitions(cmd *cobra.Command, transitions []aggregator.Transition, at time.Time) error {
	for _, tr := range transitions {
		from := tr.From.FormatShort()
		if p := formatPipeline(tr.From); p != "" {
			from += " " + p
		}
		to := tr.To.FormatShort()
		if p := formatPipeline(tr.To); p != "" {
			to += " " + p
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s -> %s\n", at.Format(time.TimeOnly), tr.Key, from, to); err != nil {
			return err
		}
	}
	return nil
}

// truncateString truncates a string to maxLen characters, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
