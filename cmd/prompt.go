package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/jmcampanini/grove-status/internal/git"
	"github.com/jmcampanini/grove-status/internal/server"
	"github.com/jmcampanini/grove-status/internal/status"
)

const promptTimeout = 300 * time.Millisecond

var promptAddrFlag string

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the current branch's status for a shell prompt",
	Long: `Prompt asks a running "grove-status serve" for the current branch and prints
a short status such as "#42 ✓" or "#7 Merged". It prints nothing when the
branch has no request, the configuration cannot be loaded, or the server is
not reachable.`,
	Args: cobra.NoArgs,
	RunE: runPrompt,
}

func init() {
	promptCmd.Flags().StringVar(&promptAddrFlag, "addr", "", "Server address (default server.addr)")
	rootCmd.AddCommand(promptCmd)
}

func runPrompt(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
	defer cancel()

	// Every failure below prints nothing and exits cleanly.
	env, err := loadEnvironment(ctx)
	if err != nil {
		log.Debug("could not load environment", "err", err)
		return nil
	}
	if env.worktreeRoot == "" {
		return nil
	}
	ws, err := env.openWorkspace(ctx, false)
	if err != nil {
		log.Debug("could not open workspace", "err", err)
		return nil
	}
	repo, ok := env.currentRepository(ws)
	if !ok {
		return nil
	}
	branch, err := git.New(env.cwd, env.cfg.Git.Timeout).GetCurrentBranch(ctx)
	if err != nil {
		log.Debug("could not read current branch", "err", err)
		return nil
	}
	if branch == "HEAD" {
		return nil
	}

	addr := promptAddrFlag
	if addr == "" {
		addr = env.cfg.Server.Addr
	}
	st, err := fetchServedStatus(ctx, &http.Client{Timeout: promptTimeout}, serverBaseURL(addr), repo.Name(), branch)
	if err != nil {
		log.Debug("status server unavailable", "addr", addr, "err", err)
		return nil
	}

	if out := formatPrompt(st); out != "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
	}
	return err
}

// serverBaseURL turns a listen address into a URL a client can reach.
func serverBaseURL(addr string) string {
	if strings.Contains(addr, "://") {
		return strings.TrimRight(addr, "/")
	}
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr
}

func fetchServedStatus(ctx context.Context, client *http.Client, baseURL, repo, branch string) (status.PullRequestStatus, error) {
	q := url.Values{"repo": {repo}, "branch": {branch}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/status?"+q.Encode(), nil)
	if err != nil {
		return status.None(), err
	}
	resp, err := client.Do(req)
	if err != nil {
		return status.None(), err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return status.None(), fmt.Errorf("server returned %s", resp.Status)
	}
	var body server.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return status.None(), fmt.Errorf("failed to decode status: %w", err)
	}
	return body.Status, nil
}

// formatPrompt renders a status for a prompt: "#42 ✓", "#7 Merged", or "" for none.
func formatPrompt(st status.PullRequestStatus) string {
	if st.IsNone() {
		return ""
	}
	if st.IsActive() && st.Pipeline() != status.PipelineNone {
		return st.FormatShort() + " " + st.Pipeline().Symbol()
	}
	return st.FormatShort()
}
