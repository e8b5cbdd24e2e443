package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jmcampanini/grove-status/internal/aggregator"
	"github.com/jmcampanini/grove-status/internal/server"
)

var serveAddrFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll continuously and serve the latest snapshot over HTTP",
	Long: `Serve polls every poll.interval and exposes the latest snapshot:

  GET /api/snapshot                    all branches and provider states
  GET /api/status?repo=NAME&branch=B   one branch
  GET /healthz                         liveness

Requests are answered from memory and never wait on a forge.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddrFlag, "addr", "", "Listen address (default server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
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

	addr := serveAddrFlag
	if addr == "" {
		addr = env.cfg.Server.Addr
	}
	srv := server.New(agg, env.cfg.Server, log.Default().WithPrefix("server"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var prev aggregator.Snapshot
		return agg.Run(gctx, env.cfg.Poll.Interval, ws.Queries, func(snap aggregator.Snapshot) {
			for _, tr := range aggregator.Diff(prev, snap) {
				log.Info("status changed", "branch", tr.Key, "from", tr.From.FormatShort(), "to", tr.To.FormatShort(), "pipeline", tr.To.Pipeline())
			}
			prev = snap
		})
	})
	g.Go(func() error {
		return srv.ListenAndServe(gctx, addr)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}
