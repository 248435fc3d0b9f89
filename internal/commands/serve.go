package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/mailtx/internal/history"
	"github.com/cleared-dev/mailtx/internal/metrics"
	"github.com/cleared-dev/mailtx/internal/parsing"
	"github.com/cleared-dev/mailtx/internal/prefilter"
	"github.com/cleared-dev/mailtx/internal/server"
)

func newServeCommand() *cobra.Command {
	var repoDir, addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the parser and recurrence classifier over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(repoDir, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if addr == "" {
				addr = p.cfg.Server.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return newServer(p).Listen(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&repoDir, "repo", ".", "repository directory")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.addr)")

	return cmd
}

func newServer(p *project) *server.Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)

	return server.New(server.Options{
		Orchestrator: parsing.New(p.cfg.Parser, p.dict, parsing.WithLogger(p.log), parsing.WithMetrics(m)),
		Filter:       prefilter.New(p.cfg.Filter),
		Store:        history.NewStore(p.root),
		RepoRoot:     p.root,
		Gatherer:     reg,
		Metrics:      m,
		Logger:       p.log,
	})
}
