package cli

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/matzehuels/curator/internal/server"
	"github.com/matzehuels/curator/pkg/curate"
	promhooks "github.com/matzehuels/curator/pkg/observability/prometheus"
)

func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr      string
		dev       bool
		maxUpload int64
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve curation sessions over HTTP",
		Long: `Run an HTTP API where each client opens its own curation session:
search with debounced input, add selected packages, import a package.json
and accept or reject entries. Prometheus metrics are served on /metrics.

Sessions live in memory and end with the process.`,
		Example: `  curator serve
  curator serve --addr 127.0.0.1:9000 --dev`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := c.config()
			if addr == "" {
				addr = cfg.Server.Addr
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			promhooks.New(reg).Register()

			fetcher, closeFn, err := c.newRegistry(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			opts := curate.Options{
				Debounce:          cfg.Search.Debounce,
				SearchSize:        cfg.Search.Size,
				ImportConcurrency: cfg.Import.Concurrency,
				IncludeDev:        dev || cfg.Import.IncludeDev,
				Logger:            c.Logger,
			}
			srv := server.New(func() *curate.Curator {
				return curate.New(fetcher, opts)
			}, server.Options{
				Logger:    c.Logger,
				Gatherer:  reg,
				MaxUpload: maxUpload,
			})

			printInfo("Serving on %s", addr)
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&dev, "dev", false, "include devDependencies in imports")
	cmd.Flags().Int64Var(&maxUpload, "max-upload", server.DefaultMaxUpload, "largest accepted manifest in bytes")
	return cmd
}
