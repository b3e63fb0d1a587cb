package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/ovalmerge/pkg/cache"
	"github.com/matzehuels/ovalmerge/pkg/pipeline"
	"github.com/matzehuels/ovalmerge/pkg/server"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP merge service",
		Long: `Run an HTTP service that merges uploaded documents.

  POST /v1/merge   multipart form with one "feed" part per document,
                   in increasing priority; returns the merged XML
  GET  /healthz    liveness probe
  GET  /version    build information

The service shares the configured cache with the CLI under its own key
prefix.`,
		Example: `  ovalmerge serve --addr :8080
  curl -F feed=@base.xml -F feed=@vendor.xml localhost:8080/v1/merge`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("addr") {
				addr = c.Config.Server.Addr
			}
			return c.runServe(cmd.Context(), addr, noCache)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", server.DefaultAddr, "listen address")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr string, noCache bool) error {
	ch, err := c.newCache(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize cache: %w", err)
	}
	runner := pipeline.NewRunner(ch, cache.NewScopedKeyer(nil, serviceKeyPrefix), c.Logger)
	defer runner.Close()

	sc := c.Config.Server
	srv := server.New(runner, server.Config{
		Addr:           addr,
		MaxUploadBytes: int64(sc.MaxUploadMB) << 20,
		Timeout:        time.Duration(sc.TimeoutSeconds) * time.Second,
		Logger:         c.Logger,
		Merge:          c.mergeOptions(),
	})

	printInfo("Serving on %s", StyleValue.Render("http://"+addr))
	err = srv.ListenAndServe(ctx)
	if errors.Is(err, context.Canceled) {
		printSuccess("Server stopped")
		return nil
	}
	return err
}
