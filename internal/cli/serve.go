package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bitsmind/graphsql/internal/metrics"
	"github.com/bitsmind/graphsql/internal/resolve"
	"github.com/bitsmind/graphsql/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen   string // overrides listen
	Entities string // overrides entities
	Database string // overrides database
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve plans and SQL over HTTP",
		Long: `Start the HTTP server.

Routes:
  GET    /graph/plan/{entity}  resolve graph, graph_key or graph_cipher and return the plan
  GET    /graph/sql/{entity}   the plan plus the rendered root SQL
  DELETE /graph/cache          drop cached resolutions
  GET    /metrics              Prometheus metrics

Example:
  graphsql serve --config graphsql.yaml
  graphsql serve --entities ./entities --db ./graphsql.db --listen :9090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (default from config, :8080)")
	cmd.Flags().StringVar(&opts.Entities, "entities", "", "CUE entities file or directory")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	logger := opts.logger(cmd.ErrOrStderr())

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}
	if opts.Entities != "" {
		cfg.Entities = opts.Entities
	}
	if opts.Database != "" {
		cfg.Database, cfg.PostgresDSN = opts.Database, ""
	}

	logger.Info("loading entities", "path", cfg.Entities)
	loaded, err := LoadEntities(cfg.Entities)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load entities", err)
	}
	logger.Info("entities loaded", "count", len(loaded.Registry.Names()))

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	keys, closeStore, err := openKeyStore(ctx, cfg, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open key store", err)
	}
	defer closeStore()

	reg, m := metrics.NewRegistry()
	c, closeCache, err := openCache(cfg.Cache, m, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open cache", err)
	}
	defer closeCache()

	resolverOpts := []resolve.Option{
		resolve.WithTTL(cfg.Cache.TTL),
		resolve.WithLogger(logger),
		resolve.WithMetrics(m),
	}
	if cfg.Secret != "" {
		resolverOpts = append(resolverOpts, resolve.WithSecret(cfg.Secret))
	} else {
		logger.Warn("no secret configured; graph_cipher requests will fail")
	}
	resolver := resolve.New(keys, c, resolverOpts...)

	srv := server.New(loaded.Registry, resolver,
		server.WithLogger(logger),
		server.WithRegistry(reg),
	)

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s. Press Ctrl-C to stop.\n", cfg.Listen)
	if err := srv.Serve(ctx, cfg.Listen); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "server error", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
