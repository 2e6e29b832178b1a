package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bitsmind/graphsql/internal/cache"
	"github.com/bitsmind/graphsql/internal/config"
	"github.com/bitsmind/graphsql/internal/metrics"
)

// CacheOptions holds flags for the cache commands.
type CacheOptions struct {
	*RootOptions
	Driver string // overrides cache.driver
	Path   string // overrides cache.path
}

// NewCacheCommand creates the cache command group.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CacheOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the resolved-graph cache",
	}
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "cache driver (memory|file|pebble)")
	cmd.PersistentFlags().StringVar(&opts.Path, "path", "", "cache file or pebble directory")

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop every cached graph_key and graph_cipher resolution",
		Long: `Drop every cached resolution so the next request reloads graph keys from
the store and decodes cipher payloads again.

Only the file and pebble drivers persist between processes; clearing the
memory driver is a no-op outside a running server (use DELETE /graph/cache).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheClear(opts, cmd)
		},
	})
	return cmd
}

func runCacheClear(opts *CacheOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Driver != "" {
		cfg.Cache.Driver = opts.Driver
	}
	if opts.Path != "" {
		cfg.Cache.Path = opts.Path
	}
	if err := cfg.Validate(); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
	}

	c, closeCache, err := openCache(cfg.Cache, nil, opts.logger(cmd.ErrOrStderr()))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeCache, err)
	}
	defer closeCache()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := c.Flush(ctx); err != nil {
		return formatter.Fail(ExitFailure, ErrCodeCache, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]string{"cleared": cfg.Cache.Driver})
	}
	fmt.Fprintf(formatter.Writer, "\u2713 Cleared %s cache\n", cfg.Cache.Driver)
	return nil
}

// openCache builds the configured cache. The returned func releases the
// backend.
func openCache(cfg config.CacheConfig, m *metrics.Metrics, logger *slog.Logger) (*cache.Cache, func(), error) {
	var (
		backend cache.Backend
		release = func() {}
	)
	switch cfg.Driver {
	case config.CacheFile:
		backend = cache.NewFile(cfg.Path)
	case config.CachePebble:
		p, err := cache.OpenPebble(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open pebble cache %s: %w", cfg.Path, err)
		}
		backend = p
		release = func() {
			if err := p.Close(); err != nil {
				logger.Error("error closing pebble cache", "error", err)
			}
		}
	default:
		backend = cache.NewMemory()
	}

	logger.Debug("cache ready", "driver", backend.Name(), "ttl", cfg.TTL)
	return cache.New(backend, cache.WithMetrics(m), cache.WithLogger(logger)), release, nil
}
