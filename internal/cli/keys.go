package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bitsmind/graphsql/internal/config"
	"github.com/bitsmind/graphsql/internal/resolve"
	"github.com/bitsmind/graphsql/internal/store"
	"github.com/bitsmind/graphsql/internal/store/pgstore"
)

// KeyStore is the graph-key store API shared by the SQLite and Postgres
// stores.
type KeyStore interface {
	PutKey(ctx context.Context, key, graph string) (store.Key, error)
	GetKey(ctx context.Context, key string) (store.Key, error)
	ListKeys(ctx context.Context) ([]store.Key, error)
	DeleteKey(ctx context.Context, key string) error
	LookupGraph(ctx context.Context, key string) (string, bool, error)
}

// KeysOptions holds flags for the keys commands.
type KeysOptions struct {
	*RootOptions
	Database string // SQLite path; overrides the config database

	// KeyGenerator names keys when `keys add` is given no --key.
	// If nil, defaults to UUIDv7Generator.
	KeyGenerator store.KeyGenerator
}

// NewKeysCommand creates the keys command group.
func NewKeysCommand(rootOpts *RootOptions) *cobra.Command {
	return newKeysCommand(&KeysOptions{RootOptions: rootOpts})
}

func newKeysCommand(opts *KeysOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage stored graph keys",
		Long: `Manage the graph expressions clients reference with graph_key.

Keys live in the SQLite database given by --db or the config file, or in
Postgres when the config sets postgres_dsn.`,
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database")

	cmd.AddCommand(newKeysAddCommand(opts))
	cmd.AddCommand(newKeysGetCommand(opts))
	cmd.AddCommand(newKeysListCommand(opts))
	cmd.AddCommand(newKeysDeleteCommand(opts))
	return cmd
}

func newKeysAddCommand(opts *KeysOptions) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "add <graph>",
		Short: "Store a graph expression under a key",
		Long: `Store a graph expression under a key, replacing any graph already there.

Without --key a UUIDv7 key is generated.

Example:
  graphsql keys add "{name,children{name}}" --key category_list --db ./graphsql.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKeyStore(opts, cmd, func(ctx context.Context, ks KeyStore, f *OutputFormatter) error {
				if key == "" {
					gen := opts.KeyGenerator
					if gen == nil {
						gen = store.UUIDv7Generator{}
					}
					key = gen.Generate()
				}
				k, err := ks.PutKey(ctx, key, args[0])
				if err != nil {
					return f.Fail(ExitFailure, ErrCodeStore, err)
				}
				return outputKeys(f, []store.Key{k}, false)
			})
		},
	}
	cmd.Flags().StringVarP(&key, "key", "k", "", "key name (default: generated UUIDv7)")
	return cmd
}

func newKeysGetCommand(opts *KeysOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <key>",
		Short:         "Print the graph stored under a key",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKeyStore(opts, cmd, func(ctx context.Context, ks KeyStore, f *OutputFormatter) error {
				k, err := ks.GetKey(ctx, args[0])
				if err != nil {
					return f.Fail(ExitFailure, keyErrorCode(err), err)
				}
				return outputKeys(f, []store.Key{k}, false)
			})
		},
	}
}

func newKeysListCommand(opts *KeysOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List stored graph keys",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKeyStore(opts, cmd, func(ctx context.Context, ks KeyStore, f *OutputFormatter) error {
				keys, err := ks.ListKeys(ctx)
				if err != nil {
					return f.Fail(ExitFailure, ErrCodeStore, err)
				}
				return outputKeys(f, keys, true)
			})
		},
	}
}

func newKeysDeleteCommand(opts *KeysOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <key>",
		Short:         "Delete a stored graph key",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKeyStore(opts, cmd, func(ctx context.Context, ks KeyStore, f *OutputFormatter) error {
				if err := ks.DeleteKey(ctx, args[0]); err != nil {
					return f.Fail(ExitFailure, keyErrorCode(err), err)
				}
				if f.Format == "json" {
					return f.Success(map[string]string{"deleted": args[0]})
				}
				fmt.Fprintf(f.Writer, "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

// withKeyStore opens the configured store around fn.
func withKeyStore(opts *KeysOptions, cmd *cobra.Command, fn func(context.Context, KeyStore, *OutputFormatter) error) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Database != "" {
		cfg.Database, cfg.PostgresDSN = opts.Database, ""
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ks, closeStore, err := openKeyStore(ctx, cfg, opts.logger(cmd.ErrOrStderr()))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err)
	}
	defer closeStore()

	return fn(ctx, ks, formatter)
}

// openKeyStore opens Postgres when a DSN is configured, SQLite otherwise.
// The returned func closes the store.
func openKeyStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (KeyStore, func(), error) {
	if cfg.PostgresDSN != "" {
		logger.Debug("opening postgres key store")
		pg, err := pgstore.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres key store: %w", err)
		}
		return pg, pg.Close, nil
	}

	logger.Debug("opening sqlite key store", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open key store %s: %w", cfg.Database, err)
	}
	return st, func() {
		if err := st.Close(); err != nil {
			logger.Error("error closing database", "error", err)
		}
	}, nil
}

func keyErrorCode(err error) string {
	if errors.Is(err, store.ErrKeyNotFound) {
		return string(resolve.ErrCodeUnknownGraphKey)
	}
	return ErrCodeStore
}

func outputKeys(f *OutputFormatter, keys []store.Key, list bool) error {
	if f.Format == "json" {
		if list {
			if keys == nil {
				keys = []store.Key{}
			}
			return f.Success(keys)
		}
		return f.Success(keys[0])
	}

	if list && len(keys) == 0 {
		fmt.Fprintln(f.Writer, "No graph keys stored.")
		return nil
	}
	for _, k := range keys {
		fmt.Fprintf(f.Writer, "%s\t%s\n", k.Key, k.Graph)
	}
	return nil
}
