package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bitsmind/graphsql/internal/assist"
	"github.com/bitsmind/graphsql/internal/plan"
	"github.com/bitsmind/graphsql/internal/querysql"
	"github.com/bitsmind/graphsql/internal/resolve"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Entity string            // root entity
	Graph  string            // literal graph expression
	Cipher string            // graph_cipher payload, decoded with --secret
	Secret string            // cipher secret; falls back to the config secret
	SQL    bool              // also render the root statement
	Params map[string]string // assist request fields for --sql
	Output string            // output file path
}

// CompilationResult is what compile prints.
type CompilationResult struct {
	Entity      string     `json:"entity"`
	Graph       string     `json:"graph"`
	Strategy    string     `json:"strategy"`
	Fingerprint string     `json:"fingerprint"`
	Plan        *plan.Plan `json:"plan"`
	SQL         string     `json:"sql,omitempty"`
	Args        []any      `json:"args,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <entities>",
		Short: "Compile a graph expression to a query plan",
		Long: `Compile a graph expression against CUE entity declarations.

The graph is given literally with --graph or as a cipher payload with
--cipher. With --sql the root statement is rendered too; --param supplies
the query-assist fields (page, length, order_by, has and column filters).

Examples:
  graphsql compile ./entities --entity categories --graph "{name,children{name}}"
  graphsql compile ./entities --entity products --graph "{name}" --sql --param page=2 --param order_by=price,asc`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Entity, "entity", "e", "", "root entity (required)")
	cmd.Flags().StringVarP(&opts.Graph, "graph", "g", "", "graph expression")
	cmd.Flags().StringVar(&opts.Cipher, "cipher", "", "graph_cipher payload")
	cmd.Flags().StringVar(&opts.Secret, "secret", "", "cipher secret (shift[.scramble])")
	cmd.Flags().BoolVar(&opts.SQL, "sql", false, "render the root SQL statement")
	cmd.Flags().StringToStringVarP(&opts.Params, "param", "p", nil, "query-assist request field (key=value)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the plan JSON to a file")
	_ = cmd.MarkFlagRequired("entity")
	cmd.MarkFlagsMutuallyExclusive("graph", "cipher")

	return cmd
}

func runCompile(opts *CompileOptions, entitiesPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if opts.Graph == "" && opts.Cipher == "" {
		_ = formatter.Error(ErrCodeGeneric, "one of --graph or --cipher is required", nil)
		return NewExitError(ExitCommandError, "one of --graph or --cipher is required")
	}

	loaded, err := LoadEntities(entitiesPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
	}
	formatter.VerboseLog("Loaded %d entities from %d CUE file(s)", len(loaded.Registry.Names()), loaded.FileCount)

	secret := opts.Secret
	if secret == "" && opts.Cipher != "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return err
		}
		secret = cfg.Secret
	}

	var resolverOpts []resolve.Option
	if secret != "" {
		resolverOpts = append(resolverOpts, resolve.WithSecret(secret))
	}
	resolverOpts = append(resolverOpts, resolve.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	resolver := resolve.New(nil, nil, resolverOpts...)

	req := map[string]string{
		resolve.FieldGraph:       opts.Graph,
		resolve.FieldGraphCipher: opts.Cipher,
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	graph, strategy, err := resolver.ResolveStrategy(ctx, req)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err)
	}
	formatter.VerboseLog("Resolved graph %s via %s", graph, strategy)

	p, err := resolver.Compile(graph, opts.Entity, plan.NewCompiler(loaded.Registry))
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err)
	}
	fingerprint, err := p.Fingerprint()
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err)
	}

	result := &CompilationResult{
		Entity:      opts.Entity,
		Graph:       graph,
		Strategy:    string(strategy),
		Fingerprint: fingerprint,
		Plan:        p,
	}

	if opts.SQL {
		ent, err := loaded.Registry.Entity(opts.Entity)
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeGeneric, err)
		}
		scope, err := assist.ForEntity(ent).Scope(opts.Params)
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeGeneric, err)
		}
		if result.SQL, result.Args, err = querysql.NewSQLCompiler(loaded.Registry).CompileRoot(p, scope); err != nil {
			return formatter.Fail(ExitFailure, ErrCodeGeneric, err)
		}
	}

	if opts.Output != "" {
		if err := writePlanToFile(p, opts.Output); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, ErrCodeWriteFailed, err)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// outputCompileSuccess outputs a compiled plan.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "\u2713 Compiled %s for %s (%s)\n", result.Graph, result.Entity, result.Strategy)
	fmt.Fprintf(w, "Fingerprint: %s\n\n", result.Fingerprint)
	printPlan(w, "", result.Plan, 0)

	if result.SQL != "" {
		fmt.Fprintf(w, "\nSQL: %s\n", result.SQL)
		fmt.Fprintf(w, "Args: %v\n", result.Args)
	}
	if outputFile != "" {
		fmt.Fprintf(w, "\nWrote plan to %s\n", outputFile)
	}
	return nil
}

// printPlan writes one line per plan node, loads indented under their
// parent.
func printPlan(w io.Writer, name string, p *plan.Plan, depth int) {
	indent := fmt.Sprintf("%*s", depth*2, "")
	label := p.Entity
	if name != "" {
		label = fmt.Sprintf("%s -> %s", name, p.Entity)
	}
	fmt.Fprintf(w, "%s%s: %v\n", indent, label, p.Select)
	if p.Window != nil {
		fmt.Fprintf(w, "%s  window: offset %d, limit %d\n", indent, p.Window.Offset, p.Window.Limit)
	}
	for _, c := range p.CountNames() {
		fmt.Fprintf(w, "%s  count: %s\n", indent, c)
	}
	for _, s := range p.SumNames() {
		fmt.Fprintf(w, "%s  sum: %s(%s)\n", indent, s, p.Sums[s].Field)
	}
	for _, l := range p.LoadNames() {
		printPlan(w, l, p.Loads[l], depth+1)
	}
}

// writePlanToFile writes the plan as indented JSON.
func writePlanToFile(p *plan.Plan, filename string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling plan: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
