package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/bitsmind/graphsql/internal/entity"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Entities []EntitySummary   `json:"entities,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// EntitySummary describes one valid entity.
type EntitySummary struct {
	Name       string   `json:"name"`
	Table      string   `json:"table"`
	PrimaryKey string   `json:"primary_key"`
	Columns    int      `json:"columns"`
	Relations  []string `json:"relations,omitempty"`
}

// ValidationError is one problem found in the declarations.
type ValidationError struct {
	Code     string `json:"code"`
	Entity   string `json:"entity,omitempty"`
	Relation string `json:"relation,omitempty"`
	Message  string `json:"message"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <entities>",
		Short: "Validate entity declarations",
		Long: `Validate CUE entity declarations without compiling a graph.

Checks that every entity compiles and that every relation names a known
target with a valid cardinality, foreign key or pivot table. All relation
problems are reported, not just the first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, entitiesPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loaded, err := LoadEntities(entitiesPath)
	if err != nil {
		var loadErr *LoadError
		if !errors.As(err, &loadErr) || loadErr.Code != ErrCodeInvalidRelation {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
		}
		return outputValidationFailure(formatter, definitionErrors(loadErr.Err))
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, entitiesPath)

	result := ValidationResult{Valid: true}
	for _, name := range loaded.Registry.Names() {
		ent, err := loaded.Registry.Entity(name)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
		}
		result.Entities = append(result.Entities, summarize(ent))
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "\u2713 %d entities valid\n\n", len(result.Entities))
	for _, e := range result.Entities {
		fmt.Fprintf(formatter.Writer, "  %s (table %s, key %s): %d column(s)", e.Name, e.Table, e.PrimaryKey, e.Columns)
		if len(e.Relations) > 0 {
			fmt.Fprintf(formatter.Writer, ", relations %v", e.Relations)
		}
		fmt.Fprintln(formatter.Writer)
	}
	return nil
}

func summarize(e *entity.Entity) EntitySummary {
	rels := make([]string, 0, len(e.Relations))
	for name, rel := range e.Relations {
		rels = append(rels, fmt.Sprintf("%s:%s", name, rel.Cardinality))
	}
	sort.Strings(rels)
	return EntitySummary{
		Name:       e.Name,
		Table:      e.Table,
		PrimaryKey: e.PrimaryKey,
		Columns:    len(e.Columns),
		Relations:  rels,
	}
}

// definitionErrors flattens the joined errors returned by registry
// validation.
func definitionErrors(err error) []ValidationError {
	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}

	out := make([]ValidationError, 0, len(errs))
	for _, e := range errs {
		ve := ValidationError{Code: ErrCodeInvalidRelation, Message: e.Error()}
		var defErr *entity.DefinitionError
		if errors.As(e, &defErr) {
			ve.Entity, ve.Relation, ve.Message = defErr.Entity, defErr.Relation, defErr.Message
		}
		out = append(out, ve)
	}
	return out
}

func outputValidationFailure(formatter *OutputFormatter, errs []ValidationError) error {
	if formatter.Format == "json" {
		if err := formatter.Success(ValidationResult{Valid: false, Errors: errs}); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(formatter.Writer, "\u2717 Validation failed")
		fmt.Fprintln(formatter.Writer)
		for _, e := range errs {
			fmt.Fprintf(formatter.Writer, "  %s: entity %s: relation %s: %s\n", e.Code, e.Entity, e.Relation, e.Message)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
