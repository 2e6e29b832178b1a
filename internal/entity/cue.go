package entity

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// CompileError reports a problem in a CUE entity declaration.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadDir loads every CUE file in dir and registers the entities declared
// under the top-level "entity" field. The registry is validated before it
// is returned.
//
//	entity: categories: {
//		columns: ["name", "slug", "parent_id"]
//		relations: children: {target: "categories", cardinality: "one_to_many", foreign_key: "parent_id"}
//	}
func LoadDir(dir string) (*Registry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("entities directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("entities directory: not a directory: %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	if err := instances[0].Err; err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", err)
	}

	value := cuecontext.New().BuildInstance(instances[0])
	return Load(value)
}

// LoadPath loads a single CUE file, or every CUE file when path is a
// directory.
func LoadPath(path string) (*Registry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("entities path: %w", err)
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read entities: %w", err)
	}
	return Load(cuecontext.New().CompileBytes(data, cue.Filename(path)))
}

// LoadString is LoadDir for CUE source held in memory.
func LoadString(src string) (*Registry, error) {
	return Load(cuecontext.New().CompileString(src))
}

// Load registers every entity declared under v's "entity" field.
func Load(v cue.Value) (*Registry, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	entitiesVal := v.LookupPath(cue.ParsePath("entity"))
	if !entitiesVal.Exists() {
		return nil, &CompileError{Field: "entity", Message: "no entities declared", Pos: v.Pos()}
	}
	iter, err := entitiesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	reg, _ := NewRegistry()
	for iter.Next() {
		e, err := CompileEntity(iter.Value())
		if err != nil {
			return nil, err
		}
		if err := reg.Register(*e); err != nil {
			return nil, err
		}
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

// CompileEntity parses one entity struct. The entity name is the struct's
// label.
func CompileEntity(v cue.Value) (*Entity, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	e := &Entity{}
	if labels := v.Path().Selectors(); len(labels) > 0 {
		e.Name = labels[len(labels)-1].String()
	}

	var err error
	if e.Table, err = optionalString(v, "table"); err != nil {
		return nil, err
	}
	if e.PrimaryKey, err = optionalString(v, "primary_key"); err != nil {
		return nil, err
	}

	columnsVal := v.LookupPath(cue.ParsePath("columns"))
	if !columnsVal.Exists() {
		return nil, &CompileError{Field: "columns", Message: "columns is required", Pos: v.Pos()}
	}
	if e.Columns, err = stringList(columnsVal); err != nil {
		return nil, err
	}

	if hidden := v.LookupPath(cue.ParsePath("hidden")); hidden.Exists() {
		if e.Hidden, err = stringList(hidden); err != nil {
			return nil, err
		}
	}
	if queryable := v.LookupPath(cue.ParsePath("queryable")); queryable.Exists() {
		if e.Queryable, err = stringList(queryable); err != nil {
			return nil, err
		}
	}

	// timestamps: false disables the audit columns; a list renames them.
	if ts := v.LookupPath(cue.ParsePath("timestamps")); ts.Exists() {
		if on, boolErr := ts.Bool(); boolErr == nil {
			if !on {
				e.Timestamps = []string{}
			}
		} else if e.Timestamps, err = stringList(ts); err != nil {
			return nil, err
		}
	}

	if e.Relations, err = parseRelations(v); err != nil {
		return nil, err
	}
	return e, nil
}

func parseRelations(v cue.Value) (map[string]Relation, error) {
	relsVal := v.LookupPath(cue.ParsePath("relations"))
	if !relsVal.Exists() {
		return nil, nil
	}
	iter, err := relsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	rels := make(map[string]Relation)
	for iter.Next() {
		name := iter.Label()
		rv := iter.Value()

		target, err := requiredString(rv, "target")
		if err != nil {
			return nil, err
		}
		card, err := requiredString(rv, "cardinality")
		if err != nil {
			return nil, err
		}
		if !Cardinality(card).Valid() {
			return nil, &CompileError{
				Field:   "cardinality",
				Message: fmt.Sprintf("unknown cardinality %q", card),
				Pos:     rv.Pos(),
			}
		}
		fk, err := optionalString(rv, "foreign_key")
		if err != nil {
			return nil, err
		}
		pivot, err := optionalString(rv, "pivot")
		if err != nil {
			return nil, err
		}

		rels[name] = Relation{
			Name:        name,
			Target:      target,
			Cardinality: Cardinality(card),
			ForeignKey:  fk,
			Pivot:       pivot,
		}
	}
	return rels, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func stringList(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	out := []string{}
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
