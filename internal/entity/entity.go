// Package entity describes the tables a graph expression may touch.
//
// An Entity lists which columns may be read and filtered and how it relates
// to other entities. Entities are declared explicitly, either in Go through
// a Registry or in CUE files loaded with LoadDir; nothing is discovered by
// reflection.
package entity

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// ErrNotFound is returned by providers for an unknown entity name.
var ErrNotFound = errors.New("entity not found")

// DefaultPrimaryKey is used when an entity declares none.
const DefaultPrimaryKey = "id"

// DefaultTimestamps are the audit columns appended for "*" and
// "_timestamps" requests.
var DefaultTimestamps = []string{"created_at", "updated_at"}

// Cardinality is the shape of a relation from the owning entity's side.
type Cardinality string

const (
	// OneToMany: the target table holds ForeignKey pointing at the owner.
	OneToMany Cardinality = "one_to_many"

	// ManyToOne: the owner holds ForeignKey pointing at the target.
	ManyToOne Cardinality = "many_to_one"

	// ManyToMany: rows are linked through Pivot. Declarable, not compilable.
	ManyToMany Cardinality = "many_to_many"
)

// Valid reports whether c is a known cardinality.
func (c Cardinality) Valid() bool {
	switch c {
	case OneToMany, ManyToOne, ManyToMany:
		return true
	}
	return false
}

// Relation links an entity to a target entity.
type Relation struct {
	Name        string      `json:"name"`
	Target      string      `json:"target"`
	Cardinality Cardinality `json:"cardinality"`
	ForeignKey  string      `json:"foreign_key,omitempty"`
	Pivot       string      `json:"pivot,omitempty"`
}

// Entity is the read-only metadata the plan compiler works from.
type Entity struct {
	Name       string
	Table      string
	PrimaryKey string

	// Columns is the fillable allow-list in canonical order. Select lists
	// always follow this order, never the order of the request.
	Columns []string

	// Hidden columns are never selected, even for "*".
	Hidden []string

	// Queryable restricts which columns may appear in filters. Nil means
	// the readable columns plus the primary key.
	Queryable []string

	// Timestamps are appended for "*" and "_timestamps". An empty non-nil
	// slice disables them.
	Timestamps []string

	Relations map[string]Relation
}

// Clone returns a copy of e that shares no slices or maps with it.
func (e Entity) Clone() Entity {
	e.Columns = slices.Clone(e.Columns)
	e.Hidden = slices.Clone(e.Hidden)
	e.Queryable = slices.Clone(e.Queryable)
	e.Timestamps = slices.Clone(e.Timestamps)
	e.Relations = maps.Clone(e.Relations)
	return e
}

// Readable returns Columns minus Hidden and the primary key, in
// canonical order.
func (e *Entity) Readable() []string {
	out := make([]string, 0, len(e.Columns))
	for _, col := range e.Columns {
		if col == e.PrimaryKey || slices.Contains(e.Hidden, col) {
			continue
		}
		out = append(out, col)
	}
	return out
}

// QueryableColumns returns the columns that may be filtered on.
func (e *Entity) QueryableColumns() []string {
	if e.Queryable != nil {
		return e.Queryable
	}
	return append([]string{e.PrimaryKey}, e.Readable()...)
}

// Relation returns the named relation.
func (e *Entity) Relation(name string) (Relation, bool) {
	r, ok := e.Relations[name]
	return r, ok
}

// Provider supplies entity metadata to the plan compiler. Callers treat the
// returned Entity as read-only; it may be shared by concurrent compilations.
type Provider interface {
	Entity(name string) (*Entity, error)
}

// withDefaults fills in the table name, primary key, timestamps and
// relation names.
func (e Entity) withDefaults() Entity {
	if e.Table == "" {
		e.Table = e.Name
	}
	if e.PrimaryKey == "" {
		e.PrimaryKey = DefaultPrimaryKey
	}
	if e.Timestamps == nil {
		e.Timestamps = slices.Clone(DefaultTimestamps)
	}
	rels := make(map[string]Relation, len(e.Relations))
	for name, r := range e.Relations {
		if r.Name == "" {
			r.Name = name
		}
		rels[name] = r
	}
	e.Relations = rels
	return e
}

// DefinitionError describes an inconsistent entity declaration.
type DefinitionError struct {
	Entity   string
	Relation string
	Message  string
}

func (e *DefinitionError) Error() string {
	if e.Relation != "" {
		return fmt.Sprintf("entity %s: relation %s: %s", e.Entity, e.Relation, e.Message)
	}
	return fmt.Sprintf("entity %s: %s", e.Entity, e.Message)
}
