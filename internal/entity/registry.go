package entity

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry is a static, explicitly populated Provider.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]*Entity
}

// NewRegistry returns a registry holding the given entities.
func NewRegistry(entities ...Entity) (*Registry, error) {
	r := &Registry{entities: make(map[string]*Entity)}
	for _, e := range entities {
		if err := r.Register(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an entity, filling in defaults. Registering the same name
// twice is an error.
func (r *Registry) Register(e Entity) error {
	if e.Name == "" {
		return &DefinitionError{Message: "name is required"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entities == nil {
		r.entities = make(map[string]*Entity)
	}
	if _, exists := r.entities[e.Name]; exists {
		return &DefinitionError{Entity: e.Name, Message: "already registered"}
	}
	e = e.Clone().withDefaults()
	r.entities[e.Name] = &e
	return nil
}

// Entity implements Provider. The result is a copy; changing it does not
// affect the registry.
func (r *Registry) Entity(name string) (*Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	c := e.Clone()
	return &c, nil
}

// Names returns the registered entity names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNamesLocked()
}

// Validate checks every relation against the registry: targets must exist,
// cardinalities must be known, one-to-many and many-to-one relations need
// a foreign key and many-to-many relations need a pivot table. All
// problems are returned joined.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, name := range r.sortedNamesLocked() {
		e := r.entities[name]
		rels := make([]string, 0, len(e.Relations))
		for rel := range e.Relations {
			rels = append(rels, rel)
		}
		sort.Strings(rels)

		for _, relName := range rels {
			rel := e.Relations[relName]
			fail := func(format string, args ...any) {
				errs = append(errs, &DefinitionError{
					Entity:   e.Name,
					Relation: relName,
					Message:  fmt.Sprintf(format, args...),
				})
			}

			if _, ok := r.entities[rel.Target]; !ok {
				fail("unknown target entity %q", rel.Target)
			}
			switch rel.Cardinality {
			case OneToMany, ManyToOne:
				if rel.ForeignKey == "" {
					fail("%s relation requires foreign_key", rel.Cardinality)
				}
			case ManyToMany:
				if rel.Pivot == "" {
					fail("many_to_many relation requires pivot")
				}
			default:
				fail("unknown cardinality %q", rel.Cardinality)
			}
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) sortedNamesLocked() []string {
	names := make([]string, 0, len(r.entities))
	for name := range r.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
