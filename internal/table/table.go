// Package table provides the lookup-table abstraction served by the
// lookup daemon, with a Redis-backed implementation.
package table

import "context"

// Table is a read-only key-value lookup table.
type Table interface {
	// Name returns the name clients use to select this table.
	Name() string

	// Lookup returns the value for key. The boolean reports whether the
	// key exists; a non-nil error means the backend failed and the
	// lookup may succeed if retried.
	Lookup(ctx context.Context, key string) (string, bool, error)

	// Close releases backend resources.
	Close() error
}

// Registry maps table names to tables.
type Registry struct {
	tables map[string]Table
}

// NewRegistry creates a Registry over the given tables.
func NewRegistry(tables ...Table) *Registry {
	r := &Registry{tables: make(map[string]Table, len(tables))}
	for _, t := range tables {
		r.tables[t.Name()] = t
	}
	return r
}

// Get returns the named table, or false if no such table is registered.
func (r *Registry) Get(name string) (Table, bool) {
	t, ok := r.tables[name]
	return t, ok
}

// Close closes every registered table, returning the first error.
func (r *Registry) Close() error {
	var first error
	for _, t := range r.tables {
		if err := t.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
