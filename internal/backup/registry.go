// Package backup implements point-in-time snapshot export and restore for the
// catalog database. A snapshot exports every registered table from a single
// transaction into a tar.gz archive with a manifest; restore validates the
// archive and re-applies it either by upserting (merge) or by clearing and
// bulk-inserting (replace).
package backup

import (
	"fmt"
	"regexp"
)

// protectedTables are never deleted during a replace restore. Wiping them
// would lock every operator out of the system, so the exclusion is a named
// invariant rather than an inline string check.
var protectedTables = map[string]bool{
	"roles": true,
	"users": true,
}

func IsProtected(table string) bool {
	return protectedTables[table]
}

// TableDescriptor registers one table for backup. PrimaryKey must be an
// auto-incrementing integer column: the exporter paginates with
// "pk > lastSeen" and is undefined for any other key shape.
type TableDescriptor struct {
	Name        string
	PrimaryKey  string
	TimeColumns []string // columns rehydrated to time values on restore
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Registry is an ordered list of table descriptors. Order encodes foreign-key
// dependency: a table may only reference tables earlier in the list. Export
// and merge-restore walk it forward, replace-mode deletion walks it backward.
type Registry struct {
	tables []TableDescriptor
	byName map[string]TableDescriptor
}

func NewRegistry(tables []TableDescriptor) (*Registry, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("registry requires at least one table")
	}

	byName := make(map[string]TableDescriptor, len(tables))
	for _, d := range tables {
		if !identPattern.MatchString(d.Name) {
			return nil, fmt.Errorf("invalid table name %q", d.Name)
		}
		if !identPattern.MatchString(d.PrimaryKey) {
			return nil, fmt.Errorf("table %s: invalid primary key column %q", d.Name, d.PrimaryKey)
		}
		for _, col := range d.TimeColumns {
			if !identPattern.MatchString(col) {
				return nil, fmt.Errorf("table %s: invalid time column %q", d.Name, col)
			}
		}
		if _, dup := byName[d.Name]; dup {
			return nil, fmt.Errorf("table %s registered twice", d.Name)
		}
		byName[d.Name] = d
	}

	return &Registry{tables: tables, byName: byName}, nil
}

// Tables returns descriptors in dependency order.
func (r *Registry) Tables() []TableDescriptor {
	out := make([]TableDescriptor, len(r.tables))
	copy(out, r.tables)
	return out
}

// Reversed returns descriptors in reverse dependency order, the safe order
// for deleting rows without tripping foreign key constraints.
func (r *Registry) Reversed() []TableDescriptor {
	out := make([]TableDescriptor, len(r.tables))
	for i, d := range r.tables {
		out[len(r.tables)-1-i] = d
	}
	return out
}

func (r *Registry) Lookup(name string) (TableDescriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

func (r *Registry) Len() int {
	return len(r.tables)
}

// CatalogRegistry describes the configurator's tables in foreign-key
// dependency order. Roles and users come first so that every catalog row
// referencing an operator resolves during a merge restore.
func CatalogRegistry() *Registry {
	reg, err := NewRegistry([]TableDescriptor{
		{Name: "roles", PrimaryKey: "id", TimeColumns: []string{"created_at"}},
		{Name: "users", PrimaryKey: "id", TimeColumns: []string{"created_at", "updated_at"}},
		{Name: "brands", PrimaryKey: "id", TimeColumns: []string{"created_at", "updated_at"}},
		{Name: "car_models", PrimaryKey: "id", TimeColumns: []string{"created_at", "updated_at"}},
		{Name: "versions", PrimaryKey: "id", TimeColumns: []string{"created_at", "updated_at"}},
		{Name: "colors", PrimaryKey: "id", TimeColumns: []string{"created_at", "updated_at"}},
		{Name: "optionals", PrimaryKey: "id", TimeColumns: []string{"created_at", "updated_at"}},
		{Name: "vehicles", PrimaryKey: "id", TimeColumns: []string{"created_at", "updated_at"}},
		{Name: "vehicle_optionals", PrimaryKey: "id", TimeColumns: []string{"created_at"}},
		{Name: "direct_sales", PrimaryKey: "id", TimeColumns: []string{"start_date", "end_date", "created_at"}},
	})
	if err != nil {
		// The built-in table list is static; a failure here is a programming error.
		panic(err)
	}
	return reg
}
