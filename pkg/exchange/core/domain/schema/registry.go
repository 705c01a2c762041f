package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tigerroll/hrsync/pkg/exchange/support/util/exception"
)

var (
	// Departments describes the departments table.
	Departments = NewDescriptor("departments", "departments",
		Column{Name: "id", Type: Integer, PrimaryKey: true},
		Column{Name: "department", Type: Text},
	)

	// Jobs describes the jobs table.
	Jobs = NewDescriptor("jobs", "jobs",
		Column{Name: "id", Type: Integer, PrimaryKey: true},
		Column{Name: "job", Type: Text},
	)

	// HiredEmployees describes the hired_employees table. Reference columns are plain integers.
	HiredEmployees = NewDescriptor("employees", "hired_employees",
		Column{Name: "id", Type: Integer, PrimaryKey: true},
		Column{Name: "name", Type: Text},
		Column{Name: "datetime", Type: Timestamp},
		Column{Name: "department_id", Type: Integer},
		Column{Name: "job_id", Type: Integer},
	)
)

// Registry resolves descriptors by entity selector or table name.
type Registry struct {
	ordered  []*Descriptor
	byEntity map[string]*Descriptor
	byTable  map[string]*Descriptor
}

// NewRegistry creates a registry. The given order is kept for All.
func NewRegistry(descriptors ...*Descriptor) *Registry {
	r := &Registry{
		byEntity: make(map[string]*Descriptor, len(descriptors)),
		byTable:  make(map[string]*Descriptor, len(descriptors)),
	}
	for _, d := range descriptors {
		r.ordered = append(r.ordered, d)
		r.byEntity[d.Entity] = d
		r.byTable[d.Table] = d
	}
	return r
}

// DefaultRegistry returns the registry of the three HR entities, parents first.
func DefaultRegistry() *Registry {
	return NewRegistry(Departments, Jobs, HiredEmployees)
}

// All returns every descriptor in registration order.
func (r *Registry) All() []*Descriptor {
	return append([]*Descriptor(nil), r.ordered...)
}

// Lookup resolves an entity selector, falling back to the table name.
func (r *Registry) Lookup(name string) (*Descriptor, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if d, ok := r.byEntity[key]; ok {
		return d, nil
	}
	if d, ok := r.byTable[key]; ok {
		return d, nil
	}
	return nil, exception.NewExchangeError("schema", exception.ErrUnknownEntity,
		fmt.Sprintf("unknown entity %q (known: %s)", name, strings.Join(r.Entities(), ", ")), nil).
		WithDetail("entity", name)
}

// Entities returns the known entity selectors, sorted.
func (r *Registry) Entities() []string {
	names := make([]string, 0, len(r.byEntity))
	for n := range r.byEntity {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
