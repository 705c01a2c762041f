// Package schema describes the relational entities the exchange engine moves data in and out of.
//
// A Descriptor is the static, ordered column list of one table. Descriptors are built once at
// package initialization and never mutated, so they are safe to share across goroutines.
package schema

import "fmt"

// TimestampLayout is the fixed wall-clock layout used for timestamp input and for backup files.
const TimestampLayout = "2006-01-02 15:04:05"

// ColumnType is the declared type of a column.
type ColumnType int

const (
	Integer ColumnType = iota
	Float
	Text
	Timestamp
)

// String returns the lower-case type name used in validation messages.
func (t ColumnType) String() string {
	switch t {
	case Integer:
		return "integer"
	case Float:
		return "float"
	case Text:
		return "text"
	case Timestamp:
		return "timestamp"
	}
	return fmt.Sprintf("ColumnType(%d)", int(t))
}

// Column is one column of a Descriptor.
type Column struct {
	Name       string
	Type       ColumnType
	Nullable   bool
	PrimaryKey bool
}

// Required reports whether a record must carry this column.
// Primary keys are never required; the store assigns them when absent.
func (c Column) Required() bool {
	return !c.Nullable && !c.PrimaryKey
}

// Descriptor is the ordered column description of one entity.
type Descriptor struct {
	// Entity is the selector used at the transport boundary (e.g. "employees").
	Entity string
	// Table is the relational table name (e.g. "hired_employees").
	Table string

	columns []Column
	index   map[string]int
}

// NewDescriptor builds a descriptor. It panics on duplicate column names or more than one primary key,
// since descriptors are only ever declared statically.
func NewDescriptor(entity, table string, columns ...Column) *Descriptor {
	d := &Descriptor{
		Entity:  entity,
		Table:   table,
		columns: append([]Column(nil), columns...),
		index:   make(map[string]int, len(columns)),
	}
	pk := 0
	for i, c := range d.columns {
		if _, dup := d.index[c.Name]; dup {
			panic(fmt.Sprintf("schema %s: duplicate column %q", table, c.Name))
		}
		d.index[c.Name] = i
		if c.PrimaryKey {
			pk++
		}
	}
	if pk > 1 {
		panic(fmt.Sprintf("schema %s: composite primary keys are not supported", table))
	}
	return d
}

// Columns returns a copy of the columns in declaration order.
func (d *Descriptor) Columns() []Column {
	return append([]Column(nil), d.columns...)
}

// ColumnNames returns the column names in declaration order.
func (d *Descriptor) ColumnNames() []string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.Name
	}
	return names
}

// Column looks a column up by name.
func (d *Descriptor) Column(name string) (Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return Column{}, false
	}
	return d.columns[i], true
}

// Has reports whether name is a column of d.
func (d *Descriptor) Has(name string) bool {
	_, ok := d.index[name]
	return ok
}

// PrimaryKey returns the primary key column, if any.
func (d *Descriptor) PrimaryKey() (Column, bool) {
	for _, c := range d.columns {
		if c.PrimaryKey {
			return c, true
		}
	}
	return Column{}, false
}

// RequiredColumns returns the names of the required columns in declaration order.
func (d *Descriptor) RequiredColumns() []string {
	var names []string
	for _, c := range d.columns {
		if c.Required() {
			names = append(names, c.Name)
		}
	}
	return names
}

// Record is a single row keyed by column name.
type Record map[string]interface{}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
