// Package backup exports tables to self-describing columnar files and restores them.
//
// A backup File carries a coarse schema (every field nullable, typed int or string) inferred
// from the first exported row, followed by every row with its values flattened to primitives.
// Timestamps travel as "YYYY-MM-DD HH:MM:SS" strings.
package backup

import (
	"fmt"
	"strings"
	"time"

	"github.com/tigerroll/hrsync/pkg/exchange/core/domain/schema"
)

// FieldType is the coarse type of a backup field.
type FieldType string

const (
	FieldInt    FieldType = "int"
	FieldString FieldType = "string"
)

// Field is one column of a backup file. Every field is nullable.
type Field struct {
	Name string
	Type FieldType
}

// File is a decoded or to-be-encoded backup of one table.
type File struct {
	// Table is the source table. Decoders fill it from the embedded schema name when present.
	Table  string
	Fields []Field
	// Rows hold int64, string or nil values keyed by field name.
	Rows []map[string]interface{}
}

// SchemaName is the record name embedded in the file.
func (f *File) SchemaName() string {
	return f.Table + "_backup"
}

// FieldNames returns the field names in file order.
func (f *File) FieldNames() []string {
	names := make([]string, len(f.Fields))
	for i, fld := range f.Fields {
		names[i] = fld.Name
	}
	return names
}

func tableFromSchemaName(name string) string {
	return strings.TrimSuffix(name, "_backup")
}

// InferFields types each column from the sample row: int when the flattened value is an
// integer, string otherwise (including null).
func InferFields(columns []string, sample map[string]interface{}) []Field {
	fields := make([]Field, len(columns))
	for i, col := range columns {
		fields[i] = Field{Name: col, Type: FieldString}
		if _, ok := flatten(sample[col]).(int64); ok {
			fields[i].Type = FieldInt
		}
	}
	return fields
}

// flatten reduces a store value to int64, float64, bool, string or nil.
func flatten(v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		return x.Format(schema.TimestampLayout)
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.Format(schema.TimestampLayout)
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case float32:
		return float64(x)
	}
	return v
}

// shapeRow fits one store row to the fields. Values of string fields that are not strings are
// stringified; a non-integer in an int field is an error.
func shapeRow(fields []Field, row map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(fields))
	for _, fld := range fields {
		v := flatten(row[fld.Name])
		if v == nil {
			out[fld.Name] = nil
			continue
		}
		switch fld.Type {
		case FieldInt:
			i, ok := v.(int64)
			if !ok {
				return nil, fmt.Errorf("field '%s': value '%v' is not an integer", fld.Name, v)
			}
			out[fld.Name] = i
		default:
			if s, ok := v.(string); ok {
				out[fld.Name] = s
			} else {
				out[fld.Name] = fmt.Sprint(v)
			}
		}
	}
	return out, nil
}
