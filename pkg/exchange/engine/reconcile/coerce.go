package reconcile

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/tigerroll/hrsync/pkg/exchange/core/domain/schema"
)

// shape is the runtime form of an untyped value.
type shape int

const (
	shapeNull shape = iota
	shapeString
	shapeInteger
	shapeFloat
	shapeBool
	shapeTime
	shapeOther
)

// coerceFunc converts a value of a known shape to the declared type.
// ok=false means the value cannot be represented.
type coerceFunc func(v interface{}, loc *time.Location) (out interface{}, ok bool)

type coercionKey struct {
	declared schema.ColumnType
	shape    shape
}

// coercions is the complete acceptance table. A (declared type, shape) pair missing here is a type error.
var coercions = map[coercionKey]coerceFunc{
	{schema.Integer, shapeInteger}: keepInteger,
	{schema.Integer, shapeString}:  parseDigits,

	{schema.Float, shapeFloat}:   keepFloat,
	{schema.Float, shapeInteger}: widenInteger,
	{schema.Float, shapeString}:  parseDecimal,

	{schema.Text, shapeString}: keepString,

	{schema.Timestamp, shapeTime}:   keepTime,
	{schema.Timestamp, shapeString}: parseTimestamp,
}

func shapeOf(v interface{}) shape {
	switch n := v.(type) {
	case nil:
		return shapeNull
	case string:
		return shapeString
	case bool:
		return shapeBool
	case time.Time:
		return shapeTime
	case json.Number:
		if _, err := n.Int64(); err == nil {
			return shapeInteger
		}
		if _, err := n.Float64(); err == nil {
			return shapeFloat
		}
		return shapeOther
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return shapeInteger
	case float32, float64:
		return shapeFloat
	}
	return shapeOther
}

// toInt64 normalizes any integer-shaped value.
func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint, uint8, uint16, uint32, uint64:
		u := reflect.ValueOf(n).Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	}
	return 0, false
}

func keepInteger(v interface{}, _ *time.Location) (interface{}, bool) {
	return toInt64(v)
}

// parseDigits accepts non-empty ASCII digit strings only; signs, spaces and decimal points are rejected.
func parseDigits(v interface{}, _ *time.Location) (interface{}, bool) {
	s := v.(string)
	if s == "" || strings.TrimLeft(s, "0123456789") != "" {
		return nil, false
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, false
	}
	return i, true
}

func keepFloat(v interface{}, _ *time.Location) (interface{}, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return nil, false
}

func widenInteger(v interface{}, loc *time.Location) (interface{}, bool) {
	i, ok := toInt64(v)
	if !ok {
		return nil, false
	}
	return float64(i), true
}

// parseDecimal accepts digits with at most one '.', and at least one digit.
func parseDecimal(v interface{}, _ *time.Location) (interface{}, bool) {
	s := v.(string)
	digits := strings.Replace(s, ".", "", 1)
	if digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
		return nil, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, false
	}
	return f, true
}

func keepString(v interface{}, _ *time.Location) (interface{}, bool) {
	return v.(string), true
}

func keepTime(v interface{}, _ *time.Location) (interface{}, bool) {
	return v.(time.Time), true
}

func parseTimestamp(v interface{}, loc *time.Location) (interface{}, bool) {
	t, err := time.ParseInLocation(schema.TimestampLayout, v.(string), loc)
	if err != nil {
		return nil, false
	}
	return t, true
}

// coerce applies the table. It returns the coerced value or the type-error message.
func coerce(col schema.Column, v interface{}, loc *time.Location) (interface{}, string) {
	fn, ok := coercions[coercionKey{col.Type, shapeOf(v)}]
	if ok {
		if out, ok := fn(v, loc); ok {
			return out, ""
		}
	}
	return nil, typeError(col, v)
}

func typeError(col schema.Column, v interface{}) string {
	return fmt.Sprintf("%s: Value '%s' is not of type %s", col.Name, render(v), col.Type)
}

// render formats a value the way it appears in validation messages.
func render(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case json.Number:
		return x.String()
	case time.Time:
		return x.Format(schema.TimestampLayout)
	}
	return fmt.Sprintf("%v", v)
}
