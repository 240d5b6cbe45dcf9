package config

import (
	"fmt"
	"math"
)

// Type tags the runtime kinds a document value can take.
type Type int

const (
	String Type = iota + 1
	Int
	Float
	Bool
	List
	Map
)

func (t Type) String() string {
	switch t {
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case List:
		return "list"
	case Map:
		return "map"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// TypeOf reports the tag for a decoded document value.
func TypeOf(v any) (Type, bool) {
	switch v.(type) {
	case string:
		return String, true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return Int, true
	case float32, float64:
		return Float, true
	case bool:
		return Bool, true
	case []any, []string:
		return List, true
	case map[string]any:
		return Map, true
	}
	return 0, false
}

// Field is one named, typed configuration value.
// It is only mutated through Config.Set and Config.Load.
type Field struct {
	Name        string
	Description string
	Types       []Type
	Required    bool
	Default     any

	value any
	isSet bool
}

// Value returns the current value and whether one is present.
func (f *Field) Value() (any, bool) {
	return f.value, f.isSet
}

// Accepts reports whether t is one of the field's accepted types.
func (f *Field) Accepts(t Type) bool {
	for _, a := range f.Types {
		if a == t {
			return true
		}
	}
	return false
}

// coerce normalizes v into the representation stored for this field.
// Integral floats are accepted as Int (JSON has one number type), ints are
// accepted as Float, and []string is widened to []any.
func (f *Field) coerce(v any) (any, bool) {
	t, ok := TypeOf(v)
	if !ok {
		return nil, false
	}
	switch t {
	case Int:
		n := toInt64(v)
		if f.Accepts(Int) {
			return int(n), true
		}
		if f.Accepts(Float) {
			return float64(n), true
		}
		return nil, false
	case Float:
		x := toFloat64(v)
		if f.Accepts(Float) {
			return x, true
		}
		if f.Accepts(Int) && x == math.Trunc(x) && !math.IsInf(x, 0) {
			return int(x), true
		}
		return nil, false
	case List:
		if !f.Accepts(List) {
			return nil, false
		}
		if ss, ok := v.([]string); ok {
			out := make([]any, len(ss))
			for i, s := range ss {
				out[i] = s
			}
			return out, true
		}
		return v, true
	}
	if !f.Accepts(t) {
		return nil, false
	}
	return v, true
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	}
	return 0
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	}
	return float64(toInt64(v))
}

func describe(v any) string {
	if t, ok := TypeOf(v); ok {
		return t.String()
	}
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%T", v)
}
