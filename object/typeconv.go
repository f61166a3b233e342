package object

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
)

// *****************************************************************************
// Coercions
// *****************************************************************************

// ToNumber returns the numeric coercion of any value. Containers coerce to
// their size.
func ToNumber(obj Object) float64 {
	switch obj := obj.(type) {
	case *Atomic:
		return obj.Number()
	case Container:
		return float64(obj.Len())
	default:
		return math.NaN()
	}
}

// ToString returns the string coercion of any value.
func ToString(obj Object) string {
	if obj == nil {
		return "null"
	}
	return obj.String()
}

// ToBool returns the boolean coercion of any value.
func ToBool(obj Object) bool {
	if obj == nil {
		return false
	}
	return obj.IsTruthy()
}

// IsNull reports whether obj is nil or the null atomic.
func IsNull(obj Object) bool {
	if obj == nil {
		return true
	}
	a, ok := obj.(*Atomic)
	return ok && a.IsNull()
}

// *****************************************************************************
// Type assertion helpers
// *****************************************************************************

func AsList(obj Object) (*List, error) {
	ls, ok := obj.(*List)
	if !ok {
		return nil, fmt.Errorf("type error: expected a list (%s given)", obj.Type())
	}
	return ls, nil
}

func AsMap(obj Object) (*Map, error) {
	m, ok := obj.(*Map)
	if !ok {
		return nil, fmt.Errorf("type error: expected an object (%s given)", obj.Type())
	}
	return m, nil
}

func AsAtomic(obj Object) (*Atomic, error) {
	a, ok := obj.(*Atomic)
	if !ok {
		return nil, fmt.Errorf("type error: expected an atomic value (%s given)", obj.Type())
	}
	return a, nil
}

// *****************************************************************************
// Converting Go values to objects
// *****************************************************************************

// FromGo converts a Go value into a value graph. Containers register a
// reference to each converted child.
func FromGo(v any) (Object, error) {
	switch v := v.(type) {
	case nil:
		return Null, nil
	case Object:
		return v, nil
	case bool:
		return NewBool(v), nil
	case string:
		return NewString(v), nil
	case int:
		return NewInt(int64(v)), nil
	case int8:
		return NewInt(int64(v)), nil
	case int16:
		return NewInt(int64(v)), nil
	case int32:
		return NewInt(int64(v)), nil
	case int64:
		return NewInt(v), nil
	case uint:
		return NewNumber(float64(v)), nil
	case uint8:
		return NewNumber(float64(v)), nil
	case uint16:
		return NewNumber(float64(v)), nil
	case uint32:
		return NewNumber(float64(v)), nil
	case uint64:
		return NewNumber(float64(v)), nil
	case float32:
		return NewNumber(float64(v)), nil
	case float64:
		return NewNumber(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("type error: invalid number %q", v.String())
		}
		return NewNumber(f), nil
	case []Object:
		return NewList(v...), nil
	case []any:
		ls := NewList()
		for _, item := range v {
			child, err := FromGo(item)
			if err != nil {
				ls.Close()
				return nil, err
			}
			ls.Append(child)
		}
		return ls, nil
	case []string:
		ls := NewList()
		for _, item := range v {
			ls.Append(NewString(item))
		}
		return ls, nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := NewMap()
		for _, k := range keys {
			child, err := FromGo(v[k])
			if err != nil {
				m.Close()
				return nil, err
			}
			m.Put(k, child)
		}
		return m, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return FromGo(items)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		entries := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			entries[iter.Key().String()] = iter.Value().Interface()
		}
		return FromGo(entries)
	}
	return nil, fmt.Errorf("type error: unable to convert %T to a value", v)
}
