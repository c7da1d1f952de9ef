package rules

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// toFloat converts any Go numeric value (including json.Number) to float64.
// Booleans are not numbers here.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// valuesEqual is structural equality where numbers compare by value, so an
// int decoded from YAML equals the same float64 decoded from JSON
func valuesEqual(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	switch av.Kind() {
	case reflect.Slice, reflect.Array:
		if bv.Kind() != reflect.Slice && bv.Kind() != reflect.Array {
			return false
		}
		if av.Len() != bv.Len() {
			return false
		}
		for i := 0; i < av.Len(); i++ {
			if !valuesEqual(av.Index(i).Interface(), bv.Index(i).Interface()) {
				return false
			}
		}
		return true
	case reflect.Map:
		if bv.Kind() != reflect.Map || av.Len() != bv.Len() {
			return false
		}
		iter := av.MapRange()
		for iter.Next() {
			other, found := mapGet(b, fmt.Sprint(iter.Key().Interface()))
			if !found || !valuesEqual(iter.Value().Interface(), other) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// compareOrdered orders two numbers or two strings. ok is false for any
// other pairing, including nil operands.
func compareOrdered(a, b any) (cmp int, ok bool) {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		if !bok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

// containsValue tests needle membership in container. Strings test for a
// substring, slices and arrays for an equal element, maps for a key.
// supported is false when container has no notion of membership.
func containsValue(container, needle any) (found, supported bool) {
	if container == nil {
		return false, false
	}
	if s, ok := container.(string); ok {
		sub, ok := needle.(string)
		return ok && strings.Contains(s, sub), true
	}

	cv := reflect.ValueOf(container)
	switch cv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < cv.Len(); i++ {
			if valuesEqual(cv.Index(i).Interface(), needle) {
				return true, true
			}
		}
		return false, true
	case reflect.Map:
		for _, key := range cv.MapKeys() {
			if valuesEqual(key.Interface(), needle) {
				return true, true
			}
		}
		return false, true
	}
	return false, false
}

// truthy reports whether v counts as true: nil, false, zero numbers and
// empty strings, slices and maps do not
func truthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	}
	return fmt.Sprint(v)
}

// mapGet indexes a string-keyed map of any concrete type
func mapGet(m any, key string) (any, bool) {
	if typed, ok := m.(map[string]any); ok {
		v, found := typed[key]
		return v, found
	}
	mv := reflect.ValueOf(m)
	if mv.Kind() != reflect.Map || mv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	v := mv.MapIndex(reflect.ValueOf(key).Convert(mv.Type().Key()))
	if !v.IsValid() {
		return nil, false
	}
	return v.Interface(), true
}
