package graph

import (
	"reflect"
)

// SanitizeProperties filters an arbitrary property bag down to values that
// are safe to persist: primitive scalars and sequences of primitive scalars.
// Nested mappings and nil values are dropped silently. Sequence elements are
// filtered the same way; a sequence whose elements were all dropped is
// removed, but a sequence that was empty to begin with is kept. The function
// is total over arbitrary input, never errors, and never mutates props.
func SanitizeProperties(props map[string]interface{}) map[string]interface{} {
	cleaned := make(map[string]interface{}, len(props))
	for key, value := range props {
		if value == nil {
			continue
		}
		if isPrimitive(value) {
			cleaned[key] = value
			continue
		}

		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			continue
		}
		kept := make([]interface{}, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if elem := rv.Index(i).Interface(); isPrimitive(elem) {
				kept = append(kept, elem)
			}
		}
		if rv.Len() > 0 && len(kept) == 0 {
			continue
		}
		cleaned[key] = kept
	}
	return cleaned
}

func isPrimitive(value interface{}) bool {
	switch value.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}
