package modules

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/forthic-lang/forthic-go/forthic"
)

// Common kind-dispatch helpers shared across the built-in modules

func isTruthy(val interface{}) bool {
	if val == nil {
		return false
	}
	switch v := val.(type) {
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string:
		return v != ""
	}
	return true
}

func isIntValue(val interface{}) bool {
	switch val.(type) {
	case int, int64:
		return true
	}
	return false
}

func areEqual(a, b interface{}) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	switch aVal := a.(type) {
	case string:
		if bVal, ok := b.(string); ok {
			return aVal == bVal
		}
	case bool:
		if bVal, ok := b.(bool); ok {
			return aVal == bVal
		}
	case time.Time:
		if bVal, ok := b.(time.Time); ok {
			return aVal.Equal(bVal)
		}
	case []interface{}:
		bVal, ok := b.([]interface{})
		if !ok || len(aVal) != len(bVal) {
			return false
		}
		for i := range aVal {
			if !areEqual(aVal[i], bVal[i]) {
				return false
			}
		}
		return true
	case *forthic.Record:
		bVal, ok := b.(*forthic.Record)
		if !ok || aVal.Length() != bVal.Length() {
			return false
		}
		for _, key := range aVal.Keys() {
			bv, present := bVal.Get(key)
			av, _ := aVal.Get(key)
			if !present || !areEqual(av, bv) {
				return false
			}
		}
		return true
	}

	// Cross-type numeric comparison
	aNum, aOk := toNumericValue(a)
	bNum, bOk := toNumericValue(b)
	if aOk && bOk {
		return aNum == bNum
	}

	return false
}

func toNumericValue(val interface{}) (float64, bool) {
	switch v := val.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case float32:
		return float64(v), true
	}
	return 0, false
}

func toString(val interface{}) string {
	if val == nil {
		return ""
	}
	switch v := val.(type) {
	case string:
		return v
	case int:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%d", v)
	case float64:
		return fmt.Sprintf("%g", v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case time.Time:
		return v.Format("2006-01-02 15:04:05")
	}
	return fmt.Sprintf("%v", val)
}

func toLowerCase(val interface{}) string {
	return strings.ToLower(toString(val))
}

func toInt(val interface{}) int {
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func randInt(n int) int {
	return rand.Intn(n)
}

func asRecord(val interface{}) (*forthic.Record, bool) {
	rec, ok := val.(*forthic.Record)
	return rec, ok
}

func asArray(val interface{}) ([]interface{}, bool) {
	arr, ok := val.([]interface{})
	return arr, ok
}

func containsValue(items []interface{}, val interface{}) bool {
	for _, item := range items {
		if areEqual(item, val) {
			return true
		}
	}
	return false
}
