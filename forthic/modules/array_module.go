package modules

import (
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/forthic-lang/forthic-go/forthic"
)

// ArrayModule provides collection operations over arrays and records.
// Arrays operate over their index sequence; records preserve insertion
// order and keys throughout.
type ArrayModule struct {
	*forthic.Module
}

// NewArrayModule creates a new array module
func NewArrayModule() *ArrayModule {
	m := &ArrayModule{
		Module: forthic.NewModule("array"),
	}
	m.registerWords()
	return m
}

func (m *ArrayModule) registerWords() {
	// Basic operations
	m.AddModuleWord("APPEND", m.append_word)
	m.AddModuleWord("REVERSE", m.reverse)
	m.AddModuleWord("UNIQUE", m.unique)
	m.AddModuleWord("LENGTH", m.length)

	// Access operations
	m.AddModuleWord("NTH", m.nth)
	m.AddModuleWord("LAST", m.last)
	m.AddModuleWord("SLICE", m.slice)
	m.AddModuleWord("TAKE", m.take)
	m.AddModuleWord("DROP", m.drop)
	m.AddModuleWord("KEY-OF", m.keyOf)

	// Set operations
	m.AddModuleWord("DIFFERENCE", m.difference)
	m.AddModuleWord("INTERSECTION", m.intersection)
	m.AddModuleWord("UNION", m.union)

	// Sort and shuffle
	m.AddModuleWord("SORT", m.sortArray)
	m.AddModuleWord("SORT-w/FORTHIC", m.sortWithForthic)
	m.AddModuleWord("SORT-w/KEY-FUNC", m.sortWithKeyFunc)
	m.AddModuleWord("FIELD-KEY-FUNC", m.fieldKeyFunc)
	m.AddModuleWord("SHUFFLE", m.shuffle)
	m.AddModuleWord("ROTATE", m.rotate)
	m.AddModuleWord("ROTATE-ELEMENT", m.rotateElement)

	// Combine
	m.AddModuleWord("ZIP", m.zip)
	m.AddModuleWord("ZIP-WITH", m.zipWith)
	m.AddModuleWord("FLATTEN", m.flatten)
	m.AddModuleWord("UNPACK", m.unpack)

	// Group and index
	m.AddModuleWord("INDEX", m.index)
	m.AddModuleWord("BY-FIELD", m.byField)
	m.AddModuleWord("GROUP-BY-FIELD", m.groupByField)
	m.AddModuleWord("GROUP-BY", m.groupBy)
	m.AddModuleWord("GROUP-BY-w/KEY", m.groupByWithKey)
	m.AddModuleWord("GROUPS-OF", m.groupsOf)

	// Transform
	m.AddModuleWord("MAP", m.mapWord)
	m.AddModuleWord("MAP-w/KEY", m.mapWithKey)
	m.AddModuleWord("SELECT", m.selectWord)
	m.AddModuleWord("SELECT-w/KEY", m.selectWithKey)
	m.AddModuleWord("REDUCE", m.reduce)
	m.AddModuleWord("FOREACH", m.foreach)
	m.AddModuleWord("FOREACH-w/KEY", m.foreachWithKey)
	m.AddModuleWord("FOREACH>ERRORS", m.foreachToErrors)
	m.AddModuleWord("<REPEAT", m.repeat)
}

// ========================================
// Basic Operations
// ========================================

func (m *ArrayModule) append_word(interp *forthic.Interpreter) error {
	item := interp.StackPop()
	container := interp.StackPop()

	if container == nil {
		interp.StackPush([]interface{}{item})
		return nil
	}

	if arr, ok := asArray(container); ok {
		result := append(arr, item)
		interp.StackPush(result)
		return nil
	}

	if rec, ok := asRecord(container); ok {
		// For records, the item is a [key, value] pair
		result := rec.Dup()
		if pair, ok := asArray(item); ok && len(pair) == 2 {
			result.Set(toString(pair[0]), pair[1])
		}
		interp.StackPush(result)
		return nil
	}

	interp.StackPush(container)
	return nil
}

func (m *ArrayModule) reverse(interp *forthic.Interpreter) error {
	container := interp.StackPop()

	if arr, ok := asArray(container); ok {
		result := make([]interface{}, len(arr))
		for i, v := range arr {
			result[len(arr)-1-i] = v
		}
		interp.StackPush(result)
	} else {
		// Records are unordered by reversal: no-op
		interp.StackPush(container)
	}
	return nil
}

func (m *ArrayModule) unique(interp *forthic.Interpreter) error {
	container := interp.StackPop()

	if arr, ok := asArray(container); ok {
		result := []interface{}{}
		for _, item := range arr {
			if !containsValue(result, item) {
				result = append(result, item)
			}
		}
		interp.StackPush(result)
		return nil
	}

	if rec, ok := asRecord(container); ok {
		// Dedup by value; the first key holding a value wins
		result := forthic.NewRecord()
		seen := []interface{}{}
		for _, key := range rec.Keys() {
			val, _ := rec.Get(key)
			if !containsValue(seen, val) {
				seen = append(seen, val)
				result.Set(key, val)
			}
		}
		interp.StackPush(result)
		return nil
	}

	interp.StackPush(container)
	return nil
}

func (m *ArrayModule) length(interp *forthic.Interpreter) error {
	container := interp.StackPop()

	if container == nil {
		interp.StackPush(int64(0))
		return nil
	}

	if arr, ok := asArray(container); ok {
		interp.StackPush(int64(len(arr)))
	} else if rec, ok := asRecord(container); ok {
		interp.StackPush(int64(rec.Length()))
	} else if str, ok := container.(string); ok {
		interp.StackPush(int64(utf8.RuneCountInString(str)))
	} else {
		interp.StackPush(int64(0))
	}
	return nil
}

// ========================================
// Access Operations
// ========================================

func (m *ArrayModule) nth(interp *forthic.Interpreter) error {
	n := interp.StackPop()
	container := interp.StackPop()

	if container == nil || n == nil {
		interp.StackPush(nil)
		return nil
	}

	index := toInt(n)

	if arr, ok := asArray(container); ok {
		if index < 0 || index >= len(arr) {
			interp.StackPush(nil)
			return nil
		}
		interp.StackPush(arr[index])
		return nil
	}

	if rec, ok := asRecord(container); ok {
		values := rec.Values()
		if index < 0 || index >= len(values) {
			interp.StackPush(nil)
			return nil
		}
		interp.StackPush(values[index])
		return nil
	}

	interp.StackPush(nil)
	return nil
}

func (m *ArrayModule) last(interp *forthic.Interpreter) error {
	container := interp.StackPop()

	if arr, ok := asArray(container); ok {
		if len(arr) == 0 {
			interp.StackPush(nil)
			return nil
		}
		interp.StackPush(arr[len(arr)-1])
		return nil
	}

	if rec, ok := asRecord(container); ok {
		values := rec.Values()
		if len(values) == 0 {
			interp.StackPush(nil)
			return nil
		}
		interp.StackPush(values[len(values)-1])
		return nil
	}

	interp.StackPush(nil)
	return nil
}

// sliceIndices yields the inclusive index walk for SLICE, supporting
// negative indices and reversed slices
func sliceIndices(startVal, endVal, length int) []int {
	start := startVal
	end := endVal
	if start < 0 {
		start = length + start
	}
	if end < 0 {
		end = length + end
	}

	result := []int{}
	if start <= end {
		for i := start; i <= end; i++ {
			result = append(result, i)
		}
	} else {
		for i := start; i >= end; i-- {
			result = append(result, i)
		}
	}
	return result
}

func (m *ArrayModule) slice(interp *forthic.Interpreter) error {
	endVal := interp.StackPop()
	startVal := interp.StackPop()
	container := interp.StackPop()

	if container == nil {
		interp.StackPush(nil)
		return nil
	}

	if arr, ok := asArray(container); ok {
		indices := sliceIndices(toInt(startVal), toInt(endVal), len(arr))
		result := make([]interface{}, 0, len(indices))
		for _, i := range indices {
			if i >= 0 && i < len(arr) {
				result = append(result, arr[i])
			} else {
				// Out-of-range array endpoints pad with null
				result = append(result, nil)
			}
		}
		interp.StackPush(result)
		return nil
	}

	if rec, ok := asRecord(container); ok {
		keys := rec.Keys()
		indices := sliceIndices(toInt(startVal), toInt(endVal), len(keys))
		result := forthic.NewRecord()
		for _, i := range indices {
			// Out-of-range record endpoints clip silently
			if i >= 0 && i < len(keys) {
				val, _ := rec.Get(keys[i])
				result.Set(keys[i], val)
			}
		}
		interp.StackPush(result)
		return nil
	}

	interp.StackPush(nil)
	return nil
}

// take splits off the first n elements: ( container n -- rest taken )
func (m *ArrayModule) take(interp *forthic.Interpreter) error {
	n := interp.StackPop()
	container := interp.StackPop()

	count := toInt(n)

	if arr, ok := asArray(container); ok {
		if count < 0 {
			count = 0
		}
		if count > len(arr) {
			count = len(arr)
		}
		taken := arr[:count]
		rest := arr[count:]
		interp.StackPush(rest)
		interp.StackPush(taken)
		return nil
	}

	if rec, ok := asRecord(container); ok {
		keys := rec.Keys()
		if count < 0 {
			count = 0
		}
		if count > len(keys) {
			count = len(keys)
		}
		taken := forthic.NewRecord()
		rest := forthic.NewRecord()
		for i, key := range keys {
			val, _ := rec.Get(key)
			if i < count {
				taken.Set(key, val)
			} else {
				rest.Set(key, val)
			}
		}
		interp.StackPush(rest)
		interp.StackPush(taken)
		return nil
	}

	interp.StackPush(container)
	interp.StackPush(nil)
	return nil
}

func (m *ArrayModule) drop(interp *forthic.Interpreter) error {
	n := interp.StackPop()
	container := interp.StackPop()

	count := toInt(n)

	if arr, ok := asArray(container); ok {
		if count < 0 {
			count = 0
		}
		if count > len(arr) {
			count = len(arr)
		}
		interp.StackPush(arr[count:])
		return nil
	}

	if rec, ok := asRecord(container); ok {
		keys := rec.Keys()
		result := forthic.NewRecord()
		for i, key := range keys {
			if i >= count {
				val, _ := rec.Get(key)
				result.Set(key, val)
			}
		}
		interp.StackPush(result)
		return nil
	}

	interp.StackPush(container)
	return nil
}

func (m *ArrayModule) keyOf(interp *forthic.Interpreter) error {
	value := interp.StackPop()
	container := interp.StackPop()

	if arr, ok := asArray(container); ok {
		for i, item := range arr {
			if areEqual(item, value) {
				interp.StackPush(int64(i))
				return nil
			}
		}
		interp.StackPush(nil)
		return nil
	}

	if rec, ok := asRecord(container); ok {
		for _, key := range rec.Keys() {
			val, _ := rec.Get(key)
			if areEqual(val, value) {
				interp.StackPush(key)
				return nil
			}
		}
		interp.StackPush(nil)
		return nil
	}

	interp.StackPush(nil)
	return nil
}

// ========================================
// Set Operations
// ========================================

func (m *ArrayModule) difference(interp *forthic.Interpreter) error {
	second := interp.StackPop()
	first := interp.StackPop()

	if arr1, ok := asArray(first); ok {
		arr2, _ := asArray(second)
		result := []interface{}{}
		for _, item := range arr1 {
			if !containsValue(arr2, item) {
				result = append(result, item)
			}
		}
		interp.StackPush(result)
		return nil
	}

	if rec1, ok := asRecord(first); ok {
		rec2, ok2 := asRecord(second)
		result := forthic.NewRecord()
		for _, key := range rec1.Keys() {
			if ok2 && rec2.Has(key) {
				continue
			}
			val, _ := rec1.Get(key)
			result.Set(key, val)
		}
		interp.StackPush(result)
		return nil
	}

	interp.StackPush(first)
	return nil
}

func (m *ArrayModule) intersection(interp *forthic.Interpreter) error {
	second := interp.StackPop()
	first := interp.StackPop()

	if arr1, ok := asArray(first); ok {
		arr2, _ := asArray(second)
		result := []interface{}{}
		for _, item := range arr1 {
			if containsValue(arr2, item) && !containsValue(result, item) {
				result = append(result, item)
			}
		}
		interp.StackPush(result)
		return nil
	}

	if rec1, ok := asRecord(first); ok {
		rec2, ok2 := asRecord(second)
		result := forthic.NewRecord()
		if ok2 {
			for _, key := range rec1.Keys() {
				if rec2.Has(key) {
					val, _ := rec1.Get(key)
					result.Set(key, val)
				}
			}
		}
		interp.StackPush(result)
		return nil
	}

	interp.StackPush(first)
	return nil
}

func (m *ArrayModule) union(interp *forthic.Interpreter) error {
	second := interp.StackPop()
	first := interp.StackPop()

	if arr1, ok := asArray(first); ok {
		arr2, _ := asArray(second)
		result := []interface{}{}
		for _, item := range arr1 {
			if !containsValue(result, item) {
				result = append(result, item)
			}
		}
		for _, item := range arr2 {
			if !containsValue(result, item) {
				result = append(result, item)
			}
		}
		interp.StackPush(result)
		return nil
	}

	if rec1, ok := asRecord(first); ok {
		result := rec1.Dup()
		if rec2, ok2 := asRecord(second); ok2 {
			for _, key := range rec2.Keys() {
				if !result.Has(key) {
					val, _ := rec2.Get(key)
					result.Set(key, val)
				}
			}
		}
		interp.StackPush(result)
		return nil
	}

	interp.StackPush(first)
	return nil
}

// ========================================
// Sort and Shuffle
// ========================================

func (m *ArrayModule) sortArray(interp *forthic.Interpreter) error {
	container := interp.StackPop()

	arr, ok := asArray(container)
	if !ok {
		// Records have no sort order: no-op
		interp.StackPush(container)
		return nil
	}

	result := make([]interface{}, len(arr))
	copy(result, arr)

	sort.SliceStable(result, func(i, j int) bool {
		return compareValues(result[i], result[j]) < 0
	})

	interp.StackPush(result)
	return nil
}

// sortWithForthic sorts by a key computed by a Forthic expression per element
func (m *ArrayModule) sortWithForthic(interp *forthic.Interpreter) error {
	forthicCode := interp.StackPop()
	container := interp.StackPop()

	codeStr, ok := forthicCode.(string)
	arr, ok2 := asArray(container)
	if !ok || !ok2 {
		interp.StackPush(container)
		return nil
	}

	keys := make([]interface{}, len(arr))
	for i, item := range arr {
		interp.StackPush(item)
		err := interp.Run(codeStr)
		if err != nil {
			return err
		}
		keys[i] = interp.StackPop()
	}

	indices := make([]int, len(arr))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		return compareValues(keys[indices[a]], keys[indices[b]]) < 0
	})

	result := make([]interface{}, len(arr))
	for i, idx := range indices {
		result[i] = arr[idx]
	}
	interp.StackPush(result)
	return nil
}

// sortWithKeyFunc sorts using a key-function word reference (or NULL for
// the default ordering)
func (m *ArrayModule) sortWithKeyFunc(interp *forthic.Interpreter) error {
	keyFunc := interp.StackPop()
	container := interp.StackPop()

	arr, ok := asArray(container)
	if !ok {
		interp.StackPush(container)
		return nil
	}

	word, _ := keyFunc.(forthic.Word)

	keys := make([]interface{}, len(arr))
	for i, item := range arr {
		if word == nil {
			keys[i] = item
			continue
		}
		interp.StackPush(item)
		err := word.Execute(interp)
		if err != nil {
			return err
		}
		keys[i] = interp.StackPop()
	}

	indices := make([]int, len(arr))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		return compareValues(keys[indices[a]], keys[indices[b]]) < 0
	})

	result := make([]interface{}, len(arr))
	for i, idx := range indices {
		result[i] = arr[idx]
	}
	interp.StackPush(result)
	return nil
}

// fieldKeyFunc pushes a word reference that maps a record to one of its fields
func (m *ArrayModule) fieldKeyFunc(interp *forthic.Interpreter) error {
	field := interp.StackPop()
	fieldStr := toString(field)

	word := forthic.NewModuleWord("FIELD-KEY-FUNC."+fieldStr, func(ip *forthic.Interpreter) error {
		item := ip.StackPop()
		if rec, ok := asRecord(item); ok {
			val, _ := rec.Get(fieldStr)
			ip.StackPush(val)
		} else {
			ip.StackPush(nil)
		}
		return nil
	})

	interp.StackPush(word)
	return nil
}

func (m *ArrayModule) shuffle(interp *forthic.Interpreter) error {
	container := interp.StackPop()

	arr, ok := asArray(container)
	if !ok || len(arr) == 0 {
		// Records are unordered by shuffling: no-op
		interp.StackPush(container)
		return nil
	}

	result := make([]interface{}, len(arr))
	copy(result, arr)

	// Fisher-Yates shuffle
	for i := len(result) - 1; i > 0; i-- {
		j := randInt(i + 1)
		result[i], result[j] = result[j], result[i]
	}

	interp.StackPush(result)
	return nil
}

func (m *ArrayModule) rotate(interp *forthic.Interpreter) error {
	container := interp.StackPop()

	arr, ok := asArray(container)
	if !ok || len(arr) == 0 {
		interp.StackPush(container)
		return nil
	}

	// Move last element to front
	result := make([]interface{}, len(arr))
	result[0] = arr[len(arr)-1]
	copy(result[1:], arr[:len(arr)-1])

	interp.StackPush(result)
	return nil
}

// rotateElement moves the matching element to the front; absent values
// leave the array unchanged
func (m *ArrayModule) rotateElement(interp *forthic.Interpreter) error {
	element := interp.StackPop()
	container := interp.StackPop()

	arr, ok := asArray(container)
	if !ok {
		interp.StackPush(container)
		return nil
	}

	pos := -1
	for i, item := range arr {
		if areEqual(item, element) {
			pos = i
			break
		}
	}
	if pos < 0 {
		interp.StackPush(arr)
		return nil
	}

	result := make([]interface{}, 0, len(arr))
	result = append(result, arr[pos])
	result = append(result, arr[:pos]...)
	result = append(result, arr[pos+1:]...)
	interp.StackPush(result)
	return nil
}

// ========================================
// Combine Operations
// ========================================

func (m *ArrayModule) zip(interp *forthic.Interpreter) error {
	second := interp.StackPop()
	first := interp.StackPop()

	if arr1, ok := asArray(first); ok {
		arr2, _ := asArray(second)
		minLen := len(arr1)
		if len(arr2) < minLen {
			minLen = len(arr2)
		}
		result := make([]interface{}, minLen)
		for i := 0; i < minLen; i++ {
			result[i] = []interface{}{arr1[i], arr2[i]}
		}
		interp.StackPush(result)
		return nil
	}

	if rec1, ok := asRecord(first); ok {
		rec2, ok2 := asRecord(second)
		result := forthic.NewRecord()
		for _, key := range rec1.Keys() {
			v1, _ := rec1.Get(key)
			var v2 interface{}
			if ok2 {
				v2, _ = rec2.Get(key)
			}
			result.Set(key, []interface{}{v1, v2})
		}
		interp.StackPush(result)
		return nil
	}

	interp.StackPush(nil)
	return nil
}

func (m *ArrayModule) zipWith(interp *forthic.Interpreter) error {
	forthicCode := interp.StackPop()
	second := interp.StackPop()
	first := interp.StackPop()

	codeStr, ok := forthicCode.(string)
	if !ok {
		interp.StackPush(nil)
		return nil
	}

	if arr1, ok := asArray(first); ok {
		arr2, _ := asArray(second)
		result := make([]interface{}, 0, len(arr1))
		for i := 0; i < len(arr1); i++ {
			var value2 interface{}
			if i < len(arr2) {
				value2 = arr2[i]
			}
			interp.StackPush(arr1[i])
			interp.StackPush(value2)
			err := interp.Run(codeStr)
			if err != nil {
				return err
			}
			result = append(result, interp.StackPop())
		}
		interp.StackPush(result)
		return nil
	}

	if rec1, ok := asRecord(first); ok {
		rec2, ok2 := asRecord(second)
		result := forthic.NewRecord()
		for _, key := range rec1.Keys() {
			v1, _ := rec1.Get(key)
			var v2 interface{}
			if ok2 {
				v2, _ = rec2.Get(key)
			}
			interp.StackPush(v1)
			interp.StackPush(v2)
			err := interp.Run(codeStr)
			if err != nil {
				return err
			}
			result.Set(key, interp.StackPop())
		}
		interp.StackPush(result)
		return nil
	}

	interp.StackPush(nil)
	return nil
}

func (m *ArrayModule) flatten(interp *forthic.Interpreter) error {
	container := interp.StackPop()

	if arr, ok := asArray(container); ok {
		interp.StackPush(flattenArray(arr))
		return nil
	}

	if rec, ok := asRecord(container); ok {
		result := forthic.NewRecord()
		flattenRecord(rec, "", result)
		interp.StackPush(result)
		return nil
	}

	interp.StackPush(container)
	return nil
}

func (m *ArrayModule) unpack(interp *forthic.Interpreter) error {
	container := interp.StackPop()

	if container == nil {
		return nil
	}

	if arr, ok := asArray(container); ok {
		for _, item := range arr {
			interp.StackPush(item)
		}
		return nil
	}

	if rec, ok := asRecord(container); ok {
		for _, val := range rec.Values() {
			interp.StackPush(val)
		}
	}

	return nil
}

// ========================================
// Group and Index Operations
// ========================================

// index groups items under each lowercased key produced by a Forthic
// expression per item
func (m *ArrayModule) index(interp *forthic.Interpreter) error {
	forthicCode := interp.StackPop()
	items := interp.StackPop()

	codeStr, ok := forthicCode.(string)
	slice, ok2 := asArray(items)
	if !ok || !ok2 {
		interp.StackPush(forthic.NewRecord())
		return nil
	}

	result := forthic.NewRecord()
	for _, item := range slice {
		interp.StackPush(item)
		err := interp.Run(codeStr)
		if err != nil {
			return err
		}
		keys := interp.StackPop()
		keyArr, ok := asArray(keys)
		if !ok {
			continue
		}
		for _, k := range keyArr {
			keyStr := toLowerCase(k)
			if existing, found := result.Get(keyStr); found {
				result.Set(keyStr, append(existing.([]interface{}), item))
			} else {
				result.Set(keyStr, []interface{}{item})
			}
		}
	}

	interp.StackPush(result)
	return nil
}

// containerValues returns the iterable values of an array or record
func containerValues(container interface{}) ([]interface{}, bool) {
	if arr, ok := asArray(container); ok {
		return arr, true
	}
	if rec, ok := asRecord(container); ok {
		return rec.Values(), true
	}
	return nil, false
}

func (m *ArrayModule) byField(interp *forthic.Interpreter) error {
	field := interp.StackPop()
	container := interp.StackPop()

	fieldStr, ok := field.(string)
	values, ok2 := containerValues(container)
	if !ok || !ok2 {
		interp.StackPush(forthic.NewRecord())
		return nil
	}

	result := forthic.NewRecord()
	for _, v := range values {
		rec, ok := asRecord(v)
		if !ok {
			continue
		}
		if fieldVal, found := rec.Get(fieldStr); found {
			result.Set(toString(fieldVal), v)
		}
	}

	interp.StackPush(result)
	return nil
}

func groupInto(result *forthic.Record, key string, item interface{}) {
	if existing, found := result.Get(key); found {
		result.Set(key, append(existing.([]interface{}), item))
	} else {
		result.Set(key, []interface{}{item})
	}
}

func (m *ArrayModule) groupByField(interp *forthic.Interpreter) error {
	field := interp.StackPop()
	container := interp.StackPop()

	fieldStr, ok := field.(string)
	values, ok2 := containerValues(container)
	if !ok || !ok2 {
		interp.StackPush(forthic.NewRecord())
		return nil
	}

	result := forthic.NewRecord()
	for _, v := range values {
		rec, ok := asRecord(v)
		if !ok {
			continue
		}
		fieldVal, found := rec.Get(fieldStr)
		if !found {
			continue
		}
		// An array-valued field files the item under every value
		if fieldArr, ok := asArray(fieldVal); ok {
			for _, fv := range fieldArr {
				groupInto(result, toString(fv), v)
			}
		} else {
			groupInto(result, toString(fieldVal), v)
		}
	}

	interp.StackPush(result)
	return nil
}

func (m *ArrayModule) groupBy(interp *forthic.Interpreter) error {
	forthicCode := interp.StackPop()
	items := interp.StackPop()

	codeStr, ok := forthicCode.(string)
	values, ok2 := containerValues(items)
	if !ok || !ok2 {
		interp.StackPush(forthic.NewRecord())
		return nil
	}

	result := forthic.NewRecord()
	for _, item := range values {
		interp.StackPush(item)
		err := interp.Run(codeStr)
		if err != nil {
			return err
		}
		groupInto(result, toString(interp.StackPop()), item)
	}

	interp.StackPush(result)
	return nil
}

// groupByWithKey is GROUP-BY where the expression sees both key and value;
// array keys are indices
func (m *ArrayModule) groupByWithKey(interp *forthic.Interpreter) error {
	forthicCode := interp.StackPop()
	items := interp.StackPop()

	codeStr, ok := forthicCode.(string)
	if !ok {
		interp.StackPush(forthic.NewRecord())
		return nil
	}

	result := forthic.NewRecord()

	if arr, ok := asArray(items); ok {
		for i, item := range arr {
			interp.StackPush(int64(i))
			interp.StackPush(item)
			err := interp.Run(codeStr)
			if err != nil {
				return err
			}
			groupInto(result, toString(interp.StackPop()), item)
		}
		interp.StackPush(result)
		return nil
	}

	if rec, ok := asRecord(items); ok {
		for _, key := range rec.Keys() {
			item, _ := rec.Get(key)
			interp.StackPush(key)
			interp.StackPush(item)
			err := interp.Run(codeStr)
			if err != nil {
				return err
			}
			groupInto(result, toString(interp.StackPop()), item)
		}
		interp.StackPush(result)
		return nil
	}

	interp.StackPush(result)
	return nil
}

func (m *ArrayModule) groupsOf(interp *forthic.Interpreter) error {
	n := interp.StackPop()
	container := interp.StackPop()

	groupSize := toInt(n)
	if groupSize <= 0 {
		return forthic.NewGlobalModuleError("GROUPS-OF requires group size > 0")
	}

	if arr, ok := asArray(container); ok {
		numGroups := (len(arr) + groupSize - 1) / groupSize
		result := make([]interface{}, numGroups)
		for i := 0; i < numGroups; i++ {
			start := i * groupSize
			end := start + groupSize
			if end > len(arr) {
				end = len(arr)
			}
			result[i] = arr[start:end]
		}
		interp.StackPush(result)
		return nil
	}

	if rec, ok := asRecord(container); ok {
		keys := rec.Keys()
		result := []interface{}{}
		for start := 0; start < len(keys); start += groupSize {
			end := start + groupSize
			if end > len(keys) {
				end = len(keys)
			}
			group := forthic.NewRecord()
			for _, key := range keys[start:end] {
				val, _ := rec.Get(key)
				group.Set(key, val)
			}
			result = append(result, group)
		}
		interp.StackPush(result)
		return nil
	}

	interp.StackPush([]interface{}{})
	return nil
}

// ========================================
// Transform Operations
// ========================================

func (m *ArrayModule) mapWord(interp *forthic.Interpreter) error {
	forthicCode := interp.StackPop()
	container := interp.StackPop()

	codeStr, ok := forthicCode.(string)
	if !ok {
		interp.StackPush(container)
		return nil
	}

	if arr, ok := asArray(container); ok {
		result := make([]interface{}, len(arr))
		for i, item := range arr {
			interp.StackPush(item)
			err := interp.Run(codeStr)
			if err != nil {
				return err
			}
			result[i] = interp.StackPop()
		}
		interp.StackPush(result)
		return nil
	}

	if rec, ok := asRecord(container); ok {
		result := forthic.NewRecord()
		for _, key := range rec.Keys() {
			val, _ := rec.Get(key)
			interp.StackPush(val)
			err := interp.Run(codeStr)
			if err != nil {
				return err
			}
			result.Set(key, interp.StackPop())
		}
		interp.StackPush(result)
		return nil
	}

	interp.StackPush(container)
	return nil
}

func (m *ArrayModule) mapWithKey(interp *forthic.Interpreter) error {
	forthicCode := interp.StackPop()
	container := interp.StackPop()

	codeStr, ok := forthicCode.(string)
	if !ok {
		interp.StackPush(container)
		return nil
	}

	if arr, ok := asArray(container); ok {
		result := make([]interface{}, len(arr))
		for i, item := range arr {
			interp.StackPush(int64(i))
			interp.StackPush(item)
			err := interp.Run(codeStr)
			if err != nil {
				return err
			}
			result[i] = interp.StackPop()
		}
		interp.StackPush(result)
		return nil
	}

	if rec, ok := asRecord(container); ok {
		result := forthic.NewRecord()
		for _, key := range rec.Keys() {
			val, _ := rec.Get(key)
			interp.StackPush(key)
			interp.StackPush(val)
			err := interp.Run(codeStr)
			if err != nil {
				return err
			}
			result.Set(key, interp.StackPop())
		}
		interp.StackPush(result)
		return nil
	}

	interp.StackPush(container)
	return nil
}

func (m *ArrayModule) selectWord(interp *forthic.Interpreter) error {
	forthicCode := interp.StackPop()
	container := interp.StackPop()

	codeStr, ok := forthicCode.(string)
	if !ok {
		interp.StackPush(container)
		return nil
	}

	if arr, ok := asArray(container); ok {
		result := []interface{}{}
		for _, item := range arr {
			interp.StackPush(item)
			err := interp.Run(codeStr)
			if err != nil {
				return err
			}
			if isTruthy(interp.StackPop()) {
				result = append(result, item)
			}
		}
		interp.StackPush(result)
		return nil
	}

	if rec, ok := asRecord(container); ok {
		result := forthic.NewRecord()
		for _, key := range rec.Keys() {
			val, _ := rec.Get(key)
			interp.StackPush(val)
			err := interp.Run(codeStr)
			if err != nil {
				return err
			}
			if isTruthy(interp.StackPop()) {
				result.Set(key, val)
			}
		}
		interp.StackPush(result)
		return nil
	}

	interp.StackPush(container)
	return nil
}

func (m *ArrayModule) selectWithKey(interp *forthic.Interpreter) error {
	forthicCode := interp.StackPop()
	container := interp.StackPop()

	codeStr, ok := forthicCode.(string)
	if !ok {
		interp.StackPush(container)
		return nil
	}

	if arr, ok := asArray(container); ok {
		result := []interface{}{}
		for i, item := range arr {
			interp.StackPush(int64(i))
			interp.StackPush(item)
			err := interp.Run(codeStr)
			if err != nil {
				return err
			}
			if isTruthy(interp.StackPop()) {
				result = append(result, item)
			}
		}
		interp.StackPush(result)
		return nil
	}

	if rec, ok := asRecord(container); ok {
		result := forthic.NewRecord()
		for _, key := range rec.Keys() {
			val, _ := rec.Get(key)
			interp.StackPush(key)
			interp.StackPush(val)
			err := interp.Run(codeStr)
			if err != nil {
				return err
			}
			if isTruthy(interp.StackPop()) {
				result.Set(key, val)
			}
		}
		interp.StackPush(result)
		return nil
	}

	interp.StackPush(container)
	return nil
}

func (m *ArrayModule) reduce(interp *forthic.Interpreter) error {
	forthicCode := interp.StackPop()
	initial := interp.StackPop()
	container := interp.StackPop()

	codeStr, ok := forthicCode.(string)
	values, ok2 := containerValues(container)
	if !ok || !ok2 {
		interp.StackPush(initial)
		return nil
	}

	accumulator := initial
	for _, item := range values {
		interp.StackPush(accumulator)
		interp.StackPush(item)
		err := interp.Run(codeStr)
		if err != nil {
			return err
		}
		accumulator = interp.StackPop()
	}

	interp.StackPush(accumulator)
	return nil
}

// ========================================
// Iteration Operations
// ========================================

func (m *ArrayModule) foreach(interp *forthic.Interpreter) error {
	forthicCode := interp.StackPop()
	items := interp.StackPop()

	codeStr, ok := forthicCode.(string)
	if !ok || items == nil {
		return nil
	}

	values, ok := containerValues(items)
	if !ok {
		return nil
	}

	for _, item := range values {
		interp.StackPush(item)
		err := interp.Run(codeStr)
		if err != nil {
			return err
		}
	}

	return nil
}

func (m *ArrayModule) foreachWithKey(interp *forthic.Interpreter) error {
	forthicCode := interp.StackPop()
	items := interp.StackPop()

	codeStr, ok := forthicCode.(string)
	if !ok || items == nil {
		return nil
	}

	if arr, ok := asArray(items); ok {
		for i, item := range arr {
			interp.StackPush(int64(i))
			interp.StackPush(item)
			err := interp.Run(codeStr)
			if err != nil {
				return err
			}
		}
		return nil
	}

	if rec, ok := asRecord(items); ok {
		for _, key := range rec.Keys() {
			item, _ := rec.Get(key)
			interp.StackPush(key)
			interp.StackPush(item)
			err := interp.Run(codeStr)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// foreachToErrors runs the body per element, collecting the per-element
// error (or null) into a parallel array instead of aborting
func (m *ArrayModule) foreachToErrors(interp *forthic.Interpreter) error {
	forthicCode := interp.StackPop()
	items := interp.StackPop()

	codeStr, ok := forthicCode.(string)
	if !ok || items == nil {
		interp.StackPush([]interface{}{})
		return nil
	}

	values, ok := containerValues(items)
	if !ok {
		interp.StackPush([]interface{}{})
		return nil
	}

	errors := make([]interface{}, 0, len(values))
	for _, item := range values {
		interp.StackPush(item)
		err := runRecovering(interp, codeStr)
		if err != nil {
			errors = append(errors, err)
		} else {
			errors = append(errors, nil)
		}
	}

	interp.StackPush(errors)
	return nil
}

// runRecovering runs Forthic code, converting panics (e.g. stack underflow)
// into errors so per-element failures can be collected
func runRecovering(interp *forthic.Interpreter, code string) (runErr error) {
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok {
				runErr = err
			} else {
				runErr = forthic.NewForthicError(fmt.Sprintf("%v", r))
			}
		}
	}()
	return interp.Run(code)
}

func (m *ArrayModule) repeat(interp *forthic.Interpreter) error {
	numTimes := interp.StackPop()
	forthicCode := interp.StackPop()

	codeStr, ok := forthicCode.(string)
	if !ok {
		return nil
	}

	count := toInt(numTimes)
	for i := 0; i < count; i++ {
		// Leave the intermediate value beneath each result
		item := interp.StackPop()
		interp.StackPush(item)

		err := interp.Run(codeStr)
		if err != nil {
			return err
		}
		res := interp.StackPop()

		interp.StackPush(item)
		interp.StackPush(res)
	}

	return nil
}

// ========================================
// Helper Functions
// ========================================

func compareValues(a, b interface{}) int {
	aNum, aOk := toNumericValue(a)
	bNum, bOk := toNumericValue(b)
	if aOk && bOk {
		if aNum < bNum {
			return -1
		} else if aNum > bNum {
			return 1
		}
		return 0
	}

	aStr, aOk := a.(string)
	bStr, bOk := b.(string)
	if aOk && bOk {
		if aStr < bStr {
			return -1
		} else if aStr > bStr {
			return 1
		}
		return 0
	}

	aTime, aOk := a.(time.Time)
	bTime, bOk := b.(time.Time)
	if aOk && bOk {
		if aTime.Before(bTime) {
			return -1
		} else if aTime.After(bTime) {
			return 1
		}
		return 0
	}

	return 0
}

func flattenArray(arr []interface{}) []interface{} {
	result := []interface{}{}
	for _, item := range arr {
		if subArr, ok := asArray(item); ok {
			result = append(result, flattenArray(subArr)...)
		} else {
			result = append(result, item)
		}
	}
	return result
}

// flattenRecord flattens nested records, joining key paths with tabs
func flattenRecord(rec *forthic.Record, prefix string, result *forthic.Record) {
	for _, key := range rec.Keys() {
		val, _ := rec.Get(key)
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "\t" + key
		}
		if sub, ok := asRecord(val); ok {
			flattenRecord(sub, fullKey, result)
		} else {
			result.Set(fullKey, val)
		}
	}
}
