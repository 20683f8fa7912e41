package modules

import (
	"sort"

	"github.com/forthic-lang/forthic-go/forthic"
)

// RecordModule provides record construction and access operations
type RecordModule struct {
	*forthic.Module
}

// NewRecordModule creates a new record module
func NewRecordModule() *RecordModule {
	m := &RecordModule{
		Module: forthic.NewModule("record"),
	}
	m.registerWords()
	return m
}

func (m *RecordModule) registerWords() {
	// Creation
	m.AddModuleWord("REC", m.createRecord)
	m.AddModuleWord("<REC!", m.setRecordValue)

	// Access
	m.AddModuleWord("REC@", m.getRecordValue)
	m.AddModuleWord("|REC@", m.pipeRecAt)
	m.AddModuleWord("KEYS", m.keys)
	m.AddModuleWord("VALUES", m.values)

	// Transform
	m.AddModuleWord("RELABEL", m.relabel)
	m.AddModuleWord("INVERT-KEYS", m.invertKeys)
	m.AddModuleWord("REC-DEFAULTS", m.recDefaults)
	m.AddModuleWord("<DEL", m.del)
}

// fieldsOf normalizes a field argument (single value or array of values)
// into a key path
func fieldsOf(field interface{}) []string {
	if fieldArr, ok := asArray(field); ok {
		fields := make([]string, len(fieldArr))
		for i, f := range fieldArr {
			fields[i] = toString(f)
		}
		return fields
	}
	return []string{toString(field)}
}

// ========================================
// Creation
// ========================================

// createRecord builds a record from an array of [key value] pairs; later
// duplicates overwrite earlier ones in place
func (m *RecordModule) createRecord(interp *forthic.Interpreter) error {
	arr := interp.StackPop()

	result := forthic.NewRecord()

	slice, ok := asArray(arr)
	if !ok {
		interp.StackPush(result)
		return nil
	}

	for _, item := range slice {
		pair, ok := asArray(item)
		if !ok || len(pair) < 2 {
			continue
		}
		result.Set(toString(pair[0]), pair[1])
	}

	interp.StackPush(result)
	return nil
}

// setRecordValue implements ( rec value field -- rec ), drilling through a
// nested key path and creating intermediate records as needed. A null
// target becomes a fresh record.
func (m *RecordModule) setRecordValue(interp *forthic.Interpreter) error {
	field := interp.StackPop()
	value := interp.StackPop()
	record := interp.StackPop()

	var result *forthic.Record
	if rec, ok := asRecord(record); ok {
		result = rec.Dup()
	} else {
		result = forthic.NewRecord()
	}

	fields := fieldsOf(field)
	if len(fields) == 0 {
		interp.StackPush(result)
		return nil
	}

	curRec := result
	for i := 0; i < len(fields)-1; i++ {
		fieldName := fields[i]
		if existing, found := curRec.Get(fieldName); found {
			if sub, ok := asRecord(existing); ok {
				newRec := sub.Dup()
				curRec.Set(fieldName, newRec)
				curRec = newRec
				continue
			}
		}
		newRec := forthic.NewRecord()
		curRec.Set(fieldName, newRec)
		curRec = newRec
	}

	curRec.Set(fields[len(fields)-1], value)

	interp.StackPush(result)
	return nil
}

// ========================================
// Access
// ========================================

// getRecordValue implements ( rec field -- value ); an array field drills
// through nested records
func (m *RecordModule) getRecordValue(interp *forthic.Interpreter) error {
	field := interp.StackPop()
	record := interp.StackPop()

	rec, ok := asRecord(record)
	if !ok {
		interp.StackPush(nil)
		return nil
	}

	interp.StackPush(drillForValue(rec, fieldsOf(field)))
	return nil
}

// pipeRecAt maps REC@ over an array of records
func (m *RecordModule) pipeRecAt(interp *forthic.Interpreter) error {
	field := interp.StackPop()
	records := interp.StackPop()

	slice, ok := asArray(records)
	if !ok {
		interp.StackPush([]interface{}{})
		return nil
	}

	fields := fieldsOf(field)
	result := make([]interface{}, len(slice))
	for i, record := range slice {
		if rec, ok := asRecord(record); ok {
			result[i] = drillForValue(rec, fields)
		} else {
			result[i] = nil
		}
	}

	interp.StackPush(result)
	return nil
}

// keys returns record keys; for arrays, the index sequence
func (m *RecordModule) keys(interp *forthic.Interpreter) error {
	container := interp.StackPop()

	if rec, ok := asRecord(container); ok {
		keys := rec.Keys()
		result := make([]interface{}, len(keys))
		for i, k := range keys {
			result[i] = k
		}
		interp.StackPush(result)
		return nil
	}

	if arr, ok := asArray(container); ok {
		result := make([]interface{}, len(arr))
		for i := range arr {
			result[i] = int64(i)
		}
		interp.StackPush(result)
		return nil
	}

	interp.StackPush([]interface{}{})
	return nil
}

// values returns record values in insertion order; arrays pass through
func (m *RecordModule) values(interp *forthic.Interpreter) error {
	container := interp.StackPop()

	if rec, ok := asRecord(container); ok {
		interp.StackPush(rec.Values())
		return nil
	}

	if arr, ok := asArray(container); ok {
		interp.StackPush(arr)
		return nil
	}

	interp.StackPush([]interface{}{})
	return nil
}

// ========================================
// Transform
// ========================================

// relabel implements ( container oldkeys newkeys -- container ). Only the
// listed entries are kept. Arrays are reordered by numeric new key; records
// keep the order of newkeys.
func (m *RecordModule) relabel(interp *forthic.Interpreter) error {
	newKeys := interp.StackPop()
	oldKeys := interp.StackPop()
	container := interp.StackPop()

	oldKeyArr, ok1 := asArray(oldKeys)
	newKeyArr, ok2 := asArray(newKeys)

	if container == nil || !ok1 || !ok2 || len(oldKeyArr) != len(newKeyArr) {
		interp.StackPush(container)
		return nil
	}

	if arr, ok := asArray(container); ok {
		type labeled struct {
			newKey int
			value  interface{}
		}
		entries := []labeled{}
		for i := 0; i < len(oldKeyArr); i++ {
			oldIdx := toInt(oldKeyArr[i])
			if oldIdx < 0 || oldIdx >= len(arr) {
				continue
			}
			entries = append(entries, labeled{newKey: toInt(newKeyArr[i]), value: arr[oldIdx]})
		}
		sort.SliceStable(entries, func(a, b int) bool {
			return entries[a].newKey < entries[b].newKey
		})
		result := make([]interface{}, len(entries))
		for i, e := range entries {
			result[i] = e.value
		}
		interp.StackPush(result)
		return nil
	}

	if rec, ok := asRecord(container); ok {
		result := forthic.NewRecord()
		for i := 0; i < len(oldKeyArr); i++ {
			oldKey := toString(oldKeyArr[i])
			if val, found := rec.Get(oldKey); found {
				result.Set(toString(newKeyArr[i]), val)
			}
		}
		interp.StackPush(result)
		return nil
	}

	interp.StackPush(container)
	return nil
}

// invertKeys inverts a two-level nested record structure:
// {A: {X: 1}, B: {X: 3}} becomes {X: {A: 1, B: 3}}
func (m *RecordModule) invertKeys(interp *forthic.Interpreter) error {
	record := interp.StackPop()

	rec, ok := asRecord(record)
	if !ok {
		interp.StackPush(forthic.NewRecord())
		return nil
	}

	result := forthic.NewRecord()
	for _, firstKey := range rec.Keys() {
		subVal, _ := rec.Get(firstKey)
		subRecord, ok := asRecord(subVal)
		if !ok {
			continue
		}
		for _, secondKey := range subRecord.Keys() {
			value, _ := subRecord.Get(secondKey)
			inner, found := result.Get(secondKey)
			if !found {
				innerRec := forthic.NewRecord()
				result.Set(secondKey, innerRec)
				inner = innerRec
			}
			inner.(*forthic.Record).Set(firstKey, value)
		}
	}

	interp.StackPush(result)
	return nil
}

// recDefaults fills missing, null, or empty-string fields from
// [key value] default pairs
func (m *RecordModule) recDefaults(interp *forthic.Interpreter) error {
	keyVals := interp.StackPop()
	record := interp.StackPop()

	var result *forthic.Record
	if rec, ok := asRecord(record); ok {
		result = rec.Dup()
	} else {
		result = forthic.NewRecord()
	}

	keyValArr, ok := asArray(keyVals)
	if !ok {
		interp.StackPush(result)
		return nil
	}

	for _, item := range keyValArr {
		pair, ok := asArray(item)
		if !ok || len(pair) < 2 {
			continue
		}
		key := toString(pair[0])
		if val, found := result.Get(key); !found || val == nil || val == "" {
			result.Set(key, pair[1])
		}
	}

	interp.StackPush(result)
	return nil
}

// del removes an element by index (arrays) or key (records); missing keys
// are silently ignored
func (m *RecordModule) del(interp *forthic.Interpreter) error {
	key := interp.StackPop()
	container := interp.StackPop()

	if arr, ok := asArray(container); ok {
		idx := toInt(key)
		if idx < 0 || idx >= len(arr) {
			interp.StackPush(arr)
			return nil
		}
		result := make([]interface{}, 0, len(arr)-1)
		result = append(result, arr[:idx]...)
		result = append(result, arr[idx+1:]...)
		interp.StackPush(result)
		return nil
	}

	if rec, ok := asRecord(container); ok {
		result := rec.Dup()
		result.Delete(toString(key))
		interp.StackPush(result)
		return nil
	}

	interp.StackPush(container)
	return nil
}

// ========================================
// Helper Functions
// ========================================

func drillForValue(record *forthic.Record, fields []string) interface{} {
	var result interface{} = record
	for _, field := range fields {
		rec, ok := asRecord(result)
		if !ok {
			return nil
		}
		val, found := rec.Get(field)
		if !found {
			return nil
		}
		result = val
	}
	return result
}
