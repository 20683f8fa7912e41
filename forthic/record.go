package forthic

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record - insertion-ordered key/value mapping
//
// The record is one of the two Forthic container kinds. Iteration,
// serialization, and words like NTH, LAST, and SLICE depend on insertion
// order, so keys are tracked in the order they were first set. Overwriting
// an existing key keeps its original position.
type Record struct {
	keys    []string
	entries map[string]interface{}
}

// NewRecord creates an empty Record
func NewRecord() *Record {
	return &Record{
		keys:    make([]string, 0),
		entries: make(map[string]interface{}),
	}
}

// Get returns the value for key and whether it was present
func (r *Record) Get(key string) (interface{}, bool) {
	val, ok := r.entries[key]
	return val, ok
}

// GetOr returns the value for key, or def when absent
func (r *Record) GetOr(key string, def interface{}) interface{} {
	if val, ok := r.entries[key]; ok {
		return val
	}
	return def
}

// Has reports whether key is present
func (r *Record) Has(key string) bool {
	_, ok := r.entries[key]
	return ok
}

// Set stores value at key, appending the key if it is new
func (r *Record) Set(key string, value interface{}) {
	if _, ok := r.entries[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.entries[key] = value
}

// Delete removes key; missing keys are ignored
func (r *Record) Delete(key string) {
	if _, ok := r.entries[key]; !ok {
		return
	}
	delete(r.entries, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order
func (r *Record) Keys() []string {
	result := make([]string, len(r.keys))
	copy(result, r.keys)
	return result
}

// Values returns the values in insertion order
func (r *Record) Values() []interface{} {
	result := make([]interface{}, 0, len(r.keys))
	for _, k := range r.keys {
		result = append(result, r.entries[k])
	}
	return result
}

// Length returns the number of entries
func (r *Record) Length() int {
	return len(r.keys)
}

// Dup creates a shallow copy of the record
func (r *Record) Dup() *Record {
	result := NewRecord()
	for _, k := range r.keys {
		result.Set(k, r.entries[k])
	}
	return result
}

func (r *Record) String() string {
	bytes, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf("Record[%d entries]", len(r.keys))
	}
	return string(bytes)
}

// MarshalJSON serializes the record as a JSON object in insertion order.
// Note that marshaling through encoding/json compacts the output; use
// EncodeJSON for the canonical ", "/": " rendering.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeJSONValue(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeJSON renders a Forthic value as JSON with ", " and ": " separators,
// preserving record key order
func EncodeJSON(val interface{}) (string, error) {
	var buf bytes.Buffer
	if err := encodeJSONValue(&buf, val); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func encodeJSONValue(buf *bytes.Buffer, val interface{}) error {
	switch v := val.(type) {
	case *Record:
		buf.WriteByte('{')
		for i, k := range v.keys {
			if i > 0 {
				buf.WriteString(", ")
			}
			keyBytes, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(keyBytes)
			buf.WriteString(": ")
			if err := encodeJSONValue(buf, v.entries[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []interface{}:
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteString(", ")
			}
			if err := encodeJSONValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(encoded)
		return nil
	}
}

// UnmarshalJSON parses a JSON object, preserving key order
func (r *Record) UnmarshalJSON(data []byte) error {
	val, err := DecodeJSON(string(data))
	if err != nil {
		return err
	}
	rec, ok := val.(*Record)
	if !ok {
		return NewForthicError("Expected JSON object for Record")
	}
	r.keys = rec.keys
	r.entries = rec.entries
	return nil
}

// DecodeJSON parses a JSON string into Forthic values: objects become
// *Record (key order preserved), arrays []interface{}, numbers float64.
func DecodeJSON(s string) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	val, err := decodeJSONValue(dec)
	if err != nil {
		return nil, err
	}
	return val, nil
}

func decodeJSONValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			rec := NewRecord()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, NewForthicError(fmt.Sprintf("Invalid JSON object key: %v", keyTok))
				}
				val, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				rec.Set(key, val)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return nil, err
			}
			return rec, nil
		case '[':
			arr := make([]interface{}, 0)
			for dec.More() {
				val, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return nil, err
			}
			return arr, nil
		}
		return nil, NewForthicError(fmt.Sprintf("Unexpected JSON delimiter: %v", t))
	default:
		// string, float64, bool, or nil
		return t, nil
	}
}
