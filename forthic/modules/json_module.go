package modules

import (
	"encoding/json"
	"fmt"

	"github.com/forthic-lang/forthic-go/forthic"
)

// JSONModule provides JSON encoding/decoding operations. Record key order
// is preserved in both directions.
type JSONModule struct {
	*forthic.Module
}

// NewJSONModule creates a new JSON module
func NewJSONModule() *JSONModule {
	m := &JSONModule{
		Module: forthic.NewModule("json"),
	}
	m.registerWords()
	return m
}

func (m *JSONModule) registerWords() {
	// Encoding
	m.AddModuleWord(">JSON", m.toJSON)
	m.AddModuleWord("JSON-PRETTIFY", m.jsonPrettify)

	// Decoding
	m.AddModuleWord("JSON>", m.fromJSON)
}

// ========================================
// Encoding
// ========================================

func (m *JSONModule) toJSON(interp *forthic.Interpreter) error {
	value := interp.StackPop()

	if value == nil {
		interp.StackPush("null")
		return nil
	}

	result, err := forthic.EncodeJSON(value)
	if err != nil {
		return forthic.NewGlobalModuleError(fmt.Sprintf("Cannot serialize value to JSON: %v", value)).WithCause(err)
	}

	interp.StackPush(result)
	return nil
}

func (m *JSONModule) jsonPrettify(interp *forthic.Interpreter) error {
	value := interp.StackPop()

	if value == nil {
		interp.StackPush("null")
		return nil
	}

	bytes, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return forthic.NewGlobalModuleError(fmt.Sprintf("Cannot serialize value to JSON: %v", value)).WithCause(err)
	}

	interp.StackPush(string(bytes))
	return nil
}

// ========================================
// Decoding
// ========================================

func (m *JSONModule) fromJSON(interp *forthic.Interpreter) error {
	jsonStr := interp.StackPop()

	if jsonStr == nil {
		interp.StackPush(nil)
		return nil
	}

	str, ok := jsonStr.(string)
	if !ok {
		interp.StackPush(nil)
		return nil
	}

	result, err := forthic.DecodeJSON(str)
	if err != nil {
		return forthic.NewGlobalModuleError(fmt.Sprintf("Malformed JSON: %s", str)).WithCause(err)
	}

	interp.StackPush(result)
	return nil
}
