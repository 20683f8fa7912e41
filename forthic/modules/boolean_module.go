package modules

import (
	"github.com/forthic-lang/forthic-go/forthic"
)

// BooleanModule provides boolean, comparison, and membership operations
type BooleanModule struct {
	*forthic.Module
}

// NewBooleanModule creates a new boolean module
func NewBooleanModule() *BooleanModule {
	m := &BooleanModule{
		Module: forthic.NewModule("boolean"),
	}
	m.registerWords()
	return m
}

func (m *BooleanModule) registerWords() {
	// Comparison operations
	m.AddModuleWord("==", m.equals)
	m.AddModuleWord("!=", m.notEquals)
	m.AddModuleWord("<", m.lessThan)
	m.AddModuleWord("<=", m.lessThanOrEqual)
	m.AddModuleWord(">", m.greaterThan)
	m.AddModuleWord(">=", m.greaterThanOrEqual)

	// Logic operations
	m.AddModuleWord("OR", m.or)
	m.AddModuleWord("AND", m.and)
	m.AddModuleWord("NOT", m.not)
	m.AddModuleWord("XOR", m.xor)
	m.AddModuleWord("NAND", m.nand)

	// Membership operations
	m.AddModuleWord("IN", m.in)
	m.AddModuleWord("ANY", m.any)
	m.AddModuleWord("ALL", m.all)

	// Type conversion
	m.AddModuleWord(">BOOL", m.toBool)
}

// ========================================
// Comparison Operations
// ========================================

func (m *BooleanModule) equals(interp *forthic.Interpreter) error {
	b := interp.StackPop()
	a := interp.StackPop()
	interp.StackPush(areEqual(a, b))
	return nil
}

func (m *BooleanModule) notEquals(interp *forthic.Interpreter) error {
	b := interp.StackPop()
	a := interp.StackPop()
	interp.StackPush(!areEqual(a, b))
	return nil
}

func (m *BooleanModule) lessThan(interp *forthic.Interpreter) error {
	b := interp.StackPop()
	a := interp.StackPop()
	interp.StackPush(compareValues(a, b) < 0)
	return nil
}

func (m *BooleanModule) lessThanOrEqual(interp *forthic.Interpreter) error {
	b := interp.StackPop()
	a := interp.StackPop()
	interp.StackPush(compareValues(a, b) <= 0)
	return nil
}

func (m *BooleanModule) greaterThan(interp *forthic.Interpreter) error {
	b := interp.StackPop()
	a := interp.StackPop()
	interp.StackPush(compareValues(a, b) > 0)
	return nil
}

func (m *BooleanModule) greaterThanOrEqual(interp *forthic.Interpreter) error {
	b := interp.StackPop()
	a := interp.StackPop()
	interp.StackPush(compareValues(a, b) >= 0)
	return nil
}

// ========================================
// Logic Operations
// ========================================

func (m *BooleanModule) or(interp *forthic.Interpreter) error {
	b := interp.StackPop()

	// Case 1: Single array on top of stack
	if arr, ok := asArray(b); ok {
		for _, val := range arr {
			if isTruthy(val) {
				interp.StackPush(true)
				return nil
			}
		}
		interp.StackPush(false)
		return nil
	}

	// Case 2: Two values
	a := interp.StackPop()
	interp.StackPush(isTruthy(a) || isTruthy(b))
	return nil
}

func (m *BooleanModule) and(interp *forthic.Interpreter) error {
	b := interp.StackPop()

	// Case 1: Single array on top of stack
	if arr, ok := asArray(b); ok {
		for _, val := range arr {
			if !isTruthy(val) {
				interp.StackPush(false)
				return nil
			}
		}
		interp.StackPush(true)
		return nil
	}

	// Case 2: Two values
	a := interp.StackPop()
	interp.StackPush(isTruthy(a) && isTruthy(b))
	return nil
}

func (m *BooleanModule) not(interp *forthic.Interpreter) error {
	val := interp.StackPop()
	interp.StackPush(!isTruthy(val))
	return nil
}

func (m *BooleanModule) xor(interp *forthic.Interpreter) error {
	b := interp.StackPop()
	a := interp.StackPop()
	aBool := isTruthy(a)
	bBool := isTruthy(b)
	interp.StackPush((aBool || bBool) && !(aBool && bBool))
	return nil
}

func (m *BooleanModule) nand(interp *forthic.Interpreter) error {
	b := interp.StackPop()
	a := interp.StackPop()
	interp.StackPush(!(isTruthy(a) && isTruthy(b)))
	return nil
}

// ========================================
// Membership Operations
// ========================================

func (m *BooleanModule) in(interp *forthic.Interpreter) error {
	arr := interp.StackPop()
	item := interp.StackPop()

	if slice, ok := asArray(arr); ok {
		interp.StackPush(containsValue(slice, item))
		return nil
	}

	interp.StackPush(false)
	return nil
}

// any checks whether the two arrays intersect; an empty second operand
// matches everything
func (m *BooleanModule) any(interp *forthic.Interpreter) error {
	second := interp.StackPop()
	first := interp.StackPop()

	slice1, ok1 := asArray(first)
	slice2, ok2 := asArray(second)

	if !ok1 || !ok2 {
		interp.StackPush(false)
		return nil
	}

	if len(slice2) == 0 {
		interp.StackPush(true)
		return nil
	}

	for _, item := range slice1 {
		if containsValue(slice2, item) {
			interp.StackPush(true)
			return nil
		}
	}

	interp.StackPush(false)
	return nil
}

// all checks whether every element of the second array is in the first;
// an empty second operand matches everything
func (m *BooleanModule) all(interp *forthic.Interpreter) error {
	second := interp.StackPop()
	first := interp.StackPop()

	slice1, ok1 := asArray(first)
	slice2, ok2 := asArray(second)

	if !ok1 || !ok2 {
		interp.StackPush(false)
		return nil
	}

	if len(slice2) == 0 {
		interp.StackPush(true)
		return nil
	}

	for _, item := range slice2 {
		if !containsValue(slice1, item) {
			interp.StackPush(false)
			return nil
		}
	}

	interp.StackPush(true)
	return nil
}

// ========================================
// Type Conversion
// ========================================

func (m *BooleanModule) toBool(interp *forthic.Interpreter) error {
	val := interp.StackPop()
	interp.StackPush(isTruthy(val))
	return nil
}
