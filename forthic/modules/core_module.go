package modules

import (
	"fmt"
	"strings"

	"github.com/forthic-lang/forthic-go/forthic"
)

// CoreModule provides essential interpreter operations: stack manipulation,
// variables, string interpretation, memoization, screens, and profiling
type CoreModule struct {
	*forthic.Module
}

// NewCoreModule creates a new core module
func NewCoreModule() *CoreModule {
	m := &CoreModule{
		Module: forthic.NewModule("core"),
	}
	m.registerWords()
	return m
}

func (m *CoreModule) registerWords() {
	// Stack operations
	m.AddModuleWord("POP", m.pop)
	m.AddModuleWord("DUP", m.dup)
	m.AddModuleWord("SWAP", m.swap)

	// Variable operations
	m.AddModuleWord("VARIABLES", m.variables)
	m.AddModuleWord("!", m.set)
	m.AddModuleWord("@", m.get)
	m.AddModuleWord("!@", m.setGet)

	// Module operations
	m.AddModuleWord("EXPORT", m.export_word)
	m.AddModuleWord("USE-MODULES", m.useModules)

	// Execution
	m.AddModuleWord("INTERPRET", m.interpret)
	m.AddModuleWord("MEMO", m.memo)

	// Screens
	m.AddModuleWord("SCREEN!", m.setScreen)
	m.AddModuleWord("SCREEN", m.getScreen)
	m.AddModuleWord("LOAD-SCREEN", m.loadScreen)

	// Control flow
	m.AddModuleWord("IDENTITY", m.identity)
	m.AddModuleWord("NOP", m.nop)
	m.AddModuleWord("NULL", m.null)
	m.AddModuleWord("ARRAY?", m.arrayCheck)
	m.AddModuleWord("DEFAULT", m.default_word)
	m.AddModuleWord("*DEFAULT", m.defaultStar)

	// Profiling
	m.AddModuleWord("PROFILE-START", m.profileStart)
	m.AddModuleWord("PROFILE-END", m.profileEnd)
	m.AddModuleWord("PROFILE-DATA", m.profileData)
}

// getOrCreateVariable gets or creates a variable, validating the name
func getOrCreateVariable(interp *forthic.Interpreter, name string) (*forthic.Variable, error) {
	// Double-underscore names are reserved
	if strings.HasPrefix(name, "__") {
		return nil, forthic.NewInvalidVariableNameError(name)
	}

	curModule := interp.CurModule()

	variable := curModule.GetVariable(name)
	if variable == nil {
		curModule.AddVariable(name, nil)
		variable = curModule.GetVariable(name)
	}

	return variable, nil
}

// popVariable resolves a stack value that is either a Variable or a name
func popVariable(interp *forthic.Interpreter) (*forthic.Variable, error) {
	val := interp.StackPop()

	if varName, ok := val.(string); ok {
		return getOrCreateVariable(interp, varName)
	}

	varObj, ok := val.(*forthic.Variable)
	if !ok {
		return nil, forthic.NewForthicError(fmt.Sprintf("Expected variable, got: %v", val))
	}
	return varObj, nil
}

// ========================================
// Stack Operations
// ========================================

func (m *CoreModule) pop(interp *forthic.Interpreter) error {
	interp.StackPop()
	return nil
}

func (m *CoreModule) dup(interp *forthic.Interpreter) error {
	a := interp.StackPop()
	interp.StackPush(a)
	interp.StackPush(a)
	return nil
}

func (m *CoreModule) swap(interp *forthic.Interpreter) error {
	b := interp.StackPop()
	a := interp.StackPop()
	interp.StackPush(b)
	interp.StackPush(a)
	return nil
}

// ========================================
// Variable Operations
// ========================================

func (m *CoreModule) variables(interp *forthic.Interpreter) error {
	varnames := interp.StackPop()
	curModule := interp.CurModule()

	if arr, ok := varnames.([]interface{}); ok {
		for _, v := range arr {
			if varName, ok := v.(string); ok {
				if strings.HasPrefix(varName, "__") {
					return forthic.NewInvalidVariableNameError(varName)
				}
				curModule.AddVariable(varName, nil)
			}
		}
	}
	return nil
}

func (m *CoreModule) set(interp *forthic.Interpreter) error {
	varObj, err := popVariable(interp)
	if err != nil {
		return err
	}
	value := interp.StackPop()
	varObj.SetValue(value)
	return nil
}

func (m *CoreModule) get(interp *forthic.Interpreter) error {
	varObj, err := popVariable(interp)
	if err != nil {
		return err
	}
	interp.StackPush(varObj.GetValue())
	return nil
}

func (m *CoreModule) setGet(interp *forthic.Interpreter) error {
	varObj, err := popVariable(interp)
	if err != nil {
		return err
	}
	value := interp.StackPop()
	varObj.SetValue(value)
	interp.StackPush(varObj.GetValue())
	return nil
}

// ========================================
// Module Operations
// ========================================

func (m *CoreModule) export_word(interp *forthic.Interpreter) error {
	names := interp.StackPop()
	if arr, ok := names.([]interface{}); ok {
		strNames := make([]string, 0, len(arr))
		for _, name := range arr {
			if str, ok := name.(string); ok {
				strNames = append(strNames, str)
			}
		}
		interp.CurModule().AddExportable(strNames)
	}
	return nil
}

func (m *CoreModule) useModules(interp *forthic.Interpreter) error {
	names := interp.StackPop()
	if names == nil {
		return nil
	}
	if arr, ok := names.([]interface{}); ok {
		return interp.UseModules(arr)
	}
	return nil
}

// ========================================
// Execution
// ========================================

func (m *CoreModule) interpret(interp *forthic.Interpreter) error {
	str := interp.StackPop()
	if str == nil {
		return nil
	}
	if code, ok := str.(string); ok {
		return interp.Run(code)
	}
	return nil
}

// memo implements ( name forthic -- ) MEMO, installing name, name!, name!@
func (m *CoreModule) memo(interp *forthic.Interpreter) error {
	forthicCode := interp.StackPop()
	name := interp.StackPop()

	nameStr, ok1 := name.(string)
	code, ok2 := forthicCode.(string)
	if !ok1 || !ok2 {
		return forthic.NewForthicError("MEMO expects a name string and a Forthic string")
	}

	word := forthic.NewModuleWord(nameStr, func(ip *forthic.Interpreter) error {
		return ip.Run(code)
	})
	interp.CurModule().AddMemoWords(word)
	return nil
}

// ========================================
// Screens
// ========================================

func (m *CoreModule) setScreen(interp *forthic.Interpreter) error {
	name := interp.StackPop()
	content := interp.StackPop()

	nameStr, ok1 := name.(string)
	contentStr, ok2 := content.(string)
	if !ok1 || !ok2 {
		return forthic.NewGlobalModuleError("SCREEN! expects a content string and a name string")
	}

	interp.CurModule().SetScreen(nameStr, contentStr)
	return nil
}

func (m *CoreModule) getScreen(interp *forthic.Interpreter) error {
	name := interp.StackPop()

	nameStr, ok := name.(string)
	if !ok {
		return forthic.NewGlobalModuleError("SCREEN expects a name string")
	}

	content, found := interp.CurModule().GetScreen(nameStr)
	if !found {
		return forthic.NewGlobalModuleError(fmt.Sprintf("Unknown screen: %s", nameStr))
	}

	interp.StackPush(content)
	return nil
}

func (m *CoreModule) loadScreen(interp *forthic.Interpreter) error {
	name := interp.StackPop()

	nameStr, ok := name.(string)
	if !ok {
		return forthic.NewGlobalModuleError("LOAD-SCREEN expects a name string")
	}

	return interp.RunScreen(nameStr)
}

// ========================================
// Control Flow
// ========================================

func (m *CoreModule) identity(interp *forthic.Interpreter) error {
	return nil
}

func (m *CoreModule) nop(interp *forthic.Interpreter) error {
	return nil
}

func (m *CoreModule) null(interp *forthic.Interpreter) error {
	interp.StackPush(nil)
	return nil
}

func (m *CoreModule) arrayCheck(interp *forthic.Interpreter) error {
	value := interp.StackPop()
	_, isArray := value.([]interface{})
	interp.StackPush(isArray)
	return nil
}

// default_word replaces null and empty-string values; 0 passes through
func (m *CoreModule) default_word(interp *forthic.Interpreter) error {
	defaultValue := interp.StackPop()
	value := interp.StackPop()

	if value == nil || value == "" {
		interp.StackPush(defaultValue)
	} else {
		interp.StackPush(value)
	}
	return nil
}

// defaultStar is like DEFAULT but evaluates a Forthic fallback lazily
func (m *CoreModule) defaultStar(interp *forthic.Interpreter) error {
	defaultForthic := interp.StackPop()
	value := interp.StackPop()

	if value == nil || value == "" {
		if code, ok := defaultForthic.(string); ok {
			err := interp.Run(code)
			if err != nil {
				return err
			}
			result := interp.StackPop()
			interp.StackPush(result)
			return nil
		}
	}
	interp.StackPush(value)
	return nil
}

// ========================================
// Profiling
// ========================================

func (m *CoreModule) profileStart(interp *forthic.Interpreter) error {
	interp.StartProfile()
	return nil
}

func (m *CoreModule) profileEnd(interp *forthic.Interpreter) error {
	interp.EndProfile()
	interp.StackPush(interp.ProfileData())
	return nil
}

func (m *CoreModule) profileData(interp *forthic.Interpreter) error {
	interp.StackPush(interp.ProfileData())
	return nil
}
