package forthic

// Word - the fundamental unit of execution in Forthic
//
// When interpreted, a word performs an action, typically manipulating the
// data stack or the module stack. Words are also first-class stack values:
// FIELD-KEY-FUNC pushes a Word and SORT-w/KEY-FUNC consumes one.
type Word interface {
	Execute(interp *Interpreter) error
	GetName() string
	GetLocation() *CodeLocation
	SetLocation(location *CodeLocation)
}

// BaseWord provides the default implementation of the Word interface
type BaseWord struct {
	name     string
	location *CodeLocation
}

// NewBaseWord creates a new BaseWord
func NewBaseWord(name string) *BaseWord {
	return &BaseWord{
		name:     name,
		location: nil,
	}
}

func (w *BaseWord) Execute(interp *Interpreter) error {
	return NewForthicError("Must override Word.Execute")
}

func (w *BaseWord) GetName() string {
	return w.name
}

func (w *BaseWord) GetLocation() *CodeLocation {
	return w.location
}

func (w *BaseWord) SetLocation(location *CodeLocation) {
	w.location = location
}

// ============================================================================
// Concrete Word Types
// ============================================================================

// PushValueWord - Word that pushes a fixed value onto the stack
type PushValueWord struct {
	*BaseWord
	value interface{}
}

// NewPushValueWord creates a new PushValueWord
func NewPushValueWord(name string, value interface{}) *PushValueWord {
	return &PushValueWord{
		BaseWord: NewBaseWord(name),
		value:    value,
	}
}

func (w *PushValueWord) Execute(interp *Interpreter) error {
	interp.StackPush(w.value)
	return nil
}

// ModuleWord - Word backed by a native Go handler
type ModuleWord struct {
	*BaseWord
	handler func(*Interpreter) error
}

// NewModuleWord creates a new ModuleWord
func NewModuleWord(name string, handler func(*Interpreter) error) *ModuleWord {
	return &ModuleWord{
		BaseWord: NewBaseWord(name),
		handler:  handler,
	}
}

func (w *ModuleWord) Execute(interp *Interpreter) error {
	return w.handler(interp)
}

// DefinitionWord - Word defined by a compiled sequence of other words
type DefinitionWord struct {
	*BaseWord
	words []Word
}

// NewDefinitionWord creates a new DefinitionWord
func NewDefinitionWord(name string, words []Word) *DefinitionWord {
	return &DefinitionWord{
		BaseWord: NewBaseWord(name),
		words:    words,
	}
}

func (w *DefinitionWord) Execute(interp *Interpreter) error {
	for _, word := range w.words {
		err := interp.executeWord(word)
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *DefinitionWord) GetWords() []Word {
	return w.words
}
