package modules

import (
	"github.com/forthic-lang/forthic-go/forthic"
)

// StandardModules returns the full built-in vocabulary, ready to import
// into an interpreter
func StandardModules() []*forthic.Module {
	return []*forthic.Module{
		NewCoreModule().Module,
		NewArrayModule().Module,
		NewRecordModule().Module,
		NewStringModule().Module,
		NewMathModule().Module,
		NewBooleanModule().Module,
		NewDateTimeModule().Module,
		NewJSONModule().Module,
		NewTSVModule().Module,
	}
}

// NewStandardInterpreter creates an interpreter preloaded with the
// standard modules
func NewStandardInterpreter() *forthic.Interpreter {
	return forthic.NewInterpreter(StandardModules()...)
}
