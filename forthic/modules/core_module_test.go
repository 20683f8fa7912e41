package modules

import (
	"testing"

	"github.com/forthic-lang/forthic-go/forthic"
)

func setupCoreInterpreter() *forthic.Interpreter {
	return NewStandardInterpreter()
}

// ========================================
// Stack Operations
// ========================================

func TestCore_POP(t *testing.T) {
	interp := setupCoreInterpreter()

	err := interp.Run("1 2 3 POP")
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}

	items := interp.GetStack().Items()
	if len(items) != 2 {
		t.Fatalf("Expected 2 items on stack, got %d", len(items))
	}
	if items[1].(int64) != 2 {
		t.Errorf("Expected top to be 2, got %v", items[1])
	}
}

func TestCore_DUP(t *testing.T) {
	interp := setupCoreInterpreter()

	err := interp.Run("42 DUP")
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}

	items := interp.GetStack().Items()
	if len(items) != 2 {
		t.Fatalf("Expected 2 items on stack, got %d", len(items))
	}
	if items[0].(int64) != 42 || items[1].(int64) != 42 {
		t.Errorf("Expected both items to be 42, got %v and %v", items[0], items[1])
	}
}

func TestCore_SWAP(t *testing.T) {
	interp := setupCoreInterpreter()

	err := interp.Run("6 8 SWAP")
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}

	items := interp.GetStack().Items()
	if len(items) != 2 {
		t.Fatalf("Expected 2 items on stack, got %d", len(items))
	}
	if items[0].(int64) != 8 || items[1].(int64) != 6 {
		t.Errorf("Expected 8 6, got %v %v", items[0], items[1])
	}
}

// ========================================
// Variable Operations
// ========================================

func TestCore_VARIABLES(t *testing.T) {
	interp := setupCoreInterpreter()

	err := interp.Run(`["x" "y"] VARIABLES`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}

	appModule := interp.GetAppModule()
	if appModule.GetVariable("x") == nil {
		t.Error("Expected variable x to be created")
	}
	if appModule.GetVariable("y") == nil {
		t.Error("Expected variable y to be created")
	}
}

func TestCore_InvalidVariableName(t *testing.T) {
	interp := setupCoreInterpreter()

	err := interp.Run(`["__test"] VARIABLES`)
	if err == nil {
		t.Error("Expected error for invalid variable name")
	}
}

func TestCore_SetGetVariables(t *testing.T) {
	interp := setupCoreInterpreter()

	err := interp.Run(`["x"] VARIABLES 24 x ! x @`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}

	if result := interp.StackPop(); result.(int64) != 24 {
		t.Errorf("Expected 24, got %v", result)
	}

	xVar := interp.GetAppModule().GetVariable("x")
	if xVar.GetValue().(int64) != 24 {
		t.Errorf("Expected variable to hold 24, got %v", xVar.GetValue())
	}
}

func TestCore_BangAt(t *testing.T) {
	interp := setupCoreInterpreter()

	err := interp.Run(`["x"] VARIABLES 24 x !@`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}

	if result := interp.StackPop(); result.(int64) != 24 {
		t.Errorf("Expected 24 on stack, got %v", result)
	}

	xVar := interp.GetAppModule().GetVariable("x")
	if xVar.GetValue().(int64) != 24 {
		t.Errorf("Expected variable to be 24, got %v", xVar.GetValue())
	}
}

// ========================================
// Execution
// ========================================

func TestCore_INTERPRET(t *testing.T) {
	interp := setupCoreInterpreter()

	err := interp.Run(`'24' INTERPRET`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}
	if result := interp.StackPop(); result.(int64) != 24 {
		t.Errorf("Expected 24, got %v", result)
	}

	err = interp.Run(`'{module-A  : MESSAGE   "Hi" ;}' INTERPRET {module-A MESSAGE}`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}
	if result := interp.StackPop(); result != "Hi" {
		t.Errorf("Expected Hi, got %v", result)
	}
}

func TestCore_MEMO(t *testing.T) {
	interp := setupCoreInterpreter()

	err := interp.Run(`
	['count'] VARIABLES
	0 count !
	'COUNT' 'count @ 1 +  count !  count @'   MEMO
	`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}

	err = interp.Run("COUNT")
	if err != nil {
		t.Fatalf("Error running COUNT: %v", err)
	}
	if interp.StackPeek().(int64) != 1 {
		t.Errorf("Expected first COUNT to be 1, got %v", interp.StackPeek())
	}

	// Cached: no recompute
	err = interp.Run("COUNT")
	if err != nil {
		t.Fatalf("Error running COUNT: %v", err)
	}
	if interp.StackPeek().(int64) != 1 {
		t.Errorf("Expected cached COUNT to be 1, got %v", interp.StackPeek())
	}

	// Force recompute, then read
	err = interp.Run("COUNT! COUNT")
	if err != nil {
		t.Fatalf("Error running COUNT!: %v", err)
	}
	if interp.StackPeek().(int64) != 2 {
		t.Errorf("Expected refreshed COUNT to be 2, got %v", interp.StackPeek())
	}
	if interp.GetStack().Length() != 3 {
		t.Errorf("Expected 3 items on stack, got %d", interp.GetStack().Length())
	}

	// Recompute and leave value
	err = interp.Run("COUNT!@")
	if err != nil {
		t.Fatalf("Error running COUNT!@: %v", err)
	}
	if interp.StackPeek().(int64) != 3 {
		t.Errorf("Expected COUNT!@ to leave 3, got %v", interp.StackPeek())
	}
}

// ========================================
// Screens
// ========================================

func TestCore_SCREEN_Store(t *testing.T) {
	interp := setupCoreInterpreter()

	err := interp.Run(`'Screen content' 'my-screen' SCREEN!`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}

	content, ok := interp.GetAppModule().GetScreen("my-screen")
	if !ok || content != "Screen content" {
		t.Errorf("Expected stored screen content, got %q (found=%v)", content, ok)
	}

	// Storing never executes the screen
	if interp.GetStack().Length() != 0 {
		t.Errorf("Expected empty stack, got %d items", interp.GetStack().Length())
	}
}

func TestCore_SCREEN_Fetch(t *testing.T) {
	interp := setupCoreInterpreter()

	err := interp.Run(`'Screen content' 'my-screen' SCREEN!  'my-screen' SCREEN`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}

	if result := interp.StackPop(); result != "Screen content" {
		t.Errorf("Expected screen content, got %v", result)
	}
}

func TestCore_LOAD_SCREEN(t *testing.T) {
	interp := setupCoreInterpreter()

	err := interp.Run(`
	': MESSAGE   "Howdy!";' 'message' SCREEN!
	'message' LOAD-SCREEN
	MESSAGE
	`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}

	if result := interp.StackPop(); result != "Howdy!" {
		t.Errorf("Expected Howdy!, got %v", result)
	}
}

func TestCore_LOAD_SCREEN_Recursive(t *testing.T) {
	interp := setupCoreInterpreter()

	err := interp.Run(`
	': MESSAGE   "Howdy!";  "message" LOAD-SCREEN' 'message' SCREEN!
	'message' LOAD-SCREEN
	`)
	if err == nil {
		t.Fatal("Expected recursive screen load to fail")
	}

	if _, ok := err.(*forthic.GlobalModuleError); !ok {
		t.Errorf("Expected GlobalModuleError, got %T: %v", err, err)
	}
}

// ========================================
// Control Flow
// ========================================

func TestCore_DEFAULT(t *testing.T) {
	interp := setupCoreInterpreter()

	err := interp.Run(`
	NULL 22.4 DEFAULT
	0 22.4 DEFAULT
	"" "Howdy" DEFAULT
	`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}

	items := interp.GetStack().Items()
	if items[0].(float64) != 22.4 {
		t.Errorf("Expected null to default to 22.4, got %v", items[0])
	}
	if items[1].(int64) != 0 {
		t.Errorf("Expected 0 to pass through, got %v", items[1])
	}
	if items[2] != "Howdy" {
		t.Errorf("Expected empty string to default to Howdy, got %v", items[2])
	}
}

func TestCore_DefaultStar(t *testing.T) {
	interp := setupCoreInterpreter()

	err := interp.Run(`NULL "5 1 +" *DEFAULT  7 "5 1 +" *DEFAULT`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}

	items := interp.GetStack().Items()
	if items[0].(int64) != 6 {
		t.Errorf("Expected lazy default 6, got %v", items[0])
	}
	if items[1].(int64) != 7 {
		t.Errorf("Expected 7 to pass through, got %v", items[1])
	}
}

func TestCore_NULL(t *testing.T) {
	interp := setupCoreInterpreter()

	err := interp.Run("NULL")
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}
	if result := interp.StackPop(); result != nil {
		t.Errorf("Expected null, got %v", result)
	}
}

// ========================================
// Profiling
// ========================================

func TestCore_Profiling(t *testing.T) {
	interp := setupCoreInterpreter()

	err := interp.Run(`
	PROFILE-START
	[0 "1 +" 6 <REPEAT]
	PROFILE-END POP
	PROFILE-DATA
	`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}

	data, ok := interp.StackPop().(*forthic.Record)
	if !ok {
		t.Fatal("Expected profile data record")
	}

	wordCountsVal, _ := data.Get("word_counts")
	wordCounts := wordCountsVal.([]interface{})
	if len(wordCounts) == 0 {
		t.Fatal("Expected word counts")
	}

	top := wordCounts[0].(*forthic.Record)
	word, _ := top.Get("word")
	count, _ := top.Get("count")
	if word != "+" {
		t.Errorf("Expected top word to be +, got %v", word)
	}
	if count.(int64) != 6 {
		t.Errorf("Expected + count to be 6, got %v", count)
	}

	if _, found := data.Get("timings"); !found {
		t.Error("Expected timings in profile data")
	}
}
