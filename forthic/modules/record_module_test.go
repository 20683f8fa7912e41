package modules

import (
	"testing"

	"github.com/forthic-lang/forthic-go/forthic"
)

func setupRecordInterpreter() *forthic.Interpreter {
	return NewStandardInterpreter()
}

func popRecord(t *testing.T, interp *forthic.Interpreter) *forthic.Record {
	t.Helper()
	rec, ok := interp.StackPop().(*forthic.Record)
	if !ok {
		t.Fatal("Expected record on stack")
	}
	return rec
}

// ========================================
// Creation
// ========================================

func TestRecord_REC(t *testing.T) {
	interp := setupRecordInterpreter()

	err := interp.Run(`[ ["alpha" 2] ["beta" 3] ["gamma" 4] ] REC`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}

	rec := popRecord(t, interp)
	if alpha, _ := rec.Get("alpha"); alpha.(int64) != 2 {
		t.Errorf("Expected alpha=2, got %v", alpha)
	}
	if gamma, _ := rec.Get("gamma"); gamma.(int64) != 4 {
		t.Errorf("Expected gamma=4, got %v", gamma)
	}

	keys := rec.Keys()
	if keys[0] != "alpha" || keys[1] != "beta" || keys[2] != "gamma" {
		t.Errorf("Expected insertion-ordered keys, got %v", keys)
	}
}

func TestRecord_REC_DuplicatesOverwrite(t *testing.T) {
	interp := setupRecordInterpreter()

	err := interp.Run(`[ ["a" 1] ["b" 2] ["a" 100] ] REC`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}

	rec := popRecord(t, interp)
	if rec.Length() != 2 {
		t.Fatalf("Expected 2 entries, got %d", rec.Length())
	}
	if a, _ := rec.Get("a"); a.(int64) != 100 {
		t.Errorf("Expected later duplicate to win, got %v", a)
	}
	// Overwriting keeps the original key position
	if rec.Keys()[0] != "a" {
		t.Errorf("Expected a to stay first, got %v", rec.Keys())
	}
}

// ========================================
// Access
// ========================================

func TestRecord_RecAt(t *testing.T) {
	interp := setupRecordInterpreter()

	err := interp.Run(`[ ["alpha" 2] ["beta" 3] ["gamma" 4] ] REC  'beta' REC@`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}

	if result := interp.StackPop(); result.(int64) != 3 {
		t.Errorf("Expected 3, got %v", result)
	}
}

func TestRecord_RecAtNested(t *testing.T) {
	interp := setupRecordInterpreter()

	err := interp.Run(`[ ["outer" [["inner" 42]] REC] ] REC  ["outer" "inner"] REC@`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}

	if result := interp.StackPop(); result.(int64) != 42 {
		t.Errorf("Expected 42, got %v", result)
	}
}

func TestRecord_RecAtMissing(t *testing.T) {
	interp := setupRecordInterpreter()

	err := interp.Run(`[ ["a" 1] ] REC  'zzz' REC@  NULL 'a' REC@`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}

	items := interp.GetStack().Items()
	if items[0] != nil {
		t.Errorf("Expected nil for missing key, got %v", items[0])
	}
	if items[1] != nil {
		t.Errorf("Expected nil for null record, got %v", items[1])
	}
}

// ========================================
// <REC!
// ========================================

func TestRecord_LRecBang(t *testing.T) {
	interp := setupRecordInterpreter()

	err := interp.Run(`
	[ ["alpha" 2] ["beta" 3] ["gamma" 4] ] REC
	700 'beta' <REC! 'beta' REC@
	`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}
	if result := interp.StackPop(); result.(int64) != 700 {
		t.Errorf("Expected 700, got %v", result)
	}
}

func TestRecord_LRecBangNested(t *testing.T) {
	interp := setupRecordInterpreter()

	err := interp.Run(`
	[] REC "Green" ["2021-03-22" "TEST-1234"] <REC! ["2021-03-22" "TEST-1234"] REC@
	`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}
	if result := interp.StackPop(); result != "Green" {
		t.Errorf("Expected Green, got %v", result)
	}
}

func TestRecord_LRecBangOnNull(t *testing.T) {
	interp := setupRecordInterpreter()

	err := interp.Run(`NULL 700 'beta' <REC! 'beta' REC@`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}
	if result := interp.StackPop(); result.(int64) != 700 {
		t.Errorf("Expected 700, got %v", result)
	}
}

// ========================================
// <DEL
// ========================================

func TestRecord_DelFromArray(t *testing.T) {
	interp := setupRecordInterpreter()

	err := interp.Run(`[ "a" "b" "c" ] 1 <DEL`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}

	arr := interp.StackPop().([]interface{})
	if len(arr) != 2 || arr[0] != "a" || arr[1] != "c" {
		t.Errorf("Expected [a c], got %v", arr)
	}
}

func TestRecord_DelFromRecord(t *testing.T) {
	interp := setupRecordInterpreter()

	err := interp.Run(`[["a" 1] ["b" 2] ["c" 3]] REC  "b" <DEL`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}

	rec := popRecord(t, interp)
	keys := rec.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "c" {
		t.Errorf("Expected keys [a c], got %v", keys)
	}
}

func TestRecord_DelMissingKeyIsSilent(t *testing.T) {
	interp := setupRecordInterpreter()

	err := interp.Run(`[["a" 1] ["b" 2] ["c" 3]] REC  "d" <DEL`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}

	rec := popRecord(t, interp)
	if rec.Length() != 3 {
		t.Errorf("Expected all 3 keys to remain, got %v", rec.Keys())
	}
}

// ========================================
// RELABEL
// ========================================

func TestRecord_RelabelArray(t *testing.T) {
	interp := setupRecordInterpreter()

	err := interp.Run(`[ "a" "b" "c" ] [0 2] [25 23] RELABEL`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}

	arr := interp.StackPop().([]interface{})
	if len(arr) != 2 || arr[0] != "c" || arr[1] != "a" {
		t.Errorf("Expected [c a], got %v", arr)
	}
}

func TestRecord_RelabelRecord(t *testing.T) {
	interp := setupRecordInterpreter()

	err := interp.Run(`[["a" 1] ["b" 2] ["c" 3]] REC  ["a" "c"] ["alpha" "gamma"] RELABEL`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}

	rec := popRecord(t, interp)
	keys := rec.Keys()
	if len(keys) != 2 || keys[0] != "alpha" || keys[1] != "gamma" {
		t.Errorf("Expected keys [alpha gamma], got %v", keys)
	}
	if alpha, _ := rec.Get("alpha"); alpha.(int64) != 1 {
		t.Errorf("Expected alpha=1, got %v", alpha)
	}
	if gamma, _ := rec.Get("gamma"); gamma.(int64) != 3 {
		t.Errorf("Expected gamma=3, got %v", gamma)
	}
}

// ========================================
// KEYS / VALUES
// ========================================

func TestRecord_KeysValuesForArray(t *testing.T) {
	interp := setupRecordInterpreter()

	err := interp.Run(`['a' 'b' 'c'] KEYS  ['a' 'b' 'c'] VALUES`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}

	values := interp.StackPop().([]interface{})
	keys := interp.StackPop().([]interface{})

	if keys[0].(int64) != 0 || keys[1].(int64) != 1 || keys[2].(int64) != 2 {
		t.Errorf("Expected [0 1 2], got %v", keys)
	}
	if values[0] != "a" || values[2] != "c" {
		t.Errorf("Expected [a b c], got %v", values)
	}
}

func TestRecord_KeysValuesForRecord(t *testing.T) {
	interp := setupRecordInterpreter()

	err := interp.Run(`[['a' 1] ['b' 2]] REC KEYS  [['a' 1] ['b' 2]] REC VALUES`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}

	values := interp.StackPop().([]interface{})
	keys := interp.StackPop().([]interface{})

	if keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Expected keys [a b], got %v", keys)
	}
	if values[0].(int64) != 1 || values[1].(int64) != 2 {
		t.Errorf("Expected values [1 2], got %v", values)
	}
}

// ========================================
// Additional words
// ========================================

func TestRecord_PipeRecAt(t *testing.T) {
	interp := setupRecordInterpreter()

	err := interp.Run(`[ [['x' 1]] REC [['x' 2]] REC ]  'x' |REC@`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}

	arr := interp.StackPop().([]interface{})
	if arr[0].(int64) != 1 || arr[1].(int64) != 2 {
		t.Errorf("Expected [1 2], got %v", arr)
	}
}

func TestRecord_InvertKeys(t *testing.T) {
	interp := setupRecordInterpreter()

	err := interp.Run(`[['A' [['X' 1] ['Y' 2]] REC] ['B' [['X' 3] ['Y' 4]] REC]] REC INVERT-KEYS`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}

	rec := popRecord(t, interp)
	xVal, _ := rec.Get("X")
	x := xVal.(*forthic.Record)
	if a, _ := x.Get("A"); a.(int64) != 1 {
		t.Errorf("Expected X.A=1, got %v", a)
	}
	if b, _ := x.Get("B"); b.(int64) != 3 {
		t.Errorf("Expected X.B=3, got %v", b)
	}
}

func TestRecord_RecDefaults(t *testing.T) {
	interp := setupRecordInterpreter()

	err := interp.Run(`[['a' 1] ['b' ""]] REC  [['b' 20] ['c' 30]] REC-DEFAULTS`)
	if err != nil {
		t.Fatalf("Error running code: %v", err)
	}

	rec := popRecord(t, interp)
	if a, _ := rec.Get("a"); a.(int64) != 1 {
		t.Errorf("Expected a=1, got %v", a)
	}
	if b, _ := rec.Get("b"); b.(int64) != 20 {
		t.Errorf("Expected empty b to default to 20, got %v", b)
	}
	if c, _ := rec.Get("c"); c.(int64) != 30 {
		t.Errorf("Expected missing c to default to 30, got %v", c)
	}
}
