package modules

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/forthic-lang/forthic-go/forthic"
)

// StringModule provides string manipulation, regex, and safe-quoting operations
type StringModule struct {
	*forthic.Module
}

// NewStringModule creates a new string module
func NewStringModule() *StringModule {
	m := &StringModule{
		Module: forthic.NewModule("string"),
	}
	m.registerWords()
	return m
}

func (m *StringModule) registerWords() {
	// Conversion
	m.AddModuleWord(">STR", m.toStr)
	m.AddModuleWord("URL-ENCODE", m.urlEncode)
	m.AddModuleWord("URL-DECODE", m.urlDecode)

	// Transform
	m.AddModuleWord("|LOWER", m.lowercase)
	m.AddModuleWord("|UPPER", m.uppercase)
	m.AddModuleWord("|ASCII", m.ascii)
	m.AddModuleWord("STRIP", m.strip)
	m.AddModuleWord("QUOTED", m.quoted)

	// Split/Join
	m.AddModuleWord("SPLIT", m.split)
	m.AddModuleWord("JOIN", m.join)
	m.AddModuleWord("CONCAT", m.concat)

	// Pattern
	m.AddModuleWord("REPLACE", m.replace)
	m.AddModuleWord("RE-REPLACE", m.reReplace)
	m.AddModuleWord("RE-MATCH", m.reMatch)
	m.AddModuleWord("RE-MATCH-ALL", m.reMatchAll)
	m.AddModuleWord("RE-MATCH-GROUP", m.reMatchGroup)

	// Constants
	m.AddModuleWord("/N", m.slashN)
	m.AddModuleWord("/R", m.slashR)
	m.AddModuleWord("/T", m.slashT)
}

// popString pops a value, treating null as the empty string
func popString(interp *forthic.Interpreter) string {
	val := interp.StackPop()
	if val == nil {
		return ""
	}
	if s, ok := val.(string); ok {
		return s
	}
	return toString(val)
}

// ========================================
// Conversion
// ========================================

func (m *StringModule) toStr(interp *forthic.Interpreter) error {
	item := interp.StackPop()
	interp.StackPush(toString(item))
	return nil
}

func (m *StringModule) urlEncode(interp *forthic.Interpreter) error {
	str := popString(interp)
	interp.StackPush(url.QueryEscape(str))
	return nil
}

func (m *StringModule) urlDecode(interp *forthic.Interpreter) error {
	str := popString(interp)
	decoded, err := url.QueryUnescape(str)
	if err != nil {
		interp.StackPush("")
		return nil
	}
	interp.StackPush(decoded)
	return nil
}

// ========================================
// Transform
// ========================================

func (m *StringModule) lowercase(interp *forthic.Interpreter) error {
	interp.StackPush(strings.ToLower(popString(interp)))
	return nil
}

func (m *StringModule) uppercase(interp *forthic.Interpreter) error {
	interp.StackPush(strings.ToUpper(popString(interp)))
	return nil
}

// asciiReplacer maps common Unicode punctuation to ASCII equivalents before
// non-ASCII characters are stripped. Curly quotes are not mapped; they strip
// away with the rest of the non-ASCII characters.
var asciiReplacer = strings.NewReplacer(
	"–", "-", // en dash
	"—", "-", // em dash
	"…", "...", // ellipsis
	"\u00a0", " ", // no-break space
)

var asciiTransform = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.Predicate(func(r rune) bool { return r > 127 })),
)

func (m *StringModule) ascii(interp *forthic.Interpreter) error {
	str := popString(interp)
	mapped := asciiReplacer.Replace(str)
	result, _, err := transform.String(asciiTransform, mapped)
	if err != nil {
		interp.StackPush(mapped)
		return nil
	}
	interp.StackPush(result)
	return nil
}

func (m *StringModule) strip(interp *forthic.Interpreter) error {
	interp.StackPush(strings.TrimSpace(popString(interp)))
	return nil
}

// quoted wraps a string in DLE delimiters, neutralizing any embedded DLE
// so content can't escape its quoting
func (m *StringModule) quoted(interp *forthic.Interpreter) error {
	str := popString(interp)
	dle := string(forthic.DLE)
	sanitized := strings.ReplaceAll(str, dle, " ")
	interp.StackPush(dle + sanitized + dle)
	return nil
}

// ========================================
// Split/Join
// ========================================

func (m *StringModule) split(interp *forthic.Interpreter) error {
	sep := interp.StackPop()
	str := interp.StackPop()

	if str == nil {
		str = ""
	}

	s, ok1 := str.(string)
	sepStr, ok2 := sep.(string)

	if !ok1 || !ok2 {
		interp.StackPush([]interface{}{})
		return nil
	}

	parts := strings.Split(s, sepStr)
	result := make([]interface{}, len(parts))
	for i, part := range parts {
		result[i] = part
	}
	interp.StackPush(result)
	return nil
}

func (m *StringModule) join(interp *forthic.Interpreter) error {
	sep := interp.StackPop()
	arr := interp.StackPop()

	slice, ok1 := asArray(arr)
	sepStr, ok2 := sep.(string)

	if !ok1 || !ok2 {
		interp.StackPush("")
		return nil
	}

	parts := make([]string, len(slice))
	for i, item := range slice {
		parts[i] = toString(item)
	}

	interp.StackPush(strings.Join(parts, sepStr))
	return nil
}

func (m *StringModule) concat(interp *forthic.Interpreter) error {
	top := interp.StackPop()

	// Case 1: Array on top of stack
	if arr, ok := asArray(top); ok {
		parts := make([]string, len(arr))
		for i, item := range arr {
			parts[i] = toString(item)
		}
		interp.StackPush(strings.Join(parts, ""))
		return nil
	}

	// Case 2: Two values
	first := interp.StackPop()
	interp.StackPush(toString(first) + toString(top))
	return nil
}

// ========================================
// Pattern
// ========================================

// replace is plain substring replacement: ( str old new -- str )
func (m *StringModule) replace(interp *forthic.Interpreter) error {
	newStr := interp.StackPop()
	oldStr := interp.StackPop()
	str := interp.StackPop()

	if str == nil {
		interp.StackPush("")
		return nil
	}

	s, ok1 := str.(string)
	o, ok2 := oldStr.(string)
	n, ok3 := newStr.(string)

	if !ok1 || !ok2 || !ok3 {
		interp.StackPush(str)
		return nil
	}

	interp.StackPush(strings.ReplaceAll(s, o, n))
	return nil
}

var backrefRe = regexp.MustCompile(`\\(\d+)`)

// reReplace is regex replacement with \1-style backreferences:
// ( str pattern replacement -- str )
func (m *StringModule) reReplace(interp *forthic.Interpreter) error {
	replacement := interp.StackPop()
	pattern := interp.StackPop()
	str := interp.StackPop()

	s := toString(str)
	p, ok1 := pattern.(string)
	r, ok2 := replacement.(string)

	if !ok1 || !ok2 {
		interp.StackPush(s)
		return nil
	}

	re, err := regexp.Compile(p)
	if err != nil {
		return forthic.NewGlobalModuleError(fmt.Sprintf("Invalid regex: %s", p)).WithCause(err)
	}

	// Normalize \1-style backreferences to Go's ${1} syntax
	normalized := backrefRe.ReplaceAllString(r, `$${$1}`)
	interp.StackPush(re.ReplaceAllString(s, normalized))
	return nil
}

// reMatch pushes the submatch array for the first match, or null
func (m *StringModule) reMatch(interp *forthic.Interpreter) error {
	pattern := interp.StackPop()
	str := interp.StackPop()

	s := toString(str)
	p, ok := pattern.(string)
	if !ok {
		interp.StackPush(nil)
		return nil
	}

	re, err := regexp.Compile(p)
	if err != nil {
		return forthic.NewGlobalModuleError(fmt.Sprintf("Invalid regex: %s", p)).WithCause(err)
	}

	matches := re.FindStringSubmatch(s)
	if matches == nil {
		interp.StackPush(nil)
		return nil
	}

	result := make([]interface{}, len(matches))
	for i, match := range matches {
		result[i] = match
	}
	interp.StackPush(result)
	return nil
}

// reMatchAll pushes capture group 1 of every match
func (m *StringModule) reMatchAll(interp *forthic.Interpreter) error {
	pattern := interp.StackPop()
	str := interp.StackPop()

	s := toString(str)
	p, ok := pattern.(string)
	if !ok {
		interp.StackPush([]interface{}{})
		return nil
	}

	re, err := regexp.Compile(p)
	if err != nil {
		return forthic.NewGlobalModuleError(fmt.Sprintf("Invalid regex: %s", p)).WithCause(err)
	}

	allMatches := re.FindAllStringSubmatch(s, -1)
	result := make([]interface{}, 0)
	for _, matches := range allMatches {
		if len(matches) > 1 {
			result = append(result, matches[1])
		}
	}

	interp.StackPush(result)
	return nil
}

// reMatchGroup pushes group n of a RE-MATCH result
func (m *StringModule) reMatchGroup(interp *forthic.Interpreter) error {
	num := interp.StackPop()
	match := interp.StackPop()

	arr, ok := asArray(match)
	if !ok {
		interp.StackPush(nil)
		return nil
	}

	idx := toInt(num)
	if idx < 0 || idx >= len(arr) {
		interp.StackPush(nil)
		return nil
	}

	interp.StackPush(arr[idx])
	return nil
}

// ========================================
// Constants
// ========================================

func (m *StringModule) slashN(interp *forthic.Interpreter) error {
	interp.StackPush("\n")
	return nil
}

func (m *StringModule) slashR(interp *forthic.Interpreter) error {
	interp.StackPush("\r")
	return nil
}

func (m *StringModule) slashT(interp *forthic.Interpreter) error {
	interp.StackPush("\t")
	return nil
}
