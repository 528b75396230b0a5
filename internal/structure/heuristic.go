package structure

import (
	"regexp"

	"github.com/dshills/ctxselect/pkg/types"
)

var (
	classPattern  = regexp.MustCompile(`\bclass\s+([A-Za-z_][A-Za-z0-9_]*)`)
	defPattern    = regexp.MustCompile(`\bdef\s+([A-Za-z_][A-Za-z0-9_]*)`)
	assignPattern = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*=`)
)

// stopwords are language keywords and literals never reported as names
var stopwords = map[string]struct{}{
	// Python
	"False": {}, "None": {}, "True": {}, "and": {}, "as": {}, "assert": {},
	"async": {}, "await": {}, "break": {}, "class": {}, "continue": {},
	"def": {}, "del": {}, "elif": {}, "else": {}, "except": {}, "finally": {},
	"for": {}, "from": {}, "global": {}, "if": {}, "import": {}, "in": {},
	"is": {}, "lambda": {}, "nonlocal": {}, "not": {}, "or": {}, "pass": {},
	"raise": {}, "return": {}, "try": {}, "while": {}, "with": {}, "yield": {},
	"self": {},
	// Go
	"func": {}, "var": {}, "const": {}, "type": {}, "struct": {}, "interface": {},
	"package": {}, "go": {}, "defer": {}, "chan": {}, "map": {}, "range": {},
	"switch": {}, "case": {}, "default": {}, "select": {}, "fallthrough": {},
	"goto": {},
	// Literals
	"true": {}, "false": {}, "nil": {}, "null": {}, "none": {},
}

// IsStopword reports whether name is a keyword or literal
func IsStopword(name string) bool {
	_, ok := stopwords[name]
	return ok
}

// extractHeuristic scans text for declaration and assignment patterns
func extractHeuristic(text string) types.StructureSet {
	set := types.NewStructureSet()

	for _, m := range classPattern.FindAllStringSubmatch(text, -1) {
		if !IsStopword(m[1]) {
			set.AddClass(m[1])
		}
	}

	for _, m := range defPattern.FindAllStringSubmatch(text, -1) {
		if !IsStopword(m[1]) {
			set.AddFunction(m[1])
		}
	}

	for _, idx := range assignPattern.FindAllStringSubmatchIndex(text, -1) {
		nameStart, nameEnd, matchEnd := idx[2], idx[3], idx[1]

		// Skip comparisons (==) and attribute targets (obj.attr = ...)
		if matchEnd < len(text) && text[matchEnd] == '=' {
			continue
		}
		if nameStart > 0 && text[nameStart-1] == '.' {
			continue
		}
		// Keyword arguments: f(a=1, b=2)
		if insideParens(text, nameStart) {
			continue
		}

		name := text[nameStart:nameEnd]
		if !IsStopword(name) {
			set.AddVariable(name)
		}
	}

	return set
}

// insideParens reports whether position i lies within an unclosed '('
func insideParens(text string, i int) bool {
	depth := 0
	for j := 0; j < i; j++ {
		switch text[j] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		}
	}
	return depth > 0
}
