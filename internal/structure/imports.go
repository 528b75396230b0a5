package structure

import (
	"regexp"
	"strings"
)

var (
	fromImportPattern = regexp.MustCompile(`\bfrom\s+([A-Za-z_.][\w.]*)\s+import\b[^\n;]*`)
	importPattern     = regexp.MustCompile(`\bimport\s+([A-Za-z_][\w.]*(?:\s+as\s+\w+)?(?:\s*,\s*[A-Za-z_][\w.]*(?:\s+as\s+\w+)?)*)`)
	goImportPattern   = regexp.MustCompile(`\bimport\s+(?:[A-Za-z_.]\w*\s+)?"([^"]+)"`)
	goImportBlock     = regexp.MustCompile(`\bimport\s*\(([^)]*)\)`)
	quotedPath        = regexp.MustCompile(`"([^"]+)"`)
)

// importNoise are English words that follow "import" in prose
var importNoise = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"it": {}, "its": {}, "my": {}, "our": {}, "your": {}, "their": {}, "all": {},
	"some": {}, "any": {}, "of": {}, "to": {}, "into": {}, "here": {}, "there": {},
}

// ExtractImports returns module references mentioned in text, unique and in
// order of first appearance. It understands Python "import a, b as c",
// "from a.b import c" and Go single and grouped import declarations.
func ExtractImports(text string) []string {
	var found []string
	seen := make(map[string]struct{})
	add := func(name string) {
		name = strings.Trim(name, ".")
		if name == "" || IsStopword(name) {
			return
		}
		if _, ok := importNoise[strings.ToLower(name)]; ok {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		found = append(found, name)
	}

	type match struct {
		pos   int
		names []string
	}
	var matches []match

	// Go forms are matched first and masked so the Python patterns skip them
	masked := []byte(text)
	for _, idx := range goImportBlock.FindAllStringSubmatchIndex(text, -1) {
		var names []string
		for _, m := range quotedPath.FindAllStringSubmatch(text[idx[2]:idx[3]], -1) {
			names = append(names, m[1])
		}
		matches = append(matches, match{pos: idx[0], names: names})
		mask(masked, idx[0], idx[1])
	}
	for _, idx := range goImportPattern.FindAllSubmatchIndex(masked, -1) {
		matches = append(matches, match{pos: idx[0], names: []string{string(masked[idx[2]:idx[3]])}})
		mask(masked, idx[0], idx[1])
	}

	for _, idx := range fromImportPattern.FindAllSubmatchIndex(masked, -1) {
		matches = append(matches, match{pos: idx[0], names: []string{string(masked[idx[2]:idx[3]])}})
		mask(masked, idx[0], idx[1])
	}
	for _, idx := range importPattern.FindAllSubmatchIndex(masked, -1) {
		matches = append(matches, match{pos: idx[0], names: splitImportList(string(masked[idx[2]:idx[3]]))})
	}

	// Restore textual order across the different forms
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].pos < matches[j-1].pos; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}

	for _, m := range matches {
		for _, name := range m.names {
			add(name)
		}
	}
	return found
}

// splitImportList turns "a.b as c, d" into [a.b d]
func splitImportList(list string) []string {
	parts := strings.Split(list, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		fields := strings.Fields(part)
		if len(fields) > 0 {
			names = append(names, fields[0])
		}
	}
	return names
}

func mask(b []byte, start, end int) {
	for i := start; i < end; i++ {
		if b[i] != '\n' {
			b[i] = ' '
		}
	}
}
