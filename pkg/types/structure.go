package types

import "sort"

// StructureSet is the structural fingerprint of a piece of text or code
type StructureSet struct {
	Classes   map[string]struct{}
	Functions map[string]struct{}
	Variables map[string]struct{}
}

// Overlap holds per-category intersection sizes between two structure sets
type Overlap struct {
	Classes   int
	Functions int
	Variables int
}

// NewStructureSet creates an empty structure set
func NewStructureSet() StructureSet {
	return StructureSet{
		Classes:   make(map[string]struct{}),
		Functions: make(map[string]struct{}),
		Variables: make(map[string]struct{}),
	}
}

// AddClass records a class (or type) name
func (s *StructureSet) AddClass(name string) {
	s.ensure()
	if name != "" {
		s.Classes[name] = struct{}{}
	}
}

// AddFunction records a function or method name
func (s *StructureSet) AddFunction(name string) {
	s.ensure()
	if name != "" {
		s.Functions[name] = struct{}{}
	}
}

// AddVariable records an assignment target name
func (s *StructureSet) AddVariable(name string) {
	s.ensure()
	if name != "" {
		s.Variables[name] = struct{}{}
	}
}

func (s *StructureSet) ensure() {
	if s.Classes == nil {
		s.Classes = make(map[string]struct{})
	}
	if s.Functions == nil {
		s.Functions = make(map[string]struct{})
	}
	if s.Variables == nil {
		s.Variables = make(map[string]struct{})
	}
}

// Len returns the total cardinality across all three categories
func (s StructureSet) Len() int {
	return len(s.Classes) + len(s.Functions) + len(s.Variables)
}

// IsEmpty reports whether no structure was found
func (s StructureSet) IsEmpty() bool {
	return s.Len() == 0
}

// Intersect counts shared names per category
func (s StructureSet) Intersect(other StructureSet) Overlap {
	return Overlap{
		Classes:   intersectCount(s.Classes, other.Classes),
		Functions: intersectCount(s.Functions, other.Functions),
		Variables: intersectCount(s.Variables, other.Variables),
	}
}

// Merge adds every name of other into s
func (s *StructureSet) Merge(other StructureSet) {
	for name := range other.Classes {
		s.AddClass(name)
	}
	for name := range other.Functions {
		s.AddFunction(name)
	}
	for name := range other.Variables {
		s.AddVariable(name)
	}
}

// SortedClasses returns class names in lexical order
func (s StructureSet) SortedClasses() []string { return sortedKeys(s.Classes) }

// SortedFunctions returns function names in lexical order
func (s StructureSet) SortedFunctions() []string { return sortedKeys(s.Functions) }

// SortedVariables returns variable names in lexical order
func (s StructureSet) SortedVariables() []string { return sortedKeys(s.Variables) }

func intersectCount(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
