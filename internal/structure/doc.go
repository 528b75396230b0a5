// Package structure extracts structural fingerprints from free text or source code.
//
// A fingerprint is the set of class, function and variable names found in
// the input. Extraction tries a strict parse first and falls back to pattern
// heuristics when the input is not valid code:
//
//  1. Python via tree-sitter (a tree without ERROR or MISSING nodes is strict)
//  2. Go via go/parser, as a file, as top-level declarations, or as statements
//  3. Heuristics: "class X", "def x" and "x = ..." patterns minus keywords
//
// # Basic Usage
//
//	e := structure.New()
//
//	set := e.Extract("class UserService:\n    def get_user(self, id): ...")
//	fmt.Println(set.SortedClasses())   // [UserService]
//	fmt.Println(set.SortedFunctions()) // [get_user]
//
// Parse exposes which path produced the result:
//
//	outcome := e.Parse("please add a def validate_token helper")
//	if outcome.Mode == structure.ModeHeuristic {
//	    // input was not parseable code
//	}
//
// Extract never fails. Parse errors are logged at debug level and the
// heuristic path always yields a (possibly empty) set.
//
// # Imports
//
// ExtractImports returns module references mentioned in text:
//
//	structure.ExtractImports("import numpy as np; from os.path import join")
//	// [numpy os.path]
package structure
