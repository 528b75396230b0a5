// Package types provides shared type definitions for ctxselect.
//
// This package defines the domain types exchanged between the context
// selection core and its collaborators: scored context fragments, structural
// fingerprints, query analyses, strategy names and session history entries.
//
// # Context Items
//
// ContextItem is a scored unit of retrieved text with metadata:
//
//	item := types.ContextItem{
//	    Text:     "def load_config(path): ...",
//	    Metadata: map[string]any{"filename": "config.py", "type": "function"},
//	    Score:    0.82,
//	}
//
// Scores are always clamped to the [0, 1] range with ClampScore. Two items
// with identical Text are the same logical fragment regardless of the
// strategy that produced them.
//
// # Structural Fingerprints
//
// StructureSet holds the class, function and variable names extracted from a
// piece of text or code:
//
//	set := types.NewStructureSet()
//	set.AddClass("UserService")
//	set.AddFunction("get_user")
//
//	overlap := set.Intersect(other) // per-category intersection sizes
//
// # Strategies
//
// StrategyName enumerates the retrieval strategies:
//
//	semantic, structural, dependency, balanced, conversation, auto
//
// Use ParseStrategy to convert user input:
//
//	name, err := types.ParseStrategy("Balanced")
package types
