// Package analyzer measures query complexity and recommends a retrieval strategy.
package analyzer

import (
	"strings"

	"github.com/dshills/ctxselect/internal/structure"
	"github.com/dshills/ctxselect/pkg/types"
)

const (
	// StructuralThreshold is the structure count above which Structural is chosen
	StructuralThreshold = 5
	// BalancedThreshold is the word count above which Balanced is chosen
	BalancedThreshold = 50
)

// Analyzer classifies queries by their structural and lexical complexity
type Analyzer struct {
	extractor *structure.Extractor
}

// New creates an Analyzer backed by the given extractor.
// A nil extractor gets a default one.
func New(extractor *structure.Extractor) *Analyzer {
	if extractor == nil {
		extractor = structure.New()
	}
	return &Analyzer{extractor: extractor}
}

// Analyze computes word and structure counts and picks the optimal strategy.
// Rules are evaluated in order and the first match wins.
func (a *Analyzer) Analyze(query string) types.QueryAnalysis {
	structures := a.extractor.Extract(query)

	analysis := types.QueryAnalysis{
		WordCount:      len(strings.Fields(query)),
		StructureCount: structures.Len(),
		Structures:     structures,
	}
	analysis.OptimalStrategy = recommend(query, analysis.WordCount, analysis.StructureCount)

	return analysis
}

func recommend(query string, words, structures int) types.StrategyName {
	lower := strings.ToLower(query)

	switch {
	case structures > StructuralThreshold:
		return types.StrategyStructural
	case words > BalancedThreshold:
		return types.StrategyBalanced
	case strings.Contains(lower, "import") || strings.Contains(lower, "from"):
		return types.StrategyDependency
	default:
		return types.StrategySemantic
	}
}
