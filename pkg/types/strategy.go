package types

import (
	"fmt"
	"strings"
)

// StrategyName identifies a context selection strategy
type StrategyName string

const (
	StrategySemantic     StrategyName = "semantic"
	StrategyStructural   StrategyName = "structural"
	StrategyDependency   StrategyName = "dependency"
	StrategyBalanced     StrategyName = "balanced"
	StrategyConversation StrategyName = "conversation"
	StrategyAuto         StrategyName = "auto"
)

// AllStrategies lists every strategy name, Auto last
var AllStrategies = []StrategyName{
	StrategySemantic,
	StrategyStructural,
	StrategyDependency,
	StrategyBalanced,
	StrategyConversation,
	StrategyAuto,
}

// ParseStrategy converts a case-insensitive name into a StrategyName.
// An empty string resolves to Auto.
func ParseStrategy(s string) (StrategyName, error) {
	name := StrategyName(strings.ToLower(strings.TrimSpace(s)))
	if name == "" {
		return StrategyAuto, nil
	}
	if !name.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
	return name, nil
}

// Valid reports whether the name is a known strategy
func (n StrategyName) Valid() bool {
	for _, s := range AllStrategies {
		if s == n {
			return true
		}
	}
	return false
}

func (n StrategyName) String() string {
	return string(n)
}

// QueryAnalysis holds complexity metrics for a query and the recommended strategy
type QueryAnalysis struct {
	WordCount       int
	StructureCount  int
	Structures      StructureSet
	OptimalStrategy StrategyName
}
