package strategy

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"github.com/dshills/ctxselect/pkg/types"
)

// Boost weights per shared name
const (
	ClassWeight    = 0.2
	FunctionWeight = 0.15
	VariableWeight = 0.05
)

// Structural over-fetches 2×maxContexts candidates and boosts those sharing
// names with the query: score = min(1, base × (1 + boost)).
func (e *Engine) Structural(ctx context.Context, query, projectID string, maxContexts int) []types.ContextItem {
	if maxContexts <= 0 {
		return []types.ContextItem{}
	}

	candidates := e.retrieve(ctx, query, projectID, 2*maxContexts)

	queryStructures := e.extractor.Extract(query)
	if queryStructures.IsEmpty() {
		return finalize(candidates, maxContexts)
	}

	for i := range candidates {
		overlap := queryStructures.Intersect(e.extractor.Extract(candidates[i].Text))
		candidates[i].Score = BoostedScore(candidates[i].Score, overlap)
	}

	zerolog.Ctx(ctx).Debug().
		Int("query_structures", queryStructures.Len()).
		Int("candidates", len(candidates)).
		Msg("structural rescoring")

	return finalize(candidates, maxContexts)
}

// BoostedScore applies the structural boost to a base score
func BoostedScore(base float64, overlap types.Overlap) float64 {
	boost := float64(overlap.Classes)*ClassWeight +
		float64(overlap.Functions)*FunctionWeight +
		float64(overlap.Variables)*VariableWeight
	return types.ClampScore(math.Min(1.0, base*(1+boost)))
}
