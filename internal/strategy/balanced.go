package strategy

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dshills/ctxselect/pkg/types"
)

// Slots is the budget split used by Balanced
type Slots struct {
	Semantic   int
	Structural int
	Dependency int
}

// BalancedSlots partitions maxContexts; Dependency takes the remainder
func BalancedSlots(maxContexts int) Slots {
	if maxContexts <= 0 {
		return Slots{}
	}
	s := Slots{
		Semantic:   maxContexts / 3,
		Structural: maxContexts / 3,
	}
	s.Dependency = maxContexts - s.Semantic - s.Structural
	return s
}

// Balanced blends Semantic, Structural and Dependency results, each bucket
// filtered against the texts already chosen by the earlier ones.
func (e *Engine) Balanced(ctx context.Context, query, projectID string, maxContexts int) []types.ContextItem {
	if maxContexts <= 0 {
		return []types.ContextItem{}
	}

	slots := BalancedSlots(maxContexts)
	seen := make(map[string]struct{})

	semantic := excludeTexts(e.Semantic(ctx, query, projectID, slots.Semantic), seen, slots.Semantic)
	structural := excludeTexts(e.Structural(ctx, query, projectID, 2*slots.Structural), seen, slots.Structural)
	dependency := excludeTexts(e.Dependency(ctx, query, projectID, 2*slots.Dependency), seen, slots.Dependency)

	zerolog.Ctx(ctx).Debug().
		Int("semantic", len(semantic)).
		Int("structural", len(structural)).
		Int("dependency", len(dependency)).
		Msg("balanced buckets")

	items := make([]types.ContextItem, 0, maxContexts)
	items = append(items, semantic...)
	items = append(items, structural...)
	items = append(items, dependency...)

	return finalize(items, maxContexts)
}
