package strategy

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dshills/ctxselect/internal/structure"
	"github.com/dshills/ctxselect/pkg/types"
)

// Dependency starts from the Structural ranking and adds fragments matching
// the modules imported by the query.
func (e *Engine) Dependency(ctx context.Context, query, projectID string, maxContexts int) []types.ContextItem {
	if maxContexts <= 0 {
		return []types.ContextItem{}
	}

	baseline := e.Structural(ctx, query, projectID, maxContexts)

	imports := structure.ExtractImports(query)
	if len(imports) == 0 {
		return baseline
	}

	deps := e.retrieve(ctx, strings.Join(imports, " "), projectID, maxContexts/2)
	extra := excludeTexts(deps, types.TextSet(baseline), len(deps))

	keep := maxContexts - len(extra)
	if keep < 0 {
		keep = 0
	}
	if keep > len(baseline) {
		keep = len(baseline)
	}

	merged := make([]types.ContextItem, 0, maxContexts)
	merged = append(merged, baseline[:keep]...)
	for _, item := range extra {
		if len(merged) >= maxContexts {
			break
		}
		merged = append(merged, item)
	}

	zerolog.Ctx(ctx).Debug().
		Strs("imports", imports).
		Int("baseline", keep).
		Int("dependencies", len(merged)-keep).
		Msg("dependency merge")

	return finalize(merged, maxContexts)
}
