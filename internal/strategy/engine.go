package strategy

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dshills/ctxselect/internal/structure"
	"github.com/dshills/ctxselect/pkg/types"
)

// Retriever fetches candidate fragments by similarity to a query
type Retriever interface {
	Retrieve(ctx context.Context, query, projectID string, topK int) ([]types.ContextItem, error)
}

// SessionAdapter gives read access to the active session and its history
type SessionAdapter interface {
	// ActiveSession returns nil when no session is active
	ActiveSession(ctx context.Context) (*types.SessionHandle, error)
	// History returns up to limit entries, most recent first
	History(ctx context.Context, limit int) ([]types.SessionHistoryEntry, error)
}

// Engine executes retrieval strategies against a Retriever
type Engine struct {
	retriever Retriever
	extractor *structure.Extractor
}

// New creates an Engine. A nil extractor gets a default one.
func New(retriever Retriever, extractor *structure.Extractor) *Engine {
	if extractor == nil {
		extractor = structure.New()
	}
	return &Engine{
		retriever: retriever,
		extractor: extractor,
	}
}

// Run executes the named strategy. Names without a strategy of their own,
// Auto included, run Balanced; callers resolve Auto beforehand.
func (e *Engine) Run(ctx context.Context, name types.StrategyName, query, projectID string, maxContexts int, sessions SessionAdapter) []types.ContextItem {
	switch name {
	case types.StrategySemantic:
		return e.Semantic(ctx, query, projectID, maxContexts)
	case types.StrategyStructural:
		return e.Structural(ctx, query, projectID, maxContexts)
	case types.StrategyDependency:
		return e.Dependency(ctx, query, projectID, maxContexts)
	case types.StrategyConversation:
		return e.Conversation(ctx, query, projectID, maxContexts, sessions)
	case types.StrategyBalanced:
		return e.Balanced(ctx, query, projectID, maxContexts)
	default:
		zerolog.Ctx(ctx).Debug().Str("strategy", string(name)).Msg("no dedicated strategy, using balanced")
		return e.Balanced(ctx, query, projectID, maxContexts)
	}
}

// Semantic returns the retriever's results. Ordered, in-range input passes
// through unchanged; otherwise scores are clamped to [0,1] and re-sorted.
func (e *Engine) Semantic(ctx context.Context, query, projectID string, maxContexts int) []types.ContextItem {
	items := e.retrieve(ctx, query, projectID, maxContexts)
	return finalize(items, maxContexts)
}

// retrieve calls the retriever and returns fresh, clamped copies of its items.
// Errors are logged and produce an empty list.
func (e *Engine) retrieve(ctx context.Context, query, projectID string, topK int) []types.ContextItem {
	if topK <= 0 || e.retriever == nil {
		return []types.ContextItem{}
	}

	items, err := e.retriever.Retrieve(ctx, query, projectID, topK)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("project_id", projectID).
			Int("top_k", topK).
			Msg("retrieval failed")
		return []types.ContextItem{}
	}

	out := make([]types.ContextItem, 0, len(items))
	for _, item := range items {
		c := item.Clone()
		c.Score = types.ClampScore(c.Score)
		out = append(out, c)
	}
	return out
}

// finalize applies the ordering and budget invariants shared by all strategies
func finalize(items []types.ContextItem, maxContexts int) []types.ContextItem {
	types.SortByScore(items)
	return types.Truncate(items, maxContexts)
}

// excludeTexts keeps up to limit items whose text is not in seen, adding kept
// texts to seen
func excludeTexts(items []types.ContextItem, seen map[string]struct{}, limit int) []types.ContextItem {
	kept := make([]types.ContextItem, 0, limit)
	for _, item := range items {
		if len(kept) >= limit {
			break
		}
		if _, ok := seen[item.Text]; ok {
			continue
		}
		seen[item.Text] = struct{}{}
		kept = append(kept, item)
	}
	return kept
}
