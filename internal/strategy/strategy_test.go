package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ctxselect/pkg/types"
)

const project = "proj-1"

func TestStrategies_NonPositiveBudget(t *testing.T) {
	retriever := &fakeRetriever{fallback: ranked("c", 10, 0.9, 0.05)}
	engine := New(retriever, nil)
	sessions := &fakeSessions{
		active:  &types.SessionHandle{ID: "s1"},
		history: []types.SessionHistoryEntry{generateEntry("p", time.Now())},
	}
	ctx := context.Background()

	for _, name := range types.AllStrategies {
		for _, budget := range []int{0, -3} {
			items := engine.Run(ctx, name, "import os; class A: pass", project, budget, sessions)
			assert.NotNil(t, items, "%s/%d", name, budget)
			assert.Empty(t, items, "%s/%d", name, budget)
		}
	}
	assert.Empty(t, retriever.calls)
}

func TestStrategies_BudgetAndOrdering(t *testing.T) {
	queries := []string{
		"how does the cache work",
		"import numpy as np; compute summary statistics",
		"class c1:\n    def c2(self): pass\n",
	}
	sessions := &fakeSessions{
		active: &types.SessionHandle{ID: "s1"},
		history: []types.SessionHistoryEntry{
			generateEntry("first", time.Now()),
			generateEntry("second", time.Now()),
		},
	}
	ctx := context.Background()

	for _, name := range types.AllStrategies {
		for _, query := range queries {
			for budget := 1; budget <= 12; budget++ {
				retriever := &fakeRetriever{
					byQuery:  map[string][]types.ContextItem{"numpy": ranked("dep", 10, 0.95, 0.07)},
					fallback: ranked("c", 30, 0.9, 0.03),
				}
				items := New(retriever, nil).Run(ctx, name, query, project, budget, sessions)

				assert.LessOrEqual(t, len(items), budget, "%s budget=%d", name, budget)
				for i := 1; i < len(items); i++ {
					assert.GreaterOrEqual(t, items[i-1].Score, items[i].Score, "%s budget=%d", name, budget)
				}
				for _, item := range items {
					assert.GreaterOrEqual(t, item.Score, 0.0)
					assert.LessOrEqual(t, item.Score, 1.0)
				}
			}
		}
	}
}

func TestSemantic_Passthrough(t *testing.T) {
	retriever := &fakeRetriever{fallback: ranked("c", 10, 0.9, 0.1)}
	items := New(retriever, nil).Semantic(context.Background(), "cache eviction", project, 3)

	assert.Equal(t, []string{"c0", "c1", "c2"}, texts(items))
	require.Len(t, retriever.calls, 1)
	assert.Equal(t, retrieveCall{query: "cache eviction", projectID: project, topK: 3}, retriever.calls[0])
	assert.Equal(t, "c0.go", items[0].MetaString(types.MetaFilename, ""))
}

func TestSemantic_NormalizesUnorderedScores(t *testing.T) {
	retriever := &fakeRetriever{fallback: []types.ContextItem{
		{Text: "a", Score: 0.2},
		{Text: "b", Score: 0.9},
		{Text: "c", Score: 1.4},
	}}

	items := New(retriever, nil).Semantic(context.Background(), "q", project, 3)

	assert.Equal(t, []string{"c", "b", "a"}, texts(items))
	assert.Equal(t, []float64{1.0, 0.9, 0.2}, []float64{items[0].Score, items[1].Score, items[2].Score})
}

func TestSemantic_ItemsAreCopies(t *testing.T) {
	source := ranked("c", 2, 0.9, 0.1)
	retriever := &fakeRetriever{fallback: source}

	items := New(retriever, nil).Semantic(context.Background(), "q", project, 2)
	items[0].Metadata["mutated"] = true
	items[0].Score = 0

	assert.NotContains(t, source[0].Metadata, "mutated")
	assert.Equal(t, 0.9, source[0].Score)
}

func TestRetrieverError_Degrades(t *testing.T) {
	retriever := &fakeRetriever{err: errors.New("vector store down")}
	engine := New(retriever, nil)

	for _, name := range types.AllStrategies {
		var items []types.ContextItem
		require.NotPanics(t, func() {
			items = engine.Run(context.Background(), name, "import os", project, 5, nil)
		})
		assert.Empty(t, items, name)
	}
}

func TestNilRetriever(t *testing.T) {
	items := New(nil, nil).Balanced(context.Background(), "anything", project, 5)
	assert.Empty(t, items)
}

func TestRun_Dispatch(t *testing.T) {
	ctx := context.Background()
	query := "import numpy as np; compute summary statistics"
	newEngine := func() *Engine {
		return New(&fakeRetriever{
			byQuery:  map[string][]types.ContextItem{"numpy": ranked("dep", 5, 0.95, 0.1)},
			fallback: ranked("c", 20, 0.9, 0.04),
		}, nil)
	}

	assert.Equal(t, newEngine().Semantic(ctx, query, project, 5), newEngine().Run(ctx, types.StrategySemantic, query, project, 5, nil))
	assert.Equal(t, newEngine().Structural(ctx, query, project, 5), newEngine().Run(ctx, types.StrategyStructural, query, project, 5, nil))
	assert.Equal(t, newEngine().Dependency(ctx, query, project, 5), newEngine().Run(ctx, types.StrategyDependency, query, project, 5, nil))
	assert.Equal(t, newEngine().Balanced(ctx, query, project, 5), newEngine().Run(ctx, types.StrategyBalanced, query, project, 5, nil))
	assert.Equal(t, newEngine().Semantic(ctx, query, project, 5), newEngine().Run(ctx, types.StrategyConversation, query, project, 5, nil))

	balanced := newEngine().Balanced(ctx, query, project, 5)
	assert.Equal(t, balanced, newEngine().Run(ctx, types.StrategyName("mystery"), query, project, 5, nil))
	assert.Equal(t, balanced, newEngine().Run(ctx, types.StrategyAuto, query, project, 5, nil))
}
