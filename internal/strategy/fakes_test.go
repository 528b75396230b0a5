package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/dshills/ctxselect/pkg/types"
)

type retrieveCall struct {
	query     string
	projectID string
	topK      int
}

// fakeRetriever answers by query text, falling back to a default list
type fakeRetriever struct {
	byQuery  map[string][]types.ContextItem
	fallback []types.ContextItem
	err      error
	calls    []retrieveCall
}

func (f *fakeRetriever) Retrieve(_ context.Context, query, projectID string, topK int) ([]types.ContextItem, error) {
	f.calls = append(f.calls, retrieveCall{query: query, projectID: projectID, topK: topK})
	if f.err != nil {
		return nil, f.err
	}

	items, ok := f.byQuery[query]
	if !ok {
		items = f.fallback
	}
	if len(items) > topK {
		items = items[:topK]
	}
	return items, nil
}

// ranked builds n items named prefix0..prefixN with descending scores
func ranked(prefix string, n int, top, step float64) []types.ContextItem {
	items := make([]types.ContextItem, n)
	for i := range items {
		items[i] = types.NewContextItem(fmt.Sprintf("%s%d", prefix, i), top-float64(i)*step, map[string]any{
			types.MetaFilename: fmt.Sprintf("%s%d.go", prefix, i),
		})
	}
	return items
}

type fakeSessions struct {
	active     *types.SessionHandle
	history    []types.SessionHistoryEntry
	activeErr  error
	historyErr error
	limit      int
}

func (f *fakeSessions) ActiveSession(context.Context) (*types.SessionHandle, error) {
	return f.active, f.activeErr
}

func (f *fakeSessions) History(_ context.Context, limit int) ([]types.SessionHistoryEntry, error) {
	f.limit = limit
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	if len(f.history) > limit {
		return f.history[:limit], nil
	}
	return f.history, nil
}

func generateEntry(prompt string, at time.Time) types.SessionHistoryEntry {
	return types.SessionHistoryEntry{
		Command:   types.CommandGenerate,
		Args:      map[string]any{types.ArgPrompt: prompt},
		Timestamp: at,
	}
}

func texts(items []types.ContextItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Text
	}
	return out
}

func scores(items []types.ContextItem) []float64 {
	out := make([]float64, len(items))
	for i, item := range items {
		out[i] = item.Score
	}
	return out
}
