package types

import "sort"

// Metadata keys attached to context items
const (
	MetaFilename  = "filename"
	MetaType      = "type"
	MetaName      = "name"
	MetaLanguage  = "language"
	MetaProjectID = "project_id"
	MetaChunkID   = "chunk_id"
	MetaStartLine = "start_line"
	MetaEndLine   = "end_line"
	MetaSource    = "source"
	MetaCommand   = "command"
	MetaTimestamp = "timestamp"
)

// ContextItem is a scored fragment of retrieved text intended for prompt assembly
type ContextItem struct {
	Text     string
	Metadata map[string]any
	Score    float64
}

// ClampScore limits a score to the [0, 1] range
func ClampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// NewContextItem creates an item with a clamped score and a non-nil metadata map
func NewContextItem(text string, score float64, metadata map[string]any) ContextItem {
	if metadata == nil {
		metadata = make(map[string]any)
	}
	return ContextItem{
		Text:     text,
		Metadata: metadata,
		Score:    ClampScore(score),
	}
}

// Clone returns a copy of the item with its own metadata map
func (c ContextItem) Clone() ContextItem {
	meta := make(map[string]any, len(c.Metadata))
	for k, v := range c.Metadata {
		meta[k] = v
	}
	return ContextItem{Text: c.Text, Metadata: meta, Score: c.Score}
}

// MetaString returns a metadata value as a string, or def when absent
func (c ContextItem) MetaString(key, def string) string {
	if v, ok := c.Metadata[key].(string); ok && v != "" {
		return v
	}
	return def
}

// SortByScore sorts items by score descending, keeping the production order of ties
func SortByScore(items []ContextItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
}

// Truncate returns at most n items
func Truncate(items []ContextItem, n int) []ContextItem {
	if n <= 0 {
		return []ContextItem{}
	}
	if len(items) > n {
		return items[:n]
	}
	return items
}

// TextSet returns the identity set of the given items
func TextSet(items ...[]ContextItem) map[string]struct{} {
	seen := make(map[string]struct{})
	for _, group := range items {
		for _, item := range group {
			seen[item.Text] = struct{}{}
		}
	}
	return seen
}
