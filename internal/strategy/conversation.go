package strategy

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/ctxselect/pkg/types"
)

const (
	// HistoryLimit is the number of recent entries read from the session
	HistoryLimit     = 20
	// SupplementWeight scales Semantic scores used to top up history items
	SupplementWeight = 0.2

	historyDecay    = 0.05
	historyMinScore = 0.5
)

// Metadata values set by Conversation
const (
	TypeConversationHistory  = "conversation_history"
	SourceSemanticSupplement = "semantic_supplement"
)

// Conversation ranks the prompts of recent generation requests in the active
// session, newest first, and tops them up with down-weighted Semantic results.
// Without a usable session it behaves like Semantic.
func (e *Engine) Conversation(ctx context.Context, query, projectID string, maxContexts int, sessions SessionAdapter) []types.ContextItem {
	if maxContexts <= 0 {
		return []types.ContextItem{}
	}

	logger := zerolog.Ctx(ctx)

	history, ok := readHistory(ctx, sessions)
	if !ok {
		logger.Debug().Msg("no session history, falling back to semantic")
		return e.Semantic(ctx, query, projectID, maxContexts)
	}

	items := make([]types.ContextItem, 0, maxContexts)
	for _, entry := range history {
		if entry.Command != types.CommandGenerate {
			continue
		}
		prompt := entry.ArgString(types.ArgPrompt)
		if prompt == "" {
			continue
		}
		items = append(items, historyItem(entry, prompt, len(items)))
	}

	if len(items) < maxContexts {
		for _, item := range e.Semantic(ctx, query, projectID, maxContexts) {
			item.Score = types.ClampScore(item.Score * SupplementWeight)
			item.Metadata[types.MetaSource] = SourceSemanticSupplement
			items = append(items, item)
		}
	}

	logger.Debug().Int("history_entries", len(history)).Int("items", len(items)).Msg("conversation context")

	return finalize(items, maxContexts)
}

// readHistory returns the most recent entries; ok is false when there is no
// adapter, no active session, no history or a read error.
func readHistory(ctx context.Context, sessions SessionAdapter) ([]types.SessionHistoryEntry, bool) {
	if sessions == nil {
		return nil, false
	}

	logger := zerolog.Ctx(ctx)

	active, err := sessions.ActiveSession(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("reading active session failed")
		return nil, false
	}
	if active == nil {
		return nil, false
	}

	history, err := sessions.History(ctx, HistoryLimit)
	if err != nil {
		logger.Warn().Err(err).Str("session_id", active.ID).Msg("reading session history failed")
		return nil, false
	}
	if len(history) == 0 {
		return nil, false
	}
	if len(history) > HistoryLimit {
		history = history[:HistoryLimit]
	}

	return history, true
}

// HistoryScore is the score of the i-th most recent generation prompt
func HistoryScore(i int) float64 {
	return math.Max(historyMinScore, 1.0-float64(i)*historyDecay)
}

func historyItem(entry types.SessionHistoryEntry, prompt string, i int) types.ContextItem {
	var text strings.Builder
	fmt.Fprintf(&text, "User asked: %s\n\n", prompt)
	if file := entry.OutputFile(); file != "" {
		fmt.Fprintf(&text, "Generated output saved to: %s\n", file)
	}

	var timestamp string
	if !entry.Timestamp.IsZero() {
		timestamp = entry.Timestamp.Format(time.RFC3339)
	}

	return types.NewContextItem(text.String(), HistoryScore(i), map[string]any{
		types.MetaType:      TypeConversationHistory,
		types.MetaCommand:   entry.Command,
		types.MetaTimestamp: timestamp,
	})
}
