package types

import "time"

// CommandGenerate is the history command recorded for generation requests
const CommandGenerate = "generate"

// Well-known keys of generation history entries
const (
	ArgPrompt        = "prompt"
	ArgOutput        = "output"
	ResultOutputFile = "output_file"
)

// SessionHandle identifies an active session
type SessionHandle struct {
	ID        string
	Name      string
	ProjectID string
	CreatedAt time.Time
}

// SessionHistoryEntry is one recorded command of a session
type SessionHistoryEntry struct {
	Command   string
	Args      map[string]any
	Timestamp time.Time
	Result    map[string]any // Nullable
	Error     string
}

// ArgString returns a string argument, or "" when absent
func (e SessionHistoryEntry) ArgString(key string) string {
	if v, ok := e.Args[key].(string); ok {
		return v
	}
	return ""
}

// Succeeded reports whether the entry recorded a result without an error
func (e SessionHistoryEntry) Succeeded() bool {
	return e.Result != nil && e.Error == ""
}

// OutputFile returns the file a successful generation was written to, or ""
func (e SessionHistoryEntry) OutputFile() string {
	if !e.Succeeded() {
		return ""
	}
	if v, ok := e.Result[ResultOutputFile].(string); ok && v != "" {
		return v
	}
	return e.ArgString(ArgOutput)
}
