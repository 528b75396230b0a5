// Package session tracks working sessions and the commands recorded in them.
//
// At most one session is active at a time. The conversation strategy reads
// the active session's generation history through Manager, which implements
// strategy.SessionAdapter.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dshills/ctxselect/internal/storage"
	"github.com/dshills/ctxselect/pkg/types"
)

var (
	// ErrNoActiveSession is returned by operations that need an active session
	ErrNoActiveSession = errors.New("no active session")

	// ErrSessionNotFound is returned for unknown session IDs
	ErrSessionNotFound = errors.New("session not found")
)

// Store is the subset of storage.Storage the manager needs
type Store interface {
	CreateSession(ctx context.Context, session *storage.Session) error
	GetSession(ctx context.Context, sessionID string) (*storage.Session, error)
	ListSessions(ctx context.Context, includeClosed bool) ([]*storage.Session, error)
	ActivateSession(ctx context.Context, sessionID string) error
	GetActiveSession(ctx context.Context) (*storage.Session, error)
	CloseSession(ctx context.Context, sessionID string) error
	AddHistory(ctx context.Context, entry *storage.HistoryEntry) error
	ListHistory(ctx context.Context, sessionID string, limit int) ([]*storage.HistoryEntry, error)
}

// Manager creates, switches and records into sessions
type Manager struct {
	store Store
	now   func() time.Time
}

// NewManager creates a Manager over store
func NewManager(store Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

// NewID returns an ID of the form session-<yyyymmddhhmmss>-<6 hex chars>
func NewID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:6]
	return fmt.Sprintf("session-%s-%s", now.Format("20060102150405"), suffix)
}

// Create starts a new session and makes it the active one. An empty name
// defaults to the generated ID.
func (m *Manager) Create(ctx context.Context, name, projectID string) (*storage.Session, error) {
	if projectID == "" {
		projectID = types.DefaultProjectID
	}

	s := &storage.Session{
		ID:        NewID(m.now()),
		Name:      strings.TrimSpace(name),
		ProjectID: projectID,
		Active:    true,
	}
	if s.Name == "" {
		s.Name = s.ID
	}

	if err := m.store.CreateSession(ctx, s); err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Str("session_id", s.ID).Str("project_id", projectID).Msg("session created")
	return s, nil
}

// Get returns a session by ID
func (m *Manager) Get(ctx context.Context, id string) (*storage.Session, error) {
	s, err := m.store.GetSession(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, err
}

// List returns sessions by most recent activity
func (m *Manager) List(ctx context.Context, includeClosed bool) ([]*storage.Session, error) {
	return m.store.ListSessions(ctx, includeClosed)
}

// Activate makes id the active session, reopening it if it was closed
func (m *Manager) Activate(ctx context.Context, id string) error {
	err := m.store.ActivateSession(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Str("session_id", id).Msg("session activated")
	return nil
}

// Close marks a session completed. An empty id closes the active session.
// It returns the ID that was closed.
func (m *Manager) Close(ctx context.Context, id string) (string, error) {
	if id == "" {
		active, err := m.Active(ctx)
		if err != nil {
			return "", err
		}
		if active == nil {
			return "", ErrNoActiveSession
		}
		id = active.ID
	}

	err := m.store.CloseSession(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return "", err
	}

	zerolog.Ctx(ctx).Info().Str("session_id", id).Msg("session closed")
	return id, nil
}

// Active returns the active session, or nil when there is none
func (m *Manager) Active(ctx context.Context) (*storage.Session, error) {
	s, err := m.store.GetActiveSession(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return s, err
}

// ActiveSession returns a handle to the active session, or nil
func (m *Manager) ActiveSession(ctx context.Context) (*types.SessionHandle, error) {
	s, err := m.Active(ctx)
	if err != nil || s == nil {
		return nil, err
	}
	return s.ToHandle(), nil
}

// History returns up to limit entries of the active session, most recent
// first. Without an active session it returns nothing.
func (m *Manager) History(ctx context.Context, limit int) ([]types.SessionHistoryEntry, error) {
	s, err := m.Active(ctx)
	if err != nil || s == nil {
		return nil, err
	}
	return m.SessionHistory(ctx, s.ID, limit)
}

// SessionHistory returns up to limit entries of any session, most recent first
func (m *Manager) SessionHistory(ctx context.Context, id string, limit int) ([]types.SessionHistoryEntry, error) {
	entries, err := m.store.ListHistory(ctx, id, limit)
	if err != nil {
		return nil, err
	}

	history := make([]types.SessionHistoryEntry, 0, len(entries))
	for _, e := range entries {
		history = append(history, e.ToTypesEntry())
	}
	return history, nil
}

// AddToHistory records a command in the active session. A nil result is
// stored as absent; errMsg marks the command as failed.
func (m *Manager) AddToHistory(ctx context.Context, command string, args, result map[string]any, errMsg string) error {
	if command == "" {
		return errors.New("command is required")
	}

	s, err := m.Active(ctx)
	if err != nil {
		return err
	}
	if s == nil {
		return ErrNoActiveSession
	}

	entry := &storage.HistoryEntry{
		SessionID: s.ID,
		Command:   command,
		Args:      args,
		Result:    result,
		Error:     errMsg,
	}
	if err := m.store.AddHistory(ctx, entry); err != nil {
		return err
	}

	zerolog.Ctx(ctx).Debug().Str("session_id", s.ID).Str("command", command).Msg("history recorded")
	return nil
}

// RecordGeneration records a generation request. On success the output file
// is stored as the result; genErr, when set, is stored as the error.
func (m *Manager) RecordGeneration(ctx context.Context, prompt, outputFile string, genErr error) error {
	args := map[string]any{types.ArgPrompt: prompt}
	if outputFile != "" {
		args[types.ArgOutput] = outputFile
	}

	if genErr != nil {
		return m.AddToHistory(ctx, types.CommandGenerate, args, nil, genErr.Error())
	}

	result := map[string]any{types.ResultOutputFile: outputFile}
	return m.AddToHistory(ctx, types.CommandGenerate, args, result, "")
}
