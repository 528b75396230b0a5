package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Session operations

// CreateSession inserts a session; when Active is set, every other session is deactivated
func (s *SQLiteStorage) CreateSession(ctx context.Context, session *Session) error {
	if session.ID == "" {
		return errors.New("session ID is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if session.Active {
		if _, err := tx.ExecContext(ctx, `UPDATE sessions SET active = 0 WHERE active = 1`); err != nil {
			return fmt.Errorf("failed to deactivate sessions: %w", err)
		}
	}

	now := s.now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, name, project_id, active, closed, created_at, last_activity)
		VALUES (?, ?, ?, ?, 0, ?, ?)
	`, session.ID, session.Name, session.ProjectID, session.Active, now, now)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	session.CreatedAt = now
	session.LastActivity = now
	return nil
}

const sessionColumns = `id, name, project_id, active, closed, created_at, last_activity`

func scanSession(row scanner) (*Session, error) {
	var session Session
	err := row.Scan(
		&session.ID, &session.Name, &session.ProjectID,
		&session.Active, &session.Closed,
		&session.CreatedAt, &session.LastActivity,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SQLiteStorage) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	session, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return session, err
}

// ListSessions returns sessions, most recently active first
func (s *SQLiteStorage) ListSessions(ctx context.Context, includeClosed bool) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	if !includeClosed {
		query += ` WHERE closed = 0`
	}
	query += ` ORDER BY last_activity DESC, created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	sessions := make([]*Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// ActivateSession makes sessionID the only active session and reopens it if closed
func (s *SQLiteStorage) ActivateSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET active = 0 WHERE active = 1`); err != nil {
		return fmt.Errorf("failed to deactivate sessions: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE sessions SET active = 1, closed = 0, last_activity = ? WHERE id = ?`,
		s.now(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to activate session: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// GetActiveSession returns the active session or ErrNotFound
func (s *SQLiteStorage) GetActiveSession(ctx context.Context) (*Session, error) {
	session, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE active = 1 ORDER BY last_activity DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return session, err
}

// CloseSession marks a session closed and inactive
func (s *SQLiteStorage) CloseSession(ctx context.Context, sessionID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET active = 0, closed = 1, last_activity = ? WHERE id = ?`,
		s.now(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// History operations

// AddHistory appends an entry and bumps the session's last activity
func (s *SQLiteStorage) AddHistory(ctx context.Context, entry *HistoryEntry) error {
	args := entry.Args
	if args == nil {
		args = map[string]any{}
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to encode history args: %w", err)
	}

	var resultJSON interface{}
	if entry.Result != nil {
		b, err := json.Marshal(entry.Result)
		if err != nil {
			return fmt.Errorf("failed to encode history result: %w", err)
		}
		resultJSON = string(b)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO session_history (session_id, command, args, result, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`, entry.SessionID, entry.Command, string(argsJSON), resultJSON, entry.Error, now).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to add history: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET last_activity = ? WHERE id = ?`, now, entry.SessionID); err != nil {
		return fmt.Errorf("failed to update session activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	entry.CreatedAt = now
	return nil
}

// ListHistory returns up to limit entries of a session, most recent first.
// A non-positive limit returns every entry.
func (s *SQLiteStorage) ListHistory(ctx context.Context, sessionID string, limit int) ([]*HistoryEntry, error) {
	query := `
		SELECT id, session_id, command, args, result, error, created_at
		FROM session_history
		WHERE session_id = ?
		ORDER BY id DESC
	`
	args := []interface{}{sessionID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	entries := make([]*HistoryEntry, 0)
	for rows.Next() {
		var entry HistoryEntry
		var argsJSON string
		var resultJSON sql.NullString
		err := rows.Scan(&entry.ID, &entry.SessionID, &entry.Command,
			&argsJSON, &resultJSON, &entry.Error, &entry.CreatedAt)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(argsJSON), &entry.Args); err != nil {
			return nil, fmt.Errorf("history %d: invalid args: %w", entry.ID, err)
		}
		if resultJSON.Valid {
			if err := json.Unmarshal([]byte(resultJSON.String), &entry.Result); err != nil {
				return nil, fmt.Errorf("history %d: invalid result: %w", entry.ID, err)
			}
		}

		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
