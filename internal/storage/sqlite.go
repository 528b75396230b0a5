package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/ctxselect/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db        *sql.DB
	vectorExt bool
	now       func() time.Time
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer; this also keeps :memory: databases
	// on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{
		db:        db,
		vectorExt: probeVectorExtension(db),
		now:       time.Now,
	}, nil
}

// probeVectorExtension reports whether vec_distance_cosine can be called
func probeVectorExtension(db *sql.DB) bool {
	if !VectorExtensionAvailable {
		return false
	}
	var version string
	return db.QueryRow("SELECT vec_version()").Scan(&version) == nil
}

// VectorExtension reports whether vector search runs inside SQLite
func (s *SQLiteStorage) VectorExtension() bool {
	return s.vectorExt
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) EnsureProject(ctx context.Context, projectID string) (*Project, error) {
	return t.storage.ensureProjectWithQuerier(ctx, t.tx, projectID)
}

func (t *sqliteTx) UpsertFile(ctx context.Context, file *File) error {
	return t.storage.upsertFileWithQuerier(ctx, t.tx, file)
}

func (t *sqliteTx) InsertChunk(ctx context.Context, chunk *types.Chunk) error {
	return t.storage.insertChunkWithQuerier(ctx, t.tx, chunk)
}

func (t *sqliteTx) DeleteChunksByFile(ctx context.Context, projectID, filePath string) (int, error) {
	return t.storage.deleteChunksByFileWithQuerier(ctx, t.tx, projectID, filePath)
}

func (t *sqliteTx) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return t.storage.upsertEmbeddingWithQuerier(ctx, t.tx, embedding)
}

// Project operations

// createProjectWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) createProjectWithQuerier(ctx context.Context, q querier, project *Project) error {
	if project.ID == "" {
		return errors.New("project ID is required")
	}
	if project.Name == "" {
		project.Name = project.ID
	}

	query := `
		INSERT INTO projects (id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`
	now := s.now()
	result, err := q.ExecContext(ctx, query, project.ID, project.Name, project.Description, now, now)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("project %s: %w", project.ID, ErrAlreadyExists)
	}

	project.CreatedAt = now
	project.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) CreateProject(ctx context.Context, project *Project) error {
	return s.createProjectWithQuerier(ctx, s.db, project)
}

// getProjectWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getProjectWithQuerier(ctx context.Context, q querier, projectID string) (*Project, error) {
	query := `
		SELECT id, name, description, total_files, total_chunks,
		       last_indexed_at, created_at, updated_at
		FROM projects
		WHERE id = ?
	`
	project, err := scanProject(q.QueryRowContext(ctx, query, projectID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return project, err
}

func (s *SQLiteStorage) GetProject(ctx context.Context, projectID string) (*Project, error) {
	return s.getProjectWithQuerier(ctx, s.db, projectID)
}

// ensureProjectWithQuerier returns the project, creating it when missing
func (s *SQLiteStorage) ensureProjectWithQuerier(ctx context.Context, q querier, projectID string) (*Project, error) {
	project, err := s.getProjectWithQuerier(ctx, q, projectID)
	if err == nil {
		return project, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	project = &Project{ID: projectID, Name: projectID}
	if err := s.createProjectWithQuerier(ctx, q, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *SQLiteStorage) EnsureProject(ctx context.Context, projectID string) (*Project, error) {
	return s.ensureProjectWithQuerier(ctx, s.db, projectID)
}

// UpdateProject stores name, description and refreshed index statistics
func (s *SQLiteStorage) UpdateProject(ctx context.Context, project *Project) error {
	query := `
		UPDATE projects
		SET name = ?, description = ?, total_files = ?, total_chunks = ?,
		    last_indexed_at = ?, updated_at = ?
		WHERE id = ?
	`
	var lastIndexed interface{}
	if !project.LastIndexedAt.IsZero() {
		lastIndexed = project.LastIndexedAt
	}

	now := s.now()
	result, err := s.db.ExecContext(ctx, query,
		project.Name, project.Description, project.TotalFiles, project.TotalChunks,
		lastIndexed, now, project.ID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	project.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) ListProjects(ctx context.Context) ([]*Project, error) {
	query := `
		SELECT id, name, description, total_files, total_chunks,
		       last_indexed_at, created_at, updated_at
		FROM projects
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	projects := make([]*Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// scanner is implemented by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(row scanner) (*Project, error) {
	var project Project
	var lastIndexedAt sql.NullTime
	err := row.Scan(
		&project.ID, &project.Name, &project.Description,
		&project.TotalFiles, &project.TotalChunks,
		&lastIndexedAt, &project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastIndexedAt.Valid {
		project.LastIndexedAt = lastIndexedAt.Time
	}
	return &project, nil
}

// File operations

// upsertFileWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) upsertFileWithQuerier(ctx context.Context, q querier, file *File) error {
	query := `
		INSERT INTO files (project_id, file_path, language, content_hash, size_bytes, last_indexed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, file_path) DO UPDATE SET
			language = excluded.language,
			content_hash = excluded.content_hash,
			size_bytes = excluded.size_bytes,
			last_indexed_at = excluded.last_indexed_at
		RETURNING id
	`
	now := s.now()
	err := q.QueryRowContext(ctx, query,
		file.ProjectID, file.FilePath, file.Language, file.ContentHash[:],
		file.SizeBytes, now).Scan(&file.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert file: %w", err)
	}

	file.LastIndexedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertFile(ctx context.Context, file *File) error {
	return s.upsertFileWithQuerier(ctx, s.db, file)
}

func (s *SQLiteStorage) GetFile(ctx context.Context, projectID, filePath string) (*File, error) {
	query := `
		SELECT id, project_id, file_path, language, content_hash, size_bytes, last_indexed_at
		FROM files
		WHERE project_id = ? AND file_path = ?
	`
	file, err := scanFile(s.db.QueryRowContext(ctx, query, projectID, filePath))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return file, err
}

func (s *SQLiteStorage) ListFiles(ctx context.Context, projectID string) ([]*File, error) {
	query := `
		SELECT id, project_id, file_path, language, content_hash, size_bytes, last_indexed_at
		FROM files
		WHERE project_id = ?
		ORDER BY file_path
	`
	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	files := make([]*File, 0)
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

func scanFile(row scanner) (*File, error) {
	var file File
	var hash []byte
	var size sql.NullInt64
	var lastIndexedAt sql.NullTime
	err := row.Scan(
		&file.ID, &file.ProjectID, &file.FilePath, &file.Language,
		&hash, &size, &lastIndexedAt,
	)
	if err != nil {
		return nil, err
	}
	copy(file.ContentHash[:], hash)
	file.SizeBytes = size.Int64
	if lastIndexedAt.Valid {
		file.LastIndexedAt = lastIndexedAt.Time
	}
	return &file, nil
}

// Chunk operations

// insertChunkWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) insertChunkWithQuerier(ctx context.Context, q querier, chunk *types.Chunk) error {
	if err := chunk.Validate(); err != nil {
		return fmt.Errorf("invalid chunk: %w", err)
	}
	if chunk.ContentHash == ([32]byte{}) {
		chunk.ContentHash = sha256.Sum256([]byte(chunk.Content))
	}

	query := `
		INSERT INTO chunks (project_id, file_path, kind, name, language,
		                    start_line, end_line, content, content_hash, token_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	err := q.QueryRowContext(ctx, query,
		chunk.ProjectID, chunk.FilePath, string(chunk.Kind), chunk.Name, chunk.Language,
		chunk.StartLine, chunk.EndLine, chunk.Content, chunk.ContentHash[:], chunk.TokenCount,
		s.now()).Scan(&chunk.ID)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) InsertChunk(ctx context.Context, chunk *types.Chunk) error {
	return s.insertChunkWithQuerier(ctx, s.db, chunk)
}

const chunkColumns = `id, project_id, file_path, kind, name, language,
		       start_line, end_line, content, content_hash, token_count`

func scanChunk(row scanner) (*types.Chunk, error) {
	var chunk types.Chunk
	var kind string
	var hash []byte
	var tokens sql.NullInt64
	err := row.Scan(
		&chunk.ID, &chunk.ProjectID, &chunk.FilePath, &kind, &chunk.Name, &chunk.Language,
		&chunk.StartLine, &chunk.EndLine, &chunk.Content, &hash, &tokens,
	)
	if err != nil {
		return nil, err
	}
	chunk.Kind = types.ChunkKind(kind)
	copy(chunk.ContentHash[:], hash)
	chunk.TokenCount = int(tokens.Int64)
	return &chunk, nil
}

func (s *SQLiteStorage) GetChunk(ctx context.Context, chunkID int64) (*types.Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE id = ?`
	chunk, err := scanChunk(s.db.QueryRowContext(ctx, query, chunkID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return chunk, err
}

// GetChunks loads several chunks at once; unknown IDs are absent from the map
func (s *SQLiteStorage) GetChunks(ctx context.Context, chunkIDs []int64) (map[int64]*types.Chunk, error) {
	chunks := make(map[int64]*types.Chunk, len(chunkIDs))
	if len(chunkIDs) == 0 {
		return chunks, nil
	}

	placeholders, args := inClause(chunkIDs)
	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE id IN (` + placeholders + `)`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks[chunk.ID] = chunk
	}
	return chunks, rows.Err()
}

func (s *SQLiteStorage) ListChunksByFile(ctx context.Context, projectID, filePath string) ([]*types.Chunk, error) {
	query := `SELECT ` + chunkColumns + `
		FROM chunks
		WHERE project_id = ? AND file_path = ?
		ORDER BY start_line`
	rows, err := s.db.QueryContext(ctx, query, projectID, filePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	chunks := make([]*types.Chunk, 0)
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// deleteChunksByFileWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) deleteChunksByFileWithQuerier(ctx context.Context, q querier, projectID, filePath string) (int, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM chunks WHERE project_id = ? AND file_path = ?`, projectID, filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLiteStorage) DeleteChunksByFile(ctx context.Context, projectID, filePath string) (int, error) {
	return s.deleteChunksByFileWithQuerier(ctx, s.db, projectID, filePath)
}

// inClause builds a parameterized IN list
func inClause(ids []int64) (string, []interface{}) {
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return strings.Join(placeholders, ","), args
}

// Embedding operations

// upsertEmbeddingWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) upsertEmbeddingWithQuerier(ctx context.Context, q querier, embedding *Embedding) error {
	query := `
		INSERT INTO embeddings (chunk_id, vector, dimension, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model
		RETURNING id
	`
	now := s.now()
	err := q.QueryRowContext(ctx, query,
		embedding.ChunkID, embedding.Vector, embedding.Dimension,
		embedding.Provider, embedding.Model, now).Scan(&embedding.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}

	embedding.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return s.upsertEmbeddingWithQuerier(ctx, s.db, embedding)
}

func (s *SQLiteStorage) GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error) {
	query := `
		SELECT id, chunk_id, vector, dimension, provider, model, created_at
		FROM embeddings
		WHERE chunk_id = ?
	`
	var embedding Embedding
	err := s.db.QueryRowContext(ctx, query, chunkID).Scan(
		&embedding.ID, &embedding.ChunkID, &embedding.Vector,
		&embedding.Dimension, &embedding.Provider, &embedding.Model,
		&embedding.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &embedding, nil
}

// Search operations

func (s *SQLiteStorage) SearchVector(ctx context.Context, projectID string, queryVector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	if s.vectorExt {
		return searchVectorOptimized(ctx, s.db, projectID, queryVector, limit, filters)
	}
	return searchVectorFallback(ctx, s.db, projectID, queryVector, limit, filters)
}

func (s *SQLiteStorage) SearchText(ctx context.Context, projectID string, query string, limit int, filters *SearchFilters) ([]TextResult, error) {
	return searchText(ctx, s.db, projectID, query, limit, filters)
}

// Status operations

func (s *SQLiteStorage) GetStatus(ctx context.Context, projectID string) (*ProjectStatus, error) {
	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	status := &ProjectStatus{
		Project:       project,
		LastIndexedAt: project.LastIndexedAt,
	}

	counts := []struct {
		dest  *int
		query string
		args  []interface{}
	}{
		{&status.FilesCount, "SELECT COUNT(*) FROM files WHERE project_id = ?", []interface{}{projectID}},
		{&status.ChunksCount, "SELECT COUNT(*) FROM chunks WHERE project_id = ?", []interface{}{projectID}},
		{&status.EmbeddingsCount, `
			SELECT COUNT(*) FROM embeddings e
			JOIN chunks c ON e.chunk_id = c.id
			WHERE c.project_id = ?
		`, []interface{}{projectID}},
		{&status.SessionsCount, "SELECT COUNT(*) FROM sessions WHERE project_id = ?", []interface{}{projectID}},
		{&status.CacheEntries, "SELECT COUNT(*) FROM kv_cache", nil},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dest); err != nil {
			return nil, err
		}
	}

	var pageCount, pageSize int
	err = s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	if err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	status.Health = HealthStatus{
		DatabaseAccessible:  true,
		EmbeddingsAvailable: status.EmbeddingsCount > 0,
		FTSIndexesBuilt:     true, // FTS indexes are created with migrations
		VectorExtension:     s.vectorExt,
	}

	return status, nil
}
