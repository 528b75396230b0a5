package storage

import (
	"context"
	"time"

	"github.com/dshills/ctxselect/pkg/types"
)

// Storage defines the interface for persisting indexed code, sessions and cache entries
type Storage interface {
	// Project operations
	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, projectID string) (*Project, error)
	EnsureProject(ctx context.Context, projectID string) (*Project, error)
	UpdateProject(ctx context.Context, project *Project) error
	ListProjects(ctx context.Context) ([]*Project, error)

	// File operations
	UpsertFile(ctx context.Context, file *File) error
	GetFile(ctx context.Context, projectID, filePath string) (*File, error)
	ListFiles(ctx context.Context, projectID string) ([]*File, error)

	// Chunk operations
	InsertChunk(ctx context.Context, chunk *types.Chunk) error
	GetChunk(ctx context.Context, chunkID int64) (*types.Chunk, error)
	GetChunks(ctx context.Context, chunkIDs []int64) (map[int64]*types.Chunk, error)
	ListChunksByFile(ctx context.Context, projectID, filePath string) ([]*types.Chunk, error)
	DeleteChunksByFile(ctx context.Context, projectID, filePath string) (int, error)

	// Embedding operations
	UpsertEmbedding(ctx context.Context, embedding *Embedding) error
	GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error)

	// Search operations
	SearchVector(ctx context.Context, projectID string, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error)
	SearchText(ctx context.Context, projectID string, query string, limit int, filters *SearchFilters) ([]TextResult, error)

	// Session operations
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	ListSessions(ctx context.Context, includeClosed bool) ([]*Session, error)
	ActivateSession(ctx context.Context, sessionID string) error
	GetActiveSession(ctx context.Context) (*Session, error)
	CloseSession(ctx context.Context, sessionID string) error
	AddHistory(ctx context.Context, entry *HistoryEntry) error
	ListHistory(ctx context.Context, sessionID string, limit int) ([]*HistoryEntry, error)

	// Key-value cache operations
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	PurgeExpired(ctx context.Context) (int, error)

	// Status operations
	GetStatus(ctx context.Context, projectID string) (*ProjectStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Writer is the subset of operations available inside a transaction
type Writer interface {
	EnsureProject(ctx context.Context, projectID string) (*Project, error)
	UpsertFile(ctx context.Context, file *File) error
	InsertChunk(ctx context.Context, chunk *types.Chunk) error
	DeleteChunksByFile(ctx context.Context, projectID, filePath string) (int, error)
	UpsertEmbedding(ctx context.Context, embedding *Embedding) error
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Writer
}

// Project is a logical codebase that retrieval can be scoped to
type Project struct {
	ID            string
	Name          string
	Description   string
	TotalFiles    int
	TotalChunks   int
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// File represents a tracked source file
type File struct {
	ID            int64
	ProjectID     string
	FilePath      string // Relative to the indexed root
	Language      string
	ContentHash   [32]byte
	SizeBytes     int64
	LastIndexedAt time.Time
}

// Embedding represents a vector embedding for a chunk
type Embedding struct {
	ID        int64
	ChunkID   int64
	Vector    []byte // Serialized float32 array
	Dimension int
	Provider  string
	Model     string
	CreatedAt time.Time
}

// Session is a named working session; at most one is active
type Session struct {
	ID           string
	Name         string
	ProjectID    string
	Active       bool
	Closed       bool
	CreatedAt    time.Time
	LastActivity time.Time
}

// HistoryEntry is one recorded command of a session
type HistoryEntry struct {
	ID        int64
	SessionID string
	Command   string
	Args      map[string]any
	Result    map[string]any // Nullable
	Error     string
	CreatedAt time.Time
}

// SearchFilters contains filters for narrowing search results
type SearchFilters struct {
	Kinds        []string // Filter by chunk kind
	Languages    []string // Filter by language
	FilePattern  string   // Glob pattern for file paths
	MinRelevance float64  // Minimum relevance score
}

// VectorResult represents a result from vector similarity search
type VectorResult struct {
	ChunkID         int64
	SimilarityScore float64
}

// TextResult represents a result from full-text search
type TextResult struct {
	ChunkID   int64
	BM25Score float64 // Normalized to (0, 1]
}

// ProjectStatus contains statistics about an indexed project
type ProjectStatus struct {
	Project         *Project
	FilesCount      int
	ChunksCount     int
	EmbeddingsCount int
	SessionsCount   int
	CacheEntries    int
	IndexSizeMB     float64
	LastIndexedAt   time.Time
	Health          HealthStatus
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible  bool
	EmbeddingsAvailable bool
	FTSIndexesBuilt     bool
	VectorExtension     bool
}

// ToHandle converts a session to the handle consumed by strategies
func (s *Session) ToHandle() *types.SessionHandle {
	return &types.SessionHandle{
		ID:        s.ID,
		Name:      s.Name,
		ProjectID: s.ProjectID,
		CreatedAt: s.CreatedAt,
	}
}

// ToTypesEntry converts a stored history entry to its domain form
func (h *HistoryEntry) ToTypesEntry() types.SessionHistoryEntry {
	return types.SessionHistoryEntry{
		Command:   h.Command,
		Args:      h.Args,
		Timestamp: h.CreatedAt,
		Result:    h.Result,
		Error:     h.Error,
	}
}
