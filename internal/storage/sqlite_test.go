package storage

import (
	"context"
	"crypto/sha256"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ctxselect/pkg/types"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()
	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func newChunk(projectID, filePath, name, content string, start, end int) *types.Chunk {
	return &types.Chunk{
		ProjectID: projectID,
		FilePath:  filePath,
		Content:   content,
		StartLine: start,
		EndLine:   end,
		Kind:      types.ChunkFunction,
		Name:      name,
		Language:  "go",
	}
}

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)

	assert.NotNil(t, storage.db)
	version, err := SchemaVersion(context.Background(), storage.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version.String())
}

func TestCreateProject(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	project := &Project{ID: "billing", Description: "payments service"}
	require.NoError(t, storage.CreateProject(ctx, project))
	assert.Equal(t, "billing", project.Name)
	assert.False(t, project.CreatedAt.IsZero())

	err := storage.CreateProject(ctx, &Project{ID: "billing"})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	assert.Error(t, storage.CreateProject(ctx, &Project{}))
}

func TestGetProject(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, storage.CreateProject(ctx, &Project{ID: "billing", Name: "Billing"}))

	retrieved, err := storage.GetProject(ctx, "billing")
	require.NoError(t, err)
	assert.Equal(t, "Billing", retrieved.Name)
	assert.True(t, retrieved.LastIndexedAt.IsZero())

	_, err = storage.GetProject(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnsureProject(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	first, err := storage.EnsureProject(ctx, "default")
	require.NoError(t, err)
	second, err := storage.EnsureProject(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	projects, err := storage.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 1)
}

func TestUpdateProject(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	project, err := storage.EnsureProject(ctx, "default")
	require.NoError(t, err)

	indexedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	project.TotalFiles = 3
	project.TotalChunks = 12
	project.LastIndexedAt = indexedAt
	require.NoError(t, storage.UpdateProject(ctx, project))

	retrieved, err := storage.GetProject(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, 3, retrieved.TotalFiles)
	assert.Equal(t, 12, retrieved.TotalChunks)
	assert.True(t, indexedAt.Equal(retrieved.LastIndexedAt))

	err = storage.UpdateProject(ctx, &Project{ID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertFile(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	_, err := storage.EnsureProject(ctx, "default")
	require.NoError(t, err)

	file := &File{
		ProjectID:   "default",
		FilePath:    "app/models.py",
		Language:    "python",
		ContentHash: sha256.Sum256([]byte("v1")),
		SizeBytes:   2,
	}
	require.NoError(t, storage.UpsertFile(ctx, file))
	firstID := file.ID
	assert.Greater(t, firstID, int64(0))

	file.ContentHash = sha256.Sum256([]byte("v2"))
	require.NoError(t, storage.UpsertFile(ctx, file))
	assert.Equal(t, firstID, file.ID)

	retrieved, err := storage.GetFile(ctx, "default", "app/models.py")
	require.NoError(t, err)
	assert.Equal(t, sha256.Sum256([]byte("v2")), retrieved.ContentHash)
	assert.Equal(t, "python", retrieved.Language)

	_, err = storage.GetFile(ctx, "default", "missing.py")
	assert.ErrorIs(t, err, ErrNotFound)

	files, err := storage.ListFiles(ctx, "default")
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestInsertChunk(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	_, err := storage.EnsureProject(ctx, "default")
	require.NoError(t, err)

	chunk := newChunk("default", "main.go", "main", "func main() {}", 1, 1)
	require.NoError(t, storage.InsertChunk(ctx, chunk))
	assert.Greater(t, chunk.ID, int64(0))
	assert.Equal(t, sha256.Sum256([]byte("func main() {}")), chunk.ContentHash)

	retrieved, err := storage.GetChunk(ctx, chunk.ID)
	require.NoError(t, err)
	assert.Equal(t, chunk.Content, retrieved.Content)
	assert.Equal(t, types.ChunkFunction, retrieved.Kind)
	assert.Equal(t, "main.go", retrieved.FilePath)

	_, err = storage.GetChunk(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	invalid := newChunk("default", "main.go", "", "", 1, 1)
	assert.Error(t, storage.InsertChunk(ctx, invalid))
}

func TestGetChunks(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	_, err := storage.EnsureProject(ctx, "default")
	require.NoError(t, err)

	a := newChunk("default", "a.go", "A", "func A() {}", 1, 1)
	b := newChunk("default", "b.go", "B", "func B() {}", 1, 1)
	require.NoError(t, storage.InsertChunk(ctx, a))
	require.NoError(t, storage.InsertChunk(ctx, b))

	chunks, err := storage.GetChunks(ctx, []int64{a.ID, b.ID, 9999})
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
	assert.Equal(t, "A", chunks[a.ID].Name)

	empty, err := storage.GetChunks(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestListAndDeleteChunksByFile(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	_, err := storage.EnsureProject(ctx, "default")
	require.NoError(t, err)

	require.NoError(t, storage.InsertChunk(ctx, newChunk("default", "a.go", "Second", "func Second() {}", 10, 12)))
	require.NoError(t, storage.InsertChunk(ctx, newChunk("default", "a.go", "First", "func First() {}", 1, 3)))
	require.NoError(t, storage.InsertChunk(ctx, newChunk("default", "b.go", "Other", "func Other() {}", 1, 1)))

	chunks, err := storage.ListChunksByFile(ctx, "default", "a.go")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "First", chunks[0].Name)
	assert.Equal(t, "Second", chunks[1].Name)

	deleted, err := storage.DeleteChunksByFile(ctx, "default", "a.go")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	chunks, err = storage.ListChunksByFile(ctx, "default", "a.go")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	// Deleted chunks leave the full-text index
	results, err := storage.SearchText(ctx, "default", "First", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEmbeddings(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	_, err := storage.EnsureProject(ctx, "default")
	require.NoError(t, err)
	chunk := newChunk("default", "a.go", "A", "func A() {}", 1, 1)
	require.NoError(t, storage.InsertChunk(ctx, chunk))

	embedding := &Embedding{
		ChunkID:   chunk.ID,
		Vector:    SerializeVector([]float32{1, 0, 0}),
		Dimension: 3,
		Provider:  "local",
		Model:     "hash-384",
	}
	require.NoError(t, storage.UpsertEmbedding(ctx, embedding))

	embedding.Vector = SerializeVector([]float32{0, 1, 0})
	require.NoError(t, storage.UpsertEmbedding(ctx, embedding))

	retrieved, err := storage.GetEmbedding(ctx, chunk.ID)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0}, DeserializeVector(retrieved.Vector))

	_, err = storage.GetEmbedding(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	// Embeddings follow their chunk
	_, err = storage.DeleteChunksByFile(ctx, "default", "a.go")
	require.NoError(t, err)
	_, err = storage.GetEmbedding(ctx, chunk.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBeginTx_CommitRollback(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	tx, err := storage.BeginTx(ctx)
	require.NoError(t, err)
	_, err = tx.EnsureProject(ctx, "default")
	require.NoError(t, err)
	require.NoError(t, tx.InsertChunk(ctx, newChunk("default", "a.go", "A", "func A() {}", 1, 1)))
	require.NoError(t, tx.Rollback())

	_, err = storage.GetProject(ctx, "default")
	assert.ErrorIs(t, err, ErrNotFound)

	tx, err = storage.BeginTx(ctx)
	require.NoError(t, err)
	_, err = tx.EnsureProject(ctx, "default")
	require.NoError(t, err)
	require.NoError(t, tx.UpsertFile(ctx, &File{ProjectID: "default", FilePath: "a.go"}))
	require.NoError(t, tx.InsertChunk(ctx, newChunk("default", "a.go", "A", "func A() {}", 1, 1)))
	require.NoError(t, tx.Commit())

	chunks, err := storage.ListChunksByFile(ctx, "default", "a.go")
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestGetStatus(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	_, err := storage.GetStatus(ctx, "default")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = storage.EnsureProject(ctx, "default")
	require.NoError(t, err)
	require.NoError(t, storage.UpsertFile(ctx, &File{ProjectID: "default", FilePath: "a.go"}))
	chunk := newChunk("default", "a.go", "A", "func A() {}", 1, 1)
	require.NoError(t, storage.InsertChunk(ctx, chunk))
	require.NoError(t, storage.CreateSession(ctx, &Session{ID: "s1", Name: "work", ProjectID: "default"}))
	require.NoError(t, storage.Set(ctx, "k", "v", 0))

	status, err := storage.GetStatus(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, 1, status.FilesCount)
	assert.Equal(t, 1, status.ChunksCount)
	assert.Equal(t, 0, status.EmbeddingsCount)
	assert.Equal(t, 1, status.SessionsCount)
	assert.Equal(t, 1, status.CacheEntries)
	assert.True(t, status.Health.DatabaseAccessible)
	assert.False(t, status.Health.EmbeddingsAvailable)
}
