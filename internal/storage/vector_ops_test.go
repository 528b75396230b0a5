package storage

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ctxselect/pkg/types"
)

// seedVectors stores one chunk per vector, all in project "default"
func seedVectors(t testing.TB, storage *SQLiteStorage, vectors map[string][]float32, order []string) map[string]int64 {
	t.Helper()
	ctx := context.Background()

	_, err := storage.EnsureProject(ctx, "default")
	require.NoError(t, err)

	ids := make(map[string]int64, len(order))
	for i, name := range order {
		chunk := &types.Chunk{
			ProjectID: "default",
			FilePath:  name + ".go",
			Content:   "func " + name + "() {}",
			StartLine: i + 1,
			EndLine:   i + 1,
			Kind:      types.ChunkFunction,
			Name:      name,
			Language:  "go",
		}
		require.NoError(t, storage.InsertChunk(ctx, chunk))

		vector := vectors[name]
		require.NoError(t, storage.UpsertEmbedding(ctx, &Embedding{
			ChunkID:   chunk.ID,
			Vector:    SerializeVector(vector),
			Dimension: len(vector),
			Provider:  "test",
			Model:     "test",
		}))
		ids[name] = chunk.ID
	}
	return ids
}

func TestSearchVectorFallback(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	ids := seedVectors(t, storage, map[string][]float32{
		"exact":    {1, 0, 0},
		"close":    {0.9, 0.1, 0},
		"far":      {0, 0, 1},
		"shortDim": {1, 0},
	}, []string{"exact", "close", "far", "shortDim"})

	results, err := searchVectorFallback(ctx, storage.db, "default", []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 3, "mismatched dimensions are skipped")
	assert.Equal(t, ids["exact"], results[0].ChunkID)
	assert.InDelta(t, 1.0, results[0].SimilarityScore, 1e-6)
	assert.Equal(t, ids["close"], results[1].ChunkID)
	assert.Equal(t, ids["far"], results[2].ChunkID)

	limited, err := searchVectorFallback(ctx, storage.db, "default", []float32{1, 0, 0}, 1, nil)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	filtered, err := searchVectorFallback(ctx, storage.db, "default", []float32{1, 0, 0}, 10,
		&SearchFilters{MinRelevance: 0.5})
	require.NoError(t, err)
	assert.Len(t, filtered, 2)

	other, err := searchVectorFallback(ctx, storage.db, "other", []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSearchVectorEdgeCases(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	results, err := storage.SearchVector(ctx, "default", []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = storage.SearchVector(ctx, "default", []float32{1, 0, 0}, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchVectorTiesOrderedByID(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	ids := seedVectors(t, storage, map[string][]float32{
		"b": {0, 1},
		"a": {0, 1},
	}, []string{"b", "a"})

	results, err := storage.SearchVector(ctx, "default", []float32{0, 1}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, ids["b"], results[0].ChunkID)
	assert.Equal(t, ids["a"], results[1].ChunkID)
}

func TestSearchText(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	_, err := storage.EnsureProject(ctx, "default")
	require.NoError(t, err)

	chunks := []*types.Chunk{
		{FilePath: "auth.py", Name: "login", Kind: types.ChunkFunction, Language: "python",
			Content: "def login(user, password):\n    return authenticate(user, password)"},
		{FilePath: "db.go", Name: "Open", Kind: types.ChunkFunction, Language: "go",
			Content: "func Open(path string) (*DB, error) { return connect(path) }"},
		{FilePath: "auth_test.py", Name: "AuthTest", Kind: types.ChunkClass, Language: "python",
			Content: "class AuthTest:\n    def test_login(self):\n        login('a', 'b')"},
	}
	for _, chunk := range chunks {
		chunk.ProjectID = "default"
		chunk.StartLine, chunk.EndLine = 1, 3
		require.NoError(t, storage.InsertChunk(ctx, chunk))
	}

	results, err := storage.SearchText(ctx, "default", "login", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Greater(t, r.BM25Score, 0.0)
		assert.LessOrEqual(t, r.BM25Score, 1.0)
	}

	results, err = storage.SearchText(ctx, "default", "login", 10, &SearchFilters{Kinds: []string{"class"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, chunks[2].ID, results[0].ChunkID)

	results, err = storage.SearchText(ctx, "default", "connect OR", 10, &SearchFilters{Languages: []string{"go"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, chunks[1].ID, results[0].ChunkID)

	results, err = storage.SearchText(ctx, "default", "login", 10, &SearchFilters{FilePattern: "*_test.py"})
	require.NoError(t, err)
	assert.Len(t, results, 1)

	_, err = storage.SearchText(ctx, "default", "!!! ---", 10, nil)
	assert.Error(t, err)
}

func TestSanitizeFTSQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{name: "single term", query: "login", want: `"login"`},
		{name: "operators are quoted", query: "user AND NOT admin", want: `"user" OR "AND" OR "NOT" OR "admin"`},
		{name: "punctuation dropped", query: "get_user(id)?", want: `"get_user" OR "id"`},
		{name: "duplicates collapse", query: "Cache cache CACHE", want: `"Cache"`},
		{name: "empty", query: "  *** ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeFTSQuery(tt.query))
		})
	}
}

func TestVectorHelpers(t *testing.T) {
	vector := []float32{0.25, -1.5, 3}
	assert.Equal(t, vector, DeserializeVector(SerializeVector(vector)))
	assert.Len(t, SerializeVector(vector), 12)

	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 0}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.False(t, math.IsNaN(CosineSimilarity(nil, nil)))
}

func BenchmarkSearchVectorFallback(b *testing.B) {
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(b, err)
	defer func() { _ = storage.Close() }()

	vectors := make(map[string][]float32, 500)
	order := make([]string, 0, 500)
	for i := 0; i < 500; i++ {
		name := fmt.Sprintf("fn%03d", i)
		v := make([]float32, 64)
		for j := range v {
			v[j] = float32((i*31+j*17)%97) / 97
		}
		vectors[name] = v
		order = append(order, name)
	}
	seedVectors(b, storage, vectors, order)

	query := vectors[order[0]]
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := searchVectorFallback(ctx, storage.db, "default", query, 10, nil); err != nil {
			b.Fatal(err)
		}
	}
}
