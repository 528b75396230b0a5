package indexer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/ctxselect/internal/chunker"
	"github.com/dshills/ctxselect/internal/embedder"
	"github.com/dshills/ctxselect/internal/storage"
	"github.com/dshills/ctxselect/pkg/types"
)

var (
	// ErrIndexInProgress is returned when another IndexPath call holds the lock
	ErrIndexInProgress = errors.New("indexing already in progress")

	// ErrInvalidPath is returned for paths that are missing or unsupported
	ErrInvalidPath = errors.New("invalid path")
)

// DefaultMaxFileSize is the largest file the indexer will read
const DefaultMaxFileSize = 1 << 20

// skippedDirs are never descended into
var skippedDirs = map[string]bool{
	"vendor":       true,
	"node_modules": true,
	"__pycache__":  true,
	"venv":         true,
}

// Invalidator is notified after the index changes, e.g. to drop cached query results
type Invalidator interface {
	Invalidate()
}

// Indexer coordinates the indexing pipeline: chunk -> embed -> store
type Indexer struct {
	storage  storage.Storage
	chunker  *chunker.Chunker
	embedder embedder.Embedder // nil stores chunks without embeddings

	invalidator Invalidator
	lock        IndexLock
	writeMu     sync.Mutex
}

// Option configures an Indexer
type Option func(*Indexer)

// WithInvalidator registers a component to invalidate after indexing
func WithInvalidator(inv Invalidator) Option {
	return func(idx *Indexer) {
		idx.invalidator = inv
	}
}

// Config contains configuration for one IndexPath call
type Config struct {
	Workers       int   // Number of concurrent workers (default: runtime.NumCPU())
	IncludeTests  bool  // Whether to index test files
	IncludeVendor bool  // Whether to index vendor directories
	ForceReindex  bool  // Re-index files whose content hash is unchanged
	MaxFileSize   int64 // Files larger than this are skipped (default: 1 MiB)
}

// DefaultConfig returns the configuration used when IndexPath gets nil
func DefaultConfig() *Config {
	return &Config{
		Workers:      runtime.NumCPU(),
		IncludeTests: true,
		MaxFileSize:  DefaultMaxFileSize,
	}
}

// Statistics contains statistics about the indexing operation
type Statistics struct {
	FilesDiscovered   int
	FilesIndexed      int
	FilesSkipped      int
	FilesFailed       int
	ChunksCreated     int
	EmbeddingsCreated int
	Duration          time.Duration
	ErrorMessages     []string
}

// New creates a new Indexer. The embedder may be nil, in which case only
// keyword search will find the indexed chunks.
func New(store storage.Storage, c *chunker.Chunker, e embedder.Embedder, opts ...Option) *Indexer {
	if c == nil {
		c = chunker.New()
	}
	idx := &Indexer{
		storage:  store,
		chunker:  c,
		embedder: e,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IndexPath indexes a file or directory tree into projectID
func (idx *Indexer) IndexPath(ctx context.Context, projectID, root string, config *Config) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexInProgress
	}
	defer idx.lock.Release()

	if config == nil {
		config = DefaultConfig()
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = DefaultMaxFileSize
	}
	if projectID == "" {
		projectID = types.DefaultProjectID
	}

	log := zerolog.Ctx(ctx)
	startTime := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	files, err := discoverFiles(root, config)
	if err != nil {
		return nil, err
	}
	stats.FilesDiscovered = len(files)

	project, err := idx.storage.EnsureProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure project: %w", err)
	}

	if err := idx.indexFiles(ctx, projectID, files, config, stats); err != nil {
		return nil, fmt.Errorf("failed to index files: %w", err)
	}

	if err := idx.updateProjectStats(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to update project stats: %w", err)
	}

	if stats.FilesIndexed > 0 {
		idx.invalidate()
	}

	stats.Duration = time.Since(startTime)
	log.Info().
		Str("project_id", projectID).
		Str("path", root).
		Int("indexed", stats.FilesIndexed).
		Int("skipped", stats.FilesSkipped).
		Int("failed", stats.FilesFailed).
		Int("chunks", stats.ChunksCreated).
		Dur("duration", stats.Duration).
		Msg("indexing complete")

	return stats, nil
}

// IndexText stores a standalone snippet as one chunk and returns it with its ID set
func (idx *Indexer) IndexText(ctx context.Context, projectID, name, language, text string) (*types.Chunk, error) {
	if projectID == "" {
		projectID = types.DefaultProjectID
	}
	if name == "" {
		name = "snippet"
	}

	chunk, err := idx.chunker.ChunkText(projectID, name, language, text)
	if err != nil {
		return nil, err
	}

	vectors, err := idx.embedChunks(ctx, []*types.Chunk{chunk})
	if err != nil {
		return nil, err
	}

	if err := idx.writeChunks(ctx, projectID, nil, []*types.Chunk{chunk}, vectors); err != nil {
		return nil, err
	}

	if project, err := idx.storage.GetProject(ctx, projectID); err == nil {
		if err := idx.updateProjectStats(ctx, project); err != nil {
			return nil, fmt.Errorf("failed to update project stats: %w", err)
		}
	}

	idx.invalidate()
	return chunk, nil
}

// sourceFile is a discovered file with its path relative to the indexed root
type sourceFile struct {
	path    string
	relPath string
}

// discoverFiles finds all supported source files under root
func discoverFiles(root string, config *Config) ([]sourceFile, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	if !info.IsDir() {
		if !chunker.Supported(root) {
			return nil, fmt.Errorf("%w: unsupported file type %s", ErrInvalidPath, filepath.Ext(root))
		}
		return []sourceFile{{path: root, relPath: filepath.Base(root)}}, nil
	}

	var files []sourceFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			name := d.Name()
			if strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if skippedDirs[name] && !(name == "vendor" && config.IncludeVendor) {
				return filepath.SkipDir
			}
			return nil
		}

		if !chunker.Supported(path) {
			return nil
		}
		if !config.IncludeTests && isTestFile(d.Name()) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		if fi.Size() > config.MaxFileSize {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, sourceFile{path: path, relPath: filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	return files, nil
}

func isTestFile(name string) bool {
	return strings.HasSuffix(name, "_test.go") ||
		(strings.HasPrefix(name, "test_") && strings.HasSuffix(name, ".py")) ||
		strings.HasSuffix(name, "_test.py")
}

// indexFiles indexes files concurrently; per-file failures are recorded in stats
func (idx *Indexer) indexFiles(ctx context.Context, projectID string, files []sourceFile, config *Config, stats *Statistics) error {
	semaphore := make(chan struct{}, config.Workers)

	var (
		indexed    int32
		skipped    int32
		failed     int32
		chunks     int32
		embeddings int32
	)

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex // Protects stats.ErrorMessages

	for _, file := range files {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			result, err := idx.indexFile(gctx, projectID, file, config.ForceReindex)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				atomic.AddInt32(&failed, 1)
				mu.Lock()
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", file.relPath, err))
				mu.Unlock()
				zerolog.Ctx(gctx).Warn().Err(err).Str("file", file.relPath).Msg("failed to index file")
				return nil
			}

			if result.skipped {
				atomic.AddInt32(&skipped, 1)
				return nil
			}
			atomic.AddInt32(&indexed, 1)
			atomic.AddInt32(&chunks, int32(result.chunks))
			atomic.AddInt32(&embeddings, int32(result.embeddings))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	stats.FilesIndexed = int(indexed)
	stats.FilesSkipped = int(skipped)
	stats.FilesFailed = int(failed)
	stats.ChunksCreated = int(chunks)
	stats.EmbeddingsCreated = int(embeddings)
	return nil
}

type fileResult struct {
	skipped    bool
	chunks     int
	embeddings int
}

// indexFile chunks and embeds one file, then replaces its stored chunks in a transaction
func (idx *Indexer) indexFile(ctx context.Context, projectID string, file sourceFile, force bool) (*fileResult, error) {
	content, err := os.ReadFile(file.path)
	if err != nil {
		return nil, err
	}
	hash := sha256.Sum256(content)

	if !force {
		unchanged, err := idx.checkFileUnchanged(ctx, projectID, file.relPath, hash)
		if err != nil {
			return nil, err
		}
		if unchanged {
			return &fileResult{skipped: true}, nil
		}
	}

	fileChunks := idx.chunker.Chunk(projectID, file.relPath, content)

	vectors, err := idx.embedChunks(ctx, fileChunks)
	if err != nil {
		return nil, err
	}

	record := &storage.File{
		ProjectID:   projectID,
		FilePath:    file.relPath,
		Language:    chunker.LanguageFor(file.relPath),
		ContentHash: hash,
		SizeBytes:   int64(len(content)),
	}
	if err := idx.writeChunks(ctx, projectID, record, fileChunks, vectors); err != nil {
		return nil, err
	}

	return &fileResult{chunks: len(fileChunks), embeddings: len(vectors)}, nil
}

// checkFileUnchanged reports whether the stored hash for relPath matches hash
func (idx *Indexer) checkFileUnchanged(ctx context.Context, projectID, relPath string, hash [32]byte) (bool, error) {
	existing, err := idx.storage.GetFile(ctx, projectID, relPath)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return existing.ContentHash == hash, nil
}

// embedChunks embeds chunk contents in batches; the result is parallel to chunks.
// Returns nil when no embedder is configured.
func (idx *Indexer) embedChunks(ctx context.Context, chunks []*types.Chunk) ([]*embedder.Embedding, error) {
	if idx.embedder == nil || len(chunks) == 0 {
		return nil, nil
	}

	vectors := make([]*embedder.Embedding, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedder.DefaultBatchSize {
		end := min(start+embedder.DefaultBatchSize, len(chunks))

		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Content)
		}

		batch, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks: %w", err)
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

// writeChunks replaces the file's chunks (when file is set) and stores the
// new chunks with their embeddings in one transaction
func (idx *Indexer) writeChunks(ctx context.Context, projectID string, file *storage.File, chunks []*types.Chunk, vectors []*embedder.Embedding) error {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.EnsureProject(ctx, projectID); err != nil {
		return err
	}

	if file != nil {
		if _, err := tx.DeleteChunksByFile(ctx, projectID, file.FilePath); err != nil {
			return fmt.Errorf("failed to delete old chunks: %w", err)
		}
	}

	for i, chunk := range chunks {
		if err := tx.InsertChunk(ctx, chunk); err != nil {
			return err
		}
		if i >= len(vectors) {
			continue
		}
		emb := vectors[i]
		err := tx.UpsertEmbedding(ctx, &storage.Embedding{
			ChunkID:   chunk.ID,
			Vector:    storage.SerializeVector(emb.Vector),
			Dimension: emb.Dimension,
			Provider:  emb.Provider,
			Model:     emb.Model,
		})
		if err != nil {
			return fmt.Errorf("failed to store embedding: %w", err)
		}
	}

	if file != nil {
		if err := tx.UpsertFile(ctx, file); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// updateProjectStats updates the project's file and chunk counts
func (idx *Indexer) updateProjectStats(ctx context.Context, project *storage.Project) error {
	status, err := idx.storage.GetStatus(ctx, project.ID)
	if err != nil {
		return err
	}

	project.TotalFiles = status.FilesCount
	project.TotalChunks = status.ChunksCount
	project.LastIndexedAt = time.Now()

	return idx.storage.UpdateProject(ctx, project)
}

func (idx *Indexer) invalidate() {
	if idx.invalidator != nil {
		idx.invalidator.Invalidate()
	}
}
