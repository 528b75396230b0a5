// Package indexer walks source trees and loads them into the retrieval index.
//
// For each supported file the indexer hashes the content, skips files whose
// hash matches the stored one, splits the rest into chunks, embeds the chunks
// in batches and replaces the file's previous chunks in a single transaction.
//
// # Basic Usage
//
//	idx := indexer.New(store, chunker.New(), emb, indexer.WithInvalidator(client))
//
//	stats, err := idx.IndexPath(ctx, "billing", "/path/to/project", nil)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("Indexed %d files (%d skipped) in %v\n",
//	    stats.FilesIndexed, stats.FilesSkipped, stats.Duration)
//
// Single snippets can be added without a file on disk:
//
//	chunk, err := idx.IndexText(ctx, "billing", "retry-helper", "go", src)
//
// # Concurrency
//
// Files are processed by an errgroup bounded by a semaphore of
// Config.Workers slots. Reading, chunking and embedding run in parallel;
// writes are serialized because SQLite has a single writer. A second
// IndexPath call while one is running fails with ErrIndexInProgress.
//
// A file that fails to read or embed is counted in Statistics.FilesFailed
// and leaves no file record, so the next run retries it. Context
// cancellation aborts the whole run.
package indexer
