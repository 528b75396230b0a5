// Package storage persists the code index, working sessions and cached
// values in a single SQLite database.
//
// # Tables
//
//   - projects: logical codebases that retrieval is scoped to
//   - files: tracked source files and their SHA-256 content hashes
//   - chunks: indexed code chunks, mirrored into the chunks_fts FTS5 table
//   - embeddings: one vector per chunk
//   - sessions, session_history: working sessions and their command log
//   - kv_cache: string values with an optional expiry
//
// Schema changes are applied by ApplyMigrations, which records every applied
// version in schema_version and compares them with semver.
//
// # Usage
//
//	db, err := storage.NewSQLiteStorage("ctxselect.db")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	if _, err := tx.EnsureProject(ctx, "default"); err != nil {
//	    return err
//	}
//	if err := tx.InsertChunk(ctx, chunk); err != nil {
//	    return err
//	}
//	return tx.Commit()
//
// # Search
//
// SearchVector ranks chunks by cosine similarity. With the sqlite_vec build
// tag and the extension loaded the ranking runs in SQL; otherwise vectors are
// scored in Go. SearchText runs an FTS5 BM25 query whose terms are quoted and
// joined with OR, and normalizes scores to (0, 1].
//
// # Build Tags
//
//	CGO_ENABLED=1 go build -tags "sqlite_vec,sqlite_fts5"   // github.com/mattn/go-sqlite3
//	CGO_ENABLED=0 go build                                   // modernc.org/sqlite
package storage
