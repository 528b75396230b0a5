//go:build !sqlite_vec
// +build !sqlite_vec

package storage

// This file is compiled whenever the sqlite_vec tag is absent.
// It uses a pure Go SQLite implementation; vector similarity is computed in Go.
//
// Build command:
//   CGO_ENABLED=0 go build ./...
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = false

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
