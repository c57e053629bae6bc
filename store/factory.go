package store

import (
	"context"
	"fmt"
	"path/filepath"
	"time"
)

// Options selects and configures a backend.
type Options struct {
	Backend    string
	URI        string
	Database   string
	Collection string
	DataDir    string
	Timeout    time.Duration
}

// New opens a Collection based on the backend name.
//
// Supported backends:
//
//	"mongo"  - MongoDB at URI (default)
//	"sqlite" - SQLite database at DataDir/foos.db
//	"memory" - In-memory (ephemeral, for testing)
func New(ctx context.Context, o Options) (Collection, error) {
	switch o.Backend {
	case "mongo", "":
		return NewMongoCollection(ctx, o.URI, o.Database, o.Collection, o.Timeout)
	case "sqlite":
		dbPath := filepath.Join(o.DataDir, "foos.db")
		return NewSqliteCollection(dbPath, o.Collection)
	case "memory":
		return NewMemoryCollection(o.Collection), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: mongo, sqlite, memory)", o.Backend)
	}
}
