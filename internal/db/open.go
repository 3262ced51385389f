package db

import (
	"context"
	"fmt"
	"strings"
)

// Open connects to the store named by databaseURL: postgres:// and
// postgresql:// URLs use PostgreSQL, sqlite://<path> and sqlite::memory: use
// the embedded SQLite backend.
func Open(ctx context.Context, databaseURL string) (Store, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return Connect(ctx, databaseURL)
	case databaseURL == "sqlite::memory:":
		return OpenLite(ctx, MemoryDSN)
	case strings.HasPrefix(databaseURL, "sqlite://"):
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		if path == "" {
			return nil, fmt.Errorf("sqlite database URL %q has no path", databaseURL)
		}
		return OpenLite(ctx, path)
	case databaseURL == "":
		return nil, fmt.Errorf("database URL is required")
	}
	return nil, fmt.Errorf("unsupported database URL scheme in %q", databaseURL)
}
