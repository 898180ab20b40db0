package recordstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/review-monitor/shared/postgresql"
)

// Supported storage backends
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Options selects and configures a backend
type Options struct {
	Backend    string
	DataDir    string
	SQLitePath string
	Postgres   *postgresql.Client
}

// Open returns the Store for opts.Backend
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Store, error) {
	switch opts.Backend {
	case BackendFile, "":
		return NewFileStore(opts.DataDir, logger)
	case BackendSQLite:
		return OpenSQLite(ctx, opts.SQLitePath, logger)
	case BackendPostgres:
		if opts.Postgres == nil {
			return nil, fmt.Errorf("postgres backend requires a database client")
		}
		return NewSQLStore(ctx, opts.Postgres.GetDB(), logger)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", opts.Backend)
	}
}
