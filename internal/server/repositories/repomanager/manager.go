// Package repomanager opens the persistence backend named by a DSN and vends
// its repositories.
package repomanager

import (
	"context"
	"fmt"
	"net/url"

	"github.com/uhhharsh/VidShare/internal/server/repositories/users"
)

// DSN schemes understood by Open.
const (
	SchemePostgres   = "postgres"
	SchemePostgresQL = "postgresql"
	SchemeMongo      = "mongodb"
	SchemeMongoSRV   = "mongodb+srv"
	SchemeMemory     = "memory"
)

type RepositoryManager interface {
	Users() users.Repository
	// RunMigrations brings the schema (tables or indexes) up to date.
	RunMigrations(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Open connects to the backend selected by the DSN scheme.
func Open(ctx context.Context, dsn string) (RepositoryManager, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	switch u.Scheme {
	case SchemePostgres, SchemePostgresQL:
		return OpenPostgres(ctx, dsn)
	case SchemeMongo, SchemeMongoSRV:
		return OpenMongo(ctx, dsn)
	case SchemeMemory:
		return NewMemoryRepositoryManager(), nil
	default:
		return nil, fmt.Errorf("unsupported dsn scheme %q", u.Scheme)
	}
}
