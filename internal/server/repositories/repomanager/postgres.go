package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/uhhharsh/VidShare/internal/server/migrations"
	"github.com/uhhharsh/VidShare/internal/server/repositories/users"
)

// PostgresRepositoryManager vends Postgres-backed repositories and runs the
// embedded goose migrations.
type PostgresRepositoryManager struct {
	db    *sql.DB
	users *users.PostgresRepository
}

func NewPostgresRepositoryManager(db *sql.DB) *PostgresRepositoryManager {
	return &PostgresRepositoryManager{db: db, users: users.NewPostgresRepository(db)}
}

// sqlOpen and gooseUpContext are seams for tests.
var (
	sqlOpen        = sql.Open
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return goose.UpContext(ctx, db, dir, opts...)
	}
)

// OpenPostgres opens a pgx-backed *sql.DB and checks the connection.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresRepositoryManager, error) {
	db, err := sqlOpen("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return NewPostgresRepositoryManager(db), nil
}

func (m *PostgresRepositoryManager) Users() users.Repository {
	return m.users
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, m.db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (m *PostgresRepositoryManager) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *PostgresRepositoryManager) Close(context.Context) error {
	return m.db.Close()
}
