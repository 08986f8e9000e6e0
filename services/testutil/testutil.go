package testutil

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/AfshinJalili/bankflow/libs/config"
	"github.com/AfshinJalili/bankflow/libs/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IntegrationEnabled gates tests that need a running Postgres.
func IntegrationEnabled() bool {
	return os.Getenv("RUN_DB_INTEGRATION") != ""
}

// SetupTestDB connects with the POSTGRES_* environment and applies the
// service migrations.
func SetupTestDB(migrations fs.FS, dir, versionTable string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, config.LoadDB("bank").DSN())
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := postgres.Migrate(ctx, pool, migrations, dir, versionTable); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Truncate empties the given tables and restarts their identities.
func Truncate(ctx context.Context, pool *pgxpool.Pool, tables ...string) error {
	for _, table := range tables {
		q := fmt.Sprintf("TRUNCATE %s RESTART IDENTITY CASCADE", pgx.Identifier{table}.Sanitize())
		if _, err := pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}
