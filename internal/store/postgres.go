package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// NewPostgresStore connects to PostgreSQL through a pgx pool and ensures the
// schema exists. Upserts additionally take a transaction-scoped advisory lock
// per natural key, so several processes can share one database.
func NewPostgresStore(ctx context.Context, dsn string) (*SQLStore, error) {
	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "jobpipe"

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	s := newSQLStore(db, postgresDialect)
	s.closeFn = func() error {
		err := db.Close()
		pool.Close()
		return err
	}
	if err := s.migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
