package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS pet_state (
	id         SMALLINT    PRIMARY KEY,
	data       JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

const postgresMaxConns = 5

// OpenPostgres connects with pgx through database/sql and ensures the table.
func OpenPostgres(ctx context.Context, dsn string) (Store, error) {
	if dsn == "" {
		return nil, errors.New("postgres store: empty dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := configurePool(ctx, db, postgresMaxConns); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}

	return &sqlStore{
		db:        db,
		loadQuery: `SELECT data::text FROM pet_state WHERE id = $1`,
		saveQuery: `INSERT INTO pet_state (id, data, updated_at) VALUES ($1, $2::jsonb, $3)
			ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
	}, nil
}
