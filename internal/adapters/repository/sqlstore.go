package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/okian/couplepet/internal/domain/petstate"
)

// petRowID is the primary key of the only row.
const petRowID = 1

// sqlStore stores the JSON record in a single-row table. The dialects only
// differ in their statements.
type sqlStore struct {
	db        *sql.DB
	loadQuery string
	saveQuery string
}

func (s *sqlStore) Load(ctx context.Context) (petstate.PetState, error) {
	var data string
	err := s.db.QueryRowContext(ctx, s.loadQuery, petRowID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return petstate.PetState{}, ErrNotFound
	}
	if err != nil {
		return petstate.PetState{}, fmt.Errorf("load pet: %w", err)
	}

	var st petstate.PetState
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return petstate.PetState{}, fmt.Errorf("decode pet: %w", err)
	}
	return st, nil
}

func (s *sqlStore) Save(ctx context.Context, st petstate.PetState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode pet: %w", err)
	}
	updated := st.LastUpdated
	if updated.IsZero() {
		updated = time.Now()
	}
	if _, err := s.db.ExecContext(ctx, s.saveQuery, petRowID, string(data), updated.UTC()); err != nil {
		return fmt.Errorf("save pet: %w", err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

// configurePool applies pool limits and verifies the connection.
func configurePool(ctx context.Context, db *sql.DB, maxOpen int) error {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}
