// Package repository persists the single pet record.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/couplepet/internal/domain/petstate"
	"github.com/okian/couplepet/pkg/metrics"
)

// Supported store drivers.
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Store provides read/write access to the pet record.
type Store interface {
	// Load returns the stored state, or ErrNotFound when nothing was saved yet.
	Load(ctx context.Context) (petstate.PetState, error)
	// Save replaces the stored state.
	Save(ctx context.Context, s petstate.PetState) error
	Close() error
}

// LoadOrCreateDefault returns the stored state, creating and persisting the
// default pet at now when the store is empty. created reports the latter.
func LoadOrCreateDefault(ctx context.Context, st Store, now time.Time) (s petstate.PetState, created bool, err error) {
	s, err = st.Load(ctx)
	if err == nil {
		return s, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return petstate.PetState{}, false, err
	}
	s = petstate.NewDefault(now)
	if err := st.Save(ctx, s); err != nil {
		return petstate.PetState{}, false, fmt.Errorf("save default pet: %w", err)
	}
	return s, true, nil
}

// Open creates the store selected by driver and wraps it with metrics.
func Open(ctx context.Context, driver string, opts ...Option) (Store, error) {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}

	var (
		st  Store
		err error
	)
	switch driver {
	case DriverFile:
		st, err = NewFileStore(cfg.dataFile)
	case DriverSQLite:
		st, err = OpenSQLite(ctx, cfg.sqlitePath)
	case DriverPostgres:
		st, err = OpenPostgres(ctx, cfg.postgresDSN)
	case DriverMemory:
		st = NewMemoryStore()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	return Instrument(st), nil
}

// instrumented records latency and errors of the wrapped store.
type instrumented struct {
	Store
}

// Instrument wraps st so every call is reported to pkg/metrics.
func Instrument(st Store) Store {
	return &instrumented{Store: st}
}

func (i *instrumented) Load(ctx context.Context) (petstate.PetState, error) {
	start := time.Now()
	s, err := i.Store.Load(ctx)
	metrics.RecordStoreLoadLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil && !errors.Is(err, ErrNotFound) {
		metrics.RecordStoreError("load")
	}
	return s, err
}

func (i *instrumented) Save(ctx context.Context, s petstate.PetState) error {
	start := time.Now()
	err := i.Store.Save(ctx, s)
	metrics.RecordStoreSaveLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		metrics.RecordStoreError("save")
	}
	return err
}
