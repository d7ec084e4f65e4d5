// Package service wires the pet engine, store and single writer together and
// exposes the operations the HTTP API needs.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/couplepet/internal/adapters/mq/queue"
	"github.com/okian/couplepet/internal/adapters/mq/worker"
	"github.com/okian/couplepet/internal/adapters/repository"
	"github.com/okian/couplepet/internal/domain/dedupe"
	"github.com/okian/couplepet/internal/domain/model"
	"github.com/okian/couplepet/internal/domain/petstate"
	"github.com/okian/couplepet/internal/domain/types"
	"github.com/okian/couplepet/pkg/logger"
	"github.com/okian/couplepet/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultQueueSize       = 64
	defaultIdempotencySize = 1024
)

// Service implements the API dependencies for the shared pet.
type Service struct {
	mu sync.RWMutex

	// Core components
	store       repository.Store
	storeDriver string
	engine      *petstate.Engine
	deduper     dedupe.Deduper
	queue       *queue.InMemoryQueue
	writer      *worker.StateWriter

	// Configuration
	queueSize       int
	idempotencySize int
	historyLimit    int
	now             func() time.Time

	// State
	started   bool
	startedAt time.Time
	cancel    context.CancelFunc

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		queueSize:       defaultQueueSize,
		idempotencySize: defaultIdempotencySize,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = petstate.NewEngine(petstate.WithHistoryLimit(s.historyLimit))
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.storeDriver = repository.DriverMemory
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.idempotencySize))
	return s
}

// Start creates the queue and launches the state writer.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.writer = worker.NewStateWriter(s.queue, s.store,
		worker.WithLogger(s.logger.Named("writer")),
		worker.WithClock(s.now),
	)

	// The writer outlives request contexts; Stop drains and cancels it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go s.writer.Run(runCtx)

	s.started = true
	s.startedAt = s.now()
	s.logger.Info(ctx, "pet service started",
		logger.String("store", s.storeDriver),
		logger.Int("queueSize", s.queueSize),
		logger.Int("idempotencySize", s.idempotencySize),
		logger.Int("historyLimit", s.engine.Rules().HistoryLimit),
	)
	return nil
}

// Stop closes the queue, waits for the writer to finish pending mutations
// and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping pet service...")

	_ = s.queue.Close()
	err := s.writer.Shutdown(ctx)
	s.cancel()
	if cerr := s.store.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("close store: %w", cerr))
	}

	s.started = false
	s.logger.Info(ctx, "pet service stopped")
	return err
}

// submit queues apply and waits for the writer's result. A caller that gives
// up once the mutation is queued gets ErrPending joined with ctx.Err().
func (s *Service) submit(ctx context.Context, kind string, apply model.ApplyFunc) (petstate.PetState, error) {
	s.mu.RLock()
	started, q := s.started, s.queue
	s.mu.RUnlock()
	if !started {
		if q != nil {
			return petstate.PetState{}, ErrStopped
		}
		return petstate.PetState{}, ErrNotStarted
	}

	m := model.NewMutation(model.RequestID(ctx), kind, apply)
	if !q.Enqueue(ctx, m) {
		switch {
		case q.IsClosed():
			return petstate.PetState{}, ErrStopped
		case ctx.Err() != nil:
			return petstate.PetState{}, ctx.Err()
		default:
			return petstate.PetState{}, ErrQueueFull
		}
	}

	select {
	case res := <-m.Reply:
		return res.State, res.Err
	case <-ctx.Done():
		return petstate.PetState{}, fmt.Errorf("%w: %w", ErrPending, ctx.Err())
	}
}

// withDecay wraps step so the time decay is applied first and its size is
// reported through lost.
func (s *Service) withDecay(lost *float64, step func(petstate.PetState, time.Time) (petstate.PetState, error)) model.ApplyFunc {
	return func(st petstate.PetState, now time.Time) (petstate.PetState, error) {
		if !st.LastUpdated.IsZero() {
			if elapsed := now.Sub(st.LastUpdated); elapsed > s.engine.Rules().DecayThreshold {
				*lost = s.engine.DecayFor(elapsed)
			}
		}
		return step(st, now)
	}
}

// metricLabel keeps client supplied names out of label values unless known.
func metricLabel(name string, known bool) string {
	if known {
		return name
	}
	return "other"
}

func recordDecay(lost float64) {
	if lost > 0 {
		metrics.RecordDecay(lost)
	}
}

// Get loads the pet, applies and persists the time decay, and returns it.
func (s *Service) Get(ctx context.Context) (petstate.PetState, error) {
	var lost float64
	st, err := s.submit(ctx, model.KindRead, s.withDecay(&lost, func(st petstate.PetState, now time.Time) (petstate.PetState, error) {
		return s.engine.ApplyTimeDecay(st, now), nil
	}))
	if err != nil {
		return petstate.PetState{}, err
	}
	recordDecay(lost)
	return st, nil
}

// UpdateProfile changes the pet's and partners' names. No decay is applied.
func (s *Service) UpdateProfile(ctx context.Context, p petstate.Profile) (petstate.PetState, error) {
	return s.submit(ctx, model.KindProfile, func(st petstate.PetState, now time.Time) (petstate.PetState, error) {
		return s.engine.UpdateProfile(st, p, now), nil
	})
}

// Act applies a partner's care action after decaying the pet.
func (s *Service) Act(ctx context.Context, partner petstate.Partner, action string, couple bool) (petstate.PetState, error) {
	if !partner.Valid() {
		return petstate.PetState{}, fmt.Errorf("%w: %q", petstate.ErrInvalidPartner, partner)
	}

	var lost float64
	st, err := s.submit(ctx, model.KindAction, s.withDecay(&lost, func(st petstate.PetState, now time.Time) (petstate.PetState, error) {
		return s.engine.Act(st, partner, action, now, couple)
	}))
	if err != nil {
		return petstate.PetState{}, err
	}
	recordDecay(lost)
	metrics.RecordAction(metricLabel(action, petstate.KnownAction(action)))
	s.logger.Info(ctx, "care action applied",
		logger.String("partner", string(partner)),
		logger.String("action", action),
		logger.Bool("couple", couple),
	)
	return st, nil
}

// CoupleActivity applies a joint activity after decaying the pet.
func (s *Service) CoupleActivity(ctx context.Context, kind string) (petstate.PetState, error) {
	var lost float64
	st, err := s.submit(ctx, model.KindCouple, s.withDecay(&lost, func(st petstate.PetState, now time.Time) (petstate.PetState, error) {
		return s.engine.CoupleActivity(st, kind, now), nil
	}))
	if err != nil {
		return petstate.PetState{}, err
	}
	recordDecay(lost)
	metrics.RecordCoupleActivity(metricLabel(kind, petstate.KnownActivity(kind)))
	s.logger.Info(ctx, "couple activity applied",
		logger.String("activity", kind),
	)
	return st, nil
}

// Reset replaces the pet with a fresh default, keeping partner names.
func (s *Service) Reset(ctx context.Context) (petstate.PetState, error) {
	st, err := s.submit(ctx, model.KindReset, func(st petstate.PetState, now time.Time) (petstate.PetState, error) {
		return s.engine.Reset(st, now), nil
	})
	if err != nil {
		return petstate.PetState{}, err
	}
	metrics.RecordReset()
	s.logger.Info(ctx, "pet reset")
	return st, nil
}

// History returns up to limit history entries, newest first. limit <= 0
// returns the whole history.
func (s *Service) History(ctx context.Context, limit int) ([]types.HistoryEntry, error) {
	st, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	n := len(st.ActionHistory)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]types.HistoryEntry, 0, n)
	for i := len(st.ActionHistory) - 1; i >= 0 && len(out) < n; i-- {
		h := st.ActionHistory[i]
		e := types.HistoryEntry{
			Timestamp:      petstate.FormatTimestamp(h.Timestamp),
			Partner:        string(h.Partner),
			Action:         h.Action,
			CoupleActivity: h.CoupleActivity,
		}
		if ps, err := st.Partner(h.Partner); err == nil {
			e.PartnerName = ps.Name
		}
		out = append(out, e)
	}
	return out, nil
}

// SeenAndRecord atomically checks if an idempotency key was seen and records
// it if not. Returns true if the key was already seen.
func (s *Service) SeenAndRecord(ctx context.Context, key string) bool {
	seen := s.deduper.SeenAndRecord(ctx, key)
	if seen {
		metrics.RecordIdempotentReplay()
	}
	return seen
}

// Unrecord forgets key so the request can be retried.
func (s *Service) Unrecord(ctx context.Context, key string) {
	s.deduper.Unrecord(ctx, key)
}

// GetStats returns service statistics for monitoring. It reads the stored
// pet directly and never applies decay.
func (s *Service) GetStats(ctx context.Context) types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := types.Stats{
		QueueCapacity:   s.queueSize,
		IdempotencyKeys: s.deduper.Size(),
		StoreDriver:     s.storeDriver,
	}
	if !s.started {
		return stats
	}

	stats.Started = true
	stats.QueueDepth = s.queue.Len()
	stats.UptimeSeconds = s.now().Sub(s.startedAt).Seconds()

	st, err := s.store.Load(ctx)
	switch {
	case err == nil:
		stats.HistoryLength = len(st.ActionHistory)
		stats.CoupleActivities = st.CoupleActivitiesCompleted
		stats.Partner1Streak = st.Partner1.Streak
		stats.Partner2Streak = st.Partner2.Streak
	case !errors.Is(err, repository.ErrNotFound):
		s.logger.Warn(ctx, "stats: load pet failed", logger.Error(err))
	}
	metrics.UpdateSystemGoroutineCount()
	return stats
}
