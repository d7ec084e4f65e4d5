// Package worker runs the single goroutine that owns every pet read-modify-write.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/couplepet/internal/adapters/repository"
	"github.com/okian/couplepet/internal/domain/model"
	"github.com/okian/couplepet/internal/domain/petstate"
	"github.com/okian/couplepet/pkg/logger"
	"github.com/okian/couplepet/pkg/metrics"
)

// Queue defines how the writer receives mutations.
type Queue interface {
	Dequeue() <-chan model.Mutation
}

// StateWriter applies queued mutations one at a time: load (or create the
// default pet), apply, save, reply. Running exactly one writer per store is
// what makes each mutation atomic.
type StateWriter struct {
	queue Queue
	store repository.Store
	now   func() time.Time
	name  string

	done   chan struct{}
	logger logger.Logger
}

// NewStateWriter creates a writer over queue and store.
func NewStateWriter(queue Queue, store repository.Store, opts ...Option) *StateWriter {
	w := &StateWriter{
		queue: queue,
		store: store,
		now:   time.Now,
		name:  "writer",
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run drains the queue until it is closed or ctx is cancelled.
func (w *StateWriter) Run(ctx context.Context) {
	defer close(w.done)

	mutations := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-mutations:
			if !ok {
				return
			}
			w.process(ctx, m)
		}
	}
}

// Done is closed once Run returns.
func (w *StateWriter) Done() <-chan struct{} {
	return w.done
}

// Shutdown waits for Run to return. The caller closes the queue first.
func (w *StateWriter) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process handles one mutation and always replies.
func (w *StateWriter) process(ctx context.Context, m model.Mutation) { //nolint:gocritic // hugeParam: passed by value for channel semantics
	start := time.Now()
	res := w.apply(ctx, m)
	metrics.RecordMutationLatency(m.Kind, float64(time.Since(start).Microseconds())/1000)

	if res.Err != nil {
		metrics.RecordMutationError(m.Kind)
		w.logger.Warn(ctx, "mutation rejected",
			logger.String("request_id", m.ID),
			logger.String("kind", m.Kind),
			logger.Error(res.Err),
		)
	} else {
		publish(res.State)
		w.logger.Debug(ctx, "mutation applied",
			logger.String("request_id", m.ID),
			logger.String("kind", m.Kind),
			logger.Duration("took", time.Since(start)),
		)
	}

	if m.Reply != nil {
		select {
		case m.Reply <- res:
		default:
			w.logger.Warn(ctx, "reply dropped", logger.String("request_id", m.ID))
		}
	}
}

func (w *StateWriter) apply(ctx context.Context, m model.Mutation) model.Result { //nolint:gocritic // hugeParam: passed by value for channel semantics
	now := w.now()
	current, created, err := repository.LoadOrCreateDefault(ctx, w.store, now)
	if err != nil {
		return model.Result{Err: fmt.Errorf("load pet: %w", err)}
	}
	if created {
		w.logger.Info(ctx, "created default pet", logger.String("name", current.Name))
	}
	if m.Apply == nil {
		return model.Result{State: current}
	}

	next, err := m.Apply(current, now)
	if err != nil {
		return model.Result{State: current, Err: err}
	}
	if err := w.store.Save(ctx, next); err != nil {
		return model.Result{State: current, Err: fmt.Errorf("save pet: %w", err)}
	}
	return model.Result{State: next}
}

func publish(s petstate.PetState) {
	metrics.UpdateVitals(s.Happiness, s.Health, s.Hunger, s.Cleanliness)
	metrics.UpdateStreak(string(petstate.Partner1), s.Partner1.Streak)
	metrics.UpdateStreak(string(petstate.Partner2), s.Partner2.Streak)
	metrics.UpdateHistoryLength(len(s.ActionHistory))
}
