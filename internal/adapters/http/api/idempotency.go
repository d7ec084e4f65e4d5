package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	service "github.com/okian/couplepet/internal/app"
	"github.com/okian/couplepet/internal/domain/petstate"
)

// replayer is what an idempotent route needs besides its own operation.
type replayer interface {
	Idempotency
	Get(ctx context.Context) (petstate.PetState, error)
}

type applyFunc func(ctx context.Context) (petstate.PetState, error)

// flights tracks Idempotency-Key values whose first request is still being
// handled, so a concurrent duplicate waits for it instead of replaying a
// state the first request has not reached yet.
type flights struct {
	mu      sync.Mutex
	pending map[string]chan struct{}
}

func newFlights() *flights {
	return &flights{pending: make(map[string]chan struct{})}
}

// claim records key. owner is true when this request must apply the
// operation. Otherwise wait is the channel of the request still handling
// key, or nil when the key was already settled.
func (f *flights) claim(ctx context.Context, idem Idempotency, key string) (owner bool, wait <-chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !idem.SeenAndRecord(ctx, key) {
		f.pending[key] = make(chan struct{})
		return true, nil
	}
	return false, f.pending[key]
}

func (f *flights) finish(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ch, ok := f.pending[key]; ok {
		close(ch)
		delete(f.pending, key)
	}
}

// serve answers a mutating request. Without a key it simply applies. With a
// key, only the first request applies; later ones get the current state with
// Idempotent-Replay set. The key is released again only when the operation
// provably did not reach the state writer or the writer rejected it.
//
// Once the owner returns its mutation is queued or done, and replays read
// through the same FIFO writer, so they always observe it.
func (f *flights) serve(w http.ResponseWriter, r *http.Request, op, key string, deps replayer, apply applyFunc) {
	ctx := r.Context()
	if key == "" {
		respond(ctx, w, op, apply)
		return
	}

	for {
		owner, wait := f.claim(ctx, deps, key)
		if owner {
			break
		}
		if wait == nil {
			replay(w, r, op, deps.Get)
			return
		}
		select {
		case <-wait:
		case <-ctx.Done():
			writeFailure(ctx, w, op, ctx.Err())
			return
		}
	}
	defer f.finish(key)

	pet, err := apply(ctx)
	if err != nil {
		if !errors.Is(err, service.ErrPending) {
			deps.Unrecord(ctx, key)
		}
		writeFailure(ctx, w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, pet)
}

func respond(ctx context.Context, w http.ResponseWriter, op string, apply applyFunc) {
	pet, err := apply(ctx)
	if err != nil {
		writeFailure(ctx, w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, pet)
}

// idempotencyKey returns the request's key scoped to route, or "".
func idempotencyKey(r *http.Request, route string) string {
	key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	if key == "" {
		return ""
	}
	return route + ":" + key
}

// replay answers an already applied request with the current state.
func replay(w http.ResponseWriter, r *http.Request, op string, get func(context.Context) (petstate.PetState, error)) {
	pet, err := get(r.Context())
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	w.Header().Set(HeaderIdempotentReplay, "true")
	writeJSON(w, http.StatusOK, pet)
}
