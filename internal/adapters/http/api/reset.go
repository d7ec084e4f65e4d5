package api

import (
	"context"
	"net/http"

	"github.com/okian/couplepet/internal/domain/petstate"
)

// ResetDependencies defines the interface for reset dependencies.
type ResetDependencies interface {
	Idempotency
	Get(ctx context.Context) (petstate.PetState, error)
	Reset(ctx context.Context) (petstate.PetState, error)
}

// ResetHandler handles POST /api/reset.
type ResetHandler struct {
	deps    ResetDependencies
	flights *flights
}

// NewResetHandler creates a new reset handler.
func NewResetHandler(deps ResetDependencies) *ResetHandler {
	return &ResetHandler{deps: deps, flights: newFlights()}
}

// HandlePostReset replaces the pet with a fresh one. A retried reset with
// the same Idempotency-Key does not wipe the care given since.
func (h *ResetHandler) HandlePostReset(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_reset"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	h.flights.serve(w, r, op, idempotencyKey(r, "reset"), h.deps, h.deps.Reset)
}
