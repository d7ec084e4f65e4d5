package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/couplepet/internal/domain/petstate"
)

// CoupleDependencies defines the interface for joint activity dependencies.
type CoupleDependencies interface {
	Idempotency
	Get(ctx context.Context) (petstate.PetState, error)
	CoupleActivity(ctx context.Context, kind string) (petstate.PetState, error)
}

type coupleRequest struct {
	Activity string `json:"activity"`
}

// CoupleHandler handles POST /api/couple-activity.
type CoupleHandler struct {
	deps    CoupleDependencies
	flights *flights
}

// NewCoupleHandler creates a new couple activity handler.
func NewCoupleHandler(deps CoupleDependencies) *CoupleHandler {
	return &CoupleHandler{deps: deps, flights: newFlights()}
}

// HandlePostCoupleActivity applies a joint activity of both partners.
func (h *CoupleHandler) HandlePostCoupleActivity(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_couple_activity"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req coupleRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Activity) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing activity")))
		return
	}

	h.flights.serve(w, r, op, idempotencyKey(r, "couple"), h.deps, func(ctx context.Context) (petstate.PetState, error) {
		return h.deps.CoupleActivity(ctx, req.Activity)
	})
}
