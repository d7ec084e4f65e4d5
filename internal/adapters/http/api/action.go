package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/couplepet/internal/domain/petstate"
)

// ActionDependencies defines the interface for care action dependencies.
type ActionDependencies interface {
	Idempotency
	Get(ctx context.Context) (petstate.PetState, error)
	Act(ctx context.Context, partner petstate.Partner, action string, couple bool) (petstate.PetState, error)
}

// actionRequest mirrors the body of POST /api/action.
type actionRequest struct {
	Partner        string `json:"partner"`
	Action         string `json:"action"`
	CoupleActivity bool   `json:"couple_activity"`
}

func (a actionRequest) validate() error {
	switch {
	case strings.TrimSpace(a.Partner) == "":
		return errors.New("missing partner")
	case strings.TrimSpace(a.Action) == "":
		return errors.New("missing action")
	}
	return nil
}

// ActionHandler handles POST /api/action.
type ActionHandler struct {
	deps    ActionDependencies
	flights *flights
}

// NewActionHandler creates a new action handler.
func NewActionHandler(deps ActionDependencies) *ActionHandler {
	return &ActionHandler{deps: deps, flights: newFlights()}
}

// HandlePostAction applies one partner's care action. A repeated
// Idempotency-Key returns the current state without acting again.
func (h *ActionHandler) HandlePostAction(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_action"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req actionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	h.flights.serve(w, r, op, idempotencyKey(r, "action"), h.deps, func(ctx context.Context) (petstate.PetState, error) {
		return h.deps.Act(ctx, petstate.Partner(req.Partner), req.Action, req.CoupleActivity)
	})
}
