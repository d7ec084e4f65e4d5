package api

import (
	"context"
	"net/http"

	"github.com/okian/couplepet/internal/domain/petstate"
)

// PetDependencies defines what the pet handler needs.
type PetDependencies interface {
	Get(ctx context.Context) (petstate.PetState, error)
	UpdateProfile(ctx context.Context, p petstate.Profile) (petstate.PetState, error)
}

// profileRequest mirrors the body of POST /api/pet. Absent fields are left
// unchanged.
type profileRequest struct {
	Name         *string `json:"name"`
	Species      *string `json:"species"`
	Partner1Name *string `json:"partner1_name"`
	Partner2Name *string `json:"partner2_name"`
}

// PetHandler handles /api/pet.
type PetHandler struct {
	deps PetDependencies
}

// NewPetHandler creates a new pet handler.
func NewPetHandler(deps PetDependencies) *PetHandler {
	return &PetHandler{deps: deps}
}

// HandlePet serves GET (current state after decay) and POST (profile update).
func (h *PetHandler) HandlePet(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPost:
		h.update(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind("api.pet", ErrMethod))
	}
}

func (h *PetHandler) get(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_pet"
	pet, err := h.deps.Get(r.Context())
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, pet)
}

func (h *PetHandler) update(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_pet"
	var req profileRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	pet, err := h.deps.UpdateProfile(r.Context(), petstate.Profile{
		Name:         req.Name,
		Species:      req.Species,
		Partner1Name: req.Partner1Name,
		Partner2Name: req.Partner2Name,
	})
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, pet)
}
