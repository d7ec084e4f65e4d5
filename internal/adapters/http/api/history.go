package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/couplepet/internal/domain/types"
)

// HistoryDependencies defines the interface for history dependencies.
type HistoryDependencies interface {
	History(ctx context.Context, limit int) ([]types.HistoryEntry, error)
}

type historyResponse struct {
	Count   int                  `json:"count"`
	History []types.HistoryEntry `json:"history"`
}

// HistoryHandler handles GET /api/history.
type HistoryHandler struct {
	deps HistoryDependencies
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(deps HistoryDependencies) *HistoryHandler {
	return &HistoryHandler{deps: deps}
}

// HandleGetHistory lists recent actions, newest first. ?limit=N bounds the
// result; without it the whole history is returned.
func (h *HistoryHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_history"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit",
				WrapKind(op, ErrBadRequest, fmt.Errorf("limit must be a positive integer, got %q", raw)))
			return
		}
		limit = n
	}

	entries, err := h.deps.History(r.Context(), limit)
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Count: len(entries), History: entries})
}
