package api

import (
	"context"
	"net/http"

	"github.com/okian/couplepet/internal/domain/types"
)

// StatsProvider reports a snapshot of the running service.
type StatsProvider interface {
	GetStats(ctx context.Context) types.Stats
}

// StatsHandler serves GET /stats.
type StatsHandler struct {
	provider StatsProvider
}

func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// HandleStats answers with queue, idempotency and pet counters. Other
// methods get a 404, like the other read-only operational routes.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.provider.GetStats(r.Context()))
}
