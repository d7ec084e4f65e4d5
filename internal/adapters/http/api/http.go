// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	service "github.com/okian/couplepet/internal/app"
	"github.com/okian/couplepet/internal/domain/petstate"
	"github.com/okian/couplepet/internal/domain/types"
	"github.com/okian/couplepet/pkg/logger"
)

// Header names used by the API.
const (
	HeaderRequestID        = "X-Request-ID"
	HeaderIdempotencyKey   = "Idempotency-Key"
	HeaderIdempotentReplay = "Idempotent-Replay"
)

const maxBodyBytes = 1 << 20

// Idempotency tracks Idempotency-Key values.
type Idempotency interface {
	SeenAndRecord(ctx context.Context, key string) bool
	Unrecord(ctx context.Context, key string)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Idempotency

	Get(ctx context.Context) (petstate.PetState, error)
	UpdateProfile(ctx context.Context, p petstate.Profile) (petstate.PetState, error)
	Act(ctx context.Context, partner petstate.Partner, action string, couple bool) (petstate.PetState, error)
	CoupleActivity(ctx context.Context, kind string) (petstate.PetState, error)
	Reset(ctx context.Context) (petstate.PetState, error)
	History(ctx context.Context, limit int) ([]types.HistoryEntry, error)
}

// Server wires HTTP routes for the pet API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	petHandler     *PetHandler
	actionHandler  *ActionHandler
	coupleHandler  *CoupleHandler
	resetHandler   *ResetHandler
	historyHandler *HistoryHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		petHandler:     NewPetHandler(deps),
		actionHandler:  NewActionHandler(deps),
		coupleHandler:  NewCoupleHandler(deps),
		resetHandler:   NewResetHandler(deps),
		historyHandler: NewHistoryHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("/metrics", MetricsHandler())
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/api/pet", MetricsMiddleware(s.petHandler.HandlePet, "pet"))
	mux.HandleFunc("/api/action", MetricsMiddleware(s.actionHandler.HandlePostAction, "action"))
	mux.HandleFunc("/api/couple-activity", MetricsMiddleware(s.coupleHandler.HandlePostCoupleActivity, "couple_activity"))
	mux.HandleFunc("/api/reset", MetricsMiddleware(s.resetHandler.HandlePostReset, "reset"))
	mux.HandleFunc("/api/history", MetricsMiddleware(s.historyHandler.HandleGetHistory, "history"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps an operation error to a status and code.
func writeFailure(ctx context.Context, w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, petstate.ErrInvalidPartner):
		writeError(w, http.StatusBadRequest, "invalid_partner", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, service.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, service.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "timeout", WrapKind(op, ErrUnavailable, err))
	default:
		logger.Get().Error(ctx, "request failed", logger.String("op", op), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", fmt.Errorf("%s: internal error", op))
	}
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
