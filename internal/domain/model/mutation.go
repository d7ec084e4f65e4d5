// Package model contains domain models passed between layers.
package model

import (
	"context"
	"time"

	"github.com/okian/couplepet/internal/domain/petstate"
)

// Mutation kinds, also used as metric and log labels.
const (
	KindRead    = "read"
	KindAction  = "action"
	KindCouple  = "couple_activity"
	KindProfile = "profile"
	KindReset   = "reset"
)

// ApplyFunc derives the next state from the current one at now.
type ApplyFunc func(s petstate.PetState, now time.Time) (petstate.PetState, error)

// Mutation is a single read-modify-write request handled by the state writer.
type Mutation struct {
	ID    string    // request id for logging
	Kind  string    // one of the Kind constants
	Apply ApplyFunc // nil means load and persist decay only
	Reply chan Result
}

// Result is the outcome of a Mutation. State is the persisted state on
// success and the unchanged stored state when Err is set.
type Result struct {
	State petstate.PetState
	Err   error
}

// NewMutation builds a mutation with a buffered reply channel so the writer
// never blocks on a caller that gave up.
func NewMutation(id, kind string, apply ApplyFunc) Mutation {
	return Mutation{
		ID:    id,
		Kind:  kind,
		Apply: apply,
		Reply: make(chan Result, 1),
	}
}

type requestIDKey struct{}

// WithRequestID stores the request id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
