package petstate

import "time"

// Default rule constants.
const (
	defaultDecayThreshold   = 3 * time.Hour
	defaultDecayPerDay      = 10.0
	defaultDecayCap         = 50.0
	defaultLowStatThreshold = 20.0
	defaultNeglectPenalty   = 5.0
	defaultHistoryLimit     = 100
)

// Rules holds the tunable numbers of the engine.
type Rules struct {
	// DecayThreshold is the idle time after which decay applies.
	DecayThreshold time.Duration
	// DecayPerDay is the points lost per 24 idle hours.
	DecayPerDay float64
	// DecayCap bounds the points lost in a single decay.
	DecayCap float64
	// LowStatThreshold marks a vital as neglected.
	LowStatThreshold float64
	// NeglectPenalty is the health lost after an action when the pet is
	// still hungry or dirty.
	NeglectPenalty float64
	// HistoryLimit caps the action history length.
	HistoryLimit int
}

// DefaultRules returns the stock rule set.
func DefaultRules() Rules {
	return Rules{
		DecayThreshold:   defaultDecayThreshold,
		DecayPerDay:      defaultDecayPerDay,
		DecayCap:         defaultDecayCap,
		LowStatThreshold: defaultLowStatThreshold,
		NeglectPenalty:   defaultNeglectPenalty,
		HistoryLimit:     defaultHistoryLimit,
	}
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithHistoryLimit sets the maximum number of history entries kept.
func WithHistoryLimit(limit int) Option {
	return func(e *Engine) {
		if limit > 0 {
			e.rules.HistoryLimit = limit
		}
	}
}
