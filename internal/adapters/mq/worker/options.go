package worker

import (
	"time"

	"github.com/okian/couplepet/pkg/logger"
)

// Option configures a StateWriter.
type Option func(*StateWriter)

// WithName labels the writer in logs.
func WithName(name string) Option {
	return func(w *StateWriter) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger replaces the global logger named after the writer.
func WithLogger(l logger.Logger) Option {
	return func(w *StateWriter) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithClock sets the time source passed to every mutation.
func WithClock(now func() time.Time) Option {
	return func(w *StateWriter) {
		if now != nil {
			w.now = now
		}
	}
}
