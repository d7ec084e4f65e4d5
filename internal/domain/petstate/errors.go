package petstate

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for this package. These allow errors.Is from callers.
var (
	ErrInvalidPartner = errors.New("invalid partner")
	ErrInvalidRecord  = errors.New("invalid pet record")
)

func invalidPartner(p Partner) error {
	return fmt.Errorf("%w: %q (want %q or %q)", ErrInvalidPartner, string(p), Partner1, Partner2)
}
