package repository

import "errors"

// Sentinel kinds for state store errors.
var (
	ErrNotFound      = errors.New("pet state not found")
	ErrUnknownDriver = errors.New("unknown store driver")
	ErrClosed        = errors.New("store closed")
)
