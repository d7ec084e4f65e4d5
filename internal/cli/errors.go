package cli

import (
	"errors"
	"fmt"
)

// ErrUnexpectedResponse reports a reply the client could not decode.
var ErrUnexpectedResponse = errors.New("unexpected response")

// APIError is a non-2xx reply from the service.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("service returned %d", e.Status)
	}
	return fmt.Sprintf("service returned %d %s: %s", e.Status, e.Code, e.Message)
}
