package library

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreachable covers transport failures, non-2xx search responses and
	// search bodies that cannot be decoded.
	ErrUnreachable = errors.New("library service unreachable")

	// ErrRejected means the service answered a create with something other
	// than 201 Created.
	ErrRejected = errors.New("library service rejected request")
)

// StatusError carries the HTTP status of a failed call. It unwraps to
// ErrUnreachable for searches and ErrRejected for creates.
type StatusError struct {
	Service    string
	Op         string
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %v", e.Service, e.Op, e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }
