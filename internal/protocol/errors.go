package protocol

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested protocol name has no matching
// document. It is the only fatal failure mode of Execute and is surfaced
// unwrapped in meaning: errors.Is(err, ErrNotFound) holds on every path.
var ErrNotFound = errors.New("protocol not found")

// NotFoundError wraps ErrNotFound with the requested name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("protocol %q not found", e.Name)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }
