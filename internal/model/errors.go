package model

import "fmt"

// RelayError is a failure reported by the relay itself, as opposed to a
// transport failure on the way to it.
type RelayError struct {
	StatusCode int
	Detail     string
}

func (e *RelayError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("Status: %d", e.StatusCode)
	}
	return e.Detail
}
