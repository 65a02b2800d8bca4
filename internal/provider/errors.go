package provider

import (
	"errors"
	"fmt"
)

// Error is a failed provider call. Message carries the upstream text verbatim.
type Error struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the same call may succeed
func (e *Error) Temporary() bool {
	return e.StatusCode >= 500 || (e.StatusCode == 0 && e.Err != nil)
}

// StatusCode extracts the upstream HTTP status from err, 0 when there is none
func StatusCode(err error) int {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.StatusCode
	}
	return 0
}
