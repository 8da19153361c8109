package resilience

import "errors"

// ErrTimeout is returned when an operation does not finish in time.
var ErrTimeout = errors.New("resilience: operation timed out")
