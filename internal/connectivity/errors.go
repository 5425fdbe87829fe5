package connectivity

import (
	"errors"
	"fmt"
)

// ErrReconnectTimeout is reported when a forced disconnect is not confirmed
// in time. It is recoverable; the reconnect continues with the new settings.
var ErrReconnectTimeout = errors.New("timed out waiting for station disconnect")

// FatalError wraps a radio, interface or server bring-up failure. The
// manager cannot run without a network mode, so these end in a restart.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func fatal(op string, err error) error {
	return &FatalError{Op: op, Err: err}
}

// IsFatal reports whether err is, or wraps, a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
