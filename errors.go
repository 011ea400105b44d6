package dpool

import "fmt"

// Sentinel errors returned by the pool's public surface.
var (
	// ErrShutdown is returned by Submit/SubmitGlobal once Dispose has
	// been called. Shutdown is one-way; a disposed pool cannot be
	// reopened.
	ErrShutdown = &PoolError{msg: "pool is shut down"}

	// ErrNilRunnable is returned when Submit/SubmitGlobal is called
	// with a nil Runnable.
	ErrNilRunnable = &PoolError{msg: "runnable is nil"}
)

// PoolError wraps an error originating from the pool's own lifecycle
// or configuration, distinguishing it from errors raised by user work
// items (which never escape Run, see PanicPolicy in config.go).
type PoolError struct {
	msg string
	err error
}

func (e *PoolError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("dpool: %s: %v", e.msg, e.err)
	}
	return fmt.Sprintf("dpool: %s", e.msg)
}

func (e *PoolError) Unwrap() error {
	return e.err
}

func errInvalidSettings(msg string) error {
	return &PoolError{msg: "invalid settings: " + msg}
}
