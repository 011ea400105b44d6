package dpool

import (
	"runtime"
	"time"

	"go.uber.org/zap"
)

// PanicPolicy decides what happens when a Runnable panics. See
// spec.md §7's WorkerFault discussion.
type PanicPolicy int

const (
	// PanicLogAndContinue recovers the panic, logs it, and lets the
	// worker keep dispatching. This is the default, mirroring flock's
	// executeTask recover()+optional PanicHandler behavior.
	PanicLogAndContinue PanicPolicy = iota

	// PanicFatal recovers the panic, logs it, and marks the pool
	// faulted: further Submit/SubmitGlobal calls return ErrShutdown,
	// and each worker drains the remaining queued work and exits at its
	// next wake. Dispose must still be called to wait for the workers.
	PanicFatal
)

// DispatchQuantumMs is the wall-clock budget, in milliseconds, a
// worker spends inside a single dispatch() call before yielding back
// to its outer loop (spec.md §4.6, §6).
const DispatchQuantumMs = 30

// Settings configures a Pool. Use NewPool to construct a validated
// Pool from a Settings value; the zero Settings is not valid on its
// own (MaxThreads must be >= 1).
type Settings struct {
	// MinThreads is the number of workers kept alive even when idle.
	// Defaults to runtime.NumCPU() if zero.
	MinThreads int

	// MaxThreads bounds how many workers may exist concurrently. Must
	// be >= 1 and >= MinThreads.
	MaxThreads int

	// ThreadTimeout is how long an idle worker above MinThreads waits
	// on the semaphore before exiting. Must be > 0. Defaults to 2s.
	ThreadTimeout time.Duration

	// Name prefixes log fields identifying this pool; purely cosmetic.
	Name string

	// ThreadStackSize is accepted for interface parity with the
	// original spec's settings struct but is a no-op: Go goroutines
	// use small, growable stacks and do not take a fixed stack size
	// at creation.
	ThreadStackSize int

	// Logger receives structured lifecycle events (worker start/stop,
	// idle-timeout exits, recovered panics). Defaults to a no-op
	// logger if nil.
	Logger *zap.Logger

	// PanicPolicy controls what happens when a Runnable panics.
	PanicPolicy PanicPolicy

	// PinWorkerThreads locks each worker goroutine to its OS thread for
	// the goroutine's lifetime (runtime.LockOSThread), matching flock's
	// PinWorkerThreads knob. Improves cache locality for the deque's
	// hot fields at the cost of flexibility for the Go scheduler.
	PinWorkerThreads bool

	// OnWorkerStart, if set, is called on a worker's own goroutine
	// immediately after it registers its deque, before it services any
	// work. Useful for per-worker initialization or tracing.
	OnWorkerStart func(workerID int)

	// OnWorkerStop, if set, is called on a worker's own goroutine after
	// it has drained its local work and unregistered its deque, right
	// before the goroutine returns.
	OnWorkerStop func(workerID int)
}

// dispatchQuantum returns the wall-clock budget a worker spends inside
// a single Dispatch call, per DispatchQuantumMs.
func (s Settings) dispatchQuantum() time.Duration {
	return DispatchQuantumMs * time.Millisecond
}

func (s Settings) withDefaults() Settings {
	if s.MinThreads == 0 {
		s.MinThreads = runtime.NumCPU()
	}
	if s.MaxThreads == 0 {
		s.MaxThreads = runtime.NumCPU() * 4
	}
	if s.ThreadTimeout <= 0 {
		s.ThreadTimeout = 2 * time.Second
	}
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	if s.Name == "" {
		s.Name = "dpool"
	}
	return s
}

func (s Settings) validate() error {
	if s.MaxThreads < 1 {
		return errInvalidSettings("MaxThreads must be >= 1")
	}
	if s.MinThreads < 0 {
		return errInvalidSettings("MinThreads must be >= 0")
	}
	if s.MinThreads > s.MaxThreads {
		return errInvalidSettings("MinThreads must be <= MaxThreads")
	}
	if s.ThreadTimeout <= 0 {
		return errInvalidSettings("ThreadTimeout must be > 0")
	}
	return nil
}
