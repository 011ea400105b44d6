package dpool

import "sync/atomic"

// Stats is a lock-free snapshot of pool activity, in flock's Stats
// style (plain counters, no exporter, no time series — the "metrics"
// collaborator spec.md §1 puts out of scope is a registry/exporter
// system, not this struct). Extended relative to flock with the
// semaphore's spinner/waiter counts and the pool's live worker
// count, since those are the two new sources of contention this
// design introduces.
type Stats struct {
	// Submitted is the total number of Runnables submitted since the
	// pool was created.
	Submitted uint64

	// Completed is the total number of Runnables that finished
	// executing, whether or not they panicked.
	Completed uint64

	// Panicked is the total number of Runnables whose Run() panicked
	// and was recovered by the pool.
	Panicked uint64

	// NumWorkers is the number of currently live worker goroutines,
	// between Settings.MinThreads and Settings.MaxThreads.
	NumWorkers int

	// Spinners is a snapshot of the unfair semaphore's spinner count.
	Spinners int

	// Waiters is a snapshot of the unfair semaphore's kernel-blocked
	// waiter count.
	Waiters int

	// InjectionQueueDepth is a snapshot of the shared injection
	// queue's length.
	InjectionQueueDepth int64

	// StealSuccesses is the total number of Runnables a worker took
	// from another worker's deque via Steal.
	StealSuccesses uint64

	// Faulted reports whether a PanicFatal Runnable has tripped the
	// pool into its faulted state.
	Faulted bool
}

// Stats returns a snapshot of pool activity. Values may be slightly
// inconsistent under concurrent load, same caveat as flock's Stats().
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted:           atomic.LoadUint64(&p.metrics.submitted),
		Completed:           atomic.LoadUint64(&p.metrics.completed),
		Panicked:            atomic.LoadUint64(&p.metrics.panicked),
		NumWorkers:          int(p.liveWorkers.Load()),
		Spinners:            p.sem.Spinners(),
		Waiters:             p.sem.Waiters(),
		InjectionQueueDepth: p.workQueue.global.Size(),
		StealSuccesses:      p.workQueue.StealSuccesses(),
		Faulted:             p.faulted.Load(),
	}
}
