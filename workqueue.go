package dpool

import (
	"sync/atomic"
	"time"
)

// WorkQueue is the two-tier queue spec.md §4.6 describes: a shared
// InjectionQueue for work submitted from outside the pool, plus the
// request-count and thread-request-coalescing bookkeeping that
// decides when to wake another worker. Each worker's own Deque lives
// on its WorkerLocal, not here; WorkQueue only holds what is genuinely
// pool-wide.
//
// Grounded in flock's Pool (tryFastSubmit/Submit round-robins across
// worker queues; this expansion replaces that round-robin with the
// local-deque-or-injection-queue split spec.md §4.6 calls for) and in
// flock's atomic metrics fields for the request-count counters.
type WorkQueue struct {
	global   *InjectionQueue[Runnable]
	registry *DequeRegistry[Runnable]
	sem      *UnfairSemaphore

	numRequestedWorkers     atomic.Int32
	hasOutstandingThreadReq atomic.Bool
	stealSuccesses          atomic.Uint64
}

// NewWorkQueue creates an empty two-tier queue over registry, backed
// by sem for worker activation.
func NewWorkQueue(sem *UnfairSemaphore, registry *DequeRegistry[Runnable]) *WorkQueue {
	return &WorkQueue{
		global:   NewInjectionQueue[Runnable](),
		registry: registry,
		sem:      sem,
	}
}

// Enqueue places item on the caller's local deque when local is
// non-nil and forceGlobal is false (the fork/join fast path); it goes
// to the shared injection queue otherwise. Either way, EnsureThreadRequested
// runs afterward so at least one worker wakes.
func (q *WorkQueue) Enqueue(item Runnable, local *Deque[Runnable], forceGlobal bool) {
	if local != nil && !forceGlobal {
		local.PushBottom(item)
	} else {
		q.global.Enqueue(item)
	}
	q.EnsureThreadRequested()
}

// EnsureThreadRequested coalesces wake-ups: only the CAS winner
// actually bumps the active-request count and releases the semaphore,
// so a burst of concurrent Enqueue calls produces at most one
// outstanding wake request until a worker picks it up and calls
// MarkThreadRequestSatisfied (spec.md §4.6, §9). The paired
// RequestActiveWorker is what TakeActiveRequest, called by the woken
// worker's outer loop, is claiming.
func (q *WorkQueue) EnsureThreadRequested() {
	if q.hasOutstandingThreadReq.CompareAndSwap(false, true) {
		q.RequestActiveWorker()
		q.sem.Release(1)
	}
}

// MarkThreadRequestSatisfied clears the outstanding-request flag. Must
// be called by a worker as soon as it starts dispatching, before it
// does any real work, so a subsequent Enqueue can wake further workers
// (spec.md §9's wake-request-protocol note).
func (q *WorkQueue) MarkThreadRequestSatisfied() {
	q.hasOutstandingThreadReq.Store(false)
}

// RequestActiveWorker bumps the count of workers the dispatch protocol
// still owes a dispatch() call to. Called by EnsureThreadRequested's
// CAS winner, paired with the semaphore release it makes.
func (q *WorkQueue) RequestActiveWorker() {
	q.numRequestedWorkers.Add(1)
}

// TakeActiveRequest attempts to claim one pending activation request.
// Returns true if the caller now owns a slot and should call dispatch
// again without re-waiting on the semaphore.
func (q *WorkQueue) TakeActiveRequest() bool {
	for {
		cur := q.numRequestedWorkers.Load()
		if cur <= 0 {
			return false
		}
		if q.numRequestedWorkers.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

// StealSuccesses returns the total number of successful cross-worker
// steals since the queue was created, for Stats and for scenario S3's
// "observed steal-successes > 0" assertion.
func (q *WorkQueue) StealSuccesses() uint64 {
	return q.stealSuccesses.Load()
}

// Dequeue implements spec.md §4.6's local → global → steal search.
// local must be non-nil: its deque is popped first and its RNG and
// deque drive the steal pass.
func (q *WorkQueue) Dequeue(local *WorkerLocal) (Runnable, Status) {
	if item, status := local.deque.PopBottom(); status == StatusSuccess {
		return item, StatusSuccess
	}

	if item, ok := q.global.TryDequeue(); ok {
		return item, StatusSuccess
	}

	return q.steal(local)
}

// steal walks the registry once starting at a random index, skipping
// self, and returns the first successful steal. An Abort victim is
// skipped for this pass without retry, per spec.md §4.6.
func (q *WorkQueue) steal(local *WorkerLocal) (Runnable, Status) {
	snapshot := q.registry.Snapshot()
	c := len(snapshot)
	if c <= 1 {
		var zero Runnable
		return zero, StatusEmpty
	}

	start := local.rng.intn(c)
	for i := 0; i < c; i++ {
		victim := snapshot[(start+i)%c]
		if victim == local.deque {
			continue
		}
		if item, status := victim.Steal(); status == StatusSuccess {
			q.stealSuccesses.Add(1)
			return item, StatusSuccess
		}
	}

	var zero Runnable
	return zero, StatusEmpty
}

// Dispatch runs spec.md §4.6's dispatch loop for one activation. It
// returns true when the worker did useful work (the caller may then
// take another activation request, or go back to its outer wait if
// none is pending), and false when no work was found at all
// (the worker is surplus and should go back to waiting). quantum
// bounds the wall-clock budget spent inside this call, per §4.6/§6's
// DispatchQuantumMs.
func (q *WorkQueue) Dispatch(local *WorkerLocal, quantum time.Duration, run func(Runnable)) bool {
	q.MarkThreadRequestSatisfied()

	item, ok := q.global.TryDequeue()
	if !ok {
		it, status := q.Dequeue(local)
		if status != StatusSuccess {
			q.EnsureThreadRequested()
			return false
		}
		item = it
	}

	q.EnsureThreadRequested()
	start := time.Now()

	for {
		if item == nil {
			it, status := q.Dequeue(local)
			if status != StatusSuccess {
				q.EnsureThreadRequested()
				return true
			}
			item = it
		}

		run(item)
		item = nil

		if time.Since(start) >= quantum {
			return true
		}
	}
}
