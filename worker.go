package dpool

import (
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// WorkerLocal is the per-worker state spec.md §3 describes: the
// worker's own deque, its private RNG for steal-victim selection, and
// a back-reference to the owning pool. Exactly one exists per live
// worker; it is created on worker start and torn down (with local
// work transferred to the injection queue) on worker stop.
type WorkerLocal struct {
	id     int
	poolID uint64
	deque  *Deque[Runnable]
	rng    *xorshiftRNG
	pool   *Pool
}

// goroutineLocals maps a running goroutine's numeric id to the
// WorkerLocal it is currently executing as, so Submit can tell whether
// its caller is itself a pool worker (spec.md §9's "thread-local
// worker state"). No library in the retrieval pack offers goroutine-
// local storage — the ecosystem norm is explicit value-passing — so
// this is a minimal registry keyed by the id runtime.Stack reports,
// consulted only on Submit's slow path, never inside the dispatch
// loop itself.
var goroutineLocals sync.Map // map[int64]*WorkerLocal

func currentGoroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// "goroutine 123 [running]:" — the id is the second field.
	line := buf[:n]
	i := 10 // len("goroutine ")
	j := i
	for j < len(line) && line[j] != ' ' {
		j++
	}
	id, err := strconv.ParseInt(string(line[i:j]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}

func bindWorkerLocal(local *WorkerLocal) {
	goroutineLocals.Store(currentGoroutineID(), local)
}

func unbindWorkerLocal() {
	goroutineLocals.Delete(currentGoroutineID())
}

// callerWorkerLocal returns the WorkerLocal for the calling goroutine
// if it is a worker of pool poolID, and nil otherwise — including the
// case where the caller is a worker of a *different* pool, which must
// fall through to that other pool's injection path (spec.md §9).
func callerWorkerLocal(poolID uint64) *WorkerLocal {
	v, ok := goroutineLocals.Load(currentGoroutineID())
	if !ok {
		return nil
	}
	local := v.(*WorkerLocal)
	if local.poolID != poolID {
		return nil
	}
	return local
}

// Worker owns one long-lived goroutine, its registered Deque, and the
// exit-time cleanup spec.md §4.7/§9 requires: transfer remaining local
// items to the injection queue, unregister the deque, then terminate.
// Grounded in flock's Worker (id, pool back-reference, PinWorkerThreads
// hook), generalized to the semaphore-parked outer loop and
// MinThreads/ThreadTimeout exit condition spec.md §4.7 specifies
// instead of flock's fixed worker count.
type Worker struct {
	id    int
	pool  *Pool
	local *WorkerLocal
}

func newWorker(id int, pool *Pool) *Worker {
	return &Worker{
		id:   id,
		pool: pool,
	}
}

// run is the worker's main loop, spec.md §4.7:
//
//	loop:
//	  acquired = semaphore.wait(ThreadTimeout)
//	  if not acquired and count > MinThreads: exit
//	  if acquired: while take_active_request(): dispatch()
func (w *Worker) run() {
	if w.pool.settings.PinWorkerThreads {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	w.local = &WorkerLocal{
		id:     w.id,
		poolID: w.pool.id,
		deque:  NewDeque[Runnable](),
		rng:    newXorshiftRNG(uint32(time.Now().UnixNano()) ^ uint32(w.id)*2654435761),
		pool:   w.pool,
	}
	w.pool.registry.Register(w.local.deque)
	bindWorkerLocal(w.local)

	logger := w.pool.settings.Logger.With(zap.Int("worker", w.id))
	logger.Debug("worker started")

	if w.pool.settings.OnWorkerStart != nil {
		w.pool.settings.OnWorkerStart(w.id)
	}

	// retired is set when the idle-timeout path has already claimed this
	// worker's decrement of liveWorkers.
	retired := false
	defer func() {
		unbindWorkerLocal()
		w.pool.registry.Unregister(w.local.deque)
		w.pool.transferLocalWork(w.local.deque)
		if !retired {
			w.pool.liveWorkers.Add(-1)
		}
		if w.pool.settings.OnWorkerStop != nil {
			w.pool.settings.OnWorkerStop(w.id)
		}
		logger.Debug("worker exited")
	}()

	for {
		if w.pool.isShutdown() {
			w.drainOnShutdown()
			return
		}

		acquired := w.pool.sem.Wait(w.pool.settings.ThreadTimeout)
		if !acquired {
			if w.pool.isShutdown() {
				w.drainOnShutdown()
				return
			}
			if cur := w.pool.liveWorkers.Load(); int(cur) > w.pool.settings.MinThreads &&
				w.pool.liveWorkers.CompareAndSwap(cur, cur-1) {
				retired = true
				logger.Debug("worker idle timeout, exiting")
				return
			}
			continue
		}

		if w.pool.isShutdown() {
			w.drainOnShutdown()
			return
		}

		for w.pool.workQueue.TakeActiveRequest() {
			if !w.pool.workQueue.Dispatch(w.local, w.pool.settings.dispatchQuantum(), w.runOne) {
				break
			}
			// Soften start/stop churn for bursty workloads.
			runtime.Gosched()
		}
	}
}

// runOne executes a single Runnable with the pool's configured panic
// policy, mirroring flock's executeTask recover() pattern.
func (w *Worker) runOne(r Runnable) {
	w.pool.execute(w.id, r)
}

// drainOnShutdown runs every remaining local and injected item to
// completion before the worker exits, implementing the drain-and-join
// Dispose policy (spec.md §9).
func (w *Worker) drainOnShutdown() {
	for {
		item, status := w.pool.workQueue.Dequeue(w.local)
		if status != StatusSuccess {
			return
		}
		w.runOne(item)
	}
}

var poolIDCounter atomic.Uint64

func nextPoolID() uint64 {
	return poolIDCounter.Add(1)
}
