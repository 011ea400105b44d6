package dpool

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Pool is a dedicated, fixed-identity worker pool: it owns a bounded
// population of long-lived worker goroutines between Settings.MinThreads
// and Settings.MaxThreads and schedules Runnables across them with the
// two-tier queue described in spec.md §2. Grounded in flock's Pool
// (NewPool, goroutine-per-worker, sync.WaitGroup join), generalized to
// the semaphore-driven activation protocol and MinThreads/MaxThreads/
// ThreadTimeout lifecycle spec.md §4.7 specifies.
type Pool struct {
	id       uint64
	settings Settings

	sem       *UnfairSemaphore
	registry  *DequeRegistry[Runnable]
	workQueue *WorkQueue

	mu          sync.Mutex
	workers     []*Worker
	liveWorkers atomic.Int32
	nextWorker  int

	shutdown atomic.Bool
	faulted  atomic.Bool
	wg       sync.WaitGroup

	metrics poolMetrics
}

type poolMetrics struct {
	submitted uint64
	completed uint64
	panicked  uint64
}

// NewPool validates settings and starts MinThreads workers.
func NewPool(settings Settings) (*Pool, error) {
	settings = settings.withDefaults()
	if err := settings.validate(); err != nil {
		return nil, err
	}

	sem := NewUnfairSemaphore()
	registry := NewDequeRegistry[Runnable]()

	p := &Pool{
		id:        nextPoolID(),
		settings:  settings,
		sem:       sem,
		registry:  registry,
		workQueue: NewWorkQueue(sem, registry),
	}

	for i := 0; i < settings.MinThreads; i++ {
		p.spawnWorker()
	}

	return p, nil
}

func (p *Pool) spawnWorker() {
	p.mu.Lock()
	id := p.nextWorker
	p.nextWorker++
	w := newWorker(id, p)
	p.workers = append(p.workers, w)
	p.mu.Unlock()

	p.liveWorkers.Add(1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		w.run()
	}()
}

// Submit enqueues r for execution. If the caller is itself a worker
// goroutine of this pool, r is pushed onto the caller's local deque
// (fork/join fast path); otherwise it goes to the shared injection
// queue. Returns ErrShutdown once Dispose has been called and
// ErrNilRunnable for a nil r.
func (p *Pool) Submit(r Runnable) error {
	return p.submit(r, false)
}

// SubmitGlobal always enqueues r on the shared injection queue, even
// when the caller is a worker of this pool, bypassing locality in
// favor of global visibility (spec.md §4.6's force_global=true path).
func (p *Pool) SubmitGlobal(r Runnable) error {
	return p.submit(r, true)
}

func (p *Pool) submit(r Runnable, forceGlobal bool) error {
	if r == nil {
		return ErrNilRunnable
	}
	if p.isShutdown() {
		return ErrShutdown
	}

	atomic.AddUint64(&p.metrics.submitted, 1)

	local := callerWorkerLocal(p.id)
	var deque *Deque[Runnable]
	if local != nil {
		deque = local.deque
	}
	p.workQueue.Enqueue(r, deque, forceGlobal)
	p.maybeInjectWorker()

	return nil
}

// maybeInjectWorker spawns one additional worker, up to MaxThreads,
// when the pool has no idle capacity to absorb the item that was just
// enqueued (no spinner or kernel-waiter is currently parked). This is
// the bounded worker-injection spec.md §1 keeps in scope while putting
// the smarter, history-based hill-climbing heuristic for *how
// aggressively* to inject out of scope: injection here is a single
// threshold check, not a tuned controller.
func (p *Pool) maybeInjectWorker() {
	if int(p.liveWorkers.Load()) >= p.settings.MaxThreads {
		return
	}
	if p.sem.Spinners() > 0 || p.sem.Waiters() > 0 {
		return
	}

	if int(p.liveWorkers.Load()) >= p.settings.MaxThreads {
		return
	}

	p.spawnWorker()
}

func (p *Pool) isShutdown() bool {
	return p.shutdown.Load()
}

// transferLocalWork drains an exiting worker's deque onto the shared
// injection queue so nothing pushed locally is lost (spec.md §9's
// "cleanup on worker exit" note).
func (p *Pool) transferLocalWork(d *Deque[Runnable]) {
	for {
		item, status := d.PopBottom()
		if status != StatusSuccess {
			return
		}
		p.workQueue.global.Enqueue(item)
	}
}

// execute runs r with the configured PanicPolicy, mirroring flock's
// executeTask recover() pattern.
func (p *Pool) execute(workerID int, r Runnable) {
	defer func() {
		if rec := recover(); rec != nil {
			atomic.AddUint64(&p.metrics.panicked, 1)
			p.settings.Logger.Error("worker recovered panic",
				zap.Int("worker", workerID),
				zap.Any("panic", rec),
			)
			if p.settings.PanicPolicy == PanicFatal {
				p.faulted.Store(true)
				p.shutdown.Store(true)
			}
		}
		atomic.AddUint64(&p.metrics.completed, 1)
	}()

	r.Run()
}

// Dispose is idempotent shutdown: it stops accepting new submissions,
// wakes every worker so each can drain its own local deque and the
// shared injection queue to empty, then blocks until all workers have
// exited (spec.md §4.7/§9's drain-and-join policy).
func (p *Pool) Dispose() {
	if !p.shutdown.CompareAndSwap(false, true) {
		p.wg.Wait()
		return
	}

	p.mu.Lock()
	n := len(p.workers)
	p.mu.Unlock()

	// Release enough to wake every worker currently parked, whether
	// spinning or kernel-blocked; workers observe the shutdown flag
	// on next wake and drain before exiting.
	p.sem.Release(n)

	p.wg.Wait()
}

// Faulted reports whether a PanicFatal Runnable has tripped the pool
// into its faulted, shut-down state.
func (p *Pool) Faulted() bool {
	return p.faulted.Load()
}
