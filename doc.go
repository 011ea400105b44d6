// Package dpool provides a dedicated, fixed-identity worker pool for
// short-running, synchronous units of work.
//
// Unlike an elastic goroutine pool, dpool owns a bounded population of
// long-lived worker goroutines between MinThreads and MaxThreads and
// schedules work across them with a two-tier queue: a per-worker
// Chase-Lev work-stealing deque for locality, and a shared injection
// queue for work submitted from outside the pool. Workers that run out
// of local work steal from their peers before parking on an unfair
// semaphore tuned to wake cache-hot spinners ahead of kernel-blocked
// waiters.
//
// # Quick start
//
//	p, err := dpool.NewPool(dpool.Settings{
//	    MinThreads:    4,
//	    MaxThreads:    16,
//	    ThreadTimeout: 2 * time.Second,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Dispose()
//
//	err = p.Submit(dpool.RunnableFunc(func() {
//	    fmt.Println("hello from the pool")
//	}))
//
// # Submission paths
//
// Submit pushes onto the caller's own local deque when the caller is
// itself a worker of this pool (fork/join), and onto the shared
// injection queue otherwise. SubmitGlobal always goes through the
// injection queue, bypassing locality in favor of global visibility.
//
// # What this package does not do
//
// dpool does not implement futures, cancellation of individual work
// items, dynamic hill-climbing of pool size, work-item priorities, or
// persistence of queued work. Logging and panic policy are injectable
// collaborators (see Settings.Logger, Settings.PanicPolicy); dpool does
// not ship a metrics exporter.
package dpool
