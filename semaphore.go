package dpool

import (
	"math"
	"runtime"
	"sync/atomic"
	"time"
)

// MaxWorkerCount bounds every counter packed into the semaphore's
// state word: spinners, countForSpinners, waiters, and countForWaiters
// must each stay within [0, MaxWorkerCount].
const MaxWorkerCount = 0x7FFF

// SpinLimitPerProcessor is the base number of spin iterations a
// spinner takes before demoting itself to a blocked waiter, divided by
// the current spinner-to-processor ratio (spec.md §4.5).
const SpinLimitPerProcessor = 50

// semState is the unfair semaphore's packed 64-bit word: four 16-bit
// counters mutated only via CompareAndSwap on the whole word, never
// through language-level bitfields (spec.md §9).
type semState uint64

const (
	semShift16 = 16
	semMask16  = 0xFFFF
)

func packSemState(spinners, countForSpinners, waiters, countForWaiters uint16) semState {
	return semState(spinners) |
		semState(countForSpinners)<<semShift16 |
		semState(waiters)<<(2*semShift16) |
		semState(countForWaiters)<<(3*semShift16)
}

func (s semState) spinners() uint16         { return uint16(s & semMask16) }
func (s semState) countForSpinners() uint16 { return uint16((s >> semShift16) & semMask16) }
func (s semState) waiters() uint16          { return uint16((s >> (2 * semShift16)) & semMask16) }
func (s semState) countForWaiters() uint16  { return uint16((s >> (3 * semShift16)) & semMask16) }

func (s semState) withSpinners(v uint16) semState {
	return packSemState(v, s.countForSpinners(), s.waiters(), s.countForWaiters())
}
func (s semState) withCountForSpinners(v uint16) semState {
	return packSemState(s.spinners(), v, s.waiters(), s.countForWaiters())
}
func (s semState) withWaiters(v uint16) semState {
	return packSemState(s.spinners(), s.countForSpinners(), v, s.countForWaiters())
}
func (s semState) withCountForWaiters(v uint16) semState {
	return packSemState(s.spinners(), s.countForSpinners(), s.waiters(), v)
}

// valid enforces the per-counter and cross-counter bounds spec.md §3
// requires of every successfully CAS'd state. A violation here is a
// programming error in the semaphore's own transitions, not something
// a caller can trigger.
func (s semState) valid() bool {
	if s.spinners() > MaxWorkerCount || s.countForSpinners() > MaxWorkerCount ||
		s.waiters() > MaxWorkerCount || s.countForWaiters() > MaxWorkerCount {
		return false
	}
	return int(s.countForSpinners())+int(s.countForWaiters()) <= MaxWorkerCount
}

// UnfairSemaphore is a throttling gate tuned for a bounded population
// of frequently-waking goroutines. It prefers releasing a cache-hot
// spinner over waking a kernel-blocked waiter, trading strict fairness
// for lower wake latency and fewer scheduler transitions — exactly the
// tradeoff spec.md §4.5 describes for the dispatch loop's parking
// point.
//
// No library in the retrieval pack implements this primitive (the
// closest analogues — flock's sync.Cond parking, the pack's various
// channel-based semaphores — are all fair, FIFO wake order). The
// packed state is pure sync/atomic; the blocking tier is a buffered
// channel, which is the idiomatic Go stand-in for an OS-level counting
// semaphore (channel sends/receives are themselves implemented over
// the runtime's internal semaphore).
type UnfairSemaphore struct {
	state  atomic.Uint64
	kernel chan struct{}
	procs  int

	releaseCalls atomic.Int64
}

// NewUnfairSemaphore creates a semaphore with no spinners or waiters.
func NewUnfairSemaphore() *UnfairSemaphore {
	return &UnfairSemaphore{
		kernel: make(chan struct{}, MaxWorkerCount),
		procs:  runtime.NumCPU(),
	}
}

func (s *UnfairSemaphore) load() semState {
	return semState(s.state.Load())
}

func (s *UnfairSemaphore) cas(old, next semState) bool {
	if !next.valid() {
		panic("dpool: unfair semaphore invariant violated")
	}
	return s.state.CompareAndSwap(uint64(old), uint64(next))
}

// Wait blocks until a unit is available or timeout elapses, returning
// true if acquired. A non-positive timeout means "wait forever".
func (s *UnfairSemaphore) Wait(timeout time.Duration) bool {
	// Phase 1: try to enter without spinning at all.
	for {
		cur := s.load()
		if cur.countForSpinners() > 0 {
			next := cur.withCountForSpinners(cur.countForSpinners() - 1)
			if s.cas(cur, next) {
				return true
			}
			continue
		}
		next := cur.withSpinners(cur.spinners() + 1)
		if s.cas(cur, next) {
			break
		}
	}

	// Phase 2: spin, checking for a credited release on every pass.
	numSpins := 0
	for {
		cur := s.load()
		if cur.countForSpinners() > 0 {
			next := cur.withCountForSpinners(cur.countForSpinners() - 1).withSpinners(cur.spinners() - 1)
			if s.cas(cur, next) {
				return true
			}
			continue
		}

		spinners := int(cur.spinners())
		ratio := spinners / s.procs
		if ratio < 1 {
			ratio = 1
		}
		spinLimit := int(math.Round(float64(SpinLimitPerProcessor) / float64(ratio)))

		if numSpins >= spinLimit {
			next := cur.withSpinners(cur.spinners() - 1).withWaiters(cur.waiters() + 1)
			if s.cas(cur, next) {
				break
			}
			continue
		}

		runtime.Gosched()
		numSpins++
	}

	// Phase 3: block on the kernel semaphore.
	acquired := s.blockOn(timeout)
	for {
		cur := s.load()
		next := cur.withWaiters(cur.waiters() - 1)
		if acquired {
			next = next.withCountForWaiters(next.countForWaiters() - 1)
		}
		if s.cas(cur, next) {
			return acquired
		}
	}
}

func (s *UnfairSemaphore) blockOn(timeout time.Duration) bool {
	if timeout <= 0 {
		<-s.kernel
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.kernel:
		return true
	case <-timer.C:
		return false
	}
}

// Release wakes up to n waiting goroutines, preferring spinners over
// kernel-blocked waiters, and banking any surplus as credit for future
// spinners (spec.md §4.5). n should be small and positive; Release is
// a no-op for n <= 0.
func (s *UnfairSemaphore) Release(n int) {
	if n <= 0 {
		return
	}
	s.releaseCalls.Add(1)

	var waitersToRelease int
	for {
		cur := s.load()

		spinnersAvailable := int(cur.spinners()) - int(cur.countForSpinners())
		spinnersToRelease := clamp(0, n, spinnersAvailable)

		waitersAvailable := int(cur.waiters()) - int(cur.countForWaiters())
		waitersToRelease = clamp(0, n-spinnersToRelease, waitersAvailable)

		remaining := n - spinnersToRelease - waitersToRelease

		next := cur.
			withCountForSpinners(cur.countForSpinners() + uint16(spinnersToRelease) + uint16(remaining)).
			withCountForWaiters(cur.countForWaiters() + uint16(waitersToRelease))

		if s.cas(cur, next) {
			break
		}
	}

	for i := 0; i < waitersToRelease; i++ {
		s.kernel <- struct{}{}
	}
}

// Spinners returns a snapshot of the current spinner count, for Stats.
func (s *UnfairSemaphore) Spinners() int { return int(s.load().spinners()) }

// Waiters returns a snapshot of the current waiter count, for Stats.
func (s *UnfairSemaphore) Waiters() int { return int(s.load().waiters()) }

// ReleaseCalls returns the number of times Release has actually run
// (n > 0), for tests asserting no-thundering-herd behavior.
func (s *UnfairSemaphore) ReleaseCalls() int64 { return s.releaseCalls.Load() }

func clamp(lo, hi, v int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
