package dpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Property 5: release(k) eventually unblocks at least k waiters.
func TestUnfairSemaphore_ReleaseUnblocksWaiters(t *testing.T) {
	s := NewUnfairSemaphore()
	const k = 4

	var wg sync.WaitGroup
	var acquired atomic.Int32
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Wait(time.Second) {
				acquired.Add(1)
			}
		}()
	}

	// Give the goroutines a moment to reach the semaphore.
	time.Sleep(20 * time.Millisecond)
	s.Release(k)
	wg.Wait()

	require.EqualValues(t, k, acquired.Load())
}

// Property 6: the packed state's invariants hold after every
// successful transition. cas panics when valid() rejects the new
// state, so simply exercising Wait/Release under load is itself the
// assertion.
func TestUnfairSemaphore_InvariantsHoldUnderLoad(t *testing.T) {
	s := NewUnfairSemaphore()
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Wait(50 * time.Millisecond)
		}()
	}
	for i := 0; i < n; i++ {
		s.Release(1)
	}
	wg.Wait()

	st := s.load()
	require.True(t, st.valid())
}

// Property 7: n producers releasing 1, n consumers waiting; every
// consumer returns true exactly once, no wakeups lost.
func TestUnfairSemaphore_NProducersNConsumersNoLostWakeups(t *testing.T) {
	s := NewUnfairSemaphore()
	const n = 32

	var wg sync.WaitGroup
	var acquired atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Wait(2 * time.Second) {
				acquired.Add(1)
			}
		}()
	}
	for i := 0; i < n; i++ {
		go s.Release(1)
	}
	wg.Wait()

	require.EqualValues(t, n, acquired.Load())
}

// Scenario S6: with four goroutines parked and a single release(1), the
// released goroutine returns fast, and releasing more than there are
// waiters never deadlocks — surplus is banked as countForSpinners
// credit. By the time Release runs the goroutines have used up their
// spin budget and are blocked as waiters, so this exercises the
// kernel-wake path rather than the spinner path.
func TestUnfairSemaphore_ReleaseWakesPromptlyAndBanksSurplusCredit(t *testing.T) {
	s := NewUnfairSemaphore()

	start := make(chan struct{})
	results := make(chan time.Duration, 4)
	for i := 0; i < 4; i++ {
		go func() {
			<-start
			t0 := time.Now()
			s.Wait(2 * time.Second)
			results <- time.Since(t0)
		}()
	}
	close(start)
	time.Sleep(10 * time.Millisecond) // let all 4 spin out and block

	s.Release(1)
	elapsed := <-results
	require.Less(t, elapsed, 200*time.Millisecond, "released waiter should return quickly")

	// Releasing more than the remaining population needs must not
	// deadlock or violate invariants; surplus banks for future spinners.
	s.Release(10)
	for i := 0; i < 3; i++ {
		<-results
	}

	require.True(t, s.load().valid())
}
