package dpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// Property 10: a burst of concurrent enqueues while no thread request
// is outstanding produces exactly one semaphore release, since only
// the CAS winner in EnsureThreadRequested calls Release — no
// thundering herd.
func TestWorkQueue_EnsureThreadRequestedCoalescesWakeups(t *testing.T) {
	sem := NewUnfairSemaphore()
	q := NewWorkQueue(sem, NewDequeRegistry[Runnable]())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.EnsureThreadRequested()
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, sem.ReleaseCalls())
	require.EqualValues(t, 1, q.numRequestedWorkers.Load())
}

func TestWorkQueue_MarkThreadRequestSatisfiedReArmsCoalescing(t *testing.T) {
	sem := NewUnfairSemaphore()
	q := NewWorkQueue(sem, NewDequeRegistry[Runnable]())

	q.EnsureThreadRequested()
	require.EqualValues(t, 1, sem.ReleaseCalls())

	q.EnsureThreadRequested() // still coalesced, flag still set
	require.EqualValues(t, 1, sem.ReleaseCalls())

	q.MarkThreadRequestSatisfied()
	q.EnsureThreadRequested()
	require.EqualValues(t, 2, sem.ReleaseCalls())
}

func TestWorkQueue_TakeActiveRequestConsumesOneAtATime(t *testing.T) {
	sem := NewUnfairSemaphore()
	q := NewWorkQueue(sem, NewDequeRegistry[Runnable]())

	require.False(t, q.TakeActiveRequest())

	q.RequestActiveWorker()
	q.RequestActiveWorker()
	require.True(t, q.TakeActiveRequest())
	require.True(t, q.TakeActiveRequest())
	require.False(t, q.TakeActiveRequest())
}

func TestWorkQueue_DequeuePrefersLocalThenGlobalThenSteal(t *testing.T) {
	sem := NewUnfairSemaphore()
	registry := NewDequeRegistry[Runnable]()
	q := NewWorkQueue(sem, registry)

	owner := &WorkerLocal{deque: NewDeque[Runnable](), rng: newXorshiftRNG(1)}
	other := &WorkerLocal{deque: NewDeque[Runnable](), rng: newXorshiftRNG(2)}
	registry.Register(owner.deque)
	registry.Register(other.deque)

	localItem := RunnableFunc(func() {})
	owner.deque.PushBottom(localItem)

	item, status := q.Dequeue(owner)
	require.Equal(t, StatusSuccess, status)
	require.NotNil(t, item)

	globalItem := RunnableFunc(func() {})
	q.global.Enqueue(globalItem)
	item, status = q.Dequeue(owner)
	require.Equal(t, StatusSuccess, status)
	require.NotNil(t, item)

	stealItem := RunnableFunc(func() {})
	other.deque.PushBottom(stealItem)
	item, status = q.Dequeue(owner)
	require.Equal(t, StatusSuccess, status)
	require.NotNil(t, item)
	require.EqualValues(t, 1, q.StealSuccesses())

	_, status = q.Dequeue(owner)
	require.Equal(t, StatusEmpty, status)
}
