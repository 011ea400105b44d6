package dpool

import (
	"sync/atomic"
)

// InjectionQueue is the pool's shared multi-producer multi-consumer
// FIFO, used by submitters that are not themselves pool workers and by
// workers spilling local work on exit. It is unbounded: rather than a
// fixed-size ring that must reject or grow-by-copy under contention
// (the race-prone path a naive port of flock's bounded MPSC ring would
// need), it is a Michael & Scott lock-free linked queue — the
// degenerate, single-item-per-node case of the segment-chain idea in
// azargarov-wpool's segmentedQ, simplified to the textbook algorithm
// since this queue does not need wpool's batch-pop/segment-recycling
// machinery to meet spec.md §4.3's plain "oldest item or empty"
// contract.
type InjectionQueue[T any] struct {
	_ CacheLinePad

	head atomic.Pointer[injectionNode[T]]

	_ CacheLinePad

	tail atomic.Pointer[injectionNode[T]]

	_ CacheLinePad

	length atomic.Int64
}

type injectionNode[T any] struct {
	value T
	next  atomic.Pointer[injectionNode[T]]
}

// NewInjectionQueue creates an empty injection queue.
func NewInjectionQueue[T any]() *InjectionQueue[T] {
	dummy := &injectionNode[T]{}
	q := &InjectionQueue[T]{}
	q.head.Store(dummy)
	q.tail.Store(dummy)
	return q
}

// Enqueue adds an item to the tail of the queue. Safe for any number
// of concurrent producers.
func (q *InjectionQueue[T]) Enqueue(item T) {
	n := &injectionNode[T]{value: item}
	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if next == nil {
			if tail.next.CompareAndSwap(nil, n) {
				q.tail.CompareAndSwap(tail, n)
				q.length.Add(1)
				return
			}
		} else {
			// Tail lagged behind a completed enqueue; help advance it.
			q.tail.CompareAndSwap(tail, next)
		}
	}
}

// TryDequeue removes and returns the oldest item. ok is false if the
// queue is currently empty. Safe for any number of concurrent
// consumers.
func (q *InjectionQueue[T]) TryDequeue() (item T, ok bool) {
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		next := head.next.Load()

		if head == tail {
			if next == nil {
				var zero T
				return zero, false
			}
			// Tail lagged; help advance it and retry.
			q.tail.CompareAndSwap(tail, next)
			continue
		}

		if q.head.CompareAndSwap(head, next) {
			item = next.value
			q.length.Add(-1)
			return item, true
		}
	}
}

// Size returns a snapshot of the queue's current length. May be stale
// immediately under concurrent access.
func (q *InjectionQueue[T]) Size() int64 {
	n := q.length.Load()
	if n < 0 {
		return 0
	}
	return n
}

// IsEmpty reports whether the queue appears empty.
func (q *InjectionQueue[T]) IsEmpty() bool {
	return q.Size() == 0
}
