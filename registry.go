package dpool

import "sync/atomic"

// DequeRegistry is a copy-on-write array of registered worker deques,
// published behind an atomic pointer so stealers can take a stable
// snapshot without ever observing a torn array. register/unregister
// build a new array and CAS the pointer until they win; flock has no
// equivalent (its worker slice is fixed at pool construction), so this
// is new code, but the copy-on-write-behind-a-pointer shape matches
// the way flock's own Deque publishes its active *circularArray.
type DequeRegistry[T any] struct {
	entries atomic.Pointer[[]*Deque[T]]
}

// NewDequeRegistry creates an empty registry.
func NewDequeRegistry[T any]() *DequeRegistry[T] {
	r := &DequeRegistry[T]{}
	empty := make([]*Deque[T], 0)
	r.entries.Store(&empty)
	return r
}

// Register adds d to the registry. The correct contract is to place
// the new entry at index len(old) — spec.md §4.4/§9 notes the source
// this design is drawn from instead writes to len(old)+1, leaving
// index len(old) as a zero-valued gap; this implementation does not
// reproduce that bug.
func (r *DequeRegistry[T]) Register(d *Deque[T]) {
	for {
		old := r.entries.Load()
		next := make([]*Deque[T], len(*old)+1)
		copy(next, *old)
		next[len(*old)] = d
		if r.entries.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Unregister removes d from the registry. Removing an entry that is
// not present is a no-op.
func (r *DequeRegistry[T]) Unregister(d *Deque[T]) {
	for {
		old := r.entries.Load()
		idx := -1
		for i, e := range *old {
			if e == d {
				idx = i
				break
			}
		}
		if idx < 0 {
			return
		}
		next := make([]*Deque[T], len(*old)-1)
		copy(next, (*old)[:idx])
		copy(next[idx:], (*old)[idx+1:])
		if r.entries.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Snapshot returns the currently registered deques. The returned slice
// is never mutated in place; callers may iterate it freely even as
// registrations change concurrently.
func (r *DequeRegistry[T]) Snapshot() []*Deque[T] {
	return *r.entries.Load()
}
