package dpool

// LogInitialSize is the log2 of the deque's initial backing capacity
// (16 → 65536 slots), matching the constant flock documents for its
// own MPSC ring and the value spec.md §6 requires for behavioral
// compatibility.
const LogInitialSize = 16

// circularArray is the power-of-two backing store behind a Deque. It is
// immutable once published: grow and shrink produce a fresh array and
// leave the old one for the GC, never mutating capacity in place.
type circularArray[T any] struct {
	logSize int64
	buffer  []T
}

func newCircularArray[T any](logSize int64) *circularArray[T] {
	if logSize < 1 {
		logSize = 1
	}
	return &circularArray[T]{
		logSize: logSize,
		buffer:  make([]T, int64(1)<<logSize),
	}
}

func (a *circularArray[T]) size() int64 {
	return int64(1) << a.logSize
}

// get returns the element stored at index i, wrapped modulo the
// array's size via a bitmask (size is always a power of two).
func (a *circularArray[T]) get(i int64) T {
	return a.buffer[i&(a.size()-1)]
}

// set stores v at index i, wrapped modulo the array's size.
func (a *circularArray[T]) set(i int64, v T) {
	a.buffer[i&(a.size()-1)] = v
}

// grow returns a new array with double the capacity, copying the live
// window [t, b) across.
func (a *circularArray[T]) grow(b, t int64) *circularArray[T] {
	next := newCircularArray[T](a.logSize + 1)
	for i := t; i < b; i++ {
		next.set(i, a.get(i))
	}
	return next
}

// shrink returns a new array with half the capacity, copying the live
// window [t, b) across. The caller must ensure b-t fits the smaller
// array; shrink does not itself check that invariant beyond what the
// caller already verified.
func (a *circularArray[T]) shrink(b, t int64) *circularArray[T] {
	next := newCircularArray[T](a.logSize - 1)
	for i := t; i < b; i++ {
		next.set(i, a.get(i))
	}
	return next
}
