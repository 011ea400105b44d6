package dpool

// CacheLinePad prevents false sharing between hot fields that sit next
// to each other in a struct but are written by different goroutines
// (e.g. a deque's top and bottom indices).
type CacheLinePad struct {
	_ [64]byte
}
