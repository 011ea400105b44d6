package dpool

// Runnable is a single unit of work. Run is executed for side effects
// only; its completion (or panic, see Settings.PanicPolicy) is all the
// dispatcher observes. This mirrors spec.md §6's Runnable contract.
type Runnable interface {
	Run()
}

// RunnableFunc adapts a plain closure to the Runnable interface, the
// way flock's pool accepted bare func() values.
type RunnableFunc func()

// Run invokes f.
func (f RunnableFunc) Run() { f() }
