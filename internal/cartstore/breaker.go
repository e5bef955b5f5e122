package cartstore

import "sync/atomic"

// DefaultFailureThreshold is the number of consecutive failed remote calls
// that opens the breaker.
const DefaultFailureThreshold = 3

// breaker counts consecutive failures and latches open at the threshold.
// There is no half-open state: once open it stays open for the life of the
// owning store.
type breaker struct {
	threshold int32
	failures  atomic.Int32
	open      atomic.Bool
}

func newBreaker(threshold int) *breaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	return &breaker{threshold: int32(threshold)}
}

func (b *breaker) Open() bool { return b.open.Load() }

func (b *breaker) Success() {
	if !b.open.Load() {
		b.failures.Store(0)
	}
}

// Failure records a failed call. tripped is true only for the call that
// opened the breaker.
func (b *breaker) Failure() (consecutive int32, tripped bool) {
	n := b.failures.Add(1)
	if n >= b.threshold && b.open.CompareAndSwap(false, true) {
		return n, true
	}
	return n, false
}
