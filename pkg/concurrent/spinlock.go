package concurrent

import (
	"runtime"
	"sync/atomic"
)

// SpinLock is a CAS-based lock for the handful of short critical sections
// the spec calls out (per-round quotient-graph metadata, §4.6) where a
// full sync.Mutex's goroutine parking overhead is unwarranted.
type SpinLock struct {
	held atomic.Bool
}

// Lock spins until it acquires the lock.
func (s *SpinLock) Lock() {
	for !s.held.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

// Unlock releases the lock.
func (s *SpinLock) Unlock() {
	s.held.Store(false)
}

// TryLock attempts to acquire the lock without spinning.
func (s *SpinLock) TryLock() bool {
	return s.held.CompareAndSwap(false, true)
}
