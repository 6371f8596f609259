package daemon

import (
	"fmt"
	"time"
)

// ErrLockTimeout is returned by TimedMutex.Lock when the mutex could not be
// acquired within the given timeout. Handlers treat this the way spec.md §7
// describes a Timeout error on a control-plane mutex: log it and return a
// safe default rather than corrupting state.
var ErrLockTimeout = fmt.Errorf("dake: lock acquisition timed out")

// ControlPlaneTimeout is the default timeout every control-plane mutex uses
// (spec.md §4.3, §9 "Lock-timeout uniformity"). Target locks are the one
// exception: they wait on the notifier hub instead and may block
// indefinitely (a build can legitimately take hours).
const ControlPlaneTimeout = 5 * time.Second

// TimedMutex is a mutual-exclusion primitive whose Lock takes a timeout
// instead of blocking forever, so every acquisition of State's process
// table, id database and target-lock set goes through the same combinator
// (spec.md §9). NotifierHub does not use it.
type TimedMutex struct {
	ch chan struct{}
}

// NewTimedMutex returns an unlocked TimedMutex.
func NewTimedMutex() *TimedMutex {
	m := &TimedMutex{ch: make(chan struct{}, 1)}
	m.ch <- struct{}{}
	return m
}

// Lock blocks until the mutex is acquired or timeout elapses, in which case
// it returns ErrLockTimeout. On success the caller must call the returned
// unlock func exactly once.
func (m *TimedMutex) Lock(timeout time.Duration) (unlock func(), err error) {
	select {
	case <-m.ch:
		return func() { m.ch <- struct{}{} }, nil
	case <-time.After(timeout):
		return nil, ErrLockTimeout
	}
}
