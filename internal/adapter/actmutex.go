package adapter

import (
	"errors"
	"sync"
	"time"
)

// poisonGrace is how long Acquire will wait for a poisoned call to settle
// before rejecting.
const poisonGrace = 500 * time.Millisecond

// ErrBusy is returned while another act() call may still be mutating the
// page. Callers retry later or escalate to a different layer; this is never
// a data-corruption signal.
var ErrBusy = errors.New("adapter busy: act call in flight")

// ActMutex guards one automation adapter whose act() calls cannot be
// cancelled. A caller that times out waiting for a call must Poison the
// mutex with the call's settlement channel; future acquires stay rejected
// until the orphaned call is observed to settle. One ActMutex per adapter
// instance, never shared across adapters or tasks.
type ActMutex struct {
	mu          sync.Mutex
	actInFlight bool
	poisoned    bool
	pending     <-chan struct{}
}

// Acquire admits the caller or returns ErrBusy. If the mutex is poisoned it
// races the orphaned call's settlement against a short grace window: a call
// that settles in time clears the poison and admits the caller.
func (m *ActMutex) Acquire() error {
	m.mu.Lock()
	if m.actInFlight {
		m.mu.Unlock()
		return ErrBusy
	}
	if !m.poisoned {
		m.actInFlight = true
		m.mu.Unlock()
		return nil
	}
	pending := m.pending
	m.mu.Unlock()

	if pending != nil {
		timer := time.NewTimer(poisonGrace)
		defer timer.Stop()
		select {
		case <-pending:
			m.mu.Lock()
			m.poisoned = false
			m.pending = nil
			if m.actInFlight {
				m.mu.Unlock()
				return ErrBusy
			}
			m.actInFlight = true
			m.mu.Unlock()
			return nil
		case <-timer.C:
		}
	}
	return ErrBusy
}

// Release marks the current call finished. Safe to call once per successful
// Acquire.
func (m *ActMutex) Release() {
	m.mu.Lock()
	m.actInFlight = false
	m.mu.Unlock()
}

// Poison records that the caller gave up waiting on the in-flight call.
// pending is closed when the orphaned call finally settles; Acquire and
// Refresh watch it to recover.
func (m *ActMutex) Poison(pending <-chan struct{}) {
	m.mu.Lock()
	m.actInFlight = false
	m.poisoned = true
	m.pending = pending
	m.mu.Unlock()
}

// Refresh performs a non-blocking settle check so a quietly finished
// orphan clears the poison before the next act() path.
func (m *ActMutex) Refresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.poisoned || m.pending == nil {
		return
	}
	select {
	case <-m.pending:
		m.poisoned = false
		m.pending = nil
	default:
	}
}

// Poisoned reports whether a timed-out call may still be running.
func (m *ActMutex) Poisoned() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.poisoned
}
