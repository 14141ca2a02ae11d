// Package timer keeps every delayed callback of a chat console in one arena,
// so reconnect and teardown can cancel them without leaking handles.
package timer

import (
	"time"
)

// Key identifies a timer. Scope groups timers owned by one component,
// ID and Sub form the composite identity inside that scope.
type Key struct {
	Scope string
	ID    string
	Sub   string
}

func (k Key) String() string {
	if k.Sub == "" {
		return k.Scope + "/" + k.ID
	}
	return k.Scope + "/" + k.ID + "/" + k.Sub
}

type entry struct {
	stop Stopper
	gen  uint64
}

// Registry holds named, cancelable delayed callbacks. It is not safe for
// concurrent use: every method must run on the owner's event loop, and
// expirations are handed back to that loop through post.
type Registry struct {
	clock   Clock
	post    func(func())
	entries map[Key]*entry
	gen     uint64
}

// NewRegistry creates a registry whose callbacks are delivered through post.
func NewRegistry(clock Clock, post func(func())) *Registry {
	if clock == nil {
		clock = RealClock()
	}
	return &Registry{
		clock:   clock,
		post:    post,
		entries: make(map[Key]*entry),
	}
}

// Schedule arms fn to run after d. A pending timer under the same key is
// canceled first, so a key never has more than one live timer.
func (r *Registry) Schedule(key Key, d time.Duration, fn func()) {
	r.Cancel(key)

	r.gen++
	gen := r.gen
	e := &entry{gen: gen}
	r.entries[key] = e
	e.stop = r.clock.AfterFunc(d, func() {
		r.post(func() { r.fire(key, gen, fn) })
	})
}

// fire runs fn unless the timer was canceled or replaced after it expired
// but before the loop got to it.
func (r *Registry) fire(key Key, gen uint64, fn func()) {
	e, ok := r.entries[key]
	if !ok || e.gen != gen {
		return
	}
	delete(r.entries, key)
	fn()
}

// Cancel stops the timer under key. It reports whether one was pending.
func (r *Registry) Cancel(key Key) bool {
	e, ok := r.entries[key]
	if !ok {
		return false
	}
	if e.stop != nil {
		e.stop.Stop()
	}
	delete(r.entries, key)
	return true
}

// CancelScope stops every timer in scope and returns how many were pending.
func (r *Registry) CancelScope(scope string) int {
	n := 0
	for key := range r.entries {
		if key.Scope == scope {
			r.Cancel(key)
			n++
		}
	}
	return n
}

// CancelAll stops every pending timer.
func (r *Registry) CancelAll() int {
	n := 0
	for key := range r.entries {
		r.Cancel(key)
		n++
	}
	return n
}

// Pending reports whether a timer is armed under key.
func (r *Registry) Pending(key Key) bool {
	_, ok := r.entries[key]
	return ok
}

// Len returns the number of armed timers.
func (r *Registry) Len() int {
	return len(r.entries)
}

// ScopeLen returns the number of armed timers in scope.
func (r *Registry) ScopeLen(scope string) int {
	n := 0
	for key := range r.entries {
		if key.Scope == scope {
			n++
		}
	}
	return n
}

// Now exposes the registry clock.
func (r *Registry) Now() time.Time {
	return r.clock.Now()
}
