// Package readiness tracks outstanding run dependencies of a module load and
// exposes a one-shot readiness gate.
//
// A Tracker counts named dependencies. After Finalize, the gate resolves as
// soon as the count reaches zero. Fail resolves it with an error instead.
//
//	t := readiness.NewTracker(readiness.WithMonitor(func(n int) { log(n) }))
//	_ = t.Add("wasm-instantiate")
//	t.Finalize()
//	go func() { defer t.Remove("wasm-instantiate"); instantiate() }()
//	err := t.Gate().Wait(ctx)
package readiness

import (
	"sync"

	"github.com/wippyai/wasm-host/errors"
)

// Monitor observes the dependency count after every change.
type Monitor func(pending int)

// Option configures a Tracker.
type Option func(*Tracker)

// WithMonitor adds a monitor. Monitors run outside the tracker lock in the
// order they were added.
func WithMonitor(m Monitor) Option {
	return func(t *Tracker) {
		if m != nil {
			t.monitors = append(t.monitors, m)
		}
	}
}

// Tracker counts outstanding run dependencies.
type Tracker struct {
	gate      *Gate
	deps      map[string]struct{}
	monitors  []Monitor
	mu        sync.Mutex
	finalized bool
}

// NewTracker returns an empty tracker with an unresolved gate.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		gate: newGate(),
		deps: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Gate returns the tracker's readiness gate.
func (t *Tracker) Gate() *Gate {
	return t.gate
}

// Count returns the number of outstanding dependencies.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.deps)
}

// Add registers dependency id.
func (t *Tracker) Add(id string) error {
	t.mu.Lock()
	if t.gate.Resolved() {
		t.mu.Unlock()
		return errors.Unbalanced(id, "add after readiness resolved")
	}
	if _, dup := t.deps[id]; dup {
		t.mu.Unlock()
		return errors.Unbalanced(id, "dependency already added")
	}
	t.deps[id] = struct{}{}
	n := len(t.deps)
	t.mu.Unlock()

	t.notify(n)
	return nil
}

// Remove completes dependency id. Readiness fires when this drops the
// count to zero on a finalized tracker.
func (t *Tracker) Remove(id string) error {
	return t.Complete(id, nil)
}

// Complete removes dependency id and then, when err is non-nil, fails the
// gate with it. Monitors see the decremented count before the gate
// resolves, so the count is balanced whenever the failure is observed.
func (t *Tracker) Complete(id string, err error) error {
	t.mu.Lock()
	if _, ok := t.deps[id]; !ok {
		t.mu.Unlock()
		if err != nil {
			t.gate.resolve(err)
		}
		return errors.Unbalanced(id, "removed without matching add")
	}
	delete(t.deps, id)
	n := len(t.deps)
	fire := t.finalized && n == 0
	t.mu.Unlock()

	t.notify(n)
	switch {
	case err != nil:
		t.gate.resolve(err)
	case fire:
		t.gate.resolve(nil)
	}
	return nil
}

// Finalize declares that no more dependencies will be added. With nothing
// outstanding the gate resolves immediately.
func (t *Tracker) Finalize() {
	t.mu.Lock()
	t.finalized = true
	fire := len(t.deps) == 0
	t.mu.Unlock()

	if fire {
		t.gate.resolve(nil)
	}
}

// Fail resolves the gate with err unless it already resolved.
// It reports whether err became the gate's outcome.
func (t *Tracker) Fail(err error) bool {
	if err == nil {
		err = errors.InvalidInput(errors.PhaseReadiness, "fail called with nil error")
	}
	return t.gate.resolve(err)
}

func (t *Tracker) notify(n int) {
	for _, m := range t.monitors {
		m(n)
	}
}
