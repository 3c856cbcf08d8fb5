package readiness

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// PollInterval is the fixed period of Gate.Poll.
const PollInterval = 500 * time.Millisecond

var errPending = stderrors.New("readiness: pending")

// Gate is resolved exactly once, either ready (nil error) or failed.
// The zero value is not usable; gates come from a Tracker.
type Gate struct {
	done chan struct{}
	err  error
	subs []func(error)
	mu   sync.Mutex
	once sync.Once
}

func newGate() *Gate {
	return &Gate{done: make(chan struct{})}
}

// resolve reports whether this call was the one that resolved the gate.
func (g *Gate) resolve(err error) bool {
	fired := false
	g.once.Do(func() {
		g.mu.Lock()
		g.err = err
		subs := g.subs
		g.subs = nil
		close(g.done)
		g.mu.Unlock()

		for _, fn := range subs {
			fn(err)
		}
		fired = true
	})
	return fired
}

// Ready reports whether the gate resolved successfully.
func (g *Gate) Ready() bool {
	select {
	case <-g.done:
		return g.Err() == nil
	default:
		return false
	}
}

// Resolved reports whether the gate resolved, successfully or not.
func (g *Gate) Resolved() bool {
	select {
	case <-g.done:
		return true
	default:
		return false
	}
}

// Done is closed once the gate resolves.
func (g *Gate) Done() <-chan struct{} {
	return g.done
}

// Err returns the failure the gate resolved with, or nil.
func (g *Gate) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// Wait blocks until the gate resolves or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.done:
		return g.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers fn to run once on resolution. If the gate already
// resolved, fn runs immediately on the calling goroutine.
func (g *Gate) Subscribe(fn func(error)) {
	g.mu.Lock()
	select {
	case <-g.done:
		err := g.err
		g.mu.Unlock()
		fn(err)
		return
	default:
	}
	g.subs = append(g.subs, fn)
	g.mu.Unlock()
}

// Poll checks the gate every PollInterval until it resolves or ctx is done.
// Prefer Wait; Poll exists for callers that follow a check-and-sleep loop.
func (g *Gate) Poll(ctx context.Context) error {
	b := backoff.WithContext(backoff.NewConstantBackOff(PollInterval), ctx)
	err := backoff.Retry(func() error {
		if g.Resolved() {
			return nil
		}
		return errPending
	}, b)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return g.Err()
}
