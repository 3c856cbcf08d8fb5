package imports

import (
	"context"
	"sync"
)

// Completion is a guest export call queued by a deferred import.
type Completion struct {
	Export string
	Params []uint64
}

// Completions is a FIFO of pending completions owned by one instance.
type Completions struct {
	queue []Completion
	mu    sync.Mutex
}

// Push appends c.
func (q *Completions) Push(c Completion) {
	q.mu.Lock()
	q.queue = append(q.queue, c)
	q.mu.Unlock()
}

// Drain removes and returns everything queued so far.
func (q *Completions) Drain() []Completion {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.queue
	q.queue = nil
	return out
}

// Len returns the number of queued completions.
func (q *Completions) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

type completionsKey struct{}

// WithCompletions returns a context whose deferred imports queue into q.
func WithCompletions(ctx context.Context, q *Completions) context.Context {
	return context.WithValue(ctx, completionsKey{}, q)
}

// CompletionsFrom returns the queue attached to ctx, or nil.
func CompletionsFrom(ctx context.Context) *Completions {
	q, _ := ctx.Value(completionsKey{}).(*Completions)
	return q
}
