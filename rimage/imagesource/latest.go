// Package imagesource acquires images for the detector from outside the process.
package imagesource

import (
	"context"
	"sync"

	"go.uber.org/atomic"
)

// Latest is a mailbox holding at most one value. Putting a value replaces any value that was not
// received yet, so a slow consumer always gets the newest one.
type Latest[T any] struct {
	mu      sync.Mutex
	ch      chan T
	dropped atomic.Int64
}

// NewLatest returns an empty mailbox.
func NewLatest[T any]() *Latest[T] {
	return &Latest[T]{ch: make(chan T, 1)}
}

// Put stores v and reports whether an unread value was dropped to make room. It never blocks.
func (l *Latest[T]) Put(v T) (dropped bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-l.ch:
		dropped = true
		l.dropped.Inc()
	default:
	}
	// only Put sends and it holds the lock, so the buffer has room
	l.ch <- v
	return dropped
}

// C returns the channel values are received from.
func (l *Latest[T]) C() <-chan T {
	return l.ch
}

// Get waits for a value or for ctx to be done.
func (l *Latest[T]) Get(ctx context.Context) (T, error) {
	select {
	case v := <-l.ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Dropped reports how many values were replaced before being received.
func (l *Latest[T]) Dropped() int64 {
	return l.dropped.Load()
}
