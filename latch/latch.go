// Package latch provides the one-shot completion signal used to hand a finished
// response from the dispatch goroutine back to the invocation goroutine.
package latch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Latch is a countdown gate initialized with a count of one.
type Latch struct {
	once  sync.Once
	done  chan struct{}
	count atomic.Int32
}

// New returns a latch with a count of one.
func New() *Latch {
	l := &Latch{
		done: make(chan struct{}),
	}
	l.count.Store(1)
	return l
}

// Signal counts the latch down. Counting down an already released latch is a no-op.
func (l *Latch) Signal() {
	l.once.Do(func() {
		l.count.Store(0)
		close(l.done)
	})
}

// Await blocks until the latch is released or ctx is done.
// It reports whether the latch was released.
func (l *Latch) Await(ctx context.Context) bool {
	select {
	case <-l.done:
		return true
	default:
	}

	select {
	case <-l.done:
		return true
	case <-ctx.Done():
		// a release racing with the deadline still counts
		select {
		case <-l.done:
			return true
		default:
			return false
		}
	}
}

// AwaitTimeout is Await bounded by d. A non-positive d only polls.
func (l *Latch) AwaitTimeout(d time.Duration) bool {
	if d <= 0 {
		return l.Signaled()
	}
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return l.Await(ctx)
}

// Done returns a channel closed when the latch is released.
func (l *Latch) Done() <-chan struct{} {
	return l.done
}

// Signaled reports whether the latch has been released.
func (l *Latch) Signaled() bool {
	return l.count.Load() == 0
}

// Count returns the remaining count, one before release and zero after.
func (l *Latch) Count() int {
	return int(l.count.Load())
}
