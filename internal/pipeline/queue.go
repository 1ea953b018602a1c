package pipeline

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultCapacity is the number of events the queue holds before dropping.
const DefaultCapacity = 10

// Event is the record an interrupt leaves for the consumer. It carries only
// the channel; the consumer reads the level itself.
type Event struct {
	Channel int
}

// Queue is a fixed-capacity single-producer/single-consumer FIFO.
// TryPush never blocks or allocates and may run in interrupt context.
// Pop blocks the consumer until an event is available.
//
// With a poll interval set, TryPush touches only the atomics and Pop
// rechecks the queue on that interval instead of waiting for a wakeup.
type Queue struct {
	buf  []Event
	size uint64
	head atomic.Uint64 // next read position, written by the consumer only
	tail atomic.Uint64 // next write position, written by the producer only
	wake chan struct{}
	poll time.Duration
}

// NewQueue creates a queue holding up to capacity events. The wakeup
// strategy suits the build target's interrupt context.
func NewQueue(capacity int) *Queue {
	return newQueue(capacity, isrPoll)
}

func newQueue(capacity int, poll time.Duration) *Queue {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Queue{
		buf:  make([]Event, capacity),
		size: uint64(capacity),
		wake: make(chan struct{}, 1),
		poll: poll,
	}
}

// TryPush appends e. It returns false and drops e when the queue is full.
func (q *Queue) TryPush(e Event) bool {
	t := q.tail.Load()
	if t-q.head.Load() == q.size {
		return false
	}
	q.buf[t%q.size] = e
	q.tail.Store(t + 1)

	if q.poll > 0 {
		return true
	}
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// TryPop removes the oldest event without blocking.
func (q *Queue) TryPop() (Event, bool) {
	h := q.head.Load()
	if h == q.tail.Load() {
		return Event{}, false
	}
	e := q.buf[h%q.size]
	q.head.Store(h + 1)
	return e, true
}

// Pop removes the oldest event, waiting until one arrives or ctx is done.
func (q *Queue) Pop(ctx context.Context) (Event, error) {
	if q.poll > 0 {
		return q.pollPop(ctx)
	}
	for {
		if e, ok := q.TryPop(); ok {
			return e, nil
		}
		select {
		case <-q.wake:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

func (q *Queue) pollPop(ctx context.Context) (Event, error) {
	if e, ok := q.TryPop(); ok {
		return e, nil
	}
	t := time.NewTicker(q.poll)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if e, ok := q.TryPop(); ok {
				return e, nil
			}
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	return int(q.tail.Load() - q.head.Load())
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return int(q.size)
}
