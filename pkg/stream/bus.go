package stream

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrBusClosed = errors.New("event bus closed")

// Bus is a per-request FIFO queue of step events between the pipeline
// (producer) and the stream consumer. Publish never blocks.
type Bus struct {
	mu     sync.Mutex
	queue  []StepEvent
	closed bool
	notify chan struct{}
	done   chan struct{}
}

func NewBus() *Bus {
	return &Bus{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (b *Bus) Publish(ev StepEvent) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	b.queue = append(b.queue, ev)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return nil
}

// Next returns the next queued event. ok is false when nothing arrived
// within timeout or the bus is closed and empty; err is set only when ctx
// is done.
func (b *Bus) Next(ctx context.Context, timeout time.Duration) (ev StepEvent, ok bool, err error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	done := b.done
	for {
		if ev, ok := b.pop(); ok {
			return ev, true, nil
		}
		if done == nil {
			return StepEvent{}, false, nil
		}
		select {
		case <-b.notify:
		case <-done:
			// one more pop for events published just before Close
			done = nil
		case <-timer.C:
			return StepEvent{}, false, nil
		case <-ctx.Done():
			return StepEvent{}, false, ctx.Err()
		}
	}
}

func (b *Bus) pop() (StepEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return StepEvent{}, false
	}
	ev := b.queue[0]
	b.queue[0] = StepEvent{}
	b.queue = b.queue[1:]
	return ev, true
}

// Drain removes and returns everything currently queued, in order.
func (b *Bus) Drain() []StepEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.queue
	b.queue = nil
	return out
}

func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Close marks the producer as finished. Queued events remain readable.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
}

func (b *Bus) Done() <-chan struct{} {
	return b.done
}

func (b *Bus) Closed() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}
