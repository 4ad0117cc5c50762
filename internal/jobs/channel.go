package jobs

import (
	"sync"

	"styletransfer/internal/domain"
)

// ProgressChannel is an unbounded FIFO of progress events for one job. Any
// goroutine may Send; exactly one goroutine consumes.
type ProgressChannel struct {
	mu     sync.Mutex
	queue  []domain.ProgressEvent
	closed bool
	ready  chan struct{}
}

func NewProgressChannel() *ProgressChannel {
	return &ProgressChannel{ready: make(chan struct{}, 1)}
}

// Send enqueues ev without blocking. It reports false once the channel is
// closed; the event is dropped.
func (c *ProgressChannel) Send(ev domain.ProgressEvent) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.queue = append(c.queue, ev)
	c.mu.Unlock()

	select {
	case c.ready <- struct{}{}:
	default:
	}
	return true
}

// Ready is signalled after at least one Send since the last Drain. The signal
// may be spurious; Drain can return nothing.
func (c *ProgressChannel) Ready() <-chan struct{} {
	return c.ready
}

// Drain removes and returns all queued events in send order.
func (c *ProgressChannel) Drain() []domain.ProgressEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.queue
	c.queue = nil
	return out
}

// Close stops accepting events and returns whatever was still queued.
func (c *ProgressChannel) Close() []domain.ProgressEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	out := c.queue
	c.queue = nil
	return out
}

func (c *ProgressChannel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}
