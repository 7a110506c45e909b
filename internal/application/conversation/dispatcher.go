package conversation

import (
	"context"
	"sync"

	"github.com/dmstore/dmstore/internal/domain/messaging"
)

// Dispatcher serializes messages per end-user while letting different users proceed concurrently.
// Each user with pending messages has exactly one draining goroutine.
type Dispatcher struct {
	handle func(ctx context.Context, msg *messaging.Message)

	mu      sync.Mutex
	pending map[string][]*messaging.Message
	closed  bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher calling handle for every submitted message.
func NewDispatcher(handle func(ctx context.Context, msg *messaging.Message)) *Dispatcher {
	return &Dispatcher{
		handle:  handle,
		pending: make(map[string][]*messaging.Message),
	}
}

// Submit queues msg behind earlier messages from the same author. It never blocks on handling.
// Messages submitted after Wait has begun or with a done ctx are dropped.
func (d *Dispatcher) Submit(ctx context.Context, msg *messaging.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || ctx.Err() != nil {
		return
	}
	queue, active := d.pending[msg.AuthorID]
	d.pending[msg.AuthorID] = append(queue, msg)
	if !active {
		d.wg.Add(1)
		go d.drain(ctx, msg.AuthorID)
	}
}

func (d *Dispatcher) drain(ctx context.Context, userID string) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		queue := d.pending[userID]
		if len(queue) == 0 || ctx.Err() != nil {
			delete(d.pending, userID)
			d.mu.Unlock()
			return
		}
		msg := queue[0]
		d.pending[userID] = queue[1:]
		d.mu.Unlock()

		d.handle(ctx, msg)
	}
}

// Wait stops accepting messages and blocks until every draining goroutine has exited.
func (d *Dispatcher) Wait() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}

// Active returns the number of users with queued or in-flight messages.
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
