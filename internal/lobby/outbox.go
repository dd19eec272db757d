// internal/lobby/outbox.go
package lobby

import (
	"errors"
	"sync"

	"github.com/jason-s-yu/sudoku-lobby/internal/protocol"
)

var (
	ErrOutboxFull   = errors.New("outbox full")
	ErrOutboxClosed = errors.New("outbox closed")
)

// Outbox is how the lobby reaches one user's connection. Enqueue must never block:
// the lobby calls it while holding its lock.
type Outbox interface {
	Enqueue(msg protocol.Message) error
}

// Queue is the buffered Outbox a connection's write pump drains. A queue that
// overflows closes itself, so a client that cannot keep up is disconnected instead
// of silently missing events.
type Queue struct {
	mu     sync.Mutex
	ch     chan protocol.Message
	done   chan struct{}
	closed bool
}

// NewQueue makes a queue that buffers up to size messages.
func NewQueue(size int) *Queue {
	return &Queue{
		ch:   make(chan protocol.Message, size),
		done: make(chan struct{}),
	}
}

// Enqueue pushes msg without blocking.
func (q *Queue) Enqueue(msg protocol.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrOutboxClosed
	}
	select {
	case q.ch <- msg:
		return nil
	default:
		q.closeUnsafe()
		return ErrOutboxFull
	}
}

// Messages is drained by the write pump. It is closed once the queue is closed and
// the buffered messages have been received.
func (q *Queue) Messages() <-chan protocol.Message {
	return q.ch
}

// Done is closed as soon as the queue is closed, for any reason.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Close stops accepting messages. Safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closeUnsafe()
}

func (q *Queue) closeUnsafe() {
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
	close(q.done)
}
