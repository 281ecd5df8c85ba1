package session

import (
	"context"
	"sync"
)

// Queue is the bounded FIFO of serialized outbound frames. Any number of
// goroutines may send; the writer task is the only receiver.
type Queue struct {
	ch        chan string
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue creates a queue holding at most size frames.
func NewQueue(size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{
		ch:   make(chan string, size),
		done: make(chan struct{}),
	}
}

// Send enqueues frame, blocking while the queue is full.
func (q *Queue) Send(ctx context.Context, frame string) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.ch <- frame:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend enqueues frame without blocking.
func (q *Queue) TrySend(frame string) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.ch <- frame:
		return nil
	default:
		return ErrQueueFull
	}
}

// Receive returns the next frame. After Close it keeps returning queued
// frames until the queue is empty, then reports false.
func (q *Queue) Receive() (string, bool) {
	select {
	case frame := <-q.ch:
		return frame, true
	case <-q.done:
	}

	select {
	case frame := <-q.ch:
		return frame, true
	default:
		return "", false
	}
}

// Close stops accepting frames. It is safe to call more than once.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
}

// Len returns the number of queued frames.
func (q *Queue) Len() int {
	return len(q.ch)
}
