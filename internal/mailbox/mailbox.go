// Package mailbox implements a process mailbox with selective receive.
package mailbox

import (
	"time"

	"go.uber.org/atomic"
)

const pollBatch = 32

// Infinity makes Receive wait until an item arrives or the mailbox is disposed
const Infinity time.Duration = -1

// Matcher reports whether a queued item should be taken by the current receive
type Matcher[T any] func(item T) bool

// Mailbox is a multi-producer single-consumer queue of T. Items that do not satisfy
// the matchers of a receive are moved to a save list owned by the consumer and are
// offered again, in arrival order, to the next receive.
type Mailbox[T any] struct {
	incoming Queue
	// save holds skipped items in arrival order. Only the consumer touches it.
	save  []T
	saved *atomic.Int64
}

// New creates a Mailbox on top of the given queue
func New[T any](q Queue) *Mailbox[T] {
	return &Mailbox[T]{
		incoming: q,
		saved:    atomic.NewInt64(0),
	}
}

// Post enqueues item. It is safe for concurrent use and never blocks.
func (m *Mailbox[T]) Post(item T) error {
	return m.incoming.Push(item)
}

// Receive returns the oldest item accepted by any of the matchers. With no matchers
// the oldest item is returned. A zero timeout makes it non-blocking and a negative
// one waits forever.
func (m *Mailbox[T]) Receive(timeout time.Duration, matchers ...Matcher[T]) (T, error) {
	for i, item := range m.save {
		if accepts(item, matchers) {
			m.save = append(m.save[:i], m.save[i+1:]...)
			m.saved.Dec()
			return item, nil
		}
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		wait := timeout
		if timeout > 0 {
			wait = time.Until(deadline)
			if wait <= 0 {
				// deadline passed, still take what is already queued
				wait = 0
			}
		}

		items, err := m.incoming.Poll(pollBatch, wait)
		if err != nil {
			var zero T
			return zero, err
		}

		for i, raw := range items {
			item := raw.(T)
			if !accepts(item, matchers) {
				m.keep(item)
				continue
			}
			// the rest of the batch was already dequeued; park it for the next receive
			for _, rest := range items[i+1:] {
				m.keep(rest.(T))
			}
			return item, nil
		}
	}
}

func (m *Mailbox[T]) keep(item T) {
	m.save = append(m.save, item)
	m.saved.Inc()
}

// Len returns the number of items waiting in the mailbox, saved ones included
func (m *Mailbox[T]) Len() int {
	return m.incoming.Len() + int(m.saved.Load())
}

// Dispose closes the mailbox. Pending and future receives fail with ErrDisposed and
// posts are rejected.
func (m *Mailbox[T]) Dispose() {
	m.incoming.Dispose()
}

func accepts[T any](item T, matchers []Matcher[T]) bool {
	if len(matchers) == 0 {
		return true
	}
	for _, match := range matchers {
		if match(item) {
			return true
		}
	}
	return false
}
