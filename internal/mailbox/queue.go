package mailbox

import (
	"errors"
	"time"

	"github.com/Workiva/go-datastructures/queue"
)

var (
	// ErrDisposed is returned by a disposed queue
	ErrDisposed = errors.New("mailbox is disposed")
	// ErrTimeout is returned when no item became available in time
	ErrTimeout = errors.New("mailbox poll timed out")
)

const defaultQueueHint = 64

// Queue is the multi-producer single-consumer storage behind a Mailbox.
// Push may be called from any goroutine, Poll only from the owner.
type Queue interface {
	// Push appends the item at the tail. It never blocks.
	Push(item any) error
	// Poll removes up to max items from the head. It waits for at least one item:
	// forever when timeout is negative, not at all when it is zero.
	Poll(max int, timeout time.Duration) ([]any, error)
	// Len returns the number of queued items
	Len() int
	// Dispose releases the queue and wakes a blocked Poll with ErrDisposed
	Dispose()
}

type blockingQueue struct {
	items *queue.Queue
}

var _ Queue = (*blockingQueue)(nil)

// NewBlockingQueue returns a Queue backed by a locked go-datastructures queue that
// supports blocking polls with timeout
func NewBlockingQueue() Queue {
	return &blockingQueue{items: queue.New(defaultQueueHint)}
}

func (q *blockingQueue) Push(item any) error {
	return translate(q.items.Put(item))
}

func (q *blockingQueue) Poll(max int, timeout time.Duration) ([]any, error) {
	var (
		items []any
		err   error
	)
	switch {
	case timeout == 0:
		if q.items.Disposed() {
			return nil, ErrDisposed
		}
		// single consumer: a non empty queue cannot be drained under our feet
		if q.items.Empty() {
			return nil, ErrTimeout
		}
		items, err = q.items.Get(int64(max))
	case timeout < 0:
		items, err = q.items.Get(int64(max))
	default:
		items, err = q.items.Poll(int64(max), timeout)
	}
	return items, translate(err)
}

func (q *blockingQueue) Len() int {
	return int(q.items.Len())
}

func (q *blockingQueue) Dispose() {
	q.items.Dispose()
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, queue.ErrDisposed):
		return ErrDisposed
	case errors.Is(err, queue.ErrTimeout):
		return ErrTimeout
	default:
		return err
	}
}
