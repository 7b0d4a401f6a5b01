package mailbox

import (
	"runtime"
	"sync"
	"time"

	mpsc "github.com/t3rm1n4l/go-mpscqueue"
	"go.uber.org/atomic"
)

type mpscQueue struct {
	items    *mpsc.MPSCQueue
	signal   chan struct{}
	done     chan struct{}
	disposed *atomic.Bool
	once     sync.Once
}

var _ Queue = (*mpscQueue)(nil)

// NewMPSCQueue returns a lock-free Queue. Producers wake the consumer through a one
// slot signal channel.
func NewMPSCQueue() Queue {
	return &mpscQueue{
		items:    mpsc.New(),
		signal:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		disposed: atomic.NewBool(false),
	}
}

func (q *mpscQueue) Push(item any) error {
	if q.disposed.Load() {
		return ErrDisposed
	}
	q.items.Push(item)
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

func (q *mpscQueue) Poll(max int, timeout time.Duration) ([]any, error) {
	var timer *time.Timer
	var expired <-chan time.Time
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		if q.disposed.Load() {
			return nil, ErrDisposed
		}
		if items := q.drain(max); len(items) > 0 {
			return items, nil
		}
		if timeout == 0 {
			return nil, ErrTimeout
		}
		select {
		case <-q.signal:
		case <-q.done:
			return nil, ErrDisposed
		case <-expired:
			// an item may have landed right before the timer fired
			if items := q.drain(max); len(items) > 0 {
				return items, nil
			}
			return nil, ErrTimeout
		}
	}
}

func (q *mpscQueue) drain(max int) []any {
	var items []any
	for len(items) < max && q.items.Size() > 0 {
		item := q.items.Pop()
		if item == nil {
			// a producer swapped the tail but has not linked its node yet
			runtime.Gosched()
			continue
		}
		items = append(items, item)
	}
	return items
}

func (q *mpscQueue) Len() int {
	return int(q.items.Size())
}

func (q *mpscQueue) Dispose() {
	q.once.Do(func() {
		q.disposed.Store(true)
		close(q.done)
	})
}
