// Package memory provides the in-process work queue drained by the worker pool.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/coursefinder-crawler/internal/crawler"
)

// Queue is an unbounded FIFO with completion tracking. Put never blocks, so a
// producer can enqueue the whole crawl before calling Join.
type Queue struct {
	mu         sync.Mutex
	items      []crawler.WorkItem
	unfinished int
	drained    chan struct{}

	ready     chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

// NewQueue constructs an empty queue.
func NewQueue() *Queue {
	return &Queue{
		ready:  make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// Put appends item and counts it as unfinished until a matching Done.
func (q *Queue) Put(item crawler.WorkItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	select {
	case <-q.closed:
		return crawler.ErrQueueClosed
	default:
	}
	if q.unfinished == 0 {
		q.drained = make(chan struct{})
	}
	q.unfinished++
	q.items = append(q.items, item)
	q.signal()
	return nil
}

// Take blocks until an item is available, the queue is closed and empty, or ctx ends.
func (q *Queue) Take(ctx context.Context) (crawler.WorkItem, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = crawler.WorkItem{}
			q.items = q.items[1:]
			if len(q.items) > 0 {
				q.signal()
			}
			q.mu.Unlock()
			return item, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return crawler.WorkItem{}, fmt.Errorf("take canceled: %w", ctx.Err())
		case <-q.closed:
			q.mu.Lock()
			empty := len(q.items) == 0
			q.mu.Unlock()
			if empty {
				return crawler.WorkItem{}, crawler.ErrQueueClosed
			}
		case <-q.ready:
		}
	}
}

// Done marks one previously taken item as finished.
func (q *Queue) Done() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.unfinished <= 0 {
		return crawler.ErrTooManyDone
	}
	q.unfinished--
	if q.unfinished == 0 {
		close(q.drained)
	}
	return nil
}

// Join blocks until every Put has a matching Done, or ctx ends.
func (q *Queue) Join(ctx context.Context) error {
	q.mu.Lock()
	if q.unfinished == 0 {
		q.mu.Unlock()
		return nil
	}
	drained := q.drained
	q.mu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("join canceled: %w", ctx.Err())
	case <-drained:
		return nil
	}
}

// Len reports the number of items waiting to be taken.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close rejects further Puts and releases idle takers once the queue is empty.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.closed)
	})
}

// signal wakes one waiting taker; callers hold q.mu.
func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
