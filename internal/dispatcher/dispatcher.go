// Package dispatcher manages worker fan-out over the work queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/coursefinder-crawler/internal/crawler"
	"github.com/JakeFAU/coursefinder-crawler/internal/worker"
)

// DefaultConcurrency is the worker count used when none is configured.
const DefaultConcurrency = 32

// Pool fans queue work out to a fixed set of workers.
type Pool struct {
	queue   crawler.Queue
	workers []*worker.Worker

	startOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a Pool over queue.
func New(queue crawler.Queue, workers []*worker.Worker) *Pool {
	return &Pool{
		queue:   queue,
		workers: workers,
	}
}

// NewSized builds size workers with build and returns a Pool over them.
func NewSized(queue crawler.Queue, size int, build func(index int) *worker.Worker) *Pool {
	if size <= 0 {
		size = DefaultConcurrency
	}
	workers := make([]*worker.Worker, 0, size)
	for i := 0; i < size; i++ {
		workers = append(workers, build(i))
	}
	return New(queue, workers)
}

// Size reports the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start launches every worker once. Workers run until ctx ends or the queue closes.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for _, w := range p.workers {
			p.wg.Add(1)
			go func(wk *worker.Worker) {
				defer p.wg.Done()
				wk.Run(ctx)
			}(w)
		}
	})
}

// Enqueue proxies to the underlying queue.
func (p *Pool) Enqueue(item crawler.WorkItem) error {
	if err := p.queue.Put(item); err != nil {
		return fmt.Errorf("queue put: %w", err)
	}
	return nil
}

// Join blocks until every enqueued item has been aggregated.
func (p *Pool) Join(ctx context.Context) error {
	if err := p.queue.Join(ctx); err != nil {
		return fmt.Errorf("queue join: %w", err)
	}
	return nil
}

// Wait blocks until all workers have exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}
