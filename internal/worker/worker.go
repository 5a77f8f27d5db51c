package worker

import (
	"context"
	"log/slog"
	"sync"
)

// ProcessFunc handles one job. Errors are logged, not retried; bounded retry
// belongs to the processor itself.
type ProcessFunc[T any] func(ctx context.Context, job T) error

// Pool is a fixed-size worker pool draining a buffered job channel. It is
// the dispatch backpressure point for queued incidents: Submit blocks once
// the buffer is full.
type Pool[T any] struct {
	numWorkers int
	jobs       chan T
	processor  ProcessFunc[T]
	wg         sync.WaitGroup
}

func NewPool[T any](numWorkers, bufferSize int, processor ProcessFunc[T]) *Pool[T] {
	return &Pool[T]{
		numWorkers: numWorkers,
		jobs:       make(chan T, bufferSize),
		processor:  processor,
	}
}

func (p *Pool[T]) Start(ctx context.Context) {
	for i := 1; i <= p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool[T]) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			if err := p.processor(ctx, job); err != nil {
				slog.Error("worker job failed", "worker", id, "error", err)
			}
		}
	}
}

func (p *Pool[T]) Submit(job T) {
	p.jobs <- job
}

// TrySubmit enqueues without blocking; reports whether the job was accepted.
func (p *Pool[T]) TrySubmit(job T) bool {
	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (p *Pool[T]) Stop() {
	close(p.jobs)
	p.wg.Wait()
}
