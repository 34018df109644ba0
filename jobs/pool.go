package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrQueueFull = errors.New("job queue is full")

const DefaultWorkers = 2
const DefaultQueueSize = 64

type task struct {
	id     string
	source InputSource
}

// Pool executes submitted jobs on a fixed number of background workers
// over a bounded queue. There is no per-job cancellation; workers stop
// taking new tasks when the pool's context ends, and anything still queued
// stays pending.
type Pool struct {
	log *zap.Logger

	runner  *Runner
	tasks   chan task
	workers int
}

type PoolOptions struct {
	ParentLogger *zap.Logger
	Runner       *Runner

	Workers   int
	QueueSize int
}

func NewPool(options PoolOptions) *Pool {
	workers := options.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	queueSize := options.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	return &Pool{
		log:     options.ParentLogger.Named("job_pool"),
		runner:  options.Runner,
		tasks:   make(chan task, queueSize),
		workers: workers,
	}
}

// Submit enqueues a job without blocking the caller. Returns ErrQueueFull
// when the queue is saturated.
func (p *Pool) Submit(id string, source InputSource) error {
	select {
	case p.tasks <- task{id: id, source: source}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run starts the workers and blocks until ctx ends.
func (p *Pool) Run(ctx context.Context) error {
	g := errgroup.Group{}
	for i := 0; i < p.workers; i++ {
		log := p.log.With(zap.Int("worker", i))
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case t := <-p.tasks:
					p.runTask(ctx, log, t)
				}
			}
		})
	}
	return g.Wait()
}

// runTask contains one job's execution. A panicking pipeline must not take
// the worker down or leave the job in processing, so the recovery here
// both logs and fails the job.
func (p *Pool) runTask(ctx context.Context, log *zap.Logger, t task) {
	defer func() {
		if rec := recover(); rec != nil {
			log.With(
				zap.String("job_id", t.id),
				zap.Any("panic", rec),
				zap.String("stack", string(debug.Stack())),
			).Error("recovered panic while running job")

			if err := p.runner.store.Fail(t.id, fmt.Sprintf("internal error: %v", rec)); err != nil && !errors.Is(err, ErrInvalidTransition) {
				log.Error("failed to record panic on job", zap.Error(err))
			}
		}
	}()

	p.runner.Run(ctx, t.id, t.source)
}
