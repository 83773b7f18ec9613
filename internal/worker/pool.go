package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrPoolStopped = errors.New("worker pool stopped")

// Job is a unit of background work, such as pushing a column change to the
// task store and refetching afterwards.
type Job struct {
	Name   string
	TaskID int64
	Run    func(ctx context.Context) error
}

// Pool runs jobs on a fixed set of goroutines. The queue is unbounded so
// Submit never blocks the caller.
type Pool struct {
	logger *zap.Logger
	count  int
	wg     sync.WaitGroup

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Job
	started bool
	stopped bool
}

func NewPool(logger *zap.Logger, count int) *Pool {
	if count < 1 {
		count = 1
	}
	p := &Pool{
		logger: logger,
		count:  count,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	p.logger.Info("Starting worker pool", zap.Int("workers", p.count))
	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Submit queues a job. Jobs submitted before Stop are always run.
func (p *Pool) Submit(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrPoolStopped
	}
	p.queue = append(p.queue, job)
	p.cond.Signal()
	return nil
}

// Stop refuses new jobs, drains the queue and waits for the workers.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	started := p.started
	p.cond.Broadcast()
	p.mu.Unlock()

	p.logger.Info("Stopping worker pool...")
	if !started {
		// nobody will drain the queue; run what is left inline
		p.wg.Add(1)
		p.worker(context.Background(), -1)
	}
	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

// next blocks until a job is queued. It reports false once the pool is
// stopped and the queue is empty.
func (p *Pool) next() (Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 && !p.stopped {
		p.cond.Wait()
	}
	if len(p.queue) == 0 {
		return Job{}, false
	}
	job := p.queue[0]
	p.queue[0] = Job{}
	p.queue = p.queue[1:]
	return job, true
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		job, ok := p.next()
		if !ok {
			return
		}
		p.process(ctx, id, job)
	}
}

func (p *Pool) process(ctx context.Context, workerID int, job Job) {
	start := time.Now()
	err := job.Run(ctx)
	if err != nil {
		p.logger.Error("job failed",
			zap.Int("worker", workerID),
			zap.String("job", job.Name),
			zap.Int64("task_id", job.TaskID),
			zap.Error(err),
		)
		return
	}
	p.logger.Debug("job completed",
		zap.Int("worker", workerID),
		zap.String("job", job.Name),
		zap.Int64("task_id", job.TaskID),
		zap.Duration("took", time.Since(start)),
	)
}
