// Package queue provides a paced FIFO work queue. Jobs are executed by a
// fixed pool of sequential workers, each pausing a configurable interval
// between jobs, so effective throughput is roughly workers / interval.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrCleared rejects jobs that were still pending when Clear was called.
var ErrCleared = errors.New("queue cleared")

const (
	defaultIdlePoll = 50 * time.Millisecond
	compactMinHead  = 32
)

// Task is one unit of deferred work.
type Task func(ctx context.Context) (any, error)

// Job is the future-like handle returned by Enqueue. It settles exactly
// once: with the task's own outcome, with ErrCleared, or with the enqueue
// context's error if that context ended before the task started.
type Job struct {
	id         string
	task       Task
	ctx        context.Context
	enqueuedAt time.Time

	mu        sync.Mutex
	cancelled bool

	done  chan struct{}
	value any
	err   error
	once  sync.Once
}

// ID is the job's unique identifier.
func (j *Job) ID() string { return j.id }

// EnqueuedAt is when the job entered the queue.
func (j *Job) EnqueuedAt() time.Time { return j.enqueuedAt }

// Wait blocks until the job settles or ctx ends.
func (j *Job) Wait(ctx context.Context) (any, error) {
	select {
	case <-j.done:
		return j.value, j.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (j *Job) settle(value any, err error) {
	j.once.Do(func() {
		j.value = value
		j.err = err
		close(j.done)
	})
}

func (j *Job) markCancelled() {
	j.mu.Lock()
	j.cancelled = true
	j.mu.Unlock()
}

func (j *Job) isCancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelled
}

// Config configures a Queue.
type Config struct {
	// Workers is the number of sequential worker loops, minimum 1.
	Workers int

	// Interval is the pause each worker takes after finishing a job.
	Interval time.Duration

	// IdlePoll is how long an idle worker sleeps before re-checking the
	// queue. Defaults to 50ms.
	IdlePoll time.Duration

	Logger *zap.Logger
}

// Status is a point-in-time view of the queue.
type Status struct {
	QueueLength   int
	ActiveWorkers int
	Running       bool
}

// Queue is an ordered in-memory work queue. It is not persistent; pending
// jobs are lost on process exit.
type Queue struct {
	workers  int
	interval time.Duration
	idlePoll time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	jobs    []*Job
	head    int
	running bool
	active  int
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New returns a stopped queue. Enqueue starts it on first use.
func New(cfg Config) *Queue {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.IdlePoll <= 0 {
		cfg.IdlePoll = defaultIdlePoll
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		workers:  cfg.Workers,
		interval: cfg.Interval,
		idlePoll: cfg.IdlePoll,
		logger:   cfg.Logger,
	}
}

// Enqueue appends a job and returns its handle immediately. The queue is
// started if it is not already running. ctx is the context the task will
// run with; if it ends before the task starts, the job is rejected with the
// context's error.
func (q *Queue) Enqueue(ctx context.Context, task Task) *Job {
	if ctx == nil {
		ctx = context.Background()
	}

	job := &Job{
		id:         uuid.New().String(),
		task:       task,
		ctx:        ctx,
		enqueuedAt: time.Now().UTC(),
		done:       make(chan struct{}),
	}

	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	length := len(q.jobs) - q.head
	q.mu.Unlock()

	q.Start()
	q.logger.Debug("job enqueued", zap.String("job_id", job.id), zap.Int("queue_length", length))
	return job
}

// Start spins up the worker loops. Calling Start on a running queue is a
// no-op.
func (q *Queue) Start() {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.stopCh = make(chan struct{})
	stopCh := q.stopCh
	q.mu.Unlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.workerLoop(stopCh)
	}
}

// Stop signals all workers to exit after their current job and waits for
// them. In-flight jobs are not cancelled.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	close(q.stopCh)
	q.mu.Unlock()

	q.wg.Wait()
}

// Clear atomically cancels every job still waiting and rejects its handle
// with ErrCleared. Already-executing jobs are unaffected.
func (q *Queue) Clear() {
	q.mu.Lock()
	pending := make([]*Job, 0, len(q.jobs)-q.head)
	for _, job := range q.jobs[q.head:] {
		job.markCancelled()
		pending = append(pending, job)
	}
	q.jobs = nil
	q.head = 0
	q.mu.Unlock()

	for _, job := range pending {
		job.settle(nil, ErrCleared)
	}
	if len(pending) > 0 {
		q.logger.Debug("queue cleared", zap.Int("cancelled", len(pending)))
	}
}

// Status reports queue length, busy workers and running state.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Status{
		QueueLength:   len(q.jobs) - q.head,
		ActiveWorkers: q.active,
		Running:       q.running,
	}
}

// next dequeues the oldest pending job, or nil. The read pointer advances
// instead of shifting the slice, and the consumed prefix is compacted once
// it dominates the backing array, keeping dequeue amortized O(1) without
// retaining already-consumed slots forever.
func (q *Queue) next() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head >= len(q.jobs) {
		return nil
	}
	job := q.jobs[q.head]
	q.jobs[q.head] = nil
	q.head++

	if q.head >= compactMinHead && q.head*2 >= len(q.jobs) {
		remaining := len(q.jobs) - q.head
		compacted := make([]*Job, remaining)
		copy(compacted, q.jobs[q.head:])
		q.jobs = compacted
		q.head = 0
	}

	return job
}

func (q *Queue) workerLoop(stopCh chan struct{}) {
	defer q.wg.Done()

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		job := q.next()
		if job == nil {
			select {
			case <-stopCh:
				return
			case <-time.After(q.idlePoll):
			}
			continue
		}

		q.runJob(job)

		if q.interval > 0 {
			select {
			case <-stopCh:
				return
			case <-time.After(q.interval):
			}
		}
	}
}

func (q *Queue) runJob(job *Job) {
	if job.isCancelled() {
		job.settle(nil, ErrCleared)
		return
	}
	if err := job.ctx.Err(); err != nil {
		job.settle(nil, err)
		return
	}

	q.mu.Lock()
	q.active++
	q.mu.Unlock()

	value, err := job.task(job.ctx)
	job.settle(value, err)

	q.mu.Lock()
	q.active--
	q.mu.Unlock()
}
