// Package jobs hands submitted pipeline jobs to a pool of background workers.
// Submission creates the pending job record and returns at once; workers run
// the pipeline and write progress to the same store that Status reads.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/talent-pipeline/internal/db"
	"github.com/jonathan/talent-pipeline/internal/pipeline"
	"github.com/jonathan/talent-pipeline/internal/types"
)

var (
	// ErrJobNotFound is returned by Status for an unknown id.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobExists is returned when a caller-supplied id is already taken.
	ErrJobExists = errors.New("job already exists")
	// ErrQueueFull is returned when no worker slot or buffer space is free.
	ErrQueueFull = errors.New("job queue is full")
	// ErrQueueClosed is returned by Submit after Stop.
	ErrQueueClosed = errors.New("job queue is closed")
	// ErrQueueStopped is recorded on jobs still buffered when a queue that
	// never started is stopped.
	ErrQueueStopped = errors.New("job queue stopped before the job ran")
	// ErrEmptyRequirement is returned for a blank requirement.
	ErrEmptyRequirement = errors.New("requirement is required")
)

// Runner executes one job to a terminal state.
type Runner interface {
	Run(ctx context.Context, job *types.Job) error
}

// SubmitRequest is the input for Submit. JobID is optional.
type SubmitRequest struct {
	JobID       string
	Requirement string
	Options     types.JobOptions
}

// Options configures a Queue.
type Options struct {
	Workers int
	Size    int
}

// Queue is a bounded job queue served by a fixed worker pool.
type Queue struct {
	store   db.JobStore
	runner  Runner
	workers int
	logger  *zap.Logger

	jobs chan *types.Job

	mu      sync.RWMutex
	closed  bool
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewQueue creates a Queue. Workers and Size default to 1 and 16.
func NewQueue(store db.JobStore, runner Runner, opts Options, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Size <= 0 {
		opts.Size = 16
	}
	return &Queue{
		store:   store,
		runner:  runner,
		workers: opts.Workers,
		logger:  logger,
		jobs:    make(chan *types.Job, opts.Size),
	}
}

// Submit records a pending job and enqueues it. It does not wait for the job
// to start.
func (q *Queue) Submit(ctx context.Context, req SubmitRequest) (*types.Job, error) {
	requirement := strings.TrimSpace(req.Requirement)
	if requirement == "" {
		return nil, ErrEmptyRequirement
	}
	id := strings.TrimSpace(req.JobID)
	if id == "" {
		id = uuid.NewString()
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return nil, ErrQueueClosed
	}

	job := &types.Job{
		ID:            id,
		Requirement:   requirement,
		Options:       req.Options,
		Status:        types.JobPending,
		Stage:         string(pipeline.StagePending),
		Progress:      0,
		StatusMessage: "Job queued",
	}
	if err := q.store.CreateJob(ctx, job); err != nil {
		if errors.Is(err, db.ErrDuplicateJob) {
			return nil, ErrJobExists
		}
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	select {
	case q.jobs <- job:
	default:
		q.logger.Warn("job rejected: queue full", zap.String("job_id", id))
		if err := q.store.UpdateJob(ctx, db.JobUpdate{
			ID:            id,
			Status:        types.JobFailed,
			Stage:         string(pipeline.StageFailed),
			StatusMessage: "Job rejected",
			Error:         ErrQueueFull.Error(),
		}); err != nil {
			q.logger.Error("failed to mark rejected job", zap.String("job_id", id), zap.Error(err))
		}
		return nil, ErrQueueFull
	}

	q.logger.Info("job submitted", zap.String("job_id", id))
	return job, nil
}

// Status returns the current job record.
func (q *Queue) Status(ctx context.Context, id string) (*types.Job, error) {
	job, err := q.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// Start launches the workers. Cancelling ctx or calling Stop ends them.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true

	ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work(ctx, i)
	}
	q.logger.Info("job workers started", zap.Int("workers", q.workers))
}

// Stop closes the queue, cancels running jobs and waits for the workers.
// Jobs still buffered are run with the cancelled context so they reach a
// terminal state. If the workers were never started, buffered jobs are marked
// FAILED instead.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	if q.cancel != nil {
		q.cancel()
	}
	started := q.started
	q.mu.Unlock()

	if !started {
		q.abandon()
		return
	}
	q.wg.Wait()
	q.logger.Info("job workers stopped")
}

// abandon fails every job left in the closed channel.
func (q *Queue) abandon() {
	ctx := context.Background()
	for job := range q.jobs {
		if err := q.store.UpdateJob(ctx, db.JobUpdate{
			ID:            job.ID,
			Status:        types.JobFailed,
			Stage:         string(pipeline.StageFailed),
			StatusMessage: "Job abandoned",
			Error:         ErrQueueStopped.Error(),
		}); err != nil && !errors.Is(err, db.ErrJobNotWritable) {
			q.logger.Error("failed to mark abandoned job", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		q.logger.Warn("job abandoned: queue stopped before workers started", zap.String("job_id", job.ID))
	}
}

func (q *Queue) work(ctx context.Context, worker int) {
	defer q.wg.Done()
	logger := q.logger.With(zap.Int("worker", worker))

	for job := range q.jobs {
		start := time.Now()
		err := q.run(ctx, job)
		fields := []zap.Field{
			zap.String("job_id", job.ID),
			zap.Duration("elapsed", time.Since(start)),
		}
		if err != nil {
			logger.Warn("job finished with error", append(fields, zap.Error(err))...)
			continue
		}
		logger.Info("job finished", fields...)
	}
}

// run shields the worker from a panicking runner.
func (q *Queue) run(ctx context.Context, job *types.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
			if uerr := q.store.UpdateJob(context.WithoutCancel(ctx), db.JobUpdate{
				ID:     job.ID,
				Status: types.JobFailed,
				Stage:  string(pipeline.StageFailed),
				Error:  err.Error(),
			}); uerr != nil && !errors.Is(uerr, db.ErrJobNotWritable) {
				q.logger.Error("failed to mark panicked job", zap.String("job_id", job.ID), zap.Error(uerr))
			}
		}
	}()
	return q.runner.Run(ctx, job)
}
