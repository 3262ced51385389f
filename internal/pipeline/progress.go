package pipeline

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jonathan/talent-pipeline/internal/db"
	"github.com/jonathan/talent-pipeline/internal/types"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	JobID    string          `json:"jobId"`
	Stage    Stage           `json:"stage"`
	Status   types.JobStatus `json:"status"`
	Progress int             `json:"progress"`
	Message  string          `json:"message"`
	Error    string          `json:"error,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// Tracker writes job progress to the job store. Progress never decreases and
// a terminal job is never written again.
type Tracker struct {
	store      db.JobStore
	jobID      string
	onProgress ProgressCallback
	logger     *zap.Logger

	mu       sync.Mutex
	stage    Stage
	progress int
	terminal bool
}

// NewTracker creates a Tracker for one job. onProgress may be nil.
func NewTracker(store db.JobStore, jobID string, onProgress ProgressCallback, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		store:      store,
		jobID:      jobID,
		onProgress: onProgress,
		logger:     logger,
		stage:      StagePending,
	}
}

// Stage returns the last stage entered.
func (t *Tracker) Stage() Stage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stage
}

// Progress returns the last progress value written.
func (t *Tracker) Progress() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

// Enter records the start of stage. It must be called before the stage does
// any work. A non-nil results is stored as the job's partial results so
// pollers see what earlier stages produced.
func (t *Tracker) Enter(ctx context.Context, stage Stage, message string, results *types.JobResults) error {
	def, err := Definition(stage)
	if err != nil {
		return err
	}
	if message == "" {
		message = def.Message
	}
	return t.write(ctx, stage, types.JobProcessing, def.Progress, message, results, "")
}

// Complete moves the job to COMPLETED at 100%.
func (t *Tracker) Complete(ctx context.Context, message string, results *types.JobResults) error {
	return t.write(ctx, StageCompleted, types.JobCompleted, 100, message, results, "")
}

// Fail moves the job to FAILED, keeping its progress and storing cause verbatim.
func (t *Tracker) Fail(ctx context.Context, cause error, results *types.JobResults) error {
	t.mu.Lock()
	stage := t.stage
	progress := t.progress
	t.mu.Unlock()
	return t.write(ctx, StageFailed, types.JobFailed, progress,
		fmt.Sprintf("Failed during %s: %v", stage, cause), results, cause.Error())
}

func (t *Tracker) write(ctx context.Context, stage Stage, status types.JobStatus, progress int, message string, results *types.JobResults, errMsg string) error {
	t.mu.Lock()
	if t.terminal {
		t.mu.Unlock()
		return db.ErrJobNotWritable
	}
	if progress < t.progress {
		progress = t.progress
	}
	t.mu.Unlock()

	err := t.store.UpdateJob(ctx, db.JobUpdate{
		ID:            t.jobID,
		Status:        status,
		Stage:         string(stage),
		Progress:      progress,
		StatusMessage: message,
		Results:       results,
		Error:         errMsg,
	})
	if err != nil {
		return fmt.Errorf("failed to record %s progress: %w", stage, err)
	}

	t.mu.Lock()
	t.stage = stage
	t.progress = progress
	t.terminal = status.IsTerminal()
	t.mu.Unlock()

	t.logger.Info("job progress",
		zap.String("stage", string(stage)),
		zap.Int("progress", progress),
		zap.String("message", message))

	if t.onProgress != nil {
		t.onProgress(ProgressEvent{
			JobID:    t.jobID,
			Stage:    stage,
			Status:   status,
			Progress: progress,
			Message:  message,
			Error:    errMsg,
		})
	}
	return nil
}
