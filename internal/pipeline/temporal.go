package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FrameForge/internal/job"
	types "FrameForge/pkg"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"
)

const (
	FrameExtractionWorkflowName = "FrameExtractionWorkflow"
	RunJobActivityName          = "RunJobActivity"

	errTypePersistence = "PersistenceError"
	errTypeValidation  = "ValidationError"
	errTypeUnsupported = "UnsupportedFormatError"
)

// ErrDispatch means the job could not be handed over or its outcome is
// unknown. The message should be redelivered.
var ErrDispatch = errors.New("dispatch failed")

// JobInput is the serializable job descriptor passed through Temporal.
// Scratch paths are derived again on the worker host.
type JobInput struct {
	ID            string        `json:"id"`
	CorrelationID string        `json:"correlation_id,omitempty"`
	Source        job.SourceRef `json:"source"`
	Timeout       time.Duration `json:"timeout"`
}

type JobOutput struct {
	Status      job.JobStatus `json:"status"`
	ResultRef   string        `json:"result_ref,omitempty"`
	ResultURL   string        `json:"result_url,omitempty"`
	ErrorDetail string        `json:"error_detail,omitempty"`
}

// JobTimeout bounds a whole job run from the per-stage limits.
func JobTimeout(p types.PipelineConfig) time.Duration {
	t := p.Timeouts
	attempts := int(p.Retry.MaxAttempts)
	if attempts < 1 {
		attempts = 1
	}
	sec := t.DownloadSec*attempts + t.ExtractSec + t.ArchiveSec + t.UploadSec*attempts +
		t.PublishSec + 2*t.NotifySec + 2*t.StatusSec
	return time.Duration(sec)*time.Second + time.Minute
}

// FrameExtractionWorkflow runs one job as a single activity. Side effects
// are not idempotent, so the activity is never retried by Temporal.
func FrameExtractionWorkflow(ctx workflow.Context, input JobInput) (JobOutput, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting frame extraction workflow",
		"job_id", input.ID,
		"bucket", input.Source.Bucket,
		"key", input.Source.Key)

	timeout := input.Timeout
	if timeout <= 0 {
		timeout = time.Hour
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	var out JobOutput
	if err := workflow.ExecuteActivity(ctx, RunJobActivityName, input).Get(ctx, &out); err != nil {
		logger.Error("Frame extraction activity failed", "job_id", input.ID, "error", err)
		return out, err
	}
	logger.Info("Frame extraction workflow finished", "job_id", input.ID, "status", string(out.Status))
	return out, nil
}

// Activities hosts the orchestrator inside a Temporal worker.
type Activities struct {
	orchestrator *Orchestrator
	logger       *zap.Logger
}

func NewActivities(orchestrator *Orchestrator, logger *zap.Logger) *Activities {
	return &Activities{orchestrator: orchestrator, logger: logger}
}

func (a *Activities) RunJob(ctx context.Context, input JobInput) (JobOutput, error) {
	info := activity.GetInfo(ctx)
	a.logger.Info("Running job activity",
		zap.String("job_id", input.ID),
		zap.String("workflow_id", info.WorkflowExecution.ID))

	j := a.orchestrator.NewJob(input.ID, input.Source)
	j.CorrelationID = input.CorrelationID
	err := a.orchestrator.Run(ctx, j)

	out := JobOutput{
		Status:      j.Status,
		ResultRef:   j.ResultRef,
		ResultURL:   j.ResultURL,
		ErrorDetail: j.ErrorDetail,
	}
	if err != nil {
		return out, toApplicationError(err)
	}
	return out, nil
}

func toApplicationError(err error) error {
	switch {
	case errors.Is(err, job.ErrPersistence):
		return temporal.NewNonRetryableApplicationError(err.Error(), errTypePersistence, nil)
	case errors.Is(err, job.ErrUnsupportedFormat):
		return temporal.NewNonRetryableApplicationError(err.Error(), errTypeUnsupported, nil)
	case errors.Is(err, job.ErrValidation):
		return temporal.NewNonRetryableApplicationError(err.Error(), errTypeValidation, nil)
	default:
		return err
	}
}

// fromWorkflowError maps a workflow failure back onto the job error kinds.
func fromWorkflowError(err error) error {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		switch appErr.Type() {
		case errTypePersistence:
			return job.NewError(job.ErrPersistence, "temporal", errors.New(appErr.Message()))
		case errTypeValidation:
			return job.NewError(job.ErrValidation, "temporal", errors.New(appErr.Message()))
		case errTypeUnsupported:
			return job.NewError(job.ErrUnsupportedFormat, "temporal", errors.New(appErr.Message()))
		}
	}
	return fmt.Errorf("%w: %v", ErrDispatch, err)
}

// TemporalWorkflow owns the worker that executes FrameExtractionWorkflow
type TemporalWorkflow struct {
	client     client.Client
	worker     worker.Worker
	taskQueue  string
	activities *Activities
	logger     *zap.Logger
}

func NewTemporalWorkflow(c client.Client, taskQueue string, orchestrator *Orchestrator, logger *zap.Logger) *TemporalWorkflow {
	return &TemporalWorkflow{
		client:     c,
		taskQueue:  taskQueue,
		activities: NewActivities(orchestrator, logger),
		logger:     logger,
	}
}

// StartWorker registers the workflow and activity and starts polling
func (tw *TemporalWorkflow) StartWorker() error {
	tw.worker = worker.New(tw.client, tw.taskQueue, worker.Options{})
	tw.worker.RegisterWorkflowWithOptions(FrameExtractionWorkflow, workflow.RegisterOptions{Name: FrameExtractionWorkflowName})
	tw.worker.RegisterActivityWithOptions(tw.activities.RunJob, activity.RegisterOptions{Name: RunJobActivityName})

	tw.logger.Info("Starting Temporal worker", zap.String("task_queue", tw.taskQueue))
	return tw.worker.Start()
}

// StopWorker stops the Temporal worker
func (tw *TemporalWorkflow) StopWorker() {
	if tw.worker != nil {
		tw.worker.Stop()
	}
}

// TemporalDispatcher hands jobs to FrameExtractionWorkflow and waits for the
// outcome. It has the same contract as Orchestrator.Run.
type TemporalDispatcher struct {
	client    client.Client
	taskQueue string
	timeout   time.Duration
	logger    *zap.Logger
}

func NewTemporalDispatcher(c client.Client, taskQueue string, timeout time.Duration, logger *zap.Logger) *TemporalDispatcher {
	return &TemporalDispatcher{client: c, taskQueue: taskQueue, timeout: timeout, logger: logger}
}

func (d *TemporalDispatcher) Run(ctx context.Context, j *job.Job) error {
	input := JobInput{
		ID:            j.ID,
		CorrelationID: j.CorrelationID,
		Source:        j.Source,
		Timeout:       d.timeout,
	}
	opts := client.StartWorkflowOptions{
		ID:                       "frame-extraction-" + j.ID,
		TaskQueue:                d.taskQueue,
		WorkflowExecutionTimeout: d.timeout + time.Minute,
	}

	we, err := d.client.ExecuteWorkflow(ctx, opts, FrameExtractionWorkflowName, input)
	if err != nil {
		return fmt.Errorf("%w: failed to start workflow: %v", ErrDispatch, err)
	}
	d.logger.Info("Workflow started",
		zap.String("job_id", j.ID),
		zap.String("workflow_id", we.GetID()),
		zap.String("run_id", we.GetRunID()))

	var out JobOutput
	if err := we.Get(ctx, &out); err != nil {
		return fromWorkflowError(err)
	}
	// mirror the worker's outcome onto the local descriptor
	j.Status = out.Status
	j.ResultRef = out.ResultRef
	j.ResultURL = out.ResultURL
	j.ErrorDetail = out.ErrorDetail

	d.logger.Info("Workflow finished",
		zap.String("job_id", j.ID),
		zap.String("status", string(out.Status)),
		zap.String("result_ref", out.ResultRef))
	return nil
}
