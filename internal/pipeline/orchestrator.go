package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"FrameForge/internal/config"
	"FrameForge/internal/job"
	"FrameForge/internal/notify"
	"FrameForge/internal/pipeline/storage"
	"FrameForge/internal/queue"

	"go.uber.org/zap"
)

const archiveContentType = "application/zip"

// BlobStore is what the orchestrator needs from blob storage.
type BlobStore interface {
	Get(ctx context.Context, bucket, key, dst string) (string, error)
	Put(ctx context.Context, data []byte, key, bucket, contentType string) error
	URL(ctx context.Context, bucket, key string) (string, error)
}

// Publisher sends completion messages.
type Publisher interface {
	Publish(ctx context.Context, queueRef string, body []byte) error
}

// Outcome is the result of a best-effort step. It is logged and counted but
// never returned as an error.
type Outcome struct {
	Op  string
	Err error
}

func (o Outcome) OK() bool { return o.Err == nil }

// Result describes a job that went through Process.
type Result struct {
	Job         *job.Job
	ArchivePath string
	ResultKey   string
	ResultURL   string
	Outcomes    []Outcome
}

// Orchestrator drives one job at a time through every stage.
type Orchestrator struct {
	transcoder Transcoder
	archiver   Archiver
	blobs      BlobStore
	publisher  Publisher
	notifier   notify.Notifier
	status     job.StatusStore
	tracker    *job.Tracker
	config     *config.Config
	logger     *zap.Logger
	now        func() time.Time
}

func NewOrchestrator(
	transcoder Transcoder,
	archiver Archiver,
	blobs BlobStore,
	publisher Publisher,
	notifier notify.Notifier,
	status job.StatusStore,
	tracker *job.Tracker,
	cfg *config.Config,
	logger *zap.Logger,
) *Orchestrator {
	if status == nil {
		status = job.NopStatusStore{}
	}
	return &Orchestrator{
		transcoder: transcoder,
		archiver:   archiver,
		blobs:      blobs,
		publisher:  publisher,
		notifier:   notifier,
		status:     status,
		tracker:    tracker,
		config:     cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// NewJob creates a job with scratch paths under the configured scratch dir.
func (o *Orchestrator) NewJob(id string, src job.SourceRef) *job.Job {
	return job.NewJob(id, src, o.config.Pipeline.ScratchDir)
}

// Process runs the stages of j and returns the first classified failure.
// It never sends a failure notification. On success the scratch artifacts
// are left in place for the caller, who must call Cleanup.
func (o *Orchestrator) Process(ctx context.Context, j *job.Job) (*Result, error) {
	start := time.Now()
	res := &Result{Job: j}
	o.track(j)

	logger := o.logger.With(zap.String("job_id", j.ID))
	logger.Info("Job accepted",
		zap.String("bucket", j.Source.Bucket),
		zap.String("key", j.Source.Key),
		zap.String("local_path", j.Source.LocalPath),
		zap.String("correlation_id", j.CorrelationID),
	)

	if err := validate(j); err != nil {
		logger.Warn("Job rejected", zap.Error(err))
		o.fail(j, err)
		return res, err
	}

	if err := o.execute(ctx, j, res); err != nil {
		var jerr *job.Error
		if errors.As(err, &jerr) {
			logger.Error("Job failed", zap.String("op", jerr.Op), zap.NamedError("kind", jerr.Kind), zap.Error(err))
		} else {
			logger.Error("Job failed", zap.Error(err))
		}
		o.fail(j, err)
		o.Cleanup(j)
		return res, err
	}

	logger.Info("Job completed",
		zap.String("result_key", res.ResultKey),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// Run is the queue-driven entry point. Pipeline failures are reported
// through a failure notification and not returned; validation errors and
// PersistenceErrors are returned.
func (o *Orchestrator) Run(ctx context.Context, j *job.Job) error {
	_, err := o.Process(ctx, j)
	if err == nil {
		o.Cleanup(j)
		return nil
	}
	if job.IsInputError(err) {
		return err
	}

	o.bestEffort(ctx, j, "notify_failure", o.config.Pipeline.Timeouts.NotifySec, func(ctx context.Context) error {
		return o.notifier.Send(ctx, notify.Failure(o.config.Notifier.TopicARN))
	})

	if errors.Is(err, job.ErrPersistence) {
		return err
	}
	if o.config.Status.RecordFailures && j.CorrelationID != "" {
		if serr := o.updateStatus(ctx, j, job.StatusUpdate{Status: job.RecordFailed, ErrorDetail: j.ErrorDetail}); serr != nil {
			o.logger.Error("Failed to record job failure", zap.String("job_id", j.ID), zap.Error(serr))
			return serr
		}
	}
	return nil
}

// Cleanup removes the job's scratch directory unless keep_scratch is set.
func (o *Orchestrator) Cleanup(j *job.Job) {
	if o.config.Pipeline.KeepScratch || j.WorkDir == "" {
		return
	}
	if err := os.RemoveAll(j.WorkDir); err != nil {
		o.logger.Warn("Failed to remove scratch directory", zap.String("job_id", j.ID), zap.String("dir", j.WorkDir), zap.Error(err))
	}
}

func validate(j *job.Job) error {
	src := j.Source
	if src.Empty() {
		return job.NewError(job.ErrValidation, "validate", errors.New(job.MsgNoFile))
	}
	if src.IsBlob() {
		if src.Bucket == "" {
			return job.NewError(job.ErrValidation, "validate", fmt.Errorf("no bucket given for key %s", src.Key))
		}
		// queue messages usually carry no declared type
		if src.MediaType != "" && src.MediaType != job.AcceptedMediaType {
			return job.NewError(job.ErrUnsupportedFormat, "validate", errors.New(job.MsgUnsupportedType))
		}
		return nil
	}
	if info, err := os.Stat(src.LocalPath); err != nil || info.IsDir() {
		return job.NewError(job.ErrValidation, "validate", errors.New(job.MsgNoFile))
	}
	if src.MediaType != job.AcceptedMediaType {
		return job.NewError(job.ErrUnsupportedFormat, "validate", errors.New(job.MsgUnsupportedType))
	}
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, j *job.Job, res *Result) error {
	p := o.config.Pipeline

	if j.Source.IsBlob() {
		err := o.stage(ctx, j, job.StatusDownloading, p.Timeouts.DownloadSec, func(ctx context.Context) error {
			return Retry(ctx, o.logger, p.Retry, "download "+j.Source.Key, isPermanent, func() error {
				_, err := o.blobs.Get(ctx, j.Source.Bucket, j.Source.Key, j.InputPath)
				return err
			})
		})
		if err != nil {
			return job.NewError(job.ErrRetrieval, "download", err)
		}
	}

	if err := os.MkdirAll(j.OutputDir, 0755); err != nil {
		return job.NewError(job.ErrTranscode, "prepare", fmt.Errorf("failed to create output directory: %w", err))
	}

	err := o.stage(ctx, j, job.StatusExtracting, p.Timeouts.ExtractSec, func(ctx context.Context) error {
		return o.transcoder.ExtractFrames(ctx, j.InputPath, j.OutputDir)
	})
	if err != nil {
		return job.NewError(job.ErrTranscode, "extract", err)
	}

	err = o.stage(ctx, j, job.StatusArchiving, p.Timeouts.ArchiveSec, func(ctx context.Context) error {
		path, err := o.archiver.BuildArchive(ctx, j.OutputDir, j.ArchivePath)
		if err != nil {
			return err
		}
		res.ArchivePath = path
		return nil
	})
	if err != nil {
		return job.NewError(job.ErrArchive, "archive", err)
	}

	bucket := o.config.Storage.ResultBucket
	key := job.ResultKey(o.now())
	err = o.stage(ctx, j, job.StatusUploading, p.Timeouts.UploadSec, func(ctx context.Context) error {
		data, err := os.ReadFile(res.ArchivePath)
		if err != nil {
			return fmt.Errorf("failed to read archive: %w", err)
		}
		err = Retry(ctx, o.logger, p.Retry, "upload "+key, isPermanent, func() error {
			return o.blobs.Put(ctx, data, key, bucket, archiveContentType)
		})
		if err != nil {
			return err
		}
		return j.SetResult(key, "")
	})
	if err != nil {
		return job.NewError(job.ErrUpload, "upload", err)
	}
	res.ResultKey = key

	// the artifact is stored at this point; a missing link leaves ZipURL empty
	res.Outcomes = append(res.Outcomes, o.bestEffort(ctx, j, "result_url", p.Timeouts.UploadSec, func(ctx context.Context) error {
		u, err := o.blobs.URL(ctx, bucket, key)
		if err != nil {
			return err
		}
		return j.SetResult(key, u)
	}))
	url := j.ResultURL
	res.ResultURL = url
	o.track(j)

	if q := o.config.Queue.ResultQueue; q != "" {
		res.Outcomes = append(res.Outcomes, o.bestEffort(ctx, j, "publish", p.Timeouts.PublishSec, func(ctx context.Context) error {
			body, err := queue.CompletionMessage{Key: key, BucketName: bucket}.Encode()
			if err != nil {
				return err
			}
			return o.publisher.Publish(ctx, q, body)
		}))
	}

	if j.CorrelationID != "" {
		if err := o.updateStatus(ctx, j, job.StatusUpdate{Status: job.RecordFinality, ZipURL: url}); err != nil {
			return err
		}
	}

	notified := o.bestEffort(ctx, j, "notify_success", p.Timeouts.NotifySec, func(ctx context.Context) error {
		return o.notifier.Send(ctx, notify.Success(o.config.Notifier.TopicARN))
	})
	res.Outcomes = append(res.Outcomes, notified)
	if notified.OK() {
		_ = j.Advance(job.StatusNotified)
	}
	_ = j.Advance(job.StatusCompleted)
	o.track(j)
	observeJob(string(job.StatusCompleted))
	return nil
}

// stage advances j to status and runs fn under the stage timeout.
func (o *Orchestrator) stage(ctx context.Context, j *job.Job, status job.JobStatus, timeoutSec int, fn func(ctx context.Context) error) error {
	if err := j.Advance(status); err != nil {
		return err
	}
	o.track(j)

	if timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
		defer cancel()
	}

	start := time.Now()
	o.logger.Info("Stage started", zap.String("job_id", j.ID), zap.String("stage", string(status)))
	err := fn(ctx)
	d := time.Since(start)
	observeStage(string(status), d)
	if err != nil {
		o.logger.Error("Stage failed", zap.String("job_id", j.ID), zap.String("stage", string(status)),
			zap.Duration("duration", d), zap.Error(err))
		return err
	}
	o.logger.Info("Stage completed", zap.String("job_id", j.ID), zap.String("stage", string(status)),
		zap.Duration("duration", d))
	return nil
}

func (o *Orchestrator) bestEffort(ctx context.Context, j *job.Job, op string, timeoutSec int, fn func(ctx context.Context) error) Outcome {
	if timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
		defer cancel()
	}
	out := Outcome{Op: op, Err: fn(ctx)}
	if !out.OK() {
		observeBestEffortFailure(op)
		o.logger.Warn("Best-effort step failed", zap.String("job_id", j.ID), zap.String("op", op), zap.Error(out.Err))
	}
	return out
}

func (o *Orchestrator) updateStatus(ctx context.Context, j *job.Job, update job.StatusUpdate) error {
	if t := o.config.Pipeline.Timeouts.StatusSec; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(t)*time.Second)
		defer cancel()
	}
	err := o.status.Update(ctx, j.CorrelationID, update)
	if err == nil {
		o.logger.Info("Job status updated", zap.String("job_id", j.ID),
			zap.String("correlation_id", j.CorrelationID), zap.String("status", update.Status))
		return nil
	}
	if !errors.Is(err, job.ErrPersistence) {
		err = job.NewError(job.ErrPersistence, "status", err)
	}
	return err
}

func (o *Orchestrator) fail(j *job.Job, err error) {
	if j.Fail(err) {
		o.track(j)
		observeJob(string(job.StatusFailed))
	}
}

func (o *Orchestrator) track(j *job.Job) {
	o.tracker.Record(j)
}

// isPermanent stops retries for faults another attempt cannot fix.
func isPermanent(err error) bool {
	return errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidPut)
}
