package job

import (
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents where a job is in the pipeline
type JobStatus string

const (
	StatusPending     JobStatus = "pending"
	StatusDownloading JobStatus = "downloading"
	StatusExtracting  JobStatus = "extracting"
	StatusArchiving   JobStatus = "archiving"
	StatusUploading   JobStatus = "uploading"
	StatusNotified    JobStatus = "notified"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
)

var statusRank = map[JobStatus]int{
	StatusPending:     0,
	StatusDownloading: 1,
	StatusExtracting:  2,
	StatusArchiving:   3,
	StatusUploading:   4,
	StatusNotified:    5,
	StatusCompleted:   6,
}

// Terminal reports whether no further transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// SourceRef points at the input video. Exactly one of LocalPath or
// (Bucket, Key) is expected to be set.
type SourceRef struct {
	LocalPath string `json:"local_path,omitempty"`
	Bucket    string `json:"bucket,omitempty"`
	Key       string `json:"key,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

func (s SourceRef) IsBlob() bool {
	return s.LocalPath == "" && s.Key != ""
}

func (s SourceRef) Empty() bool {
	return s.LocalPath == "" && s.Key == ""
}

// Job represents a single video to frames-archive request
type Job struct {
	ID            string    `json:"id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Source        SourceRef `json:"source"`
	WorkDir       string    `json:"-"`
	InputPath     string    `json:"-"`
	OutputDir     string    `json:"-"`
	ArchivePath   string    `json:"-"`
	Status        JobStatus `json:"status"`
	ResultRef     string    `json:"result_ref,omitempty"`
	ResultURL     string    `json:"result_url,omitempty"`
	ErrorDetail   string    `json:"error_detail,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// NewJob creates a Pending job whose scratch paths live under a directory
// private to this instance: the id is combined with a fresh run token, so a
// retried job never lands in a previous run's directory.
func NewJob(id string, src SourceRef, scratchRoot string) *Job {
	if id == "" {
		id = uuid.NewString()
	}
	runDir := fmt.Sprintf("%s-%s", sanitize(id), uuid.NewString())
	workDir := filepath.Join(scratchRoot, runDir)

	input := src.LocalPath
	if src.IsBlob() {
		input = filepath.Join(workDir, "input"+filepath.Ext(src.Key))
	}

	now := time.Now()
	return &Job{
		ID:          id,
		Source:      src,
		WorkDir:     workDir,
		InputPath:   input,
		OutputDir:   filepath.Join(workDir, "frames"),
		ArchivePath: filepath.Join(workDir, "frames.zip"),
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func sanitize(id string) string {
	s := unsafeChars.ReplaceAllString(id, "_")
	if len(s) > 64 {
		s = s[:64]
	}
	return s
}

// Advance moves the job forward. Skipping stages is allowed, moving back or
// leaving a terminal state is not.
func (j *Job) Advance(next JobStatus) error {
	if j.Status.Terminal() {
		return fmt.Errorf("job %s is already %s", j.ID, j.Status)
	}
	if next == StatusFailed {
		return fmt.Errorf("use Fail to mark job %s failed", j.ID)
	}
	nr, ok := statusRank[next]
	if !ok {
		return fmt.Errorf("unknown job status: %s", next)
	}
	if nr <= statusRank[j.Status] {
		return fmt.Errorf("job %s cannot move from %s to %s", j.ID, j.Status, next)
	}
	j.Status = next
	j.UpdatedAt = time.Now()
	return nil
}

// Fail records err and freezes the job. A job that is already terminal is
// left untouched.
func (j *Job) Fail(err error) bool {
	if j.Status.Terminal() {
		return false
	}
	j.Status = StatusFailed
	if err != nil {
		j.ErrorDetail = err.Error()
	}
	j.UpdatedAt = time.Now()
	return true
}

// SetResult records the uploaded artifact. Only valid while uploading.
func (j *Job) SetResult(key, url string) error {
	if j.Status != StatusUploading {
		return fmt.Errorf("job %s cannot take a result while %s", j.ID, j.Status)
	}
	j.ResultRef = key
	j.ResultURL = url
	return nil
}
