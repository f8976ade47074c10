package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"FrameForge/internal/job"
	types "FrameForge/pkg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
	"go.uber.org/zap"
)

func newWorkflowEnv(t *testing.T, h *harness) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivityWithOptions(NewActivities(h.orch, zap.NewNop()).RunJob, activity.RegisterOptions{Name: RunJobActivityName})
	return env
}

func TestFrameExtractionWorkflowRunsJob(t *testing.T) {
	h := newHarness(t)
	env := newWorkflowEnv(t, h)

	env.ExecuteWorkflow(FrameExtractionWorkflow, JobInput{
		ID:            "video-7",
		CorrelationID: "video-7",
		Source:        job.SourceRef{Bucket: "vids", Key: "a.mp4"},
		Timeout:       time.Minute,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out JobOutput
	require.NoError(t, env.GetWorkflowResult(&out))
	assert.Equal(t, job.StatusCompleted, out.Status)
	assert.NotEmpty(t, out.ResultRef)
	assert.Equal(t, []string{"get", "extract", "put", "publish", "status", "notify_success"}, h.rec.calls)
	assert.Equal(t, job.RecordFinality, h.status.updates["video-7"].Status)
}

func TestFrameExtractionWorkflowSurfacesPersistenceFailure(t *testing.T) {
	h := newHarness(t)
	h.status.err = errors.New("connection refused")
	env := newWorkflowEnv(t, h)

	env.ExecuteWorkflow(FrameExtractionWorkflow, JobInput{
		ID:            "video-8",
		CorrelationID: "video-8",
		Source:        job.SourceRef{Bucket: "vids", Key: "a.mp4"},
	})

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)
	assert.True(t, errors.Is(fromWorkflowError(err), job.ErrPersistence))
	assert.Equal(t, 1, h.rec.count("status"), "activity must not be retried")
}

func TestFrameExtractionWorkflowSurfacesValidation(t *testing.T) {
	h := newHarness(t)
	env := newWorkflowEnv(t, h)

	env.ExecuteWorkflow(FrameExtractionWorkflow, JobInput{
		ID:     "video-9",
		Source: job.SourceRef{Bucket: "vids", Key: "a.mov", MediaType: "video/quicktime"},
	})

	err := env.GetWorkflowError()
	require.Error(t, err)
	mapped := fromWorkflowError(err)
	assert.True(t, errors.Is(mapped, job.ErrUnsupportedFormat))
	assert.True(t, job.IsInputError(mapped))
	assert.Empty(t, h.rec.calls)
}

func TestFrameExtractionWorkflowDoesNotRetryActivity(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivityWithOptions(func(ctx context.Context, in JobInput) (JobOutput, error) {
		return JobOutput{}, nil
	}, activity.RegisterOptions{Name: RunJobActivityName})
	env.OnActivity(RunJobActivityName, mock.Anything, mock.Anything).
		Return(JobOutput{}, errors.New("worker lost")).Once()

	env.ExecuteWorkflow(FrameExtractionWorkflow, JobInput{ID: "x", Source: job.SourceRef{Bucket: "b", Key: "k"}})

	err := env.GetWorkflowError()
	require.Error(t, err)
	assert.True(t, errors.Is(fromWorkflowError(err), ErrDispatch))
	env.AssertExpectations(t)
}

func TestJobTimeout(t *testing.T) {
	p := types.PipelineConfig{
		Retry: types.RetryConfig{MaxAttempts: 3},
		Timeouts: types.TimeoutsConfig{
			DownloadSec: 10,
			ExtractSec:  100,
			ArchiveSec:  20,
			UploadSec:   10,
			PublishSec:  5,
			NotifySec:   5,
			StatusSec:   5,
		},
	}
	// 30 + 100 + 20 + 30 + 5 + 10 + 10
	assert.Equal(t, 205*time.Second+time.Minute, JobTimeout(p))
}
