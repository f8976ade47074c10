package job

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobScratchPathsAreUnique(t *testing.T) {
	root := t.TempDir()
	src := SourceRef{Bucket: "vids", Key: "a.mp4"}

	a := NewJob("video-1", src, root)
	b := NewJob("video-1", src, root)

	assert.Equal(t, StatusPending, a.Status)
	assert.NotEqual(t, a.WorkDir, b.WorkDir)
	assert.NotEqual(t, a.OutputDir, b.OutputDir)
	assert.NotEqual(t, a.ArchivePath, b.ArchivePath)
	assert.True(t, strings.HasPrefix(a.OutputDir, a.WorkDir))
	assert.Equal(t, filepath.Join(a.WorkDir, "input.mp4"), a.InputPath)
}

func TestNewJobKeepsLocalSource(t *testing.T) {
	j := NewJob("", SourceRef{LocalPath: "/tmp/clip.mp4", MediaType: "video/mp4"}, t.TempDir())

	assert.NotEmpty(t, j.ID)
	assert.Equal(t, "/tmp/clip.mp4", j.InputPath)
	assert.False(t, j.Source.IsBlob())
}

func TestNewJobSanitizesID(t *testing.T) {
	root := t.TempDir()
	j := NewJob("../../etc/passwd", SourceRef{Key: "k"}, root)

	assert.Equal(t, root, filepath.Dir(j.WorkDir))
	assert.NotContains(t, filepath.Base(j.WorkDir), "/")
}

func TestAdvanceIsMonotonic(t *testing.T) {
	j := NewJob("x", SourceRef{Key: "k"}, t.TempDir())

	require.NoError(t, j.Advance(StatusDownloading))
	require.NoError(t, j.Advance(StatusExtracting))
	assert.Error(t, j.Advance(StatusDownloading))
	assert.Error(t, j.Advance(StatusExtracting))
	require.NoError(t, j.Advance(StatusArchiving))
	require.NoError(t, j.Advance(StatusUploading))
	require.NoError(t, j.Advance(StatusNotified))
	require.NoError(t, j.Advance(StatusCompleted))

	assert.Error(t, j.Advance(StatusNotified))
	assert.False(t, j.Fail(errors.New("late")))
	assert.Equal(t, StatusCompleted, j.Status)
	assert.Empty(t, j.ErrorDetail)
}

func TestAdvanceAllowsSkippingForward(t *testing.T) {
	j := NewJob("x", SourceRef{LocalPath: "/tmp/a.mp4"}, t.TempDir())

	require.NoError(t, j.Advance(StatusExtracting))
	require.NoError(t, j.Advance(StatusCompleted))
}

func TestAdvanceRejectsFailed(t *testing.T) {
	j := NewJob("x", SourceRef{Key: "k"}, t.TempDir())
	assert.Error(t, j.Advance(StatusFailed))
	assert.Equal(t, StatusPending, j.Status)
}

func TestFailFreezesJob(t *testing.T) {
	j := NewJob("x", SourceRef{Key: "k"}, t.TempDir())
	require.NoError(t, j.Advance(StatusExtracting))

	assert.True(t, j.Fail(errors.New("engine crashed")))
	assert.Equal(t, StatusFailed, j.Status)
	assert.Equal(t, "engine crashed", j.ErrorDetail)

	assert.False(t, j.Fail(errors.New("second")))
	assert.Equal(t, "engine crashed", j.ErrorDetail)
	assert.Error(t, j.Advance(StatusArchiving))
}

func TestSetResultOnlyWhileUploading(t *testing.T) {
	j := NewJob("x", SourceRef{Key: "k"}, t.TempDir())
	assert.Error(t, j.SetResult("key", "url"))
	assert.Empty(t, j.ResultRef)

	require.NoError(t, j.Advance(StatusUploading))
	require.NoError(t, j.SetResult("key", "url"))
	assert.Equal(t, "key", j.ResultRef)
	assert.Equal(t, "url", j.ResultURL)
}

func TestResultKeyFormat(t *testing.T) {
	day := time.Date(2024, time.March, 7, 23, 59, 0, 0, time.UTC)
	key := ResultKey(day)

	re := regexp.MustCompile(`^file-07-03-2024-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.zip$`)
	assert.Regexp(t, re, key)
}

func TestResultKeyUniqueWithinDay(t *testing.T) {
	day := time.Date(2024, time.March, 7, 12, 0, 0, 0, time.UTC)
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		k := ResultKey(day)
		_, dup := seen[k]
		require.False(t, dup, "duplicate key %s", k)
		seen[k] = struct{}{}
	}
}

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewError(ErrTranscode, "extract", errors.New("exit status 1")))

	assert.True(t, errors.Is(err, ErrTranscode))
	assert.False(t, errors.Is(err, ErrArchive))
	assert.Equal(t, ErrTranscode, KindOf(err))
	assert.Equal(t, "wrapped: exit status 1", err.Error())
	assert.Nil(t, KindOf(errors.New("plain")))
}

func TestValidationMessagesAreVerbatim(t *testing.T) {
	err := NewError(ErrValidation, "validate", errors.New(MsgNoFile))
	assert.Equal(t, "No file uploaded!", err.Error())
	assert.True(t, IsInputError(err))

	err = NewError(ErrUnsupportedFormat, "validate", errors.New(MsgUnsupportedType))
	assert.Equal(t, "Invalid file type. Only MP4 files are allowed.", err.Error())
	assert.True(t, IsInputError(err))

	assert.False(t, IsInputError(NewError(ErrUpload, "upload", nil)))
	assert.Equal(t, "upload error", NewError(ErrUpload, "upload", nil).Error())
}
