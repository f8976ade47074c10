package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0644))
	return p
}

const minimalConfig = `
pipeline:
  scratch_dir: /tmp/ff-test
queue:
  type: redis
  source_queue: videos-in
  result_queue: frames-out
`

func TestLoadFillsDefaults(t *testing.T) {
	cfg, err := NewConfigLoader(zap.NewNop()).Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "ffmpeg", cfg.Pipeline.FFMpegPath)
	assert.Equal(t, "frame-%04d.png", cfg.Pipeline.FramePattern)
	assert.EqualValues(t, 3, cfg.Pipeline.Retry.MaxAttempts)
	assert.Equal(t, 1.0, cfg.Pipeline.Retry.InitialIntervalSec)
	assert.Equal(t, 2.0, cfg.Pipeline.Retry.BackoffCoefficient)
	assert.Equal(t, 1800, cfg.Pipeline.Timeouts.ExtractSec)

	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "/tmp/ff-test/blobs", cfg.Storage.Local.BasePath)
	assert.Equal(t, "videos", cfg.Storage.VideoBucket)
	assert.Equal(t, "videos", cfg.Storage.ResultBucket)

	assert.Equal(t, "localhost:6379", cfg.Queue.Redis.Addr)
	assert.Equal(t, 30, cfg.Queue.Redis.RedeliverDelaySec)
	assert.EqualValues(t, 10, cfg.Queue.PublishDelaySec)
	assert.Equal(t, "log", cfg.Notifier.Type)
	assert.Equal(t, "log", cfg.Notifier.TopicARN)
	assert.Equal(t, "none", cfg.Status.Type)
	assert.False(t, cfg.Status.RecordFailures)

	assert.EqualValues(t, 10, cfg.Consumer.BatchSize)
	assert.EqualValues(t, 10, cfg.Consumer.WaitTimeSec)
	assert.Equal(t, 1, cfg.Consumer.Concurrency)
	assert.Equal(t, "inline", cfg.Consumer.Dispatch)
	assert.Equal(t, "frameforge", cfg.Temporal.TaskQueue)

	assert.Equal(t, ":3000", cfg.HTTP.Addr)
	assert.Equal(t, "/tmp/ff-test/uploads", cfg.HTTP.UploadDir)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadKeepsExplicitZeroDelay(t *testing.T) {
	cfg, err := NewConfigLoader(zap.NewNop()).Load(writeConfig(t, minimalConfig+"  publish_delay_sec: 0\n"))
	require.NoError(t, err)
	assert.EqualValues(t, 0, cfg.Queue.PublishDelaySec)
}

func TestLoadSQSDefaultsPublishDelay(t *testing.T) {
	cfg, err := NewConfigLoader(zap.NewNop()).Load(writeConfig(t, `
queue:
  type: sqs
  source_queue: https://sqs.us-east-1.amazonaws.com/1/in
  sqs:
    region: us-east-1
`))
	require.NoError(t, err)
	assert.EqualValues(t, 10, cfg.Queue.PublishDelaySec)
	assert.EqualValues(t, 10, cfg.Consumer.WaitTimeSec)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("FRAMEFORGE_QUEUE_SOURCE_QUEUE", "from-env")
	t.Setenv("FRAMEFORGE_STATUS_RECORD_FAILURES", "true")
	t.Setenv("FRAMEFORGE_STATUS_TYPE", "gorm")
	t.Setenv("FRAMEFORGE_STATUS_DSN", "file:status.db")

	cfg, err := NewConfigLoader(zap.NewNop()).Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Queue.SourceQueue)
	assert.True(t, cfg.Status.RecordFailures)
	assert.Equal(t, "sqlite", cfg.Status.Dialect)
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := NewConfigLoader(zap.NewNop()).Load(writeConfig(t, `
storage:
  type: S3
  video_bucket: videos
  result_bucket: frames
  s3:
    aws:
      region: us-east-1
queue:
  type: sqs
  source_queue: https://sqs.us-east-1.amazonaws.com/1/in
  publish_delay_sec: 10
  sqs:
    region: us-east-1
notifier:
  type: sns
  topic_arn: arn:aws:sns:us-east-1:1:frames
  sns:
    region: us-east-1
consumer:
  dispatch: Temporal
  concurrency: 4
`))
	require.NoError(t, err)
	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, "frames", cfg.Storage.ResultBucket)
	assert.EqualValues(t, 10, cfg.Queue.PublishDelaySec)
	assert.Equal(t, "temporal", cfg.Consumer.Dispatch)
	assert.Equal(t, 4, cfg.Consumer.Concurrency)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"storage backend", minimalConfig + "storage:\n  type: ftp\n"},
		{"s3 without bucket", minimalConfig + "storage:\n  type: s3\n  s3:\n    aws:\n      region: eu-west-1\n"},
		{"minio without keys", minimalConfig + "storage:\n  type: minio\n  video_bucket: v\n  minio:\n    endpoint: localhost:9000\n"},
		{"sqs without region", "queue:\n  type: sqs\n  source_queue: in\n"},
		{"missing source queue", "queue:\n  type: redis\n"},
		{"queue backend", "queue:\n  type: kafka\n  source_queue: in\n"},
		{"publish delay", minimalConfig + "  publish_delay_sec: 901\n"},
		{"sns without topic", minimalConfig + "notifier:\n  type: sns\n  sns:\n    region: us-east-1\n"},
		{"status without dsn", minimalConfig + "status:\n  type: postgres\n"},
		{"status dialect", minimalConfig + "status:\n  type: gorm\n  dialect: mysql\n  dsn: x\n"},
		{"sqs batch", "queue:\n  type: sqs\n  source_queue: in\n  sqs:\n    region: us-east-1\nconsumer:\n  batch_size: 11\n"},
		{"sqs wait time", "queue:\n  type: sqs\n  source_queue: in\n  sqs:\n    region: us-east-1\nconsumer:\n  wait_time_sec: 60\n"},
		{"redis redeliver delay", minimalConfig + "  redis:\n    redeliver_delay_sec: -1\n"},
		{"dispatch mode", minimalConfig + "consumer:\n  dispatch: lambda\n"},
		{"frame pattern", "pipeline:\n  frame_pattern: frame.png\nqueue:\n  type: redis\n  source_queue: in\n"},
		{"log level", minimalConfig + "logging:\n  level: verbose\n"},
		{"log file", minimalConfig + "logging:\n  output: file\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfigLoader(zap.NewNop()).Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewConfigLoader(zap.NewNop()).Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
