package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const envPrefix = "FRAMEFORGE"

type ConfigLoader struct {
	logger *zap.Logger
	v      *viper.Viper
}

func NewConfigLoader(logger *zap.Logger) *ConfigLoader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)
	setDefaults(v)
	return &ConfigLoader{
		logger: logger,
		v:      v,
	}
}

// bindEnvKeys registers every key a deployment commonly overrides so that
// Unmarshal sees them even when the yaml file leaves them out.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"storage.type", "storage.video_bucket", "storage.result_bucket", "storage.public_base_url",
		"storage.s3.aws.region", "storage.s3.aws.endpoint", "storage.s3.aws.access_key_id", "storage.s3.aws.secret_access_key",
		"storage.minio.endpoint", "storage.minio.access_key", "storage.minio.secret_key",
		"queue.type", "queue.source_queue", "queue.result_queue", "queue.redis.addr", "queue.redis.password",
		"queue.sqs.region", "queue.sqs.endpoint", "queue.sqs.access_key_id", "queue.sqs.secret_access_key",
		"notifier.type", "notifier.topic_arn",
		"notifier.sns.region", "notifier.sns.endpoint", "notifier.sns.access_key_id", "notifier.sns.secret_access_key",
		"status.type", "status.dialect", "status.dsn", "status.record_failures",
		"consumer.dispatch", "consumer.concurrency",
		"temporal.host_port", "temporal.namespace", "temporal.task_queue",
		"http.addr", "logging.level",
	} {
		_ = v.BindEnv(key)
	}
}

// setDefaults covers keys where zero is a valid explicit value.
func setDefaults(v *viper.Viper) {
	v.SetDefault("queue.publish_delay_sec", 10)
	v.SetDefault("queue.redis.redeliver_delay_sec", 30)
}

func (cl *ConfigLoader) Load(filePath string) (*Config, error) {
	cl.v.SetConfigFile(filePath)
	if err := cl.v.ReadInConfig(); err != nil {
		cl.logger.Error("Failed to read config file", zap.String("file", filePath), zap.Error(err))
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := cl.v.Unmarshal(&cfg); err != nil {
		cl.logger.Error("Failed to unmarshal config", zap.Error(err))
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cl.validate(&cfg); err != nil {
		cl.logger.Error("Config validation failed", zap.Error(err))
		return nil, err
	}

	cl.logger.Info("Config loaded successfully",
		zap.String("file", filePath),
		zap.String("storage", cfg.Storage.Type),
		zap.String("queue", cfg.Queue.Type),
		zap.String("notifier", cfg.Notifier.Type),
		zap.String("status", cfg.Status.Type))
	return &cfg, nil
}

func (cl *ConfigLoader) validate(cfg *Config) error {
	if err := validatePipeline(cfg); err != nil {
		return err
	}
	if err := validateStorage(cfg); err != nil {
		return err
	}
	if err := validateQueue(cfg); err != nil {
		return err
	}
	if err := validateNotifier(cfg); err != nil {
		return err
	}
	if err := validateStatus(cfg); err != nil {
		return err
	}
	if err := validateConsumer(cfg); err != nil {
		return err
	}

	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":3000"
	}
	if cfg.HTTP.MaxUploadMB <= 0 {
		cfg.HTTP.MaxUploadMB = 512
	}
	if cfg.HTTP.UploadDir == "" {
		cfg.HTTP.UploadDir = filepath.Join(cfg.Pipeline.ScratchDir, "uploads")
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if !isValidLogLevel(cfg.Logging.Level) {
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "console"
	}
	if cfg.Logging.Output == "file" && cfg.Logging.FilePath == "" {
		return fmt.Errorf("file_path required for file logging")
	}

	return nil
}

func validatePipeline(cfg *Config) error {
	p := &cfg.Pipeline
	if p.FFMpegPath == "" {
		p.FFMpegPath = "ffmpeg"
	}
	if p.ScratchDir == "" {
		p.ScratchDir = filepath.Join(os.TempDir(), "frameforge")
	}
	if p.FramePattern == "" {
		p.FramePattern = "frame-%04d.png"
	}
	if !strings.Contains(p.FramePattern, "%") {
		return fmt.Errorf("pipeline.frame_pattern must contain a sequence placeholder: %s", p.FramePattern)
	}

	if p.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry.max_attempts must be non-negative")
	}
	if p.Retry.MaxAttempts == 0 {
		p.Retry.MaxAttempts = 3
	}
	if p.Retry.InitialIntervalSec <= 0 {
		p.Retry.InitialIntervalSec = 1.0
	}
	if p.Retry.BackoffCoefficient <= 1 {
		p.Retry.BackoffCoefficient = 2.0
	}

	t := &p.Timeouts
	defaultSec(&t.DownloadSec, 300)
	defaultSec(&t.ExtractSec, 1800)
	defaultSec(&t.ArchiveSec, 600)
	defaultSec(&t.UploadSec, 300)
	defaultSec(&t.PublishSec, 30)
	defaultSec(&t.NotifySec, 30)
	defaultSec(&t.StatusSec, 30)
	return nil
}

func validateStorage(cfg *Config) error {
	s := &cfg.Storage
	s.Type = strings.ToLower(s.Type)
	if s.Type == "" {
		s.Type = "local"
	}
	if s.ResultBucket == "" {
		s.ResultBucket = s.VideoBucket
	}
	if s.PresignExpirySec <= 0 {
		s.PresignExpirySec = 7 * 24 * 3600
	}

	switch s.Type {
	case "s3":
		if s.VideoBucket == "" {
			return fmt.Errorf("storage.video_bucket required")
		}
		if s.S3.AWS.Region == "" {
			return fmt.Errorf("s3 region required")
		}
	case "minio":
		if s.VideoBucket == "" {
			return fmt.Errorf("storage.video_bucket required")
		}
		if s.Minio.Endpoint == "" {
			return fmt.Errorf("minio endpoint required")
		}
		if s.Minio.AccessKey == "" || s.Minio.SecretKey == "" {
			return fmt.Errorf("minio access_key and secret_key required")
		}
	case "local":
		if s.Local.BasePath == "" {
			s.Local.BasePath = filepath.Join(cfg.Pipeline.ScratchDir, "blobs")
		}
		if s.VideoBucket == "" {
			s.VideoBucket = "videos"
		}
		if s.ResultBucket == "" {
			s.ResultBucket = s.VideoBucket
		}
	default:
		return fmt.Errorf("invalid storage backend: %s", s.Type)
	}
	return nil
}

func validateQueue(cfg *Config) error {
	q := &cfg.Queue
	q.Type = strings.ToLower(q.Type)
	if q.Type == "" {
		q.Type = "sqs"
	}
	if q.PublishDelaySec < 0 || q.PublishDelaySec > 900 {
		return fmt.Errorf("queue.publish_delay_sec must be between 0 and 900")
	}

	switch q.Type {
	case "sqs":
		if q.SQS.Region == "" {
			return fmt.Errorf("sqs region required")
		}
	case "redis":
		if q.Redis.Addr == "" {
			q.Redis.Addr = "localhost:6379"
		}
		if q.Redis.RedeliverDelaySec < 0 {
			return fmt.Errorf("queue.redis.redeliver_delay_sec must be non-negative")
		}
	default:
		return fmt.Errorf("invalid queue backend: %s", q.Type)
	}
	if q.SourceQueue == "" {
		return fmt.Errorf("queue.source_queue required")
	}
	return nil
}

func validateNotifier(cfg *Config) error {
	n := &cfg.Notifier
	n.Type = strings.ToLower(n.Type)
	if n.Type == "" {
		n.Type = "log"
	}
	switch n.Type {
	case "sns":
		if n.TopicARN == "" {
			return fmt.Errorf("notifier.topic_arn required for sns")
		}
		if n.SNS.Region == "" {
			return fmt.Errorf("sns region required")
		}
	case "log":
		if n.TopicARN == "" {
			n.TopicARN = "log"
		}
	default:
		return fmt.Errorf("invalid notifier backend: %s", n.Type)
	}
	return nil
}

func validateStatus(cfg *Config) error {
	st := &cfg.Status
	st.Type = strings.ToLower(st.Type)
	if st.Type == "" {
		st.Type = "none"
	}
	if st.Table == "" {
		st.Table = "videos"
	}
	switch st.Type {
	case "postgres":
		if st.DSN == "" {
			return fmt.Errorf("status.dsn required for %s", st.Type)
		}
	case "gorm":
		st.Dialect = strings.ToLower(st.Dialect)
		if st.Dialect == "" {
			st.Dialect = "sqlite"
		}
		if st.Dialect != "sqlite" && st.Dialect != "postgres" {
			return fmt.Errorf("invalid status.dialect: %s", st.Dialect)
		}
		if st.DSN == "" {
			return fmt.Errorf("status.dsn required for %s", st.Type)
		}
	case "none":
	default:
		return fmt.Errorf("invalid status backend: %s", st.Type)
	}
	return nil
}

func validateConsumer(cfg *Config) error {
	c := &cfg.Consumer
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.BatchSize > 10 && cfg.Queue.Type == "sqs" {
		return fmt.Errorf("consumer.batch_size cannot exceed 10 for sqs")
	}
	if c.WaitTimeSec <= 0 {
		c.WaitTimeSec = 10
	}
	if c.WaitTimeSec > 20 && cfg.Queue.Type == "sqs" {
		return fmt.Errorf("consumer.wait_time_sec cannot exceed 20 for sqs")
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.ErrorBackoffSec <= 0 {
		c.ErrorBackoffSec = 5
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = ":9090"
	}

	c.Dispatch = strings.ToLower(c.Dispatch)
	switch c.Dispatch {
	case "":
		c.Dispatch = "inline"
	case "inline", "temporal":
	default:
		return fmt.Errorf("invalid consumer dispatch mode: %s", c.Dispatch)
	}

	t := &cfg.Temporal
	if t.HostPort == "" {
		t.HostPort = "localhost:7233"
	}
	if t.Namespace == "" {
		t.Namespace = "default"
	}
	if t.TaskQueue == "" {
		t.TaskQueue = "frameforge"
	}
	return nil
}

func defaultSec(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

func isValidLogLevel(level string) bool {
	levels := []string{"debug", "info", "warn", "error"}
	for _, l := range levels {
		if strings.ToLower(level) == l {
			return true
		}
	}
	return false
}
