package types

type PipelineConfig struct {
	FFMpegPath   string         `mapstructure:"ff_mpeg_path" json:"ff_mpeg_path"`
	ScratchDir   string         `mapstructure:"scratch_dir" json:"scratch_dir"`
	FramePattern string         `mapstructure:"frame_pattern" json:"frame_pattern"`
	KeepScratch  bool           `mapstructure:"keep_scratch" json:"keep_scratch"`
	Retry        RetryConfig    `mapstructure:"retry" json:"retry"`
	Timeouts     TimeoutsConfig `mapstructure:"timeouts" json:"timeouts"`
}

type RetryConfig struct {
	MaxAttempts        int32   `mapstructure:"max_attempts" json:"max_attempts"`
	InitialIntervalSec float64 `mapstructure:"initial_interval_sec" json:"initial_interval_sec"`
	BackoffCoefficient float64 `mapstructure:"backoff_coefficient" json:"backoff_coefficient"`
}

// TimeoutsConfig bounds each pipeline stage, in seconds.
type TimeoutsConfig struct {
	DownloadSec int `mapstructure:"download_sec" json:"download_sec"`
	ExtractSec  int `mapstructure:"extract_sec" json:"extract_sec"`
	ArchiveSec  int `mapstructure:"archive_sec" json:"archive_sec"`
	UploadSec   int `mapstructure:"upload_sec" json:"upload_sec"`
	PublishSec  int `mapstructure:"publish_sec" json:"publish_sec"`
	NotifySec   int `mapstructure:"notify_sec" json:"notify_sec"`
	StatusSec   int `mapstructure:"status_sec" json:"status_sec"`
}

type AWSConfig struct {
	Region          string `mapstructure:"region" json:"region"`
	Endpoint        string `mapstructure:"endpoint" json:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" json:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token" json:"session_token"`
}

type StorageConfig struct {
	Type             string      `mapstructure:"type" json:"type"`
	VideoBucket      string      `mapstructure:"video_bucket" json:"video_bucket"`
	ResultBucket     string      `mapstructure:"result_bucket" json:"result_bucket"`
	PublicBaseURL    string      `mapstructure:"public_base_url" json:"public_base_url"`
	PresignExpirySec int         `mapstructure:"presign_expiry_sec" json:"presign_expiry_sec"`
	Local            LocalConfig `mapstructure:"local" json:"local"`
	S3               S3Config    `mapstructure:"s3" json:"s3"`
	Minio            MinioConfig `mapstructure:"minio" json:"minio"`
}

type LocalConfig struct {
	BasePath string `mapstructure:"base_path" json:"base_path"`
}

type S3Config struct {
	AWS          AWSConfig `mapstructure:"aws" json:"aws"`
	UsePathStyle bool      `mapstructure:"use_path_style" json:"use_path_style"`
	PublicRead   bool      `mapstructure:"public_read" json:"public_read"`
}

type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint" json:"endpoint"`
	AccessKey string `mapstructure:"access_key" json:"access_key"`
	SecretKey string `mapstructure:"secret_key" json:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl" json:"use_ssl"`
	Region    string `mapstructure:"region" json:"region"`
}

type QueueConfig struct {
	Type                 string      `mapstructure:"type" json:"type"`
	SourceQueue          string      `mapstructure:"source_queue" json:"source_queue"`
	ResultQueue          string      `mapstructure:"result_queue" json:"result_queue"`
	PublishDelaySec      int32       `mapstructure:"publish_delay_sec" json:"publish_delay_sec"`
	VisibilityTimeoutSec int32       `mapstructure:"visibility_timeout_sec" json:"visibility_timeout_sec"`
	SQS                  AWSConfig   `mapstructure:"sqs" json:"sqs"`
	Redis                RedisConfig `mapstructure:"redis" json:"redis"`
}

type RedisConfig struct {
	Addr           string `mapstructure:"addr" json:"addr"`
	Password       string `mapstructure:"password" json:"password"`
	DB             int    `mapstructure:"db" json:"db"`
	RecoverOnStart bool   `mapstructure:"recover_on_start" json:"recover_on_start"`

	// RedeliverDelaySec is how long a released message waits before it is polled again.
	RedeliverDelaySec int `mapstructure:"redeliver_delay_sec" json:"redeliver_delay_sec"`
}

type NotifierConfig struct {
	Type     string    `mapstructure:"type" json:"type"`
	TopicARN string    `mapstructure:"topic_arn" json:"topic_arn"`
	SNS      AWSConfig `mapstructure:"sns" json:"sns"`
}

type StatusConfig struct {
	Type    string `mapstructure:"type" json:"type"`
	Dialect string `mapstructure:"dialect" json:"dialect"`
	DSN     string `mapstructure:"dsn" json:"dsn"`
	Table   string `mapstructure:"table" json:"table"`

	// RecordFailures also writes a "failed" row for queue jobs that carry a correlation id.
	RecordFailures bool `mapstructure:"record_failures" json:"record_failures"`
}

type ConsumerConfig struct {
	BatchSize       int32  `mapstructure:"batch_size" json:"batch_size"`
	WaitTimeSec     int32  `mapstructure:"wait_time_sec" json:"wait_time_sec"`
	Concurrency     int    `mapstructure:"concurrency" json:"concurrency"`
	ErrorBackoffSec int    `mapstructure:"error_backoff_sec" json:"error_backoff_sec"`
	Dispatch        string `mapstructure:"dispatch" json:"dispatch"`
	MetricsAddr     string `mapstructure:"metrics_addr" json:"metrics_addr"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port" json:"host_port"`
	Namespace string `mapstructure:"namespace" json:"namespace"`
	TaskQueue string `mapstructure:"task_queue" json:"task_queue"`
}

type HTTPConfig struct {
	Addr          string `mapstructure:"addr" json:"addr"`
	MaxUploadMB   int64  `mapstructure:"max_upload_mb" json:"max_upload_mb"`
	UploadDir     string `mapstructure:"upload_dir" json:"upload_dir"`
	RequestLogger bool   `mapstructure:"request_logger" json:"request_logger"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level" json:"level"`
	Output   string `mapstructure:"output" json:"output"`
	FilePath string `mapstructure:"file_path" json:"file_path"`
}
