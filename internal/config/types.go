package config

import (
	types "FrameForge/pkg"
)

type Config struct {
	Pipeline types.PipelineConfig `mapstructure:"pipeline" json:"pipeline"`
	Storage  types.StorageConfig  `mapstructure:"storage" json:"storage"`
	Queue    types.QueueConfig    `mapstructure:"queue" json:"queue"`
	Notifier types.NotifierConfig `mapstructure:"notifier" json:"notifier"`
	Status   types.StatusConfig   `mapstructure:"status" json:"status"`
	Consumer types.ConsumerConfig `mapstructure:"consumer" json:"consumer"`
	Temporal types.TemporalConfig `mapstructure:"temporal" json:"temporal"`
	HTTP     types.HTTPConfig     `mapstructure:"http" json:"http"`
	Logging  types.LoggingConfig  `mapstructure:"logging" json:"logging"`
}
