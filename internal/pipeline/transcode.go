package pipeline

import (
	"context"

	"FrameForge/pkg/ffmpeg"

	"go.uber.org/zap"
)

// Transcoder extracts the frames of one video into outDir. It returns only
// once the engine has finished.
type Transcoder interface {
	ExtractFrames(ctx context.Context, src, outDir string) error
}

type FFmpegTranscoder struct {
	ffmpeg  *ffmpeg.FFmpeg
	pattern string
	logger  *zap.Logger
}

func NewTranscoder(ffmpegPath, pattern string, logger *zap.Logger) *FFmpegTranscoder {
	return &FFmpegTranscoder{
		ffmpeg:  ffmpeg.NewFFmpeg(ffmpegPath),
		pattern: pattern,
		logger:  logger.Named("ffmpeg"),
	}
}

func (t *FFmpegTranscoder) ExtractFrames(ctx context.Context, src, outDir string) error {
	t.logger.Debug("Extracting frames", zap.String("input", src), zap.String("output_dir", outDir))
	return t.ffmpeg.ExtractFrames(ctx, src, outDir, t.pattern, func(line string) {
		t.logger.Debug(line, zap.String("input", src))
	})
}
