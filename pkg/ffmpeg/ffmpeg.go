package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
)

// maxStderrTail bounds how much engine output is kept for error messages.
const maxStderrTail = 4096

type FFmpeg struct {
	pathToBinary string
}

func NewFFmpeg(pathToBinary string) *FFmpeg {
	return &FFmpeg{pathToBinary: pathToBinary}
}

// ExtractFrames writes every frame of inputFile into outputDir using pattern,
// e.g. "frame-%04d.png". Each stderr line is passed to onLine as it arrives.
func (f *FFmpeg) ExtractFrames(ctx context.Context, inputFile, outputDir, pattern string, onLine func(string)) error {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-i", inputFile,
		"-y",
		filepath.Join(outputDir, pattern),
	}
	return f.Exec(ctx, args, onLine)
}

// Exec runs the binary and waits for it to exit. The returned error carries
// the tail of the process output.
func (f *FFmpeg) Exec(ctx context.Context, args []string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, f.pathToBinary, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to attach ffmpeg stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	// stderr must be fully read before Wait closes the pipe
	tail := &tailBuffer{max: maxStderrTail}
	scan(stderr, tail, onLine)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg command aborted: %w", ctx.Err())
		}
		return fmt.Errorf("ffmpeg command failed: %v, output: %s", err, strings.TrimSpace(tail.String()))
	}
	return nil
}

func scan(r io.Reader, tail *tailBuffer, onLine func(string)) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		tail.WriteLine(line)
		if onLine != nil {
			onLine(line)
		}
	}
	// drain whatever is left so the process never blocks on a full pipe
	_, _ = io.Copy(io.Discard, r)
}

type tailBuffer struct {
	max int
	buf bytes.Buffer
}

func (t *tailBuffer) WriteLine(line string) {
	t.buf.WriteString(line)
	t.buf.WriteByte('\n')
	if over := t.buf.Len() - t.max; over > 0 {
		t.buf.Next(over)
	}
}

func (t *tailBuffer) String() string {
	return t.buf.String()
}
