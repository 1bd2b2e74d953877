package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// FFmpeg wraps ffmpeg and ffprobe invocations. Every caller builds its
// argument slice explicitly; there are no implicit defaults here beyond
// overwrite-output.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpeg creates a new FFmpeg instance.
func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}
}

// Available reports whether the ffmpeg binary can be resolved.
func (f *FFmpeg) Available() bool {
	_, err := exec.LookPath(f.ffmpegPath)
	return err == nil
}

// Run executes ffmpeg with the given arguments, prepending -y and
// -hide_banner. Stderr is captured into the returned error.
func (f *FFmpeg) Run(ctx context.Context, args ...string) error {
	full := append([]string{"-hide_banner", "-y"}, args...)
	cmd := exec.CommandContext(ctx, f.ffmpegPath, full...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, truncate(stderr.String(), 2048))
	}

	return nil
}

// ProbeDuration returns the container duration of a media file in seconds.
func (f *FFmpeg) ProbeDuration(ctx context.Context, inputPath string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inputPath,
	}

	cmd := exec.CommandContext(ctx, f.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, stderr.String())
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", stdout.String(), err)
	}

	return duration, nil
}

// ExtractThumbnail extracts a single frame from a video at a specific time.
func (f *FFmpeg) ExtractThumbnail(ctx context.Context, inputPath, outputPath string, timeSeconds float64) error {
	return f.Run(ctx,
		"-i", inputPath,
		"-ss", fmt.Sprintf("%.2f", timeSeconds),
		"-vframes", "1",
		"-q:v", "2",
		outputPath,
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
