package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/personaforge/studiopod/internal/media"
	"github.com/personaforge/studiopod/pkg/models"
)

// runFinalEncode produces the deliverable container at the tier's bitrate,
// CRF and encoder preset. When a target format is given the frame is scaled
// aspect-preserving and padded to it. A non-empty audio path replaces the
// video's embedded track. This stage has no fallback: an encode failure
// fails the job.
func (o *Orchestrator) runFinalEncode(ctx context.Context, scratch, video, audio string, profile models.QualityProfile, format *models.OutputFormat) (StageResult, error) {
	out := filepath.Join(scratch, "final.mp4")

	args := []string{"-i", video}
	if audio != "" {
		args = append(args,
			"-i", audio,
			"-map", "0:v",
			"-map", "1:a",
		)
	}

	fps := profile.FPS
	if format != nil {
		if format.FPS > 0 {
			fps = format.FPS
		}
		vf := media.Chain{
			media.NewFilter("scale").Int("", format.Width).Int("", format.Height).Param("force_original_aspect_ratio", "decrease"),
			media.NewFilter("pad").Int("", format.Width).Int("", format.Height).Param("", "(ow-iw)/2").Param("", "(oh-ih)/2"),
		}
		args = append(args, "-vf", vf.String())
	}

	args = append(args,
		"-c:v", "libx264",
		"-preset", profile.Preset,
		"-crf", strconv.Itoa(profile.CRF),
		"-b:v", profile.VideoBitrate,
		"-r", strconv.Itoa(fps),
		"-c:a", "aac",
		"-b:a", profile.AudioBitrate,
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-shortest",
		out,
	)

	if err := o.ff.Run(ctx, args...); err != nil {
		return StageResult{}, fmt.Errorf("final encode failed: %w", err)
	}
	return StageResult{Status: StatusApplied, Method: "libx264", Output: out}, nil
}

// extractThumbnail grabs the first frame of the finished video. A thumbnail
// failure is logged and the delivery ships without one.
func (o *Orchestrator) extractThumbnail(ctx context.Context, scratch, video string) string {
	out := filepath.Join(scratch, "thumbnail.jpg")
	if err := o.ff.ExtractThumbnail(ctx, video, out, 0); err != nil {
		o.log.WithStage("thumbnail").Warnf("thumbnail extraction failed: %v", err)
		return ""
	}
	return out
}
