package pipeline

import (
	"context"
	"path/filepath"

	"github.com/personaforge/studiopod/internal/providers"
	"github.com/personaforge/studiopod/pkg/models"
)

// runFaceRestore sharpens the face region frame by frame. The engine emits
// video only, so the voice track is muxed back from the stage input. Any
// failure carries the input forward.
func (o *Orchestrator) runFaceRestore(ctx context.Context, scratch, input string, profile models.QualityProfile, override *bool) StageResult {
	enabled := profile.FaceEnhance
	if override != nil {
		enabled = *override
	}
	if !enabled || o.restore == nil {
		return skipped(input)
	}

	raw := filepath.Join(scratch, "restored_raw.mp4")
	out := filepath.Join(scratch, "restored.mp4")

	if err := o.restore.Render(ctx, providers.Request{Video: input, Output: raw}); err != nil {
		return degrade(input, out, err)
	}

	err := o.ff.Run(ctx,
		"-i", raw,
		"-i", input,
		"-map", "0:v",
		"-map", "1:a?",
		"-c:v", "libx264",
		"-crf", "18",
		"-preset", "medium",
		"-c:a", "aac",
		"-shortest",
		out,
	)
	if err != nil {
		return degrade(input, out, err)
	}
	return StageResult{Status: StatusApplied, Method: o.restore.Name(), Output: out}
}

// runUpscale raises resolution by the tier's factor. High tiers also blend
// consecutive frames in the engine to suppress upscaler flicker. Any failure
// carries the input forward at original resolution.
func (o *Orchestrator) runUpscale(ctx context.Context, scratch, input string, profile models.QualityProfile) StageResult {
	if !profile.Upscale || profile.UpscaleFactor <= 1 || o.upscale == nil {
		return skipped(input)
	}

	raw := filepath.Join(scratch, "upscaled_raw.mp4")
	out := filepath.Join(scratch, "upscaled.mp4")

	req := providers.Request{
		Video:             input,
		Output:            raw,
		Scale:             profile.UpscaleFactor,
		TemporalSmoothing: profile.TemporalSmoothing,
	}
	if err := o.upscale.Render(ctx, req); err != nil {
		return degrade(input, out, err)
	}

	err := o.ff.Run(ctx,
		"-i", raw,
		"-i", input,
		"-map", "0:v",
		"-map", "1:a?",
		"-c:v", "libx264",
		"-crf", "17",
		"-preset", "slow",
		"-c:a", "aac",
		"-b:a", "320k",
		"-shortest",
		out,
	)
	if err != nil {
		return degrade(input, out, err)
	}
	return StageResult{Status: StatusApplied, Method: o.upscale.Name(), Output: out}
}
