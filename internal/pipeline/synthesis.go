package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/personaforge/studiopod/internal/media"
	"github.com/personaforge/studiopod/internal/providers"
	"github.com/personaforge/studiopod/pkg/models"
)

// runSynthesis produces the talking-head clip from a portrait and a voice
// track. Engines are tried in order; when all of them fail the portrait is
// muxed statically over the audio so downstream stages still get a video.
// Only the static mux failing fails the job.
func (o *Orchestrator) runSynthesis(ctx context.Context, scratch, image, audio string, profile models.QualityProfile) (StageResult, error) {
	out := filepath.Join(scratch, "lipsync.mp4")
	req := providers.Request{
		Image:     image,
		Audio:     audio,
		Output:    out,
		FPS:       profile.FPS,
		BatchSize: profile.BatchSize,
	}

	for _, engine := range []providers.Provider{o.lipSync, o.lipSyncAlt} {
		if engine == nil {
			continue
		}
		if err := engine.Render(ctx, req); err != nil {
			o.log.WithStage("synthesis").Warnf("engine %s failed: %v", engine.Name(), err)
			continue
		}
		return StageResult{Status: StatusApplied, Method: engine.Name(), Output: out}, nil
	}

	if err := o.staticMux(ctx, image, audio, out); err != nil {
		return StageResult{}, fmt.Errorf("synthesis exhausted all methods: %w", err)
	}
	return StageResult{Status: StatusDegraded, Method: "static_mux", Output: out}, nil
}

// staticMux renders the portrait as a still video over the voice track, the
// terminal synthesis fallback.
func (o *Orchestrator) staticMux(ctx context.Context, image, audio, out string) error {
	vf := media.Chain{
		media.NewFilter("scale").Int("", 512).Int("", 512).Param("force_original_aspect_ratio", "decrease"),
		media.NewFilter("pad").Int("", 512).Int("", 512).Param("", "(ow-iw)/2").Param("", "(oh-ih)/2"),
	}
	return o.ff.Run(ctx,
		"-loop", "1",
		"-i", image,
		"-i", audio,
		"-c:v", "libx264",
		"-tune", "stillimage",
		"-c:a", "aac",
		"-b:a", "192k",
		"-pix_fmt", "yuv420p",
		"-vf", vf.String(),
		"-shortest",
		out,
	)
}

// renderIdleTake produces one five-second looping base take for a persona
// library. Takes are static today; the idle-motion curves drive them once an
// animating engine lands.
func (o *Orchestrator) renderIdleTake(ctx context.Context, scratch, image string, index int) (string, error) {
	out := filepath.Join(scratch, fmt.Sprintf("take_%02d.mp4", index))
	err := o.ff.Run(ctx,
		"-loop", "1",
		"-i", image,
		"-t", "5",
		"-r", "30",
		"-c:v", "libx264",
		"-tune", "stillimage",
		"-pix_fmt", "yuv420p",
		out,
	)
	if err != nil {
		return "", fmt.Errorf("take render failed: %w", err)
	}
	return out, nil
}
