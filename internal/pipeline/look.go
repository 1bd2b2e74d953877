package pipeline

import (
	"context"
	"path/filepath"

	"github.com/personaforge/studiopod/internal/media"
	"github.com/personaforge/studiopod/pkg/models"
)

// gradeChain builds the video filter chain for one grading look. Unknown
// styles grade cinematic, the house default.
func gradeChain(style string) media.Chain {
	switch style {
	case "warm":
		return media.Chain{
			media.NewFilter("eq").Float("saturation", 1.2).Float("brightness", 0.03),
			media.NewFilter("colorbalance").Float("rs", 0.1).Float("gs", 0.05).Float("bs", -0.05),
		}
	case "cool":
		return media.Chain{
			media.NewFilter("eq").Float("saturation", 1.1),
			media.NewFilter("colorbalance").Float("rs", -0.05).Float("gs", 0).Float("bs", 0.1),
		}
	case "vibrant":
		return media.Chain{
			media.NewFilter("eq").Float("contrast", 1.15).Float("saturation", 1.3).Float("brightness", 0.02),
		}
	default:
		return media.Chain{
			media.NewFilter("eq").Float("contrast", 1.1).Float("saturation", 1.15).Float("brightness", 0.02),
			media.NewFilter("curves").Param("preset", "lighter"),
		}
	}
}

// gradeStyleName normalizes the requested look to the name reported in
// metadata.
func gradeStyleName(style string) string {
	switch style {
	case "warm", "cool", "vibrant":
		return style
	}
	return "cinematic"
}

// runColorGrade applies the tier's grading look. Failure carries the input
// forward ungraded.
func (o *Orchestrator) runColorGrade(ctx context.Context, scratch, input, style string, profile models.QualityProfile) StageResult {
	if !profile.ColorGrading {
		return skipped(input)
	}

	out := filepath.Join(scratch, "graded.mp4")
	err := o.ff.Run(ctx,
		"-i", input,
		"-vf", gradeChain(style).String(),
		"-c:a", "copy",
		out,
	)
	if err != nil {
		return degrade(input, out, err)
	}
	return StageResult{Status: StatusApplied, Method: gradeStyleName(style), Output: out}
}

// runFilmGrain overlays temporal noise at the tier's intensity. Failure
// carries the input forward clean.
func (o *Orchestrator) runFilmGrain(ctx context.Context, scratch, input string, profile models.QualityProfile) StageResult {
	if profile.FilmGrain <= 0 {
		return skipped(input)
	}

	strength := int(profile.FilmGrain * 100)
	grain := media.NewFilter("noise").Int("alls", strength).Param("allf", "t")

	out := filepath.Join(scratch, "grain.mp4")
	err := o.ff.Run(ctx,
		"-i", input,
		"-vf", grain.String(),
		"-c:a", "copy",
		out,
	)
	if err != nil {
		return degrade(input, out, err)
	}
	return StageResult{Status: StatusApplied, Method: "noise", Output: out}
}
