package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/personaforge/studiopod/internal/media"
	"github.com/personaforge/studiopod/pkg/models"
)

// captionChain builds one drawtext filter per caption, centered
// horizontally and time-gated with a between() expression.
func captionChain(captions []models.Caption, style models.CaptionStyle) media.Chain {
	chain := make(media.Chain, 0, len(captions))
	y := "h*" + strconv.FormatFloat(style.PositionY, 'f', -1, 64)
	for _, c := range captions {
		chain = append(chain, media.NewFilter("drawtext").
			Quoted("text", media.EscapeDrawText(c.Text)).
			Int("fontsize", style.FontSize).
			Param("fontcolor", style.Color).
			Int("borderw", style.StrokeWidth).
			Param("bordercolor", style.StrokeColor).
			Param("x", "(w-tw)/2").
			Param("y", y).
			Quoted("enable", fmt.Sprintf("between(t,%g,%g)", c.Start, c.End)))
	}
	return chain
}

// runCaptions burns timed captions into the frame. Failure ships the video
// without captions rather than failing the job.
func (o *Orchestrator) runCaptions(ctx context.Context, scratch, input string, captions []models.Caption, style *models.CaptionStyle) StageResult {
	if len(captions) == 0 {
		return skipped(input)
	}

	st := models.CaptionStyle{}
	if style != nil {
		st = *style
	}
	st = st.WithDefaults()

	out := filepath.Join(scratch, "captioned.mp4")
	err := o.ff.Run(ctx,
		"-i", input,
		"-vf", captionChain(captions, st).String(),
		"-c:a", "copy",
		out,
	)
	if err != nil {
		return degrade(input, out, err)
	}
	return StageResult{Status: StatusApplied, Method: "drawtext", Output: out}
}
