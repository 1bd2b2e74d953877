package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/personaforge/studiopod/internal/media"
	"github.com/personaforge/studiopod/pkg/models"
)

// Mixer constants. Threshold and ratio are fixed; callers tune only the
// base volume and the attack/release envelope through DuckingConfig.
const (
	duckThreshold   = 0.02
	duckRatio       = 10
	ambienceVolume  = 0.08
	defaultSFXLevel = 0.5
)

// soundTrack is a resolved local audio file placed into the mix.
type soundTrack struct {
	Path   string
	Start  float64
	Volume float64
}

// mixInputs collects everything the mixer layers under the voice.
type mixInputs struct {
	Voice    string
	Music    string
	Ambience string
	SFX      []soundTrack
	Duration float64
	Ducking  models.DuckingConfig
}

// hasBackground reports whether there is anything to mix under the voice.
func (in mixInputs) hasBackground() bool {
	return in.Music != "" || in.Ambience != "" || len(in.SFX) > 0
}

// buildMixGraph constructs the ffmpeg input list and filter_complex for the
// mix. Music loops to the voice duration and is ducked under speech through
// a sidechain compressor; ambience loops at a fixed low level; effects are
// delay-placed and volume-scaled. The mixed stream carries label [mix].
func buildMixGraph(in mixInputs) ([]string, string) {
	inputs := []string{"-i", in.Voice}
	var g media.Graph

	duck := in.Ducking.WithDefaults()
	looped := media.Chain{
		media.NewFilter("aloop").Int("loop", -1).Param("size", "2e+09"),
		media.NewFilter("atrim").Int("", 0).Float("", in.Duration),
	}

	mixLabels := []string{"voice"}
	if in.Music != "" {
		// The voice splits into the audible copy and the sidechain key.
		g.Add([]string{"0:a"}, media.Chain{media.NewFilter("asplit").Int("", 2)}, "voice", "sc")
	} else {
		g.Add([]string{"0:a"}, media.Chain{media.NewFilter("volume").Float("", 1)}, "voice")
	}

	next := 1
	if in.Music != "" {
		inputs = append(inputs, "-i", in.Music)
		bed := append(append(media.Chain{}, looped...),
			media.NewFilter("volume").Float("", duck.BaseVolume))
		g.Add([]string{fmt.Sprintf("%d:a", next)}, bed, "bgm")
		g.Add([]string{"bgm", "sc"}, media.Chain{
			media.NewFilter("sidechaincompress").
				Float("threshold", duckThreshold).
				Int("ratio", duckRatio).
				Int("attack", duck.AttackMs).
				Int("release", duck.ReleaseMs),
		}, "ducked")
		mixLabels = append(mixLabels, "ducked")
		next++
	}

	if in.Ambience != "" {
		inputs = append(inputs, "-i", in.Ambience)
		bed := append(append(media.Chain{}, looped...),
			media.NewFilter("volume").Float("", ambienceVolume))
		g.Add([]string{fmt.Sprintf("%d:a", next)}, bed, "amb")
		mixLabels = append(mixLabels, "amb")
		next++
	}

	for i, sfx := range in.SFX {
		inputs = append(inputs, "-i", sfx.Path)
		volume := sfx.Volume
		if volume <= 0 {
			volume = defaultSFXLevel
		}
		delayMs := int(sfx.Start * 1000)
		label := fmt.Sprintf("sfx%d", i)
		g.Add([]string{fmt.Sprintf("%d:a", next)}, media.Chain{
			media.NewFilter("adelay").Param("", fmt.Sprintf("%d|%d", delayMs, delayMs)),
			media.NewFilter("volume").Float("", volume),
		}, label)
		mixLabels = append(mixLabels, label)
		next++
	}

	g.Add(mixLabels, media.Chain{
		media.NewFilter("amix").Int("inputs", len(mixLabels)).Param("duration", "first"),
	}, "mix")

	return inputs, g.String()
}

// runAudioMix layers music, ambience and effects under the voice track.
// With no background tracks the synthesized clip's own audio stands, and on
// failure the mix is dropped rather than the job: the result carries an
// empty output path meaning "use the embedded voice track".
func (o *Orchestrator) runAudioMix(ctx context.Context, scratch string, in mixInputs) StageResult {
	if !in.hasBackground() {
		return StageResult{Status: StatusSkipped, Method: "noop"}
	}

	out := filepath.Join(scratch, "mixed.m4a")
	inputs, graph := buildMixGraph(in)

	args := append(inputs,
		"-filter_complex", graph,
		"-map", "[mix]",
		"-c:a", "aac",
		"-b:a", "192k",
		out,
	)
	if err := o.ff.Run(ctx, args...); err != nil {
		return StageResult{Status: StatusDegraded, Method: "voice_only", Err: err}
	}
	return StageResult{Status: StatusApplied, Method: "sidechain_duck", Output: out}
}
