package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/personaforge/studiopod/pkg/models"
)

func TestBuildMixGraphFull(t *testing.T) {
	inputs, graph := buildMixGraph(mixInputs{
		Voice:    "voice.wav",
		Music:    "bed.mp3",
		Ambience: "rain.mp3",
		SFX: []soundTrack{
			{Path: "whoosh.wav", Start: 1.5},
			{Path: "ding.wav", Start: 3, Volume: 0.3},
		},
		Duration: 12.5,
	})

	assert.Equal(t, []string{
		"-i", "voice.wav",
		"-i", "bed.mp3",
		"-i", "rain.mp3",
		"-i", "whoosh.wav",
		"-i", "ding.wav",
	}, inputs)

	want := "[0:a]asplit=2[voice][sc];" +
		"[1:a]aloop=loop=-1:size=2e+09,atrim=0:12.5,volume=0.15[bgm];" +
		"[bgm][sc]sidechaincompress=threshold=0.02:ratio=10:attack=50:release=300[ducked];" +
		"[2:a]aloop=loop=-1:size=2e+09,atrim=0:12.5,volume=0.08[amb];" +
		"[3:a]adelay=1500|1500,volume=0.5[sfx0];" +
		"[4:a]adelay=3000|3000,volume=0.3[sfx1];" +
		"[voice][ducked][amb][sfx0][sfx1]amix=inputs=5:duration=first[mix]"
	assert.Equal(t, want, graph)
}

func TestBuildMixGraphNoMusicSkipsDucking(t *testing.T) {
	_, graph := buildMixGraph(mixInputs{
		Voice:    "voice.wav",
		Ambience: "rain.mp3",
		Duration: 8,
	})

	want := "[0:a]volume=1[voice];" +
		"[1:a]aloop=loop=-1:size=2e+09,atrim=0:8,volume=0.08[amb];" +
		"[voice][amb]amix=inputs=2:duration=first[mix]"
	assert.Equal(t, want, graph)
}

func TestBuildMixGraphCustomDucking(t *testing.T) {
	_, graph := buildMixGraph(mixInputs{
		Voice:    "voice.wav",
		Music:    "bed.mp3",
		Duration: 10,
		Ducking:  models.DuckingConfig{BaseVolume: 0.25, AttackMs: 20, ReleaseMs: 500},
	})

	assert.Contains(t, graph, "volume=0.25[bgm]")
	assert.Contains(t, graph, "sidechaincompress=threshold=0.02:ratio=10:attack=20:release=500")
}

func TestMixInputsHasBackground(t *testing.T) {
	assert.False(t, mixInputs{Voice: "v"}.hasBackground())
	assert.True(t, mixInputs{Voice: "v", Music: "m"}.hasBackground())
	assert.True(t, mixInputs{Voice: "v", SFX: []soundTrack{{Path: "s"}}}.hasBackground())
}
