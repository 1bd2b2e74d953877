package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/personaforge/studiopod/internal/providers"
	"github.com/personaforge/studiopod/pkg/models"
)

// fakeMedia simulates ffmpeg: it records every invocation and writes the
// output file (the last argument) so downstream stages find their input.
type fakeMedia struct {
	calls    [][]string
	failWhen func(args []string) bool
	duration float64
	probeErr error
	thumbErr error
}

func (f *fakeMedia) Run(ctx context.Context, args ...string) error {
	f.calls = append(f.calls, args)
	if f.failWhen != nil && f.failWhen(args) {
		return errors.New("simulated ffmpeg failure")
	}
	return os.WriteFile(args[len(args)-1], []byte("media"), 0o644)
}

func (f *fakeMedia) ProbeDuration(ctx context.Context, inputPath string) (float64, error) {
	if f.probeErr != nil {
		return 0, f.probeErr
	}
	if f.duration == 0 {
		return 12.5, nil
	}
	return f.duration, nil
}

func (f *fakeMedia) ExtractThumbnail(ctx context.Context, inputPath, outputPath string, timeSeconds float64) error {
	if f.thumbErr != nil {
		return f.thumbErr
	}
	return os.WriteFile(outputPath, []byte("jpeg"), 0o644)
}

// argsContain reports whether the invocation carries the given flag value.
func argsContain(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

// fakeProvider simulates a neural engine.
type fakeProvider struct {
	name  string
	err   error
	calls int
	last  providers.Request
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) EnsureReady(ctx context.Context) error { return f.err }
func (f *fakeProvider) Render(ctx context.Context, req providers.Request) error {
	f.calls++
	f.last = req
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(req.Output, []byte(f.name), 0o644)
}

// fakeTransfer resolves references to stub files and records publishes.
type fakeTransfer struct {
	resolveErr map[string]error
	publishErr error
	published  map[string]string
}

func (f *fakeTransfer) Resolve(ctx context.Context, ref, destPath string) error {
	if err, ok := f.resolveErr[ref]; ok {
		return err
	}
	return os.WriteFile(destPath, []byte("input:"+ref), 0o644)
}

func (f *fakeTransfer) Publish(ctx context.Context, localPath, key, contentType string) (string, error) {
	if f.publishErr != nil {
		return "", f.publishErr
	}
	if f.published == nil {
		f.published = map[string]string{}
	}
	f.published[key] = localPath
	return "mock://" + key, nil
}

type testEnv struct {
	orch       *Orchestrator
	media      *fakeMedia
	lipSync    *fakeProvider
	lipSyncAlt *fakeProvider
	restore    *fakeProvider
	upscale    *fakeProvider
	transfer   *fakeTransfer
	scratch    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		media:      &fakeMedia{},
		lipSync:    &fakeProvider{name: "musetalk"},
		lipSyncAlt: &fakeProvider{name: "wav2lip"},
		restore:    &fakeProvider{name: "gfpgan"},
		upscale:    &fakeProvider{name: "realesrgan"},
		transfer:   &fakeTransfer{},
		scratch:    t.TempDir(),
	}
	env.orch = NewOrchestrator(Deps{
		Media:       env.media,
		LipSync:     env.lipSync,
		LipSyncAlt:  env.lipSyncAlt,
		FaceRestore: env.restore,
		Upscale:     env.upscale,
		Transfer:    env.transfer,
		ScratchDir:  env.scratch,
	})
	return env
}

// assertScratchEmpty verifies no per-job directory outlived the job.
func (env *testEnv) assertScratchEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(env.scratch)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch directory not cleaned up")
}

func lipsyncRequest() *models.JobRequest {
	return &models.JobRequest{
		Type:        models.JobLipsyncOnly,
		JobID:       "job-1",
		Quality:     "standard",
		SourceImage: "https://example.com/face.png",
		DrivenAudio: "https://example.com/voice.mp3",
	}
}

func TestUnknownJobTypeFails(t *testing.T) {
	env := newTestEnv(t)

	result := env.orch.Execute(context.Background(), &models.JobRequest{Type: "frame_interp", JobID: "j"})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unknown job type")
}

func TestLipsyncOnlyStandard(t *testing.T) {
	env := newTestEnv(t)

	result := env.orch.Execute(context.Background(), lipsyncRequest())
	require.True(t, result.Success, result.Error)

	assert.Equal(t, "mock://videos/job-1/output.mp4", result.Output["video"])
	assert.Equal(t, "musetalk", result.Metadata["synthesis_method"])
	assert.Equal(t, true, result.Metadata[models.MetaFaceEnhanceApplied])
	assert.Equal(t, false, result.Metadata[models.MetaUpscaleApplied])
	assert.Equal(t, false, result.Metadata[models.MetaColorGradeApplied])
	assert.Equal(t, "standard", result.Metadata["quality_tier"])
	assert.Equal(t, 30, env.lipSync.last.FPS)
	assert.Equal(t, 4, env.lipSync.last.BatchSize)
	env.assertScratchEmpty(t)
}

func TestSynthesisFallsBackToAlternate(t *testing.T) {
	env := newTestEnv(t)
	env.lipSync.err = errors.New("cuda out of memory")

	result := env.orch.Execute(context.Background(), lipsyncRequest())
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "wav2lip", result.Metadata["synthesis_method"])
	assert.Equal(t, 1, env.lipSyncAlt.calls)
}

func TestSynthesisFallsBackToStaticMux(t *testing.T) {
	env := newTestEnv(t)
	env.lipSync.err = errors.New("engine down")
	env.lipSyncAlt.err = errors.New("engine down")

	result := env.orch.Execute(context.Background(), lipsyncRequest())
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "static_mux", result.Metadata["synthesis_method"])
}

func TestSynthesisExhaustedFailsJob(t *testing.T) {
	env := newTestEnv(t)
	env.lipSync.err = errors.New("engine down")
	env.lipSyncAlt.err = errors.New("engine down")
	env.media.failWhen = func(args []string) bool {
		return argsContain(args, "stillimage")
	}

	result := env.orch.Execute(context.Background(), lipsyncRequest())
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "synthesis exhausted")
	env.assertScratchEmpty(t)
}

func TestRestoreFailureDegradesNotFails(t *testing.T) {
	env := newTestEnv(t)
	env.restore.err = errors.New("model weights missing")

	result := env.orch.Execute(context.Background(), lipsyncRequest())
	require.True(t, result.Success, result.Error)
	assert.Equal(t, false, result.Metadata[models.MetaFaceEnhanceApplied])
}

func TestRealtimeSkipsAllPolish(t *testing.T) {
	env := newTestEnv(t)
	req := lipsyncRequest()
	req.Quality = "realtime"

	result := env.orch.Execute(context.Background(), req)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, false, result.Metadata[models.MetaFaceEnhanceApplied])
	assert.Equal(t, false, result.Metadata[models.MetaUpscaleApplied])
	assert.Equal(t, false, result.Metadata[models.MetaColorGradeApplied])
	assert.Equal(t, false, result.Metadata[models.MetaFilmGrainApplied])
	assert.Zero(t, env.restore.calls)
	assert.Zero(t, env.upscale.calls)
}

func TestLipsyncOnlyCinemaAppliesAllPolish(t *testing.T) {
	env := newTestEnv(t)
	req := lipsyncRequest()
	req.Quality = "cinema"

	result := env.orch.Execute(context.Background(), req)
	require.True(t, result.Success, result.Error)

	assert.Equal(t, true, result.Metadata[models.MetaFaceEnhanceApplied])
	assert.Equal(t, true, result.Metadata[models.MetaUpscaleApplied])
	assert.Equal(t, 4, result.Metadata[models.MetaUpscaleFactor])
	assert.Equal(t, true, result.Metadata[models.MetaColorGradeApplied])
	assert.Equal(t, true, result.Metadata[models.MetaFilmGrainApplied])
	assert.True(t, env.upscale.last.TemporalSmoothing)
}

func TestFaceEnhanceOverride(t *testing.T) {
	enable := true
	disable := false

	t.Run("forces on for realtime", func(t *testing.T) {
		env := newTestEnv(t)
		req := lipsyncRequest()
		req.Quality = "realtime"
		req.FaceEnhance = &enable

		result := env.orch.Execute(context.Background(), req)
		require.True(t, result.Success, result.Error)
		assert.Equal(t, true, result.Metadata[models.MetaFaceEnhanceApplied])
	})

	t.Run("forces off for standard", func(t *testing.T) {
		env := newTestEnv(t)
		req := lipsyncRequest()
		req.FaceEnhance = &disable

		result := env.orch.Execute(context.Background(), req)
		require.True(t, result.Success, result.Error)
		assert.Equal(t, false, result.Metadata[models.MetaFaceEnhanceApplied])
		assert.Zero(t, env.restore.calls)
	})
}

func TestUnknownTierRendersStandard(t *testing.T) {
	env := newTestEnv(t)
	req := lipsyncRequest()
	req.Quality = "ultra-mega"

	result := env.orch.Execute(context.Background(), req)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "standard", result.Metadata["quality_tier"])
}

func TestInputResolutionFailure(t *testing.T) {
	env := newTestEnv(t)
	env.transfer.resolveErr = map[string]error{
		"https://example.com/face.png": errors.New("connection refused"),
	}

	result := env.orch.Execute(context.Background(), lipsyncRequest())
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "resolve source image")
	assert.Zero(t, env.lipSync.calls)
	env.assertScratchEmpty(t)
}

func TestMissingInputsFail(t *testing.T) {
	env := newTestEnv(t)

	result := env.orch.Execute(context.Background(), &models.JobRequest{
		Type:  models.JobLipsyncOnly,
		JobID: "j",
		Audio: "deadbeef",
	})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "requires source_image")
}

func TestDeprecatedAliasesAccepted(t *testing.T) {
	env := newTestEnv(t)

	result := env.orch.Execute(context.Background(), &models.JobRequest{
		Type:  models.JobLipsyncOnly,
		JobID: "j",
		Image: "https://example.com/face.png",
		Audio: "https://example.com/voice.mp3",
	})
	assert.True(t, result.Success, result.Error)
}

func videoRenderRequest() *models.JobRequest {
	return &models.JobRequest{
		Type:        models.JobVideoRender,
		JobID:       "job-2",
		Quality:     "cinema",
		SourceImage: "https://example.com/face.png",
		DrivenAudio: "https://example.com/voice.mp3",
		MusicURL:    "https://example.com/bed.mp3",
		Captions: []models.Caption{
			{Text: "hello", Start: 0.5, End: 2},
		},
	}
}

func TestVideoRenderCinemaAppliesEverything(t *testing.T) {
	env := newTestEnv(t)

	result := env.orch.Execute(context.Background(), videoRenderRequest())
	require.True(t, result.Success, result.Error)

	assert.Equal(t, true, result.Metadata[models.MetaFaceEnhanceApplied])
	assert.Equal(t, true, result.Metadata[models.MetaUpscaleApplied])
	assert.Equal(t, 4, result.Metadata[models.MetaUpscaleFactor])
	assert.Equal(t, true, result.Metadata[models.MetaColorGradeApplied])
	assert.Equal(t, true, result.Metadata[models.MetaFilmGrainApplied])
	assert.Equal(t, true, result.Metadata[models.MetaAudioMixApplied])
	assert.Equal(t, true, result.Metadata[models.MetaCaptionsApplied])
	assert.Equal(t, 12.5, result.Metadata["voice_duration_seconds"])
	assert.True(t, env.upscale.last.TemporalSmoothing)

	assert.Equal(t, "mock://videos/job-2/output.mp4", result.Output["video"])
	assert.Equal(t, "mock://videos/job-2/thumbnail.jpg", result.Output["thumbnail"])
	env.assertScratchEmpty(t)
}

func TestVideoRenderUnreachableMusicDropsOut(t *testing.T) {
	env := newTestEnv(t)
	env.transfer.resolveErr = map[string]error{
		"https://example.com/bed.mp3": errors.New("404"),
	}
	req := videoRenderRequest()
	req.Captions = nil

	result := env.orch.Execute(context.Background(), req)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, false, result.Metadata[models.MetaAudioMixApplied])
	assert.Equal(t, false, result.Metadata[models.MetaCaptionsApplied])
}

func TestVideoRenderProbeFallback(t *testing.T) {
	env := newTestEnv(t)
	env.media.probeErr = errors.New("moov atom not found")

	result := env.orch.Execute(context.Background(), videoRenderRequest())
	require.True(t, result.Success, result.Error)
	assert.Equal(t, float64(fallbackVoiceSeconds), result.Metadata["voice_duration_seconds"])
}

func TestVideoRenderThumbnailFailureNonFatal(t *testing.T) {
	env := newTestEnv(t)
	env.media.thumbErr = errors.New("decode error")

	result := env.orch.Execute(context.Background(), videoRenderRequest())
	require.True(t, result.Success, result.Error)
	_, hasThumb := result.Output["thumbnail"]
	assert.False(t, hasThumb)
	assert.NotEmpty(t, result.Output["video"])
}

func TestVideoRenderFinalEncodeFailureFatal(t *testing.T) {
	env := newTestEnv(t)
	env.media.failWhen = func(args []string) bool {
		return argsContain(args, "+faststart")
	}

	result := env.orch.Execute(context.Background(), videoRenderRequest())
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "final encode failed")
	env.assertScratchEmpty(t)
}

func TestPersonaBuild(t *testing.T) {
	env := newTestEnv(t)

	result := env.orch.Execute(context.Background(), &models.JobRequest{
		Type:        models.JobPersonaBuild,
		JobID:       "job-3",
		PersonaID:   "p1",
		SourceImage: "https://example.com/face.png",
		Takes: []models.TakeSpec{
			{Emotion: "neutral", Angle: "front"},
			{Emotion: "happy", Angle: "three_quarter"},
		},
	})
	require.True(t, result.Success, result.Error)

	assert.Equal(t, "p1", result.Output["persona_id"])
	takes, ok := result.Metadata["base_takes"].([]models.BaseTake)
	require.True(t, ok)
	require.Len(t, takes, 2)
	assert.Equal(t, "neutral_front", takes[0].ID)
	assert.Equal(t, "mock://personas/p1/takes/happy_three_quarter.mp4", takes[1].VideoURL)
	env.assertScratchEmpty(t)
}

func TestPersonaBuildDefaultTake(t *testing.T) {
	env := newTestEnv(t)

	result := env.orch.Execute(context.Background(), &models.JobRequest{
		Type:        models.JobPersonaBuild,
		JobID:       "job-4",
		SourceImage: "https://example.com/face.png",
	})
	require.True(t, result.Success, result.Error)
	assert.Equal(t, 1, result.Metadata["take_count"])
	assert.Equal(t, "job-4", result.Output["persona_id"])

	keys := make([]string, 0, len(env.transfer.published))
	for k := range env.transfer.published {
		keys = append(keys, k)
	}
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "personas/job-4/takes/neutral_front"), keys[0])
}

func TestJobIDAssignedWhenMissing(t *testing.T) {
	env := newTestEnv(t)
	req := lipsyncRequest()
	req.JobID = ""

	result := env.orch.Execute(context.Background(), req)
	require.True(t, result.Success, result.Error)
	assert.NotEmpty(t, req.JobID)
	assert.Equal(t, fmt.Sprintf("mock://videos/%s/output.mp4", req.JobID), result.Output["video"])
}

func TestPublishFailureFailsJob(t *testing.T) {
	env := newTestEnv(t)
	env.transfer.publishErr = errors.New("bucket gone")

	result := env.orch.Execute(context.Background(), lipsyncRequest())
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "publish")
	env.assertScratchEmpty(t)
}

func TestStageTimingsRecorded(t *testing.T) {
	env := newTestEnv(t)

	result := env.orch.Execute(context.Background(), lipsyncRequest())
	require.True(t, result.Success, result.Error)

	timings, ok := result.Metadata["stage_timings_ms"].(map[string]int64)
	require.True(t, ok)
	for _, stage := range []string{"synthesis", "face_restore", "upscale", "color_grade", "film_grain", "final_encode"} {
		_, present := timings[stage]
		assert.True(t, present, "missing timing for %s", stage)
	}
}
