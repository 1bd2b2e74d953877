// Package pipeline runs render jobs through their stage sequences. Stages
// communicate through explicit results: a stage either applies, degrades to
// a fallback, or is skipped for the tier, and only lip-sync synthesis and
// the final encode can fail a job.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"

	"github.com/personaforge/studiopod/internal/config"
	"github.com/personaforge/studiopod/internal/logging"
	"github.com/personaforge/studiopod/internal/media"
	"github.com/personaforge/studiopod/internal/metrics"
	"github.com/personaforge/studiopod/internal/providers"
	"github.com/personaforge/studiopod/pkg/models"
)

// fallbackVoiceSeconds is assumed when the voice track cannot be probed, so
// looped background beds still get a finite length.
const fallbackVoiceSeconds = 10

// MediaRunner is the subset of the ffmpeg wrapper the stages use.
type MediaRunner interface {
	Run(ctx context.Context, args ...string) error
	ProbeDuration(ctx context.Context, inputPath string) (float64, error)
	ExtractThumbnail(ctx context.Context, inputPath, outputPath string, timeSeconds float64) error
}

// Transfer resolves job input references to local files and publishes
// finished artifacts.
type Transfer interface {
	Resolve(ctx context.Context, ref, destPath string) error
	Publish(ctx context.Context, localPath, key, contentType string) (string, error)
}

// Orchestrator owns the stage sequences for every job type.
type Orchestrator struct {
	ff         MediaRunner
	lipSync    providers.Provider
	lipSyncAlt providers.Provider
	restore    providers.Provider
	upscale    providers.Provider

	transfer    Transfer
	log         *logging.Logger
	scratchRoot string
}

// Deps are the orchestrator's collaborators, split out so tests can inject
// fakes.
type Deps struct {
	Media       MediaRunner
	LipSync     providers.Provider
	LipSyncAlt  providers.Provider
	FaceRestore providers.Provider
	Upscale     providers.Provider
	Transfer    Transfer
	Logger      *logging.Logger
	ScratchDir  string
}

// NewOrchestrator wires an orchestrator from explicit dependencies.
func NewOrchestrator(d Deps) *Orchestrator {
	if d.Logger == nil {
		d.Logger = logging.NewDefaultLogger()
	}
	return &Orchestrator{
		ff:          d.Media,
		lipSync:     d.LipSync,
		lipSyncAlt:  d.LipSyncAlt,
		restore:     d.FaceRestore,
		upscale:     d.Upscale,
		transfer:    d.Transfer,
		log:         d.Logger,
		scratchRoot: d.ScratchDir,
	}
}

// New builds the production orchestrator from configuration.
func New(cfg *config.Config, transfer Transfer, log *logging.Logger) *Orchestrator {
	return NewOrchestrator(Deps{
		Media:       media.NewFFmpeg(cfg.Pipeline.FFmpegPath, cfg.Pipeline.FFprobePath),
		LipSync:     providers.NewLipSync("musetalk", cfg.Providers.LipSync),
		LipSyncAlt:  providers.NewLipSync("wav2lip", cfg.Providers.LipSyncAlternate),
		FaceRestore: providers.NewFaceRestore("gfpgan", cfg.Providers.FaceRestore),
		Upscale:     providers.NewUpscale("realesrgan", cfg.Providers.Upscale),
		Transfer:    transfer,
		Logger:      log,
		ScratchDir:  cfg.Pipeline.ScratchDir,
	})
}

// Warm checks every provider once at startup so availability is known
// before the first job arrives instead of on its critical path.
func (o *Orchestrator) Warm(ctx context.Context) {
	for _, p := range []providers.Provider{o.lipSync, o.lipSyncAlt, o.restore, o.upscale} {
		if p == nil {
			continue
		}
		if err := p.EnsureReady(ctx); err != nil {
			o.log.Warnf("provider %s unavailable, its stage will degrade: %v", p.Name(), err)
		} else {
			o.log.Infof("provider %s ready", p.Name())
		}
	}
}

// Execute routes one job to its pipeline. It always returns a well-formed
// result; panics and unknown job types become failure results, never an
// escape.
func (o *Orchestrator) Execute(ctx context.Context, req *models.JobRequest) (result *models.JobResult) {
	start := time.Now()
	done := metrics.JobStarted()
	defer done()

	if req.JobID == "" {
		req.JobID = uuid.New().String()
	}
	log := o.log.WithJobID(req.JobID)
	profile := models.ResolveProfile(req.Quality)

	defer func() {
		if r := recover(); r != nil {
			result = models.FailureResult(
				fmt.Errorf("job panicked: %v", r),
				string(debug.Stack()),
				time.Since(start).Milliseconds(),
			)
		}
		log.LogJobComplete(req.JobID, string(req.Type), profile.Name, result.Success, time.Since(start))
		metrics.RecordJob(string(req.Type), result.Success, time.Since(start))
	}()

	span, ctx := opentracing.StartSpanFromContext(ctx, "job."+string(req.Type))
	span.SetTag("job_id", req.JobID)
	span.SetTag("quality_tier", profile.Name)
	defer span.Finish()

	var err error
	switch req.Type {
	case models.JobLipsyncOnly:
		result, err = o.runLipsyncOnly(ctx, log, req, profile)
	case models.JobVideoRender:
		result, err = o.runVideoRender(ctx, log, req, profile)
	case models.JobPersonaBuild:
		result, err = o.runPersonaBuild(ctx, log, req)
	default:
		err = fmt.Errorf("unknown job type %q", req.Type)
	}
	if err != nil {
		span.SetTag("error", true)
		log.ErrorWithErr("job failed", err)
		return models.FailureResult(err, "", time.Since(start).Milliseconds())
	}
	result.DurationMs = time.Since(start).Milliseconds()
	return result
}

// runLipsyncOnly is the minimal pipeline: synthesis, tier-gated polish,
// final encode.
func (o *Orchestrator) runLipsyncOnly(ctx context.Context, log *logging.Logger, req *models.JobRequest, profile models.QualityProfile) (*models.JobResult, error) {
	if req.ImageRef() == "" || req.AudioRef() == "" {
		return nil, fmt.Errorf("lipsync_only requires source_image and driven_audio")
	}

	scratch, cleanup, err := o.newScratch()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	image := filepath.Join(scratch, "input_image")
	audio := filepath.Join(scratch, "input_audio")
	if err := o.transfer.Resolve(ctx, req.ImageRef(), image); err != nil {
		return nil, fmt.Errorf("failed to resolve source image: %w", err)
	}
	if err := o.transfer.Resolve(ctx, req.AudioRef(), audio); err != nil {
		return nil, fmt.Errorf("failed to resolve driven audio: %w", err)
	}

	results := map[string]StageResult{}

	syn, err := o.runFatalStage(ctx, log, req.JobID, "synthesis", results, func(ctx context.Context) (StageResult, error) {
		return o.runSynthesis(ctx, scratch, image, audio, profile)
	})
	if err != nil {
		return nil, err
	}
	current := syn.Output

	current = o.runStage(ctx, log, req.JobID, "face_restore", results, func(ctx context.Context) StageResult {
		return o.runFaceRestore(ctx, scratch, current, profile, req.FaceEnhance)
	}).Output
	current = o.runStage(ctx, log, req.JobID, "upscale", results, func(ctx context.Context) StageResult {
		return o.runUpscale(ctx, scratch, current, profile)
	}).Output
	current = o.runStage(ctx, log, req.JobID, "color_grade", results, func(ctx context.Context) StageResult {
		return o.runColorGrade(ctx, scratch, current, req.ColorGrade, profile)
	}).Output
	current = o.runStage(ctx, log, req.JobID, "film_grain", results, func(ctx context.Context) StageResult {
		return o.runFilmGrain(ctx, scratch, current, profile)
	}).Output

	enc, err := o.runFatalStage(ctx, log, req.JobID, "final_encode", results, func(ctx context.Context) (StageResult, error) {
		return o.runFinalEncode(ctx, scratch, current, "", profile, req.Format)
	})
	if err != nil {
		return nil, err
	}

	videoURL, err := o.transfer.Publish(ctx, enc.Output, "videos/"+req.JobID+"/output.mp4", "video/mp4")
	if err != nil {
		return nil, fmt.Errorf("failed to publish output: %w", err)
	}

	return &models.JobResult{
		Success:  true,
		Output:   map[string]string{"video": videoURL},
		Metadata: stageMetadata(profile, results),
	}, nil
}

// runVideoRender is the full production pipeline: synthesis, polish, audio
// bed with ducking, captions, look, final encode and thumbnail.
func (o *Orchestrator) runVideoRender(ctx context.Context, log *logging.Logger, req *models.JobRequest, profile models.QualityProfile) (*models.JobResult, error) {
	if req.ImageRef() == "" || req.AudioRef() == "" {
		return nil, fmt.Errorf("video_render requires source_image and driven_audio")
	}

	scratch, cleanup, err := o.newScratch()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	image := filepath.Join(scratch, "input_image")
	voice := filepath.Join(scratch, "input_audio")
	if err := o.transfer.Resolve(ctx, req.ImageRef(), image); err != nil {
		return nil, fmt.Errorf("failed to resolve source image: %w", err)
	}
	if err := o.transfer.Resolve(ctx, req.AudioRef(), voice); err != nil {
		return nil, fmt.Errorf("failed to resolve driven audio: %w", err)
	}

	// Background tracks are best-effort: an unreachable bed drops out of
	// the mix instead of failing the render.
	music := o.resolveOptional(ctx, log, req.MusicURL, filepath.Join(scratch, "music"), "music")
	ambience := o.resolveOptional(ctx, log, req.AmbienceURL, filepath.Join(scratch, "ambience"), "ambience")
	var sfx []soundTrack
	for i, cue := range req.SFXTracks {
		dest := filepath.Join(scratch, fmt.Sprintf("sfx_%02d", i))
		if path := o.resolveOptional(ctx, log, cue.URL, dest, "sfx"); path != "" {
			sfx = append(sfx, soundTrack{Path: path, Start: cue.StartTime, Volume: cue.Volume})
		}
	}

	results := map[string]StageResult{}

	syn, err := o.runFatalStage(ctx, log, req.JobID, "synthesis", results, func(ctx context.Context) (StageResult, error) {
		return o.runSynthesis(ctx, scratch, image, voice, profile)
	})
	if err != nil {
		return nil, err
	}
	current := syn.Output

	current = o.runStage(ctx, log, req.JobID, "face_restore", results, func(ctx context.Context) StageResult {
		return o.runFaceRestore(ctx, scratch, current, profile, req.FaceEnhance)
	}).Output
	current = o.runStage(ctx, log, req.JobID, "upscale", results, func(ctx context.Context) StageResult {
		return o.runUpscale(ctx, scratch, current, profile)
	}).Output

	duration := o.probeVoiceDuration(ctx, log, voice)
	ducking := models.DuckingConfig{}
	if req.Ducking != nil {
		ducking = *req.Ducking
	}
	mix := o.runStage(ctx, log, req.JobID, "audio_mix", results, func(ctx context.Context) StageResult {
		return o.runAudioMix(ctx, scratch, mixInputs{
			Voice:    voice,
			Music:    music,
			Ambience: ambience,
			SFX:      sfx,
			Duration: duration,
			Ducking:  ducking,
		})
	})

	current = o.runStage(ctx, log, req.JobID, "captions", results, func(ctx context.Context) StageResult {
		return o.runCaptions(ctx, scratch, current, req.Captions, req.CaptionStyle)
	}).Output
	current = o.runStage(ctx, log, req.JobID, "color_grade", results, func(ctx context.Context) StageResult {
		return o.runColorGrade(ctx, scratch, current, req.ColorGrade, profile)
	}).Output
	current = o.runStage(ctx, log, req.JobID, "film_grain", results, func(ctx context.Context) StageResult {
		return o.runFilmGrain(ctx, scratch, current, profile)
	}).Output

	format := req.Format
	if format == nil {
		f := models.DefaultOutputFormat()
		format = &f
	}
	enc, err := o.runFatalStage(ctx, log, req.JobID, "final_encode", results, func(ctx context.Context) (StageResult, error) {
		return o.runFinalEncode(ctx, scratch, current, mix.Output, profile, format)
	})
	if err != nil {
		return nil, err
	}

	output := map[string]string{}
	videoURL, err := o.transfer.Publish(ctx, enc.Output, "videos/"+req.JobID+"/output.mp4", "video/mp4")
	if err != nil {
		return nil, fmt.Errorf("failed to publish output: %w", err)
	}
	output["video"] = videoURL

	if thumb := o.extractThumbnail(ctx, scratch, enc.Output); thumb != "" {
		thumbURL, err := o.transfer.Publish(ctx, thumb, "videos/"+req.JobID+"/thumbnail.jpg", "image/jpeg")
		if err != nil {
			log.Warnf("failed to publish thumbnail: %v", err)
		} else {
			output["thumbnail"] = thumbURL
		}
	}

	meta := stageMetadata(profile, results)
	meta["voice_duration_seconds"] = duration
	return &models.JobResult{
		Success:  true,
		Output:   output,
		Metadata: meta,
	}, nil
}

// runPersonaBuild renders and publishes the persona's base take library.
func (o *Orchestrator) runPersonaBuild(ctx context.Context, log *logging.Logger, req *models.JobRequest) (*models.JobResult, error) {
	if req.ImageRef() == "" {
		return nil, fmt.Errorf("persona_build requires source_image")
	}

	personaID := req.PersonaID
	if personaID == "" {
		personaID = req.JobID
	}
	takes := req.Takes
	if len(takes) == 0 {
		takes = []models.TakeSpec{{Emotion: "neutral", Angle: "front"}}
	}

	scratch, cleanup, err := o.newScratch()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	image := filepath.Join(scratch, "input_image")
	if err := o.transfer.Resolve(ctx, req.ImageRef(), image); err != nil {
		return nil, fmt.Errorf("failed to resolve source image: %w", err)
	}

	baseTakes := make([]models.BaseTake, 0, len(takes))
	for i, take := range takes {
		if take.Emotion == "" {
			take.Emotion = "neutral"
		}
		if take.Angle == "" {
			take.Angle = "front"
		}

		clip, err := o.renderIdleTake(ctx, scratch, image, i)
		if err != nil {
			return nil, fmt.Errorf("take %s_%s: %w", take.Emotion, take.Angle, err)
		}

		duration, probeErr := o.ff.ProbeDuration(ctx, clip)
		if probeErr != nil || duration <= 0 {
			duration = 5
		}

		takeID := fmt.Sprintf("%s_%s", take.Emotion, take.Angle)
		key := fmt.Sprintf("personas/%s/takes/%s.mp4", personaID, takeID)
		url, err := o.transfer.Publish(ctx, clip, key, "video/mp4")
		if err != nil {
			return nil, fmt.Errorf("failed to publish take %s: %w", takeID, err)
		}

		baseTakes = append(baseTakes, models.BaseTake{
			ID:       takeID,
			Emotion:  take.Emotion,
			Angle:    take.Angle,
			VideoURL: url,
			Duration: duration,
		})
		log.Infof("published take %s for persona %s", takeID, personaID)
	}

	return &models.JobResult{
		Success: true,
		Output:  map[string]string{"persona_id": personaID},
		Metadata: map[string]interface{}{
			"persona_id": personaID,
			"base_takes": baseTakes,
			"take_count": len(baseTakes),
		},
	}, nil
}

// newScratch creates the per-job working directory. The cleanup func removes
// it with everything inside; every pipeline defers it so intermediates never
// outlive the job, success or failure.
func (o *Orchestrator) newScratch() (string, func(), error) {
	dir, err := os.MkdirTemp(o.scratchRoot, "studiopod-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			o.log.Warnf("scratch cleanup failed for %s: %v", dir, err)
		}
	}
	return dir, cleanup, nil
}

// resolveOptional fetches a best-effort input. On failure it logs and
// returns empty so the track simply drops out.
func (o *Orchestrator) resolveOptional(ctx context.Context, log *logging.Logger, ref, dest, kind string) string {
	if ref == "" {
		return ""
	}
	if err := o.transfer.Resolve(ctx, ref, dest); err != nil {
		log.Warnf("skipping %s track: %v", kind, err)
		return ""
	}
	return dest
}

// probeVoiceDuration measures the voice track, assuming a fixed length when
// the probe fails so background beds still terminate.
func (o *Orchestrator) probeVoiceDuration(ctx context.Context, log *logging.Logger, path string) float64 {
	duration, err := o.ff.ProbeDuration(ctx, path)
	if err != nil || duration <= 0 {
		log.Warnf("voice duration probe failed, assuming %ds: %v", fallbackVoiceSeconds, err)
		return fallbackVoiceSeconds
	}
	return duration
}

// runStage executes one non-mandatory stage with tracing, logging and
// metrics, and records its result.
func (o *Orchestrator) runStage(ctx context.Context, log *logging.Logger, jobID, name string, results map[string]StageResult, fn func(context.Context) StageResult) StageResult {
	span, ctx := opentracing.StartSpanFromContext(ctx, "stage."+name)
	defer span.Finish()

	start := time.Now()
	res := fn(ctx)
	res.Name = name
	res.Duration = time.Since(start)

	span.SetTag("status", res.Status.String())
	span.SetTag("method", res.Method)
	if res.Status == StatusDegraded {
		metrics.RecordDegradation(name)
		if res.Err != nil {
			log.WithStage(name).Warnf("stage degraded: %v", res.Err)
		}
	}
	log.LogStageComplete(jobID, name, res.Method, res.Status == StatusDegraded, res.Duration)
	metrics.RecordStage(name, res.Status.String(), res.Duration)

	results[name] = res
	return res
}

// runFatalStage executes a stage whose failure fails the job.
func (o *Orchestrator) runFatalStage(ctx context.Context, log *logging.Logger, jobID, name string, results map[string]StageResult, fn func(context.Context) (StageResult, error)) (StageResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "stage."+name)
	defer span.Finish()

	start := time.Now()
	res, err := fn(ctx)
	if err != nil {
		span.SetTag("error", true)
		metrics.RecordStage(name, "failed", time.Since(start))
		return res, err
	}
	res.Name = name
	res.Duration = time.Since(start)

	span.SetTag("status", res.Status.String())
	span.SetTag("method", res.Method)
	if res.Status == StatusDegraded {
		metrics.RecordDegradation(name)
	}
	log.LogStageComplete(jobID, name, res.Method, res.Status == StatusDegraded, res.Duration)
	metrics.RecordStage(name, res.Status.String(), res.Duration)

	results[name] = res
	return res, nil
}

// stageMetadata reports what the pipeline actually did, not what the tier
// requested. A degraded stage reads false here even when the tier enabled
// it, which is how callers detect silent quality loss.
func stageMetadata(profile models.QualityProfile, results map[string]StageResult) map[string]interface{} {
	m := map[string]interface{}{
		"quality_tier":                profile.Name,
		models.MetaFaceEnhanceApplied: results["face_restore"].Applied(),
		models.MetaUpscaleApplied:     results["upscale"].Applied(),
		models.MetaColorGradeApplied:  results["color_grade"].Applied(),
		models.MetaFilmGrainApplied:   results["film_grain"].Applied(),
		models.MetaAudioMixApplied:    results["audio_mix"].Applied(),
		models.MetaCaptionsApplied:    results["captions"].Applied(),
	}
	if results["upscale"].Applied() {
		m[models.MetaUpscaleFactor] = profile.UpscaleFactor
	}
	if syn, ok := results["synthesis"]; ok {
		m["synthesis_method"] = syn.Method
	}
	m["stage_timings_ms"] = stageTimings(results)
	return m
}

func stageTimings(results map[string]StageResult) map[string]int64 {
	t := make(map[string]int64, len(results))
	for name, r := range results {
		t[name] = r.Duration.Milliseconds()
	}
	return t
}
