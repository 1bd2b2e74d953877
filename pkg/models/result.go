package models

// JobResult is the record returned for every job invocation. It is built
// once per job and immutable after construction; the caller always receives
// a well-formed result, success or not.
type JobResult struct {
	Success    bool                   `json:"success"`
	Output     map[string]string      `json:"output,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	DurationMs int64                  `json:"duration_ms"`
	Error      string                 `json:"error,omitempty"`
	Trace      string                 `json:"trace,omitempty"`
}

// Metadata keys for the per-stage applied flags. Callers inspect these to
// detect silent degradation: a stage that fell back reports false here even
// when the tier requested it.
const (
	MetaFaceEnhanceApplied = "face_enhance_applied"
	MetaUpscaleApplied     = "upscale_applied"
	MetaUpscaleFactor      = "upscale_factor"
	MetaColorGradeApplied  = "color_grade_applied"
	MetaFilmGrainApplied   = "film_grain_applied"
	MetaAudioMixApplied    = "audio_mix_applied"
	MetaCaptionsApplied    = "captions_applied"
)

// FailureResult builds the result record for a job-fatal error.
func FailureResult(err error, trace string, durationMs int64) *JobResult {
	return &JobResult{
		Success:    false,
		Error:      err.Error(),
		Trace:      trace,
		DurationMs: durationMs,
	}
}
