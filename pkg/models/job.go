package models

// JobType identifies the pipeline a job runs through.
type JobType string

// Job type names accepted on the wire.
const (
	JobLipsyncOnly  JobType = "lipsync_only"
	JobVideoRender  JobType = "video_render"
	JobPersonaBuild JobType = "persona_build"
)

// JobRequest is the canonical job description. Older callers used `image`
// and `audio` where newer ones use `source_image` and `driven_audio`; the
// long forms are canonical and the short forms are accepted as deprecated
// aliases.
type JobRequest struct {
	Type    JobType `json:"job_type"`
	JobID   string  `json:"job_id,omitempty"`
	Quality string  `json:"quality,omitempty"`

	SourceImage string `json:"source_image,omitempty"`
	DrivenAudio string `json:"driven_audio,omitempty"`

	// Deprecated aliases, kept for older callers.
	Image string `json:"image,omitempty"`
	Audio string `json:"audio,omitempty"`

	MusicURL    string   `json:"music_url,omitempty"`
	AmbienceURL string   `json:"ambience_url,omitempty"`
	SFXTracks   []SFXCue `json:"sfx_tracks,omitempty"`

	Captions     []Caption     `json:"captions,omitempty"`
	CaptionStyle *CaptionStyle `json:"caption_style,omitempty"`

	// ColorGrade picks the grading look for tiers that grade. Empty means
	// cinematic.
	ColorGrade string `json:"color_grade,omitempty"`

	Format  *OutputFormat  `json:"format,omitempty"`
	Ducking *DuckingConfig `json:"ducking_config,omitempty"`

	// FaceEnhance overrides the tier toggle when set.
	FaceEnhance *bool `json:"face_enhance,omitempty"`

	PersonaID string     `json:"persona_id,omitempty"`
	Takes     []TakeSpec `json:"takes_to_generate,omitempty"`
}

// ImageRef returns the primary image reference, preferring the canonical
// field over the deprecated alias.
func (r *JobRequest) ImageRef() string {
	if r.SourceImage != "" {
		return r.SourceImage
	}
	return r.Image
}

// AudioRef returns the primary audio reference, preferring the canonical
// field over the deprecated alias.
func (r *JobRequest) AudioRef() string {
	if r.DrivenAudio != "" {
		return r.DrivenAudio
	}
	return r.Audio
}

// SFXCue is a delay-offset, volume-scaled sound effect mixed into the
// voice track.
type SFXCue struct {
	URL       string  `json:"url"`
	StartTime float64 `json:"start_time"`
	Volume    float64 `json:"volume"`
}

// Caption is one timed text overlay.
type Caption struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// CaptionStyle controls caption rendering.
type CaptionStyle struct {
	FontSize    int     `json:"font_size"`
	Color       string  `json:"color"`
	StrokeColor string  `json:"stroke_color"`
	StrokeWidth int     `json:"stroke_width"`
	PositionY   float64 `json:"position_y"` // fraction of frame height
}

// WithDefaults fills unset style fields with the default caption look.
func (s CaptionStyle) WithDefaults() CaptionStyle {
	if s.FontSize <= 0 {
		s.FontSize = 48
	}
	if s.Color == "" {
		s.Color = "white"
	}
	if s.StrokeColor == "" {
		s.StrokeColor = "black"
	}
	if s.StrokeWidth <= 0 {
		s.StrokeWidth = 2
	}
	if s.PositionY <= 0 || s.PositionY >= 1 {
		s.PositionY = 0.75
	}
	return s
}

// OutputFormat is the target container geometry and frame rate.
type OutputFormat struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	FPS    int `json:"fps"`
}

// DefaultOutputFormat is portrait 1080p at 30fps, the short-form delivery
// target.
func DefaultOutputFormat() OutputFormat {
	return OutputFormat{Width: 1080, Height: 1920, FPS: 30}
}

// DuckingConfig tunes background-music ducking. Threshold and ratio are
// fixed by the mixer; only these fields are caller-adjustable.
type DuckingConfig struct {
	BaseVolume float64 `json:"base_volume"`
	AttackMs   int     `json:"attack_ms"`
	ReleaseMs  int     `json:"release_ms"`
}

// WithDefaults fills unset ducking fields.
func (d DuckingConfig) WithDefaults() DuckingConfig {
	if d.BaseVolume <= 0 {
		d.BaseVolume = 0.15
	}
	if d.AttackMs <= 0 {
		d.AttackMs = 50
	}
	if d.ReleaseMs <= 0 {
		d.ReleaseMs = 300
	}
	return d
}

// TakeSpec describes one persona base take to generate.
type TakeSpec struct {
	Emotion   string  `json:"emotion"`
	Angle     string  `json:"angle"`
	Intensity float64 `json:"intensity,omitempty"`
}

// BaseTake is one published persona take.
type BaseTake struct {
	ID       string  `json:"id"`
	Emotion  string  `json:"emotion"`
	Angle    string  `json:"angle"`
	VideoURL string  `json:"video_url"`
	Duration float64 `json:"duration"`
}
