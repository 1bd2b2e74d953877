package models

// QualityProfile is an immutable configuration bundle for one quality tier.
// The values trade render latency against fidelity: as tiers go up, CRF
// never increases and batch size never increases.
type QualityProfile struct {
	Name              string  `json:"name"`
	FPS               int     `json:"fps"`
	BatchSize         int     `json:"batch_size"`
	FaceEnhance       bool    `json:"face_enhance"`
	Upscale           bool    `json:"upscale"`
	UpscaleFactor     int     `json:"upscale_factor"`
	VideoBitrate      string  `json:"video_bitrate"`
	AudioBitrate      string  `json:"audio_bitrate"`
	CRF               int     `json:"crf"`
	Preset            string  `json:"preset"`
	ColorGrading      bool    `json:"color_grading"`
	TemporalSmoothing bool    `json:"temporal_smoothing"`
	FilmGrain         float64 `json:"film_grain"`
}

// DefaultTier is substituted for unrecognized tier names.
const DefaultTier = "standard"

// TierOrder lists tier names from fastest to highest fidelity.
var TierOrder = []string{"realtime", "draft", "standard", "high", "pixar", "cinema"}

var qualityProfiles = map[string]QualityProfile{
	// Live avatar interactions, latency over fidelity.
	"realtime": {
		Name:          "realtime",
		FPS:           25,
		BatchSize:     16,
		UpscaleFactor: 1,
		VideoBitrate:  "2M",
		AudioBitrate:  "128k",
		CRF:           28,
		Preset:        "ultrafast",
	},
	// Quick previews.
	"draft": {
		Name:          "draft",
		FPS:           25,
		BatchSize:     8,
		UpscaleFactor: 1,
		VideoBitrate:  "4M",
		AudioBitrate:  "128k",
		CRF:           26,
		Preset:        "fast",
	},
	// Balanced default.
	"standard": {
		Name:          "standard",
		FPS:           30,
		BatchSize:     4,
		FaceEnhance:   true,
		UpscaleFactor: 1,
		VideoBitrate:  "8M",
		AudioBitrate:  "192k",
		CRF:           23,
		Preset:        "medium",
	},
	// Premium output.
	"high": {
		Name:          "high",
		FPS:           30,
		BatchSize:     2,
		FaceEnhance:   true,
		Upscale:       true,
		UpscaleFactor: 2,
		VideoBitrate:  "12M",
		AudioBitrate:  "256k",
		CRF:           20,
		Preset:        "slow",
	},
	// Studio-quality output.
	"pixar": {
		Name:              "pixar",
		FPS:               30,
		BatchSize:         1,
		FaceEnhance:       true,
		Upscale:           true,
		UpscaleFactor:     2,
		VideoBitrate:      "20M",
		AudioBitrate:      "320k",
		CRF:               17,
		Preset:            "slow",
		ColorGrading:      true,
		TemporalSmoothing: true,
	},
	// Theatrical release quality.
	"cinema": {
		Name:              "cinema",
		FPS:               30,
		BatchSize:         1,
		FaceEnhance:       true,
		Upscale:           true,
		UpscaleFactor:     4,
		VideoBitrate:      "40M",
		AudioBitrate:      "320k",
		CRF:               14,
		Preset:            "veryslow",
		ColorGrading:      true,
		TemporalSmoothing: true,
		FilmGrain:         0.02,
	},
}

// ResolveProfile maps a tier name to its profile. An unrecognized name is a
// caller mistake, not a fatal error: it resolves to the standard tier.
func ResolveProfile(tier string) QualityProfile {
	if p, ok := qualityProfiles[tier]; ok {
		return p
	}
	return qualityProfiles[DefaultTier]
}
