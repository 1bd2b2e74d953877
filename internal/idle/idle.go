// Package idle computes procedural idle-animation curves for persona base
// takes: periodic blinks, a breathing cycle and small head movements. The
// curves are deterministic in the clip timestamp so loops stay seamless.
// Nothing here touches media files; an animating engine samples these per
// frame.
package idle

import "math"

// Curve timing, all in milliseconds.
const (
	blinkIntervalMs = 5000
	blinkDurationMs = 150
	breathPeriodMs  = 4000

	// microScale bounds the head micro-movement amplitude in radians.
	microScale = 0.02
)

// Pose is the sampled idle state at one timestamp.
type Pose struct {
	// Blink is eyelid closure, 0 open through 1 fully closed.
	Blink float64
	// Breath is the chest cycle, -1 through 1.
	Breath float64
	// Pitch, Yaw and Roll are head offsets in radians.
	Pitch float64
	Yaw   float64
	Roll  float64
}

// Blink returns eyelid closure at t milliseconds. Blinks fire every five
// seconds and close-then-open over 150ms as a triangular pulse.
func Blink(tMs float64) float64 {
	phase := math.Mod(tMs, blinkIntervalMs)
	if phase < 0 {
		phase += blinkIntervalMs
	}
	if phase >= blinkDurationMs {
		return 0
	}
	half := float64(blinkDurationMs) / 2
	if phase < half {
		return phase / half
	}
	return (blinkDurationMs - phase) / half
}

// Breath returns the breathing cycle at t milliseconds, a four-second sine.
func Breath(tMs float64) float64 {
	return math.Sin(2 * math.Pi * tMs / breathPeriodMs)
}

// Micro returns the small head rotations at t milliseconds. The axes run
// at incommensurate frequencies with phase offsets so the combined motion
// never visibly repeats within a take; roll swings at half amplitude.
func Micro(tMs float64) (pitch, yaw, roll float64) {
	pitch = microScale * math.Sin(tMs*0.0003)
	yaw = microScale * math.Sin(tMs*0.0005+1)
	roll = microScale * 0.5 * math.Sin(tMs*0.0002+2)
	return pitch, yaw, roll
}

// Sample evaluates all idle curves at t milliseconds.
func Sample(tMs float64) Pose {
	pitch, yaw, roll := Micro(tMs)
	return Pose{
		Blink:  Blink(tMs),
		Breath: Breath(tMs),
		Pitch:  pitch,
		Yaw:    yaw,
		Roll:   roll,
	}
}
