package idle

import (
	"math"
	"testing"
)

func TestBlinkEnvelope(t *testing.T) {
	tests := []struct {
		name string
		tMs  float64
		want float64
	}{
		{"blink start", 0, 0},
		{"blink peak", 75, 1},
		{"blink end", 150, 0},
		{"eyes open mid-interval", 2500, 0},
		{"next cycle peak", 5075, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Blink(tt.tMs); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Blink(%v) = %v, want %v", tt.tMs, got, tt.want)
			}
		})
	}
}

func TestBlinkBounded(t *testing.T) {
	for tMs := 0.0; tMs < 20000; tMs += 13 {
		got := Blink(tMs)
		if got < 0 || got > 1 {
			t.Fatalf("Blink(%v) = %v out of [0,1]", tMs, got)
		}
	}
}

func TestBreathPeriod(t *testing.T) {
	if got := Breath(0); math.Abs(got) > 1e-9 {
		t.Errorf("Breath(0) = %v, want 0", got)
	}
	if got := Breath(1000); math.Abs(got-1) > 1e-9 {
		t.Errorf("Breath(1000) = %v, want 1 at quarter cycle", got)
	}
	if got := Breath(4000); math.Abs(got) > 1e-9 {
		t.Errorf("Breath(4000) = %v, want 0 after full cycle", got)
	}
}

func TestMicroCurveShape(t *testing.T) {
	// Pitch starts at rest; yaw and roll start mid-swing through their
	// phase offsets, and roll swings at half amplitude.
	pitch, yaw, roll := Micro(0)
	if math.Abs(pitch) > 1e-9 {
		t.Errorf("Micro(0) pitch = %v, want 0", pitch)
	}
	if math.Abs(yaw-microScale*math.Sin(1)) > 1e-9 {
		t.Errorf("Micro(0) yaw = %v, want %v", yaw, microScale*math.Sin(1))
	}
	if math.Abs(roll-microScale*0.5*math.Sin(2)) > 1e-9 {
		t.Errorf("Micro(0) roll = %v, want %v", roll, microScale*0.5*math.Sin(2))
	}

	// One full pitch cycle is 2*pi/0.0003 ms.
	pitchAgain, _, _ := Micro(2 * math.Pi / 0.0003)
	if math.Abs(pitchAgain) > 1e-9 {
		t.Errorf("pitch after full period = %v, want 0", pitchAgain)
	}
}

func TestMicroBounded(t *testing.T) {
	for tMs := 0.0; tMs < 60000; tMs += 97 {
		pitch, yaw, roll := Micro(tMs)
		for _, v := range []float64{pitch, yaw, roll} {
			if math.Abs(v) > microScale {
				t.Fatalf("Micro(%v) = (%v, %v, %v), axis beyond %v", tMs, pitch, yaw, roll, microScale)
			}
		}
	}
}

func TestSampleConsistent(t *testing.T) {
	p := Sample(75)
	if p.Blink != Blink(75) || p.Breath != Breath(75) {
		t.Error("Sample disagrees with individual curves")
	}
}
