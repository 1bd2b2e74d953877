package pipeline

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Status classifies how a stage produced its output.
type Status int

const (
	// StatusSkipped means the stage was not enabled for this tier or job.
	// It is the zero value so stages that never ran read as not applied.
	StatusSkipped Status = iota
	// StatusApplied means the stage's primary or alternate method produced
	// a new artifact.
	StatusApplied
	// StatusDegraded means every method failed and the input was carried
	// forward unmodified (or, for synthesis, the static-mux fallback ran).
	StatusDegraded
)

// String returns the status name used in logs and span tags.
func (s Status) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusApplied:
		return "applied"
	case StatusDegraded:
		return "degraded"
	}
	return "unknown"
}

// StageResult is the visible outcome of one pipeline stage. Non-mandatory
// stages always return a result; only synthesis and the final encode can
// fail the job, and they do so through an ordinary error return.
type StageResult struct {
	Name     string
	Status   Status
	Method   string
	Output   string
	Duration time.Duration
	Err      error // cause of degradation; nil when applied or skipped
}

// Applied reports whether the stage's real method ran to completion.
func (r StageResult) Applied() bool {
	return r.Status == StatusApplied
}

// skipped builds the result for a stage disabled by tier or job inputs.
// The current artifact passes through untouched.
func skipped(input string) StageResult {
	return StageResult{Status: StatusSkipped, Method: "noop", Output: input}
}

// copyForward copies the stage input to the stage output path, the terminal
// fallback that guarantees the pipeline always has an artifact to continue
// with.
func copyForward(input, output string) error {
	src, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", input, err)
	}
	defer src.Close()

	dst, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", output, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy %s: %w", input, err)
	}
	return nil
}

// degrade builds the copy-forward result for a failed non-mandatory stage.
// When even the copy fails the input path itself is reused, which is always
// readable since the previous stage produced it.
func degrade(input, output string, cause error) StageResult {
	if err := copyForward(input, output); err != nil {
		return StageResult{Status: StatusDegraded, Method: "copy_forward", Output: input, Err: cause}
	}
	return StageResult{Status: StatusDegraded, Method: "copy_forward", Output: output, Err: cause}
}
