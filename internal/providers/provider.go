// Package providers wraps the external neural inference engines (lip-sync,
// face restoration, super-resolution) behind a uniform capability contract.
// Readiness is checked once per process through EnsureReady instead of
// ad-hoc first-use initialization inside the pipeline.
package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"

	"github.com/personaforge/studiopod/internal/config"
)

// ErrUnavailable marks a provider whose engine is not installed or not
// configured. Stages treat it as a degradation trigger, not a job failure.
var ErrUnavailable = errors.New("provider unavailable")

// Request carries the media references and parameters for one inference run.
// Fields irrelevant to a given provider are ignored by it.
type Request struct {
	Image  string
	Audio  string
	Video  string
	Output string

	FPS               int
	BatchSize         int
	Scale             int
	TemporalSmoothing bool
}

// Provider is one neural capability: an idempotent readiness check plus a
// blocking media-in, media-out render operation.
type Provider interface {
	Name() string
	EnsureReady(ctx context.Context) error
	Render(ctx context.Context, req Request) error
}

// commandProvider shells out to an external inference process.
type commandProvider struct {
	name     string
	command  string
	baseArgs []string
	buildArg func(req Request) []string

	once     sync.Once
	readyErr error
}

// Name returns the provider name used in logs and metadata.
func (p *commandProvider) Name() string { return p.name }

// EnsureReady resolves the inference command once. Subsequent calls return
// the cached result; a missing or unconfigured command yields
// ErrUnavailable.
func (p *commandProvider) EnsureReady(ctx context.Context) error {
	p.once.Do(func() {
		if p.command == "" {
			p.readyErr = fmt.Errorf("%s: no command configured: %w", p.name, ErrUnavailable)
			return
		}
		if _, err := exec.LookPath(p.command); err != nil {
			p.readyErr = fmt.Errorf("%s: %v: %w", p.name, err, ErrUnavailable)
		}
	})
	return p.readyErr
}

// Render runs the inference process to completion.
func (p *commandProvider) Render(ctx context.Context, req Request) error {
	if err := p.EnsureReady(ctx); err != nil {
		return err
	}

	args := append(append([]string{}, p.baseArgs...), p.buildArg(req)...)
	cmd := exec.CommandContext(ctx, p.command, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s inference failed: %w, stderr: %s", p.name, err, stderr.String())
	}

	return nil
}

// NewLipSync creates a lip-sync synthesis provider (image + audio in,
// talking video out).
func NewLipSync(name string, cfg config.ProviderConfig) Provider {
	return &commandProvider{
		name:     name,
		command:  cfg.Command,
		baseArgs: cfg.Args,
		buildArg: func(req Request) []string {
			return []string{
				"--image", req.Image,
				"--audio", req.Audio,
				"--output", req.Output,
				"--fps", fmt.Sprintf("%d", req.FPS),
				"--batch-size", fmt.Sprintf("%d", req.BatchSize),
			}
		},
	}
}

// NewFaceRestore creates a frame-by-frame face restoration provider.
func NewFaceRestore(name string, cfg config.ProviderConfig) Provider {
	return &commandProvider{
		name:     name,
		command:  cfg.Command,
		baseArgs: cfg.Args,
		buildArg: func(req Request) []string {
			return []string{
				"--input", req.Video,
				"--output", req.Output,
			}
		},
	}
}

// NewUpscale creates a frame-by-frame super-resolution provider. When
// temporal smoothing is requested the engine blends consecutive upscaled
// frames with weight 0.85 on the current frame.
func NewUpscale(name string, cfg config.ProviderConfig) Provider {
	return &commandProvider{
		name:     name,
		command:  cfg.Command,
		baseArgs: cfg.Args,
		buildArg: func(req Request) []string {
			args := []string{
				"--input", req.Video,
				"--output", req.Output,
				"--scale", fmt.Sprintf("%d", req.Scale),
			}
			if req.TemporalSmoothing {
				args = append(args, "--temporal-smoothing", "0.85")
			}
			return args
		},
	}
}
