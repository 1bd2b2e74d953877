// Package tracing initializes the Jaeger tracer behind the opentracing
// global.
package tracing

import (
	"fmt"
	"io"

	"github.com/opentracing/opentracing-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"

	"github.com/personaforge/studiopod/internal/config"
)

type noopCloser struct{}

func (noopCloser) Close() error { return nil }

// Init installs the global tracer. With tracing disabled every span is a
// no-op, so callers never need to branch.
func Init(cfg config.TracingConfig) (io.Closer, error) {
	if !cfg.Enabled {
		opentracing.SetGlobalTracer(opentracing.NoopTracer{})
		return noopCloser{}, nil
	}

	jcfg := jaegercfg.Configuration{
		ServiceName: cfg.ServiceName,
		Sampler: &jaegercfg.SamplerConfig{
			Type:  "const",
			Param: 1,
		},
		Reporter: &jaegercfg.ReporterConfig{
			CollectorEndpoint: cfg.JaegerEndpoint,
			LogSpans:          false,
		},
	}

	tracer, closer, err := jcfg.NewTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	opentracing.SetGlobalTracer(tracer)
	return closer, nil
}
