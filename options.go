package texbot

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCompiler replaces the default xelatex compiler.
func WithCompiler(c Compiler) Option {
	return func(p *Pipeline) { p.compiler = c }
}

// WithRasterizer replaces the default pdfcrop/convert rasterizer.
func WithRasterizer(r Rasterizer) Option {
	return func(p *Pipeline) { p.rasterizer = r }
}

// WithRenderer switches the pipeline to a direct renderer. Compiler and
// rasterizer are then unused, and the cache only tracks images.
func WithRenderer(r DirectRenderer) Option {
	return func(p *Pipeline) { p.renderer = r }
}

// WithUploader sets the paste service used for long compile logs.
// Ignored when WithInterpreter is given.
func WithUploader(u Uploader) Option {
	return func(p *Pipeline) { p.uploader = u }
}

// WithInterpreter replaces the default failure interpreter.
func WithInterpreter(i *Interpreter) Option {
	return func(p *Pipeline) { p.interpreter = i }
}

// WithLogger sets the operator log. Defaults to a discarding logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithObserver sets the hook notified of stage and render completions.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithTracerProvider sets where stage spans are recorded. Defaults to the
// global OpenTelemetry provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Pipeline) {
		if tp != nil {
			p.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithStageTimeout bounds each external stage. Zero disables the bound.
func WithStageTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.stageTimeout = d }
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
