package texbot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/alnah/go-texbot/internal/fileutil"
)

const tracerName = "github.com/alnah/go-texbot"

// Observer is notified as renders progress. Implementations must be safe
// for concurrent use and must not block.
type Observer interface {
	RenderStarted()
	StageFinished(stage State, d time.Duration, err error)
	RenderFinished(o Outcome, d time.Duration)
}

type noopObserver struct{}

func (noopObserver) RenderStarted()                            {}
func (noopObserver) StageFinished(State, time.Duration, error) {}
func (noopObserver) RenderFinished(Outcome, time.Duration)     {}

// Pipeline turns render requests into images or error reports.
// It is safe for concurrent use. Identical concurrent requests share one
// render; distinct requests run in parallel on the caller's goroutines.
type Pipeline struct {
	cache        *FileCache
	compiler     Compiler
	rasterizer   Rasterizer
	renderer     DirectRenderer
	uploader     Uploader
	interpreter  *Interpreter
	logger       logrus.FieldLogger
	observer     Observer
	tracer       trace.Tracer
	stageTimeout time.Duration
	group        singleflight.Group
}

// NewPipeline creates a pipeline whose artifacts live in workDir, which is
// created if missing.
func NewPipeline(workDir string, opts ...Option) (*Pipeline, error) {
	if workDir == "" {
		return nil, ErrInvalidWorkDir
	}

	p := &Pipeline{
		logger:       discardLogger(),
		observer:     noopObserver{},
		tracer:       otel.Tracer(tracerName),
		stageTimeout: DefaultStageTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}

	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("resolving work directory: %w", err)
	}

	p.cache = NewFileCache(workDir, p.renderer != nil)
	if err := p.cache.EnsureDir(); err != nil {
		return nil, err
	}

	if p.renderer == nil {
		if p.compiler == nil {
			p.compiler = NewLatexCompiler(workDir)
		}
		if p.rasterizer == nil {
			p.rasterizer = NewCropRasterizer(workDir)
		}
	}
	if p.interpreter == nil {
		p.interpreter = NewInterpreter(p.uploader, p.logger)
	}
	return p, nil
}

// Cache returns the artifact cache backing the pipeline.
func (p *Pipeline) Cache() *FileCache { return p.cache }

// Close releases the direct renderer, if it holds resources.
func (p *Pipeline) Close() error {
	if c, ok := p.renderer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Render runs one request to a terminal state. It never panics and never
// returns an error: failures are carried in Outcome.Report for the user and
// Outcome.Err for the operator.
//
// The render itself is detached from ctx cancellation so that requests
// sharing it are not failed by the first caller leaving; stage timeouts
// still bound it.
func (p *Pipeline) Render(ctx context.Context, req Request) Outcome {
	start := time.Now()
	key := DeriveKey(req.Markup, req.Mode)

	log := p.logger.WithFields(logrus.Fields{"key": key.String(), "mode": req.Mode.String()})
	if id := RequestID(ctx); id != "" {
		log = log.WithField("request_id", id)
	}

	ctx, span := p.tracer.Start(ctx, "texbot.render", trace.WithAttributes(
		attribute.String("texbot.key", key.String()),
		attribute.String("texbot.mode", req.Mode.String()),
	))
	defer span.End()

	p.observer.RenderStarted()
	log.Debug("render received")

	// Do reports shared to the leader as well, so only callers whose
	// closure never ran are marked.
	led := false
	v, _, _ := p.group.Do(key.String(), func() (any, error) {
		led = true
		return p.run(context.WithoutCancel(ctx), req, key, log), nil
	})
	out := v.(Outcome)
	out.Shared = !led

	span.SetAttributes(
		attribute.String("texbot.state", out.State.String()),
		attribute.Bool("texbot.cache_hit", out.CacheHit),
		attribute.Bool("texbot.shared", out.Shared),
	)
	if out.Err != nil {
		span.SetStatus(codes.Error, out.Err.Error())
	}

	p.observer.RenderFinished(out, time.Since(start))
	return out
}

// run walks the state machine for one key.
func (p *Pipeline) run(ctx context.Context, req Request, key CacheKey, log logrus.FieldLogger) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = p.fail(key, StateReportError, fmt.Errorf("internal error: %v", r), log)
		}
	}()

	if set, hit := p.cache.Lookup(key); hit {
		log.Debug("cache hit")
		return Outcome{Key: key, State: StateDeliver, Image: set.Image, CacheHit: true}
	}

	body := req.Body()
	if p.renderer != nil {
		return p.renderDirect(ctx, body, key, log)
	}

	var pdf string
	err := p.stage(ctx, StateCompiling, func(ctx context.Context) error {
		var err error
		pdf, err = p.compiler.Compile(ctx, body, key)
		return err
	})
	if err != nil {
		if ce, ok := IsCompileError(err); ok {
			log.WithFields(logrus.Fields{"exit_code": ce.ExitCode, "log": ce.Log}).Info("compile failed")
			report := p.interpreter.Interpret(ctx, ce.Log, key)
			return Outcome{Key: key, State: StateReportError, Report: &report, Err: err}
		}
		return p.fail(key, StateCompiling, err, log)
	}

	var img string
	err = p.stage(ctx, StateRasterizing, func(ctx context.Context) error {
		var err error
		img, err = p.rasterizer.Rasterize(ctx, pdf, key)
		return err
	})
	if err != nil {
		return p.fail(key, StateRasterizing, err, log)
	}
	// Adapters are trusted to report failures, but a zero-byte image must
	// never be delivered.
	if !fileutil.NonEmptyFile(img) {
		return p.fail(key, StateRasterizing, fmt.Errorf("%w: %w", ErrRasterize, ErrEmptyOutput), log)
	}

	log.Info("render delivered")
	return Outcome{Key: key, State: StateDeliver, Image: img}
}

func (p *Pipeline) renderDirect(ctx context.Context, body string, key CacheKey, log logrus.FieldLogger) Outcome {
	img := p.cache.Paths(key).Image
	err := p.stage(ctx, StateRendering, func(ctx context.Context) error {
		return p.renderer.Render(ctx, body, key, img)
	})
	if err != nil {
		return p.fail(key, StateRendering, err, log)
	}
	if !fileutil.NonEmptyFile(img) {
		return p.fail(key, StateRendering, fmt.Errorf("%w: %w", ErrRasterize, ErrEmptyOutput), log)
	}

	log.Info("render delivered")
	return Outcome{Key: key, State: StateDeliver, Image: img}
}

// stage runs fn under the stage timeout and a span, and reports it to the
// observer. A stage that overran its deadline always yields ErrTimeout.
func (p *Pipeline) stage(ctx context.Context, s State, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "texbot."+s.String())
	defer span.End()

	if p.stageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.stageTimeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx)
	if err != nil && !errors.Is(err, ErrTimeout) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	p.observer.StageFinished(s, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// fail logs the full error and builds a non-diagnostic report.
func (p *Pipeline) fail(key CacheKey, stage State, err error, log logrus.FieldLogger) Outcome {
	log.WithFields(logrus.Fields{"stage": stage.String(), "error": err}).Error("render failed")
	report := GenericReport(err)
	return Outcome{Key: key, State: StateReportError, Report: &report, Err: err}
}
