package texbot

// Notes:
// - Pipelines use the real compiler, rasterizer and cache with stub runners,
//   so the whole state machine runs against a temp work dir.
// - The single-flight test tolerates late arrivals: a request that misses
//   the shared render finds the cache populated instead. Either way the
//   compiler must run exactly once.

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestPipeline(t *testing.T, r CommandRunner, opts ...Option) *Pipeline {
	t.Helper()
	dir := t.TempDir()

	c := NewLatexCompiler(dir)
	c.Runner = r
	rz := NewCropRasterizer(dir)
	rz.Runner = r

	opts = append([]Option{WithCompiler(c), WithRasterizer(rz)}, opts...)
	p, err := NewPipeline(dir, opts...)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	return p
}

func assertNonEmpty(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	if info.Size() == 0 {
		t.Fatalf("%s is empty", path)
	}
}

// ---------------------------------------------------------------------------
// TestPipeline_Render - Success path and caching
// ---------------------------------------------------------------------------

func TestPipeline_Render_Delivers(t *testing.T) {
	t.Parallel()

	r := newStubRunner(okToolchain())
	p := newTestPipeline(t, r)

	out := p.Render(context.Background(), Request{Markup: "x = 7", Mode: ModeInline})
	if !out.Delivered() {
		t.Fatalf("Render() = %+v, want delivered", out)
	}
	if !strings.HasSuffix(out.Image, ".png") {
		t.Errorf("image %q does not end in .png", out.Image)
	}
	assertNonEmpty(t, out.Image)
	if out.Report != nil || out.Err != nil {
		t.Errorf("unexpected report %v / err %v", out.Report, out.Err)
	}
	if out.Key != DeriveKey("x = 7", ModeInline) {
		t.Errorf("key = %q", out.Key)
	}
	if out.CacheHit {
		t.Error("first render reported as cache hit")
	}
}

func TestPipeline_Render_CacheHitSkipsToolchain(t *testing.T) {
	t.Parallel()

	r := newStubRunner(okToolchain())
	p := newTestPipeline(t, r)

	key := DeriveKey("$y$", ModeDisplayed)
	set := p.Cache().Paths(key)
	if err := os.WriteFile(set.Document, []byte("%PDF"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(set.Image, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := p.Render(context.Background(), Request{Markup: "$y$", Mode: ModeDisplayed})
	if !out.Delivered() || !out.CacheHit {
		t.Fatalf("Render() = %+v, want cache hit", out)
	}
	if out.Image != set.Image {
		t.Errorf("image = %q, want %q", out.Image, set.Image)
	}
	if r.total() != 0 {
		t.Errorf("toolchain invoked %d times on cache hit", r.total())
	}
}

func TestPipeline_Render_Idempotent(t *testing.T) {
	t.Parallel()

	r := newStubRunner(okToolchain())
	p := newTestPipeline(t, r)
	req := Request{Markup: `\sqrt{a^2 + b^2} = c`, Mode: ModeDisplayed}

	first := p.Render(context.Background(), req)
	second := p.Render(context.Background(), req)

	if !first.Delivered() || !second.Delivered() {
		t.Fatalf("renders not delivered: %+v / %+v", first, second)
	}
	if first.Image != second.Image {
		t.Errorf("image paths differ: %q vs %q", first.Image, second.Image)
	}
	if !second.CacheHit {
		t.Error("second render is not a cache hit")
	}
	if n := r.count("xelatex"); n != 1 {
		t.Errorf("xelatex invoked %d times, want 1", n)
	}
}

func TestPipeline_Render_ModesDoNotShareArtifacts(t *testing.T) {
	t.Parallel()

	r := newStubRunner(okToolchain())
	p := newTestPipeline(t, r)

	a := p.Render(context.Background(), Request{Markup: "x", Mode: ModeInline})
	b := p.Render(context.Background(), Request{Markup: "x", Mode: ModeDisplayed})
	if a.Image == b.Image || b.CacheHit {
		t.Errorf("inline and displayed renders share artifacts: %q", a.Image)
	}
}

// ---------------------------------------------------------------------------
// TestPipeline_Render_Failures - Report selection
// ---------------------------------------------------------------------------

func TestPipeline_Render_CompileError(t *testing.T) {
	t.Parallel()

	key := DeriveKey(`\frac{1`, ModeInline)
	log := "This is XeTeX, Version 3.141592653-2.6-0.999995 (TeX Live 2023)\n" +
		"./" + key.String() + ".tex:12: File ended while scanning use of \\frac.\n" +
		"! Missing } inserted.\n" +
		"<inserted text>\n" +
		"                }\n"

	r := newStubRunner(map[string]stubHandler{
		"xelatex": failXelatex(log),
		"pdfcrop": okPdfcrop,
		"convert": okConvert,
	})
	p := newTestPipeline(t, r)

	out := p.Render(context.Background(), Request{Markup: `\frac{1`})
	if out.State != StateReportError || out.Report == nil {
		t.Fatalf("Render() = %+v, want report", out)
	}
	if out.Report.Kind != ReportInline {
		t.Errorf("Kind = %v, want inline", out.Report.Kind)
	}
	if strings.Contains(out.Report.Text, "This is XeTeX") {
		t.Error("report contains the engine banner")
	}
	if strings.Contains(out.Report.Text, key.String()) {
		t.Error("report contains the cache key")
	}
	if !strings.Contains(out.Report.Text, "Missing } inserted.") {
		t.Errorf("report text = %q", out.Report.Text)
	}
	if _, ok := IsCompileError(out.Err); !ok {
		t.Errorf("Err = %v, want *CompileError", out.Err)
	}
	if r.count("pdfcrop")+r.count("convert") != 0 {
		t.Error("rasterizer invoked after compile failure")
	}
}

func TestPipeline_Render_LongLogUploaded(t *testing.T) {
	t.Parallel()

	r := newStubRunner(map[string]stubHandler{
		"xelatex": failXelatex("banner\n" + strings.Repeat("! Undefined control sequence.\n", 40)),
	})
	up := &stubUploader{link: "https://paste.example/raw/k"}
	p := newTestPipeline(t, r, WithUploader(up))

	out := p.Render(context.Background(), Request{Markup: `\foo`})
	if out.Report == nil || out.Report.Kind != ReportPaste {
		t.Fatalf("Render() = %+v, want paste report", out)
	}
	if out.Report.Link != up.link {
		t.Errorf("Link = %q", out.Report.Link)
	}
}

func TestPipeline_Render_ZeroByteImage(t *testing.T) {
	t.Parallel()

	r := newStubRunner(map[string]stubHandler{
		"xelatex": okXelatex,
		"pdfcrop": okPdfcrop,
		"convert": emptyConvert,
	})
	p := newTestPipeline(t, r)

	out := p.Render(context.Background(), Request{Markup: "x = 7"})
	if out.Delivered() {
		t.Fatal("empty image delivered")
	}
	if !errors.Is(out.Err, ErrRasterize) {
		t.Errorf("Err = %v, want ErrRasterize", out.Err)
	}
	if out.Report == nil || out.Report.Kind != ReportGeneric {
		t.Errorf("Report = %+v, want generic", out.Report)
	}

	// The failed render must not poison the cache.
	if _, hit := p.Cache().Lookup(out.Key); hit {
		t.Error("cache hit after rasterize failure")
	}
}

// Adapters that report success but leave nothing behind are caught too.
type lyingRasterizer struct{ dir string }

func (l lyingRasterizer) Rasterize(_ context.Context, _ string, key CacheKey) (string, error) {
	p := filepath.Join(l.dir, key.String()+".png")
	return p, os.WriteFile(p, nil, 0o644)
}

func TestPipeline_Render_LyingRasterizer(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := NewLatexCompiler(dir)
	c.Runner = newStubRunner(okToolchain())
	p, err := NewPipeline(dir, WithCompiler(c), WithRasterizer(lyingRasterizer{dir: dir}))
	if err != nil {
		t.Fatal(err)
	}

	out := p.Render(context.Background(), Request{Markup: "x"})
	if out.Delivered() || !errors.Is(out.Err, ErrRasterize) {
		t.Errorf("Render() = %+v, want rasterize failure", out)
	}
}

func TestPipeline_Render_MissingToolchain(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, newStubRunner(nil))

	out := p.Render(context.Background(), Request{Markup: "x"})
	if out.Report == nil || out.Report.Text != GenericMessage {
		t.Fatalf("Render() = %+v, want generic report", out)
	}
	if !errors.Is(out.Err, ErrToolchain) {
		t.Errorf("Err = %v, want ErrToolchain", out.Err)
	}
}

type panicCompiler struct{}

func (panicCompiler) Compile(context.Context, string, CacheKey) (string, error) {
	panic("unexpected")
}

func TestPipeline_Render_RecoversPanic(t *testing.T) {
	t.Parallel()

	p, err := NewPipeline(t.TempDir(), WithCompiler(panicCompiler{}))
	if err != nil {
		t.Fatal(err)
	}

	out := p.Render(context.Background(), Request{Markup: "x"})
	if out.Report == nil || out.Report.Kind != ReportGeneric {
		t.Fatalf("Render() = %+v, want generic report", out)
	}
	if out.Err == nil || !strings.Contains(out.Err.Error(), "internal error") {
		t.Errorf("Err = %v", out.Err)
	}
}

func TestPipeline_Render_StageTimeout(t *testing.T) {
	t.Parallel()

	r := newStubRunner(map[string]stubHandler{
		"xelatex": func(ctx context.Context, _ string, _ []string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	})
	p := newTestPipeline(t, r, WithStageTimeout(50*time.Millisecond))

	out := p.Render(context.Background(), Request{Markup: "x"})
	if !errors.Is(out.Err, ErrTimeout) {
		t.Fatalf("Err = %v, want ErrTimeout", out.Err)
	}
	if out.Report == nil || out.Report.Text != TimeoutMessage {
		t.Errorf("Report = %+v, want timeout message", out.Report)
	}
}

// A caller that goes away does not fail the render others may share.
func TestPipeline_Render_DetachedFromCallerCancel(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, newStubRunner(okToolchain()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if out := p.Render(ctx, Request{Markup: "x"}); !out.Delivered() {
		t.Errorf("Render() = %+v, want delivered", out)
	}
}

// ---------------------------------------------------------------------------
// TestPipeline_Render_SingleFlight - Concurrent identical requests
// ---------------------------------------------------------------------------

func TestPipeline_Render_SingleFlight(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	r := newStubRunner(map[string]stubHandler{
		"xelatex": func(ctx context.Context, dir string, args []string) (string, error) {
			select {
			case entered <- struct{}{}:
			default:
			}
			<-release
			return okXelatex(ctx, dir, args)
		},
		"pdfcrop": okPdfcrop,
		"convert": okConvert,
	})
	p := newTestPipeline(t, r)
	req := Request{Markup: "e^{i\\pi} + 1 = 0"}

	const n = 8
	outs := make([]Outcome, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outs[i] = p.Render(context.Background(), req)
		}()
	}

	<-entered
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := r.count("xelatex"); got != 1 {
		t.Errorf("xelatex invoked %d times, want 1", got)
	}
	leaders := 0
	for i, out := range outs {
		if !out.Delivered() {
			t.Errorf("request %d not delivered: %+v", i, out)
		}
		if out.Image != outs[0].Image {
			t.Errorf("request %d image %q differs", i, out.Image)
		}
		if !out.Shared && !out.CacheHit {
			leaders++
		}
	}
	// Waiters are shared, late arrivals are cache hits, the one that ran the
	// toolchain is neither.
	if leaders != 1 {
		t.Errorf("%d outcomes ran the render unshared, want 1", leaders)
	}
}

func TestPipeline_Render_SoleRequestNotShared(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, newStubRunner(okToolchain()))
	if out := p.Render(context.Background(), Request{Markup: "x"}); out.Shared {
		t.Errorf("Render() Shared = true for a lone request")
	}
}

// ---------------------------------------------------------------------------
// TestPipeline_Render_RelativeWorkDir - Paths handed to children
// ---------------------------------------------------------------------------

// inRunDir resolves a child argument the way the child would: relative
// paths are taken from its own working directory.
func inRunDir(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// requireInput fails like a real tool when its input argument is not there.
// A negative idx counts from the end.
func requireInput(next stubHandler, idx int) stubHandler {
	return func(ctx context.Context, dir string, args []string) (string, error) {
		i := idx
		if i < 0 {
			i += len(args)
		}
		in := strings.TrimSuffix(args[i], "[0]")
		if _, err := os.Stat(inRunDir(dir, in)); err != nil {
			return err.Error(), &exitError{code: 1}
		}
		return next(ctx, dir, args)
	}
}

func TestPipeline_Render_RelativeWorkDir(t *testing.T) {
	t.Chdir(t.TempDir())

	r := newStubRunner(map[string]stubHandler{
		"xelatex": requireInput(okXelatex, -1),
		"pdfcrop": requireInput(okPdfcrop, 2),
		"convert": requireInput(okConvert, 2),
	})
	p, err := NewPipeline("queries")
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	lc, ok := p.compiler.(*LatexCompiler)
	if !ok {
		t.Fatalf("default compiler is %T", p.compiler)
	}
	lc.Runner = r
	rz, ok := p.rasterizer.(*CropRasterizer)
	if !ok {
		t.Fatalf("default rasterizer is %T", p.rasterizer)
	}
	rz.Runner = r

	out := p.Render(context.Background(), Request{Markup: "$x = 7$"})
	if !out.Delivered() {
		t.Fatalf("Render() = %+v, want delivered", out)
	}
	if !filepath.IsAbs(out.Image) {
		t.Errorf("Image = %q, want absolute path", out.Image)
	}
	assertNonEmpty(t, out.Image)

	// A hand-built rasterizer with a relative Dir still hands children
	// paths they can open.
	hand := &CropRasterizer{
		Runner: r, Dir: "queries", CropBinary: "pdfcrop", Margins: "5 0 5 0",
		ConvertBinary: "convert", Density: 300, Quality: 90, Background: "white",
	}
	key := DeriveKey("y", ModeInline)
	pdf := filepath.Join("queries", key.String()+".pdf")
	if err := os.WriteFile(pdf, []byte("%PDF-1.5"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := hand.Rasterize(context.Background(), pdf, key); err != nil {
		t.Errorf("Rasterize() with relative Dir error = %v", err)
	}
}

// ---------------------------------------------------------------------------
// TestPipeline_DirectRenderer
// ---------------------------------------------------------------------------

type stubRenderer struct {
	mu    sync.Mutex
	calls int
	data  []byte
	err   error
}

func (s *stubRenderer) Render(_ context.Context, _ string, _ CacheKey, dst string) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	return os.WriteFile(dst, s.data, 0o644)
}

func TestPipeline_DirectRenderer(t *testing.T) {
	t.Parallel()

	sr := &stubRenderer{data: []byte("png")}
	p, err := NewPipeline(t.TempDir(), WithRenderer(sr))
	if err != nil {
		t.Fatal(err)
	}

	first := p.Render(context.Background(), Request{Markup: "x"})
	second := p.Render(context.Background(), Request{Markup: "x"})
	if !first.Delivered() || !second.Delivered() || !second.CacheHit {
		t.Fatalf("renders = %+v / %+v", first, second)
	}
	if sr.calls != 1 {
		t.Errorf("renderer calls = %d, want 1", sr.calls)
	}
}

func TestPipeline_DirectRenderer_Failure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		sr   *stubRenderer
		want error
	}{
		{"renderer error", &stubRenderer{err: ErrRemoteRender}, ErrRemoteRender},
		{"empty image", &stubRenderer{data: nil}, ErrEmptyOutput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := NewPipeline(t.TempDir(), WithRenderer(tt.sr))
			if err != nil {
				t.Fatal(err)
			}
			out := p.Render(context.Background(), Request{Markup: "x"})
			if out.State != StateReportError || !errors.Is(out.Err, tt.want) {
				t.Errorf("Render() = %+v, want %v", out, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestPipeline_Observer
// ---------------------------------------------------------------------------

type recordingObserver struct {
	mu       sync.Mutex
	started  int
	stages   []State
	outcomes []Outcome
}

func (o *recordingObserver) RenderStarted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
}

func (o *recordingObserver) StageFinished(s State, _ time.Duration, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stages = append(o.stages, s)
}

func (o *recordingObserver) RenderFinished(out Outcome, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, out)
}

func TestPipeline_Observer(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	p := newTestPipeline(t, newStubRunner(okToolchain()), WithObserver(obs))

	p.Render(context.Background(), Request{Markup: "x"})
	p.Render(context.Background(), Request{Markup: "x"})

	if obs.started != 2 || len(obs.outcomes) != 2 {
		t.Errorf("started=%d finished=%d, want 2/2", obs.started, len(obs.outcomes))
	}
	want := []State{StateCompiling, StateRasterizing}
	if len(obs.stages) != len(want) || obs.stages[0] != want[0] || obs.stages[1] != want[1] {
		t.Errorf("stages = %v, want %v", obs.stages, want)
	}
	if !obs.outcomes[1].CacheHit {
		t.Error("second outcome not a cache hit")
	}
}

func TestNewPipeline_EmptyWorkDir(t *testing.T) {
	t.Parallel()

	if _, err := NewPipeline(""); !errors.Is(err, ErrInvalidWorkDir) {
		t.Errorf("NewPipeline(\"\") error = %v, want ErrInvalidWorkDir", err)
	}
}
