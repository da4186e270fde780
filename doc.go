// Package texbot renders LaTeX snippets to PNG images for chat bots.
//
// # Quick Start
//
// Create a pipeline over a work directory and render a request:
//
//	p, err := texbot.NewPipeline("/var/lib/texbot/renders")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	out := p.Render(ctx, texbot.Request{Markup: `$x = 7$`})
//	if out.Delivered() {
//	    fmt.Println(out.Image)
//	} else {
//	    fmt.Println(out.Report.Message())
//	}
//
// Render never returns an error. A failed render carries a Report for the
// user and Err for the operator log; Err must not be shown in chat.
//
// # Render Pipeline
//
// Each request moves through these stages:
//
//  1. Key derivation: a 16-hex-digit xxhash of mode and markup
//  2. Cache check: {key}.pdf and a non-empty {key}.png in the work dir
//  3. Compilation: the markup is substituted into a template and compiled
//     with xelatex (optionally through texfot)
//  4. Rasterization: pdfcrop trims the page, ImageMagick renders the PNG
//
// A failed compile produces a report from the sanitized log: inline up to
// 300 characters, otherwise a paste-service link, or a truncated log when
// the upload fails. Every other failure produces a fixed message.
//
// # Direct Renderers
//
// WithRenderer replaces stages 3 and 4 with a single step that needs no TeX
// installation: RemoteRenderer fetches the image from a tex2png-style HTTP
// service, BrowserRenderer typesets with MathJax in headless Chrome.
//
// # Configuration
//
// Use functional options to customize the pipeline:
//
//	p, err := texbot.NewPipeline(dir,
//	    texbot.WithStageTimeout(20*time.Second),
//	    texbot.WithUploader(texbot.NewHastebinUploader("", "")),
//	    texbot.WithLogger(logger),
//	)
//
// # Concurrency
//
// A Pipeline is safe for concurrent use. Identical concurrent requests share
// one render. External commands run in their own process group, which is
// killed when a stage deadline expires.
//
// # Error Handling
//
// Adapters return sentinel errors (ErrToolchain, ErrRasterize, ErrTimeout,
// ErrEmptyOutput) and *CompileError, to be checked with errors.Is and
// errors.As.
package texbot
