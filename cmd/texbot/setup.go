package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	texbot "github.com/alnah/go-texbot"
	"github.com/alnah/go-texbot/internal/assets"
	"github.com/alnah/go-texbot/internal/config"
	"github.com/alnah/go-texbot/internal/hints"
	"github.com/alnah/go-texbot/internal/logging"
)

// defaultConfigName is looked up when neither --config nor TEXBOT_CONFIG is set.
const defaultConfigName = "texbot"

// loadConfig resolves the config file and applies env overrides. A missing
// implicit config is not an error: defaults apply.
func loadConfig(flagPath string, env *envConfig) (*config.Config, error) {
	name := flagPath
	if name == "" {
		name = env.ConfigPath
	}
	explicit := name != ""
	if !explicit {
		name = defaultConfigName
	}

	cfg, err := config.LoadConfig(name)
	switch {
	case err == nil:
	case !explicit && errors.Is(err, config.ErrConfigNotFound):
		cfg = config.DefaultConfig()
	case errors.Is(err, config.ErrConfigNotFound):
		return nil, fmt.Errorf("%w%s", err, hints.ForConfigNotFound(triedPaths(err)))
	default:
		return nil, err
	}

	applyEnvConfig(env, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// triedPaths extracts the searched paths from a not-found error message.
func triedPaths(err error) []string {
	_, list, ok := strings.Cut(err.Error(), "tried ")
	if !ok {
		return nil
	}
	return strings.Split(list, ", ")
}

// newLogger builds the process logger, honoring --quiet and --verbose.
func newLogger(cfg *config.Config, flags commonFlags, env *Environment) (*logrus.Logger, error) {
	level := cfg.Log.Level
	switch {
	case flags.verbose:
		level = "debug"
	case flags.quiet:
		level = "error"
	}
	return logging.New(level, cfg.Log.Format, env.Stderr)
}

// pipelineOptions maps the render config onto pipeline options.
func pipelineOptions(cfg *config.Config, workDir string) ([]texbot.Option, error) {
	opts := []texbot.Option{texbot.WithStageTimeout(cfg.Render.StageTimeout)}

	switch cfg.Render.Renderer {
	case config.RendererRemote:
		r := texbot.NewRemoteRenderer(cfg.Remote.URL)
		opts = append(opts, texbot.WithRenderer(r))

	case config.RendererBrowser:
		b := texbot.NewBrowserRenderer()
		b.Bin = cfg.Browser.Bin
		b.NoSandbox = cfg.Browser.NoSandbox
		if cfg.Browser.MathJaxURL != "" {
			b.MathJaxURL = cfg.Browser.MathJaxURL
		}
		b.Timeout = cfg.Render.StageTimeout
		opts = append(opts, texbot.WithRenderer(b))

	default:
		templates, err := assets.NewResolver(cfg.Render.TemplateDir)
		if err != nil {
			return nil, fmt.Errorf("loading templates: %w", err)
		}
		// Fail at startup rather than on the first chat command.
		if _, err := templates.LoadTemplate(cfg.Render.Template); err != nil {
			if errors.Is(err, assets.ErrTemplateNotFound) {
				return nil, fmt.Errorf("%w%s", err, hints.ForTemplateNotFound(templates.Names()))
			}
			return nil, err
		}

		c := texbot.NewLatexCompiler(workDir)
		c.Templates = templates
		c.Template = cfg.Render.Template
		c.Binary = cfg.Toolchain.Compiler
		c.ExtraArgs = cfg.Toolchain.ExtraArgs
		c.Texfot = cfg.Toolchain.Texfot
		c.TexfotBinary = cfg.Toolchain.TexfotBin
		c.Timeout = cfg.Render.StageTimeout

		r := texbot.NewCropRasterizer(workDir)
		r.CropBinary = cfg.Toolchain.Crop
		r.Margins = cfg.Toolchain.Margins
		r.ConvertBinary = cfg.Toolchain.Convert
		r.Density = cfg.Toolchain.Density
		r.Quality = cfg.Toolchain.Quality
		r.Background = cfg.Toolchain.Background
		r.Timeout = cfg.Render.StageTimeout

		opts = append(opts, texbot.WithCompiler(c), texbot.WithRasterizer(r))
	}

	if cfg.Paste.Enabled {
		u := texbot.NewHastebinUploader(cfg.Paste.Endpoint, cfg.Paste.RawBase)
		u.Token = cfg.Paste.Token
		opts = append(opts, texbot.WithUploader(u))
	}
	return opts, nil
}

// buildPipeline creates the pipeline described by cfg.
func buildPipeline(cfg *config.Config, log logrus.FieldLogger, observer texbot.Observer, tp trace.TracerProvider) (*texbot.Pipeline, error) {
	workDir, err := filepath.Abs(cfg.Render.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("resolving work directory: %w", err)
	}
	opts, err := pipelineOptions(cfg, workDir)
	if err != nil {
		return nil, err
	}
	opts = append(opts, texbot.WithLogger(log), texbot.WithObserver(observer), texbot.WithTracerProvider(tp))

	p, err := texbot.NewPipeline(workDir, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w%s", err, hints.ForWorkDir())
	}
	return p, nil
}
