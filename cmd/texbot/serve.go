package main

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	texbot "github.com/alnah/go-texbot"
	"github.com/alnah/go-texbot/internal/chat"
	"github.com/alnah/go-texbot/internal/publish"
	"github.com/alnah/go-texbot/internal/server"
	"github.com/alnah/go-texbot/internal/telemetry"
)

// ErrNothingToServe is returned when both chat and HTTP are disabled.
var ErrNothingToServe = errors.New("nothing to serve: enable twitch or http")

// runServe runs the chat bot and HTTP server until ctx is done.
func runServe(ctx context.Context, args []string, env *Environment) error {
	flags, err := parseServeFlags(args, env.Stderr)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(flags.common.config, loadEnvConfig(env.Getenv))
	if err != nil {
		return err
	}
	if flags.addr != "" {
		cfg.HTTP.Addr = flags.addr
	}
	if flags.noHTTP {
		cfg.HTTP.Enabled = false
	}
	if flags.noChat {
		cfg.Twitch.Enabled = false
	}
	if !cfg.HTTP.Enabled && !cfg.Twitch.Enabled {
		return errors.Join(ErrUsage, ErrNothingToServe)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := newLogger(cfg, flags.common, env)
	if err != nil {
		return errors.Join(ErrUsage, err)
	}
	if !flags.common.verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	var (
		metrics  *telemetry.Metrics
		observer texbot.Observer
	)
	if cfg.Telemetry.Metrics {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = telemetry.NewMetrics(reg)
		observer = metrics
	}

	tp, shutdownTracing, err := telemetry.InitTracing(cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName, Version, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).Warn("tracer shutdown failed")
		}
	}()

	p, err := buildPipeline(cfg, log, observer, tp)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	pub, err := publish.New(ctx, cfg, log)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.HTTP.Enabled {
		opts := server.Options{
			Addr:        cfg.HTTP.Addr,
			CORSOrigins: cfg.HTTP.CORSOrigins,
			Cache:       p.Cache(),
			Logger:      log,
		}
		if cfg.Telemetry.Metrics {
			opts.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		}
		if cfg.HTTP.RenderAPI {
			opts.Renderer = p
			opts.Publisher = pub
		}
		srv := server.New(opts)
		g.Go(func() error { return srv.Run(gctx) })
	}

	if cfg.Twitch.Enabled {
		tw := chat.NewTwitch(cfg.Twitch, log)
		bot := &chat.Bot{
			Commands:  chat.CommandsFromConfig(cfg.Bot),
			Filter:    chat.NewChannelFilter(cfg.Twitch.Allow, cfg.Twitch.Deny),
			Renderer:  p,
			Publisher: pub,
			Sender:    tw,
			HelpText:  cfg.Bot.HelpText,
			Logger:    log,
		}
		if metrics != nil {
			bot.Counter = metrics
		}
		g.Go(func() error { return tw.Run(gctx, bot) })
	}

	log.WithField("renderer", cfg.Render.Renderer).Info("texbot serving")
	return g.Wait()
}
