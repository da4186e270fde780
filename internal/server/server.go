// Package server exposes rendered images, health, metrics and an optional
// render API over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	texbot "github.com/alnah/go-texbot"
	"github.com/alnah/go-texbot/internal/publish"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	maxRequestBody    = 64 << 10
)

// Renderer runs render requests. *texbot.Pipeline implements it.
type Renderer interface {
	Render(ctx context.Context, req texbot.Request) texbot.Outcome
}

// Options configures a Server.
type Options struct {
	Addr        string
	CORSOrigins []string
	// Cache locates images for GET /renders/:file.
	Cache *texbot.FileCache
	// Renderer and Publisher back POST /api/render; the route is only
	// registered when both are set.
	Renderer  Renderer
	Publisher publish.Publisher
	// Metrics is served at GET /metrics when set.
	Metrics http.Handler
	Logger  logrus.FieldLogger
}

// Server is the HTTP surface of the bot.
type Server struct {
	opts   Options
	engine *gin.Engine
	log    logrus.FieldLogger
}

// New builds the router.
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(log))
	if len(opts.CORSOrigins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins: opts.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost},
			AllowHeaders: []string{"Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}

	s := &Server{opts: opts, engine: engine, log: log}

	engine.GET("/healthz", s.health)
	if opts.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(opts.Metrics))
	}
	if opts.Cache != nil {
		engine.GET("/renders/:file", s.image)
	}
	if opts.Renderer != nil && opts.Publisher != nil {
		api := engine.Group("/api")
		api.POST("/render", s.render)
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on opts.Addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", ln.Addr().String()).Info("http server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}

func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("http request")
	}
}
