// Package telemetry provides Prometheus render metrics and OpenTelemetry
// tracing setup.
package telemetry

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	texbot "github.com/alnah/go-texbot"
)

// Result label values.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultTimeout = "timeout"
)

// Metrics records pipeline activity. It implements texbot.Observer.
type Metrics struct {
	RendersStarted  prometheus.Counter
	RendersFinished *prometheus.CounterVec   // outcome, cache
	InFlight        prometheus.Gauge
	RenderDuration  prometheus.Histogram
	StageDuration   *prometheus.HistogramVec // stage, result
	ChatCommands    *prometheus.CounterVec   // command
}

var _ texbot.Observer = (*Metrics)(nil)

// renderBuckets span a warm cache hit to a stage timeout.
var renderBuckets = []float64{0.005, 0.05, 0.25, 0.5, 1, 2, 5, 10, 30, 60}

// NewMetrics registers the render metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RendersStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "texbot_renders_started_total",
			Help: "Number of render requests received",
		}),
		RendersFinished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "texbot_renders_finished_total",
			Help: "Number of render requests finished, by outcome and cache use",
		}, []string{"outcome", "cache"}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "texbot_renders_in_flight",
			Help: "Current number of render requests being processed",
		}),
		RenderDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "texbot_render_duration_seconds",
			Help:    "End to end render duration seconds",
			Buckets: renderBuckets,
		}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "texbot_stage_duration_seconds",
			Help:    "External stage duration seconds",
			Buckets: renderBuckets,
		}, []string{"stage", "result"}),
		ChatCommands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "texbot_chat_commands_total",
			Help: "Number of chat commands recognized",
		}, []string{"command"}),
	}
}

// RenderStarted implements texbot.Observer.
func (m *Metrics) RenderStarted() {
	m.RendersStarted.Inc()
	m.InFlight.Inc()
}

// StageFinished implements texbot.Observer.
func (m *Metrics) StageFinished(stage texbot.State, d time.Duration, err error) {
	m.StageDuration.WithLabelValues(stage.String(), result(err)).Observe(d.Seconds())
}

// RenderFinished implements texbot.Observer.
func (m *Metrics) RenderFinished(o texbot.Outcome, d time.Duration) {
	m.InFlight.Dec()

	outcome := "delivered"
	if !o.Delivered() {
		outcome = "report"
	}
	cache := "miss"
	switch {
	case o.CacheHit:
		cache = "hit"
	case o.Shared:
		cache = "shared"
	}
	m.RendersFinished.WithLabelValues(outcome, cache).Inc()
	m.RenderDuration.Observe(d.Seconds())
}

// CommandReceived counts a recognized chat command.
func (m *Metrics) CommandReceived(command string) {
	m.ChatCommands.WithLabelValues(command).Inc()
}

func result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, texbot.ErrTimeout):
		return ResultTimeout
	default:
		return ResultError
	}
}
