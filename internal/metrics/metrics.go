// Package metrics exposes engine activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/1broseidon/focusmute/internal/engine"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	Transitions  *prometheus.CounterVec
	TickDuration prometheus.Histogram
	Sessions     prometheus.Gauge
	ZeroActivity prometheus.Gauge
	Locked       prometheus.Gauge
	OSErrors     *prometheus.CounterVec
}

var (
	_ engine.Sink         = (*Metrics)(nil)
	_ engine.TickObserver = (*Metrics)(nil)
)

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "focusmute_transitions_total",
				Help: "Total number of applied mute, unmute and volume changes",
			},
			[]string{"action", "reason"},
		),
		TickDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "focusmute_tick_duration_seconds",
				Help:    "Time spent in one decision tick",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
			},
		),
		Sessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "focusmute_sessions",
				Help: "Audio sessions evaluated on the last tick",
			},
		),
		ZeroActivity: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "focusmute_zero_activity_ticks",
				Help: "Consecutive ticks without exception audio",
			},
		),
		Locked: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "focusmute_locked",
				Help: "1 while automatic muting is paused",
			},
		),
		OSErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "focusmute_os_errors_total",
				Help: "Total number of failed OS audio calls",
			},
			[]string{"op"},
		),
	}
}

// Transition counts an applied change.
func (m *Metrics) Transition(t engine.Transition) {
	m.Transitions.WithLabelValues(string(t.Action), string(t.Reason)).Inc()
}

// TickCompleted records per-tick gauges.
func (m *Metrics) TickCompleted(r engine.Report) {
	m.TickDuration.Observe(r.Duration.Seconds())
	if r.Locked {
		m.Locked.Set(1)
		return
	}
	m.Locked.Set(0)
	m.Sessions.Set(float64(len(r.Decisions)))
	m.ZeroActivity.Set(float64(r.ZeroActivityCount))
	for _, e := range r.Errors {
		m.OSErrors.WithLabelValues(e.Op).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on listen until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, listen string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", "addr", listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
