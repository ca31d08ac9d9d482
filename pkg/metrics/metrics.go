// Package metrics exports pipeline counters in the Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-pathsense/pkg/alert"
	"github.com/teslashibe/go-pathsense/pkg/frame"
	"github.com/teslashibe/go-pathsense/pkg/speech"
)

const namespace = "pathsense"

// Speech outcome labels.
const (
	OutcomeSpoken      = "spoken"
	OutcomeInterrupted = "interrupted"
	OutcomeFailed      = "failed"
)

// Metrics owns a private registry so several instances can coexist in
// one process (tests, multiple apps).
type Metrics struct {
	registry *prometheus.Registry

	events         *prometheus.CounterVec
	detections     prometheus.Histogram
	queryDuration  prometheus.Histogram
	speech         *prometheus.CounterVec
	speechDuration prometheus.Histogram

	mu         sync.Mutex
	queryStart time.Time
}

// New creates the collectors and registers them, plus the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Engine events by kind",
			},
			[]string{"kind"}, // alert, suppressed, silent, query, answer, error
		),
		detections: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "detections_per_alert",
				Help:      "Objects detected in frames that produced an alert",
				Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
			},
		),
		queryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Time from a spoken question to its answer",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		speech: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "utterances_total",
				Help:      "Finished utterances by outcome",
			},
			[]string{"outcome"},
		),
		speechDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "utterance_duration_seconds",
				Help:      "Synthesis plus playback time per utterance",
				Buckets:   []float64{.1, .25, .5, 1, 2, 4, 8, 16},
			},
		),
	}

	m.registry.MustRegister(m.events, m.detections, m.queryDuration, m.speech, m.speechDuration)
	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Observe records an engine event. It is meant to be chained into
// alert.Config.Observer.
func (m *Metrics) Observe(ev alert.Event) {
	m.events.WithLabelValues(string(ev.Kind)).Inc()

	switch ev.Kind {
	case alert.EventAlert:
		m.detections.Observe(float64(len(ev.Detections)))
	case alert.EventQuery:
		m.mu.Lock()
		m.queryStart = ev.Time
		m.mu.Unlock()
	case alert.EventAnswer:
		m.mu.Lock()
		start := m.queryStart
		m.queryStart = time.Time{}
		m.mu.Unlock()
		if !start.IsZero() {
			m.queryDuration.Observe(ev.Time.Sub(start).Seconds())
		}
	}
}

// ObserveSpeech records a finished utterance. Its signature matches
// speech.Config.OnEnd.
func (m *Metrics) ObserveSpeech(s *speech.Session, err error) {
	m.speech.WithLabelValues(Outcome(err)).Inc()
	if !s.Started.IsZero() {
		m.speechDuration.Observe(time.Since(s.Started).Seconds())
	}
}

// Outcome classifies a session error.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSpoken
	case errors.Is(err, context.Canceled):
		return OutcomeInterrupted
	default:
		return OutcomeFailed
	}
}

// WatchSlot exports the frame slot counters. stats is read at scrape time.
func (m *Metrics) WatchSlot(stats func() frame.SlotStats) {
	m.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_published_total",
			Help:      "Frames published by the capture loop",
		}, func() float64 { return float64(stats().Published) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_taken_total",
			Help:      "Frames consumed by the engine",
		}, func() float64 { return float64(stats().Taken) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Frames overwritten before the engine read them",
		}, func() float64 { return float64(stats().Dropped) }),
	)
}

// WatchSpeaking exports whether an utterance is playing.
func (m *Metrics) WatchSpeaking(active func() bool) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "speaking",
		Help:      "1 while an utterance is in flight",
	}, func() float64 {
		if active() {
			return 1
		}
		return 0
	}))
}
