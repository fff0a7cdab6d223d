// metrics.go defines the prometheus metrics exported by the relay.

// Package metrics holds the prometheus collectors of the relay. Every method is
// safe to call on a nil *Metrics, so components may run without metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/xaionaro-go/avrelay/types"
)

const namespace = "avrelay"

type Metrics struct {
	// Ingestion
	TapReceived  *prometheus.CounterVec
	TapForwarded *prometheus.CounterVec
	TapDropped   *prometheus.CounterVec

	// Synchronization
	Ticks         *prometheus.CounterVec
	Boosts        *prometheus.CounterVec
	DriftGap      prometheus.Gauge
	TickDurations *prometheus.HistogramVec

	// Pipeline
	PushFailures   *prometheus.CounterVec
	PipelineStates *prometheus.GaugeVec
}

// New creates the metrics and registers them in the given registerer
// (prometheus.DefaultRegisterer if nil).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		TapReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tap_received_total",
				Help:      "Total number of transport events received",
			},
			[]string{"kind"},
		),
		TapForwarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tap_forwarded_total",
				Help:      "Total number of frames forwarded to the synchronizer",
			},
			[]string{"kind"},
		),
		TapDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tap_dropped_total",
				Help:      "Total number of transport events dropped before the synchronizer",
			},
			[]string{"kind", "reason"},
		),
		Ticks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ticks_total",
				Help:      "Total number of frames supplied to the pipeline",
			},
			[]string{"kind", "origin"},
		),
		Boosts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "drift_boosts_total",
				Help:      "Total number of ticks stretched to compensate a drift",
			},
			[]string{"kind"},
		),
		DriftGap: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "drift_gap_seconds",
			Help:      "Accumulated video PTS minus accumulated audio PTS",
		}),
		TickDurations: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tick_duration_seconds",
				Help:      "Durations assigned to the supplied frames",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 8),
			},
			[]string{"kind"},
		),
		PushFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "push_failures_total",
				Help:      "Total number of buffers rejected by the pipeline",
			},
			[]string{"kind"},
		),
		PipelineStates: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pipeline_state",
				Help:      "1 for the current state of the pipeline supervisor, 0 otherwise",
			},
			[]string{"state"},
		),
	}
}

func (m *Metrics) RecordTapReceived(kind types.Kind) {
	if m == nil {
		return
	}
	m.TapReceived.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) RecordTapForwarded(kind types.Kind) {
	if m == nil {
		return
	}
	m.TapForwarded.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) RecordTapDropped(kind types.Kind, reason string) {
	if m == nil {
		return
	}
	m.TapDropped.WithLabelValues(kind.String(), reason).Inc()
}

func (m *Metrics) RecordTick(kind types.Kind, origin string, duration time.Duration, boosted bool) {
	if m == nil {
		return
	}
	m.Ticks.WithLabelValues(kind.String(), origin).Inc()
	m.TickDurations.WithLabelValues(kind.String()).Observe(duration.Seconds())
	if boosted {
		m.Boosts.WithLabelValues(kind.String()).Inc()
	}
}

func (m *Metrics) SetDriftGap(gap time.Duration) {
	if m == nil {
		return
	}
	m.DriftGap.Set(gap.Seconds())
}

func (m *Metrics) RecordPushFailure(kind types.Kind) {
	if m == nil {
		return
	}
	m.PushFailures.WithLabelValues(kind.String()).Inc()
}

// SetPipelineState marks the given state as the current one among all the states.
func (m *Metrics) SetPipelineState(current string, all []string) {
	if m == nil {
		return
	}
	for _, state := range all {
		v := 0.0
		if state == current {
			v = 1
		}
		m.PipelineStates.WithLabelValues(state).Set(v)
	}
}
