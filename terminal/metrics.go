// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

package terminal

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for registry activity. A nil
// *Metrics records nothing.
type Metrics struct {
	sessions      prometheus.Gauge
	subscribers   prometheus.Gauge
	chunks        *prometheus.CounterVec
	trimmedBytes  prometheus.Counter
	evictions     prometheus.Counter
	skippedPushes prometheus.Counter
	droppedInputs prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. Already
// registered collectors of the same name are reused so several
// registries may share one Prometheus registerer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	metrics := &Metrics{
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "termmux",
			Subsystem: "registry",
			Name:      "sessions",
			Help:      "Number of live sessions.",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "termmux",
			Subsystem: "registry",
			Name:      "subscribers",
			Help:      "Number of session subscriptions across all sessions.",
		}),
		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "termmux",
			Subsystem: "registry",
			Name:      "chunks_appended_total",
			Help:      "Chunks appended to session scrollback, by kind.",
		}, []string{"kind"}),
		trimmedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "termmux",
			Subsystem: "registry",
			Name:      "trimmed_bytes_total",
			Help:      "Bytes discarded from scrollback by hysteresis trimming.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "termmux",
			Subsystem: "registry",
			Name:      "evictions_total",
			Help:      "Sessions destroyed after an empty grace window.",
		}),
		skippedPushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "termmux",
			Subsystem: "registry",
			Name:      "skipped_pushes_total",
			Help:      "Pushes skipped because the subscriber's connection was gone.",
		}),
		droppedInputs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "termmux",
			Subsystem: "registry",
			Name:      "dropped_inputs_total",
			Help:      "Input writes dropped because the source's input queue was full.",
		}),
	}

	register := func(collector prometheus.Collector) (prometheus.Collector, error) {
		if err := reg.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				return already.ExistingCollector, nil
			}
			return nil, err
		}
		return collector, nil
	}

	var err error
	var collector prometheus.Collector
	if collector, err = register(metrics.sessions); err != nil {
		return nil, err
	}
	metrics.sessions = collector.(prometheus.Gauge)
	if collector, err = register(metrics.subscribers); err != nil {
		return nil, err
	}
	metrics.subscribers = collector.(prometheus.Gauge)
	if collector, err = register(metrics.chunks); err != nil {
		return nil, err
	}
	metrics.chunks = collector.(*prometheus.CounterVec)
	if collector, err = register(metrics.trimmedBytes); err != nil {
		return nil, err
	}
	metrics.trimmedBytes = collector.(prometheus.Counter)
	if collector, err = register(metrics.evictions); err != nil {
		return nil, err
	}
	metrics.evictions = collector.(prometheus.Counter)
	if collector, err = register(metrics.skippedPushes); err != nil {
		return nil, err
	}
	metrics.skippedPushes = collector.(prometheus.Counter)
	if collector, err = register(metrics.droppedInputs); err != nil {
		return nil, err
	}
	metrics.droppedInputs = collector.(prometheus.Counter)

	return metrics, nil
}

func (m *Metrics) sessionCreated() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

func (m *Metrics) sessionEvicted() {
	if m == nil {
		return
	}
	m.sessions.Dec()
	m.evictions.Inc()
}

func (m *Metrics) subscribersChanged(delta int) {
	if m == nil || delta == 0 {
		return
	}
	m.subscribers.Add(float64(delta))
}

func (m *Metrics) chunkAppended(kind ChunkKind, trimmed int) {
	if m == nil {
		return
	}
	m.chunks.WithLabelValues(kind.String()).Inc()
	if trimmed > 0 {
		m.trimmedBytes.Add(float64(trimmed))
	}
}

func (m *Metrics) pushSkipped() {
	if m == nil {
		return
	}
	m.skippedPushes.Inc()
}

func (m *Metrics) inputDropped() {
	if m == nil {
		return
	}
	m.droppedInputs.Inc()
}
