// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

package viewer

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts viewer connections. A nil *Metrics records nothing.
type Metrics struct {
	connections prometheus.Gauge
	dropped     prometheus.Counter
}

// NewMetrics creates the viewer collectors and registers them with reg,
// reusing collectors that are already registered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	connections := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "termmux",
		Subsystem: "viewer",
		Name:      "connections",
		Help:      "Number of open viewer websockets.",
	})
	if err := reg.Register(connections); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		connections = already.ExistingCollector.(prometheus.Gauge)
	}

	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "termmux",
		Subsystem: "viewer",
		Name:      "dropped_events_total",
		Help:      "Events discarded from full viewer queues.",
	})
	if err := reg.Register(dropped); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		dropped = already.ExistingCollector.(prometheus.Counter)
	}

	return &Metrics{connections: connections, dropped: dropped}, nil
}

func (m *Metrics) connected() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) disconnected() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

func (m *Metrics) eventDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}
