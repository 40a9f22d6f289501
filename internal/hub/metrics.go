// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package hub

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status labels for command metrics.
const (
	StatusSuccess          = "success"
	StatusError            = "error"
	StatusPermissionDenied = "permission_denied"
)

// Metrics holds the hub's Prometheus collectors.
type Metrics struct {
	CommandExecutions *prometheus.CounterVec
	CommandDuration   *prometheus.HistogramVec
	EventsBroadcast   prometheus.Counter
	Evictions         prometheus.Counter
	Subscribers       prometheus.Gauge
	Resident          prometheus.Gauge
	Saves             *prometheus.CounterVec
}

// NewMetrics creates the hub metrics and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CommandExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sceneforge_command_executions_total",
				Help: "Total number of document command executions",
			},
			[]string{"kind", "command", "status"},
		),
		CommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sceneforge_command_duration_seconds",
				Help:    "Document command execution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind", "command"},
		),
		EventsBroadcast: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sceneforge_events_broadcast_total",
			Help: "Total number of events delivered to subscribers",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sceneforge_subscriber_evictions_total",
			Help: "Subscribers dropped because they fell behind",
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sceneforge_subscribers",
			Help: "Current number of document subscribers",
		}),
		Resident: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sceneforge_resident_documents",
			Help: "Documents currently loaded in memory",
		}),
		Saves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sceneforge_document_saves_total",
				Help: "Document saves by status",
			},
			[]string{"status"},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.CommandExecutions,
			m.CommandDuration,
			m.EventsBroadcast,
			m.Evictions,
			m.Subscribers,
			m.Resident,
			m.Saves,
		)
	}
	return m
}

func (m *Metrics) recordCommand(kind, command, status string, d time.Duration) {
	m.CommandExecutions.WithLabelValues(kind, command, status).Inc()
	if status != StatusPermissionDenied {
		m.CommandDuration.WithLabelValues(kind, command).Observe(d.Seconds())
	}
}
