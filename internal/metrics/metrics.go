// Package metrics exposes Prometheus counters for the trackpad service. A nil
// *Metrics is valid and records nothing, so components can be built without
// a registry in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	events           *prometheus.CounterVec
	decodeErrors     prometheus.Counter
	deviceErrors     prometheus.Counter
	clipboardPublish *prometheus.CounterVec
	clipboardDropped prometheus.Counter
	sessions         prometheus.Gauge
	files            prometheus.Gauge
	filesExpired     prometheus.Counter
	uploadBytes      prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackpad_events_total",
			Help: "Remote events handled, by event type.",
		}, []string{"type"}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trackpad_decode_errors_total",
			Help: "Inbound frames discarded because they did not decode.",
		}),
		deviceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trackpad_device_errors_total",
			Help: "Gestures dropped because the virtual device write failed.",
		}),
		clipboardPublish: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackpad_clipboard_published_total",
			Help: "Clipboard items published to the hub, by source.",
		}, []string{"source"}),
		clipboardDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trackpad_clipboard_dropped_total",
			Help: "Clipboard deliveries dropped because a subscriber backlog was full.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trackpad_sessions",
			Help: "Currently connected sessions.",
		}),
		files: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trackpad_files_stored",
			Help: "Uploaded files currently held.",
		}),
		filesExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trackpad_files_expired_total",
			Help: "Uploaded files evicted by the sweeper or the blob watcher.",
		}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trackpad_upload_bytes_total",
			Help: "Bytes accepted through uploads.",
		}),
	}

	reg.MustRegister(
		m.events, m.decodeErrors, m.deviceErrors,
		m.clipboardPublish, m.clipboardDropped,
		m.sessions, m.files, m.filesExpired, m.uploadBytes,
	)
	return m
}

func (m *Metrics) EventHandled(kind string) {
	if m != nil {
		m.events.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) DecodeError() {
	if m != nil {
		m.decodeErrors.Inc()
	}
}

func (m *Metrics) DeviceError() {
	if m != nil {
		m.deviceErrors.Inc()
	}
}

func (m *Metrics) ClipboardPublished(source string) {
	if m != nil {
		m.clipboardPublish.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) ClipboardDropped() {
	if m != nil {
		m.clipboardDropped.Inc()
	}
}

func (m *Metrics) SetSessions(n int) {
	if m != nil {
		m.sessions.Set(float64(n))
	}
}

func (m *Metrics) SetFiles(n int) {
	if m != nil {
		m.files.Set(float64(n))
	}
}

func (m *Metrics) FilesExpired(n int) {
	if m != nil {
		m.filesExpired.Add(float64(n))
	}
}

func (m *Metrics) Uploaded(size uint64) {
	if m != nil {
		m.uploadBytes.Add(float64(size))
	}
}
