package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.EventHandled("move")
	m.EventHandled("move")
	if got := testutil.ToFloat64(m.events.WithLabelValues("move")); got != 2 {
		t.Fatalf("expected 2 move events, got %f", got)
	}

	m.ClipboardPublished("Client")
	if got := testutil.ToFloat64(m.clipboardPublish.WithLabelValues("Client")); got != 1 {
		t.Fatalf("expected 1 client publish, got %f", got)
	}

	m.SetSessions(3)
	if got := testutil.ToFloat64(m.sessions); got != 3 {
		t.Fatalf("expected sessions gauge 3, got %f", got)
	}

	m.FilesExpired(4)
	m.Uploaded(1024)
	if got := testutil.ToFloat64(m.filesExpired); got != 4 {
		t.Fatalf("expected 4 expired files, got %f", got)
	}
	if got := testutil.ToFloat64(m.uploadBytes); got != 1024 {
		t.Fatalf("expected 1024 upload bytes, got %f", got)
	}

	if n, err := testutil.GatherAndCount(reg); err != nil || n == 0 {
		t.Fatalf("gather: n=%d err=%v", n, err)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.EventHandled("click")
	m.DecodeError()
	m.DeviceError()
	m.ClipboardPublished("System")
	m.ClipboardDropped()
	m.SetSessions(1)
	m.SetFiles(1)
	m.FilesExpired(1)
	m.Uploaded(1)
}
