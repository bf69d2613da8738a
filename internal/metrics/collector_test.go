package netsimmetrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	netsimmetrics "github.com/dantte-lp/netsim/internal/metrics"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := netsimmetrics.NewCollector(reg)

	if c.ActiveChassis == nil {
		t.Error("ActiveChassis is nil")
	}
	if c.NicsUp == nil {
		t.Error("NicsUp is nil")
	}
	if c.FramesSent == nil {
		t.Error("FramesSent is nil")
	}
	if c.FramesReceived == nil {
		t.Error("FramesReceived is nil")
	}
	if c.FramesDropped == nil {
		t.Error("FramesDropped is nil")
	}
	if c.ArpResolutions == nil {
		t.Error("ArpResolutions is nil")
	}
	if c.DatagramsForwarded == nil {
		t.Error("DatagramsForwarded is nil")
	}
	if c.DatagramsDropped == nil {
		t.Error("DatagramsDropped is nil")
	}
	if c.TTLExceeded == nil {
		t.Error("TTLExceeded is nil")
	}
	if c.EchoRequestsSent == nil {
		t.Error("EchoRequestsSent is nil")
	}
	if c.EchoRepliesReceived == nil {
		t.Error("EchoRepliesReceived is nil")
	}

	if _, err := reg.Gather(); err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
}

func TestFrameCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := netsimmetrics.NewCollector(reg)

	c.IncFramesSent("a", "eth0")
	c.IncFramesSent("a", "eth0")
	c.IncFramesReceived("a", "eth0")
	c.IncFramesDropped("a", "eth0")

	if got := counterValue(t, c.FramesSent, "a", "eth0"); got != 2 {
		t.Errorf("FramesSent = %v, want 2", got)
	}
	if got := counterValue(t, c.FramesReceived, "a", "eth0"); got != 1 {
		t.Errorf("FramesReceived = %v, want 1", got)
	}
	if got := counterValue(t, c.FramesDropped, "a", "eth0"); got != 1 {
		t.Errorf("FramesDropped = %v, want 1", got)
	}
}

func TestArpResolutions(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := netsimmetrics.NewCollector(reg)

	c.RecordArpResolution("a", netsimmetrics.ArpHit)
	c.RecordArpResolution("a", netsimmetrics.ArpHit)
	c.RecordArpResolution("a", netsimmetrics.ArpMiss)
	c.RecordArpResolution("a", netsimmetrics.ArpTimeout)

	if got := counterValue(t, c.ArpResolutions, "a", netsimmetrics.ArpHit); got != 2 {
		t.Errorf("ArpResolutions(hit) = %v, want 2", got)
	}
	if got := counterValue(t, c.ArpResolutions, "a", netsimmetrics.ArpMiss); got != 1 {
		t.Errorf("ArpResolutions(miss) = %v, want 1", got)
	}
	if got := counterValue(t, c.ArpResolutions, "a", netsimmetrics.ArpTimeout); got != 1 {
		t.Errorf("ArpResolutions(timeout) = %v, want 1", got)
	}
}

func TestIPv4Counters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := netsimmetrics.NewCollector(reg)

	c.IncDatagramsForwarded("a")
	c.IncDatagramsForwarded("a")
	c.IncDatagramsDropped("a", netsimmetrics.DropRouteMiss)
	c.IncTTLExceeded("a")

	if got := counterValue(t, c.DatagramsForwarded, "a"); got != 2 {
		t.Errorf("DatagramsForwarded = %v, want 2", got)
	}
	if got := counterValue(t, c.DatagramsDropped, "a", netsimmetrics.DropRouteMiss); got != 1 {
		t.Errorf("DatagramsDropped(route_miss) = %v, want 1", got)
	}
	if got := counterValue(t, c.TTLExceeded, "a"); got != 1 {
		t.Errorf("TTLExceeded = %v, want 1", got)
	}
}

func TestEchoCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := netsimmetrics.NewCollector(reg)

	c.IncEchoRequestsSent("a")
	c.IncEchoRequestsSent("a")
	c.IncEchoRequestsSent("a")
	c.IncEchoRepliesReceived("a")

	if got := counterValue(t, c.EchoRequestsSent, "a"); got != 3 {
		t.Errorf("EchoRequestsSent = %v, want 3", got)
	}
	if got := counterValue(t, c.EchoRepliesReceived, "a"); got != 1 {
		t.Errorf("EchoRepliesReceived = %v, want 1", got)
	}
}

// TestNilCollectorHelpersAreNoOps pins the nil-receiver contract the
// layer processes rely on: a disabled collector is a nil pointer and
// every increment helper must be callable on it.
func TestNilCollectorHelpersAreNoOps(t *testing.T) {
	t.Parallel()

	var c *netsimmetrics.Collector
	c.IncFramesSent("a", "eth0")
	c.IncFramesReceived("a", "eth0")
	c.IncFramesDropped("a", "eth0")
	c.RecordArpResolution("a", netsimmetrics.ArpHit)
	c.IncDatagramsForwarded("a")
	c.IncDatagramsDropped("a", netsimmetrics.DropRouteMiss)
	c.IncTTLExceeded("a")
	c.IncEchoRequestsSent("a")
	c.IncEchoRepliesReceived("a")
}

// counterValue reads the current value of a CounterVec with the given labels.
func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()

	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetCounter().GetValue()
}
