package netsimmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "netsim"
	subsystem = "chassis"
)

// Label names for netsim metrics.
const (
	labelChassis = "chassis"
	labelIface   = "iface"
	labelResult  = "result"
)

// -------------------------------------------------------------------------
// Collector — Prometheus simulator metrics
// -------------------------------------------------------------------------

// Collector holds all netsim Prometheus metrics, covering the protocol
// engine's observable counters: link-layer frame volumes, ARP resolution
// outcomes, IPv4 forwarding/drop/expiry counts, and ICMP echo traffic.
// The increment helpers are safe to call on a nil *Collector, so the
// layer processes record events unconditionally and a nil collector
// (metrics disabled) costs a single branch.
type Collector struct {
	// ActiveChassis tracks the number of currently live chassis.
	ActiveChassis prometheus.Gauge

	// NicsUp tracks the number of NICs currently in the Up state, per
	// chassis.
	NicsUp *prometheus.GaugeVec

	// FramesSent counts Ethernet frames transmitted per (chassis, iface).
	FramesSent *prometheus.CounterVec

	// FramesReceived counts Ethernet frames accepted per (chassis, iface).
	FramesReceived *prometheus.CounterVec

	// FramesDropped counts Ethernet frames dropped per (chassis, iface) —
	// oversize payloads, unknown EtherType, or a down link.
	FramesDropped *prometheus.CounterVec

	// ArpResolutions counts ARP resolve outcomes per (chassis, result),
	// result being one of "hit", "miss", or "timeout".
	ArpResolutions *prometheus.CounterVec

	// DatagramsForwarded counts IPv4 datagrams forwarded per chassis.
	DatagramsForwarded *prometheus.CounterVec

	// DatagramsDropped counts IPv4 datagrams dropped per (chassis, result),
	// result being one of "route_miss", "arp_timeout", or "decode_error".
	DatagramsDropped *prometheus.CounterVec

	// TTLExceeded counts IPv4 datagrams expired in transit per chassis,
	// each of which triggers an ICMP Time Exceeded reply.
	TTLExceeded *prometheus.CounterVec

	// EchoRequestsSent counts ICMP Echo Requests issued by `ping` per
	// chassis.
	EchoRequestsSent *prometheus.CounterVec

	// EchoRepliesReceived counts ICMP Echo Replies delivered to a pending
	// `ping` call per chassis.
	EchoRepliesReceived *prometheus.CounterVec
}

// NewCollector creates a Collector with all netsim metrics registered
// against reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.ActiveChassis,
		c.NicsUp,
		c.FramesSent,
		c.FramesReceived,
		c.FramesDropped,
		c.ArpResolutions,
		c.DatagramsForwarded,
		c.DatagramsDropped,
		c.TTLExceeded,
		c.EchoRequestsSent,
		c.EchoRepliesReceived,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	chassisLabels := []string{labelChassis}
	ifaceLabels := []string{labelChassis, labelIface}
	resultLabels := []string{labelChassis, labelResult}

	return &Collector{
		ActiveChassis: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_total",
			Help:      "Number of currently live chassis.",
		}),

		NicsUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "nics_up",
			Help:      "Number of NICs currently connected to a cable.",
		}, chassisLabels),

		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "frames_sent_total",
			Help:      "Total Ethernet frames transmitted.",
		}, ifaceLabels),

		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "frames_received_total",
			Help:      "Total Ethernet frames accepted for dispatch.",
		}, ifaceLabels),

		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "frames_dropped_total",
			Help:      "Total Ethernet frames dropped (oversize, unknown ethertype, or link down).",
		}, ifaceLabels),

		ArpResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "arp",
			Name:      "resolutions_total",
			Help:      "Total ARP resolve outcomes, labeled hit/miss/timeout.",
		}, resultLabels),

		DatagramsForwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ipv4",
			Name:      "datagrams_forwarded_total",
			Help:      "Total IPv4 datagrams forwarded to a next hop.",
		}, chassisLabels),

		DatagramsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ipv4",
			Name:      "datagrams_dropped_total",
			Help:      "Total IPv4 datagrams dropped, labeled by reason.",
		}, resultLabels),

		TTLExceeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ipv4",
			Name:      "ttl_exceeded_total",
			Help:      "Total IPv4 datagrams expired in transit (ICMP Time Exceeded generated).",
		}, chassisLabels),

		EchoRequestsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "icmp",
			Name:      "echo_requests_sent_total",
			Help:      "Total ICMP Echo Requests issued by ping.",
		}, chassisLabels),

		EchoRepliesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "icmp",
			Name:      "echo_replies_received_total",
			Help:      "Total ICMP Echo Replies delivered to a pending ping call.",
		}, chassisLabels),
	}
}

// -------------------------------------------------------------------------
// Link layer
// -------------------------------------------------------------------------

// IncFramesSent increments the transmitted-frame counter for (chassis, iface).
func (c *Collector) IncFramesSent(chassis, iface string) {
	if c == nil {
		return
	}
	c.FramesSent.WithLabelValues(chassis, iface).Inc()
}

// IncFramesReceived increments the accepted-frame counter for (chassis, iface).
func (c *Collector) IncFramesReceived(chassis, iface string) {
	if c == nil {
		return
	}
	c.FramesReceived.WithLabelValues(chassis, iface).Inc()
}

// IncFramesDropped increments the dropped-frame counter for (chassis, iface).
func (c *Collector) IncFramesDropped(chassis, iface string) {
	if c == nil {
		return
	}
	c.FramesDropped.WithLabelValues(chassis, iface).Inc()
}

// -------------------------------------------------------------------------
// ARP
// -------------------------------------------------------------------------

// ArpHit, ArpMiss, and ArpTimeout are the recognized ArpResolutions result
// labels.
const (
	ArpHit     = "hit"
	ArpMiss    = "miss"
	ArpTimeout = "timeout"
)

// RecordArpResolution increments the ARP resolution outcome counter for
// (chassis, result).
func (c *Collector) RecordArpResolution(chassis, result string) {
	if c == nil {
		return
	}
	c.ArpResolutions.WithLabelValues(chassis, result).Inc()
}

// -------------------------------------------------------------------------
// IPv4
// -------------------------------------------------------------------------

// Recognized DatagramsDropped result labels.
const (
	DropRouteMiss   = "route_miss"
	DropArpTimeout  = "arp_timeout"
	DropDecodeError = "decode_error"
)

// IncDatagramsForwarded increments the forwarded-datagram counter for chassis.
func (c *Collector) IncDatagramsForwarded(chassis string) {
	if c == nil {
		return
	}
	c.DatagramsForwarded.WithLabelValues(chassis).Inc()
}

// IncDatagramsDropped increments the dropped-datagram counter for (chassis, reason).
func (c *Collector) IncDatagramsDropped(chassis, reason string) {
	if c == nil {
		return
	}
	c.DatagramsDropped.WithLabelValues(chassis, reason).Inc()
}

// IncTTLExceeded increments the TTL-exceeded counter for chassis.
func (c *Collector) IncTTLExceeded(chassis string) {
	if c == nil {
		return
	}
	c.TTLExceeded.WithLabelValues(chassis).Inc()
}

// -------------------------------------------------------------------------
// ICMP
// -------------------------------------------------------------------------

// IncEchoRequestsSent increments the echo-request counter for chassis.
func (c *Collector) IncEchoRequestsSent(chassis string) {
	if c == nil {
		return
	}
	c.EchoRequestsSent.WithLabelValues(chassis).Inc()
}

// IncEchoRepliesReceived increments the echo-reply counter for chassis.
func (c *Collector) IncEchoRepliesReceived(chassis string) {
	if c == nil {
		return
	}
	c.EchoRepliesReceived.WithLabelValues(chassis).Inc()
}
