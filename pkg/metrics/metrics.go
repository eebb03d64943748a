// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package metrics provides Prometheus metrics for the Wi-Fi TV remote.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultUnmapped = "unmapped"
)

var (
	// DiscoveryDuration tracks how long a brand discovery takes
	DiscoveryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tvremote_discovery_duration_seconds",
		Help:    "Duration of device discovery in seconds",
		Buckets: []float64{0.25, 0.5, 1, 2, 3, 4, 5, 8, 10},
	}, []string{"protocol"})

	// DevicesDiscovered tracks the number of devices found by the last discovery per protocol
	DevicesDiscovered = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tvremote_devices_discovered",
		Help: "Number of devices found by the most recent discovery",
	}, []string{"protocol"})

	// SearchResponsesTotal counts SSDP and mDNS responses received
	SearchResponsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvremote_search_responses_total",
		Help: "Total number of discovery responses received",
	}, []string{"source"})

	// PortProbesTotal counts TCP reachability probes
	PortProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvremote_port_probes_total",
		Help: "Total number of TCP port probes",
	}, []string{"result"})

	// ConnectAttemptsTotal counts connection handshakes per protocol
	ConnectAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvremote_connect_attempts_total",
		Help: "Total number of connection handshakes",
	}, []string{"protocol", "result"})

	// CommandsTotal counts key presses per protocol and result
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvremote_commands_total",
		Help: "Total number of key commands sent",
	}, []string{"protocol", "result"})

	// CommandDuration tracks how long a key press round trip takes
	CommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tvremote_command_duration_seconds",
		Help:    "Duration of key command requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"protocol"})

	// FallbackRequestsTotal counts key presses served by a brand's fallback transport
	FallbackRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvremote_fallback_requests_total",
		Help: "Total number of key commands sent over a fallback transport",
	}, []string{"protocol"})

	// ActiveConnection is 1 while the controller holds a connection
	ActiveConnection = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tvremote_active_connection",
		Help: "Whether a TV is currently connected (1) or not (0)",
	})

	// EventsDropped counts controller events dropped for slow subscribers
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tvremote_events_dropped_total",
		Help: "Total number of connection events dropped because a subscriber was full",
	})
)

// ResultLabel maps a boolean outcome to a result label.
func ResultLabel(ok bool) string {
	if ok {
		return ResultSuccess
	}
	return ResultFailure
}
