// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package protocol implements the per-brand TV control protocols behind one
// Handler contract, and the Registry that picks a handler for a brand name.
//
// Handlers never return errors to their callers. Transport failures, bad
// status codes and unmapped buttons are logged and reported as false or an
// empty slice, so a caller only ever sees "worked" or "did not work".
package protocol

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "github.com/soothill/wifi-tv-remote/pkg/errors"
	"github.com/soothill/wifi-tv-remote/pkg/logger"
	"github.com/soothill/wifi-tv-remote/pkg/metrics"
)

// Handler is the uniform control surface every brand implements.
type Handler interface {
	// ProtocolName is a human-readable protocol label, e.g. "Roku ECP".
	ProtocolName() string

	// DefaultPort is the control port used for devices entered by address.
	DefaultPort() int

	// Discover finds devices of this brand within timeout. Results are
	// unique by IP and carry no ordering guarantee.
	Discover(ctx context.Context, timeout time.Duration) []DiscoveredDevice

	// Connect performs a lightweight handshake and, on success, makes device
	// the current target.
	Connect(ctx context.Context, device DiscoveredDevice) bool

	// SendKey sends one button press to the current device. Unmapped buttons
	// return false without touching the network.
	SendKey(ctx context.Context, button string) bool

	IsConnected() bool

	// Disconnect clears the current device. Safe to call repeatedly and
	// concurrently with SendKey.
	Disconnect()

	// MapCommandName translates a canonical button name to the native code.
	MapCommandName(button string) (string, bool)
}

// session holds the connection state shared by every handler.
type session struct {
	mu     sync.Mutex
	device *DiscoveredDevice
}

func (s *session) store(device DiscoveredDevice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.device = &device
}

func (s *session) current() (DiscoveredDevice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return DiscoveredDevice{}, false
	}
	return *s.device, true
}

// IsConnected reports whether a device is stored.
func (s *session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device != nil
}

// Disconnect clears the stored device.
func (s *session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.device = nil
}

// connectWith validates device, runs handshake and stores the device only
// when the handshake succeeds.
func connectWith(ctx context.Context, s *session, protocol string, device DiscoveredDevice,
	handshake func(context.Context, DiscoveredDevice) error) bool {
	log := logger.Component("protocol").With().
		Str("protocol", protocol).
		Str("ip", device.IPAddress).
		Int("port", device.Port).
		Logger()

	if err := device.Validate(); err != nil {
		log.Warn().Err(err).Msg("Refusing to connect to invalid device")
		metrics.ConnectAttemptsTotal.WithLabelValues(protocol, metrics.ResultFailure).Inc()
		return false
	}

	if err := handshake(ctx, device); err != nil {
		log.Warn().Err(err).Msg("Connect handshake failed")
		metrics.ConnectAttemptsTotal.WithLabelValues(protocol, metrics.ResultFailure).Inc()
		return false
	}

	s.store(device)
	metrics.ConnectAttemptsTotal.WithLabelValues(protocol, metrics.ResultSuccess).Inc()
	log.Info().Str("device", device.DisplayName()).Msg("Connected")
	return true
}

// sendWith resolves button through table and sends it to the current device.
// The table is consulted before the session so unmapped buttons never reach
// the network, connected or not.
func sendWith[K any](ctx context.Context, s *session, protocol string, table CommandTable[K], button string,
	send func(context.Context, DiscoveredDevice, K) error) bool {
	code, ok := table.Lookup(button)
	if !ok {
		metrics.CommandsTotal.WithLabelValues(protocol, metrics.ResultUnmapped).Inc()
		logger.Debug().
			Str("protocol", protocol).
			Str("button", button).
			Err(apperrors.ErrUnmappedCommand).
			Msg("Button has no key code")
		return false
	}

	device, ok := s.current()
	if !ok {
		metrics.CommandsTotal.WithLabelValues(protocol, metrics.ResultFailure).Inc()
		logger.Debug().
			Str("protocol", protocol).
			Str("button", button).
			Err(apperrors.ErrNotConnected).
			Msg("Key press without a device")
		return false
	}

	start := time.Now()
	err := send(ctx, device, code)
	metrics.CommandDuration.WithLabelValues(protocol).Observe(time.Since(start).Seconds())
	metrics.CommandsTotal.WithLabelValues(protocol, metrics.ResultLabel(err == nil)).Inc()

	if err != nil {
		logger.Warn().
			Err(err).
			Str("protocol", protocol).
			Str("ip", device.IPAddress).
			Str("button", button).
			Msg("Key command failed")
		return false
	}

	logger.Debug().
		Str("protocol", protocol).
		Str("ip", device.IPAddress).
		Str("button", button).
		Msg("Key command sent")
	return true
}

var errUnreachable = errors.New("port not reachable")

// reachable is the handshake for protocols with no status endpoint: the
// control port accepting a TCP connection is taken as readiness.
func reachable(e *env) func(context.Context, DiscoveredDevice) error {
	return func(ctx context.Context, d DiscoveredDevice) error {
		if !e.prober.ProbeTCPPort(ctx, d.IPAddress, d.Port, e.opts.ConnectTimeout) {
			return apperrors.NewNetworkError("probe", d.Addr(), errUnreachable)
		}
		return nil
	}
}
