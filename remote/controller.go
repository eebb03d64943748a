// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package remote provides the Controller, which owns the single active TV
// connection and routes discovery, connect and key-press requests to the
// right protocol handler.
//
// # Connection slot
//
// At most one handler is connected at a time. Connect tears down the
// current connection before resolving and connecting a new handler, and the
// new handler, brand and device are stored together only after its
// handshake succeeds. Connect and Disconnect are serialised; SendCommand is
// not blocked by them, so Disconnect can interrupt a slow key press.
//
// # Commands
//
// Key presses are single-flight: a second SendCommand waits for the one in
// flight (or for its context to end) and is then paced by a token bucket.
// Nothing is retried.
//
// # Events
//
// Subscribe returns a buffered channel of Events. Publishing never blocks;
// a subscriber that falls behind loses events.
package remote

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/soothill/wifi-tv-remote/pkg/interfaces"
	"github.com/soothill/wifi-tv-remote/pkg/logger"
	"github.com/soothill/wifi-tv-remote/pkg/metrics"
	"github.com/soothill/wifi-tv-remote/protocol"
)

// Default command pacing.
const (
	DefaultCommandRate  = 20.0
	DefaultCommandBurst = 5
)

// Resolver picks a protocol handler for a brand. *protocol.Registry
// implements it.
type Resolver interface {
	Resolve(brand string) protocol.Handler
}

// Options configures a Controller. Zero values take defaults.
type Options struct {
	// CommandRate is the sustained key presses per second.
	CommandRate float64
	// CommandBurst is how many presses may go out back to back.
	CommandBurst int
}

// Controller orchestrates discovery, connection and key presses.
type Controller struct {
	resolver Resolver

	connectMu sync.Mutex // serialises Connect and Disconnect

	mu        sync.RWMutex // guards the active slot below
	handler   protocol.Handler
	brand     string
	device    *protocol.DiscoveredDevice
	state     State
	sessionID string
	since     time.Time

	inflight chan struct{}
	limiter  *rate.Limiter

	subMu  sync.Mutex
	subs   map[uint64]chan Event
	nextID uint64
}

var _ interfaces.RemoteControl = (*Controller)(nil)

// NewController creates an idle controller.
func NewController(resolver Resolver, opts Options) *Controller {
	if opts.CommandRate <= 0 {
		opts.CommandRate = DefaultCommandRate
	}
	if opts.CommandBurst <= 0 {
		opts.CommandBurst = DefaultCommandBurst
	}

	return &Controller{
		resolver: resolver,
		state:    StateIdle,
		since:    time.Now(),
		inflight: make(chan struct{}, 1),
		limiter:  rate.NewLimiter(rate.Limit(opts.CommandRate), opts.CommandBurst),
		subs:     make(map[uint64]chan Event),
	}
}

// SetCommandRate changes command pacing on a live controller.
func (c *Controller) SetCommandRate(perSecond float64, burst int) {
	if perSecond > 0 {
		c.limiter.SetLimit(rate.Limit(perSecond))
	}
	if burst > 0 {
		c.limiter.SetBurst(burst)
	}
}

// DiscoverDevices runs brand discovery. Failures, including panics inside a
// handler, yield an empty slice.
func (c *Controller) DiscoverDevices(ctx context.Context, brand string, timeout time.Duration) (devices []protocol.DiscoveredDevice) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Str("brand", brand).
				Str("panic", fmt.Sprint(r)).
				Msg("Discovery panicked")
			devices = []protocol.DiscoveredDevice{}
		}
	}()

	devices = c.resolver.Resolve(brand).Discover(ctx, timeout)
	if devices == nil {
		devices = []protocol.DiscoveredDevice{}
	}
	return devices
}

// Connect disconnects any current device, then connects device using the
// handler for brand. The slot is filled only when the handshake succeeds.
func (c *Controller) Connect(ctx context.Context, brand string, device protocol.DiscoveredDevice) bool {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	c.disconnectLocked()

	handler := c.resolver.Resolve(brand)

	c.mu.Lock()
	c.state = StateConnecting
	c.brand = brand
	c.since = time.Now()
	c.mu.Unlock()
	c.publish(EventConnecting, "")

	if !safeConnect(ctx, handler, device) {
		c.mu.Lock()
		c.state = StateIdle
		c.brand = ""
		c.since = time.Now()
		c.mu.Unlock()
		c.publish(EventConnectFailed, "")

		logger.Warn().
			Str("brand", brand).
			Str("ip", device.IPAddress).
			Int("port", device.Port).
			Msg("Connection failed")
		return false
	}

	sessionID := uuid.NewString()
	c.mu.Lock()
	c.handler = handler
	c.brand = brand
	c.device = &device
	c.state = StateConnected
	c.sessionID = sessionID
	c.since = time.Now()
	c.mu.Unlock()

	metrics.ActiveConnection.Set(1)
	c.publish(EventConnected, "")

	logger.Info().
		Str("brand", brand).
		Str("device", device.DisplayName()).
		Str("protocol", handler.ProtocolName()).
		Str("session_id", sessionID).
		Msg("Connected to TV")
	return true
}

// ConnectByAddress connects to a manually entered IPv4 address on the
// brand's default port.
func (c *Controller) ConnectByAddress(ctx context.Context, brand, ip string) bool {
	brand = strings.TrimSpace(brand)
	device := protocol.DiscoveredDevice{
		Name:      brand + " TV",
		IPAddress: strings.TrimSpace(ip),
		Brand:     brand,
		Port:      c.resolver.Resolve(brand).DefaultPort(),
	}
	if err := device.Validate(); err != nil {
		logger.Warn().Err(err).Str("brand", brand).Str("ip", ip).Msg("Invalid address")
		return false
	}
	return c.Connect(ctx, brand, device)
}

// SendCommand sends one button press to the connected TV. It returns false
// without any I/O when nothing is connected.
func (c *Controller) SendCommand(ctx context.Context, button string) bool {
	if !c.IsConnected() {
		return false
	}

	select {
	case c.inflight <- struct{}{}:
	case <-ctx.Done():
		return false
	}
	defer func() { <-c.inflight }()

	if err := c.limiter.Wait(ctx); err != nil {
		logger.Debug().Err(err).Str("button", button).Msg("Command abandoned while pacing")
		return false
	}

	// The slot may have changed while this call was queued.
	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()
	if handler == nil {
		return false
	}

	ok := safeSend(ctx, handler, button)
	if ok {
		c.publish(EventCommandSent, button)
	} else {
		c.publish(EventCommandFailed, button)
	}
	return ok
}

// Disconnect drops the active connection. Calling it while idle is a no-op.
func (c *Controller) Disconnect() {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()
	c.disconnectLocked()
}

func (c *Controller) disconnectLocked() {
	c.mu.Lock()
	handler := c.handler
	device := c.device
	c.handler = nil
	c.device = nil
	c.brand = ""
	c.sessionID = ""
	c.state = StateIdle
	c.since = time.Now()
	c.mu.Unlock()

	if handler == nil {
		return
	}

	safeDisconnect(handler)
	metrics.ActiveConnection.Set(0)
	c.publish(EventDisconnected, "")

	logger.Info().
		Str("device", device.DisplayName()).
		Msg("Disconnected")
}

// IsConnected reports whether a handler occupies the slot.
func (c *Controller) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handler != nil
}

// State returns a snapshot of the connection slot.
func (c *Controller) State() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() ConnectionState {
	s := ConnectionState{
		State:     c.state,
		Brand:     c.brand,
		SessionID: c.sessionID,
		Since:     c.since,
	}
	if c.device != nil {
		d := *c.device
		s.Device = &d
	}
	if c.handler != nil {
		s.Protocol = activeProtocol(c.handler)
	}
	return s
}

// ConnectedDeviceName returns the connected device's display name, or "".
func (c *Controller) ConnectedDeviceName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.device == nil {
		return ""
	}
	return c.device.DisplayName()
}

// ProtocolName returns the protocol in use, or "".
func (c *Controller) ProtocolName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.handler == nil {
		return ""
	}
	return activeProtocol(c.handler)
}

// Close disconnects and closes every subscription.
func (c *Controller) Close() {
	c.Disconnect()

	c.subMu.Lock()
	defer c.subMu.Unlock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
}

// activeProtocol prefers the protocol a generic handler detected.
func activeProtocol(h protocol.Handler) string {
	if d, ok := h.(interface{ ActiveProtocolName() string }); ok {
		return d.ActiveProtocolName()
	}
	return h.ProtocolName()
}

func safeConnect(ctx context.Context, h protocol.Handler, device protocol.DiscoveredDevice) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Str("panic", fmt.Sprint(r)).Str("protocol", h.ProtocolName()).Msg("Connect panicked")
			ok = false
		}
	}()
	return h.Connect(ctx, device)
}

func safeSend(ctx context.Context, h protocol.Handler, button string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Str("panic", fmt.Sprint(r)).Str("button", button).Msg("Key press panicked")
			ok = false
		}
	}()
	return h.SendKey(ctx, button)
}

func safeDisconnect(h protocol.Handler) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Str("panic", fmt.Sprint(r)).Msg("Disconnect panicked")
		}
	}()
	h.Disconnect()
}
