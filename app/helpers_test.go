// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/soothill/wifi-tv-remote/protocol"
)

// stubHandler is a protocol.Handler whose outcomes are fixed per brand.
type stubHandler struct {
	brand     string
	connectOK bool
	sendOK    bool
	devices   []protocol.DiscoveredDevice

	mu        sync.Mutex
	connected bool
	sent      []string
}

func (h *stubHandler) ProtocolName() string { return "Stub " + h.brand }
func (h *stubHandler) DefaultPort() int     { return 8060 }

func (h *stubHandler) Discover(context.Context, time.Duration) []protocol.DiscoveredDevice {
	return h.devices
}

func (h *stubHandler) Connect(_ context.Context, _ protocol.DiscoveredDevice) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected = h.connectOK
	return h.connectOK
}

func (h *stubHandler) SendKey(_ context.Context, button string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, button)
	return h.sendOK
}

func (h *stubHandler) IsConnected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected
}

func (h *stubHandler) Disconnect() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected = false
}

func (h *stubHandler) MapCommandName(button string) (string, bool) { return button, true }

// stubCatalog resolves brands to stubHandlers and lists them as a BrandCatalog.
type stubCatalog struct {
	connectOK map[string]bool
	sendOK    bool
	devices   map[string][]protocol.DiscoveredDevice
}

func newStubCatalog() *stubCatalog {
	return &stubCatalog{
		connectOK: map[string]bool{"roku": true, "lg": true, "sony": false},
		sendOK:    true,
		devices: map[string][]protocol.DiscoveredDevice{
			"roku": {{Name: "Bedroom Roku", IPAddress: "192.168.1.50", Brand: "Roku", Port: 8060}},
		},
	}
}

func (c *stubCatalog) Resolve(brand string) protocol.Handler {
	return &stubHandler{
		brand:     brand,
		connectOK: c.connectOK[brand],
		sendOK:    c.sendOK,
		devices:   c.devices[brand],
	}
}

func (c *stubCatalog) Brands() []string {
	names := make([]string, 0, len(c.connectOK))
	for name := range c.connectOK {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *stubCatalog) ProtocolNameFor(brand string) string { return "Stub " + brand }

func (c *stubCatalog) Buttons(string) []string { return []string{"Power", "Home"} }
