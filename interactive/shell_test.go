// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package interactive

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/soothill/wifi-tv-remote/protocol"
)

type fakeRemote struct {
	devices    []protocol.DiscoveredDevice
	connectOK  bool
	connected  bool
	device     protocol.DiscoveredDevice
	lastBrand  string
	lastIP     string
	lastWindow time.Duration
	sent       []string
}

func (f *fakeRemote) DiscoverDevices(_ context.Context, brand string, timeout time.Duration) []protocol.DiscoveredDevice {
	f.lastBrand = brand
	f.lastWindow = timeout
	return f.devices
}

func (f *fakeRemote) Connect(_ context.Context, brand string, device protocol.DiscoveredDevice) bool {
	f.lastBrand = brand
	f.connected = f.connectOK
	f.device = device
	return f.connectOK
}

func (f *fakeRemote) ConnectByAddress(_ context.Context, brand, ip string) bool {
	f.lastBrand = brand
	f.lastIP = ip
	f.connected = f.connectOK
	f.device = protocol.DiscoveredDevice{Name: brand + " TV", IPAddress: ip}
	return f.connectOK
}

func (f *fakeRemote) SendCommand(_ context.Context, button string) bool {
	f.sent = append(f.sent, button)
	return f.connected
}

func (f *fakeRemote) Disconnect()       { f.connected = false }
func (f *fakeRemote) IsConnected() bool { return f.connected }

func (f *fakeRemote) ConnectedDeviceName() string {
	if !f.connected {
		return ""
	}
	return f.device.DisplayName()
}

func (f *fakeRemote) ProtocolName() string {
	if !f.connected {
		return ""
	}
	return "Roku ECP"
}

type fakeCatalog struct{}

func (fakeCatalog) Buttons(brand string) []string {
	if brand == "roku" {
		return []string{"Home", "Netflix"}
	}
	return []string{"Power"}
}

func newTestShell(r *fakeRemote) (*Shell, *bytes.Buffer) {
	var out bytes.Buffer
	return newShell(r, fakeCatalog{}, []string{"lg", "roku"}, 4*time.Second, &out), &out
}

func TestDiscoverAndConnectByIndex(t *testing.T) {
	r := &fakeRemote{
		connectOK: true,
		devices: []protocol.DiscoveredDevice{
			{Name: "Bedroom", IPAddress: "192.168.1.50", Brand: "Roku", Port: 8060},
			{Name: "Lounge", IPAddress: "192.168.1.51", Brand: "Roku", Port: 8060},
		},
	}
	sh, out := newTestShell(r)
	ctx := context.Background()

	assert.False(t, sh.Execute(ctx, "discover Roku 2s"))
	assert.Equal(t, "roku", r.lastBrand)
	assert.Equal(t, 2*time.Second, r.lastWindow)
	assert.Contains(t, out.String(), "2. Lounge (192.168.1.51:8060)")
	assert.Equal(t, "tv[roku]> ", sh.prompt())

	out.Reset()
	sh.Execute(ctx, "connect 2")
	assert.Equal(t, "192.168.1.51", r.device.IPAddress)
	assert.Contains(t, out.String(), "Connected to Lounge via Roku ECP")

	out.Reset()
	sh.Execute(ctx, "connect 9")
	assert.Contains(t, out.String(), "No device 9")
}

func TestConnectByAddress(t *testing.T) {
	r := &fakeRemote{connectOK: true}
	sh, out := newTestShell(r)
	ctx := context.Background()

	sh.Execute(ctx, "connect 192.168.1.40")
	assert.Contains(t, out.String(), "Select a brand first")
	assert.Empty(t, r.lastIP)

	sh.Execute(ctx, "brand lg")
	sh.Execute(ctx, "connect 192.168.1.40")
	assert.Equal(t, "lg", r.lastBrand)
	assert.Equal(t, "192.168.1.40", r.lastIP)
	assert.Contains(t, out.String(), "Connected to lg TV")
}

func TestConnectFailure(t *testing.T) {
	r := &fakeRemote{connectOK: false}
	sh, out := newTestShell(r)

	sh.Execute(context.Background(), "brand sony")
	sh.Execute(context.Background(), "connect 10.0.0.9")
	assert.Contains(t, out.String(), "Connection failed")
}

func TestSend(t *testing.T) {
	r := &fakeRemote{connectOK: true}
	sh, out := newTestShell(r)
	ctx := context.Background()

	sh.Execute(ctx, "send Home")
	assert.Contains(t, out.String(), "Not connected")
	assert.Empty(t, r.sent)

	sh.Execute(ctx, "brand roku")
	sh.Execute(ctx, "connect 192.168.1.50")
	out.Reset()

	sh.Execute(ctx, "send volume up")
	assert.Equal(t, []string{"volume up"}, r.sent)
	assert.Contains(t, out.String(), "Sent volume up")

	out.Reset()
	sh.Execute(ctx, "send")
	assert.Contains(t, out.String(), "Usage: send")
}

func TestStatusAndDisconnect(t *testing.T) {
	r := &fakeRemote{connectOK: true}
	sh, out := newTestShell(r)
	ctx := context.Background()

	sh.Execute(ctx, "status")
	assert.Contains(t, out.String(), "not connected")

	sh.Execute(ctx, "brand roku")
	sh.Execute(ctx, "connect 192.168.1.50")
	out.Reset()
	sh.Execute(ctx, "status")
	assert.Contains(t, out.String(), "connected to roku TV via Roku ECP")

	sh.Execute(ctx, "disconnect")
	assert.False(t, r.connected)
}

func TestBrandsAndButtons(t *testing.T) {
	sh, out := newTestShell(&fakeRemote{})
	ctx := context.Background()

	sh.Execute(ctx, "buttons")
	assert.Contains(t, out.String(), "Usage: buttons")

	out.Reset()
	sh.Execute(ctx, "brand roku")
	sh.Execute(ctx, "brands")
	assert.Contains(t, out.String(), " * roku")
	assert.Contains(t, out.String(), "   lg")

	out.Reset()
	sh.Execute(ctx, "buttons")
	assert.Contains(t, out.String(), "Home, Netflix")

	out.Reset()
	sh.Execute(ctx, "buttons lg")
	assert.Contains(t, out.String(), "lg buttons (1)")
}

func TestQuitAndUnknown(t *testing.T) {
	r := &fakeRemote{connectOK: true, connected: true}
	sh, out := newTestShell(r)
	ctx := context.Background()

	assert.False(t, sh.Execute(ctx, "   "))
	assert.False(t, sh.Execute(ctx, "dance"))
	assert.Contains(t, out.String(), "Unknown command: dance")

	assert.True(t, sh.Execute(ctx, "QUIT"))
	assert.False(t, r.connected, "quit disconnects")
}

func TestDevicesBeforeDiscover(t *testing.T) {
	sh, out := newTestShell(&fakeRemote{})
	sh.Execute(context.Background(), "devices")
	assert.Contains(t, out.String(), "run 'discover' first")

	out.Reset()
	sh.Execute(context.Background(), "discover")
	assert.Contains(t, out.String(), "Usage: discover")
}

func TestCompleterListsButtonsForBrand(t *testing.T) {
	sh, _ := newTestShell(&fakeRemote{})
	sh.brand = "roku"

	line := []rune("send Ne")
	candidates, length := sh.completer().Do(line, len(line))
	assert.Equal(t, 2, length)
	if assert.Len(t, candidates, 1) {
		assert.Equal(t, "tflix ", string(candidates[0]))
	}
}
