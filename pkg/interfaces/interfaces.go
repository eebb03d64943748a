// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package interfaces defines the contracts between the remote controller and
// the code around it: front ends that drive a controller, and collaborators
// that live outside this module such as a button catalog or an infrared
// blaster. Depending on these instead of concrete types keeps front ends
// testable with fakes.
package interfaces

import (
	"context"
	"time"

	"github.com/soothill/wifi-tv-remote/protocol"
)

// RemoteControl is what a front end (CLI, REPL, HTTP API) needs from the
// controller.
type RemoteControl interface {
	// DiscoverDevices finds TVs of a brand. Never nil.
	DiscoverDevices(ctx context.Context, brand string, timeout time.Duration) []protocol.DiscoveredDevice

	// Connect makes device the active TV, replacing any previous one.
	Connect(ctx context.Context, brand string, device protocol.DiscoveredDevice) bool

	// ConnectByAddress connects to an IPv4 address on the brand's default port.
	ConnectByAddress(ctx context.Context, brand, ip string) bool

	// SendCommand sends one canonical button press.
	SendCommand(ctx context.Context, button string) bool

	Disconnect()
	IsConnected() bool
	ConnectedDeviceName() string
	ProtocolName() string
}
