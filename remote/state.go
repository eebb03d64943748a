// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package remote

import (
	"fmt"
	"time"

	"github.com/soothill/wifi-tv-remote/protocol"
)

// State is the controller's connection state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON and YAML.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = StateIdle
	case "connecting":
		*s = StateConnecting
	case "connected":
		*s = StateConnected
	default:
		return fmt.Errorf("unknown connection state %q", text)
	}
	return nil
}

// ConnectionState is a snapshot of the active connection slot.
type ConnectionState struct {
	State     State                      `json:"state"`
	Brand     string                     `json:"brand,omitempty"`
	Device    *protocol.DiscoveredDevice `json:"device,omitempty"`
	Protocol  string                     `json:"protocol,omitempty"`
	SessionID string                     `json:"session_id,omitempty"`
	Since     time.Time                  `json:"since"`
}

// EventType identifies a controller event.
type EventType string

const (
	EventConnecting    EventType = "connecting"
	EventConnected     EventType = "connected"
	EventConnectFailed EventType = "connect_failed"
	EventDisconnected  EventType = "disconnected"
	EventCommandSent   EventType = "command_sent"
	EventCommandFailed EventType = "command_failed"
)

// Event is published to subscribers on every state change and command.
type Event struct {
	Type      EventType       `json:"type"`
	State     ConnectionState `json:"state"`
	Button    string          `json:"button,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
