// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/soothill/wifi-tv-remote/pkg/errors"
)

const (
	vizioProtocol     = "Vizio SmartCast"
	vizioPort         = 7345
	vizioFallbackPort = 9000
)

// VizioKey is a SmartCast key: a codeset and a code within it.
type VizioKey struct {
	Codeset int
	Code    int
}

func (k VizioKey) String() string {
	return fmt.Sprintf("%d:%d", k.Codeset, k.Code)
}

var vizioKeys = NewCommandTable(map[string]VizioKey{
	"Power":        {1, 0},
	"Volume_Up":    {5, 1},
	"Volume_Down":  {5, 0},
	"Channel_Up":   {8, 1},
	"Channel_Down": {8, 0},
	"Mute":         {5, 4},
	"Up":           {3, 8},
	"Down":         {3, 0},
	"Left":         {3, 1},
	"Right":        {3, 7},
	"OK":           {3, 2},
	"Enter":        {3, 2},
	"Select":       {3, 2},
	"Back":         {4, 0},
	"Return":       {4, 0},
	"Exit":         {9, 0},
	"Menu":         {4, 8},
	"Home":         {4, 3},
	"Info":         {4, 6},
	"Play":         {2, 3},
	"Pause":        {2, 2},
	"Input":        {7, 1},
	"Source":       {7, 1},
	"CC":           {4, 4},
})

type vizioKeyPress struct {
	Codeset int    `json:"CODESET"`
	Code    int    `json:"CODE"`
	Action  string `json:"ACTION"`
}

type vizioKeyCommand struct {
	KeyList []vizioKeyPress `json:"KEYLIST"`
}

// VizioHandler drives SmartCast TVs over HTTPS on 7345, retrying over plain
// HTTP on 9000 when the HTTPS request cannot be delivered.
type VizioHandler struct {
	session
	env          *env
	fallbackPort int
	route        *fallbackRoute
}

func newVizioHandler(e *env) *VizioHandler {
	return &VizioHandler{
		env:          e,
		fallbackPort: vizioFallbackPort,
		// A TV that answers HTTPS with an error status is not retried.
		route: newFallbackRoute(vizioProtocol, apperrors.IsNetworkError),
	}
}

func (h *VizioHandler) ProtocolName() string { return vizioProtocol }
func (h *VizioHandler) DefaultPort() int     { return vizioPort }

// MapCommandName returns the key as "codeset:code".
func (h *VizioHandler) MapCommandName(button string) (string, bool) {
	key, ok := vizioKeys.Lookup(button)
	if !ok {
		return "", false
	}
	return key.String(), true
}

// Discover records 7345 for probed hosts when it answers, else 9000.
func (h *VizioHandler) Discover(ctx context.Context, timeout time.Duration) []DiscoveredDevice {
	return runDiscovery(ctx, h.env, timeout, discoveryPlan{
		protocol:    vizioProtocol,
		brand:       "Vizio",
		defaultName: "Vizio TV",
		fingerprint: fingerprint{
			server:   []string{"vizio", "smartcast"},
			location: []string{"vizio"},
		},
		matchPort:  vizioPort,
		probePorts: []int{vizioPort, h.fallbackPort},
	})
}

func (h *VizioHandler) Connect(ctx context.Context, device DiscoveredDevice) bool {
	return connectWith(ctx, &h.session, vizioProtocol, device, reachable(h.env))
}

func (h *VizioHandler) SendKey(ctx context.Context, button string) bool {
	return sendWith(ctx, &h.session, vizioProtocol, vizioKeys, button, h.sendKey)
}

func (h *VizioHandler) sendKey(ctx context.Context, d DiscoveredDevice, key VizioKey) error {
	body, err := json.Marshal(vizioKeyCommand{
		KeyList: []vizioKeyPress{{Codeset: key.Codeset, Code: key.Code, Action: "KEYPRESS"}},
	})
	if err != nil {
		return err
	}

	plain := func() error {
		return h.putKeyCommand(ctx, h.env.client, "http://"+d.withPort(h.fallbackPort).Addr(), body)
	}

	// A device found only on the HTTP port has no HTTPS endpoint to try.
	if d.Port == h.fallbackPort {
		return plain()
	}

	return h.route.send(
		func() error { return h.putKeyCommand(ctx, h.env.tlsClient, "https://"+d.Addr(), body) },
		plain,
	)
}

func (h *VizioHandler) putKeyCommand(ctx context.Context, client *http.Client, base string, body []byte) error {
	header := map[string]string{}
	if h.env.opts.VizioAuthToken != "" {
		header["AUTH"] = h.env.opts.VizioAuthToken
	}
	_, err := do(ctx, client, request{
		op:          "key_command",
		method:      http.MethodPut,
		url:         base + "/key_command/",
		body:        body,
		contentType: contentTypeJSON,
		header:      header,
	})
	return err
}
