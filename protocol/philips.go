// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	philipsProtocol = "Philips JointSpace"
	philipsPort     = 1925
)

var philipsKeys = NewCommandTable(map[string]string{
	"Power":        "Standby",
	"Volume_Up":    "VolumeUp",
	"Volume_Down":  "VolumeDown",
	"Channel_Up":   "ChannelStepUp",
	"Channel_Down": "ChannelStepDown",
	"Mute":         "Mute",
	"Up":           "CursorUp",
	"Down":         "CursorDown",
	"Left":         "CursorLeft",
	"Right":        "CursorRight",
	"OK":           "Confirm",
	"Enter":        "Confirm",
	"Select":       "Confirm",
	"Back":         "Back",
	"Return":       "Back",
	"Exit":         "Exit",
	"Menu":         "Home",
	"Home":         "Home",
	"Source":       "Source",
	"Input":        "Source",
	"Info":         "Info",
	"Guide":        "Guide",
	"Play":         "Play",
	"Pause":        "Pause",
	"Stop":         "Stop",
	"Rewind":       "Rewind",
	"Fast_Forward": "FastForward",
	"0":            "Digit0",
	"1":            "Digit1",
	"2":            "Digit2",
	"3":            "Digit3",
	"4":            "Digit4",
	"5":            "Digit5",
	"6":            "Digit6",
	"7":            "Digit7",
	"8":            "Digit8",
	"9":            "Digit9",
	"Red":          "RedColour",
	"Green":        "GreenColour",
	"Yellow":       "YellowColour",
	"Blue":         "BlueColour",
	"Netflix":      "Netflix",
	"CC":           "SubtitlesOnOff",
	"Aspect":       "AdjustPicture",
	"Sleep":        "Standby",
})

// PhilipsHandler drives JointSpace API version 6.
type PhilipsHandler struct {
	session
	env *env
}

func newPhilipsHandler(e *env) *PhilipsHandler {
	return &PhilipsHandler{env: e}
}

func (h *PhilipsHandler) ProtocolName() string { return philipsProtocol }
func (h *PhilipsHandler) DefaultPort() int     { return philipsPort }

func (h *PhilipsHandler) MapCommandName(button string) (string, bool) {
	return philipsKeys.Lookup(button)
}

func (h *PhilipsHandler) Discover(ctx context.Context, timeout time.Duration) []DiscoveredDevice {
	return runDiscovery(ctx, h.env, timeout, discoveryPlan{
		protocol:    philipsProtocol,
		brand:       "Philips",
		defaultName: "Philips TV",
		fingerprint: fingerprint{
			server:   []string{"philips"},
			location: []string{"philips"},
		},
		matchPort:  philipsPort,
		probePorts: []int{philipsPort},
		identify:   h.systemName,
	})
}

func (h *PhilipsHandler) Connect(ctx context.Context, device DiscoveredDevice) bool {
	return connectWith(ctx, &h.session, philipsProtocol, device, func(ctx context.Context, d DiscoveredDevice) error {
		_, err := h.system(ctx, d)
		return err
	})
}

func (h *PhilipsHandler) SendKey(ctx context.Context, button string) bool {
	return sendWith(ctx, &h.session, philipsProtocol, philipsKeys, button, h.sendKey)
}

func (h *PhilipsHandler) sendKey(ctx context.Context, d DiscoveredDevice, key string) error {
	body, err := json.Marshal(map[string]string{"key": key})
	if err != nil {
		return err
	}
	_, err = do(ctx, h.env.client, request{
		op:          "input key",
		method:      http.MethodPost,
		url:         fmt.Sprintf("http://%s/6/input/key", d.Addr()),
		body:        body,
		contentType: contentTypeJSON,
	})
	return err
}

func (h *PhilipsHandler) system(ctx context.Context, d DiscoveredDevice) ([]byte, error) {
	return do(ctx, h.env.client, request{
		op:     "system",
		method: http.MethodGet,
		url:    fmt.Sprintf("http://%s/6/system", d.Addr()),
	})
}

func (h *PhilipsHandler) systemName(ctx context.Context, ip string, port int) (string, bool) {
	data, err := h.system(ctx, DiscoveredDevice{IPAddress: ip, Port: port})
	if err != nil {
		return "", false
	}
	var sys struct {
		Name string `json:"name"`
	}
	if json.Unmarshal(data, &sys) == nil && sys.Name != "" {
		return sys.Name, true
	}
	return "", true
}
