// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package protocol

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	rokuProtocol = "Roku ECP"
	rokuPort     = 8060

	// Codes with this prefix launch a channel instead of pressing a key.
	rokuLaunchPrefix = "Launch_"
)

var rokuKeys = NewCommandTable(map[string]string{
	"Power":        "Power",
	"PowerOff":     "PowerOff",
	"PowerOn":      "PowerOn",
	"Volume_Up":    "VolumeUp",
	"Volume_Down":  "VolumeDown",
	"Mute":         "VolumeMute",
	"Up":           "Up",
	"Down":         "Down",
	"Left":         "Left",
	"Right":        "Right",
	"OK":           "Select",
	"Enter":        "Select",
	"Select":       "Select",
	"Back":         "Back",
	"Return":       "Back",
	"Home":         "Home",
	"Info":         "Info",
	"Play":         "Play",
	"Pause":        "Play",
	"Stop":         "Play",
	"Rewind":       "Rev",
	"Fast_Forward": "Fwd",
	"0":            "Lit_0",
	"1":            "Lit_1",
	"2":            "Lit_2",
	"3":            "Lit_3",
	"4":            "Lit_4",
	"5":            "Lit_5",
	"6":            "Lit_6",
	"7":            "Lit_7",
	"8":            "Lit_8",
	"9":            "Lit_9",
	"Netflix":      "Launch_12",
	"Input":        "InputHDMI1",
	"HDMI1":        "InputHDMI1",
	"HDMI2":        "InputHDMI2",
	"HDMI3":        "InputHDMI3",
	"Sleep":        "Sleep",
})

type rokuDeviceInfo struct {
	XMLName            xml.Name `xml:"device-info"`
	FriendlyDeviceName string   `xml:"friendly-device-name"`
	UserDeviceName     string   `xml:"user-device-name"`
	ModelName          string   `xml:"model-name"`
}

// RokuHandler speaks the Roku External Control Protocol. TCL sets run Roku
// OS and share it; brand only changes the label on discovered devices.
type RokuHandler struct {
	session
	env   *env
	brand string
}

func newRokuHandler(e *env, brand string) *RokuHandler {
	return &RokuHandler{env: e, brand: brand}
}

func (h *RokuHandler) ProtocolName() string { return rokuProtocol }
func (h *RokuHandler) DefaultPort() int     { return rokuPort }

func (h *RokuHandler) MapCommandName(button string) (string, bool) {
	return rokuKeys.Lookup(button)
}

func (h *RokuHandler) Discover(ctx context.Context, timeout time.Duration) []DiscoveredDevice {
	return runDiscovery(ctx, h.env, timeout, discoveryPlan{
		protocol:    rokuProtocol,
		brand:       h.brand,
		defaultName: "Roku Device",
		fingerprint: fingerprint{
			server:       []string{"roku"},
			location:     []string{":8060"},
			searchTarget: []string{"roku"},
		},
		matchPort:  rokuPort,
		probePorts: []int{rokuPort},
		identify:   h.deviceName,
	})
}

func (h *RokuHandler) Connect(ctx context.Context, device DiscoveredDevice) bool {
	return connectWith(ctx, &h.session, rokuProtocol, device, func(ctx context.Context, d DiscoveredDevice) error {
		_, err := h.deviceInfo(ctx, d)
		return err
	})
}

func (h *RokuHandler) SendKey(ctx context.Context, button string) bool {
	return sendWith(ctx, &h.session, rokuProtocol, rokuKeys, button, h.keypress)
}

// keypress posts /keypress/<code>, or /launch/<id> for channel shortcuts.
func (h *RokuHandler) keypress(ctx context.Context, d DiscoveredDevice, code string) error {
	path := "/keypress/" + url.PathEscape(code)
	op := "keypress"
	if app, ok := strings.CutPrefix(code, rokuLaunchPrefix); ok {
		path = "/launch/" + url.PathEscape(app)
		op = "launch"
	}

	_, err := do(ctx, h.env.client, request{
		op:     op,
		method: http.MethodPost,
		url:    fmt.Sprintf("http://%s%s", d.Addr(), path),
	})
	return err
}

func (h *RokuHandler) deviceInfo(ctx context.Context, d DiscoveredDevice) (rokuDeviceInfo, error) {
	var info rokuDeviceInfo
	data, err := do(ctx, h.env.client, request{
		op:     "device-info",
		method: http.MethodGet,
		url:    fmt.Sprintf("http://%s/query/device-info", d.Addr()),
	})
	if err != nil {
		return info, err
	}
	// Older firmware returns partial XML; a 200 is enough for a handshake.
	_ = xml.Unmarshal(data, &info)
	return info, nil
}

func (h *RokuHandler) deviceName(ctx context.Context, ip string, port int) (string, bool) {
	info, err := h.deviceInfo(ctx, DiscoveredDevice{IPAddress: ip, Port: port})
	if err != nil {
		return "", false
	}
	for _, name := range []string{info.UserDeviceName, info.FriendlyDeviceName, info.ModelName} {
		if name = strings.TrimSpace(name); name != "" {
			return name, true
		}
	}
	return "", true
}
