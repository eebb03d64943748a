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
	samsungProtocol   = "Samsung Smart TV"
	samsungPort       = 8001
	samsungLegacyPort = 55000

	samsungSOAPAction = `"urn:samsung.com:service:MultiScreenService:1#SendKeyCode"`
)

var samsungKeys = NewCommandTable(map[string]string{
	"Power":        "KEY_POWER",
	"Volume_Up":    "KEY_VOLUP",
	"Volume_Down":  "KEY_VOLDOWN",
	"Channel_Up":   "KEY_CHUP",
	"Channel_Down": "KEY_CHDOWN",
	"Mute":         "KEY_MUTE",
	"Up":           "KEY_UP",
	"Down":         "KEY_DOWN",
	"Left":         "KEY_LEFT",
	"Right":        "KEY_RIGHT",
	"OK":           "KEY_ENTER",
	"Enter":        "KEY_ENTER",
	"Select":       "KEY_ENTER",
	"Back":         "KEY_RETURN",
	"Return":       "KEY_RETURN",
	"Exit":         "KEY_EXIT",
	"Menu":         "KEY_MENU",
	"Home":         "KEY_HOME",
	"Source":       "KEY_SOURCE",
	"Input":        "KEY_SOURCE",
	"Info":         "KEY_INFO",
	"Guide":        "KEY_GUIDE",
	"Play":         "KEY_PLAY",
	"Pause":        "KEY_PAUSE",
	"Stop":         "KEY_STOP",
	"Rewind":       "KEY_REWIND",
	"Fast_Forward": "KEY_FF",
	"0":            "KEY_0",
	"1":            "KEY_1",
	"2":            "KEY_2",
	"3":            "KEY_3",
	"4":            "KEY_4",
	"5":            "KEY_5",
	"6":            "KEY_6",
	"7":            "KEY_7",
	"8":            "KEY_8",
	"9":            "KEY_9",
	"Red":          "KEY_RED",
	"Green":        "KEY_GREEN",
	"Yellow":       "KEY_YELLOW",
	"Blue":         "KEY_BLUE",
	"HDMI1":        "KEY_HDMI1",
	"HDMI2":        "KEY_HDMI2",
	"HDMI3":        "KEY_HDMI3",
	"HDMI4":        "KEY_HDMI4",
	"Netflix":      "KEY_NETFLIX",
	"APPS":         "KEY_APPS",
	"Sleep":        "KEY_SLEEP",
	"Aspect":       "KEY_PANELCHG",
	"CC":           "KEY_CC",
	"PIP":          "KEY_PIP_ONOFF",
	"Zoom":         "KEY_ZOOM_IN",
	"Swap":         "KEY_ZOOM_MOVE",
})

type samsungRemoteParams struct {
	Cmd          string `json:"Cmd"`
	DataOfCmd    string `json:"DataOfCmd"`
	Option       string `json:"Option"`
	TypeOfRemote string `json:"TypeOfRemote"`
}

type samsungRemoteCommand struct {
	Method string              `json:"method"`
	Params samsungRemoteParams `json:"params"`
}

// SamsungHandler drives Tizen TVs over the REST remote-control channel on
// port 8001, falling back to the legacy MultiScreen SOAP service on 55000.
type SamsungHandler struct {
	session
	env        *env
	legacyPort int
	route      *fallbackRoute
}

func newSamsungHandler(e *env) *SamsungHandler {
	return &SamsungHandler{
		env:        e,
		legacyPort: samsungLegacyPort,
		// Any primary failure, transport or status, goes to the legacy service.
		route: newFallbackRoute(samsungProtocol, func(error) bool { return true }),
	}
}

func (h *SamsungHandler) ProtocolName() string { return samsungProtocol }
func (h *SamsungHandler) DefaultPort() int     { return samsungPort }

func (h *SamsungHandler) MapCommandName(button string) (string, bool) {
	return samsungKeys.Lookup(button)
}

// Discover matches "samsung" in any header and probes 8001 on the rest,
// keeping hosts whose /api/v2/ answers.
func (h *SamsungHandler) Discover(ctx context.Context, timeout time.Duration) []DiscoveredDevice {
	return runDiscovery(ctx, h.env, timeout, discoveryPlan{
		protocol:    samsungProtocol,
		brand:       "Samsung",
		defaultName: "Samsung TV",
		fingerprint: fingerprint{
			server:       []string{"samsung"},
			location:     []string{"samsung"},
			searchTarget: []string{"samsung"},
		},
		matchPort:  samsungPort,
		probePorts: []int{samsungPort},
		identify:   h.deviceName,
		strict:     true,
	})
}

func (h *SamsungHandler) Connect(ctx context.Context, device DiscoveredDevice) bool {
	return connectWith(ctx, &h.session, samsungProtocol, device, func(ctx context.Context, d DiscoveredDevice) error {
		_, err := do(ctx, h.env.client, request{
			op:     "device info",
			method: http.MethodGet,
			url:    fmt.Sprintf("http://%s/api/v2/", d.Addr()),
		})
		return err
	})
}

func (h *SamsungHandler) SendKey(ctx context.Context, button string) bool {
	return sendWith(ctx, &h.session, samsungProtocol, samsungKeys, button, h.sendKey)
}

func (h *SamsungHandler) sendKey(ctx context.Context, d DiscoveredDevice, key string) error {
	return h.route.send(
		func() error { return h.sendRemoteControl(ctx, d, key) },
		func() error { return h.sendKeyCode(ctx, d, key) },
	)
}

func (h *SamsungHandler) sendRemoteControl(ctx context.Context, d DiscoveredDevice, key string) error {
	body, err := json.Marshal(samsungRemoteCommand{
		Method: "ms.remote.control",
		Params: samsungRemoteParams{
			Cmd:          "Click",
			DataOfCmd:    key,
			Option:       "false",
			TypeOfRemote: "SendRemoteKey",
		},
	})
	if err != nil {
		return err
	}

	_, err = do(ctx, h.env.client, request{
		op:          "remote control",
		method:      http.MethodPost,
		url:         fmt.Sprintf("http://%s/api/v2/channels/samsung.remote.control", d.Addr()),
		body:        body,
		contentType: contentTypeJSON,
	})
	return err
}

func (h *SamsungHandler) sendKeyCode(ctx context.Context, d DiscoveredDevice, key string) error {
	action := `<u:SendKeyCode xmlns:u="urn:samsung.com:service:MultiScreenService:1">` + "\n" +
		"<KeyCode>" + xmlText(key) + "</KeyCode>\n" +
		"</u:SendKeyCode>"

	_, err := do(ctx, h.env.client, request{
		op:          "SendKeyCode",
		method:      http.MethodPost,
		url:         fmt.Sprintf("http://%s/MultiScreenService/control/SendKeyCode", d.withPort(h.legacyPort).Addr()),
		body:        soapEnvelope(action),
		contentType: contentTypeSOAP,
		header:      map[string]string{"SOAPAction": samsungSOAPAction},
	})
	return err
}

// deviceName reads the "name" field of /api/v2/.
func (h *SamsungHandler) deviceName(ctx context.Context, ip string, port int) (string, bool) {
	d := DiscoveredDevice{IPAddress: ip, Port: port}
	data, err := do(ctx, h.env.client, request{
		op:     "device info",
		method: http.MethodGet,
		url:    fmt.Sprintf("http://%s/api/v2/", d.Addr()),
	})
	if err != nil {
		return "", false
	}

	var info struct {
		Name   string `json:"name"`
		Device struct {
			Name string `json:"name"`
		} `json:"device"`
	}
	// A 200 with an unexpected body is still a Samsung API.
	_ = json.Unmarshal(data, &info)
	switch {
	case info.Name != "":
		return info.Name, true
	case info.Device.Name != "":
		return info.Device.Name, true
	default:
		return "Samsung TV", true
	}
}
