// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package protocol

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const (
	panasonicProtocol   = "Panasonic Viera"
	panasonicPort       = 55000
	panasonicSOAPAction = `"urn:panasonic-com:service:p00NetworkControl:1#X_SendKey"`
)

var panasonicKeys = NewCommandTable(map[string]string{
	"Power":        "NRC_POWER-ONOFF",
	"Volume_Up":    "NRC_VOLUP-ONOFF",
	"Volume_Down":  "NRC_VOLDOWN-ONOFF",
	"Channel_Up":   "NRC_CH_UP-ONOFF",
	"Channel_Down": "NRC_CH_DOWN-ONOFF",
	"Mute":         "NRC_MUTE-ONOFF",
	"Up":           "NRC_UP-ONOFF",
	"Down":         "NRC_DOWN-ONOFF",
	"Left":         "NRC_LEFT-ONOFF",
	"Right":        "NRC_RIGHT-ONOFF",
	"OK":           "NRC_ENTER-ONOFF",
	"Enter":        "NRC_ENTER-ONOFF",
	"Select":       "NRC_ENTER-ONOFF",
	"Back":         "NRC_RETURN-ONOFF",
	"Return":       "NRC_RETURN-ONOFF",
	"Exit":         "NRC_CANCEL-ONOFF",
	"Menu":         "NRC_MENU-ONOFF",
	"Home":         "NRC_HOME-ONOFF",
	"Source":       "NRC_CHG_INPUT-ONOFF",
	"Input":        "NRC_CHG_INPUT-ONOFF",
	"Info":         "NRC_INFO-ONOFF",
	"Guide":        "NRC_EPG-ONOFF",
	"Play":         "NRC_PLAY-ONOFF",
	"Pause":        "NRC_PAUSE-ONOFF",
	"Stop":         "NRC_STOP-ONOFF",
	"Rewind":       "NRC_REW-ONOFF",
	"Fast_Forward": "NRC_FF-ONOFF",
	"0":            "NRC_D0-ONOFF",
	"1":            "NRC_D1-ONOFF",
	"2":            "NRC_D2-ONOFF",
	"3":            "NRC_D3-ONOFF",
	"4":            "NRC_D4-ONOFF",
	"5":            "NRC_D5-ONOFF",
	"6":            "NRC_D6-ONOFF",
	"7":            "NRC_D7-ONOFF",
	"8":            "NRC_D8-ONOFF",
	"9":            "NRC_D9-ONOFF",
	"Red":          "NRC_RED-ONOFF",
	"Green":        "NRC_GREEN-ONOFF",
	"Yellow":       "NRC_YELLOW-ONOFF",
	"Blue":         "NRC_BLUE-ONOFF",
	"Netflix":      "NRC_NETFLIX-ONOFF",
	"APPS":         "NRC_APPS-ONOFF",
	"CC":           "NRC_STTL-ONOFF",
	"Aspect":       "NRC_DISP_MODE-ONOFF",
	"Sleep":        "NRC_OFFTIMER-ONOFF",
	"Surround":     "NRC_SURROUND-ONOFF",
	"VieraLink":    "NRC_VIERA_LINK-ONOFF",
	"submenu":      "NRC_SUBMENU-ONOFF",
})

// PanasonicHandler sends NRC key events to Viera TVs.
type PanasonicHandler struct {
	session
	env *env
}

func newPanasonicHandler(e *env) *PanasonicHandler {
	return &PanasonicHandler{env: e}
}

func (h *PanasonicHandler) ProtocolName() string { return panasonicProtocol }
func (h *PanasonicHandler) DefaultPort() int     { return panasonicPort }

func (h *PanasonicHandler) MapCommandName(button string) (string, bool) {
	return panasonicKeys.Lookup(button)
}

func (h *PanasonicHandler) Discover(ctx context.Context, timeout time.Duration) []DiscoveredDevice {
	return runDiscovery(ctx, h.env, timeout, discoveryPlan{
		protocol:    panasonicProtocol,
		brand:       "Panasonic",
		defaultName: "Panasonic TV",
		fingerprint: fingerprint{
			server:   []string{"panasonic", "viera"},
			location: []string{"panasonic"},
		},
		matchPort:  panasonicPort,
		probePorts: []int{panasonicPort},
	})
}

func (h *PanasonicHandler) Connect(ctx context.Context, device DiscoveredDevice) bool {
	return connectWith(ctx, &h.session, panasonicProtocol, device, reachable(h.env))
}

func (h *PanasonicHandler) SendKey(ctx context.Context, button string) bool {
	return sendWith(ctx, &h.session, panasonicProtocol, panasonicKeys, button, h.sendKey)
}

func (h *PanasonicHandler) sendKey(ctx context.Context, d DiscoveredDevice, code string) error {
	action := `<u:X_SendKey xmlns:u="urn:panasonic-com:service:p00NetworkControl:1">` + "\n" +
		"<X_KeyEvent>" + xmlText(code) + "</X_KeyEvent>\n" +
		"</u:X_SendKey>"

	_, err := do(ctx, h.env.client, request{
		op:          "X_SendKey",
		method:      http.MethodPost,
		url:         fmt.Sprintf("http://%s/nrc/control_0", d.Addr()),
		body:        soapEnvelope(action),
		contentType: contentTypeSOAP,
		header:      map[string]string{"SOAPACTION": panasonicSOAPAction},
	})
	return err
}
