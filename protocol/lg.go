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
	lgProtocol = "LG webOS"
	lgPort     = 3000
)

var lgKeys = NewCommandTable(map[string]string{
	"Power":        "KEY_POWER",
	"Volume_Up":    "volumeUp",
	"Volume_Down":  "volumeDown",
	"Channel_Up":   "channelUp",
	"Channel_Down": "channelDown",
	"Mute":         "KEY_MUTE",
	"Up":           "UP",
	"Down":         "DOWN",
	"Left":         "LEFT",
	"Right":        "RIGHT",
	"OK":           "ENTER",
	"Enter":        "ENTER",
	"Select":       "ENTER",
	"Back":         "BACK",
	"Return":       "BACK",
	"Exit":         "EXIT",
	"Menu":         "MENU",
	"Home":         "HOME",
	"Source":       "INPUT",
	"Input":        "INPUT",
	"Info":         "INFO",
	"Guide":        "GUIDE",
	"Play":         "PLAY",
	"Pause":        "PAUSE",
	"Stop":         "STOP",
	"Rewind":       "REWIND",
	"Fast_Forward": "FASTFORWARD",
	"0":            "0",
	"1":            "1",
	"2":            "2",
	"3":            "3",
	"4":            "4",
	"5":            "5",
	"6":            "6",
	"7":            "7",
	"8":            "8",
	"9":            "9",
	"Red":          "RED",
	"Green":        "GREEN",
	"Yellow":       "YELLOW",
	"Blue":         "BLUE",
	"Netflix":      "NETFLIX",
	"APPS":         "MYAPPS",
	"CC":           "CC",
	"Aspect":       "ASPECTRATIO",
	"Sleep":        "SLEEP",
})

// LGHandler sends ROAP HandleKeyInput commands to webOS TVs.
type LGHandler struct {
	session
	env *env
}

func newLGHandler(e *env) *LGHandler {
	return &LGHandler{env: e}
}

func (h *LGHandler) ProtocolName() string { return lgProtocol }
func (h *LGHandler) DefaultPort() int     { return lgPort }

func (h *LGHandler) MapCommandName(button string) (string, bool) {
	return lgKeys.Lookup(button)
}

func (h *LGHandler) Discover(ctx context.Context, timeout time.Duration) []DiscoveredDevice {
	return runDiscovery(ctx, h.env, timeout, discoveryPlan{
		protocol:    lgProtocol,
		brand:       "LG",
		defaultName: "LG TV",
		fingerprint: fingerprint{
			server:       []string{"lg", "webos"},
			location:     []string{"lg"},
			searchTarget: []string{"lge"},
		},
		matchPort:  lgPort,
		probePorts: []int{lgPort},
	})
}

// Connect only checks that the ROAP port accepts connections.
func (h *LGHandler) Connect(ctx context.Context, device DiscoveredDevice) bool {
	return connectWith(ctx, &h.session, lgProtocol, device, reachable(h.env))
}

func (h *LGHandler) SendKey(ctx context.Context, button string) bool {
	return sendWith(ctx, &h.session, lgProtocol, lgKeys, button, h.sendKey)
}

func (h *LGHandler) sendKey(ctx context.Context, d DiscoveredDevice, code string) error {
	body := `<?xml version="1.0" encoding="utf-8"?>` +
		"<command><name>HandleKeyInput</name><value>" + xmlText(code) + "</value></command>"

	_, err := do(ctx, h.env.client, request{
		op:          "HandleKeyInput",
		method:      http.MethodPost,
		url:         fmt.Sprintf("http://%s/roap/api/command", d.Addr()),
		body:        []byte(body),
		contentType: contentTypeAtom,
	})
	return err
}
