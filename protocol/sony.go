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
	sonyProtocol   = "Sony Bravia IRCC"
	sonyPort       = 80
	sonySOAPAction = `"urn:schemas-sony-com:service:IRCC:1#X_SendIRCC"`
)

var sonyKeys = NewCommandTable(map[string]string{
	"Power":        "AAAAAQAAAAEAAAAVAw==",
	"Volume_Up":    "AAAAAQAAAAEAAAASAw==",
	"Volume_Down":  "AAAAAQAAAAEAAAATAw==",
	"Channel_Up":   "AAAAAQAAAAEAAAAQAw==",
	"Channel_Down": "AAAAAQAAAAEAAAARAw==",
	"Mute":         "AAAAAQAAAAEAAAAUAw==",
	"Up":           "AAAAAQAAAAEAAAB0Aw==",
	"Down":         "AAAAAQAAAAEAAAB1Aw==",
	"Left":         "AAAAAQAAAAEAAAB2Aw==",
	"Right":        "AAAAAQAAAAEAAAB3Aw==",
	"OK":           "AAAAAQAAAAEAAABlAw==",
	"Enter":        "AAAAAQAAAAEAAABlAw==",
	"Select":       "AAAAAQAAAAEAAABlAw==",
	"Back":         "AAAAAgAAAJcAAAAjAw==",
	"Return":       "AAAAAgAAAJcAAAAjAw==",
	"Exit":         "AAAAAQAAAAEAAABjAw==",
	"Menu":         "AAAAAgAAAJcAAAA3Aw==",
	"Home":         "AAAAAQAAAAEAAABgAw==",
	"Source":       "AAAAAQAAAAEAAAAlAw==",
	"Input":        "AAAAAQAAAAEAAAAlAw==",
	"Info":         "AAAAAQAAAAEAAAA6Aw==",
	"Guide":        "AAAAAgAAAKQAAABbAw==",
	"Play":         "AAAAAgAAAJcAAAAaAw==",
	"Pause":        "AAAAAgAAAJcAAAAZAw==",
	"Stop":         "AAAAAgAAAJcAAAAYAw==",
	"Rewind":       "AAAAAgAAAJcAAAAbAw==",
	"Fast_Forward": "AAAAAgAAAJcAAAAcAw==",
	"0":            "AAAAAQAAAAEAAAAJAw==",
	"1":            "AAAAAQAAAAEAAAAAAw==",
	"2":            "AAAAAQAAAAEAAAABAw==",
	"3":            "AAAAAQAAAAEAAAACAw==",
	"4":            "AAAAAQAAAAEAAAADAw==",
	"5":            "AAAAAQAAAAEAAAAEAw==",
	"6":            "AAAAAQAAAAEAAAAFAw==",
	"7":            "AAAAAQAAAAEAAAAGAw==",
	"8":            "AAAAAQAAAAEAAAAHAw==",
	"9":            "AAAAAQAAAAEAAAAIAw==",
	"Red":          "AAAAAgAAAJcAAAAlAw==",
	"Green":        "AAAAAgAAAJcAAAAmAw==",
	"Yellow":       "AAAAAgAAAJcAAAAnAw==",
	"Blue":         "AAAAAgAAAJcAAAAkAw==",
	"Netflix":      "AAAAAgAAABoAAAB8Aw==",
	"CC":           "AAAAAgAAAJcAAAAoAw==",
	"Sleep":        "AAAAAgAAAJcAAAA2Aw==",
	"Aspect":       "AAAAAQAAAAEAAABQAw==",
})

type sonyRPC struct {
	Method  string        `json:"method"`
	ID      int           `json:"id"`
	Params  []interface{} `json:"params"`
	Version string        `json:"version"`
}

var sonySystemInfoRequest = sonyRPC{
	Method:  "getSystemInformation",
	ID:      33,
	Params:  []interface{}{},
	Version: "1.0",
}

// SonyHandler sends IRCC codes to Bravia TVs. The TV must have remote
// start enabled with a pre-shared key.
type SonyHandler struct {
	session
	env *env
	psk string
}

func newSonyHandler(e *env) *SonyHandler {
	return &SonyHandler{env: e, psk: e.opts.SonyPSK}
}

func (h *SonyHandler) ProtocolName() string { return sonyProtocol }
func (h *SonyHandler) DefaultPort() int     { return sonyPort }

func (h *SonyHandler) MapCommandName(button string) (string, bool) {
	return sonyKeys.Lookup(button)
}

// Discover matches Sony and BRAVIA headers. Port 80 is open on most
// devices, so probed hosts must also answer getSystemInformation.
func (h *SonyHandler) Discover(ctx context.Context, timeout time.Duration) []DiscoveredDevice {
	return runDiscovery(ctx, h.env, timeout, discoveryPlan{
		protocol:    sonyProtocol,
		brand:       "Sony",
		defaultName: "Sony TV",
		fingerprint: fingerprint{
			server:   []string{"sony", "bravia"},
			location: []string{"sony"},
		},
		matchPort:  sonyPort,
		probePorts: []int{sonyPort},
		identify:   h.systemName,
		strict:     true,
	})
}

func (h *SonyHandler) Connect(ctx context.Context, device DiscoveredDevice) bool {
	return connectWith(ctx, &h.session, sonyProtocol, device, func(ctx context.Context, d DiscoveredDevice) error {
		_, err := h.systemInformation(ctx, d)
		return err
	})
}

func (h *SonyHandler) SendKey(ctx context.Context, button string) bool {
	return sendWith(ctx, &h.session, sonyProtocol, sonyKeys, button, h.sendIRCC)
}

func (h *SonyHandler) sendIRCC(ctx context.Context, d DiscoveredDevice, code string) error {
	action := `<u:X_SendIRCC xmlns:u="urn:schemas-sony-com:service:IRCC:1">` + "\n" +
		"<IRCCCode>" + xmlText(code) + "</IRCCCode>\n" +
		"</u:X_SendIRCC>"

	_, err := do(ctx, h.env.client, request{
		op:          "X_SendIRCC",
		method:      http.MethodPost,
		url:         fmt.Sprintf("http://%s/sony/IRCC", d.Addr()),
		body:        soapEnvelope(action),
		contentType: contentTypeSOAP,
		header: map[string]string{
			"SOAPACTION": sonySOAPAction,
			"X-Auth-PSK": h.psk,
		},
	})
	return err
}

func (h *SonyHandler) systemInformation(ctx context.Context, d DiscoveredDevice) ([]byte, error) {
	body, err := json.Marshal(sonySystemInfoRequest)
	if err != nil {
		return nil, err
	}
	return do(ctx, h.env.client, request{
		op:          "getSystemInformation",
		method:      http.MethodPost,
		url:         fmt.Sprintf("http://%s/sony/system", d.Addr()),
		body:        body,
		contentType: contentTypeJSON,
		header:      map[string]string{"X-Auth-PSK": h.psk},
	})
}

// systemName confirms a Bravia and returns "Sony <model>" when known.
func (h *SonyHandler) systemName(ctx context.Context, ip string, port int) (string, bool) {
	data, err := h.systemInformation(ctx, DiscoveredDevice{IPAddress: ip, Port: port})
	if err != nil {
		return "", false
	}

	var reply struct {
		Result []struct {
			Model string `json:"model"`
		} `json:"result"`
	}
	if json.Unmarshal(data, &reply) == nil && len(reply.Result) > 0 && reply.Result[0].Model != "" {
		return "Sony " + reply.Result[0].Model, true
	}
	return "Sony TV", true
}
