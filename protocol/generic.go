// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package protocol

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/soothill/wifi-tv-remote/discovery"
	apperrors "github.com/soothill/wifi-tv-remote/pkg/errors"
	"github.com/soothill/wifi-tv-remote/pkg/logger"
	"github.com/soothill/wifi-tv-remote/pkg/metrics"
)

const (
	genericProtocol   = "Generic UPnP"
	genericPort       = 80
	genericSOAPAction = `"urn:schemas-upnp-org:service:RenderingControl:1#SendKey"`

	unknownBrand = "Unknown"
)

var genericKeys = NewCommandTable(map[string]string{
	"Power":        "Power",
	"Volume_Up":    "VolumeUp",
	"Volume_Down":  "VolumeDown",
	"Channel_Up":   "ChannelUp",
	"Channel_Down": "ChannelDown",
	"Mute":         "Mute",
	"Up":           "Up",
	"Down":         "Down",
	"Left":         "Left",
	"Right":        "Right",
	"OK":           "Enter",
	"Enter":        "Enter",
	"Back":         "Back",
	"Return":       "Return",
	"Home":         "Home",
	"Menu":         "Menu",
	"Source":       "Source",
	"Input":        "Input",
	"Play":         "Play",
	"Pause":        "Pause",
	"Stop":         "Stop",
	"Rewind":       "Rewind",
	"Fast_Forward": "FastForward",
	"Info":         "Info",
	"Guide":        "Guide",
})

// Known vendor control ports, in the order they are tried on connect.
var defaultKnownPorts = []int{8001, 8060, 3000, 1925, 55000, 9000, 7345, 80, 8080}

// vendorKeywords classifies SSDP headers. Order matters: the first brand
// with a matching keyword wins.
var vendorKeywords = []struct {
	brand    string
	keywords []string
}{
	{"Samsung", []string{"samsung"}},
	{"LG", []string{"lg", "webos"}},
	{"Sony", []string{"sony", "bravia"}},
	{"Roku", []string{"roku"}},
	{"Philips", []string{"philips"}},
	{"Panasonic", []string{"panasonic", "viera"}},
	{"Vizio", []string{"vizio", "smartcast"}},
	{"Toshiba", []string{"toshiba"}},
	{"Sharp", []string{"sharp"}},
	{"Hisense", []string{"hisense"}},
	{"TCL", []string{"tcl"}},
	{"Xiaomi", []string{"xiaomi"}},
}

// GenericHandler serves brands without a dedicated protocol. On connect it
// sniffs known vendor ports and, when a vendor handshake succeeds, forwards
// everything to that vendor's handler. Otherwise it falls back to UPnP
// RenderingControl SendKey.
type GenericHandler struct {
	session
	env *env

	knownPorts   []int
	portHandlers map[int]func() Handler

	delegateMu sync.Mutex
	delegate   Handler
}

func newGenericHandler(e *env) *GenericHandler {
	return &GenericHandler{
		env:        e,
		knownPorts: defaultKnownPorts,
		portHandlers: map[int]func() Handler{
			8001:  func() Handler { return newSamsungHandler(e) },
			8002:  func() Handler { return newSamsungHandler(e) },
			3000:  func() Handler { return newLGHandler(e) },
			3001:  func() Handler { return newLGHandler(e) },
			8060:  func() Handler { return newRokuHandler(e, "Roku") },
			1925:  func() Handler { return newPhilipsHandler(e) },
			1926:  func() Handler { return newPhilipsHandler(e) },
			55000: func() Handler { return newPanasonicHandler(e) },
			7345:  func() Handler { return newVizioHandler(e) },
			9000:  func() Handler { return newVizioHandler(e) },
		},
	}
}

func (h *GenericHandler) ProtocolName() string { return genericProtocol }
func (h *GenericHandler) DefaultPort() int     { return genericPort }

// MapCommandName uses the detected vendor's table once a delegate exists.
func (h *GenericHandler) MapCommandName(button string) (string, bool) {
	if d := h.currentDelegate(); d != nil {
		return d.MapCommandName(button)
	}
	return genericKeys.Lookup(button)
}

// ActiveProtocolName names the protocol actually in use: the delegate's
// when one was detected, else the generic one.
func (h *GenericHandler) ActiveProtocolName() string {
	if d := h.currentDelegate(); d != nil {
		return d.ProtocolName()
	}
	return genericProtocol
}

// Discover returns every SSDP responder, classified by vendor keywords.
func (h *GenericHandler) Discover(ctx context.Context, timeout time.Duration) []DiscoveredDevice {
	start := time.Now()
	responses := h.env.prober.Search(ctx, timeout)

	devices := make([]DiscoveredDevice, 0, len(responses))
	for _, r := range responses {
		brand, ok := ClassifyBrand(r)
		name := brand + " TV"
		if !ok {
			name = fmt.Sprintf("Smart TV (%s)", r.IP)
		}
		devices = append(devices, DiscoveredDevice{
			Name:        name,
			IPAddress:   r.IP,
			Brand:       brand,
			Port:        locationPort(r.Location),
			ServiceType: r.SearchTarget,
			UniqueID:    r.USN,
		})
	}
	devices = dedupeDevices(devices)

	metrics.DiscoveryDuration.WithLabelValues(genericProtocol).Observe(time.Since(start).Seconds())
	metrics.DevicesDiscovered.WithLabelValues(genericProtocol).Set(float64(len(devices)))
	logger.Info().
		Str("protocol", genericProtocol).
		Int("devices", len(devices)).
		Msg("Discovery complete")

	return devices
}

// Connect probes the known ports concurrently, then walks the open ones in
// list order looking for a vendor handler whose handshake succeeds. When
// none does but some port is open, the handler is connected without a
// delegate.
func (h *GenericHandler) Connect(ctx context.Context, device DiscoveredDevice) bool {
	h.dropDelegate()

	// With a delegate the stored device carries the port that answered.
	target := device
	ok := connectWith(ctx, &h.session, genericProtocol, device, func(ctx context.Context, d DiscoveredDevice) error {
		open := h.openPorts(ctx, d.IPAddress)
		if len(open) == 0 {
			return apperrors.NewNetworkError("port scan", d.IPAddress, errUnreachable)
		}

		for _, port := range open {
			factory, ok := h.portHandlers[port]
			if !ok {
				continue
			}
			inner := factory()
			if inner.Connect(ctx, d.withPort(port)) {
				h.setDelegate(inner)
				target = d.withPort(port)
				logger.Info().
					Str("ip", d.IPAddress).
					Int("port", port).
					Str("delegate", inner.ProtocolName()).
					Msg("Detected vendor protocol")
				return nil
			}
		}

		logger.Info().
			Str("ip", d.IPAddress).
			Ints("open_ports", open).
			Msg("No vendor handshake succeeded, using UPnP")
		return nil
	})
	if ok && target.Port != device.Port {
		h.session.store(target)
	}
	return ok
}

// openPorts returns the known ports that accept TCP, in list order.
func (h *GenericHandler) openPorts(ctx context.Context, ip string) []int {
	answered := make([]bool, len(h.knownPorts))
	var wg sync.WaitGroup
	for i, port := range h.knownPorts {
		wg.Add(1)
		go func(i, port int) {
			defer wg.Done()
			answered[i] = h.env.prober.ProbeTCPPort(ctx, ip, port, h.env.opts.ProbeTimeout)
		}(i, port)
	}
	wg.Wait()

	var open []int
	for i, ok := range answered {
		if ok {
			open = append(open, h.knownPorts[i])
		}
	}
	return open
}

// SendKey forwards to the delegate, or sends a UPnP SendKey.
func (h *GenericHandler) SendKey(ctx context.Context, button string) bool {
	if d := h.currentDelegate(); d != nil {
		return d.SendKey(ctx, button)
	}
	return sendWith(ctx, &h.session, genericProtocol, genericKeys, button, h.sendKey)
}

func (h *GenericHandler) sendKey(ctx context.Context, d DiscoveredDevice, key string) error {
	action := `<u:SendKey xmlns:u="urn:schemas-upnp-org:service:RenderingControl:1">` + "\n" +
		"<InstanceID>0</InstanceID>\n" +
		"<KeyName>" + xmlText(key) + "</KeyName>\n" +
		"</u:SendKey>"

	_, err := do(ctx, h.env.client, request{
		op:          "RenderingControl SendKey",
		method:      http.MethodPost,
		url:         fmt.Sprintf("http://%s/upnp/control/RenderingControl1", d.Addr()),
		body:        soapEnvelope(action),
		contentType: contentTypeSOAP,
		header:      map[string]string{"SOAPAction": genericSOAPAction},
	})
	return err
}

// IsConnected reports the delegate's state when there is one.
func (h *GenericHandler) IsConnected() bool {
	if d := h.currentDelegate(); d != nil {
		return d.IsConnected()
	}
	return h.session.IsConnected()
}

// Disconnect tears down the delegate too.
func (h *GenericHandler) Disconnect() {
	h.dropDelegate()
	h.session.Disconnect()
}

func (h *GenericHandler) currentDelegate() Handler {
	h.delegateMu.Lock()
	defer h.delegateMu.Unlock()
	return h.delegate
}

func (h *GenericHandler) setDelegate(d Handler) {
	h.delegateMu.Lock()
	defer h.delegateMu.Unlock()
	h.delegate = d
}

func (h *GenericHandler) dropDelegate() {
	h.delegateMu.Lock()
	d := h.delegate
	h.delegate = nil
	h.delegateMu.Unlock()

	if d != nil {
		d.Disconnect()
	}
}

// ClassifyBrand matches vendor keywords in the server and location headers.
// Unmatched responses yield "Unknown" and false.
func ClassifyBrand(r discovery.SSDPResponse) (string, bool) {
	haystack := strings.ToLower(r.Server + " " + r.Location)
	for _, v := range vendorKeywords {
		for _, kw := range v.keywords {
			if strings.Contains(haystack, kw) {
				return v.brand, true
			}
		}
	}
	return unknownBrand, false
}

// locationPort extracts the port of a LOCATION URL, defaulting to 80.
func locationPort(location string) int {
	if location == "" {
		return genericPort
	}
	u, err := url.Parse(location)
	if err != nil {
		return genericPort
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil || port < 1 || port > 65535 {
		return genericPort
	}
	return port
}
