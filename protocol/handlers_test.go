// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package protocol

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/suite"
)

// WireFormatSuite checks the exact requests each brand puts on the wire
// against a fake TV.
type WireFormatSuite struct {
	suite.Suite
	ctx    context.Context
	tv     *fakeTV
	prober *fakeProber
	reg    *Registry
}

func TestWireFormatSuite(t *testing.T) {
	suite.Run(t, new(WireFormatSuite))
}

func (s *WireFormatSuite) SetupTest() {
	s.ctx = context.Background()
	s.tv = newFakeTV(s.T())
	s.prober = newFakeProber().openPort("127.0.0.1", s.tv.port())
	s.reg = testRegistry(s.prober)
}

func (s *WireFormatSuite) connect(h Handler, brand string) {
	s.Require().True(h.Connect(s.ctx, s.tv.device(brand)))
	s.Require().True(h.IsConnected())
	s.tv.reset()
}

func (s *WireFormatSuite) onlyRequest() capturedRequest {
	reqs := s.tv.requests()
	s.Require().Len(reqs, 1)
	return reqs[0]
}

func (s *WireFormatSuite) TestRokuKeypress() {
	h := s.reg.Resolve("roku")
	code, ok := h.MapCommandName("OK")
	s.Require().True(ok)
	s.Equal("Select", code)

	s.connect(h, "Roku")
	s.True(h.SendKey(s.ctx, "OK"))

	req := s.onlyRequest()
	s.Equal(http.MethodPost, req.Method)
	s.Equal("/keypress/Select", req.Path)
	s.Empty(req.Body)
}

func (s *WireFormatSuite) TestRokuConnectUsesDeviceInfo() {
	h := s.reg.Resolve("roku")
	s.Require().True(h.Connect(s.ctx, s.tv.device("Roku")))

	req := s.onlyRequest()
	s.Equal(http.MethodGet, req.Method)
	s.Equal("/query/device-info", req.Path)
}

func (s *WireFormatSuite) TestRokuLaunch() {
	h := s.reg.Resolve("roku")
	s.connect(h, "Roku")
	s.True(h.SendKey(s.ctx, "Netflix"))
	s.Equal("/launch/12", s.onlyRequest().Path)
}

func (s *WireFormatSuite) TestRokuNon2xxFails() {
	h := s.reg.Resolve("roku")
	s.connect(h, "Roku")
	s.tv.setStatus("/keypress/VolumeUp", http.StatusServiceUnavailable)
	s.False(h.SendKey(s.ctx, "Volume_Up"))
	s.True(h.IsConnected(), "a failed key press does not drop the connection")
}

func (s *WireFormatSuite) TestSamsungRemoteControl() {
	h := s.reg.Resolve("samsung")
	s.Require().True(h.Connect(s.ctx, s.tv.device("Samsung")))
	s.Equal("/api/v2/", s.onlyRequest().Path)
	s.tv.reset()

	s.True(h.SendKey(s.ctx, "Volume_Up"))

	req := s.onlyRequest()
	s.Equal(http.MethodPost, req.Method)
	s.Equal("/api/v2/channels/samsung.remote.control", req.Path)
	s.Equal("application/json", req.Header.Get("Content-Type"))

	var cmd samsungRemoteCommand
	s.Require().NoError(json.Unmarshal([]byte(req.Body), &cmd))
	s.Equal("ms.remote.control", cmd.Method)
	s.Equal("Click", cmd.Params.Cmd)
	s.Equal("KEY_VOLUP", cmd.Params.DataOfCmd)
	s.Equal("false", cmd.Params.Option)
	s.Equal("SendRemoteKey", cmd.Params.TypeOfRemote)
}

func (s *WireFormatSuite) TestSamsungLegacyFallback() {
	legacy := newFakeTV(s.T())
	h := s.reg.Resolve("samsung").(*SamsungHandler)
	h.legacyPort = legacy.port()
	s.connect(h, "Samsung")

	s.tv.setStatus("/api/v2/channels/samsung.remote.control", http.StatusInternalServerError)
	s.True(h.SendKey(s.ctx, "Mute"))

	reqs := legacy.requests()
	s.Require().Len(reqs, 1)
	s.Equal("/MultiScreenService/control/SendKeyCode", reqs[0].Path)
	s.Equal(`"urn:samsung.com:service:MultiScreenService:1#SendKeyCode"`, reqs[0].Header.Get("SOAPAction"))
	s.Equal("text/xml; charset=utf-8", reqs[0].Header.Get("Content-Type"))
	s.Contains(reqs[0].Body, "<KeyCode>KEY_MUTE</KeyCode>")
	s.Contains(reqs[0].Body, `<u:SendKeyCode xmlns:u="urn:samsung.com:service:MultiScreenService:1">`)
}

func (s *WireFormatSuite) TestSamsungBreakerSkipsFailingPrimary() {
	legacy := newFakeTV(s.T())
	h := s.reg.Resolve("samsung").(*SamsungHandler)
	h.legacyPort = legacy.port()
	s.connect(h, "Samsung")

	const channel = "/api/v2/channels/samsung.remote.control"
	s.tv.setStatus(channel, http.StatusInternalServerError)

	for i := 0; i < 3; i++ {
		s.True(h.SendKey(s.ctx, "Power"))
	}

	s.Len(s.tv.requestsTo(channel), 2, "primary is skipped once the breaker opens")
	s.Len(legacy.requests(), 3)
	s.Equal(gobreaker.StateOpen, h.route.state())
}

func (s *WireFormatSuite) TestSamsungBothTransportsFail() {
	h := s.reg.Resolve("samsung").(*SamsungHandler)
	h.legacyPort = closedPort(s.T())
	s.connect(h, "Samsung")
	s.tv.setStatus("/api/v2/channels/samsung.remote.control", http.StatusForbidden)

	s.False(h.SendKey(s.ctx, "Power"))
}

func (s *WireFormatSuite) TestLGHandleKeyInput() {
	h := s.reg.Resolve("lg")
	s.connect(h, "LG")
	s.True(h.SendKey(s.ctx, "Volume_Up"))

	req := s.onlyRequest()
	s.Equal(http.MethodPost, req.Method)
	s.Equal("/roap/api/command", req.Path)
	s.Equal("application/atom+xml", req.Header.Get("Content-Type"))
	s.Equal(`<?xml version="1.0" encoding="utf-8"?><command><name>HandleKeyInput</name><value>volumeUp</value></command>`, req.Body)
}

func (s *WireFormatSuite) TestLGConnectNeedsReachablePort() {
	h := testRegistry(newFakeProber()).Resolve("lg")
	s.False(h.Connect(s.ctx, s.tv.device("LG")))
	s.False(h.IsConnected())
	s.Empty(s.tv.requests(), "LG connect is a TCP probe only")
}

func (s *WireFormatSuite) TestSonyIRCC() {
	h := s.reg.Resolve("sony")
	s.Require().True(h.Connect(s.ctx, s.tv.device("Sony")))

	handshake := s.onlyRequest()
	s.Equal("/sony/system", handshake.Path)
	s.Equal("0000", handshake.Header.Get("X-Auth-PSK"))
	s.JSONEq(`{"method":"getSystemInformation","id":33,"params":[],"version":"1.0"}`, handshake.Body)
	s.tv.reset()

	s.True(h.SendKey(s.ctx, "Power"))

	req := s.onlyRequest()
	s.Equal("/sony/IRCC", req.Path)
	s.Equal(`"urn:schemas-sony-com:service:IRCC:1#X_SendIRCC"`, req.Header.Get("SOAPACTION"))
	s.Equal("0000", req.Header.Get("X-Auth-PSK"))
	s.Contains(req.Body, `<u:X_SendIRCC xmlns:u="urn:schemas-sony-com:service:IRCC:1">`)
	s.Contains(req.Body, "<IRCCCode>AAAAAQAAAAEAAAAVAw==</IRCCCode>")
	s.Contains(req.Body, `xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"`)
}

func (s *WireFormatSuite) TestSonyCustomPSK() {
	reg := NewRegistry(s.prober, Options{HTTPTimeout: time.Second, SonyPSK: "8642"})
	h := reg.Resolve("sony")
	s.connect(h, "Sony")
	s.True(h.SendKey(s.ctx, "Mute"))
	s.Equal("8642", s.onlyRequest().Header.Get("X-Auth-PSK"))
}

func (s *WireFormatSuite) TestSonyRejectedPSK() {
	s.tv.setStatus("/sony/system", http.StatusForbidden)
	h := s.reg.Resolve("sony")
	s.False(h.Connect(s.ctx, s.tv.device("Sony")))
	s.False(h.IsConnected())
}

func (s *WireFormatSuite) TestPhilipsInputKey() {
	h := s.reg.Resolve("philips")
	s.Require().True(h.Connect(s.ctx, s.tv.device("Philips")))
	s.Equal("/6/system", s.onlyRequest().Path)
	s.tv.reset()

	s.True(h.SendKey(s.ctx, "Volume_Up"))

	req := s.onlyRequest()
	s.Equal(http.MethodPost, req.Method)
	s.Equal("/6/input/key", req.Path)
	s.JSONEq(`{"key":"VolumeUp"}`, req.Body)
}

func (s *WireFormatSuite) TestPanasonicSendKey() {
	h := s.reg.Resolve("panasonic")
	s.connect(h, "Panasonic")
	s.True(h.SendKey(s.ctx, "Volume_Up"))

	req := s.onlyRequest()
	s.Equal("/nrc/control_0", req.Path)
	s.Equal(`"urn:panasonic-com:service:p00NetworkControl:1#X_SendKey"`, req.Header.Get("SOAPACTION"))
	s.Contains(req.Body, `<u:X_SendKey xmlns:u="urn:panasonic-com:service:p00NetworkControl:1">`)
	s.Contains(req.Body, "<X_KeyEvent>NRC_VOLUP-ONOFF</X_KeyEvent>")
}

func (s *WireFormatSuite) TestVizioHTTPS() {
	tlsTV := newFakeTLSTV(s.T())
	s.prober.openPort("127.0.0.1", tlsTV.port())

	h := s.reg.Resolve("vizio")
	s.Require().True(h.Connect(s.ctx, tlsTV.device("Vizio")))
	s.True(h.SendKey(s.ctx, "Volume_Up"))

	reqs := tlsTV.requests()
	s.Require().Len(reqs, 1)
	s.Equal(http.MethodPut, reqs[0].Method)
	s.Equal("/key_command/", reqs[0].Path)
	s.JSONEq(`{"KEYLIST":[{"CODESET":5,"CODE":1,"ACTION":"KEYPRESS"}]}`, reqs[0].Body)
}

func (s *WireFormatSuite) TestVizioFallsBackToHTTP() {
	h := s.reg.Resolve("vizio").(*VizioHandler)
	h.fallbackPort = s.tv.port()

	down := closedPort(s.T())
	s.prober.openPort("127.0.0.1", down)
	s.Require().True(h.Connect(s.ctx, DiscoveredDevice{IPAddress: "127.0.0.1", Port: down, Brand: "Vizio"}))

	s.True(h.SendKey(s.ctx, "Power"))

	req := s.onlyRequest()
	s.Equal(http.MethodPut, req.Method)
	s.Equal("/key_command/", req.Path)
	s.JSONEq(`{"KEYLIST":[{"CODESET":1,"CODE":0,"ACTION":"KEYPRESS"}]}`, req.Body)
}

func (s *WireFormatSuite) TestVizioStatusErrorIsNotRetried() {
	tlsTV := newFakeTLSTV(s.T())
	tlsTV.setStatus("/key_command/", http.StatusUnauthorized)
	s.prober.openPort("127.0.0.1", tlsTV.port())

	h := s.reg.Resolve("vizio").(*VizioHandler)
	h.fallbackPort = s.tv.port()
	s.Require().True(h.Connect(s.ctx, tlsTV.device("Vizio")))

	s.False(h.SendKey(s.ctx, "Power"))
	s.Empty(s.tv.requests(), "HTTP fallback only follows transport failures")
}

func (s *WireFormatSuite) TestVizioFallbackPortDeviceUsesHTTP() {
	h := s.reg.Resolve("vizio").(*VizioHandler)
	h.fallbackPort = s.tv.port()
	s.connect(h, "Vizio")

	s.True(h.SendKey(s.ctx, "Mute"))
	s.Equal("/key_command/", s.onlyRequest().Path)
}

func (s *WireFormatSuite) TestVizioAuthToken() {
	reg := NewRegistry(s.prober, Options{HTTPTimeout: time.Second, VizioAuthToken: "Zm9v"})
	h := reg.Resolve("vizio").(*VizioHandler)
	h.fallbackPort = s.tv.port()
	s.connect(h, "Vizio")

	s.True(h.SendKey(s.ctx, "Mute"))
	s.Equal("Zm9v", s.onlyRequest().Header.Get("AUTH"))
}

func (s *WireFormatSuite) TestUnmappedButtonNeverTouchesNetwork() {
	// Lets the generic handler connect in its degraded, delegate-free mode.
	s.prober.openPort("127.0.0.1", 80)

	for _, brand := range append(s.reg.Brands(), "generic") {
		h := s.reg.Resolve(brand)
		s.connect(h, brand)

		s.False(h.SendKey(s.ctx, "Definitely_Not_A_Button"), brand)
		s.Empty(s.tv.requests(), brand)
		h.Disconnect()
	}
}

func (s *WireFormatSuite) TestSendKeyWhenNotConnected() {
	for _, brand := range append(s.reg.Brands(), "generic") {
		h := s.reg.Resolve(brand)
		s.False(h.SendKey(s.ctx, "Power"), brand)
	}
	s.Empty(s.tv.requests())
}

func (s *WireFormatSuite) TestDisconnectIsIdempotent() {
	h := s.reg.Resolve("philips")
	s.connect(h, "Philips")

	h.Disconnect()
	h.Disconnect()
	s.False(h.IsConnected())
	s.False(h.SendKey(s.ctx, "Power"))
	s.Empty(s.tv.requests())
}

func (s *WireFormatSuite) TestConnectRejectsInvalidDevice() {
	h := s.reg.Resolve("roku")
	s.False(h.Connect(s.ctx, DiscoveredDevice{IPAddress: "not-an-ip", Port: 8060}))
	s.False(h.IsConnected())
	s.Empty(s.tv.requests())
}

func (s *WireFormatSuite) TestDisconnectDuringSend() {
	h := s.reg.Resolve("roku")
	s.connect(h, "Roku")
	s.tv.setDelay(100 * time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.SendKey(s.ctx, "Up")
		}()
	}
	time.Sleep(20 * time.Millisecond)
	h.Disconnect()
	wg.Wait()

	s.False(h.IsConnected())
	s.False(h.SendKey(s.ctx, "Up"))
}

func (s *WireFormatSuite) TestSendKeyHonoursContext() {
	h := s.reg.Resolve("roku")
	s.connect(h, "Roku")
	s.tv.setDelay(500 * time.Millisecond)

	ctx, cancel := context.WithTimeout(s.ctx, 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	s.False(h.SendKey(ctx, "Up"))
	s.Less(time.Since(start), 400*time.Millisecond)
}
