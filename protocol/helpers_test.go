// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package protocol

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/soothill/wifi-tv-remote/discovery"
)

// fakeProber returns canned search results and reports the listed
// ip:port pairs as open.
type fakeProber struct {
	mu        sync.Mutex
	responses []discovery.SSDPResponse
	open      map[string]bool
	probed    []string
	searches  int
}

func newFakeProber(responses ...discovery.SSDPResponse) *fakeProber {
	return &fakeProber{responses: responses, open: map[string]bool{}}
}

func (p *fakeProber) openPort(ip string, port int) *fakeProber {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open[net.JoinHostPort(ip, strconv.Itoa(port))] = true
	return p
}

func (p *fakeProber) Search(context.Context, time.Duration) []discovery.SSDPResponse {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.searches++
	return append([]discovery.SSDPResponse(nil), p.responses...)
}

func (p *fakeProber) ProbeTCPPort(_ context.Context, ip string, port int, _ time.Duration) bool {
	addr := net.JoinHostPort(ip, strconv.Itoa(port))
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probed = append(p.probed, addr)
	return p.open[addr]
}

func (p *fakeProber) probeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.probed)
}

// capturedRequest is one request received by a fakeTV.
type capturedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   string
}

// fakeTV is an HTTP server standing in for a television. Every path
// answers 200 unless a status is set for it.
type fakeTV struct {
	server *httptest.Server

	mu     sync.Mutex
	reqs   []capturedRequest
	status map[string]int
	body   map[string]string
	delay  time.Duration
}

func newFakeTV(t *testing.T) *fakeTV {
	return startFakeTV(t, false)
}

func newFakeTLSTV(t *testing.T) *fakeTV {
	return startFakeTV(t, true)
}

func startFakeTV(t *testing.T, useTLS bool) *fakeTV {
	t.Helper()
	tv := &fakeTV{status: map[string]int{}, body: map[string]string{}}
	if useTLS {
		tv.server = httptest.NewTLSServer(http.HandlerFunc(tv.serve))
	} else {
		tv.server = httptest.NewServer(http.HandlerFunc(tv.serve))
	}
	t.Cleanup(tv.server.Close)
	return tv
}

func (tv *fakeTV) serve(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)

	tv.mu.Lock()
	tv.reqs = append(tv.reqs, capturedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Body:   string(data),
	})
	status, ok := tv.status[r.URL.Path]
	body := tv.body[r.URL.Path]
	delay := tv.delay
	tv.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if !ok {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (tv *fakeTV) port() int {
	u, _ := url.Parse(tv.server.URL)
	port, _ := strconv.Atoi(u.Port())
	return port
}

func (tv *fakeTV) device(brand string) DiscoveredDevice {
	return DiscoveredDevice{
		Name:      brand + " test set",
		IPAddress: "127.0.0.1",
		Brand:     brand,
		Port:      tv.port(),
	}
}

func (tv *fakeTV) setStatus(path string, status int) {
	tv.mu.Lock()
	defer tv.mu.Unlock()
	tv.status[path] = status
}

func (tv *fakeTV) setBody(path, body string) {
	tv.mu.Lock()
	defer tv.mu.Unlock()
	tv.body[path] = body
}

func (tv *fakeTV) setDelay(d time.Duration) {
	tv.mu.Lock()
	defer tv.mu.Unlock()
	tv.delay = d
}

func (tv *fakeTV) requests() []capturedRequest {
	tv.mu.Lock()
	defer tv.mu.Unlock()
	return append([]capturedRequest(nil), tv.reqs...)
}

func (tv *fakeTV) requestsTo(path string) []capturedRequest {
	var out []capturedRequest
	for _, r := range tv.requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (tv *fakeTV) reset() {
	tv.mu.Lock()
	defer tv.mu.Unlock()
	tv.reqs = nil
}

// closedPort returns a loopback port with nothing listening on it.
func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func testRegistry(prober discovery.Prober) *Registry {
	return NewRegistry(prober, Options{
		HTTPTimeout:    time.Second,
		ProbeTimeout:   100 * time.Millisecond,
		ConnectTimeout: 200 * time.Millisecond,
	})
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
