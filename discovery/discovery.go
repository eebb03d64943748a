// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package discovery provides low-level network probing for smart TVs on the
// local network.
//
// It knows nothing about TV protocols. It finds hosts that answer SSDP
// M-SEARCH requests (and, optionally, mDNS browses), and it checks whether a
// TCP port on a host accepts connections. Brand detection and control live in
// the protocol package.
//
// # SSDP
//
// A search sends one M-SEARCH datagram per search target to the standard
// multicast group 239.255.255.250:1900 and collects unicast replies until the
// deadline. All search targets run concurrently under one shared deadline, so
// a full search takes roughly one timeout window regardless of how many
// targets are configured. Replies are parsed into SSDPResponse values and
// deduplicated by source IP.
//
// # mDNS
//
// Many TVs answer mDNS but ignore SSDP. When enabled, Search also browses the
// configured DNS-SD service types with zeroconf and converts each entry into
// an SSDPResponse whose Server field carries the manufacturer and model TXT
// records, so brand fingerprints apply to both sources alike.
//
// # Example Usage
//
//	probe := discovery.NewNetworkProbe(discovery.Options{MDNSEnabled: true})
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//
//	for _, r := range probe.Search(ctx, 3*time.Second) {
//	    fmt.Printf("%s  %s\n", r.IP, r.Server)
//	}
package discovery

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/soothill/wifi-tv-remote/pkg/errors"
	"github.com/soothill/wifi-tv-remote/pkg/logger"
	"github.com/soothill/wifi-tv-remote/pkg/metrics"
)

// Default search targets sent by Search.
var DefaultSearchTargets = []string{
	"ssdp:all",
	"urn:schemas-upnp-org:device:MediaRenderer:1",
	"urn:dial-multiscreen-org:service:dial:1",
}

// Default DNS-SD services browsed when mDNS is enabled.
var DefaultMDNSServices = []string{
	"_googlecast._tcp",
	"_airplay._tcp",
}

// SSDPResponse is the parsed header block of one discovery reply.
type SSDPResponse struct {
	Location     string
	Server       string
	SearchTarget string
	USN          string
	IP           string
}

// Prober is the network capability the protocol handlers depend on.
type Prober interface {
	// Search runs a full discovery sweep bounded by timeout.
	Search(ctx context.Context, timeout time.Duration) []SSDPResponse

	// ProbeTCPPort reports whether ip:port accepts a TCP connection within timeout.
	ProbeTCPPort(ctx context.Context, ip string, port int, timeout time.Duration) bool
}

// Browser browses one DNS-SD service type.
type Browser interface {
	Browse(ctx context.Context, service string) ([]SSDPResponse, error)
}

// Options configures a NetworkProbe.
type Options struct {
	SearchTargets []string
	MDNSEnabled   bool
	MDNSServices  []string
	MDNSDomain    string
}

// NetworkProbe implements Prober over real sockets.
type NetworkProbe struct {
	searchTargets []string
	mdnsServices  []string
	browser       Browser

	// search performs one M-SEARCH cycle; replaced in tests.
	search func(ctx context.Context, target string, timeout time.Duration) ([]SSDPResponse, error)
}

// NewNetworkProbe creates a probe. Empty option lists fall back to the defaults.
func NewNetworkProbe(opts Options) *NetworkProbe {
	targets := opts.SearchTargets
	if len(targets) == 0 {
		targets = DefaultSearchTargets
	}

	p := &NetworkProbe{
		searchTargets: append([]string(nil), targets...),
		search:        MulticastSearch,
	}

	if opts.MDNSEnabled {
		services := opts.MDNSServices
		if len(services) == 0 {
			services = DefaultMDNSServices
		}
		p.mdnsServices = append([]string(nil), services...)
		p.browser = NewMDNSBrowser(opts.MDNSDomain)
	}

	return p
}

// Search runs every search target, and every mDNS service when enabled,
// concurrently under one shared deadline. A failing source is logged and
// skipped; the result is whatever the others collected, deduplicated by IP.
// SSDP replies take precedence over mDNS entries for the same IP.
func (p *NetworkProbe) Search(ctx context.Context, timeout time.Duration) []SSDPResponse {
	start := time.Now()
	searchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sources := len(p.searchTargets)
	if p.browser != nil {
		sources += len(p.mdnsServices)
	}

	// One slot per source keeps the merge order independent of goroutine scheduling.
	slots := make([][]SSDPResponse, sources)
	var wg sync.WaitGroup

	for i, target := range p.searchTargets {
		wg.Add(1)
		go func(slot int, target string) {
			defer wg.Done()
			found, err := p.search(searchCtx, target, timeout)
			if err != nil {
				logger.Warn().Err(apperrors.NewDiscoveryError("M-SEARCH "+target, err)).
					Msg("SSDP search failed")
			}
			metrics.SearchResponsesTotal.WithLabelValues("ssdp").Add(float64(len(found)))
			slots[slot] = found
		}(i, target)
	}

	if p.browser != nil {
		for i, service := range p.mdnsServices {
			wg.Add(1)
			go func(slot int, service string) {
				defer wg.Done()
				found, err := p.browser.Browse(searchCtx, service)
				if err != nil {
					logger.Warn().Err(apperrors.NewDiscoveryError("mDNS browse "+service, err)).
						Msg("mDNS browse failed")
				}
				metrics.SearchResponsesTotal.WithLabelValues("mdns").Add(float64(len(found)))
				slots[slot] = found
			}(len(p.searchTargets)+i, service)
		}
	}

	wg.Wait()

	var merged []SSDPResponse
	for _, found := range slots {
		merged = append(merged, found...)
	}
	unique := DedupeByIP(merged)

	logger.Debug().
		Int("responses", len(merged)).
		Int("hosts", len(unique)).
		Dur("elapsed", time.Since(start)).
		Msg("Discovery search complete")

	return unique
}

// ProbeTCPPort implements Prober.
func (p *NetworkProbe) ProbeTCPPort(ctx context.Context, ip string, port int, timeout time.Duration) bool {
	return ProbeTCPPort(ctx, ip, port, timeout)
}

// DedupeByIP keeps the first response seen for each source IP, preserving order.
func DedupeByIP(responses []SSDPResponse) []SSDPResponse {
	seen := make(map[string]struct{}, len(responses))
	unique := make([]SSDPResponse, 0, len(responses))
	for _, r := range responses {
		if r.IP == "" {
			continue
		}
		if _, ok := seen[r.IP]; ok {
			continue
		}
		seen[r.IP] = struct{}{}
		unique = append(unique, r)
	}
	return unique
}
