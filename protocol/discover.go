// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package protocol

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/soothill/wifi-tv-remote/discovery"
	"github.com/soothill/wifi-tv-remote/pkg/logger"
	"github.com/soothill/wifi-tv-remote/pkg/metrics"
)

// fingerprint lists lowercase substrings that identify a brand in SSDP
// headers.
type fingerprint struct {
	server       []string
	location     []string
	searchTarget []string
}

func (f fingerprint) matches(r discovery.SSDPResponse) bool {
	return containsAny(r.Server, f.server) ||
		containsAny(r.Location, f.location) ||
		containsAny(r.SearchTarget, f.searchTarget)
}

func containsAny(s string, needles []string) bool {
	if s == "" {
		return false
	}
	lower := strings.ToLower(s)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

// identifyFunc asks a host on port for its friendly name. ok is false when
// the host does not answer like a TV of the brand.
type identifyFunc func(ctx context.Context, ip string, port int) (name string, ok bool)

// discoveryPlan describes how one brand finds its devices.
type discoveryPlan struct {
	protocol    string
	brand       string
	defaultName string
	fingerprint fingerprint

	// matchPort is the port recorded for fingerprint matches.
	matchPort int

	// probePorts are tried in order on every responding host the fingerprint
	// missed; the first open port wins. Empty disables probing.
	probePorts []int

	// identify, when set, names fingerprint matches and probed hosts.
	identify identifyFunc

	// strict rejects probed hosts that identify does not confirm.
	strict bool
}

// runDiscovery searches, keeps fingerprint matches and probes the remaining
// hosts in a bounded worker pool. Results are unique by IP.
func runDiscovery(ctx context.Context, env *env, timeout time.Duration, plan discoveryPlan) []DiscoveredDevice {
	start := time.Now()
	defer func() {
		metrics.DiscoveryDuration.WithLabelValues(plan.protocol).Observe(time.Since(start).Seconds())
	}()

	responses := env.prober.Search(ctx, timeout)

	var matched []DiscoveredDevice
	var candidates []discovery.SSDPResponse
	for _, r := range responses {
		if plan.fingerprint.matches(r) {
			matched = append(matched, DiscoveredDevice{
				Name:        plan.defaultName,
				IPAddress:   r.IP,
				Brand:       plan.brand,
				Port:        plan.matchPort,
				ServiceType: r.SearchTarget,
				UniqueID:    r.USN,
			})
			continue
		}
		candidates = append(candidates, r)
	}

	if plan.identify != nil {
		nameDevices(ctx, env, matched, plan.identify)
	}

	var probed []DiscoveredDevice
	if len(plan.probePorts) > 0 && len(candidates) > 0 {
		probed = probeCandidates(ctx, env, candidates, plan)
	}

	devices := dedupeDevices(append(matched, probed...))
	metrics.DevicesDiscovered.WithLabelValues(plan.protocol).Set(float64(len(devices)))

	logger.Info().
		Str("protocol", plan.protocol).
		Int("responses", len(responses)).
		Int("devices", len(devices)).
		Dur("elapsed", time.Since(start)).
		Msg("Discovery complete")

	return devices
}

// nameDevices fills in friendly names concurrently, in place.
func nameDevices(ctx context.Context, env *env, devices []DiscoveredDevice, identify identifyFunc) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, env.opts.ProbeWorkers)
	for i := range devices {
		wg.Add(1)
		go func(d *DiscoveredDevice) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			if name, ok := identify(ctx, d.IPAddress, d.Port); ok && name != "" {
				d.Name = name
			}
		}(&devices[i])
	}
	wg.Wait()
}

// probeCandidates checks plan.probePorts on each candidate host using at
// most ProbeWorkers concurrent probes. A slow host only holds its own worker.
func probeCandidates(ctx context.Context, env *env, candidates []discovery.SSDPResponse, plan discoveryPlan) []DiscoveredDevice {
	results := make([]*DiscoveredDevice, len(candidates))
	sem := make(chan struct{}, env.opts.ProbeWorkers)
	var wg sync.WaitGroup

	for i, r := range candidates {
		wg.Add(1)
		go func(slot int, r discovery.SSDPResponse) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			for _, port := range plan.probePorts {
				if !env.prober.ProbeTCPPort(ctx, r.IP, port, env.opts.ProbeTimeout) {
					continue
				}

				name := plan.defaultName
				if plan.identify != nil {
					found, ok := plan.identify(ctx, r.IP, port)
					if !ok && plan.strict {
						return
					}
					if ok && found != "" {
						name = found
					}
				}

				results[slot] = &DiscoveredDevice{
					Name:        name,
					IPAddress:   r.IP,
					Brand:       plan.brand,
					Port:        port,
					ServiceType: r.SearchTarget,
					UniqueID:    r.USN,
				}
				return
			}
		}(i, r)
	}
	wg.Wait()

	var devices []DiscoveredDevice
	for _, d := range results {
		if d != nil {
			devices = append(devices, *d)
		}
	}
	return devices
}

// dedupeDevices keeps the first device per IP.
func dedupeDevices(devices []DiscoveredDevice) []DiscoveredDevice {
	seen := make(map[string]struct{}, len(devices))
	unique := make([]DiscoveredDevice, 0, len(devices))
	for _, d := range devices {
		if _, ok := seen[d.IPAddress]; ok {
			continue
		}
		seen[d.IPAddress] = struct{}{}
		unique = append(unique, d)
	}
	return unique
}
