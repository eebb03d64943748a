// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/soothill/wifi-tv-remote/pkg/logger"
)

const (
	defaultMDNSDomain    = "local."
	defaultBrowseTimeout = 3 * time.Second
	mdnsEntryBuffer      = 10
)

// TXT keys that carry a vendor or model string, in the order they are
// joined into the synthesized Server header.
var mdnsIdentityKeys = []string{"manufacturer", "model", "md", "fn", "am"}

// MDNSBrowser browses DNS-SD service types and reports each answering host
// as an SSDPResponse.
type MDNSBrowser struct {
	domain string
}

// NewMDNSBrowser creates a browser for domain ("local." when empty).
func NewMDNSBrowser(domain string) *MDNSBrowser {
	if domain == "" {
		domain = defaultMDNSDomain
	}
	return &MDNSBrowser{domain: domain}
}

// Browse collects entries for service until ctx is done. A ctx without a
// deadline is bounded by a default browse window.
//
// The zeroconf resolver is the producer and closes entries when ctx ends; a
// single consumer goroutine converts entries as they arrive.
func (b *MDNSBrowser) Browse(ctx context.Context, service string) ([]SSDPResponse, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultBrowseTimeout)
		defer cancel()
	}

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry, mdnsEntryBuffer)
	var found []SSDPResponse
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			resp, ok := parseServiceEntry(entry)
			if !ok {
				continue
			}
			found = append(found, resp)

			logger.Debug().
				Str("service", service).
				Str("instance", entry.Instance).
				Str("address", resp.IP).
				Str("server", resp.Server).
				Strs("txt_keys", txtKeys(entry.Text)).
				Msg("mDNS entry")
		}
	}()

	if err := resolver.Browse(ctx, service, b.domain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse %s: %w", service, err)
	}

	<-ctx.Done()
	wg.Wait()

	return found, nil
}

// parseServiceEntry converts a zeroconf entry. Entries without an IPv4
// address are skipped.
func parseServiceEntry(entry *zeroconf.ServiceEntry) (SSDPResponse, bool) {
	if entry == nil || len(entry.AddrIPv4) == 0 {
		return SSDPResponse{}, false
	}

	return SSDPResponse{
		Server:       mdnsServerString(entry.Text),
		SearchTarget: entry.Service,
		USN:          entry.Instance,
		IP:           entry.AddrIPv4[0].String(),
	}, true
}

// mdnsServerString builds a Server-like header from TXT records so that the
// same brand fingerprints match SSDP and mDNS results.
func mdnsServerString(txt []string) string {
	records := make(map[string]string, len(txt))
	for _, kv := range txt {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			records[strings.ToLower(parts[0])] = parts[1]
		}
	}

	parts := []string{"mdns"}
	for _, key := range mdnsIdentityKeys {
		if v := strings.TrimSpace(records[key]); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

// txtKeys lists the keys of a TXT record set, sorted.
func txtKeys(txt []string) []string {
	keys := make([]string, 0, len(txt))
	for _, kv := range txt {
		if k, _, ok := strings.Cut(kv, "="); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
