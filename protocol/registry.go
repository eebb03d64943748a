// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package protocol

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/soothill/wifi-tv-remote/discovery"
)

// Default timeouts and limits.
const (
	DefaultHTTPTimeout    = 3 * time.Second
	DefaultProbeTimeout   = 500 * time.Millisecond
	DefaultConnectTimeout = 3 * time.Second
	DefaultSonyPSK        = "0000"
	DefaultProbeWorkers   = 8
)

// Options tunes the handlers a Registry builds. Zero values take defaults.
type Options struct {
	HTTPTimeout    time.Duration
	ProbeTimeout   time.Duration
	ConnectTimeout time.Duration
	ProbeWorkers   int

	// SonyPSK is sent as X-Auth-PSK to Bravia TVs.
	SonyPSK string

	// VizioAuthToken is sent as AUTH to SmartCast TVs when set.
	VizioAuthToken string
}

func (o Options) withDefaults() Options {
	if o.HTTPTimeout <= 0 {
		o.HTTPTimeout = DefaultHTTPTimeout
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = DefaultProbeTimeout
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.ProbeWorkers <= 0 {
		o.ProbeWorkers = DefaultProbeWorkers
	}
	if o.SonyPSK == "" {
		o.SonyPSK = DefaultSonyPSK
	}
	return o
}

// env is what every handler needs from the outside world.
type env struct {
	prober    discovery.Prober
	client    *http.Client
	tlsClient *http.Client
	opts      Options
}

func newEnv(prober discovery.Prober, opts Options) *env {
	opts = opts.withDefaults()
	return &env{
		prober:    prober,
		client:    newHTTPClient(opts.HTTPTimeout, false),
		tlsClient: newHTTPClient(opts.HTTPTimeout, true),
		opts:      opts,
	}
}

type handlerFactory func(e *env, brand string) Handler

// Brand keys with a dedicated handler. TCL ships Roku OS.
var nativeBrands = map[string]handlerFactory{
	"samsung":   func(e *env, _ string) Handler { return newSamsungHandler(e) },
	"lg":        func(e *env, _ string) Handler { return newLGHandler(e) },
	"sony":      func(e *env, _ string) Handler { return newSonyHandler(e) },
	"roku":      func(e *env, _ string) Handler { return newRokuHandler(e, "Roku") },
	"tcl":       func(e *env, _ string) Handler { return newRokuHandler(e, "TCL") },
	"philips":   func(e *env, _ string) Handler { return newPhilipsHandler(e) },
	"panasonic": func(e *env, _ string) Handler { return newPanasonicHandler(e) },
	"vizio":     func(e *env, _ string) Handler { return newVizioHandler(e) },
}

// Registry maps brand names to handlers. It holds no connection state and
// is safe for concurrent use.
type Registry struct {
	env *env
}

// NewRegistry builds a registry whose handlers use prober for discovery and
// reachability checks.
func NewRegistry(prober discovery.Prober, opts Options) *Registry {
	return &Registry{env: newEnv(prober, opts)}
}

// Resolve returns a new handler for brand. Matching ignores case and
// surrounding space; unknown brands get the generic handler. Never nil.
func (r *Registry) Resolve(brand string) Handler {
	key := normalizeBrand(brand)
	if factory, ok := nativeBrands[key]; ok {
		return factory(r.env, key)
	}
	return newGenericHandler(r.env)
}

// SupportsNatively reports whether brand has a dedicated handler.
func (r *Registry) SupportsNatively(brand string) bool {
	_, ok := nativeBrands[normalizeBrand(brand)]
	return ok
}

// ProtocolNameFor returns the protocol label Resolve(brand) would use.
func (r *Registry) ProtocolNameFor(brand string) string {
	return r.Resolve(brand).ProtocolName()
}

// Brands lists the brand keys with dedicated handlers, sorted.
func (r *Registry) Brands() []string {
	brands := make([]string, 0, len(nativeBrands))
	for b := range nativeBrands {
		brands = append(brands, b)
	}
	sort.Strings(brands)
	return brands
}

func normalizeBrand(brand string) string {
	return strings.ToLower(strings.TrimSpace(brand))
}
