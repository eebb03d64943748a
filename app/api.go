// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/soothill/wifi-tv-remote/pkg/errors"
	"github.com/soothill/wifi-tv-remote/pkg/interfaces"
	"github.com/soothill/wifi-tv-remote/pkg/logger"
	"github.com/soothill/wifi-tv-remote/protocol"
	"github.com/soothill/wifi-tv-remote/remote"
)

const (
	maxRequestBody      = 64 << 10
	maxDiscoveryTimeout = 60 * time.Second
)

// Controller is the controller surface the API drives.
type Controller interface {
	interfaces.RemoteControl
	State() remote.ConnectionState
	Subscribe(buffer int) (<-chan remote.Event, func())
}

// BrandCatalog lists brands with their protocol and buttons.
type BrandCatalog interface {
	interfaces.ButtonCatalog
	Brands() []string
	ProtocolNameFor(brand string) string
}

// API serves the JSON control endpoints and the event stream.
type API struct {
	ctrl             Controller
	catalog          BrandCatalog
	discoveryTimeout time.Duration
	limiter          *rate.Limiter
}

// NewAPI creates the API. Every /api route shares limiter.
func NewAPI(ctrl Controller, catalog BrandCatalog, discoveryTimeout time.Duration, limiter *rate.Limiter) *API {
	return &API{
		ctrl:             ctrl,
		catalog:          catalog,
		discoveryTimeout: discoveryTimeout,
		limiter:          limiter,
	}
}

// Routes registers the API on mux.
func (a *API) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/brands", rateLimitMiddleware(a.limiter, a.handleBrands))
	mux.HandleFunc("POST /api/discover", rateLimitMiddleware(a.limiter, a.handleDiscover))
	mux.HandleFunc("POST /api/connect", rateLimitMiddleware(a.limiter, a.handleConnect))
	mux.HandleFunc("POST /api/command", rateLimitMiddleware(a.limiter, a.handleCommand))
	mux.HandleFunc("POST /api/disconnect", rateLimitMiddleware(a.limiter, a.handleDisconnect))
	mux.HandleFunc("GET /api/status", rateLimitMiddleware(a.limiter, a.handleStatus))
	mux.HandleFunc("GET /api/events", rateLimitMiddleware(a.limiter, a.handleEvents))
}

type brandInfo struct {
	Name     string   `json:"name"`
	Protocol string   `json:"protocol"`
	Buttons  []string `json:"buttons"`
}

type discoverRequest struct {
	Brand   string `json:"brand"`
	Timeout string `json:"timeout,omitempty"`
}

type discoverResponse struct {
	Brand   string                      `json:"brand"`
	Devices []protocol.DiscoveredDevice `json:"devices"`
}

type connectRequest struct {
	Brand  string                     `json:"brand"`
	IP     string                     `json:"ip,omitempty"`
	Device *protocol.DiscoveredDevice `json:"device,omitempty"`
}

type commandRequest struct {
	Button string `json:"button"`
}

type commandResponse struct {
	Button string `json:"button"`
	Sent   bool   `json:"sent"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *API) handleBrands(w http.ResponseWriter, _ *http.Request) {
	names := a.catalog.Brands()
	brands := make([]brandInfo, 0, len(names))
	for _, name := range names {
		brands = append(brands, brandInfo{
			Name:     name,
			Protocol: a.catalog.ProtocolNameFor(name),
			Buttons:  a.catalog.Buttons(name),
		})
	}
	writeJSON(w, http.StatusOK, map[string][]brandInfo{"brands": brands})
}

func (a *API) handleDiscover(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	brand := strings.TrimSpace(req.Brand)
	if brand == "" {
		writeError(w, http.StatusBadRequest, "brand is required")
		return
	}

	timeout := a.discoveryTimeout
	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil || d <= 0 || d > maxDiscoveryTimeout {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("timeout must be a duration between 0 and %s", maxDiscoveryTimeout))
			return
		}
		timeout = d
	}

	devices := a.ctrl.DiscoverDevices(r.Context(), brand, timeout)
	logger.Info().Str("brand", brand).Int("devices", len(devices)).Msg("API discovery finished")
	writeJSON(w, http.StatusOK, discoverResponse{Brand: brand, Devices: devices})
}

func (a *API) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	brand := strings.TrimSpace(req.Brand)
	if brand == "" {
		writeError(w, http.StatusBadRequest, "brand is required")
		return
	}

	var ok bool
	switch {
	case req.Device != nil:
		device := *req.Device
		if device.Brand == "" {
			device.Brand = brand
		}
		if err := device.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		ok = a.ctrl.Connect(r.Context(), brand, device)
	case req.IP != "":
		ok = a.ctrl.ConnectByAddress(r.Context(), brand, req.IP)
	default:
		writeError(w, http.StatusBadRequest, "either device or ip is required")
		return
	}

	if !ok {
		writeError(w, http.StatusBadGateway, "connection failed")
		return
	}
	writeJSON(w, http.StatusOK, a.ctrl.State())
}

func (a *API) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Button) == "" {
		writeError(w, http.StatusBadRequest, "button is required")
		return
	}
	if !a.ctrl.IsConnected() {
		writeError(w, http.StatusConflict, apperrors.ErrNotConnected.Error())
		return
	}

	resp := commandResponse{Button: req.Button, Sent: a.ctrl.SendCommand(r.Context(), req.Button)}
	status := http.StatusOK
	if !resp.Sent {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, resp)
}

func (a *API) handleDisconnect(w http.ResponseWriter, _ *http.Request) {
	a.ctrl.Disconnect()
	writeJSON(w, http.StatusOK, a.ctrl.State())
}

func (a *API) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.ctrl.State())
}

// decodeRequest reads a size-capped JSON body into v, writing a 400 on failure.
func decodeRequest(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
