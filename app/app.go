// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package app runs the tvremote serve mode: an HTTP control API over one
// remote.Controller, a websocket event stream, Prometheus metrics and a
// health endpoint, with graceful shutdown and SIGHUP configuration reload.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/soothill/wifi-tv-remote/config"
	"github.com/soothill/wifi-tv-remote/discovery"
	apperrors "github.com/soothill/wifi-tv-remote/pkg/errors"
	"github.com/soothill/wifi-tv-remote/pkg/interfaces"
	"github.com/soothill/wifi-tv-remote/pkg/logger"
	"github.com/soothill/wifi-tv-remote/protocol"
	"github.com/soothill/wifi-tv-remote/remote"
)

const (
	signalChannelSize = 1
	readHeaderTimeout = 5 * time.Second
	healthRateLimit   = 10
	healthRateBurst   = 20
)

var _ interfaces.ButtonCatalog = (*protocol.Registry)(nil)

// App represents the serve-mode application
type App struct {
	cfg           *config.Config
	registry      *protocol.Registry
	controller    *remote.Controller
	server        *http.Server
	configWatcher *config.Watcher
	configChan    chan *config.Config
	wg            sync.WaitGroup

	ready chan struct{}
	addr  net.Addr
}

// New creates a new application instance. configPath may be empty, in which
// case SIGHUP reload is disabled.
func New(cfg *config.Config, configPath string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("failed to create application: %w", apperrors.ErrInvalidConfig)
	}

	probe := discovery.NewNetworkProbe(cfg.ProbeOptions())
	registry := protocol.NewRegistry(probe, cfg.RegistryOptions())

	app := &App{
		cfg:        cfg,
		registry:   registry,
		controller: remote.NewController(registry, cfg.ControllerOptions()),
		ready:      make(chan struct{}),
	}

	app.server = &http.Server{
		Handler:           app.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	if configPath != "" {
		app.configChan = make(chan *config.Config, 1)
		app.configWatcher = config.NewWatcher(configPath, app.configChan)
	}

	return app, nil
}

// Controller exposes the controller driven by the API.
func (a *App) Controller() *remote.Controller {
	return a.controller
}

// Handler builds the full HTTP route table.
func (a *App) Handler() http.Handler {
	healthLimiter := rate.NewLimiter(healthRateLimit, healthRateBurst)
	apiLimiter := rate.NewLimiter(rate.Limit(a.cfg.Server.RateLimit), a.cfg.Server.RateBurst)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", rateLimitMiddleware(healthLimiter, healthCheckHandler))

	api := NewAPI(a.controller, a.registry, a.cfg.Discovery.Timeout, apiLimiter)
	api.Routes(mux)

	return mux
}

// Ready is closed once the listener is bound.
func (a *App) Ready() <-chan struct{} {
	return a.ready
}

// Addr returns the bound listen address. Valid after Ready is closed.
func (a *App) Addr() net.Addr {
	return a.addr
}

// Run serves until ctx is cancelled, SIGINT/SIGTERM arrives, or the server
// fails, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ln, err := net.Listen("tcp", a.cfg.Server.Addr)
	if err != nil {
		return apperrors.NewNetworkError("listen", a.cfg.Server.Addr, err)
	}
	a.addr = ln.Addr()
	close(a.ready)

	serveErr := make(chan error, 1)
	a.startServer(ln, serveErr)
	a.setupSignalHandler(ctx, cancel)

	if a.configWatcher != nil {
		a.configWatcher.Start(ctx)
		defer a.configWatcher.Stop()
		a.startConfigWatcher(ctx)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
	}

	a.performGracefulShutdown()
	cancel()

	logger.Info().Msg("Waiting for goroutines to finish...")
	a.wg.Wait()
	logger.Info().Msg("All goroutines finished, exiting")

	return runErr
}

// startServer serves HTTP on ln in the background
func (a *App) startServer(ln net.Listener, serveErr chan<- error) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		logger.Info().Str("addr", ln.Addr().String()).Msg("Starting control API server")
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Control API server failed")
			serveErr <- apperrors.NewNetworkError("serve", ln.Addr().String(), err)
		}
	}()
}

// setupSignalHandler cancels the run on interrupt signals
func (a *App) setupSignalHandler(ctx context.Context, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, signalChannelSize)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()
}

// startConfigWatcher applies reloaded configuration until ctx ends
func (a *App) startConfigWatcher(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-ctx.Done():
				logger.Debug().Msg("Config watcher goroutine shutting down")
				return
			case cfg := <-a.configChan:
				a.applyReload(cfg)
			}
		}
	}()
}

// applyReload applies the settings that can change at runtime. Everything
// else in cfg needs a restart.
func (a *App) applyReload(cfg *config.Config) {
	if !logger.SetLevel(cfg.Logging.Level) {
		logger.Warn().Str("level", cfg.Logging.Level).Msg("Ignoring invalid log level on reload")
	}
	a.controller.SetCommandRate(cfg.Control.CommandRate, cfg.Control.CommandBurst)

	logger.Info().
		Str("log_level", cfg.Logging.Level).
		Float64("command_rate", cfg.Control.CommandRate).
		Int("command_burst", cfg.Control.CommandBurst).
		Msg("Runtime settings updated")
}

// performGracefulShutdown stops the HTTP server and releases the TV
func (a *App) performGracefulShutdown() {
	logger.Info().Msg("Initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server stopped")
	}

	// Closing the controller also ends open event streams.
	a.controller.Close()
}

// DumpApplicationState dumps current application state to logs
func (a *App) DumpApplicationState() {
	logger.Info().Msg("=== APPLICATION STATE DUMP (SIGUSR1) ===")

	state := a.controller.State()
	event := logger.Info().
		Str("state", state.State.String()).
		Str("brand", state.Brand).
		Str("protocol", state.Protocol).
		Str("session_id", state.SessionID).
		Time("since", state.Since)
	if state.Device != nil {
		event = event.
			Str("device", state.Device.DisplayName()).
			Str("ip", state.Device.IPAddress).
			Int("port", state.Device.Port)
	}
	event.Msg("Connection state")

	logger.Info().Strs("brands", a.registry.Brands()).Msg("Supported brands")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	logger.Info().
		Uint64("alloc_mb", m.Alloc/1024/1024).
		Uint64("total_alloc_mb", m.TotalAlloc/1024/1024).
		Uint32("num_gc", m.NumGC).
		Int("num_goroutines", runtime.NumGoroutine()).
		Msg("Runtime statistics")

	logger.Info().Msg("=== END STATE DUMP ===")
}

// DumpGoroutineStackTraces dumps all goroutine stack traces to logs
func DumpGoroutineStackTraces() {
	logger.Info().Msg("=== GOROUTINE STACK TRACES (SIGUSR2) ===")
	logger.Info().Int("num_goroutines", runtime.NumGoroutine()).Msg("Current goroutine count")

	buf := make([]byte, 1024*1024)
	stackLen := runtime.Stack(buf, true)
	logger.Info().Str("stack_traces", string(buf[:stackLen])).Msg("Full stack trace")

	logger.Info().Msg("=== END STACK TRACES ===")
}

// rateLimitMiddleware wraps an HTTP handler with rate limiting
func rateLimitMiddleware(limiter *rate.Limiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			logger.Warn().
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("Rate limit exceeded")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

// healthCheckHandler handles health check requests
func healthCheckHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, writeErr := w.Write([]byte("OK")); writeErr != nil {
		logger.Error().Err(writeErr).Msg("Failed to write health check response")
	}
}
