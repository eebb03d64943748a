// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Command tvremote discovers and controls smart TVs on the local network.
//
// Usage:
//
//	tvremote [-config file] [-log-level level] <command> [args]
//
// Commands:
//
//	brands            list brands with a native protocol
//	discover          search the network for TVs of a brand
//	send              connect to a TV and press buttons
//	interactive       start the interactive remote
//	serve             run the HTTP control API
//	validate-config   check a configuration file and exit
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/soothill/wifi-tv-remote/app"
	"github.com/soothill/wifi-tv-remote/config"
	"github.com/soothill/wifi-tv-remote/discovery"
	"github.com/soothill/wifi-tv-remote/interactive"
	"github.com/soothill/wifi-tv-remote/pkg/logger"
	"github.com/soothill/wifi-tv-remote/protocol"
	"github.com/soothill/wifi-tv-remote/remote"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run parses global flags, dispatches a subcommand and returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tvremote", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to YAML configuration file (optional)")
	logLevel := fs.String("log-level", "", "Override the configured log level")
	fs.Usage = func() { printUsage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}
	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]

	if cmd == "validate-config" {
		return performConfigValidation(*configPath, stdout, stderr)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return exitError
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	logger.InitializeWithFormat(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "brands":
		return cmdBrands(cfg, cmdArgs, stdout, stderr)
	case "discover":
		return cmdDiscover(ctx, cfg, cmdArgs, stdout, stderr)
	case "send":
		return cmdSend(ctx, cfg, cmdArgs, stdout, stderr)
	case "interactive":
		return cmdInteractive(ctx, cfg, stderr)
	case "serve":
		return cmdServe(ctx, cfg, *configPath)
	default:
		fmt.Fprintf(stderr, "Unknown command %q\n\n", cmd)
		fs.Usage()
		return exitUsage
	}
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, `Usage: tvremote [flags] <command> [args]

Commands:
  brands [-buttons]                          List brands with a native protocol
  discover [-timeout d] [-json] <brand>      Search the network for TVs
  send [-port n] <brand> <ip> <button>...    Connect and press buttons in order
  interactive                                Start the interactive remote
  serve                                      Run the HTTP control API
  validate-config                            Check the -config file and exit

Flags:`)
	fs.PrintDefaults()
}

// newController wires probe, registry and controller from configuration.
func newController(cfg *config.Config) (*protocol.Registry, *remote.Controller) {
	probe := discovery.NewNetworkProbe(cfg.ProbeOptions())
	registry := protocol.NewRegistry(probe, cfg.RegistryOptions())
	return registry, remote.NewController(registry, cfg.ControllerOptions())
}

func cmdBrands(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("brands", flag.ContinueOnError)
	fs.SetOutput(stderr)
	showButtons := fs.Bool("buttons", false, "Also list each brand's buttons")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	registry, _ := newController(cfg)

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BRAND\tPROTOCOL\tBUTTONS")
	for _, brand := range registry.Brands() {
		buttons := registry.Buttons(brand)
		fmt.Fprintf(tw, "%s\t%s\t%d\n", brand, registry.ProtocolNameFor(brand), len(buttons))
	}
	if err := tw.Flush(); err != nil {
		return exitError
	}

	if *showButtons {
		for _, brand := range registry.Brands() {
			fmt.Fprintf(stdout, "\n%s:\n  %s\n", brand, strings.Join(registry.Buttons(brand), ", "))
		}
	}
	return exitOK
}

func cmdDiscover(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	fs.SetOutput(stderr)
	timeout := fs.Duration("timeout", cfg.Discovery.Timeout, "How long to search")
	asJSON := fs.Bool("json", false, "Print devices as JSON")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 || *timeout <= 0 {
		fmt.Fprintln(stderr, "Usage: tvremote discover [-timeout d] [-json] <brand>")
		return exitUsage
	}
	brand := fs.Arg(0)

	if !*asJSON {
		fmt.Fprintln(stdout, searchHeader(brand, *timeout))
	}

	_, ctrl := newController(cfg)
	devices := ctrl.DiscoverDevices(ctx, brand, *timeout)

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(devices); err != nil {
			return exitError
		}
		return exitOK
	}

	if len(devices) == 0 {
		fmt.Fprintf(stdout, "No %s devices found\n", brand)
		return exitOK
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tADDRESS\tBRAND")
	for _, d := range devices {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.DisplayName(), d.Addr(), d.Brand)
	}
	if err := tw.Flush(); err != nil {
		return exitError
	}
	return exitOK
}

// searchHeader names the interface address replies will arrive on.
func searchHeader(brand string, timeout time.Duration) string {
	if ip, ok := discovery.LocalIPv4Address(); ok {
		return fmt.Sprintf("Searching for %s TVs from %s for %s...", brand, ip, timeout)
	}
	return fmt.Sprintf("Searching for %s TVs for %s (no local IPv4 address found)...", brand, timeout)
}

func cmdSend(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(stderr)
	port := fs.Int("port", 0, "Control port (default: the brand's protocol port)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() < 3 {
		fmt.Fprintln(stderr, "Usage: tvremote send [-port n] <brand> <ip> <button>...")
		return exitUsage
	}
	brand, ip, buttons := fs.Arg(0), fs.Arg(1), fs.Args()[2:]

	_, ctrl := newController(cfg)
	defer ctrl.Close()

	var connected bool
	if *port > 0 {
		connected = ctrl.Connect(ctx, brand, protocol.DiscoveredDevice{
			Name:      brand + " TV",
			IPAddress: ip,
			Brand:     brand,
			Port:      *port,
		})
	} else {
		connected = ctrl.ConnectByAddress(ctx, brand, ip)
	}
	if !connected {
		fmt.Fprintf(stderr, "Could not connect to %s TV at %s\n", brand, ip)
		return exitError
	}

	for _, button := range buttons {
		if !ctrl.SendCommand(ctx, button) {
			fmt.Fprintf(stderr, "Failed to send %s\n", button)
			return exitError
		}
		fmt.Fprintf(stdout, "Sent %s\n", button)
	}
	return exitOK
}

func cmdInteractive(ctx context.Context, cfg *config.Config, stderr io.Writer) int {
	registry, ctrl := newController(cfg)
	defer ctrl.Close()

	shell, err := interactive.New(ctrl, registry, registry.Brands(), cfg.Discovery.Timeout)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to start interactive mode: %v\n", err)
		return exitError
	}
	// Keep log lines from corrupting the prompt.
	logger.SetOutput(shell.Stdout())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	shell.Run(ctx, cancel)
	return exitOK
}

func cmdServe(ctx context.Context, cfg *config.Config, configPath string) int {
	logger.Info().
		Str("addr", cfg.Server.Addr).
		Dur("discovery_timeout", cfg.Discovery.Timeout).
		Bool("mdns", cfg.Discovery.MDNSEnabled).
		Msg("Starting TV remote control API")

	application, err := app.New(cfg, configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create application")
		return exitError
	}

	stopDumps := setupDebugSignalHandlers(application)
	defer stopDumps()

	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("Server stopped with error")
		return exitError
	}
	return exitOK
}

// performConfigValidation validates the configuration file and returns exit code
func performConfigValidation(configPath string, stdout, stderr io.Writer) int {
	if configPath == "" {
		fmt.Fprintln(stderr, "validate-config requires -config <file>")
		return exitUsage
	}

	if err := config.ValidateWithSchema(configPath); err != nil {
		fmt.Fprintf(stderr, "\n❌ Configuration validation FAILED\n%v\n", err)
		return exitError
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "\n❌ Configuration validation FAILED\n")
		fmt.Fprintf(stderr, "Error: %v\n\n", err)
		return exitError
	}

	fmt.Fprintln(stdout, "\n✅ Configuration validation PASSED")
	fmt.Fprintln(stdout, "\nConfiguration summary:")
	fmt.Fprintf(stdout, "  Discovery Timeout: %s\n", cfg.Discovery.Timeout)
	fmt.Fprintf(stdout, "  Probe Timeout: %s\n", cfg.Discovery.ProbeTimeout)
	fmt.Fprintf(stdout, "  Search Targets: %s\n", strings.Join(cfg.Discovery.SearchTargets, ", "))
	fmt.Fprintf(stdout, "  mDNS Enabled: %t\n", cfg.Discovery.MDNSEnabled)
	fmt.Fprintf(stdout, "  HTTP Timeout: %s\n", cfg.Control.HTTPTimeout)
	fmt.Fprintf(stdout, "  Command Rate: %g/s (burst %d)\n", cfg.Control.CommandRate, cfg.Control.CommandBurst)
	fmt.Fprintf(stdout, "  Server Address: %s\n", cfg.Server.Addr)
	fmt.Fprintf(stdout, "  Log Level: %s (%s)\n", cfg.Logging.Level, cfg.Logging.Format)
	return exitOK
}
