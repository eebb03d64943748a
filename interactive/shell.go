// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package interactive provides the interactive command-line remote.
package interactive

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/soothill/wifi-tv-remote/pkg/interfaces"
	"github.com/soothill/wifi-tv-remote/protocol"
)

// Shell is a readline REPL driving a RemoteControl.
type Shell struct {
	remote           interfaces.RemoteControl
	catalog          interfaces.ButtonCatalog
	brands           []string
	discoveryTimeout time.Duration

	rl  *readline.Instance
	out io.Writer

	brand string
	found []protocol.DiscoveredDevice
}

// New creates a shell reading from the terminal.
func New(remote interfaces.RemoteControl, catalog interfaces.ButtonCatalog, brands []string, discoveryTimeout time.Duration) (*Shell, error) {
	s := newShell(remote, catalog, brands, discoveryTimeout, os.Stdout)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          s.prompt(),
		AutoComplete:    s.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	s.rl = rl
	s.out = rl.Stdout()

	return s, nil
}

func newShell(remote interfaces.RemoteControl, catalog interfaces.ButtonCatalog, brands []string, discoveryTimeout time.Duration, out io.Writer) *Shell {
	return &Shell{
		remote:           remote,
		catalog:          catalog,
		brands:           brands,
		discoveryTimeout: discoveryTimeout,
		out:              out,
	}
}

// Stdout returns a writer that does not corrupt the prompt. Route log output
// through it while the shell runs.
func (s *Shell) Stdout() io.Writer {
	return s.out
}

// Run reads commands until quit, EOF or ctx is done.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}

		if quit := s.Execute(ctx, line); quit {
			cancel()
			return
		}
		s.rl.SetPrompt(s.prompt())
	}
}

// Execute runs one command line and reports whether the shell should exit.
func (s *Shell) Execute(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()
	case "brands":
		s.cmdBrands()
	case "brand", "b":
		s.cmdBrand(args)
	case "buttons":
		s.cmdButtons(args)
	case "discover", "d":
		s.cmdDiscover(ctx, args)
	case "devices", "ls":
		s.cmdDevices()
	case "connect", "c":
		s.cmdConnect(ctx, args)
	case "send", "s":
		s.cmdSend(ctx, args)
	case "status":
		s.cmdStatus()
	case "disconnect":
		s.remote.Disconnect()
		fmt.Fprintln(s.out, "Disconnected")
	case "quit", "exit", "q":
		s.remote.Disconnect()
		fmt.Fprintln(s.out, "Exiting...")
		return true
	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (s *Shell) prompt() string {
	if s.brand == "" {
		return "tv> "
	}
	return "tv[" + s.brand + "]> "
}

func (s *Shell) completer() *readline.PrefixCompleter {
	brandItems := readline.PcItemDynamic(func(string) []string { return s.brands })
	buttonItems := readline.PcItemDynamic(func(string) []string { return s.catalog.Buttons(s.brand) })

	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("brands"),
		readline.PcItem("brand", brandItems),
		readline.PcItem("buttons", brandItems),
		readline.PcItem("discover", brandItems),
		readline.PcItem("devices"),
		readline.PcItem("connect"),
		readline.PcItem("send", buttonItems),
		readline.PcItem("status"),
		readline.PcItem("disconnect"),
		readline.PcItem("quit"),
	)
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `
TV Remote Commands:
  Setup:
    brands                      - List brands with a native protocol
    brand <name>                - Select the brand used by other commands
    buttons [brand]             - List the buttons a brand understands

  Discovery & Connection:
    discover [brand] [timeout]  - Search the network, e.g. "discover roku 5s"
    devices                     - List devices from the last discovery
    connect <n|ip>              - Connect to device n from the list, or an IPv4 address
    disconnect                  - Drop the current connection

  Control:
    send <button>               - Press a button, e.g. "send Volume_Up" or "send volume up"
    status                      - Show the connection

  General:
    help                        - Show this help
    quit                        - Disconnect and exit`)
}

func (s *Shell) cmdBrands() {
	for _, b := range s.brands {
		marker := " "
		if b == s.brand {
			marker = "*"
		}
		fmt.Fprintf(s.out, " %s %s\n", marker, b)
	}
	fmt.Fprintln(s.out, "Any other brand uses generic UPnP detection.")
}

func (s *Shell) cmdBrand(args []string) {
	if len(args) == 0 {
		if s.brand == "" {
			fmt.Fprintln(s.out, "No brand selected")
		} else {
			fmt.Fprintf(s.out, "Brand: %s\n", s.brand)
		}
		return
	}
	s.brand = strings.ToLower(strings.Join(args, " "))
	s.found = nil
	fmt.Fprintf(s.out, "Brand set to %s\n", s.brand)
}

func (s *Shell) cmdButtons(args []string) {
	brand := s.brand
	if len(args) > 0 {
		brand = strings.ToLower(args[0])
	}
	if brand == "" {
		fmt.Fprintln(s.out, "Usage: buttons <brand> (or select one with 'brand')")
		return
	}
	buttons := s.catalog.Buttons(brand)
	fmt.Fprintf(s.out, "%s buttons (%d):\n", brand, len(buttons))
	fmt.Fprintf(s.out, "  %s\n", strings.Join(buttons, ", "))
}

func (s *Shell) cmdDiscover(ctx context.Context, args []string) {
	timeout := s.discoveryTimeout
	for _, arg := range args {
		if d, err := time.ParseDuration(arg); err == nil && d > 0 {
			timeout = d
			continue
		}
		s.brand = strings.ToLower(arg)
	}
	if s.brand == "" {
		fmt.Fprintln(s.out, "Usage: discover <brand> [timeout]")
		return
	}

	fmt.Fprintf(s.out, "Discovering %s TVs for %s...\n", s.brand, timeout)
	s.found = s.remote.DiscoverDevices(ctx, s.brand, timeout)
	if len(s.found) == 0 {
		fmt.Fprintln(s.out, "No devices found")
		return
	}
	s.cmdDevices()
}

func (s *Shell) cmdDevices() {
	if len(s.found) == 0 {
		fmt.Fprintln(s.out, "No devices; run 'discover' first")
		return
	}
	fmt.Fprintf(s.out, "Found %d device(s):\n", len(s.found))
	for i, d := range s.found {
		fmt.Fprintf(s.out, "  %d. %s (%s:%d)\n", i+1, d.DisplayName(), d.IPAddress, d.Port)
	}
}

func (s *Shell) cmdConnect(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: connect <n|ip>")
		return
	}
	if s.brand == "" {
		fmt.Fprintln(s.out, "Select a brand first with 'brand <name>'")
		return
	}

	var ok bool
	if n, err := strconv.Atoi(args[0]); err == nil {
		if n < 1 || n > len(s.found) {
			fmt.Fprintf(s.out, "No device %d; run 'devices' to list\n", n)
			return
		}
		ok = s.remote.Connect(ctx, s.brand, s.found[n-1])
	} else {
		ok = s.remote.ConnectByAddress(ctx, s.brand, args[0])
	}

	if !ok {
		fmt.Fprintln(s.out, "Connection failed")
		return
	}
	fmt.Fprintf(s.out, "Connected to %s via %s\n", s.remote.ConnectedDeviceName(), s.remote.ProtocolName())
}

func (s *Shell) cmdSend(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.out, "Usage: send <button>")
		return
	}
	if !s.remote.IsConnected() {
		fmt.Fprintln(s.out, "Not connected")
		return
	}

	button := strings.Join(args, " ")
	if s.remote.SendCommand(ctx, button) {
		fmt.Fprintf(s.out, "Sent %s\n", button)
	} else {
		fmt.Fprintf(s.out, "Failed to send %s\n", button)
	}
}

func (s *Shell) cmdStatus() {
	if !s.remote.IsConnected() {
		fmt.Fprintln(s.out, "Status: not connected")
		return
	}
	fmt.Fprintf(s.out, "Status: connected to %s via %s\n", s.remote.ConnectedDeviceName(), s.remote.ProtocolName())
}
