// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

//go:build unix

package config

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"
)

func TestWatcherReloadsOnSIGHUP(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: info\n")

	configs := make(chan *Config, 1)
	w := NewWatcher(path, configs)
	w.Start(context.Background())
	defer w.Stop()

	if err := os.WriteFile(path, []byte("logging:\n  level: debug\ncontrol:\n  command_rate: 2\n"), 0600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	if err := syscall.Kill(os.Getpid(), syscall.SIGHUP); err != nil {
		t.Fatalf("send SIGHUP: %v", err)
	}

	select {
	case cfg := <-configs:
		if cfg.Logging.Level != "debug" {
			t.Errorf("reloaded Logging.Level = %q, want debug", cfg.Logging.Level)
		}
		if cfg.Control.CommandRate != 2 {
			t.Errorf("reloaded CommandRate = %v, want 2", cfg.Control.CommandRate)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no configuration delivered after SIGHUP")
	}
}

func TestWatcherSkipsInvalidReload(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: info\n")

	configs := make(chan *Config, 1)
	w := NewWatcher(path, configs)
	w.Start(context.Background())
	defer w.Stop()

	if err := os.WriteFile(path, []byte("logging:\n  level: shouting\n"), 0600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	if err := syscall.Kill(os.Getpid(), syscall.SIGHUP); err != nil {
		t.Fatalf("send SIGHUP: %v", err)
	}

	select {
	case cfg := <-configs:
		t.Fatalf("invalid configuration delivered: %+v", cfg.Logging)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherStopIsSafe(t *testing.T) {
	w := NewWatcher("unused.yaml", make(chan *Config))
	w.Stop()

	w.Start(context.Background())
	w.Stop()
}
