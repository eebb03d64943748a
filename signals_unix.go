// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

//go:build !windows

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/soothill/wifi-tv-remote/app"
	"github.com/soothill/wifi-tv-remote/pkg/logger"
)

// debugDumps maps each debug signal to the dump it triggers while serving.
//
//	kill -USR1 <pid>   connection slot, brands, runtime stats
//	kill -USR2 <pid>   goroutine stacks
func debugDumps(application *app.App) map[os.Signal]func() {
	return map[os.Signal]func(){
		syscall.SIGUSR1: application.DumpApplicationState,
		syscall.SIGUSR2: app.DumpGoroutineStackTraces,
	}
}

// setupDebugSignalHandlers starts dumping on SIGUSR1/SIGUSR2. The returned
// function stops listening.
func setupDebugSignalHandlers(application *app.App) func() {
	dumps := debugDumps(application)

	sigs := make([]os.Signal, 0, len(dumps))
	for sig := range dumps {
		sigs = append(sigs, sig)
	}

	sigChan := make(chan os.Signal, len(sigs))
	signal.Notify(sigChan, sigs...)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case sig := <-sigChan:
				logger.Debug().Str("signal", sig.String()).Msg("Debug dump requested")
				dumps[sig]()
			}
		}
	}()

	return func() {
		signal.Stop(sigChan)
		close(done)
	}
}
