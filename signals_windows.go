// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

//go:build windows

package main

import (
	"github.com/soothill/wifi-tv-remote/app"
	"github.com/soothill/wifi-tv-remote/pkg/logger"
)

// setupDebugSignalHandlers does nothing on Windows, which has no SIGUSR1 or
// SIGUSR2. GET /api/status reports the connection slot instead.
func setupDebugSignalHandlers(_ *app.App) func() {
	logger.Debug().Msg("Debug signal handlers not available on Windows")
	return func() {}
}
