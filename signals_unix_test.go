// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

//go:build !windows

package main

import (
	"bytes"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soothill/wifi-tv-remote/app"
	"github.com/soothill/wifi-tv-remote/config"
	"github.com/soothill/wifi-tv-remote/pkg/logger"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestDebugDumpsCoverBothSignals(t *testing.T) {
	application, err := app.New(config.Default(), "")
	require.NoError(t, err)

	dumps := debugDumps(application)
	assert.Len(t, dumps, 2)
	assert.Contains(t, dumps, syscall.SIGUSR1)
	assert.Contains(t, dumps, syscall.SIGUSR2)
}

func TestSIGUSR1DumpsConnectionState(t *testing.T) {
	out := &syncBuffer{}
	logger.InitializeWithFormat("info", logger.FormatJSON)
	logger.SetOutput(out)
	t.Cleanup(func() { logger.Initialize("info") })

	application, err := app.New(config.Default(), "")
	require.NoError(t, err)

	stop := setupDebugSignalHandlers(application)
	defer stop()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Connection state")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), `"state":"idle"`)
}
