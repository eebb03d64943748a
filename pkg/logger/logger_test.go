// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package logger

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", "debug", zerolog.DebugLevel, false},
		{"info", "info", zerolog.InfoLevel, false},
		{"empty is info", "", zerolog.InfoLevel, false},
		{"warn", "warn", zerolog.WarnLevel, false},
		{"warning", "warning", zerolog.WarnLevel, false},
		{"error", "error", zerolog.ErrorLevel, false},
		{"fatal", "fatal", zerolog.FatalLevel, false},
		{"panic", "panic", zerolog.PanicLevel, false},
		{"disabled", "off", zerolog.Disabled, false},
		{"uppercase", "DEBUG", zerolog.DebugLevel, false},
		{"padded", "  warn ", zerolog.WarnLevel, false},
		{"invalid defaults to info", "invalid", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if level != tt.expected {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.level, level, tt.expected)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
		})
	}
}

func TestLogFunctions(t *testing.T) {
	var buf bytes.Buffer
	Initialize("debug")
	SetOutput(&buf)

	tests := []struct {
		name    string
		logFunc func() *zerolog.Event
		message string
	}{
		{"debug", Debug, "debug message"},
		{"info", Info, "info message"},
		{"warn", Warn, "warn message"},
		{"error", Error, "error message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.logFunc().Msg(tt.message)
			if !strings.Contains(buf.String(), tt.message) {
				t.Errorf("%s() output should contain %q, got %q", tt.name, tt.message, buf.String())
			}
		})
	}
}

func TestLogLevelFiltering(t *testing.T) {
	tests := []struct {
		name        string
		configLevel string
		logLevel    string
		shouldLog   bool
	}{
		{"info logs at info level", "info", "info", true},
		{"debug filtered at info level", "info", "debug", false},
		{"error logs at info level", "info", "error", true},
		{"debug logs at debug level", "debug", "debug", true},
		{"info filtered at error level", "error", "info", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Initialize(tt.configLevel)
			SetOutput(&buf)

			message := "filtered message"
			switch tt.logLevel {
			case "debug":
				Debug().Msg(message)
			case "info":
				Info().Msg(message)
			case "error":
				Error().Msg(message)
			}

			hasMessage := strings.Contains(buf.String(), message)
			if hasMessage != tt.shouldLog {
				t.Errorf("logged = %v, want %v (config %s, event %s)", hasMessage, tt.shouldLog, tt.configLevel, tt.logLevel)
			}
		})
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	Initialize("error")
	SetOutput(&buf)

	Info().Msg("before")
	if strings.Contains(buf.String(), "before") {
		t.Fatal("info should be filtered at error level")
	}

	if !SetLevel("info") {
		t.Fatal("SetLevel(info) = false, want true")
	}
	Info().Msg("after")
	if !strings.Contains(buf.String(), "after") {
		t.Errorf("info should be logged after SetLevel(info), got %q", buf.String())
	}

	if SetLevel("bogus") {
		t.Error("SetLevel(bogus) = true, want false")
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	InitializeWithFormat("info", FormatJSON)
	SetOutput(&buf)

	Info().Str("brand", "Roku").Msg("json line")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["brand"] != "Roku" {
		t.Errorf("brand = %v, want Roku", entry["brand"])
	}
	if entry["message"] != "json line" {
		t.Errorf("message = %v, want %q", entry["message"], "json line")
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	InitializeWithFormat("info", FormatJSON)
	SetOutput(&buf)

	l := Component("discovery")
	l.Info().Msg("tagged")

	if !strings.Contains(buf.String(), `"component":"discovery"`) {
		t.Errorf("component field missing: %s", buf.String())
	}
}

func TestWith(t *testing.T) {
	Initialize("info")

	var buf bytes.Buffer
	l := With().Str("test_field", "test_value").Logger().Output(&buf)
	l.Info().Msg("test message")

	if !strings.Contains(buf.String(), "test_value") {
		t.Errorf("context logger should carry fields, got %q", buf.String())
	}
}

func TestGet(t *testing.T) {
	Initialize("info")
	if Get() == nil {
		t.Error("Get() returned nil logger")
	}
}

func TestSetLevelWhileLogging(t *testing.T) {
	Initialize("info")
	SetOutput(io.Discard)

	const iterations = 500
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			if i%2 == 0 {
				SetLevel("debug")
			} else {
				SetLevel("info")
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			Info().Int("i", i).Msg("reload")
			Debug().Msg("reload")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			_ = Get().GetLevel()
			SetOutput(io.Discard)
		}
	}()
	wg.Wait()

	if !SetLevel("warn") {
		t.Fatal("SetLevel(warn) = false")
	}
	if got := Get().GetLevel(); got != zerolog.WarnLevel {
		t.Errorf("level after reload = %v, want %v", got, zerolog.WarnLevel)
	}
}
