// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package config provides configuration management for the tvremote binary.
//
// The configuration file is optional YAML. Missing fields take defaults,
// a small set of environment variables override the file, and the result is
// checked with validator struct tags. The library packages never read this
// package; the binary converts a Config into their option structs.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/soothill/wifi-tv-remote/discovery"
	apperrors "github.com/soothill/wifi-tv-remote/pkg/errors"
	"github.com/soothill/wifi-tv-remote/pkg/util"
	"github.com/soothill/wifi-tv-remote/protocol"
	"github.com/soothill/wifi-tv-remote/remote"
)

// Config represents the application configuration
type Config struct {
	Discovery DiscoveryConfig `yaml:"discovery"`
	Control   ControlConfig   `yaml:"control"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DiscoveryConfig holds network discovery settings
type DiscoveryConfig struct {
	Timeout       time.Duration `yaml:"timeout" validate:"gte=500ms,lte=60s"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout" validate:"gte=50ms,lte=10s"`
	ProbeWorkers  int           `yaml:"probe_workers" validate:"gte=1,lte=64"`
	SearchTargets []string      `yaml:"search_targets" validate:"dive,required"`
	MDNSEnabled   bool          `yaml:"mdns_enabled"`
	MDNSServices  []string      `yaml:"mdns_services" validate:"dive,required"`
	MDNSDomain    string        `yaml:"mdns_domain"`
}

// ControlConfig holds connection and key press settings
type ControlConfig struct {
	HTTPTimeout    time.Duration `yaml:"http_timeout" validate:"gte=100ms,lte=60s"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" validate:"gte=100ms,lte=60s"`
	CommandRate    float64       `yaml:"command_rate" validate:"gt=0,lte=1000"`
	CommandBurst   int           `yaml:"command_burst" validate:"gte=1,lte=100"`
	SonyPSK        string        `yaml:"sony_psk" validate:"required"`
	VizioAuthToken string        `yaml:"vizio_auth_token"`
}

// ServerConfig holds settings for serve mode
type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required,hostname_port"`
	RateLimit       float64       `yaml:"rate_limit" validate:"gt=0"`
	RateBurst       int           `yaml:"rate_burst" validate:"gte=1"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=1s,lte=5m"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn warning error fatal panic"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

// Load reads configuration from a YAML file and applies environment variable
// overrides. An empty path yields the defaults plus overrides.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := util.ReadFileSafely(path, util.MaxConfigFileSize)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvironmentOverrides()
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnvironmentOverrides applies environment variable overrides to the configuration
func (c *Config) applyEnvironmentOverrides() {
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if addr := os.Getenv("TVREMOTE_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if psk := os.Getenv("TVREMOTE_SONY_PSK"); psk != "" {
		c.Control.SonyPSK = psk
	}
	if token := os.Getenv("TVREMOTE_VIZIO_AUTH_TOKEN"); token != "" {
		c.Control.VizioAuthToken = token
	}
	if timeout := os.Getenv("TVREMOTE_DISCOVERY_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err == nil {
			c.Discovery.Timeout = d
		} else {
			fmt.Fprintf(os.Stderr, "Warning: Failed to parse TVREMOTE_DISCOVERY_TIMEOUT '%s': %v\n", timeout, err)
		}
	}
}

// setDefaults sets default values for configuration fields if not provided
func (c *Config) setDefaults() {
	if c.Discovery.Timeout == 0 {
		c.Discovery.Timeout = 4 * time.Second
	}
	if c.Discovery.ProbeTimeout == 0 {
		c.Discovery.ProbeTimeout = protocol.DefaultProbeTimeout
	}
	if c.Discovery.ProbeWorkers == 0 {
		c.Discovery.ProbeWorkers = protocol.DefaultProbeWorkers
	}
	if len(c.Discovery.SearchTargets) == 0 {
		c.Discovery.SearchTargets = append([]string(nil), discovery.DefaultSearchTargets...)
	}
	if len(c.Discovery.MDNSServices) == 0 {
		c.Discovery.MDNSServices = append([]string(nil), discovery.DefaultMDNSServices...)
	}
	if c.Discovery.MDNSDomain == "" {
		c.Discovery.MDNSDomain = "local."
	}

	if c.Control.HTTPTimeout == 0 {
		c.Control.HTTPTimeout = protocol.DefaultHTTPTimeout
	}
	if c.Control.ConnectTimeout == 0 {
		c.Control.ConnectTimeout = protocol.DefaultConnectTimeout
	}
	if c.Control.CommandRate == 0 {
		c.Control.CommandRate = remote.DefaultCommandRate
	}
	if c.Control.CommandBurst == 0 {
		c.Control.CommandBurst = remote.DefaultCommandBurst
	}
	if c.Control.SonyPSK == "" {
		c.Control.SonyPSK = protocol.DefaultSonyPSK
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 10
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = 20
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks if the configuration is valid. The first failing field is
// reported as a ConfigError named by its YAML path, e.g. "control.command_rate".
func (c *Config) Validate() error {
	err := structValidator().Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperrors.NewConfigError("", "", err)
	}

	fe := fieldErrs[0]
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	return apperrors.NewConfigError(field, fmt.Sprint(fe.Value()),
		fmt.Errorf("%w: failed %q rule %s", apperrors.ErrInvalidConfig, fe.Tag(), fe.Param()))
}

// ProbeOptions converts the discovery section for the discovery package.
func (c *Config) ProbeOptions() discovery.Options {
	return discovery.Options{
		SearchTargets: c.Discovery.SearchTargets,
		MDNSEnabled:   c.Discovery.MDNSEnabled,
		MDNSServices:  c.Discovery.MDNSServices,
		MDNSDomain:    c.Discovery.MDNSDomain,
	}
}

// RegistryOptions converts timeouts and credentials for the protocol registry.
func (c *Config) RegistryOptions() protocol.Options {
	return protocol.Options{
		HTTPTimeout:    c.Control.HTTPTimeout,
		ProbeTimeout:   c.Discovery.ProbeTimeout,
		ConnectTimeout: c.Control.ConnectTimeout,
		ProbeWorkers:   c.Discovery.ProbeWorkers,
		SonyPSK:        c.Control.SonyPSK,
		VizioAuthToken: c.Control.VizioAuthToken,
	}
}

// ControllerOptions converts command pacing for the remote controller.
func (c *Config) ControllerOptions() remote.Options {
	return remote.Options{
		CommandRate:  c.Control.CommandRate,
		CommandBurst: c.Control.CommandBurst,
	}
}
