// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	apperrors "github.com/soothill/wifi-tv-remote/pkg/errors"
	"github.com/soothill/wifi-tv-remote/pkg/util"
)

//go:embed schema.json
var schemaJSON []byte

// ValidateWithSchema validates a configuration file against the embedded
// JSON schema. It catches unknown keys and malformed durations that YAML
// decoding alone would accept or reject with a less useful message.
//
// Example usage:
//
//	if err := config.ValidateWithSchema("tvremote.yaml"); err != nil {
//	    log.Fatal(err)
//	}
func ValidateWithSchema(configPath string) error {
	data, err := util.ReadFileSafely(configPath, util.MaxConfigFileSize)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	return ValidateBytes(data)
}

// ValidateBytes validates YAML (or JSON) configuration content against the
// embedded schema.
func ValidateBytes(data []byte) error {
	var configObj interface{}
	if err := yaml.Unmarshal(data, &configObj); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if configObj == nil {
		// An empty file means "all defaults".
		configObj = map[string]interface{}{}
	}

	configJSON, err := json.Marshal(configObj)
	if err != nil {
		return fmt.Errorf("failed to convert config to JSON: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(configJSON),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		return formatValidationErrors(result.Errors())
	}
	return nil
}

// formatValidationErrors folds schema errors into one ConfigError naming the
// first offending field.
func formatValidationErrors(errs []gojsonschema.ResultError) error {
	if len(errs) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("configuration validation errors:\n")
	for i, e := range errs {
		fmt.Fprintf(&b, "  %d. %s: %s\n", i+1, e.Field(), e.Description())
	}

	return apperrors.NewConfigError(errs[0].Field(), fmt.Sprint(errs[0].Value()),
		fmt.Errorf("%w: %s", apperrors.ErrInvalidConfig, strings.TrimRight(b.String(), "\n")))
}

// GetSchemaJSON returns the embedded JSON schema as a string.
func GetSchemaJSON() string {
	return string(schemaJSON)
}
