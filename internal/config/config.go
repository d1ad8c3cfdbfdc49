// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

// Package config loads the Scenio configuration: which backend serves each
// adapter concern and the options handed to it.
package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"

	scenioerr "github.com/scenio-dev/scenio/pkg/errors"
)

// Config is the top-level Scenio configuration.
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Metadata MetadataConfig `mapstructure:"metadata"`
	Vector   VectorConfig   `mapstructure:"vector"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// StorageConfig selects the asset storage backend. Backend and URL are
// mutually exclusive ways to name the same thing.
type StorageConfig struct {
	Backend string            `mapstructure:"backend"`
	URL     string            `mapstructure:"url"`
	Options map[string]string `mapstructure:"options"`
}

// MetadataConfig selects the scene metadata backend.
type MetadataConfig struct {
	Backend string            `mapstructure:"backend"`
	Options map[string]string `mapstructure:"options"`
}

// VectorConfig selects the embedding backend and its dimensionality.
type VectorConfig struct {
	Backend    string            `mapstructure:"backend"`
	Dimensions int               `mapstructure:"dimensions"`
	Options    map[string]string `mapstructure:"options"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix SCENIO_).
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.options", map[string]string{"root": "./data/assets"})
	v.SetDefault("metadata.backend", "memory")
	v.SetDefault("vector.backend", "memory")
	v.SetDefault("vector.dimensions", 768)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Environment
	v.SetEnvPrefix("SCENIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// File
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, scenioerr.Errorf(scenioerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, scenioerr.Errorf(scenioerr.CodeConfigValidateInvalidValue, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, scenioerr.Errorf(scenioerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors. It returns a slice
// of all validation errors found, collecting all issues rather than
// stopping at the first one. Backend-specific options are validated later
// by the backend itself at construction time.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateMetadata()...)
	errs = append(errs, c.validateVector()...)
	errs = append(errs, c.validateLogging()...)

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	if c.Storage.Backend == "" && c.Storage.URL == "" {
		errs = append(errs, scenioerr.Errorf(scenioerr.CodeConfigValidateInvalidValue,
			"config: either storage.backend or storage.url must be set"))
	}
	if c.Storage.Backend != "" && c.Storage.URL != "" {
		errs = append(errs, scenioerr.Errorf(scenioerr.CodeConfigValidateInvalidValue,
			"config: storage.backend and storage.url are mutually exclusive"))
	}

	return errs
}

func (c *Config) validateMetadata() []error {
	var errs []error

	if c.Metadata.Backend == "" {
		errs = append(errs, scenioerr.Errorf(scenioerr.CodeConfigValidateInvalidValue,
			"config: metadata.backend must not be empty"))
	}

	return errs
}

func (c *Config) validateVector() []error {
	var errs []error

	if c.Vector.Backend == "" {
		errs = append(errs, scenioerr.Errorf(scenioerr.CodeConfigValidateInvalidValue,
			"config: vector.backend must not be empty"))
	}

	if c.Vector.Dimensions <= 0 {
		errs = append(errs, scenioerr.Errorf(scenioerr.CodeConfigValidateInvalidValue,
			"config: vector.dimensions must be greater than 0, got %d",
			c.Vector.Dimensions,
		))
	}

	return errs
}

func (c *Config) validateLogging() []error {
	var errs []error

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, scenioerr.Errorf(scenioerr.CodeConfigValidateInvalidValue,
			"config: logging.level must be one of [debug, info, warn, error], got %q",
			c.Logging.Level,
		))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Logging.Format] {
		errs = append(errs, scenioerr.Errorf(scenioerr.CodeConfigValidateInvalidValue,
			"config: logging.format must be one of [text, json], got %q",
			c.Logging.Format,
		))
	}

	return errs
}
