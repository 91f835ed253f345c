// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for parley.
//
// Configuration is a TOML file with sensible defaults, environment variable
// overrides and validation.
//
// # Key Types
//
//   - Config: Main configuration structure
//   - StorageConfig: Store backend and data directory
//   - LoggingConfig: Log level, format and rotating log file
//   - GatewayConfig: Default model, output cap, timeout, rate limit, base URLs
//   - UIConfig, SpeechConfig: Interface mode and text-to-speech command
//   - Watcher: Reloads the file when it changes on disk
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Command-line flags
//   - Environment variables (PARLEY_*)
//   - ~/.parley/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	timeout := cfg.Gateway.Timeout()
package config
