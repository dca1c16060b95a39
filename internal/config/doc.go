// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for parley.
//
// # Key Types
//
//   - Config: main configuration structure with all settings
//   - BackendConfig: service URL, API key, model and timeouts
//   - VoiceConfig: push-to-talk timings and recognizer command
//   - Watcher: reloads the file when it changes on disk
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Command-line flags (applied by the caller)
//   - Environment variables (PARLEY_*)
//   - .env in the working directory, then in ~/.parley
//   - ~/.parley/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := backend.NewClientWithConfig(&backend.ClientConfig{
//	    BaseURL: cfg.Backend.BaseURL,
//	    Timeout: cfg.Backend.Timeout(),
//	})
package config
