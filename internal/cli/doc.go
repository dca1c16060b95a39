// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the parley command line.
//
// Running parley with no arguments opens the full-screen chat. The
// subcommands cover scripting and plain terminals:
//
//	parley ask "what changed in v2?" --doc notes.pdf
//	parley chat
//	parley health
//	parley config show|path|init
//	parley version
//
// Every command loads configuration the same way: defaults, the TOML file,
// .env, PARLEY_* variables, then the global flags.
package cli
