// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the conversation data structures shared by the
// exchange coordinator, the transport adapter and the user interfaces.
//
// # Key Types
//
//   - Turn: one utterance in the conversation, user or assistant
//   - Log: an immutable, ordered list of turns with reducer operations
//   - Quality: brief or deep-dive answer style
//   - ModelInfo: a remote model the user can pick
//
// # Usage
//
// Every reducer operation returns a new Log and leaves the receiver intact:
//
//	var log model.Log
//	log, _ = log.AppendUser("Hello")
//	log, _ = log.BeginAssistant()
//	log, _ = log.AppendFragment("Hi")
//	log, _ = log.AppendFragment("!")
//	log, _ = log.CompleteAssistant(nil)
//
// Holders of an older Log never observe later mutations, so snapshots can be
// handed to renderers without copying.
package model
