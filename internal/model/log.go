// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "strings"

// =============================================================================
// LOG
// =============================================================================

// Log is an ordered, immutable list of turns.
//
// The zero value is an empty log. Every operation returns a new Log together
// with a flag reporting whether anything changed; the receiver is never
// modified, so a Log handed to another goroutine stays valid forever.
//
// Invariants:
//   - insertion order is the only order
//   - at most one assistant turn is incomplete, and it is always the last turn
type Log struct {
	turns []Turn
}

// NewLog returns a log holding copies of the given turns.
func NewLog(turns ...Turn) Log {
	if len(turns) == 0 {
		return Log{}
	}
	cp := make([]Turn, len(turns))
	copy(cp, turns)
	return Log{turns: cp}
}

// Len returns the number of turns.
func (l Log) Len() int {
	return len(l.turns)
}

// IsEmpty returns true if the log holds no turns.
func (l Log) IsEmpty() bool {
	return len(l.turns) == 0
}

// Turns returns a copy of the turns in insertion order.
func (l Log) Turns() []Turn {
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// At returns the turn at index i.
func (l Log) At(i int) Turn {
	return l.turns[i]
}

// Last returns the last turn, if any.
func (l Log) Last() (Turn, bool) {
	if len(l.turns) == 0 {
		return Turn{}, false
	}
	return l.turns[len(l.turns)-1], true
}

// Pending returns true if the last turn is an incomplete assistant turn.
func (l Log) Pending() bool {
	last, ok := l.Last()
	return ok && last.IsPending()
}

// History returns the turns to send to the service: everything except a
// trailing incomplete assistant turn.
func (l Log) History() []Turn {
	n := len(l.turns)
	if l.Pending() {
		n--
	}
	out := make([]Turn, n)
	copy(out, l.turns[:n])
	return out
}

// =============================================================================
// REDUCER OPERATIONS
// =============================================================================

// AppendUser appends a complete user turn. Text that is empty after trimming
// leaves the log unchanged, as does any call while an assistant turn is open.
func (l Log) AppendUser(text string) (Log, bool) {
	if strings.TrimSpace(text) == "" || l.Pending() {
		return l, false
	}
	return l.with(newTurn(RoleUser, text, true)), true
}

// BeginAssistant appends an empty, incomplete assistant turn. It is a no-op
// when one is already open.
func (l Log) BeginAssistant() (Log, bool) {
	if l.Pending() {
		return l, false
	}
	return l.with(newTurn(RoleAssistant, "", false)), true
}

// AppendFragment concatenates text onto the open assistant turn. Without an
// open turn, or with empty text, the log is unchanged.
func (l Log) AppendFragment(text string) (Log, bool) {
	if text == "" || !l.Pending() {
		return l, false
	}
	return l.updateLast(func(t *Turn) {
		t.Content += text
	}), true
}

// CompleteAssistant marks the open assistant turn complete.
//
// A non-nil finalText replaces the accumulated content wholesale. When no
// assistant turn is open, a non-nil finalText is appended as a new complete
// assistant turn; a nil finalText is then a no-op.
func (l Log) CompleteAssistant(finalText *string) (Log, bool) {
	if !l.Pending() {
		if finalText == nil {
			return l, false
		}
		return l.with(newTurn(RoleAssistant, *finalText, true)), true
	}
	return l.updateLast(func(t *Turn) {
		if finalText != nil {
			t.Content = *finalText
		}
		t.Complete = true
	}), true
}

// ReplaceWithError terminates the exchange with message. An open assistant
// turn has its content replaced and is completed; otherwise a complete
// assistant turn holding message is appended.
func (l Log) ReplaceWithError(message string) (Log, bool) {
	return l.CompleteAssistant(&message)
}

// Reset returns an empty log.
func (l Log) Reset() (Log, bool) {
	if len(l.turns) == 0 {
		return l, false
	}
	return Log{}, true
}

func (l Log) with(t Turn) Log {
	next := make([]Turn, len(l.turns), len(l.turns)+1)
	copy(next, l.turns)
	return Log{turns: append(next, t)}
}

func (l Log) updateLast(fn func(*Turn)) Log {
	next := make([]Turn, len(l.turns))
	copy(next, l.turns)
	fn(&next[len(next)-1])
	return Log{turns: next}
}
