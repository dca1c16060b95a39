// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voice

import (
	"io"
	"sync"
)

// Cue signals the start and end of a capture to the user.
type Cue interface {
	Begin()
	End()
}

// NoCue is a silent Cue.
type NoCue struct{}

func (NoCue) Begin() {}
func (NoCue) End()   {}

// BellCue rings the terminal bell.
type BellCue struct {
	mu sync.Mutex
	w  io.Writer
}

// NewBellCue returns a cue that writes BEL to w.
func NewBellCue(w io.Writer) *BellCue {
	return &BellCue{w: w}
}

func (c *BellCue) Begin() { c.ring() }
func (c *BellCue) End()   { c.ring() }

func (c *BellCue) ring() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.w, "\a")
}
