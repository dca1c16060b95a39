// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// TURN TYPE
// =============================================================================

// Turn is a single utterance in the conversation.
//
// User turns are created complete and never change. An assistant turn is
// created incomplete while it streams and becomes complete exactly once.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Complete  bool      `json:"complete"`
	CreatedAt time.Time `json:"created_at"`
}

// IsUser returns true if this is a user turn.
func (t Turn) IsUser() bool {
	return t.Role == RoleUser
}

// IsAssistant returns true if this is an assistant turn.
func (t Turn) IsAssistant() bool {
	return t.Role == RoleAssistant
}

// IsPending returns true for an assistant turn that is still receiving text.
func (t Turn) IsPending() bool {
	return t.Role == RoleAssistant && !t.Complete
}

func newTurn(role Role, content string, complete bool) Turn {
	return Turn{
		ID:        "turn_" + uuid.NewString(),
		Role:      role,
		Content:   content,
		Complete:  complete,
		CreatedAt: time.Now(),
	}
}

// =============================================================================
// QUALITY
// =============================================================================

// Quality selects the answer style requested from the service.
type Quality int

const (
	// QualityBrief asks for short, to-the-point answers.
	QualityBrief Quality = iota
	// QualityDeep asks for detailed explanations.
	QualityDeep
)

// String returns the string representation of the quality.
func (q Quality) String() string {
	if q == QualityDeep {
		return "deep"
	}
	return "brief"
}

// Label returns the label shown next to the deep-dive toggle.
func (q Quality) Label() string {
	if q == QualityDeep {
		return "Detailed responses"
	}
	return "Brief responses"
}

// Toggle returns the other quality.
func (q Quality) Toggle() Quality {
	if q == QualityDeep {
		return QualityBrief
	}
	return QualityDeep
}
