// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sort"
	"strings"
)

// =============================================================================
// MODEL INFO TYPE
// =============================================================================

// ModelInfo describes a remote model offered in the model picker.
type ModelInfo struct {
	// ID is the model identifier sent to the service.
	ID string `json:"id"`

	// Name is the human-readable display name.
	Name string `json:"name"`

	// Description is a short explanation of the model's strengths.
	Description string `json:"description"`

	// Order controls the position in pickers.
	Order int `json:"-"`
}

// DefaultModel is the model used when none is configured.
const DefaultModel = "gpt-4.1-mini"

// =============================================================================
// MODEL REGISTRY
// =============================================================================

// Models is the registry of models the service accepts.
var Models = map[string]ModelInfo{
	"gpt-4o": {
		ID:          "gpt-4o",
		Name:        "GPT-4o",
		Description: "Most capable model, best for complex tasks",
		Order:       1,
	},
	"gpt-4o-mini": {
		ID:          "gpt-4o-mini",
		Name:        "GPT-4o Mini",
		Description: "Fast and efficient, good for most tasks",
		Order:       2,
	},
	"gpt-4-turbo": {
		ID:          "gpt-4-turbo",
		Name:        "GPT-4 Turbo",
		Description: "High performance with large context window",
		Order:       3,
	},
	"gpt-3.5-turbo": {
		ID:          "gpt-3.5-turbo",
		Name:        "GPT-3.5 Turbo",
		Description: "Fast and cost-effective for simple tasks",
		Order:       4,
	},
	"gpt-4.1-mini": {
		ID:          "gpt-4.1-mini",
		Name:        "GPT-4.1 Mini",
		Description: "Latest mini model with improved capabilities",
		Order:       5,
	},
}

// =============================================================================
// MODEL LOOKUP FUNCTIONS
// =============================================================================

// GetModelInfo looks up a model by ID, falling back to a case-insensitive
// match on the display name.
func GetModelInfo(nameOrID string) (ModelInfo, bool) {
	if info, ok := Models[nameOrID]; ok {
		return info, true
	}
	for _, info := range Models {
		if strings.EqualFold(info.Name, nameOrID) || strings.EqualFold(info.ID, nameOrID) {
			return info, true
		}
	}
	return ModelInfo{}, false
}

// ListModels returns the registry in picker order.
func ListModels() []ModelInfo {
	out := make([]ModelInfo, 0, len(Models))
	for _, info := range Models {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// IsKnownModel returns true if id is in the registry.
func IsKnownModel(id string) bool {
	_, ok := Models[id]
	return ok
}
