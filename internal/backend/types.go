// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"io"

	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// STYLE DIRECTIVES
// =============================================================================

// System directives prepended to free-form requests for each quality.
const (
	BriefDirective = "You are a helpful assistant. Keep answers brief and to the point."
	DeepDirective  = "You are a helpful assistant. Give detailed, thorough explanations with examples where useful."
)

// DefaultTopK is the number of retrieved chunks used when a grounded request
// does not set one.
const DefaultTopK = 4

// DirectiveFor returns the system directive for a quality.
func DirectiveFor(q model.Quality) string {
	if q == model.QualityDeep {
		return DeepDirective
	}
	return BriefDirective
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// ChatRequest is a free-form streaming request.
type ChatRequest struct {
	// History is the ordered conversation, excluding the assistant turn being
	// filled by this request.
	History []model.Turn

	// Quality selects the style directive.
	Quality model.Quality

	// Model overrides the client's configured model when set.
	Model string
}

// GroundedRequest is a single-shot question answered from an uploaded document.
type GroundedRequest struct {
	SessionID string
	Query     string
	Model     string
	TopK      int
}

// UploadRequest carries a document to index.
type UploadRequest struct {
	// Filename is sent as the multipart file name.
	Filename string

	// Body supplies the file contents.
	Body io.Reader
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// GroundedAnswer is the result of a grounded request.
type GroundedAnswer struct {
	Answer string `json:"answer"`
}

// UploadResult identifies the server-side index built from an upload.
type UploadResult struct {
	SessionID string `json:"session_id"`
}

// StreamCallback is called once per fragment in arrival order.
type StreamCallback func(fragment string)

// =============================================================================
// WIRE TYPES
// =============================================================================

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatPayload struct {
	Messages []wireMessage `json:"messages"`
	Model    string        `json:"model"`
	APIKey   string        `json:"api_key"`
	DeepDive bool          `json:"deep_dive"`
}

type pdfChatPayload struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	K         int    `json:"k"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// errorBody is the error shape returned by the service.
type errorBody struct {
	Detail string `json:"detail"`
}

// toWire converts the history and prepends the style directive.
func toWire(history []model.Turn, q model.Quality) []wireMessage {
	msgs := make([]wireMessage, 0, len(history)+1)
	msgs = append(msgs, wireMessage{Role: model.RoleSystem.String(), Content: DirectiveFor(q)})
	for _, t := range history {
		msgs = append(msgs, wireMessage{Role: t.Role.String(), Content: t.Content})
	}
	return msgs
}
