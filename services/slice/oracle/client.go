// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package oracle

import "context"

// Message is one turn of a chat conversation sent to an LLM backend.
type Message struct {
	// Role is "system", "user" or "assistant".
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// GenerationParams tunes a single LLM generation.
type GenerationParams struct {
	// Temperature, when non-nil, overrides the backend default.
	Temperature *float32

	// MaxTokens, when non-nil, caps the completion length.
	MaxTokens *int
}

// Client is the transport behind the LLM oracle: one chat completion per
// call, provider details hidden.
//
// Implementations must be safe for concurrent use and honor ctx.
type Client interface {
	// Chat sends a conversation and returns the assistant's text.
	Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error)

	// Name identifies the provider for logs and metrics labels.
	Name() string
}
