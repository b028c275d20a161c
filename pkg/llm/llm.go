// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package llm defines the narrow language-model boundary the pipeline
// depends on. The invocation layer itself is an opaque collaborator: it
// returns either already-structured data or raw text, and stages pass raw
// text through the extraction cascade.
package llm

import "context"

// Response is one model completion.
type Response struct {
	// Content is the raw text returned by the model
	Content string

	// Structured is set when the provider already produced typed data;
	// when present it takes precedence over Content
	Structured map[string]any
}

// Provider is the pluggable model backend.
type Provider interface {
	// Complete sends a prompt and returns the model's response.
	Complete(ctx context.Context, prompt string) (*Response, error)

	// Name returns the provider name.
	Name() string

	// Model returns the model identifier.
	Model() string
}
