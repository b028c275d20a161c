// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package orchestration

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// DefaultMaxTokens bounds accepted request size. Requests over the limit
	// are rejected before any stage runs.
	DefaultMaxTokens = 4096

	encodingName = "cl100k_base"
)

var unsafePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?previous\s+instructions`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?prior\s+(instructions|prompts)`),
	regexp.MustCompile(`(?i)\bsystem\s+prompt\b.*\b(reveal|print|show|dump)\b`),
	regexp.MustCompile(`(?i)\b(reveal|print|show|dump)\b.*\bsystem\s+prompt\b`),
}

// Validator screens incoming requests before the pipeline accepts them.
// Token counting is approximate by design; an encoder load failure degrades
// to a character-based estimate rather than blocking intake.
type Validator struct {
	maxTokens int

	once    sync.Once
	encoder *tiktoken.Tiktoken
}

// NewValidator creates a request validator. maxTokens <= 0 takes the default.
func NewValidator(maxTokens int) *Validator {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Validator{maxTokens: maxTokens}
}

// Validate returns a non-nil error when the request must be rejected: empty
// after trimming, oversized, or matching a known unsafe pattern.
func (v *Validator) Validate(request string) error {
	trimmed := strings.TrimSpace(request)
	if trimmed == "" {
		return fmt.Errorf("request is empty")
	}

	if count := v.countTokens(trimmed); count > v.maxTokens {
		return fmt.Errorf("request is too large: %d tokens exceeds limit of %d", count, v.maxTokens)
	}

	for _, pattern := range unsafePatterns {
		if pattern.MatchString(trimmed) {
			return fmt.Errorf("request matches a disallowed pattern")
		}
	}
	return nil
}

func (v *Validator) countTokens(text string) int {
	v.once.Do(func() {
		enc, err := tiktoken.GetEncoding(encodingName)
		if err == nil {
			v.encoder = enc
		}
	})
	if v.encoder == nil {
		// Rough fallback: about four characters per token.
		return len(text) / 4
	}
	return len(v.encoder.Encode(text, nil, nil))
}
