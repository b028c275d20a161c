// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package extract converts language-model output into a key/value map via a
// cascade of increasingly lenient strategies. Model output is not guaranteed
// well-formed and the pipeline must never block on a formatting defect, so
// every strategy is best-effort and total failure yields an empty map.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	// fencePattern matches JSON inside markdown code blocks: ```json { ... } ```
	fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)```")

	// trailingCommaPattern matches trailing commas before ] or }.
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)

	// quotedPairPattern matches explicit "key": "value" pairs anywhere in text.
	quotedPairPattern = regexp.MustCompile(`"([A-Za-z_][A-Za-z0-9_]*)"\s*:\s*"([^"]*)"`)

	// linePairPattern matches key: "value" at the start of a line.
	linePairPattern = regexp.MustCompile(`^\s*"?([A-Za-z_][A-Za-z0-9_]*)"?\s*:\s*"([^"]*)"\s*,?\s*$`)

	smartQuoteReplacer = strings.NewReplacer(
		"“", `"`, "”", `"`, "„", `"`,
		"‘", "'", "’", "'",
	)
)

// Extract obtains a key/value map from raw model output, trying strategies in
// order and stopping at the first non-empty result:
//
//  1. direct structured parse (after stripping markdown fences)
//  2. largest brace-delimited substring with light repair
//  3. regex extraction of explicit "key": "value" pairs
//  4. line-by-line key: "value" extraction
//
// Returns an empty map on total failure, signaling the caller to fall back to
// a rule-based default.
func Extract(raw string) map[string]any {
	text := strings.TrimSpace(raw)
	if text == "" {
		return map[string]any{}
	}

	if m := parseDirect(text); len(m) > 0 {
		return m
	}
	if m := parseRepaired(text); len(m) > 0 {
		return m
	}
	if m := parseQuotedPairs(text); len(m) > 0 {
		return m
	}
	if m := parseLines(text); len(m) > 0 {
		return m
	}
	return map[string]any{}
}

// parseDirect attempts a strict JSON parse, unwrapping a markdown fence first.
func parseDirect(text string) map[string]any {
	candidate := text
	if matches := fencePattern.FindStringSubmatch(text); len(matches) > 1 {
		candidate = strings.TrimSpace(matches[1])
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(candidate), &m); err != nil {
		return nil
	}
	return m
}

// parseRepaired locates the largest brace-delimited substring, applies light
// repair, and parses the result.
func parseRepaired(text string) map[string]any {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil
	}

	candidate := Repair(text[start : end+1])

	var m map[string]any
	if err := json.Unmarshal([]byte(candidate), &m); err != nil {
		return nil
	}
	return m
}

// Repair applies the light repairs LLM output commonly needs: smart-quote
// normalization, line-comment stripping, and trailing-comma removal.
func Repair(raw string) string {
	out := smartQuoteReplacer.Replace(raw)

	lines := strings.Split(out, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		cleaned = append(cleaned, stripLineComment(line))
	}
	out = strings.Join(cleaned, "\n")

	return trailingCommaPattern.ReplaceAllString(out, "$1")
}

// parseQuotedPairs regex-extracts explicit "key": "value" pairs from prose.
func parseQuotedPairs(text string) map[string]any {
	matches := quotedPairPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	m := make(map[string]any, len(matches))
	for _, match := range matches {
		if _, seen := m[match[1]]; !seen {
			m[match[1]] = match[2]
		}
	}
	return m
}

// parseLines extracts key: "value" pairs line by line.
func parseLines(text string) map[string]any {
	m := make(map[string]any)
	for _, line := range strings.Split(text, "\n") {
		if match := linePairPattern.FindStringSubmatch(line); match != nil {
			if _, seen := m[match[1]]; !seen {
				m[match[1]] = match[2]
			}
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// stripLineComment removes a // comment from a line, respecting string
// values so URLs like "http://example.com" survive.
func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}

	inString := false
	escaped := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/' {
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}
