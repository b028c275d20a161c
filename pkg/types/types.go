// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package types contains shared types used across the weft pipeline.
// This package breaks import cycles by providing the canonical stage result
// and execution record types that orchestration, stages, cache, and the
// resilience engine all depend on.
package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Priority classifies how urgently a request should be handled.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Complexity classifies how involved the downstream work is expected to be.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Entities holds structured mentions extracted from the request text.
type Entities struct {
	// Models are model names mentioned in the request
	Models []string `json:"models,omitempty"`

	// Metrics are metric names mentioned in the request
	Metrics []string `json:"metrics,omitempty"`

	// Thresholds are numeric thresholds or targets mentioned in the request
	Thresholds []float64 `json:"thresholds,omitempty"`

	// TimeRanges are time-range mentions ("last 7 days", "this month")
	TimeRanges []string `json:"time_ranges,omitempty"`
}

// Intent captures what the user wants the platform to do.
type Intent struct {
	// Primary is the dominant intent label
	Primary string `json:"primary"`

	// Secondary are additional intent labels, ordered by strength
	Secondary []string `json:"secondary,omitempty"`

	// ActionRequired indicates the request expects the platform to act,
	// not just answer
	ActionRequired bool `json:"action_required"`
}

// ToolRecommendation is one ranked tool suggestion produced by a stage.
type ToolRecommendation struct {
	// Name is the tool identifier
	Name string `json:"name"`

	// Relevance scores how well the tool fits the request, in [0,1]
	Relevance float64 `json:"relevance"`

	// Parameters are suggested invocation parameters
	Parameters map[string]string `json:"parameters,omitempty"`
}

// Validation reports whether a stage result passed its checks.
type Validation struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ExecutionMeta records how a stage result was produced.
type ExecutionMeta struct {
	// ElapsedMs is wall-clock time spent producing the result
	ElapsedMs int64 `json:"elapsed_ms"`

	// CacheHit is true when the result came from the request cache
	CacheHit bool `json:"cache_hit"`

	// FallbackUsed is true whenever the value did not come from a fully
	// successful primary computation (rule-based default, compensation,
	// synthesized error)
	FallbackUsed bool `json:"fallback_used"`

	// RetryCount is the number of retries the resilience engine performed
	RetryCount int `json:"retry_count"`

	// Error carries detail when the result is degraded
	Error string `json:"error,omitempty"`
}

// StageResult is the canonical output of one pipeline stage.
type StageResult struct {
	// Category is the primary classification label
	Category string `json:"category"`

	// SecondaryCategories are additional labels, ordered by strength
	SecondaryCategories []string `json:"secondary_categories,omitempty"`

	// Confidence scores the classification, in [0,1]
	Confidence float64 `json:"confidence"`

	Priority   Priority   `json:"priority,omitempty"`
	Complexity Complexity `json:"complexity,omitempty"`

	Entities Entities `json:"entities,omitempty"`
	Intent   Intent   `json:"intent,omitempty"`

	// Tools are ranked tool recommendations
	Tools []ToolRecommendation `json:"tool_recommendations,omitempty"`

	Validation Validation    `json:"validation"`
	Meta       ExecutionMeta `json:"execution_metadata"`

	// Summary is free-form stage output (optimization notes, report body)
	Summary string `json:"summary,omitempty"`
}

// Clamp forces all scores into [0,1]. Every path that constructs or converts
// a result must clamp before handing it across a component boundary.
func (r *StageResult) Clamp() {
	r.Confidence = clamp01(r.Confidence)
	for i := range r.Tools {
		r.Tools[i].Relevance = clamp01(r.Tools[i].Relevance)
	}
}

// Clone returns a deep copy of the result.
func (r *StageResult) Clone() *StageResult {
	if r == nil {
		return nil
	}
	out := *r
	out.SecondaryCategories = append([]string(nil), r.SecondaryCategories...)
	out.Entities.Models = append([]string(nil), r.Entities.Models...)
	out.Entities.Metrics = append([]string(nil), r.Entities.Metrics...)
	out.Entities.Thresholds = append([]float64(nil), r.Entities.Thresholds...)
	out.Entities.TimeRanges = append([]string(nil), r.Entities.TimeRanges...)
	out.Intent.Secondary = append([]string(nil), r.Intent.Secondary...)
	out.Validation.Errors = append([]string(nil), r.Validation.Errors...)
	out.Validation.Warnings = append([]string(nil), r.Validation.Warnings...)
	if r.Tools != nil {
		out.Tools = make([]ToolRecommendation, len(r.Tools))
		for i, t := range r.Tools {
			out.Tools[i] = t
			if t.Parameters != nil {
				params := make(map[string]string, len(t.Parameters))
				for k, v := range t.Parameters {
					params[k] = v
				}
				out.Tools[i].Parameters = params
			}
		}
	}
	return &out
}

// UnknownResult returns the minimal default substituted when a stage produced
// output in no recognizable shape.
func UnknownResult() *StageResult {
	return &StageResult{
		Category:   "Unknown",
		Confidence: 0,
		Validation: Validation{Valid: false, Errors: []string{"unrecognized stage output"}},
		Meta:       ExecutionMeta{FallbackUsed: true},
	}
}

// ErrorResult synthesizes the degraded result the supervisor substitutes when
// a stage fails outright. The pipeline never aborts because a stage failed.
func ErrorResult(err error) *StageResult {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return &StageResult{
		Category:   "Error",
		Confidence: 0,
		Validation: Validation{Valid: false, Errors: []string{detail}},
		Meta:       ExecutionMeta{FallbackUsed: true, Error: detail},
	}
}

// ResultFromMap converts a loose key/value map (typically extractor output)
// into a typed StageResult. Unknown keys are ignored; values are coerced
// tolerantly because the map usually originates from repaired LLM output.
// The returned result is clamped.
func ResultFromMap(m map[string]any) *StageResult {
	r := &StageResult{Validation: Validation{Valid: true}}

	if v, ok := firstString(m, "category", "primary_category"); ok {
		r.Category = v
	}
	if r.Category == "" {
		r.Category = "Unknown"
		r.Validation.Valid = false
		r.Validation.Warnings = append(r.Validation.Warnings, "category missing from stage output")
	}
	r.SecondaryCategories = toStringSlice(m["secondary_categories"])

	if v, ok := firstFloat(m, "confidence", "confidence_score"); ok {
		r.Confidence = v
	}
	if v, ok := firstString(m, "priority"); ok {
		r.Priority = Priority(strings.ToLower(v))
	}
	if v, ok := firstString(m, "complexity"); ok {
		r.Complexity = Complexity(strings.ToLower(v))
	}
	if v, ok := firstString(m, "summary", "report", "recommendation"); ok {
		r.Summary = v
	}

	if em, ok := m["entities"].(map[string]any); ok {
		r.Entities = Entities{
			Models:     toStringSlice(em["models"]),
			Metrics:    toStringSlice(em["metrics"]),
			Thresholds: toFloatSlice(em["thresholds"]),
			TimeRanges: toStringSlice(em["time_ranges"]),
		}
	}
	if im, ok := m["intent"].(map[string]any); ok {
		primary, _ := firstString(im, "primary", "primary_intent")
		r.Intent = Intent{
			Primary:        primary,
			Secondary:      toStringSlice(im["secondary"]),
			ActionRequired: toBool(im["action_required"]),
		}
	}
	r.Tools = toToolSlice(firstPresent(m, "tool_recommendations", "tools"))

	r.Clamp()
	return r
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

func firstString(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s := toString(v); s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func firstFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if f, ok := toFloat(v); ok {
				return f, true
			}
		}
	}
	return 0, false
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case fmt.Stringer:
		return s.String()
	default:
		return ""
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func toBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return err == nil && parsed
	default:
		return false
	}
}

func toStringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return append([]string(nil), s...)
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str := toString(item); str != "" {
				out = append(out, str)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case string:
		if s == "" {
			return nil
		}
		return []string{s}
	default:
		return nil
	}
}

func toFloatSlice(v any) []float64 {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(items))
	for _, item := range items {
		if f, ok := toFloat(item); ok {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func toToolSlice(v any) []ToolRecommendation {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]ToolRecommendation, 0, len(items))
	for _, item := range items {
		tm, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := firstString(tm, "name", "tool")
		if name == "" {
			continue
		}
		relevance, _ := firstFloat(tm, "relevance", "score")
		tool := ToolRecommendation{Name: name, Relevance: relevance}
		if pm, ok := tm["parameters"].(map[string]any); ok {
			tool.Parameters = make(map[string]string, len(pm))
			for k, pv := range pm {
				tool.Parameters[k] = toString(pv)
			}
		}
		out = append(out, tool)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
