// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package stage

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/teradata-labs/weft/pkg/types"
)

// Stage names, in pipeline order.
const (
	StageTriage   = "triage"
	StageOptimize = "optimize"
	StagePlan     = "plan"
	StageReport   = "report"
)

// categoryKeywords is the rule-based classification table. It backs the
// compensation path when the model is unavailable and the default when
// extraction fails; it is intentionally a simple lookup.
var categoryKeywords = map[string][]string{
	"Cost Optimization":    {"cost", "spend", "billing", "budget", "cheaper", "expensive", "savings"},
	"Performance Analysis": {"latency", "slow", "throughput", "p99", "p95", "performance", "timeout"},
	"Model Quality":        {"accuracy", "drift", "precision", "recall", "f1", "quality", "hallucination", "degraded"},
	"Incident Response":    {"down", "outage", "failing", "alert", "incident", "broken", "crash"},
	"Capacity Planning":    {"scale", "scaling", "capacity", "quota", "provision", "forecast", "traffic"},
}

// categoryIntents maps a category to its default primary intent.
var categoryIntents = map[string]string{
	"Cost Optimization":    "optimize",
	"Performance Analysis": "diagnose",
	"Model Quality":        "evaluate",
	"Incident Response":    "remediate",
	"Capacity Planning":    "forecast",
	"General Inquiry":      "inform",
}

// categoryTools maps a category to its ranked default tool recommendations.
var categoryTools = map[string][]types.ToolRecommendation{
	"Cost Optimization": {
		{Name: "cost_explorer", Relevance: 0.9},
		{Name: "rightsizing_advisor", Relevance: 0.75},
	},
	"Performance Analysis": {
		{Name: "latency_profiler", Relevance: 0.9},
		{Name: "metrics_dashboard", Relevance: 0.7},
	},
	"Model Quality": {
		{Name: "drift_detector", Relevance: 0.9},
		{Name: "eval_runner", Relevance: 0.8},
	},
	"Incident Response": {
		{Name: "incident_playbook", Relevance: 0.9},
		{Name: "log_search", Relevance: 0.85},
	},
	"Capacity Planning": {
		{Name: "capacity_forecaster", Relevance: 0.9},
	},
	"General Inquiry": {
		{Name: "metrics_dashboard", Relevance: 0.5},
	},
}

var (
	urgencyPattern = regexp.MustCompile(`(?i)\b(urgent|asap|immediately|critical|emergency|right now|outage|down)\b`)
	actionPattern  = regexp.MustCompile(`(?i)\b(fix|optimize|reduce|scale|restart|retrain|disable|enable|rollback|migrate|increase|decrease)\b`)

	modelPattern     = regexp.MustCompile(`(?i)\b([a-z0-9]+(?:[-_][a-z0-9]+)*[-_]v\d+(?:\.\d+)*)\b|model\s+"?([A-Za-z0-9._-]+)"?`)
	percentPattern   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	thresholdPattern = regexp.MustCompile(`(?i)\b(?:below|above|under|over|exceeds?|target|threshold)\s+(\d+(?:\.\d+)?)`)
	timeRangePattern = regexp.MustCompile(`(?i)\b(last\s+\d+\s+(?:minutes?|hours?|days?|weeks?|months?)|today|yesterday|this\s+(?:week|month|quarter))\b`)
)

var knownMetrics = []string{
	"latency", "throughput", "error rate", "accuracy", "precision",
	"recall", "f1", "drift", "cost", "token usage", "availability",
}

// classify is the rule-based triage default: keyword scoring over the
// category table, modest confidence, entities and intent from regex lookups.
func classify(request string) *types.StageResult {
	lowered := strings.ToLower(request)

	type scored struct {
		category string
		hits     int
	}
	var scores []scored
	for category, keywords := range categoryKeywords {
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(lowered, kw) {
				hits++
			}
		}
		if hits > 0 {
			scores = append(scores, scored{category, hits})
		}
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].hits != scores[j].hits {
			return scores[i].hits > scores[j].hits
		}
		return scores[i].category < scores[j].category
	})

	category := "General Inquiry"
	confidence := 0.3
	var secondary []string
	if len(scores) > 0 {
		category = scores[0].category
		confidence = 0.4 + 0.1*float64(scores[0].hits)
		if confidence > 0.7 {
			confidence = 0.7
		}
		for _, s := range scores[1:] {
			secondary = append(secondary, s.category)
		}
	}

	priority := types.PriorityMedium
	if urgencyPattern.MatchString(request) {
		priority = types.PriorityCritical
	} else if category == "Incident Response" {
		priority = types.PriorityHigh
	}

	complexity := types.ComplexitySimple
	if len(scores) > 1 {
		complexity = types.ComplexityModerate
	}
	if len(scores) > 2 {
		complexity = types.ComplexityComplex
	}

	result := &types.StageResult{
		Category:            category,
		SecondaryCategories: secondary,
		Confidence:          confidence,
		Priority:            priority,
		Complexity:          complexity,
		Entities:            extractEntities(request),
		Intent: types.Intent{
			Primary:        categoryIntents[category],
			ActionRequired: actionPattern.MatchString(request),
		},
		Validation: types.Validation{Valid: true},
	}
	result.Clamp()
	return result
}

// extractEntities pulls model names, metric names, numeric thresholds, and
// time-range mentions out of the request text.
func extractEntities(request string) types.Entities {
	lowered := strings.ToLower(request)
	var entities types.Entities

	for _, match := range modelPattern.FindAllStringSubmatch(request, -1) {
		name := match[1]
		if name == "" {
			name = match[2]
		}
		if name != "" && !contains(entities.Models, name) {
			entities.Models = append(entities.Models, name)
		}
	}

	for _, metric := range knownMetrics {
		if strings.Contains(lowered, metric) {
			entities.Metrics = append(entities.Metrics, metric)
		}
	}

	for _, match := range percentPattern.FindAllStringSubmatch(request, -1) {
		if v, err := strconv.ParseFloat(match[1], 64); err == nil {
			entities.Thresholds = append(entities.Thresholds, v)
		}
	}
	for _, match := range thresholdPattern.FindAllStringSubmatch(request, -1) {
		if v, err := strconv.ParseFloat(match[1], 64); err == nil {
			entities.Thresholds = append(entities.Thresholds, v)
		}
	}

	for _, match := range timeRangePattern.FindAllString(request, -1) {
		normalized := strings.ToLower(match)
		if !contains(entities.TimeRanges, normalized) {
			entities.TimeRanges = append(entities.TimeRanges, normalized)
		}
	}

	return entities
}

// optimizeDefault is the rule-based optimization fallback.
func optimizeDefault(request string, triage *types.StageResult) *types.StageResult {
	category := "General Inquiry"
	if triage != nil {
		category = triage.Category
	}

	summaries := map[string]string{
		"Cost Optimization":    "Review provisioned capacity against utilization and enable scheduled scale-down for idle windows.",
		"Performance Analysis": "Profile the slowest path first; check batch sizes, connection pooling, and model warm-up behavior.",
		"Model Quality":        "Compare recent evaluation scores against the release baseline and schedule a drift check.",
		"Incident Response":    "Correlate the failure window with recent deploys and roll back the most recent change if it aligns.",
		"Capacity Planning":    "Project demand from the trailing four weeks of traffic and provision 20% headroom.",
	}
	summary, ok := summaries[category]
	if !ok {
		summary = "Gather the relevant metrics for this request before committing to an optimization."
	}

	result := classify(request)
	result.Summary = summary
	result.Confidence = result.Confidence * 0.8
	result.Clamp()
	return result
}

// planDefault is the rule-based planning fallback: ranked tools from the
// category table, parameterized with extracted entities.
func planDefault(request string, triage *types.StageResult) *types.StageResult {
	category := "General Inquiry"
	entities := extractEntities(request)
	if triage != nil {
		category = triage.Category
		entities = triage.Entities
	}

	tools := categoryTools[category]
	if len(tools) == 0 {
		tools = categoryTools["General Inquiry"]
	}

	recommendations := make([]types.ToolRecommendation, len(tools))
	for i, tool := range tools {
		recommendations[i] = types.ToolRecommendation{
			Name:       tool.Name,
			Relevance:  tool.Relevance,
			Parameters: toolParameters(entities),
		}
	}

	result := &types.StageResult{
		Category:   category,
		Confidence: 0.5,
		Tools:      recommendations,
		Intent: types.Intent{
			Primary:        categoryIntents[category],
			ActionRequired: true,
		},
		Validation: types.Validation{Valid: true},
	}
	result.Clamp()
	return result
}

func toolParameters(entities types.Entities) map[string]string {
	params := make(map[string]string)
	if len(entities.Models) > 0 {
		params["model"] = entities.Models[0]
	}
	if len(entities.Metrics) > 0 {
		params["metric"] = entities.Metrics[0]
	}
	if len(entities.TimeRanges) > 0 {
		params["time_range"] = entities.TimeRanges[0]
	}
	if len(params) == 0 {
		return nil
	}
	return params
}

// reportDefault is the rule-based reporting fallback: a deterministic
// summary assembled from whatever slots the record has.
func reportDefault(rec *types.ExecutionRecord) *types.StageResult {
	var sb strings.Builder
	category := "General Inquiry"
	confidence := 0.4

	if triage := rec.Result(StageTriage); triage != nil {
		category = triage.Category
		confidence = triage.Confidence
		fmt.Fprintf(&sb, "Request classified as %s (priority %s, confidence %.2f).\n",
			triage.Category, triage.Priority, triage.Confidence)
	}
	if opt := rec.Result(StageOptimize); opt != nil && opt.Summary != "" {
		fmt.Fprintf(&sb, "Recommendation: %s\n", opt.Summary)
	}
	if plan := rec.Result(StagePlan); plan != nil && len(plan.Tools) > 0 {
		names := make([]string, len(plan.Tools))
		for i, tool := range plan.Tools {
			names[i] = tool.Name
		}
		fmt.Fprintf(&sb, "Suggested tools: %s.\n", strings.Join(names, ", "))
	}
	if sb.Len() == 0 {
		sb.WriteString("No stage produced usable output for this request.")
	}

	result := &types.StageResult{
		Category:   category,
		Confidence: confidence,
		Summary:    sb.String(),
		Validation: types.Validation{Valid: true},
	}
	result.Clamp()
	return result
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
