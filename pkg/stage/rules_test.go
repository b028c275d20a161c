// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teradata-labs/weft/pkg/types"
)

func TestClassifyByKeywords(t *testing.T) {
	tests := []struct {
		request  string
		category string
	}{
		{"our billing spend is way too expensive", "Cost Optimization"},
		{"p99 latency is slow and requests timeout", "Performance Analysis"},
		{"model accuracy and recall dropped after retraining", "Model Quality"},
		{"the inference service is down, total outage", "Incident Response"},
		{"forecast traffic and provision more capacity", "Capacity Planning"},
		{"what does this dashboard mean?", "General Inquiry"},
	}
	for _, tt := range tests {
		result := classify(tt.request)
		assert.Equal(t, tt.category, result.Category, "request: %s", tt.request)
		assert.GreaterOrEqual(t, result.Confidence, 0.0)
		assert.LessOrEqual(t, result.Confidence, 1.0)
		assert.True(t, result.Validation.Valid)
	}
}

func TestClassifyUrgencyEscalatesPriority(t *testing.T) {
	urgent := classify("URGENT: costs exploded overnight")
	assert.Equal(t, types.PriorityCritical, urgent.Priority)

	calm := classify("could we review our spend next quarter")
	assert.NotEqual(t, types.PriorityCritical, calm.Priority)
}

func TestClassifySecondaryCategoriesAndComplexity(t *testing.T) {
	result := classify("latency is slow and our costs are expensive, plus accuracy drift")
	assert.NotEmpty(t, result.SecondaryCategories)
	assert.Equal(t, types.ComplexityComplex, result.Complexity)
}

func TestClassifyActionRequired(t *testing.T) {
	assert.True(t, classify("fix the latency regression").Intent.ActionRequired)
	assert.False(t, classify("what is our current latency?").Intent.ActionRequired)
}

func TestExtractEntities(t *testing.T) {
	entities := extractEntities("ranker-v2 accuracy fell below 0.9, about 12% worse over the last 7 days")

	assert.Contains(t, entities.Models, "ranker-v2")
	assert.Contains(t, entities.Metrics, "accuracy")
	assert.Contains(t, entities.Thresholds, 0.9)
	assert.Contains(t, entities.Thresholds, 12.0)
	assert.Contains(t, entities.TimeRanges, "last 7 days")
}

func TestExtractEntitiesEmpty(t *testing.T) {
	entities := extractEntities("hello there")
	assert.Empty(t, entities.Models)
	assert.Empty(t, entities.Metrics)
	assert.Empty(t, entities.Thresholds)
	assert.Empty(t, entities.TimeRanges)
}

func TestOptimizeDefaultUsesTriageCategory(t *testing.T) {
	triage := &types.StageResult{Category: "Capacity Planning"}
	result := optimizeDefault("scale for the launch", triage)

	assert.NotEmpty(t, result.Summary)
	assert.Contains(t, result.Summary, "headroom")
}

func TestPlanDefaultRanksTools(t *testing.T) {
	triage := &types.StageResult{
		Category: "Model Quality",
		Entities: types.Entities{Models: []string{"ranker-v2"}, Metrics: []string{"accuracy"}},
	}
	result := planDefault("is ranker-v2 drifting?", triage)

	require.NotEmpty(t, result.Tools)
	assert.Equal(t, "drift_detector", result.Tools[0].Name)
	for i := 1; i < len(result.Tools); i++ {
		assert.GreaterOrEqual(t, result.Tools[i-1].Relevance, result.Tools[i].Relevance)
	}
	assert.Equal(t, "ranker-v2", result.Tools[0].Parameters["model"])
}

func TestPlanDefaultUnknownCategoryFallsBack(t *testing.T) {
	result := planDefault("anything", &types.StageResult{Category: "Nonexistent"})
	require.NotEmpty(t, result.Tools)
	assert.Equal(t, "metrics_dashboard", result.Tools[0].Name)
}

func TestReportDefaultComposesFromSlots(t *testing.T) {
	rec := types.NewExecutionRecord("run-1", "user-1", "request")
	rec = rec.WithResult(StageTriage, &types.StageResult{
		Category: "Incident Response", Confidence: 0.8, Priority: types.PriorityCritical,
	})
	rec = rec.WithResult(StagePlan, &types.StageResult{
		Tools: []types.ToolRecommendation{{Name: "incident_playbook"}},
	})

	result := reportDefault(rec)
	assert.Contains(t, result.Summary, "Incident Response")
	assert.Contains(t, result.Summary, "incident_playbook")
	assert.Equal(t, 0.8, result.Confidence)
}

func TestReportDefaultEmptyRecord(t *testing.T) {
	rec := types.NewExecutionRecord("run-1", "user-1", "request")
	result := reportDefault(rec)
	assert.NotEmpty(t, result.Summary)
}
