// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/teradata-labs/weft/pkg/resilience"
	"github.com/teradata-labs/weft/pkg/types"
	"go.uber.org/zap"
)

const reportPromptTemplate = `You are a reporting specialist for an LLM operations platform.
Summarize the run below for the requesting user. Respond with a single JSON object
containing: category, confidence (0..1), and summary (a short plain-language report).

Request:
%s

Accumulated stage results:
%s`

// Report synthesizes the cumulative record into a user-facing summary. It is
// never cached: the same request can carry different upstream results.
type Report struct {
	base
}

// NewReport creates the reporting stage and registers its rule-based
// compensation with the resilience engine.
//
// The registered compensation only sees the request text, so it re-runs
// classification rather than reading record slots. The richer record-aware
// default applies on the extraction-failure path inside Execute.
func NewReport(deps Deps) *Report {
	deps = deps.withDefaults()
	r := &Report{base: base{name: StageReport, kind: resilience.KindReporting, deps: deps}}
	deps.Engine.RegisterCompensation(resilience.KindReporting,
		func(_ context.Context, request string, _ error) (*types.StageResult, error) {
			rec := types.NewExecutionRecord("", "", request)
			return reportDefault(rec), nil
		})
	return r
}

// Ready implements Stage. Reporting requires at least the triage result.
func (r *Report) Ready(rec *types.ExecutionRecord) error {
	return requireSlot(rec, StageTriage)
}

// Execute implements Stage.
func (r *Report) Execute(ctx Context, rec *types.ExecutionRecord) (any, error) {
	start := time.Now()

	if ctx.StreamUpdates() {
		_ = ctx.Emitter().StageThinking(r.name, "composing final report")
	}

	prompt := fmt.Sprintf(reportPromptTemplate, rec.Request, summarizeSlots(rec))
	result, err := r.generate(ctx, rec, prompt, func() *types.StageResult {
		return reportDefault(rec)
	})
	if err != nil {
		return nil, err
	}

	if triage := rec.Result(StageTriage); triage != nil &&
		(result.Category == "" || result.Category == "Unknown") {
		result.Category = triage.Category
	}
	if result.Summary == "" {
		r.deps.Logger.Debug("report returned no summary, using record default",
			zap.String("run_id", ctx.RunID()))
		result.Summary = reportDefault(rec).Summary
	}

	return finish(result, start), nil
}

// summarizeSlots renders the filled record slots as compact JSON for the
// reporting prompt, truncated to keep prompts bounded.
func summarizeSlots(rec *types.ExecutionRecord) string {
	parts := make(map[string]*types.StageResult, len(rec.Results))
	for name, result := range rec.Results {
		if result != nil && name != StageReport {
			parts[name] = result
		}
	}
	data, err := json.Marshal(parts)
	if err != nil {
		return "{}"
	}
	return truncate(string(data), 4000)
}
