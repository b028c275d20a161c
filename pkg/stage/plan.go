// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package stage

import (
	"context"
	"fmt"
	"time"

	"github.com/teradata-labs/weft/pkg/resilience"
	"github.com/teradata-labs/weft/pkg/types"
	"go.uber.org/zap"
)

const planPromptTemplate = `You are an action planner for an LLM operations platform.
The request was triaged as category %q. Recommend the tools to run next.
Respond with a single JSON object containing: category, confidence (0..1), and tools,
an array of {"name": ..., "relevance": 0..1, "parameters": {...}} ranked by relevance.

Request:
%s`

// Plan turns the triaged, optimized request into ranked tool recommendations.
// It announces each recommended tool over the event stream.
type Plan struct {
	base
}

// NewPlan creates the planning stage and registers its rule-based
// compensation with the resilience engine.
func NewPlan(deps Deps) *Plan {
	deps = deps.withDefaults()
	p := &Plan{base: base{name: StagePlan, kind: resilience.KindPlanning, deps: deps}}
	deps.Engine.RegisterCompensation(resilience.KindPlanning,
		func(_ context.Context, request string, _ error) (*types.StageResult, error) {
			return planDefault(request, nil), nil
		})
	return p
}

// Ready implements Stage. Planning requires a triage result.
func (p *Plan) Ready(rec *types.ExecutionRecord) error {
	return requireSlot(rec, StageTriage)
}

// Execute implements Stage.
func (p *Plan) Execute(ctx Context, rec *types.ExecutionRecord) (any, error) {
	start := time.Now()
	triage := rec.Result(StageTriage)
	key := p.cacheKey(rec)

	if cached, ok := p.fromCache(ctx, key); ok {
		p.deps.Logger.Debug("plan cache hit",
			zap.String("run_id", ctx.RunID()),
			zap.String("key", key))
		p.announceTools(ctx, cached)
		return finish(cached, start), nil
	}

	if ctx.StreamUpdates() {
		_ = ctx.Emitter().StageThinking(p.name, "selecting tools")
	}

	prompt := fmt.Sprintf(planPromptTemplate, triage.Category, rec.Request)
	result, err := p.generate(ctx, rec, prompt, func() *types.StageResult {
		return planDefault(rec.Request, triage)
	})
	if err != nil {
		return nil, err
	}

	if result.Category == "" || result.Category == "Unknown" {
		result.Category = triage.Category
	}
	if len(result.Tools) == 0 {
		result.Tools = planDefault(rec.Request, triage).Tools
	}

	p.announceTools(ctx, result)
	p.store(ctx, key, result)
	return finish(result, start), nil
}

// announceTools emits a tool_executing/tool_completed pair per recommended
// tool. The plan stage evaluates recommendations rather than invoking real
// tools, so completion is immediate.
func (p *Plan) announceTools(ctx Context, result *types.StageResult) {
	for _, tool := range result.Tools {
		_ = ctx.Emitter().ToolExecuting(p.name, tool.Name)
		_ = ctx.Emitter().ToolCompleted(p.name, tool.Name, map[string]any{
			"relevance": tool.Relevance,
		})
	}
}
