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

const optimizePromptTemplate = `You are an optimization specialist for an LLM operations platform.
The request was triaged as category %q with priority %s.
Produce a single JSON object with: category, confidence (0..1), summary (the concrete
optimization recommendation), and any refined entities.

Request:
%s`

// Optimize proposes a concrete improvement for the triaged request.
type Optimize struct {
	base
}

// NewOptimize creates the optimization stage and registers its rule-based
// compensation with the resilience engine.
func NewOptimize(deps Deps) *Optimize {
	deps = deps.withDefaults()
	o := &Optimize{base: base{name: StageOptimize, kind: resilience.KindOptimization, deps: deps}}
	deps.Engine.RegisterCompensation(resilience.KindOptimization,
		func(_ context.Context, request string, _ error) (*types.StageResult, error) {
			return optimizeDefault(request, nil), nil
		})
	return o
}

// Ready implements Stage. Optimization requires a triage result.
func (o *Optimize) Ready(rec *types.ExecutionRecord) error {
	return requireSlot(rec, StageTriage)
}

// Execute implements Stage.
func (o *Optimize) Execute(ctx Context, rec *types.ExecutionRecord) (any, error) {
	start := time.Now()
	triage := rec.Result(StageTriage)
	key := o.cacheKey(rec)

	if cached, ok := o.fromCache(ctx, key); ok {
		o.deps.Logger.Debug("optimize cache hit",
			zap.String("run_id", ctx.RunID()),
			zap.String("key", key))
		return finish(cached, start), nil
	}

	if ctx.StreamUpdates() {
		_ = ctx.Emitter().StageThinking(o.name, "evaluating optimization options")
	}

	prompt := fmt.Sprintf(optimizePromptTemplate, triage.Category, triage.Priority, rec.Request)
	result, err := o.generate(ctx, rec, prompt, func() *types.StageResult {
		return optimizeDefault(rec.Request, triage)
	})
	if err != nil {
		return nil, err
	}

	// The model may not restate the classification; inherit it so the slot
	// stays coherent with triage.
	if result.Category == "" || result.Category == "Unknown" {
		result.Category = triage.Category
	}

	o.store(ctx, key, result)
	return finish(result, start), nil
}
