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

const triagePromptTemplate = `You are a triage analyst for an LLM operations platform.
Classify the following request and respond with a single JSON object containing:
category, secondary_categories, confidence (0..1), priority (low|medium|high|critical),
complexity (simple|moderate|complex), entities (models, metrics, thresholds, time_ranges),
and intent (primary, secondary, action_required).

Request:
%s`

// Triage classifies the incoming request. It is the only stage that consults
// the response cache keyed on the bare request fingerprint, so repeated
// requests skip the model entirely.
type Triage struct {
	base
}

// NewTriage creates the triage stage and registers its rule-based
// compensation with the resilience engine.
func NewTriage(deps Deps) *Triage {
	deps = deps.withDefaults()
	t := &Triage{base: base{name: StageTriage, kind: resilience.KindClassification, deps: deps}}
	deps.Engine.RegisterCompensation(resilience.KindClassification,
		func(_ context.Context, request string, _ error) (*types.StageResult, error) {
			return classify(request), nil
		})
	return t
}

// Ready implements Stage. Triage only needs a non-empty request.
func (t *Triage) Ready(rec *types.ExecutionRecord) error {
	return requireSlot(rec, "")
}

// Execute implements Stage.
func (t *Triage) Execute(ctx Context, rec *types.ExecutionRecord) (any, error) {
	start := time.Now()
	key := t.cacheKey(rec)

	if cached, ok := t.fromCache(ctx, key); ok {
		t.deps.Logger.Debug("triage cache hit",
			zap.String("run_id", ctx.RunID()),
			zap.String("key", key))
		return finish(cached, start), nil
	}

	if ctx.StreamUpdates() {
		_ = ctx.Emitter().StageThinking(t.name, "classifying request")
	}

	prompt := fmt.Sprintf(triagePromptTemplate, rec.Request)
	result, err := t.generate(ctx, rec, prompt, func() *types.StageResult {
		return classify(rec.Request)
	})
	if err != nil {
		return nil, err
	}

	t.store(ctx, key, result)
	return finish(result, start), nil
}
