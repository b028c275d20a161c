// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package stage implements the specialist sub-agents the supervisor
// sequences: triage, optimize, plan, and report. Each stage consumes the
// shared execution record, performs one transformation, and returns an
// updated fragment. Stages never abort the pipeline: model and formatting
// failures degrade through the resilience engine and rule-based defaults.
package stage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teradata-labs/weft/pkg/cache"
	"github.com/teradata-labs/weft/pkg/events"
	"github.com/teradata-labs/weft/pkg/extract"
	"github.com/teradata-labs/weft/pkg/llm"
	"github.com/teradata-labs/weft/pkg/resilience"
	"github.com/teradata-labs/weft/pkg/types"
	"go.uber.org/zap"
)

// ErrNotReady is wrapped by Ready when a stage's entry condition fails.
var ErrNotReady = errors.New("stage: entry condition not met")

// Context is an enhanced context.Context carrying per-run collaborators into
// a stage. The supervisor constructs one per run.
type Context interface {
	context.Context

	// RunID returns the run identifier
	RunID() string

	// UserID returns the owning user
	UserID() string

	// Emitter returns the run's event emitter (never nil; delivery may
	// still fail best-effort)
	Emitter() *events.Emitter

	// StreamUpdates reports whether the client asked for intermediate
	// progress events
	StreamUpdates() bool
}

// Stage is one pipeline step transforming the execution record.
//
// Execute returns the stage's raw output fragment: the supervisor normalizes
// it whether it is an already-typed *types.StageResult, a plain key/value
// map, or anything else.
type Stage interface {
	Name() string

	// Ready checks the stage's entry condition against the current record.
	Ready(rec *types.ExecutionRecord) error

	Execute(ctx Context, rec *types.ExecutionRecord) (any, error)
}

// Deps are the collaborators shared by all stages.
type Deps struct {
	Provider llm.Provider
	Cache    cache.Store
	Engine   *resilience.Engine
	Logger   *zap.Logger

	// CacheTTL bounds cached results (cache.DefaultTTL when zero)
	CacheTTL time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.CacheTTL <= 0 {
		d.CacheTTL = cache.DefaultTTL
	}
	if d.Engine == nil {
		d.Engine = resilience.NewEngine(resilience.Config{}, nil, d.Logger)
	}
	return d
}

// base carries the shared miss-compute-store flow.
type base struct {
	name string
	kind resilience.Kind
	deps Deps
}

func (b *base) Name() string { return b.name }

// cacheKey scopes the request fingerprint. The triage stage keys on the bare
// request fingerprint per the cache contract; downstream stages fold their
// name and the triage category into the fingerprint input because their
// output depends on more than the request text.
func (b *base) cacheKey(rec *types.ExecutionRecord) string {
	if b.name == StageTriage {
		return cache.Key(cache.Fingerprint(rec.Request))
	}
	scope := b.name
	if triage := rec.Result(StageTriage); triage != nil {
		scope += "\n" + triage.Category
	}
	return cache.Key(cache.Fingerprint(scope + "\n" + rec.Request))
}

// fromCache returns the cached result for the record, marked as a hit.
func (b *base) fromCache(ctx context.Context, key string) (*types.StageResult, bool) {
	if b.deps.Cache == nil {
		return nil, false
	}
	result, ok := b.deps.Cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	result = result.Clone()
	result.Meta.CacheHit = true
	result.Meta.RetryCount = 0
	return result, true
}

// store caches a fully successful result. Degraded results are not cached so
// a transient failure never poisons later runs.
func (b *base) store(ctx context.Context, key string, result *types.StageResult) {
	if b.deps.Cache == nil || result == nil || result.Meta.FallbackUsed {
		return
	}
	b.deps.Cache.Put(ctx, key, result, b.deps.CacheTTL)
}

// generate runs the model-call-and-extract operation under the resilience
// engine. Unparseable output is not a retryable error: it is recovered
// immediately through the stage's rule-based default, surfaced only through
// fallback_used.
func (b *base) generate(ctx Context, rec *types.ExecutionRecord, prompt string, ruleFallback func() *types.StageResult) (*types.StageResult, error) {
	op := func(opCtx context.Context) (*types.StageResult, error) {
		resp, err := b.deps.Provider.Complete(opCtx, prompt)
		if err != nil {
			return nil, fmt.Errorf("%s model call: %w", b.name, err)
		}

		m := resp.Structured
		if len(m) == 0 {
			m = extract.Extract(resp.Content)
		}
		if len(m) == 0 {
			b.deps.Logger.Debug("extraction produced nothing, using rule-based default",
				zap.String("stage", b.name))
			result := ruleFallback()
			result.Meta.FallbackUsed = true
			return result, nil
		}

		result := types.ResultFromMap(m)
		result.Validation.Warnings = append(result.Validation.Warnings, extract.SchemaWarnings(m)...)
		return result, nil
	}

	return b.deps.Engine.Do(ctx, b.kind, b.name+".generate", rec.Request, op)
}

// finish stamps execution metadata and clamps before the fragment crosses
// the stage boundary.
func finish(result *types.StageResult, start time.Time) *types.StageResult {
	result.Meta.ElapsedMs = time.Since(start).Milliseconds()
	result.Clamp()
	return result
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func requireSlot(rec *types.ExecutionRecord, stage string) error {
	if rec == nil || strings.TrimSpace(rec.Request) == "" {
		return fmt.Errorf("%w: empty request", ErrNotReady)
	}
	if stage != "" && rec.Result(stage) == nil {
		return fmt.Errorf("%w: missing %s result", ErrNotReady, stage)
	}
	return nil
}
