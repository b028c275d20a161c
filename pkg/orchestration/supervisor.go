// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package orchestration sequences the specialist stages over a shared
// execution record. The supervisor owns stage ordering, output normalization,
// progress events, and the rule that a stage failure degrades the record
// instead of aborting the run.
package orchestration

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/teradata-labs/weft/pkg/events"
	"github.com/teradata-labs/weft/pkg/stage"
	"github.com/teradata-labs/weft/pkg/types"
	"go.uber.org/zap"
)

// TagRejected marks records whose request failed intake validation.
const TagRejected = "rejected"

// RunOptions identify one pipeline run.
type RunOptions struct {
	UserID  string
	Request string

	// ConnID selects the event connection registered for the user. Empty
	// means no live event delivery; the run still completes.
	ConnID string

	// StreamUpdates asks stages to emit intermediate progress events.
	StreamUpdates bool
}

// Supervisor runs the stage pipeline for one request at a time per call.
// Safe for concurrent use: each run owns its record by value.
type Supervisor struct {
	stages    []stage.Stage
	factory   *events.Factory
	validator *Validator
	logger    *zap.Logger
}

// NewSupervisor creates a supervisor over an ordered stage list. A nil
// validator accepts every request; a nil logger is replaced with a nop.
func NewSupervisor(stages []stage.Stage, factory *events.Factory, validator *Validator, logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		stages:    stages,
		factory:   factory,
		validator: validator,
		logger:    logger,
	}
}

// Run executes the full pipeline and returns the cumulative record. The
// record always comes back non-nil: validation rejections and stage failures
// are recorded as degraded slots, never as a lost run.
func (s *Supervisor) Run(ctx context.Context, opts RunOptions) (*types.ExecutionRecord, error) {
	runID := uuid.NewString()
	rec := types.NewExecutionRecord(runID, opts.UserID, opts.Request)
	emitter := s.factory.Emitter(opts.UserID, runID, opts.ConnID)

	if s.validator != nil {
		if err := s.validator.Validate(opts.Request); err != nil {
			s.logger.Warn("request rejected",
				zap.String("run_id", runID),
				zap.String("user_id", opts.UserID),
				zap.Error(err))
			rec = rec.WithTag(TagRejected, err.Error())
			rec = rec.WithResult(stage.StageTriage, types.ErrorResult(err))
			_ = emitter.FinalReport(recordPayload(rec))
			return rec, nil
		}
	}

	rec = s.runStages(ctx, rec, emitter, opts.StreamUpdates)
	_ = emitter.FinalReport(recordPayload(rec))
	return rec, nil
}

// Resume continues a partially completed run on a fresh connection. Events
// are not replayed from history; instead the supervisor re-emits a summary
// event per completed stage so the reconnected client can rebuild its view,
// then runs the remaining stages.
func (s *Supervisor) Resume(ctx context.Context, rec *types.ExecutionRecord, connID string, streamUpdates bool) (*types.ExecutionRecord, error) {
	if rec == nil {
		return nil, fmt.Errorf("resume: nil record")
	}
	emitter := s.factory.Emitter(rec.UserID, rec.RunID, connID)

	for _, st := range s.stages {
		result := rec.Result(st.Name())
		if result == nil {
			continue
		}
		_ = emitter.PartialResult(st.Name(), resultPayload(result))
		_ = emitter.StageCompleted(st.Name(), resultPayload(result))
	}

	rec = s.runStages(ctx, rec, emitter, streamUpdates)
	_ = emitter.FinalReport(recordPayload(rec))
	return rec, nil
}

// runStages executes every stage whose slot is still empty, in order.
func (s *Supervisor) runStages(ctx context.Context, rec *types.ExecutionRecord, emitter *events.Emitter, streamUpdates bool) *types.ExecutionRecord {
	for _, st := range s.stages {
		if rec.Result(st.Name()) != nil {
			continue
		}

		_ = emitter.StageStarted(st.Name())

		result := s.executeStage(ctx, st, rec, emitter, streamUpdates)
		updated := rec.WithResult(st.Name(), result)
		updated = updated.WithRetryCount(st.Name(), result.Meta.RetryCount)
		rec = types.Merge(rec, updated)

		_ = emitter.StageCompleted(st.Name(), resultPayload(result))
		_ = emitter.PartialResult(st.Name(), resultPayload(result))

		s.logger.Info("stage completed",
			zap.String("run_id", rec.RunID),
			zap.String("stage", st.Name()),
			zap.String("category", result.Category),
			zap.Float64("confidence", result.Confidence),
			zap.Bool("fallback_used", result.Meta.FallbackUsed),
			zap.Int("steps", rec.Steps))
	}
	return rec
}

// executeStage runs one stage with precondition checking, panic containment,
// and output normalization. It always returns a usable result.
func (s *Supervisor) executeStage(ctx context.Context, st stage.Stage, rec *types.ExecutionRecord, emitter *events.Emitter, streamUpdates bool) (result *types.StageResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("stage panicked",
				zap.String("run_id", rec.RunID),
				zap.String("stage", st.Name()),
				zap.Any("panic", r))
			result = types.ErrorResult(fmt.Errorf("stage %s panicked: %v", st.Name(), r))
		}
	}()

	if err := st.Ready(rec); err != nil {
		s.logger.Warn("stage entry condition failed",
			zap.String("run_id", rec.RunID),
			zap.String("stage", st.Name()),
			zap.Error(err))
		return types.ErrorResult(err)
	}

	sctx := &runContext{
		Context: ctx,
		runID:   rec.RunID,
		userID:  rec.UserID,
		emitter: emitter,
		stream:  streamUpdates,
	}

	output, err := st.Execute(sctx, rec)
	if err != nil {
		s.logger.Error("stage failed",
			zap.String("run_id", rec.RunID),
			zap.String("stage", st.Name()),
			zap.Error(err))
		return types.ErrorResult(err)
	}
	return normalizeOutput(output)
}

// runContext carries per-run collaborators into stages.
type runContext struct {
	context.Context
	runID   string
	userID  string
	emitter *events.Emitter
	stream  bool
}

func (c *runContext) RunID() string { return c.runID }

func (c *runContext) UserID() string { return c.userID }

func (c *runContext) Emitter() *events.Emitter { return c.emitter }

func (c *runContext) StreamUpdates() bool { return c.stream }

// resultPayload flattens one stage result for the event stream.
func resultPayload(result *types.StageResult) map[string]any {
	if result == nil {
		return nil
	}
	return map[string]any{
		"category":      result.Category,
		"confidence":    result.Confidence,
		"priority":      string(result.Priority),
		"summary":       result.Summary,
		"cache_hit":     result.Meta.CacheHit,
		"fallback_used": result.Meta.FallbackUsed,
		"retry_count":   result.Meta.RetryCount,
		"elapsed_ms":    result.Meta.ElapsedMs,
	}
}

// recordPayload renders the record as a generic map so the final event uses
// the record's wire field names.
func recordPayload(rec *types.ExecutionRecord) map[string]any {
	data, err := json.Marshal(rec)
	if err != nil {
		return map[string]any{"run_id": rec.RunID}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"run_id": rec.RunID}
	}
	return out
}
