// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package orchestration

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teradata-labs/weft/pkg/events"
	"github.com/teradata-labs/weft/pkg/stage"
	"github.com/teradata-labs/weft/pkg/types"
)

// scriptedStage returns a fixed output or misbehaves on demand.
type scriptedStage struct {
	name     string
	requires string
	output   any
	err      error
	panics   bool
	calls    int
}

func (s *scriptedStage) Name() string { return s.name }

func (s *scriptedStage) Ready(rec *types.ExecutionRecord) error {
	if s.requires != "" && rec.Result(s.requires) == nil {
		return fmt.Errorf("%w: missing %s result", stage.ErrNotReady, s.requires)
	}
	return nil
}

func (s *scriptedStage) Execute(_ stage.Context, _ *types.ExecutionRecord) (any, error) {
	s.calls++
	if s.panics {
		panic("scripted panic")
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.output, nil
}

func boundPool(t *testing.T) (*events.Pool, *events.ChannelConnection) {
	t.Helper()
	pool := events.NewPool(nil)
	conn := events.NewChannelConnection(100)
	pool.Bind("user-1", "conn-1", conn)
	return pool, conn
}

func drainEvents(conn *events.ChannelConnection) []*events.Event {
	var out []*events.Event
	for {
		select {
		case event := <-conn.Events():
			out = append(out, event)
		default:
			return out
		}
	}
}

func eventTypes(got []*events.Event) []events.Type {
	out := make([]events.Type, len(got))
	for i, event := range got {
		out[i] = event.Type
	}
	return out
}

func TestRunFillsEverySlot(t *testing.T) {
	pool, conn := boundPool(t)
	stages := []stage.Stage{
		&scriptedStage{name: "triage", output: &types.StageResult{Category: "Cost Optimization", Confidence: 0.9}},
		&scriptedStage{name: "optimize", requires: "triage", output: map[string]any{"category": "Cost Optimization", "summary": "scale down"}},
		&scriptedStage{name: "report", requires: "triage", output: &types.StageResult{Category: "Cost Optimization", Summary: "done"}},
	}
	sup := NewSupervisor(stages, events.NewFactory(pool, nil), nil, nil)

	rec, err := sup.Run(context.Background(), RunOptions{
		UserID: "user-1", Request: "cut our spend", ConnID: "conn-1",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, rec.Steps)
	assert.Len(t, rec.Results, 3)
	for _, name := range []string{"triage", "optimize", "report"} {
		require.NotNil(t, rec.Result(name), "slot %s must be filled", name)
	}
	assert.Equal(t, "scale down", rec.Result("optimize").Summary, "map output goes through tolerant conversion")
	assert.Equal(t, "user-1", rec.UserID)
	assert.NotEmpty(t, rec.RunID)

	got := drainEvents(conn)
	want := []events.Type{
		events.TypeStageStarted, events.TypeStageCompleted, events.TypePartialResult,
		events.TypeStageStarted, events.TypeStageCompleted, events.TypePartialResult,
		events.TypeStageStarted, events.TypeStageCompleted, events.TypePartialResult,
		events.TypeFinalReport,
	}
	assert.Equal(t, want, eventTypes(got))
}

func TestRunStageErrorDegradesAndContinues(t *testing.T) {
	pool, _ := boundPool(t)
	failing := &scriptedStage{name: "triage", err: errors.New("fatal compensation failure")}
	after := &scriptedStage{name: "report", output: &types.StageResult{Category: "B"}}
	sup := NewSupervisor([]stage.Stage{failing, after}, events.NewFactory(pool, nil), nil, nil)

	rec, err := sup.Run(context.Background(), RunOptions{UserID: "user-1", Request: "request", ConnID: "conn-1"})
	require.NoError(t, err)

	triage := rec.Result("triage")
	require.NotNil(t, triage)
	assert.Equal(t, "Error", triage.Category)
	assert.Zero(t, triage.Confidence)
	assert.True(t, triage.Meta.FallbackUsed)

	assert.Equal(t, 1, after.calls, "later stages still run")
	assert.Equal(t, 2, rec.Steps)
}

func TestRunStagePanicIsContained(t *testing.T) {
	pool, _ := boundPool(t)
	sup := NewSupervisor([]stage.Stage{
		&scriptedStage{name: "triage", panics: true},
	}, events.NewFactory(pool, nil), nil, nil)

	rec, err := sup.Run(context.Background(), RunOptions{UserID: "user-1", Request: "request", ConnID: "conn-1"})
	require.NoError(t, err)

	result := rec.Result("triage")
	require.NotNil(t, result)
	assert.Equal(t, "Error", result.Category)
	assert.Contains(t, result.Meta.Error, "panicked")
}

func TestRunPreconditionFailureSynthesizesError(t *testing.T) {
	pool, _ := boundPool(t)
	dependent := &scriptedStage{name: "optimize", requires: "triage", output: &types.StageResult{Category: "X"}}
	sup := NewSupervisor([]stage.Stage{dependent}, events.NewFactory(pool, nil), nil, nil)

	rec, err := sup.Run(context.Background(), RunOptions{UserID: "user-1", Request: "request", ConnID: "conn-1"})
	require.NoError(t, err)

	assert.Zero(t, dependent.calls, "execute must not run when the entry condition fails")
	result := rec.Result("optimize")
	require.NotNil(t, result)
	assert.Equal(t, "Error", result.Category)
}

func TestRunUnknownOutputShape(t *testing.T) {
	pool, _ := boundPool(t)
	sup := NewSupervisor([]stage.Stage{
		&scriptedStage{name: "triage", output: 42},
	}, events.NewFactory(pool, nil), nil, nil)

	rec, err := sup.Run(context.Background(), RunOptions{UserID: "user-1", Request: "request", ConnID: "conn-1"})
	require.NoError(t, err)

	result := rec.Result("triage")
	require.NotNil(t, result)
	assert.Equal(t, "Unknown", result.Category)
	assert.True(t, result.Meta.FallbackUsed)
}

func TestRunRejectsInvalidRequest(t *testing.T) {
	pool, conn := boundPool(t)
	triage := &scriptedStage{name: "triage", output: &types.StageResult{Category: "A"}}
	sup := NewSupervisor([]stage.Stage{triage}, events.NewFactory(pool, nil), NewValidator(0), nil)

	rec, err := sup.Run(context.Background(), RunOptions{UserID: "user-1", Request: "   ", ConnID: "conn-1"})
	require.NoError(t, err)

	assert.Zero(t, triage.calls, "no stage runs for a rejected request")
	assert.NotEmpty(t, rec.Meta.Tags[TagRejected])
	result := rec.Result("triage")
	require.NotNil(t, result)
	assert.Zero(t, result.Confidence)

	got := drainEvents(conn)
	require.Len(t, got, 1)
	assert.Equal(t, events.TypeFinalReport, got[0].Type)
}

func TestRunWithoutConnectionStillCompletes(t *testing.T) {
	pool := events.NewPool(nil)
	sup := NewSupervisor([]stage.Stage{
		&scriptedStage{name: "triage", output: &types.StageResult{Category: "A"}},
	}, events.NewFactory(pool, nil), nil, nil)

	rec, err := sup.Run(context.Background(), RunOptions{UserID: "user-1", Request: "request"})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Steps)
}

func TestResumeSkipsCompletedStagesAndReEmits(t *testing.T) {
	pool, conn := boundPool(t)
	triage := &scriptedStage{name: "triage", output: &types.StageResult{Category: "A"}}
	report := &scriptedStage{name: "report", output: &types.StageResult{Category: "A", Summary: "done"}}
	sup := NewSupervisor([]stage.Stage{triage, report}, events.NewFactory(pool, nil), nil, nil)

	partial := types.NewExecutionRecord("run-1", "user-1", "request")
	partial = partial.WithResult("triage", &types.StageResult{Category: "A", Confidence: 0.8})

	rec, err := sup.Resume(context.Background(), partial, "conn-1", false)
	require.NoError(t, err)

	assert.Zero(t, triage.calls, "completed stages are not re-executed")
	assert.Equal(t, 1, report.calls)
	assert.NotNil(t, rec.Result("report"))
	assert.Equal(t, 2, rec.Steps)

	got := eventTypes(drainEvents(conn))
	want := []events.Type{
		events.TypePartialResult, events.TypeStageCompleted, // re-emitted triage summary
		events.TypeStageStarted, events.TypeStageCompleted, events.TypePartialResult,
		events.TypeFinalReport,
	}
	assert.Equal(t, want, got)
}

// toolStage exercises the emitter plumbed through the stage context.
type toolStage struct {
	name string
}

func (s *toolStage) Name() string { return s.name }

func (s *toolStage) Ready(*types.ExecutionRecord) error { return nil }

func (s *toolStage) Execute(ctx stage.Context, _ *types.ExecutionRecord) (any, error) {
	_ = ctx.Emitter().ToolExecuting(s.name, "log_search")
	_ = ctx.Emitter().ToolCompleted(s.name, "log_search", nil)
	return &types.StageResult{Category: "Incident Response", Confidence: 0.8}, nil
}

func TestRunToolInvocationEventOrdering(t *testing.T) {
	pool, conn := boundPool(t)
	sup := NewSupervisor([]stage.Stage{&toolStage{name: "plan"}}, events.NewFactory(pool, nil), nil, nil)

	_, err := sup.Run(context.Background(), RunOptions{UserID: "user-1", Request: "service is down", ConnID: "conn-1"})
	require.NoError(t, err)

	got := eventTypes(drainEvents(conn))
	want := []events.Type{
		events.TypeStageStarted,
		events.TypeToolExecuting, events.TypeToolCompleted,
		events.TypeStageCompleted, events.TypePartialResult,
		events.TypeFinalReport,
	}
	assert.Equal(t, want, got)
}

func TestConcurrentRunsDoNotCrossDeliver(t *testing.T) {
	pool := events.NewPool(nil)
	connA := events.NewChannelConnection(100)
	connB := events.NewChannelConnection(100)
	pool.Bind("user-a", "conn-1", connA)
	pool.Bind("user-b", "conn-1", connB)

	// toolStage is stateless, safe for the two concurrent runs.
	sup := NewSupervisor([]stage.Stage{&toolStage{name: "triage"}}, events.NewFactory(pool, nil), nil, nil)

	done := make(chan error, 2)
	for _, user := range []string{"user-a", "user-b"} {
		go func(user string) {
			_, err := sup.Run(context.Background(), RunOptions{UserID: user, Request: "request", ConnID: "conn-1"})
			done <- err
		}(user)
	}
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	for _, event := range drainEvents(connA) {
		assert.Equal(t, "user-a", event.UserID)
	}
	for _, event := range drainEvents(connB) {
		assert.Equal(t, "user-b", event.UserID)
	}
}

func TestResumeNilRecord(t *testing.T) {
	pool, _ := boundPool(t)
	sup := NewSupervisor(nil, events.NewFactory(pool, nil), nil, nil)

	_, err := sup.Resume(context.Background(), nil, "conn-1", false)
	assert.Error(t, err)
}
