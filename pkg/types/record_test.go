// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithResultDoesNotMutateReceiver(t *testing.T) {
	rec := NewExecutionRecord("run-1", "user-1", "why is latency up?")

	updated := rec.WithResult("triage", &StageResult{Category: "Performance Analysis"})

	assert.Nil(t, rec.Result("triage"), "original record must be unchanged")
	assert.Zero(t, rec.Steps)
	require.NotNil(t, updated.Result("triage"))
	assert.Equal(t, 1, updated.Steps)
}

func TestWithResultAdvancesStepsMonotonically(t *testing.T) {
	rec := NewExecutionRecord("run-1", "user-1", "request")
	rec = rec.WithResult("triage", &StageResult{Category: "A"})
	rec = rec.WithResult("optimize", &StageResult{Category: "B"})
	rec = rec.WithResult("plan", &StageResult{Category: "C"})

	assert.Equal(t, 3, rec.Steps)
	assert.Len(t, rec.Results, 3)
}

func TestWithTagAndRetryCount(t *testing.T) {
	rec := NewExecutionRecord("run-1", "user-1", "request")
	rec = rec.WithTag("source", "api").WithRetryCount("triage", 2)

	assert.Equal(t, "api", rec.Meta.Tags["source"])
	assert.Equal(t, 2, rec.Meta.RetryCounts["triage"])
}

func TestMergePrefersIncomingSlots(t *testing.T) {
	base := NewExecutionRecord("run-1", "user-1", "request")
	base = base.WithResult("triage", &StageResult{Category: "Old"})
	base = base.WithTag("a", "1")

	incoming := NewExecutionRecord("run-1", "user-1", "request")
	incoming = incoming.WithResult("triage", &StageResult{Category: "New"})
	incoming = incoming.WithResult("optimize", &StageResult{Category: "Opt"})
	incoming = incoming.WithTag("a", "2").WithTag("b", "3")

	merged := Merge(base, incoming)

	assert.Equal(t, "New", merged.Result("triage").Category)
	assert.Equal(t, "Opt", merged.Result("optimize").Category)
	assert.Equal(t, "2", merged.Meta.Tags["a"], "incoming wins tag conflicts")
	assert.Equal(t, "3", merged.Meta.Tags["b"])
	assert.Equal(t, 2, merged.Steps, "maximum step counter wins")
}

func TestMergeKeepsBaseSlotWhenIncomingEmpty(t *testing.T) {
	base := NewExecutionRecord("run-1", "user-1", "request")
	base = base.WithResult("triage", &StageResult{Category: "Kept"})

	incoming := NewExecutionRecord("run-1", "user-1", "request")

	merged := Merge(base, incoming)
	require.NotNil(t, merged.Result("triage"))
	assert.Equal(t, "Kept", merged.Result("triage").Category)
}

func TestMergeNilOperands(t *testing.T) {
	rec := NewExecutionRecord("run-1", "user-1", "request")

	assert.Equal(t, rec.RunID, Merge(nil, rec).RunID)
	assert.Equal(t, rec.RunID, Merge(rec, nil).RunID)
}

func TestMergeTakesEarliestCreation(t *testing.T) {
	early := NewExecutionRecord("run-1", "user-1", "request")
	early.Meta.CreatedAt = time.Now().Add(-time.Hour)

	late := NewExecutionRecord("run-1", "user-1", "request")

	merged := Merge(late, early)
	assert.Equal(t, early.Meta.CreatedAt, merged.Meta.CreatedAt)
}
