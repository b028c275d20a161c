// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package orchestration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teradata-labs/weft/pkg/stage"
)

func writeWorkflow(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultWorkflow(t *testing.T) {
	wf := DefaultWorkflow()
	assert.Equal(t, []string{
		stage.StageTriage, stage.StageOptimize, stage.StagePlan, stage.StageReport,
	}, wf.Stages)
}

func TestLoadWorkflow(t *testing.T) {
	path := writeWorkflow(t, "name: short\nstages:\n  - triage\n  - report\n")

	wf, err := LoadWorkflow(path)
	require.NoError(t, err)
	assert.Equal(t, "short", wf.Name)
	assert.Equal(t, []string{"triage", "report"}, wf.Stages)
}

func TestLoadWorkflowUnknownStage(t *testing.T) {
	path := writeWorkflow(t, "stages:\n  - triage\n  - audit\n")

	_, err := LoadWorkflow(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit")
}

func TestLoadWorkflowDuplicateStage(t *testing.T) {
	path := writeWorkflow(t, "stages:\n  - triage\n  - triage\n")

	_, err := LoadWorkflow(path)
	assert.Error(t, err)
}

func TestLoadWorkflowEmpty(t *testing.T) {
	path := writeWorkflow(t, "name: empty\n")

	_, err := LoadWorkflow(path)
	assert.Error(t, err)
}

func TestLoadWorkflowMissingFile(t *testing.T) {
	_, err := LoadWorkflow(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadWorkflowRetryOverrides(t *testing.T) {
	path := writeWorkflow(t, "stages:\n  - triage\n  - report\nretries:\n  triage: 5\n")

	wf, err := LoadWorkflow(path)
	require.NoError(t, err)
	assert.Equal(t, 5, wf.Retries["triage"])
}

func TestLoadWorkflowRetryOverrideUnknownStage(t *testing.T) {
	path := writeWorkflow(t, "stages:\n  - triage\nretries:\n  audit: 5\n")

	_, err := LoadWorkflow(path)
	assert.Error(t, err)
}

func TestLoadWorkflowRetryOverrideMustBePositive(t *testing.T) {
	path := writeWorkflow(t, "stages:\n  - triage\nretries:\n  triage: 0\n")

	_, err := LoadWorkflow(path)
	assert.Error(t, err)
}

func TestResolvePreservesOrder(t *testing.T) {
	wf := Workflow{Stages: []string{stage.StageReport, stage.StageTriage}}

	stages, err := wf.Resolve(stage.Deps{})
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, stage.StageReport, stages[0].Name())
	assert.Equal(t, stage.StageTriage, stages[1].Name())
}
