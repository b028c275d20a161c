// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package orchestration

import (
	"fmt"
	"os"

	"github.com/teradata-labs/weft/pkg/stage"
	"gopkg.in/yaml.v3"
)

// Workflow declares the stage sequence the supervisor runs. The default
// pipeline is triage, optimize, plan, report; a workflow file can reorder or
// drop stages but never introduces names outside the known set.
type Workflow struct {
	Name   string   `yaml:"name"`
	Stages []string `yaml:"stages"`

	// Retries overrides the engine's attempt budget per stage name.
	Retries map[string]int `yaml:"retries,omitempty"`
}

// DefaultWorkflow returns the standard four-stage pipeline.
func DefaultWorkflow() Workflow {
	return Workflow{
		Name:   "standard",
		Stages: []string{stage.StageTriage, stage.StageOptimize, stage.StagePlan, stage.StageReport},
	}
}

// LoadWorkflow reads a workflow definition from a YAML file.
func LoadWorkflow(path string) (Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Workflow{}, fmt.Errorf("read workflow file: %w", err)
	}
	var wf Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return Workflow{}, fmt.Errorf("parse workflow file %s: %w", path, err)
	}
	if err := wf.validate(); err != nil {
		return Workflow{}, fmt.Errorf("workflow file %s: %w", path, err)
	}
	return wf, nil
}

func (w Workflow) validate() error {
	if len(w.Stages) == 0 {
		return fmt.Errorf("workflow declares no stages")
	}
	known := map[string]bool{
		stage.StageTriage:   true,
		stage.StageOptimize: true,
		stage.StagePlan:     true,
		stage.StageReport:   true,
	}
	seen := make(map[string]bool, len(w.Stages))
	for _, name := range w.Stages {
		if !known[name] {
			return fmt.Errorf("unknown stage %q", name)
		}
		if seen[name] {
			return fmt.Errorf("stage %q listed twice", name)
		}
		seen[name] = true
	}
	for name, attempts := range w.Retries {
		if !known[name] {
			return fmt.Errorf("retry override for unknown stage %q", name)
		}
		if attempts <= 0 {
			return fmt.Errorf("retry override for stage %q must be positive", name)
		}
	}
	return nil
}

// Resolve maps the workflow's stage names onto constructed stages, preserving
// workflow order.
func (w Workflow) Resolve(deps stage.Deps) ([]stage.Stage, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}
	constructors := map[string]func(stage.Deps) stage.Stage{
		stage.StageTriage:   func(d stage.Deps) stage.Stage { return stage.NewTriage(d) },
		stage.StageOptimize: func(d stage.Deps) stage.Stage { return stage.NewOptimize(d) },
		stage.StagePlan:     func(d stage.Deps) stage.Stage { return stage.NewPlan(d) },
		stage.StageReport:   func(d stage.Deps) stage.Stage { return stage.NewReport(d) },
	}
	stages := make([]stage.Stage, 0, len(w.Stages))
	for _, name := range w.Stages {
		stageDeps := deps
		if attempts, ok := w.Retries[name]; ok && deps.Engine != nil {
			stageDeps.Engine = deps.Engine.WithMaxAttempts(attempts)
		}
		stages = append(stages, constructors[name](stageDeps))
	}
	return stages, nil
}
