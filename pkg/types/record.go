// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package types

import "time"

// RecordMeta is the metadata block attached to an execution record.
type RecordMeta struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Tags are free-form labels attached during the run
	Tags map[string]string `json:"tags,omitempty"`

	// RetryCounts tracks retries per stage name
	RetryCounts map[string]int `json:"retry_counts,omitempty"`

	// ParentRunID is a weak reference to the run this one was spawned
	// from, if any. It is never resolved by the pipeline itself.
	ParentRunID string `json:"parent_run_id,omitempty"`
}

// ExecutionRecord is the cumulative unit of work state for one request.
//
// Records are replace-not-mutate: every transition returns a new value, so a
// concurrent reader never observes a partial update. Each run owns its record
// by value and no locking is required.
type ExecutionRecord struct {
	RunID   string `json:"run_id"`
	UserID  string `json:"user_id"`
	Request string `json:"request"`

	// Results holds one optional slot per stage, keyed by stage name
	Results map[string]*StageResult `json:"results"`

	// Steps increases monotonically, once per stage completion
	Steps int `json:"steps"`

	Meta RecordMeta `json:"metadata"`
}

// NewExecutionRecord creates the record for a freshly accepted request.
func NewExecutionRecord(runID, userID, request string) *ExecutionRecord {
	now := time.Now()
	return &ExecutionRecord{
		RunID:   runID,
		UserID:  userID,
		Request: request,
		Results: make(map[string]*StageResult),
		Meta: RecordMeta{
			CreatedAt:   now,
			UpdatedAt:   now,
			Tags:        make(map[string]string),
			RetryCounts: make(map[string]int),
		},
	}
}

// Clone returns a deep copy of the record.
func (r *ExecutionRecord) Clone() *ExecutionRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Results = make(map[string]*StageResult, len(r.Results))
	for k, v := range r.Results {
		out.Results[k] = v.Clone()
	}
	out.Meta.Tags = make(map[string]string, len(r.Meta.Tags))
	for k, v := range r.Meta.Tags {
		out.Meta.Tags[k] = v
	}
	out.Meta.RetryCounts = make(map[string]int, len(r.Meta.RetryCounts))
	for k, v := range r.Meta.RetryCounts {
		out.Meta.RetryCounts[k] = v
	}
	return &out
}

// WithResult returns a new record with the stage slot filled and the step
// counter advanced. The receiver is not modified.
func (r *ExecutionRecord) WithResult(stage string, result *StageResult) *ExecutionRecord {
	out := r.Clone()
	out.Results[stage] = result.Clone()
	out.Steps++
	out.Meta.UpdatedAt = time.Now()
	return out
}

// WithTag returns a new record with the tag set.
func (r *ExecutionRecord) WithTag(key, value string) *ExecutionRecord {
	out := r.Clone()
	out.Meta.Tags[key] = value
	out.Meta.UpdatedAt = time.Now()
	return out
}

// WithRetryCount returns a new record with the stage's retry counter set.
func (r *ExecutionRecord) WithRetryCount(stage string, count int) *ExecutionRecord {
	out := r.Clone()
	out.Meta.RetryCounts[stage] = count
	out.Meta.UpdatedAt = time.Now()
	return out
}

// Result returns the stage's slot, or nil when the stage has not completed.
func (r *ExecutionRecord) Result(stage string) *StageResult {
	return r.Results[stage]
}

// Merge combines two partial records for the same run into a new record.
//
// The merged record takes the maximum step counter, unions tag maps with the
// incoming record winning conflicts, and for every stage slot prefers the
// non-empty value, favoring the incoming record when both are present.
func Merge(base, incoming *ExecutionRecord) *ExecutionRecord {
	if base == nil {
		return incoming.Clone()
	}
	if incoming == nil {
		return base.Clone()
	}

	out := base.Clone()
	if incoming.Steps > out.Steps {
		out.Steps = incoming.Steps
	}
	for k, v := range incoming.Meta.Tags {
		out.Meta.Tags[k] = v
	}
	for k, v := range incoming.Meta.RetryCounts {
		out.Meta.RetryCounts[k] = v
	}
	for stage, result := range incoming.Results {
		if result != nil {
			out.Results[stage] = result.Clone()
		}
	}
	if incoming.Meta.UpdatedAt.After(out.Meta.UpdatedAt) {
		out.Meta.UpdatedAt = incoming.Meta.UpdatedAt
	}
	if !incoming.Meta.CreatedAt.IsZero() && incoming.Meta.CreatedAt.Before(out.Meta.CreatedAt) {
		out.Meta.CreatedAt = incoming.Meta.CreatedAt
	}
	if out.Meta.ParentRunID == "" {
		out.Meta.ParentRunID = incoming.Meta.ParentRunID
	}
	return out
}
