// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package extract

import (
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// resultSchema describes the shape stages ask the model for. Validation is
// advisory: violations become warnings on the stage result, never failures,
// because the conversion layer tolerates loose maps anyway.
const resultSchema = `{
	"type": "object",
	"properties": {
		"category": {"type": "string"},
		"secondary_categories": {"type": "array", "items": {"type": "string"}},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"priority": {"type": "string"},
		"complexity": {"type": "string"},
		"entities": {
			"type": "object",
			"properties": {
				"models": {"type": "array", "items": {"type": "string"}},
				"metrics": {"type": "array", "items": {"type": "string"}},
				"thresholds": {"type": "array", "items": {"type": "number"}},
				"time_ranges": {"type": "array", "items": {"type": "string"}}
			}
		},
		"intent": {
			"type": "object",
			"properties": {
				"primary": {"type": "string"},
				"secondary": {"type": "array", "items": {"type": "string"}},
				"action_required": {"type": "boolean"}
			}
		},
		"tool_recommendations": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"name": {"type": "string"},
					"relevance": {"type": "number"}
				},
				"required": ["name"]
			}
		}
	},
	"required": ["category"]
}`

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(resultSchema))
	})
	return schema, schemaErr
}

// SchemaWarnings validates an extracted map against the expected result shape
// and returns one warning per violation. An unavailable or failing validator
// yields no warnings; schema checking is never a correctness concern.
func SchemaWarnings(m map[string]any) []string {
	if len(m) == 0 {
		return nil
	}

	s, err := compiledSchema()
	if err != nil {
		return nil
	}

	result, err := s.Validate(gojsonschema.NewGoLoader(m))
	if err != nil || result.Valid() {
		return nil
	}

	warnings := make([]string, 0, len(result.Errors()))
	for _, violation := range result.Errors() {
		warnings = append(warnings, fmt.Sprintf("schema: %s", violation.String()))
	}
	return warnings
}
