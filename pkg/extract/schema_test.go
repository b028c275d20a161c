// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaWarningsValidMap(t *testing.T) {
	warnings := SchemaWarnings(map[string]any{
		"category":   "Cost Optimization",
		"confidence": 0.9,
	})
	assert.Empty(t, warnings)
}

func TestSchemaWarningsViolations(t *testing.T) {
	warnings := SchemaWarnings(map[string]any{
		"confidence": 1.5,
	})
	assert.NotEmpty(t, warnings, "missing category and out-of-range confidence")
}

func TestSchemaWarningsEmptyMap(t *testing.T) {
	assert.Nil(t, SchemaWarnings(map[string]any{}))
	assert.Nil(t, SchemaWarnings(nil))
}
