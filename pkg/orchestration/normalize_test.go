// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package orchestration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teradata-labs/weft/pkg/types"
)

func TestNormalizeTypedResultPassesThrough(t *testing.T) {
	in := &types.StageResult{Category: "A", Confidence: 1.8}
	out := normalizeOutput(in)

	assert.Same(t, in, out)
	assert.Equal(t, 1.0, out.Confidence, "pass-through still clamps")
}

func TestNormalizeValueResult(t *testing.T) {
	out := normalizeOutput(types.StageResult{Category: "B", Confidence: -0.5})
	require.NotNil(t, out)
	assert.Equal(t, "B", out.Category)
	assert.Zero(t, out.Confidence)
}

func TestNormalizeMap(t *testing.T) {
	out := normalizeOutput(map[string]any{"category": "C", "confidence": 0.4})
	assert.Equal(t, "C", out.Category)
	assert.Equal(t, 0.4, out.Confidence)
}

func TestNormalizeUnknownShapes(t *testing.T) {
	for _, input := range []any{nil, 42, "text", []string{"a"}, map[string]any{}, (*types.StageResult)(nil)} {
		out := normalizeOutput(input)
		require.NotNil(t, out)
		assert.Equal(t, "Unknown", out.Category)
		assert.True(t, out.Meta.FallbackUsed)
	}
}
