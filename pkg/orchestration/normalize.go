// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package orchestration

import (
	"github.com/teradata-labs/weft/pkg/types"
)

// normalizeOutput coerces a stage's raw output fragment into the canonical
// result type at the supervisor boundary. Three shapes are recognized: an
// already-typed result passes through, a key/value map goes through tolerant
// conversion, and anything else becomes the explicit unknown default.
func normalizeOutput(output any) *types.StageResult {
	switch v := output.(type) {
	case *types.StageResult:
		if v == nil {
			return types.UnknownResult()
		}
		v.Clamp()
		return v
	case types.StageResult:
		v.Clamp()
		return &v
	case map[string]any:
		if len(v) == 0 {
			return types.UnknownResult()
		}
		return types.ResultFromMap(v)
	default:
		return types.UnknownResult()
	}
}
