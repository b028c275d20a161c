// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package events delivers the fixed milestone-event set to the correct
// user's live connection with isolation and reconnect resilience. Delivery is
// best-effort and never pipeline-fatal: callers may swallow send errors.
package events

import (
	"errors"
	"time"
)

// Type identifies a milestone event kind. The set is closed; within a run,
// stage_started precedes stage_completed for the same stage.
type Type string

const (
	TypeStageStarted   Type = "stage_started"
	TypeStageThinking  Type = "stage_thinking"
	TypeToolExecuting  Type = "tool_executing"
	TypeToolCompleted  Type = "tool_completed"
	TypeStageCompleted Type = "stage_completed"
	TypePartialResult  Type = "partial_result"
	TypeFinalReport    Type = "final_report"
)

// ErrConnectionClosed is returned when writing to a closed or unbound
// channel. Delivery errors never affect pipeline correctness.
var ErrConnectionClosed = errors.New("events: connection closed")

// Event is one ordered, typed milestone message.
type Event struct {
	Type      Type           `json:"type"`
	UserID    string         `json:"user_id"`
	RunID     string         `json:"run_id"`
	AgentName string         `json:"agent_name"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Connection is a live client channel. Implementations must be safe for
// concurrent use; Send must fail with ErrConnectionClosed (wrapped or bare)
// once the connection is closed.
type Connection interface {
	Send(event *Event) error
	Close() error
}
