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

package events

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Factory creates one Emitter per (user, run, connection) triple.
type Factory struct {
	pool   *Pool
	logger *zap.Logger
}

// NewFactory creates an emitter factory over a connection pool.
func NewFactory(pool *Pool, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{pool: pool, logger: logger}
}

// Emitter binds a new emitter to the connection registered for
// (userID, connID). On reconnect, call Emitter again to bind a fresh one to
// the new channel; the old emitter keeps pointing at the discarded
// connection and its sends fail with ErrConnectionClosed.
//
// The emitter resolves only the owning user's key; it has no visibility into
// any other user's channel.
func (f *Factory) Emitter(userID, runID, connID string) *Emitter {
	conn, _ := f.pool.Lookup(userID, connID)
	return &Emitter{
		userID: userID,
		runID:  runID,
		conn:   conn,
		logger: f.logger,
	}
}

// Emitter writes milestone events for one run to one bound connection.
// All methods are best-effort: a closed or unbound channel yields
// ErrConnectionClosed, which callers may swallow.
type Emitter struct {
	userID string
	runID  string
	conn   Connection
	logger *zap.Logger
}

// StageStarted announces that a stage began executing.
func (e *Emitter) StageStarted(stage string) error {
	return e.emit(TypeStageStarted, stage, nil)
}

// StageThinking reports intermediate stage reasoning.
func (e *Emitter) StageThinking(stage, note string) error {
	return e.emit(TypeStageThinking, stage, map[string]any{"note": note})
}

// ToolExecuting announces a tool invocation within a stage.
func (e *Emitter) ToolExecuting(stage, tool string) error {
	return e.emit(TypeToolExecuting, stage, map[string]any{"tool": tool})
}

// ToolCompleted reports a finished tool invocation.
func (e *Emitter) ToolCompleted(stage, tool string, payload map[string]any) error {
	merged := map[string]any{"tool": tool}
	for k, v := range payload {
		merged[k] = v
	}
	return e.emit(TypeToolCompleted, stage, merged)
}

// StageCompleted announces that a stage finished, with its result payload.
func (e *Emitter) StageCompleted(stage string, payload map[string]any) error {
	return e.emit(TypeStageCompleted, stage, payload)
}

// PartialResult delivers an intermediate run snapshot.
func (e *Emitter) PartialResult(stage string, payload map[string]any) error {
	return e.emit(TypePartialResult, stage, payload)
}

// FinalReport delivers the completed run record.
func (e *Emitter) FinalReport(payload map[string]any) error {
	return e.emit(TypeFinalReport, "", payload)
}

func (e *Emitter) emit(eventType Type, stage string, payload map[string]any) error {
	event := &Event{
		Type:      eventType,
		UserID:    e.userID,
		RunID:     e.runID,
		AgentName: stage,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	if e.conn == nil {
		return fmt.Errorf("emit %s for user %s: %w", eventType, e.userID, ErrConnectionClosed)
	}
	if err := e.conn.Send(event); err != nil {
		e.logger.Debug("event delivery failed",
			zap.String("type", string(eventType)),
			zap.String("user_id", e.userID),
			zap.String("run_id", e.runID),
			zap.Error(err))
		return fmt.Errorf("emit %s for user %s: %w", eventType, e.userID, err)
	}
	return nil
}
