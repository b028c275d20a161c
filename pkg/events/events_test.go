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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(conn *ChannelConnection) []*Event {
	var out []*Event
	for {
		select {
		case event, ok := <-conn.Events():
			if !ok {
				return out
			}
			out = append(out, event)
		default:
			return out
		}
	}
}

func TestEmitterDeliversInOrder(t *testing.T) {
	pool := NewPool(nil)
	conn := NewChannelConnection(10)
	pool.Bind("user-1", "conn-1", conn)

	emitter := NewFactory(pool, nil).Emitter("user-1", "run-1", "conn-1")
	require.NoError(t, emitter.StageStarted("triage"))
	require.NoError(t, emitter.StageCompleted("triage", map[string]any{"confidence": 0.9}))
	require.NoError(t, emitter.FinalReport(map[string]any{"steps": 4}))

	got := drain(conn)
	require.Len(t, got, 3)
	assert.Equal(t, TypeStageStarted, got[0].Type)
	assert.Equal(t, TypeStageCompleted, got[1].Type)
	assert.Equal(t, TypeFinalReport, got[2].Type)

	for _, event := range got {
		assert.Equal(t, "user-1", event.UserID)
		assert.Equal(t, "run-1", event.RunID)
		assert.False(t, event.Timestamp.IsZero())
	}
	assert.Equal(t, "triage", got[0].AgentName)
}

func TestEmitterIsolationBetweenUsers(t *testing.T) {
	pool := NewPool(nil)
	connA := NewChannelConnection(10)
	connB := NewChannelConnection(10)
	pool.Bind("user-a", "conn-1", connA)
	pool.Bind("user-b", "conn-1", connB)

	factory := NewFactory(pool, nil)
	emitterA := factory.Emitter("user-a", "run-a", "conn-1")
	emitterB := factory.Emitter("user-b", "run-b", "conn-1")

	require.NoError(t, emitterA.StageStarted("triage"))
	require.NoError(t, emitterB.StageStarted("optimize"))

	gotA := drain(connA)
	gotB := drain(connB)
	require.Len(t, gotA, 1)
	require.Len(t, gotB, 1)
	assert.Equal(t, "user-a", gotA[0].UserID)
	assert.Equal(t, "triage", gotA[0].AgentName)
	assert.Equal(t, "user-b", gotB[0].UserID)
	assert.Equal(t, "optimize", gotB[0].AgentName)
}

func TestEmitterUnboundConnection(t *testing.T) {
	pool := NewPool(nil)
	emitter := NewFactory(pool, nil).Emitter("user-1", "run-1", "missing")

	err := emitter.StageStarted("triage")
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestReconnectRebindsWithoutReplay(t *testing.T) {
	pool := NewPool(nil)
	factory := NewFactory(pool, nil)

	first := NewChannelConnection(10)
	pool.Bind("user-1", "conn-1", first)
	emitter := factory.Emitter("user-1", "run-1", "conn-1")
	require.NoError(t, emitter.StageStarted("triage"))

	// Reconnect under the same conn id.
	second := NewChannelConnection(10)
	pool.Bind("user-1", "conn-1", second)

	// The old emitter still points at the first connection, which is closed.
	err := emitter.StageStarted("optimize")
	assert.ErrorIs(t, err, ErrConnectionClosed)

	// A fresh emitter reaches the new connection; nothing was replayed.
	fresh := factory.Emitter("user-1", "run-1", "conn-1")
	require.NoError(t, fresh.StageStarted("plan"))

	got := drain(second)
	require.Len(t, got, 1)
	assert.Equal(t, "plan", got[0].AgentName)
}

func TestChannelConnectionDropsWhenFull(t *testing.T) {
	conn := NewChannelConnection(1)
	require.NoError(t, conn.Send(&Event{Type: TypeStageStarted}))
	require.NoError(t, conn.Send(&Event{Type: TypeStageCompleted}))

	assert.Equal(t, int64(1), conn.Dropped())
	got := drain(conn)
	require.Len(t, got, 1)
	assert.Equal(t, TypeStageStarted, got[0].Type, "oldest event is kept, newest dropped")
}

func TestChannelConnectionCloseIdempotent(t *testing.T) {
	conn := NewChannelConnection(1)
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	assert.ErrorIs(t, conn.Send(&Event{Type: TypeStageStarted}), ErrConnectionClosed)
}

func TestPoolReleaseIgnoresReplacedConnection(t *testing.T) {
	pool := NewPool(nil)
	first := NewChannelConnection(1)
	second := NewChannelConnection(1)

	pool.Bind("user-1", "conn-1", first)
	pool.Bind("user-1", "conn-1", second)

	// The handler owning the replaced connection exits and releases; the
	// replacement must survive.
	pool.Release("user-1", "conn-1", first)

	got, ok := pool.Lookup("user-1", "conn-1")
	require.True(t, ok)
	assert.Same(t, second, got)

	pool.Release("user-1", "conn-1", second)
	_, ok = pool.Lookup("user-1", "conn-1")
	assert.False(t, ok)
}

func TestPoolDropAndClose(t *testing.T) {
	pool := NewPool(nil)
	conn := NewChannelConnection(1)
	pool.Bind("user-1", "conn-1", conn)

	pool.Drop("user-1", "conn-1")
	_, ok := pool.Lookup("user-1", "conn-1")
	assert.False(t, ok)
	assert.ErrorIs(t, conn.Send(&Event{Type: TypeStageStarted}), ErrConnectionClosed)

	other := NewChannelConnection(1)
	pool.Bind("user-2", "conn-1", other)
	require.NoError(t, pool.Close())
	_, ok = pool.Lookup("user-2", "conn-1")
	assert.False(t, ok)
}
