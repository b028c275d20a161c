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
	"sync"
	"sync/atomic"
)

// DefaultBufferSize is the default event buffer for channel connections.
const DefaultBufferSize = 100

// ChannelConnection is an in-process Connection backed by a buffered channel.
// Sends do not block on slow consumers: when the buffer is full the event is
// dropped and counted, matching best-effort delivery semantics.
type ChannelConnection struct {
	// mu orders Send against Close so a send never races the channel close
	mu     sync.RWMutex
	ch     chan *Event
	closed bool

	dropped atomic.Int64
}

// NewChannelConnection creates a channel connection with the given buffer
// size (DefaultBufferSize when non-positive).
func NewChannelConnection(bufferSize int) *ChannelConnection {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &ChannelConnection{ch: make(chan *Event, bufferSize)}
}

// Send implements Connection.
func (c *ChannelConnection) Send(event *Event) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.ch <- event:
		return nil
	default:
		c.dropped.Add(1)
		return nil
	}
}

// Close implements Connection. Pending buffered events remain readable.
func (c *ChannelConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.ch)
	}
	return nil
}

// Events returns the receive side of the connection.
func (c *ChannelConnection) Events() <-chan *Event {
	return c.ch
}

// Dropped returns the number of events dropped due to a full buffer.
func (c *ChannelConnection) Dropped() int64 {
	return c.dropped.Load()
}
