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

	"go.uber.org/zap"
)

// Pool maps (user id, connection id) to the live client channel. It is one
// of the two cross-run shared resources (with the request cache) and is safe
// for concurrent use; per-key state never leaks between users.
type Pool struct {
	mu sync.RWMutex

	// user id → connection id → connection
	conns map[string]map[string]Connection

	logger *zap.Logger
}

// NewPool creates an empty connection pool.
func NewPool(logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		conns:  make(map[string]map[string]Connection),
		logger: logger,
	}
}

// Bind registers conn for (userID, connID). A previous connection under the
// same key (a reconnect) is closed and discarded; buffered events on it are
// not replayed.
func (p *Pool) Bind(userID, connID string, conn Connection) {
	p.mu.Lock()
	byConn, ok := p.conns[userID]
	if !ok {
		byConn = make(map[string]Connection)
		p.conns[userID] = byConn
	}
	old := byConn[connID]
	byConn[connID] = conn
	p.mu.Unlock()

	if old != nil {
		_ = old.Close()
		p.logger.Info("connection rebound",
			zap.String("user_id", userID),
			zap.String("conn_id", connID))
	} else {
		p.logger.Debug("connection bound",
			zap.String("user_id", userID),
			zap.String("conn_id", connID))
	}
}

// Lookup returns the live connection for (userID, connID).
func (p *Pool) Lookup(userID, connID string) (Connection, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	conn, ok := p.conns[userID][connID]
	return conn, ok
}

// Drop closes and removes the connection for (userID, connID).
func (p *Pool) Drop(userID, connID string) {
	p.mu.Lock()
	conn := p.conns[userID][connID]
	delete(p.conns[userID], connID)
	if len(p.conns[userID]) == 0 {
		delete(p.conns, userID)
	}
	p.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
		p.logger.Debug("connection dropped",
			zap.String("user_id", userID),
			zap.String("conn_id", connID))
	}
}

// Release removes (userID, connID) only while it still maps to conn. A
// handler whose connection was already replaced by a reconnect must not tear
// down the replacement.
func (p *Pool) Release(userID, connID string, conn Connection) {
	p.mu.Lock()
	current := p.conns[userID][connID]
	if current != conn {
		p.mu.Unlock()
		return
	}
	delete(p.conns[userID], connID)
	if len(p.conns[userID]) == 0 {
		delete(p.conns, userID)
	}
	p.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// Close closes every connection in the pool.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, byConn := range p.conns {
		for _, conn := range byConn {
			_ = conn.Close()
		}
	}
	p.conns = make(map[string]map[string]Connection)
	return nil
}
