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

// Package cache maps a normalized-request fingerprint to a previously
// computed stage result. The cache is a best-effort collaborator: store
// errors and deserialize failures are logged and treated as misses, and an
// unavailable backend simply means every stage computes fresh.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/teradata-labs/weft/pkg/types"
	"go.uber.org/zap"
)

// KeyPrefix is the cache key namespace.
const KeyPrefix = "triage:cache:"

// DefaultTTL is applied when a caller passes a non-positive TTL.
const DefaultTTL = time.Hour

// Normalize canonicalizes request text: case-folded, whitespace-collapsed.
// Requests normalizing to identical text map to the same fingerprint.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Fingerprint returns the deterministic cache fingerprint for request text.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}

// Key returns the namespaced cache key for a fingerprint.
func Key(fingerprint string) string {
	return KeyPrefix + fingerprint
}

// Store is a TTL'd result cache. Implementations must be safe for concurrent
// use by multiple runs without cross-contaminating per-key state, and must
// never surface errors through Get/Put; hit/miss is metadata, not a
// correctness concern.
type Store interface {
	// Get returns the cached result for key, or (nil, false) on miss,
	// expiry, store error, or deserialize failure.
	Get(ctx context.Context, key string) (*types.StageResult, bool)

	// Put stores the result under key for ttl, best-effort.
	Put(ctx context.Context, key string, result *types.StageResult, ttl time.Duration)

	// Close releases backend resources.
	Close() error
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store with a background expiry sweep.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	logger  *zap.Logger

	stopGC chan struct{}
	gcDone chan struct{}
}

// NewMemoryStore creates an in-memory cache store. sweepInterval controls how
// often expired entries are collected (default 5 minutes).
func NewMemoryStore(sweepInterval time.Duration, logger *zap.Logger) *MemoryStore {
	if sweepInterval <= 0 {
		sweepInterval = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		logger:  logger,
		stopGC:  make(chan struct{}),
		gcDone:  make(chan struct{}),
	}
	go s.gcLoop(sweepInterval)
	return s
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) (*types.StageResult, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}

	var result types.StageResult
	if err := json.Unmarshal(entry.data, &result); err != nil {
		s.logger.Warn("cache deserialize failed, treating as miss",
			zap.String("key", key),
			zap.Error(err))
		return nil, false
	}
	return &result, true
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, key string, result *types.StageResult, ttl time.Duration) {
	if result == nil {
		return
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	data, err := json.Marshal(result)
	if err != nil {
		s.logger.Warn("cache serialize failed, skipping put",
			zap.String("key", key),
			zap.Error(err))
		return
	}

	s.mu.Lock()
	s.entries[key] = memoryEntry{data: data, expiresAt: time.Now().Add(ttl)}
	s.mu.Unlock()
}

// Close stops the expiry sweep.
func (s *MemoryStore) Close() error {
	close(s.stopGC)
	<-s.gcDone
	return nil
}

// Len returns the number of live entries. Intended for tests and stats.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) gcLoop(interval time.Duration) {
	defer close(s.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("cache sweep", zap.Int("removed", removed))
	}
}
