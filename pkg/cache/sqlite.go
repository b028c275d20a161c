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

package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/teradata-labs/weft/pkg/types"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store with SQLite persistence and a GC loop that
// removes expired rows.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger

	stopGC chan struct{}
	gcDone chan struct{}
}

// NewSQLiteStore creates a SQLite-backed cache store at dbPath. gcInterval
// controls how often expired entries are collected (default 5 minutes).
func NewSQLiteStore(dbPath string, gcInterval time.Duration, logger *zap.Logger) (*SQLiteStore, error) {
	if gcInterval <= 0 {
		gcInterval = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency across runs
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		logger: logger,
		stopGC: make(chan struct{}),
		gcDone: make(chan struct{}),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	go store.gcLoop(gcInterval)
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS request_cache (
		key TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		expires_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_request_cache_expires_at ON request_cache(expires_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*types.StageResult, bool) {
	var data []byte
	var expiresAt int64

	row := s.db.QueryRowContext(ctx, "SELECT data, expires_at FROM request_cache WHERE key = ?", key)
	if err := row.Scan(&data, &expiresAt); err != nil {
		if err != sql.ErrNoRows {
			s.logger.Warn("cache read failed, treating as miss",
				zap.String("key", key),
				zap.Error(err))
		}
		return nil, false
	}

	if time.Now().Unix() >= expiresAt {
		return nil, false
	}

	var result types.StageResult
	if err := json.Unmarshal(data, &result); err != nil {
		s.logger.Warn("cache deserialize failed, treating as miss",
			zap.String("key", key),
			zap.Error(err))
		return nil, false
	}
	return &result, true
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, key string, result *types.StageResult, ttl time.Duration) {
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

	expiresAt := time.Now().Add(ttl).Unix()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO request_cache (key, data, expires_at) VALUES (?, ?, ?) "+
			"ON CONFLICT(key) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at",
		key, data, expiresAt)
	if err != nil {
		s.logger.Warn("cache write failed, skipping put",
			zap.String("key", key),
			zap.Error(err))
	}
}

// Close stops the GC loop and closes the database.
func (s *SQLiteStore) Close() error {
	close(s.stopGC)
	<-s.gcDone
	return s.db.Close()
}

func (s *SQLiteStore) gcLoop(interval time.Duration) {
	defer close(s.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			res, err := s.db.Exec("DELETE FROM request_cache WHERE expires_at <= ?", time.Now().Unix())
			if err != nil {
				s.logger.Warn("cache gc failed", zap.Error(err))
				continue
			}
			if removed, err := res.RowsAffected(); err == nil && removed > 0 {
				s.logger.Debug("cache gc", zap.Int64("removed", removed))
			}
		}
	}
}
