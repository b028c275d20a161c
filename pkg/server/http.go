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

// Package server exposes the pipeline over HTTP: a synchronous run endpoint
// and a per-user Server-Sent Events stream for progress delivery.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/teradata-labs/weft/pkg/events"
	"github.com/teradata-labs/weft/pkg/orchestration"
	"go.uber.org/zap"
)

const heartbeatInterval = 15 * time.Second

// Config holds HTTP server settings.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server serves the run and event-stream endpoints.
type Server struct {
	supervisor *orchestration.Supervisor
	pool       *events.Pool
	logger     *zap.Logger
	httpServer *http.Server
}

// New creates the HTTP server. WriteTimeout should stay zero when SSE clients
// are expected to hold streams open.
func New(cfg Config, supervisor *orchestration.Supervisor, pool *events.Pool, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		supervisor: supervisor,
		pool:       pool,
		logger:     logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /v1/runs", s.handleRun)
	mux.HandleFunc("GET /v1/events", s.handleEvents)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// ListenAndServe blocks serving HTTP until Shutdown or a listener error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and closes all event connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	_ = s.pool.Close()
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type runRequest struct {
	UserID  string `json:"user_id"`
	Request string `json:"request"`
	ConnID  string `json:"conn_id"`
	Stream  bool   `json:"stream"`
}

// handleRun executes the pipeline synchronously. Progress events flow over
// the user's SSE stream while the request is in flight; the response body is
// the final execution record.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("user_id is required"))
		return
	}

	rec, err := s.supervisor.Run(r.Context(), orchestration.RunOptions{
		UserID:        req.UserID,
		Request:       req.Request,
		ConnID:        req.ConnID,
		StreamUpdates: req.Stream,
	})
	if err != nil {
		s.logger.Error("run failed", zap.String("user_id", req.UserID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	status := http.StatusOK
	if rec.Meta.Tags[orchestration.TagRejected] != "" {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, rec)
}

// handleEvents binds an SSE stream for (user_id, conn_id) and relays events
// until the client disconnects. Reconnecting with the same conn_id replaces
// the previous stream; missed events are not replayed.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("user_id is required"))
		return
	}
	connID := r.URL.Query().Get("conn_id")
	if connID == "" {
		connID = uuid.NewString()
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Conn-ID", connID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	conn := events.NewChannelConnection(events.DefaultBufferSize)
	s.pool.Bind(userID, connID, conn)
	defer s.pool.Release(userID, connID, conn)

	s.logger.Info("event stream opened",
		zap.String("user_id", userID),
		zap.String("conn_id", connID))

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case event, ok := <-conn.Events():
			if !ok {
				// Replaced by a reconnect or pool shutdown.
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				s.logger.Warn("event marshal failed", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
