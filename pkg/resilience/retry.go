// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package resilience provides the uniform retry/fallback contract every
// pipeline stage operation relies on. Operations are retried with exponential
// backoff; once attempts are exhausted, a kind-specific compensation produces
// a usable, explicitly-marked degraded result instead of raising. Only a
// failing compensation escalates.
package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/teradata-labs/weft/pkg/types"
	"go.uber.org/zap"
)

// Kind identifies the class of operation being protected, and selects which
// compensation runs when retries are exhausted.
type Kind string

const (
	KindClassification Kind = "classification"
	KindOptimization   Kind = "optimization"
	KindPlanning       Kind = "planning"
	KindReporting      Kind = "reporting"
)

// Disposition is the final outcome recorded for an operation.
type Disposition string

const (
	// DispositionSucceeded means a primary attempt returned a result.
	DispositionSucceeded Disposition = "succeeded"

	// DispositionCompensated means retries were exhausted and the
	// kind-specific compensation supplied the result.
	DispositionCompensated Disposition = "exhausted_to_fallback"
)

// AttemptRecord captures one protected operation for metrics.
type AttemptRecord struct {
	Operation   string
	Kind        Kind
	Attempts    int
	LastError   string
	Delay       time.Duration
	Disposition Disposition
	Elapsed     time.Duration
}

// Operation is a stage operation protected by the engine.
type Operation func(ctx context.Context) (*types.StageResult, error)

// CompensationFunc produces the degraded result for an exhausted operation.
// It receives the original request text so rule-based defaults can classify
// without the model.
type CompensationFunc func(ctx context.Context, request string, cause error) (*types.StageResult, error)

// ErrorReporter receives compensation failures, the single fatal path in the
// pipeline. It is an explicitly injected collaborator so tests can substitute
// a fake without touching global state.
type ErrorReporter interface {
	Report(ctx context.Context, operation string, err error)
}

// ZapReporter logs reported errors through a zap logger.
type ZapReporter struct {
	Logger *zap.Logger
}

func (r *ZapReporter) Report(_ context.Context, operation string, err error) {
	r.Logger.Error("compensation failed",
		zap.String("operation", operation),
		zap.Error(err))
}

// Config controls retry behavior. Zero values take defaults.
type Config struct {
	// MaxAttempts is the total number of primary attempts (default 3)
	MaxAttempts int

	// InitialDelay is the first backoff delay (default 200ms)
	InitialDelay time.Duration

	// MaxDelay caps the backoff delay (default 5s)
	MaxDelay time.Duration

	// Multiplier grows the delay between attempts (default 2.0)
	Multiplier float64
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 200 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.Multiplier <= 1 {
		c.Multiplier = 2.0
	}
	return c
}

// Engine wraps stage operations with bounded retry, backoff, and per-kind
// compensation. Safe for concurrent use by multiple runs.
type Engine struct {
	mu            sync.Mutex
	config        Config
	compensations map[Kind]CompensationFunc
	reporter      ErrorReporter
	logger        *zap.Logger
	attempts      []AttemptRecord
}

// NewEngine creates a retry engine. A nil reporter logs through the logger; a
// nil logger is replaced with a nop.
func NewEngine(config Config, reporter ErrorReporter, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reporter == nil {
		reporter = &ZapReporter{Logger: logger}
	}
	return &Engine{
		config:        config.withDefaults(),
		compensations: make(map[Kind]CompensationFunc),
		reporter:      reporter,
		logger:        logger,
	}
}

// WithMaxAttempts returns a derived engine sharing the reporter and logger
// but carrying its own attempt budget and compensation registry. Used for
// per-stage retry overrides.
func (e *Engine) WithMaxAttempts(n int) *Engine {
	e.mu.Lock()
	cfg := e.config
	e.mu.Unlock()

	if n > 0 {
		cfg.MaxAttempts = n
	}
	return &Engine{
		config:        cfg,
		compensations: make(map[Kind]CompensationFunc),
		reporter:      e.reporter,
		logger:        e.logger,
	}
}

// RegisterCompensation installs the fallback for an operation kind.
func (e *Engine) RegisterCompensation(kind Kind, fn CompensationFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compensations[kind] = fn
}

// Do executes op with retry and fallback.
//
// State machine: ATTEMPTING → (SUCCESS | RETRY → ATTEMPTING | EXHAUSTED →
// COMPENSATING → (COMPENSATED | FATAL)). No new attempt is scheduled once ctx
// is cancelled. The returned error is non-nil only when compensation itself
// failed, after the failure has been reported.
func (e *Engine) Do(ctx context.Context, kind Kind, operation, request string, op Operation) (*types.StageResult, error) {
	start := time.Now()
	delay := e.config.InitialDelay

	var lastErr error
	attemptsMade := 0

	for attempt := 0; attempt < e.config.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			if lastErr == nil {
				lastErr = ctx.Err()
			}
			break
		}

		attemptsMade++
		result, err := op(ctx)
		if err == nil {
			if attempt > 0 {
				e.logger.Info("operation retry succeeded",
					zap.String("operation", operation),
					zap.Int("attempt", attempt+1))
			}
			result.Meta.RetryCount = attempt
			result.Clamp()
			e.record(AttemptRecord{
				Operation:   operation,
				Kind:        kind,
				Attempts:    attemptsMade,
				Disposition: DispositionSucceeded,
				Elapsed:     time.Since(start),
			})
			return result, nil
		}
		lastErr = err

		if attempt >= e.config.MaxAttempts-1 {
			break
		}

		e.logger.Warn("operation failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", e.config.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			// Cancellation observed: fall through to compensation
			// without scheduling another attempt.
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * e.config.Multiplier)
		if delay > e.config.MaxDelay {
			delay = e.config.MaxDelay
		}
	}

	return e.compensate(ctx, kind, operation, request, lastErr, attemptsMade, start)
}

func (e *Engine) compensate(ctx context.Context, kind Kind, operation, request string, cause error, attemptsMade int, start time.Time) (*types.StageResult, error) {
	e.mu.Lock()
	fn := e.compensations[kind]
	e.mu.Unlock()

	record := AttemptRecord{
		Operation:   operation,
		Kind:        kind,
		Attempts:    attemptsMade,
		Disposition: DispositionCompensated,
	}
	if cause != nil {
		record.LastError = cause.Error()
	}

	if fn == nil {
		err := fmt.Errorf("no compensation registered for kind %q (operation %s): %w", kind, operation, cause)
		e.reporter.Report(ctx, operation, err)
		record.Elapsed = time.Since(start)
		e.record(record)
		return nil, err
	}

	e.logger.Warn("retries exhausted, compensating",
		zap.String("operation", operation),
		zap.String("kind", string(kind)),
		zap.Int("attempts", attemptsMade),
		zap.Error(cause))

	result, err := fn(ctx, request, cause)
	if err != nil {
		wrapped := fmt.Errorf("compensation for %s failed: %w", operation, err)
		e.reporter.Report(ctx, operation, wrapped)
		record.Elapsed = time.Since(start)
		e.record(record)
		return nil, wrapped
	}

	result.Meta.FallbackUsed = true
	if attemptsMade > 0 {
		result.Meta.RetryCount = attemptsMade - 1
	}
	if cause != nil && result.Meta.Error == "" {
		result.Meta.Error = cause.Error()
	}
	result.Clamp()

	record.Elapsed = time.Since(start)
	e.record(record)
	return result, nil
}

func (e *Engine) record(r AttemptRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attempts = append(e.attempts, r)
}

// Attempts returns a copy of the recorded attempt metrics.
func (e *Engine) Attempts() []AttemptRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]AttemptRecord, len(e.attempts))
	copy(out, e.attempts)
	return out
}

// Reset clears the recorded attempt metrics.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attempts = nil
}
