// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/teradata-labs/weft/internal/log"
	"github.com/teradata-labs/weft/pkg/cache"
	"github.com/teradata-labs/weft/pkg/config"
	"github.com/teradata-labs/weft/pkg/events"
	"github.com/teradata-labs/weft/pkg/llm"
	"github.com/teradata-labs/weft/pkg/llm/anthropic"
	"github.com/teradata-labs/weft/pkg/orchestration"
	"github.com/teradata-labs/weft/pkg/resilience"
	"github.com/teradata-labs/weft/pkg/stage"
	"go.uber.org/zap"
)

// runtime is the fully wired pipeline shared by the serve and run commands.
type runtime struct {
	cfg        *config.Config
	logger     *zap.Logger
	store      cache.Store
	pool       *events.Pool
	supervisor *orchestration.Supervisor
}

func newRuntime(cfgFile string) (*runtime, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	logger, err := log.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	engine := resilience.NewEngine(resilience.Config{
		MaxAttempts:  cfg.Resilience.MaxAttempts,
		InitialDelay: cfg.Resilience.InitialDelay,
		MaxDelay:     cfg.Resilience.MaxDelay,
		Multiplier:   cfg.Resilience.Multiplier,
	}, nil, logger)

	workflow := orchestration.DefaultWorkflow()
	if cfg.Pipeline.WorkflowFile != "" {
		workflow, err = orchestration.LoadWorkflow(cfg.Pipeline.WorkflowFile)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	stages, err := workflow.Resolve(stage.Deps{
		Provider: provider,
		Cache:    store,
		Engine:   engine,
		Logger:   logger,
		CacheTTL: cfg.Cache.TTL,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	pool := events.NewPool(logger)
	factory := events.NewFactory(pool, logger)
	validator := orchestration.NewValidator(cfg.Pipeline.MaxRequestTokens)

	return &runtime{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		pool:       pool,
		supervisor: orchestration.NewSupervisor(stages, factory, validator, logger),
	}, nil
}

func (rt *runtime) close() {
	_ = rt.pool.Close()
	_ = rt.store.Close()
	_ = rt.logger.Sync()
}

func buildStore(cfg *config.Config, logger *zap.Logger) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case "", "memory":
		return cache.NewMemoryStore(0, logger), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Cache.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
		return cache.NewSQLiteStore(cfg.Cache.Path, 0, logger)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

func buildProvider(cfg *config.Config) (llm.Provider, error) {
	switch cfg.LLM.Provider {
	case "", "anthropic":
		return anthropic.NewClient(anthropic.Config{
			APIKey:    cfg.LLM.APIKey,
			Model:     cfg.LLM.Model,
			Endpoint:  cfg.LLM.Endpoint,
			MaxTokens: cfg.LLM.MaxTokens,
			Timeout:   cfg.LLM.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
