// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package config loads weft configuration from file, environment, and flags
// through viper. Precedence follows viper's usual order: explicit flag
// bindings, then WEFT_* environment variables, then the config file, then
// defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Resilience ResilienceConfig `mapstructure:"resilience"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	// Backend selects the store: "memory" or "sqlite"
	Backend string `mapstructure:"backend"`

	// Path is the sqlite database file; defaults under the data dir
	Path string `mapstructure:"path"`

	TTL time.Duration `mapstructure:"ttl"`
}

// ResilienceConfig configures retry behavior.
type ResilienceConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	Multiplier   float64       `mapstructure:"multiplier"`
}

// LLMConfig configures the model provider.
type LLMConfig struct {
	Provider  string        `mapstructure:"provider"`
	Model     string        `mapstructure:"model"`
	APIKey    string        `mapstructure:"api_key"`
	Endpoint  string        `mapstructure:"endpoint"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// PipelineConfig configures intake and the stage sequence.
type PipelineConfig struct {
	// MaxRequestTokens bounds accepted request size
	MaxRequestTokens int `mapstructure:"max_request_tokens"`

	// WorkflowFile optionally overrides the default stage sequence
	WorkflowFile string `mapstructure:"workflow_file"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DataDir returns the weft data directory: WEFT_DATA_DIR when set, otherwise
// ~/.weft.
func DataDir() string {
	if dir := os.Getenv("WEFT_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".weft"
	}
	return filepath.Join(home, ".weft")
}

// Load reads configuration. cfgFile may be empty, in which case the standard
// search paths apply and a missing file is not an error.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.path", filepath.Join(DataDir(), "cache.db"))
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("resilience.max_attempts", 3)
	v.SetDefault("resilience.initial_delay", 200*time.Millisecond)
	v.SetDefault("resilience.max_delay", 5*time.Second)
	v.SetDefault("resilience.multiplier", 2.0)
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("pipeline.max_request_tokens", 4096)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("weft")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(DataDir())
	}

	v.SetEnvPrefix("WEFT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if cfgFile != "" {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
