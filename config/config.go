/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package config loads workspace settings from a .env file, an optional
// YAML config file and WORKSPACE_ environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	workspace "github.com/suparena/workspace"
	"github.com/suparena/workspace/datastore/ddb"
	"github.com/suparena/workspace/errors"
	"github.com/suparena/workspace/policy"
	"github.com/suparena/workspace/registry"
)

// EnvPrefix prefixes every environment override, e.g. WORKSPACE_DDB_TABLE.
const EnvPrefix = "WORKSPACE"

// Config holds workspace configuration.
type Config struct {
	Name   string       `mapstructure:"name" yaml:"name"`
	DDB    DDBConfig    `mapstructure:"ddb" yaml:"ddb"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
	Policy PolicyConfig `mapstructure:"policy" yaml:"policy"`
}

// DDBConfig holds DynamoDB settings.
type DDBConfig struct {
	Table     string `mapstructure:"table" yaml:"table"`
	Region    string `mapstructure:"region" yaml:"region"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"-"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// PolicyConfig points at an optional initialization policy document.
type PolicyConfig struct {
	File string `mapstructure:"file" yaml:"file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("name", "workspace")
	v.SetDefault("ddb.table", "")
	v.SetDefault("ddb.region", "us-east-1")
	v.SetDefault("ddb.endpoint", "")
	v.SetDefault("ddb.access_key", "")
	v.SetDefault("ddb.secret_key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("policy.file", "")
}

// Load reads configuration. A .env file in the working directory is loaded
// first when present; path names an optional YAML file. Env var overrides
// use prefix WORKSPACE_ and win over the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return errors.NewValidationError("log.format", fmt.Sprintf("must be text or json, got %q", c.Log.Format))
	}
	if c.DDB.AccessKey != "" && c.DDB.SecretKey == "" {
		return errors.NewValidationError("ddb.secret_key", "required when ddb.access_key is set")
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, errors.NewValidationError("log.level", fmt.Sprintf("unknown level %q", s))
	}
	return level, nil
}

// Logger builds the configured logger.
func (c *Config) Logger() *workspace.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	if strings.EqualFold(c.Log.Format, "json") {
		return workspace.NewJSONLogger(level)
	}
	return workspace.NewTextLogger(level)
}

// ClientConfig returns the DynamoDB client settings.
func (c *Config) ClientConfig() ddb.ClientConfig {
	return ddb.ClientConfig{
		Region:    c.DDB.Region,
		Endpoint:  c.DDB.Endpoint,
		AccessKey: c.DDB.AccessKey,
		SecretKey: c.DDB.SecretKey,
	}
}

// ApplyPolicy loads the configured policy document, if any, onto b.
func (c *Config) ApplyPolicy(reg *registry.Registry, b policy.Builder) (policy.Builder, error) {
	if c.Policy.File == "" {
		return b, nil
	}
	doc, err := policy.LoadDocument(c.Policy.File)
	if err != nil {
		return b, err
	}
	return doc.Apply(reg, b)
}

// Options returns the workspace options implied by the configuration.
func (c *Config) Options() []workspace.Option {
	return []workspace.Option{
		workspace.WithName(c.Name),
		workspace.WithLogger(c.Logger()),
	}
}
