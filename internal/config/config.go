// Package config loads the runtime configuration. The config is itself
// a bound object, so every supported document format works.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/zeusync/enginekit/internal/core/document"
	"github.com/zeusync/enginekit/internal/core/engine"
	"github.com/zeusync/enginekit/internal/core/fields"
	"github.com/zeusync/enginekit/internal/core/observability/log"
)

// DefaultInspectorAddr is where the inspector listens unless configured.
const DefaultInspectorAddr = "127.0.0.1:8090"

// Inspector configures the debugging HTTP server.
type Inspector struct {
	fields.Properties

	Enabled bool
	Addr    string
	Token   string
}

// Config is the process configuration.
type Config struct {
	LogLevel  string
	Workers   int
	Tick      time.Duration
	DataDir   string
	Entities  []string
	Inspector *Inspector
	// Systems holds one section per system name.
	Systems *document.Node

	props fields.Properties
}

// Default returns a config usable without any file.
func Default() *Config {
	opts := engine.DefaultOptions()
	c := &Config{
		LogLevel:  log.LevelInfo.String(),
		Workers:   opts.Workers,
		Tick:      opts.Tick,
		DataDir:   ".",
		Inspector: &Inspector{Addr: DefaultInspectorAddr},
		Systems:   document.NewObject(),
	}
	c.bind()
	return c
}

func (c *Config) bind() {
	p := &c.props
	fields.Bind(p, "log_level", &c.LogLevel, fields.Optional)
	fields.Bind(p, "workers", &c.Workers, fields.Optional)
	fields.Bind(p, "tick", &c.Tick, fields.Optional)
	fields.Bind(p, "data_dir", &c.DataDir, fields.Optional)
	fields.Bind(p, "entities", &c.Entities, fields.Optional)
	fields.Bind(p, "systems", &c.Systems, fields.Optional)

	fields.Bind(&c.Inspector.Properties, "enabled", &c.Inspector.Enabled, fields.Optional)
	fields.Bind(&c.Inspector.Properties, "addr", &c.Inspector.Addr, fields.Optional)
	fields.Bind(&c.Inspector.Properties, "token", &c.Inspector.Token, fields.Optional, fields.Writeonly)
	fields.BindNested(p, "inspector", c.Inspector, fields.Optional)
}

// Load reads the file at path over the defaults. Each override file is
// deep-merged over the result before it is applied, so an override only
// needs the keys it changes. An empty path starts from the defaults alone.
// Relative entity paths are resolved against data_dir.
func Load(path string, overrides ...string) (*Config, error) {
	node := document.NewObject()
	if path != "" {
		base, err := document.Load(path)
		if err != nil {
			return nil, err
		}
		node = base
	}
	for _, o := range overrides {
		override, err := document.Load(o)
		if err != nil {
			return nil, fmt.Errorf("config override: %w", err)
		}
		document.MergeInto(node, override)
	}

	c := Default()
	if err := c.Read(node); err != nil {
		if path == "" {
			path = "defaults"
		}
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// Read applies node over the current values and validates the result.
func (c *Config) Read(node *document.Node) error {
	if err := c.props.Read(node); err != nil {
		return err
	}
	return c.Validate()
}

func (c *Config) Dump(node *document.Node) error {
	return c.props.Dump(node)
}

// Validate checks values the binding layer cannot.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.Tick <= 0 {
		return fmt.Errorf("tick must be positive, got %s", c.Tick)
	}
	if c.Systems == nil || c.Systems.IsNull() {
		c.Systems = document.NewObject()
	}
	return nil
}

// Level is the parsed log level.
func (c *Config) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.LevelInfo
	}
	return level
}

// EngineOptions converts the config to engine options.
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{Workers: c.Workers, Tick: c.Tick}
}

// EntityFiles returns the descriptor paths resolved against DataDir.
func (c *Config) EntityFiles() []string {
	out := make([]string, len(c.Entities))
	for i, p := range c.Entities {
		if filepath.IsAbs(p) {
			out[i] = p
			continue
		}
		out[i] = filepath.Join(c.DataDir, p)
	}
	return out
}
