// Package config reads the YAML run description used by cmd/run.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasishim/asyncify"
	"github.com/wippyai/wasishim/errors"
)

// Output modes for guest stdout and stderr.
const (
	OutputText = "text"
	OutputRaw  = "raw"
)

// Compression formats accepted for seeded host files.
const (
	CompressionZstd = "zstd"
	CompressionLZ4  = "lz4"
)

// KnownFeatures lists the accepted feature names.
var KnownFeatures = []string{"args", "environ", "clock", "random", "fs"}

// Config describes one guest run.
type Config struct {
	Args     []string          `yaml:"args"`
	Env      map[string]string `yaml:"env"`
	Preopens []string          `yaml:"preopens"`
	Features []string          `yaml:"features"`
	Output   string            `yaml:"output"`
	Files    []File            `yaml:"files"`
	Asyncify Asyncify          `yaml:"asyncify"`
	Log      Log               `yaml:"log"`

	// Dir resolves relative host paths. Load sets it to the config file's
	// directory.
	Dir string `yaml:"-"`
}

// File seeds one VFS entry. Exactly one of Content, Host and URL is set.
type File struct {
	Path        string `yaml:"path"`
	Content     string `yaml:"content"`
	Host        string `yaml:"host"`
	URL         string `yaml:"url"`
	Lazy        bool   `yaml:"lazy"`
	Compression string `yaml:"compression"`
}

// Asyncify overrides the suspension data region.
type Asyncify struct {
	DataAddr uint32 `yaml:"data_addr"`
	StackEnd uint32 `yaml:"stack_end"`
}

// Log configures the zap logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.Dir = filepath.Dir(path)
	return cfg, nil
}

// Parse decodes and validates YAML. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "decode yaml")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the config for consistency.
func (c *Config) Validate() error {
	for i, name := range c.Features {
		if !slices.Contains(KnownFeatures, name) {
			return errors.Config([]string{"features", strconv.Itoa(i)}, "unknown feature %q", name)
		}
	}

	switch c.Output {
	case "", OutputText, OutputRaw:
	default:
		return errors.Config([]string{"output"}, "unknown output mode %q", c.Output)
	}

	for i, p := range c.Preopens {
		if !isAbs(p) {
			return errors.Config([]string{"preopens", strconv.Itoa(i)}, "path %q is not absolute", p)
		}
	}

	for i, f := range c.Files {
		if err := f.validate(); err != nil {
			err.Path = append([]string{"files", strconv.Itoa(i)}, err.Path...)
			return err
		}
	}

	if c.Asyncify != (Asyncify{}) {
		l := c.Layout()
		if l.StackEnd <= l.StackStart() {
			return errors.Config([]string{"asyncify", "stack_end"}, "must lie past data_addr + 8")
		}
	}

	if _, err := zapcore.ParseLevel(c.level()); err != nil {
		return errors.Config([]string{"log", "level"}, "%v", err)
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return errors.Config([]string{"log", "format"}, "unknown format %q", c.Log.Format)
	}
	return nil
}

func (f File) validate() *errors.Error {
	if !isAbs(f.Path) {
		return errors.Config([]string{"path"}, "path %q is not absolute", f.Path)
	}

	sources := 0
	for _, s := range []string{f.Content, f.Host, f.URL} {
		if s != "" {
			sources++
		}
	}
	if sources != 1 {
		return errors.Config(nil, "exactly one of content, host and url must be set")
	}

	if f.Lazy && f.Content != "" {
		return errors.Config([]string{"lazy"}, "lazy requires host or url")
	}

	switch f.Compression {
	case "":
	case CompressionZstd, CompressionLZ4:
		if f.Host == "" || f.Lazy {
			return errors.Config([]string{"compression"}, "compression requires an eager host file")
		}
	default:
		return errors.Config([]string{"compression"}, "unknown compression %q", f.Compression)
	}
	return nil
}

// Layout returns the asyncify data region, filling unset fields with
// defaults.
func (c *Config) Layout() asyncify.Layout {
	l := asyncify.DefaultLayout()
	if c.Asyncify.DataAddr != 0 {
		l.DataAddr = c.Asyncify.DataAddr
	}
	if c.Asyncify.StackEnd != 0 {
		l.StackEnd = c.Asyncify.StackEnd
	}
	return l
}

// FeatureList returns the enabled feature names. Empty means all.
func (c *Config) FeatureList() []string {
	return c.Features
}

// Logger builds a zap logger from the log section. "console" uses the
// development encoder, "json" the production one.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.level())
	if err != nil {
		return nil, err
	}

	var zc zap.Config
	if c.Log.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

func (c *Config) level() string {
	if c.Log.Level == "" {
		return "warn"
	}
	return c.Log.Level
}

func isAbs(p string) bool {
	return len(p) > 0 && p[0] == '/'
}
