// Package config loads exprtree settings from project and user files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/thomasrohde/exprtree/pkg/evaluator"
)

const (
	// ProjectFile is looked up in the project directory.
	ProjectFile = ".exprtree.yaml"
	// UserDir holds the user config file and the default history database.
	UserDir  = ".exprtree"
	UserFile = "config.yaml"
)

// Drivers lists the database/sql driver names the history store accepts.
var Drivers = []string{"sqlite", "postgres", "mysql"}

// Budget mirrors evaluator.Budget in YAML form. Unset fields are unlimited.
type Budget struct {
	MaxIterations  *int64 `yaml:"maxIterations,omitempty"`
	TimeMs         *int64 `yaml:"timeMs,omitempty"`
	MaxCallDepth   *int64 `yaml:"maxCallDepth,omitempty"`
	MaxOutputLines *int64 `yaml:"maxOutputLines,omitempty"`
}

// Store selects the run history database.
type Store struct {
	Driver string `yaml:"driver,omitempty"`
	DSN    string `yaml:"dsn,omitempty"`
}

// Config is the merged view of a config file and the defaults.
type Config struct {
	Budget   Budget `yaml:"budget,omitempty"`
	Builtins *bool  `yaml:"builtins,omitempty"`
	Store    Store  `yaml:"store,omitempty"`

	// Path is the file the config was read from, empty for defaults.
	Path string `yaml:"-"`
}

// Error reports a config file that exists but cannot be used.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Default returns the built-in configuration: no budget limits, builtins
// enabled and no history store.
func Default() *Config {
	return &Config{}
}

// BuiltinsEnabled reports whether host builtins are registered.
func (c *Config) BuiltinsEnabled() bool {
	return c.Builtins == nil || *c.Builtins
}

// EvaluatorBudget converts the configured budget for the evaluator.
func (c *Config) EvaluatorBudget() evaluator.Budget {
	return evaluator.Budget{
		TimeMs:         c.Budget.TimeMs,
		MaxIterations:  c.Budget.MaxIterations,
		MaxCallDepth:   c.Budget.MaxCallDepth,
		MaxOutputLines: c.Budget.MaxOutputLines,
	}
}

// HistoryStore returns the configured store, falling back to a SQLite
// database in the user directory.
func (c *Config) HistoryStore() (Store, error) {
	if c.Store.Driver != "" {
		return c.Store, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return Store{}, fmt.Errorf("config: locate home directory: %w", err)
	}
	return Store{Driver: "sqlite", DSN: filepath.Join(home, UserDir, "history.db")}, nil
}

// Marshal renders the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("config: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("config: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Load reads settings with precedence: project (.exprtree.yaml) → user
// (~/.exprtree/config.yaml) → defaults. A missing file falls through to the
// next source; a file that exists but fails to decode is an error.
func Load(projectDir string) (*Config, error) {
	candidates := []string{filepath.Join(projectDir, ProjectFile)}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, UserDir, UserFile))
	}

	for _, path := range candidates {
		cfg, err := LoadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return Default(), nil
}

// LoadFile decodes a single config file. Unknown keys are rejected.
func LoadFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	cfg := Default()
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &Error{Path: path, Err: err}
	}
	if err := cfg.validate(); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	cfg.Path = path
	return cfg, nil
}

func (c *Config) validate() error {
	limits := map[string]*int64{
		"maxIterations":  c.Budget.MaxIterations,
		"timeMs":         c.Budget.TimeMs,
		"maxCallDepth":   c.Budget.MaxCallDepth,
		"maxOutputLines": c.Budget.MaxOutputLines,
	}
	for _, name := range []string{"maxIterations", "timeMs", "maxCallDepth", "maxOutputLines"} {
		if v := limits[name]; v != nil && *v < 0 {
			return fmt.Errorf("budget.%s must be non-negative, got %d", name, *v)
		}
	}

	if c.Store.Driver == "" {
		if c.Store.DSN != "" {
			return errors.New("store.dsn is set without store.driver")
		}
		return nil
	}
	known := false
	for _, d := range Drivers {
		if c.Store.Driver == d {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("unknown store driver %q (want one of %v)", c.Store.Driver, Drivers)
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver)
	}
	return nil
}
