// Package config loads engine configuration from gometl.yaml.
//
// A configuration selects result types, casts and operator groups from the
// builtin catalog, tunes the conversion table and lists WebAssembly modules
// whose exports become call overloads:
//
//	types: [bool, int, double]
//	casts:
//	  - {from: int, to: double}
//	operators: [arith, compare]
//	implicit_casts: true
//	cache_size: 256
//	freeze: true
//	wasm:
//	  - path: ops.wasm
//	    prefix: "wasm."
//	    functions: [add]
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sandrolain/gometl/pkg/builtin"
	"github.com/sandrolain/gometl/pkg/cache"
	"github.com/sandrolain/gometl/pkg/types"
)

// FileNames are the names FindConfig looks for, in order.
var FileNames = []string{"gometl.yaml", "gometl.yml"}

// Config represents the top-level gometl.yaml configuration.
type Config struct {
	// Types lists builtin type names, in tag order. Defaults to bool, int, double.
	Types []string `yaml:"types,omitempty"`

	// Casts lists the builtin casts to register. Each must be in the catalog
	// and use configured types.
	Casts []Cast `yaml:"casts,omitempty"`

	// AllCasts registers every catalog cast whose types are configured.
	// Mutually exclusive with Casts.
	AllCasts bool `yaml:"all_casts,omitempty"`

	// Operators lists builtin operator groups (arith, compare, logic, print).
	// Overloads using unconfigured types are skipped.
	Operators []string `yaml:"operators,omitempty"`

	// ImplicitCasts lets call resolution insert casts. Defaults to true.
	ImplicitCasts *bool `yaml:"implicit_casts,omitempty"`

	// FoldConstants folds resolved calls whose arguments are all constant.
	FoldConstants bool `yaml:"fold_constants,omitempty"`

	// CacheSize is the resolution cache capacity. Defaults to 256.
	CacheSize int `yaml:"cache_size,omitempty"`

	// Freeze makes the conversion table read-only after set-up.
	Freeze bool `yaml:"freeze,omitempty"`

	// Debug enables debug logging.
	Debug bool `yaml:"debug,omitempty"`

	// Wasm lists WebAssembly modules whose exports are registered as calls.
	Wasm []WasmModule `yaml:"wasm,omitempty"`
}

// Cast names a builtin cast.
type Cast struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// WasmModule describes a WebAssembly module to load.
type WasmModule struct {
	// Path to the .wasm file, relative to the configuration file.
	Path string `yaml:"path"`

	// Prefix is prepended to every export name to form the call name.
	Prefix string `yaml:"prefix,omitempty"`

	// Functions is an optional whitelist of exports to register.
	// If empty, every export with a supported signature is registered.
	Functions []string `yaml:"functions,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{
		AllCasts:  true,
		Operators: builtin.GroupNames(),
	}
	cfg.setDefaults("")
	return cfg
}

// LoadConfig reads and parses a gometl.yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses gometl.yaml content from bytes.
// The path argument is used for error messages and to resolve wasm paths.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, types.Errorf(types.ErrCodeInvalidConfig, "parsing %s", path).WithCause(err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.setDefaults(path)
	return &cfg, nil
}

// FindConfig searches for gometl.yaml starting from dir and walking up to
// parent directories. It returns an empty path and nil error if none is found.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}
	for {
		for _, name := range FileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Implicit reports whether implicit casts are enabled.
func (c *Config) Implicit() bool {
	return c.ImplicitCasts == nil || *c.ImplicitCasts
}

// validate checks the configuration for semantic errors.
func (c *Config) validate(path string) error {
	typeNames := c.Types
	if len(typeNames) == 0 {
		typeNames = builtin.DefaultTypes
	}
	configured := make(map[string]bool, len(typeNames))
	for i, n := range typeNames {
		if _, ok := builtin.Spec(n); !ok {
			return invalid(path, "types[%d]: unknown type %q (have %v)", i, n, builtin.TypeNames())
		}
		if configured[n] {
			return invalid(path, "types[%d]: %q listed twice", i, n)
		}
		configured[n] = true
	}

	if c.AllCasts && len(c.Casts) > 0 {
		return invalid(path, "all_casts and casts are mutually exclusive")
	}
	for i, cast := range c.Casts {
		if cast.From == "" || cast.To == "" {
			return invalid(path, "casts[%d]: from and to are required", i)
		}
		if !configured[cast.From] || !configured[cast.To] {
			return invalid(path, "casts[%d]: %s -> %s uses an unconfigured type", i, cast.From, cast.To)
		}
		if _, ok := builtin.CastFor(cast.From, cast.To); !ok {
			return invalid(path, "casts[%d]: no builtin cast %s -> %s", i, cast.From, cast.To)
		}
	}

	for i, op := range c.Operators {
		if _, ok := builtin.Group(op); !ok {
			return invalid(path, "operators[%d]: unknown group %q (have %v)", i, op, builtin.GroupNames())
		}
	}

	if c.CacheSize < 0 {
		return invalid(path, "cache_size must not be negative, got %d", c.CacheSize)
	}

	for i, m := range c.Wasm {
		if m.Path == "" {
			return invalid(path, "wasm[%d]: path is required", i)
		}
	}
	return nil
}

func (c *Config) setDefaults(path string) {
	if len(c.Types) == 0 {
		c.Types = append([]string(nil), builtin.DefaultTypes...)
	}
	if c.ImplicitCasts == nil {
		enabled := true
		c.ImplicitCasts = &enabled
	}
	if c.CacheSize == 0 {
		c.CacheSize = cache.DefaultCapacity
	}
	dir := filepath.Dir(path)
	for i := range c.Wasm {
		if path != "" && !filepath.IsAbs(c.Wasm[i].Path) {
			c.Wasm[i].Path = filepath.Join(dir, c.Wasm[i].Path)
		}
	}
}

func invalid(path, format string, args ...interface{}) error {
	return types.Errorf(types.ErrCodeInvalidConfig, "%s: %s", path, fmt.Sprintf(format, args...))
}
