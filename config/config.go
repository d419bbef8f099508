// Package config holds the engine configuration and its TOML loader.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/govm-net/contractvm/gas"
	"github.com/govm-net/contractvm/repository"
	"github.com/govm-net/contractvm/security"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid config")

// Config defines configuration for contract validation and execution
type Config struct {
	// MaxCallDepth is the maximum number of interpreter frames of one invocation
	MaxCallDepth int `toml:"max_call_depth"`
	// MaxNestedCalls is the maximum depth of cross contract calls
	MaxNestedCalls int `toml:"max_nested_calls"`
	// MaxCodeSize is the maximum size of encoded contract code in bytes
	MaxCodeSize int `toml:"max_code_size"`
	// MaxArrayLength bounds each array dimension
	MaxArrayLength int `toml:"max_array_length"`
	// MaxStringLength bounds strings in UTF-16 units
	MaxStringLength int `toml:"max_string_length"`

	// CodeCacheSize is the number of decoded packages kept in memory
	CodeCacheSize int `toml:"code_cache_size"`
	// TypeCacheSize is the number of parsed descriptors kept in memory
	TypeCacheSize int `toml:"type_cache_size"`

	// Backend selects the state database: memory, leveldb or sqlite
	Backend string `toml:"backend"`
	// DataDir is where on-disk backends keep their files
	DataDir string `toml:"data_dir"`

	Gas gas.Schedule `toml:"gas"`
}

// Default returns a default configuration
func Default() Config {
	limits := security.DefaultLimits()
	return Config{
		MaxCallDepth:    512,
		MaxNestedCalls:  limits.MaxNestedCalls,
		MaxCodeSize:     limits.MaxCodeSize,
		MaxArrayLength:  limits.MaxArrayLength,
		MaxStringLength: limits.MaxStringLength,
		CodeCacheSize:   128,
		TypeCacheSize:   4096,
		Backend:         string(repository.MemoryBackend),
		DataDir:         "./data",
		Gas:             *gas.DefaultSchedule(),
	}
}

// Limits returns the resource limits part of the configuration
func (c *Config) Limits() security.Limits {
	return security.Limits{
		MaxCodeSize:     c.MaxCodeSize,
		MaxArrayLength:  c.MaxArrayLength,
		MaxStringLength: c.MaxStringLength,
		MaxNestedCalls:  c.MaxNestedCalls,
	}
}

// Validate checks the configuration for values the engine cannot run with
func (c *Config) Validate() error {
	var problems []string
	for _, v := range []struct {
		name  string
		value int
	}{
		{"max_call_depth", c.MaxCallDepth},
		{"max_code_size", c.MaxCodeSize},
		{"code_cache_size", c.CodeCacheSize},
		{"type_cache_size", c.TypeCacheSize},
	} {
		if v.value <= 0 {
			problems = append(problems, v.name+" must be positive")
		}
	}
	for _, v := range []struct {
		name  string
		value int
	}{
		{"max_nested_calls", c.MaxNestedCalls},
		{"max_array_length", c.MaxArrayLength},
		{"max_string_length", c.MaxStringLength},
	} {
		if v.value < 0 {
			problems = append(problems, v.name+" must not be negative")
		}
	}
	switch repository.BackendType(c.Backend) {
	case repository.MemoryBackend:
	case repository.LevelDBBackend, repository.SQLiteBackend:
		if c.DataDir == "" {
			problems = append(problems, "data_dir is required for backend "+c.Backend)
		}
	default:
		problems = append(problems, "unknown backend "+c.Backend)
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Load reads a TOML file on top of the defaults and validates the result.
// Keys missing from the file keep their default value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	cfg := Default()
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalidConfig, path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
