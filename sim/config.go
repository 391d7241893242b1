// Package sim wires the isa/mem/cache/pipeline packages into the driver
// described in SPEC_FULL.md §4.5/§5/§6: a line-delimited command loop a
// frontend can script. Package layout and the config load/save/validate
// trio follow the teacher's timing/latency.TimingConfig (see DESIGN.md).
package sim

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sarchlab/seis/cache"
)

// ErrConfigError is returned by Config.Validate for any geometry or
// penalty violation, per SPEC_FULL.md §6/§7.
var ErrConfigError = cache.ErrConfigError

// CacheConfig is one cache's JSON-facing configuration, mapping onto
// cache.Config with a "disabled"/"associative" mode switch.
type CacheConfig struct {
	Mode       string `json:"mode"`
	SetBits    uint   `json:"set_bits,omitempty"`
	OffsetBits uint   `json:"offset_bits,omitempty"`
	Ways       int    `json:"ways,omitempty"`
}

// ToCacheConfig converts a CacheConfig into cache.Config, folding in the
// shared miss/volatile penalties and writethrough policy.
func (c CacheConfig) ToCacheConfig(missPenalty, volatilePenalty uint64, writethrough bool) cache.Config {
	if c.Mode != "associative" {
		return cache.Config{Enabled: false}
	}
	return cache.Config{
		Enabled:         true,
		SetBits:         c.SetBits,
		OffsetBits:      c.OffsetBits,
		Ways:            c.Ways,
		MissPenalty:     missPenalty,
		VolatilePenalty: volatilePenalty,
		Writethrough:    writethrough,
	}
}

// Config is the simulator's JSON-loadable configuration, per
// SPEC_FULL.md §6's schema.
type Config struct {
	MissPenalty     uint64      `json:"miss_penalty"`
	VolatilePenalty uint64      `json:"volatile_penalty"`
	Pipelining      bool        `json:"pipelining"`
	Writethrough    bool        `json:"writethrough"`
	Cache           CacheGroup  `json:"cache"`
}

// CacheGroup names the instruction and data cache configurations.
type CacheGroup struct {
	Instruction CacheConfig `json:"instruction"`
	Data        CacheConfig `json:"data"`
}

// DefaultConfig returns the configuration used when no file is given:
// pipelining on, writethrough off, both caches disabled.
func DefaultConfig() *Config {
	return &Config{
		MissPenalty:     10,
		VolatilePenalty: 4,
		Pipelining:      true,
		Writethrough:    false,
		Cache: CacheGroup{
			Instruction: CacheConfig{Mode: "disabled"},
			Data:        CacheConfig{Mode: "disabled"},
		},
	}
}

// LoadConfig reads and validates a Config from a JSON file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig writes c to path as indented JSON.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks the penalty and cache geometry constraints from
// SPEC_FULL.md §6, returning ErrConfigError wrapped with detail.
func (c *Config) Validate() error {
	if c.MissPenalty == 0 {
		return fmt.Errorf("%w: miss_penalty must be > 0", ErrConfigError)
	}
	if c.VolatilePenalty == 0 {
		return fmt.Errorf("%w: volatile_penalty must be > 0", ErrConfigError)
	}
	for name, cc := range map[string]CacheConfig{"instruction": c.Cache.Instruction, "data": c.Cache.Data} {
		switch cc.Mode {
		case "disabled":
		case "associative":
			geom := cc.ToCacheConfig(c.MissPenalty, c.VolatilePenalty, c.Writethrough)
			if err := geom.Validate(); err != nil {
				return fmt.Errorf("%s cache: %w", name, err)
			}
		default:
			return fmt.Errorf("%w: %s cache mode must be \"disabled\" or \"associative\", got %q", ErrConfigError, name, cc.Mode)
		}
	}
	return nil
}
