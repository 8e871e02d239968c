// Package config loads process-wide runtime defaults: the editing modes
// fresh connections start with, the frame read granularity, and the unit
// numbers preconnected to standard input and output. Defaults can come
// from a YAML file, from F18_* environment variables, or both.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pmccormick/f18/pkg/io"
)

// Config holds the runtime defaults.
type Config struct {
	BlankZero    bool   `yaml:"blank_zero"`
	DecimalComma bool   `yaml:"decimal_comma"`
	Pad          bool   `yaml:"pad"`
	Round        string `yaml:"round"`
	FrameChunk   int    `yaml:"frame_chunk"`
	InputUnit    int    `yaml:"input_unit"`
	OutputUnit   int    `yaml:"output_unit"`
}

// Default returns the configuration the runtime assumes with no overrides.
func Default() Config {
	return Config{
		Pad:        true,
		Round:      "nearest",
		InputUnit:  io.PredefinedInputUnit,
		OutputUnit: io.PredefinedOutputUnit,
	}
}

// Load parses a YAML configuration file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, fmt.Errorf("config: empty path")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if _, err := cfg.RoundingMode(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// FromEnv applies F18_* environment variable overrides:
// F18_BLANK_ZERO, F18_DECIMAL_COMMA, F18_PAD, F18_ROUND, F18_FRAME_CHUNK,
// F18_INPUT_UNIT, F18_OUTPUT_UNIT.
func FromEnv(cfg Config) (Config, error) {
	var err error
	if cfg.BlankZero, err = envBool("F18_BLANK_ZERO", cfg.BlankZero); err != nil {
		return cfg, err
	}
	if cfg.DecimalComma, err = envBool("F18_DECIMAL_COMMA", cfg.DecimalComma); err != nil {
		return cfg, err
	}
	if cfg.Pad, err = envBool("F18_PAD", cfg.Pad); err != nil {
		return cfg, err
	}
	if v, ok := os.LookupEnv("F18_ROUND"); ok {
		cfg.Round = v
		if _, err := cfg.RoundingMode(); err != nil {
			return cfg, err
		}
	}
	if cfg.FrameChunk, err = envInt("F18_FRAME_CHUNK", cfg.FrameChunk); err != nil {
		return cfg, err
	}
	if cfg.InputUnit, err = envInt("F18_INPUT_UNIT", cfg.InputUnit); err != nil {
		return cfg, err
	}
	if cfg.OutputUnit, err = envInt("F18_OUTPUT_UNIT", cfg.OutputUnit); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func envBool(name string, current bool) (bool, error) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return current, nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return current, fmt.Errorf("config: %s=%q: %w", name, v, err)
	}
	return parsed, nil
}

func envInt(name string, current int) (int, error) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return current, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return current, fmt.Errorf("config: %s=%q: %w", name, v, err)
	}
	return parsed, nil
}

// RoundingMode maps the Round name to the runtime's rounding rule.
func (c Config) RoundingMode() (io.RoundingMode, error) {
	switch strings.ToLower(strings.TrimSpace(c.Round)) {
	case "", "nearest":
		return io.RoundNearest, nil
	case "zero", "to_zero":
		return io.RoundToZero, nil
	case "up":
		return io.RoundUp, nil
	case "down":
		return io.RoundDown, nil
	case "compatible":
		return io.RoundCompatible, nil
	default:
		return io.RoundNearest, fmt.Errorf("config: unknown rounding mode %q", c.Round)
	}
}

// Apply installs the configuration as the runtime's process-wide defaults.
// It should run before the first I/O statement; predefined unit numbers
// cannot change once the unit registry exists.
func Apply(cfg Config) error {
	round, err := cfg.RoundingMode()
	if err != nil {
		return err
	}
	io.SetDefaultModes(io.MutableModes{
		BlankZero:    cfg.BlankZero,
		DecimalComma: cfg.DecimalComma,
		Pad:          cfg.Pad,
		Round:        round,
	})
	if cfg.FrameChunk > 0 {
		io.SetFrameChunk(cfg.FrameChunk)
	}
	io.SetPredefinedUnits(cfg.InputUnit, cfg.OutputUnit)
	return nil
}
