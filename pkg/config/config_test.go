package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pmccormick/f18/pkg/io"
)

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "f18.yaml")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if !cfg.Pad {
		t.Fatal("Default().Pad = false, want true")
	}
	if cfg.BlankZero || cfg.DecimalComma {
		t.Fatal("blank_zero and decimal_comma should default off")
	}
	if cfg.Round != "nearest" {
		t.Fatalf("Default().Round = %q, want %q", cfg.Round, "nearest")
	}
	if cfg.InputUnit != io.PredefinedInputUnit || cfg.OutputUnit != io.PredefinedOutputUnit {
		t.Fatalf("default units = %d/%d, want %d/%d",
			cfg.InputUnit, cfg.OutputUnit, io.PredefinedInputUnit, io.PredefinedOutputUnit)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, "blank_zero: true\nround: compatible\nframe_chunk: 4096\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.BlankZero {
		t.Fatal("blank_zero not applied")
	}
	if cfg.Round != "compatible" {
		t.Fatalf("Round = %q, want %q", cfg.Round, "compatible")
	}
	if cfg.FrameChunk != 4096 {
		t.Fatalf("FrameChunk = %d, want 4096", cfg.FrameChunk)
	}
	if !cfg.Pad {
		t.Fatal("unset pad should keep its default")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "pad: true\nrecl: 80\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted an unknown key")
	}
}

func TestLoadRejectsBadRoundName(t *testing.T) {
	path := writeConfig(t, "round: sideways\n")
	_, err := Load(path)
	if err == nil {
		t.Fatal("Load accepted round: sideways")
	}
	if !strings.Contains(err.Error(), "sideways") {
		t.Fatalf("error %q does not name the bad mode", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load accepted a missing file")
	}
	if _, err := Load(""); err == nil {
		t.Fatal("Load accepted an empty path")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("F18_DECIMAL_COMMA", "true")
	t.Setenv("F18_ROUND", "up")
	t.Setenv("F18_OUTPUT_UNIT", "7")
	cfg, err := FromEnv(Default())
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if !cfg.DecimalComma {
		t.Fatal("F18_DECIMAL_COMMA not applied")
	}
	if cfg.Round != "up" {
		t.Fatalf("Round = %q, want %q", cfg.Round, "up")
	}
	if cfg.OutputUnit != 7 {
		t.Fatalf("OutputUnit = %d, want 7", cfg.OutputUnit)
	}
	if cfg.InputUnit != io.PredefinedInputUnit {
		t.Fatal("unset F18_INPUT_UNIT should keep its default")
	}
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("F18_PAD", "maybe")
	if _, err := FromEnv(Default()); err == nil {
		t.Fatal("FromEnv accepted F18_PAD=maybe")
	}
	os.Unsetenv("F18_PAD")
	t.Setenv("F18_FRAME_CHUNK", "big")
	if _, err := FromEnv(Default()); err == nil {
		t.Fatal("FromEnv accepted F18_FRAME_CHUNK=big")
	}
}

func TestRoundingModeNames(t *testing.T) {
	cases := []struct {
		name string
		want io.RoundingMode
	}{
		{"", io.RoundNearest},
		{"nearest", io.RoundNearest},
		{"Zero", io.RoundToZero},
		{"to_zero", io.RoundToZero},
		{"up", io.RoundUp},
		{"down", io.RoundDown},
		{"compatible", io.RoundCompatible},
	}
	for _, c := range cases {
		got, err := Config{Round: c.name}.RoundingMode()
		if err != nil {
			t.Fatalf("RoundingMode(%q): %v", c.name, err)
		}
		if got != c.want {
			t.Fatalf("RoundingMode(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}
