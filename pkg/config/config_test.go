package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/FramKV/framkv/pkg/layout"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}

	if cfg.TotalMemoryBytes() != 4096 {
		t.Errorf("TotalMemoryBytes = %d, want 4096", cfg.TotalMemoryBytes())
	}

	// (4096 - 7) / 256 = 15 whole blocks
	if cfg.TotalBlocks() != 15 {
		t.Errorf("TotalBlocks = %d, want 15", cfg.TotalBlocks())
	}

	if cfg.MaxEntrySpan() != layout.EntryHeaderSize+16+240 {
		t.Errorf("MaxEntrySpan = %d", cfg.MaxEntrySpan())
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero version", func(c *Config) { c.Version = 0 }},
		{"bad memory type", func(c *Config) { c.MemoryType = MemoryType(9) }},
		{"zero memory", func(c *Config) { c.TotalMemoryBits = 0 }},
		{"fractional byte", func(c *Config) { c.TotalMemoryBits = 33 }},
		{"exceeds address space", func(c *Config) { c.TotalMemoryBits = 1024 * 1024 }},
		{"zero key length", func(c *Config) { c.MaxKeyLength = 0 }},
		{"block too small for max key entry", func(c *Config) { c.BlockSizeBytes = 24 }},
		{"no whole block", func(c *Config) {
			c.TotalMemoryBits = 1024 // 128 bytes
			c.BlockSizeBytes = 256
		}},
	}

	for _, tt := range tests {
		cfg := NewDefaultConfig()
		tt.mutate(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected validation error", tt.name)
			continue
		}
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: error should wrap ErrInvalidConfig, got %v", tt.name, err)
		}
	}
}

func TestParseMemoryType(t *testing.T) {
	for _, s := range []string{"fram", "FRAM"} {
		mt, err := ParseMemoryType(s)
		if err != nil || mt != MemoryFRAM {
			t.Errorf("ParseMemoryType(%q) = %v, %v", s, mt, err)
		}
	}

	mt, err := ParseMemoryType("eeprom")
	if err != nil || mt != MemoryEEPROM {
		t.Errorf("ParseMemoryType(eeprom) = %v, %v", mt, err)
	}

	if _, err := ParseMemoryType("nvram"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for unknown type, got %v", err)
	}
}

func TestConfigFileRoundTrip(t *testing.T) {
	dir, err := os.MkdirTemp("", "framkv_config_test")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(dir)

	cfg := NewDefaultConfig()
	cfg.MemoryType = MemoryFRAM
	cfg.TotalMemoryBits = 256 * 1024

	path := filepath.Join(dir, "framkv.json")
	if err := cfg.SaveConfigToFile(path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := LoadConfigFromFile(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.MemoryType != MemoryFRAM || loaded.TotalMemoryBits != 256*1024 {
		t.Errorf("loaded config = %+v", loaded)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	dir, err := os.MkdirTemp("", "framkv_config_test")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte(`{"version":1,"block_size_bytes":0}`), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if _, err := LoadConfigFromFile(path); err == nil {
		t.Error("expected error loading invalid config")
	}

	if _, err := LoadConfigFromFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error loading missing file")
	}
}
