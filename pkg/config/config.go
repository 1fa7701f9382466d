package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/FramKV/framkv/pkg/layout"
)

const (
	CurrentConfigVersion = 1

	// DefaultDeviceAddress is the usual bus address of serial memories
	DefaultDeviceAddress = 0x50
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

// MemoryType selects the attached memory technology. It decides bus speed
// and whether writes need a settle delay.
type MemoryType int

const (
	// MemoryEEPROM requires a per-write settle delay and a conservative bus clock
	MemoryEEPROM MemoryType = iota
	// MemoryFRAM has no write delay and tolerates a fast bus clock
	MemoryFRAM
)

// String returns the string representation of the memory type
func (m MemoryType) String() string {
	switch m {
	case MemoryEEPROM:
		return "eeprom"
	case MemoryFRAM:
		return "fram"
	default:
		return fmt.Sprintf("memory(%d)", m)
	}
}

// ParseMemoryType parses a memory type name as written in config files.
func ParseMemoryType(s string) (MemoryType, error) {
	switch s {
	case "eeprom", "EEPROM":
		return MemoryEEPROM, nil
	case "fram", "FRAM":
		return MemoryFRAM, nil
	default:
		return 0, fmt.Errorf("%w: unknown memory type %q", ErrInvalidConfig, s)
	}
}

// Config describes the attached device and the block geometry carved into
// it. All fields are fixed at construction; the store never mutates them.
type Config struct {
	Version int `json:"version"`

	// Device configuration
	MemoryType      MemoryType `json:"memory_type"`
	DeviceAddress   uint16     `json:"device_address"`
	TotalMemoryBits uint32     `json:"total_memory_bits"`

	// Layout configuration
	BlockSizeBytes uint16 `json:"block_size_bytes"`
	MaxKeyLength   uint8  `json:"max_key_length"`
	MaxValueLength uint16 `json:"max_value_length"`

	mu sync.RWMutex
}

// NewDefaultConfig creates a Config matching a 32 Kbit part with the
// recommended geometry: 256-byte blocks, 16-byte keys, 240-byte values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,

		MemoryType:      MemoryEEPROM,
		DeviceAddress:   DefaultDeviceAddress,
		TotalMemoryBits: 32 * 1024,

		BlockSizeBytes: 256,
		MaxKeyLength:   16,
		MaxValueLength: 240,
	}
}

// TotalMemoryBytes returns the device capacity in bytes.
func (c *Config) TotalMemoryBytes() uint32 {
	return c.TotalMemoryBits / 8
}

// TotalBlocks returns how many whole blocks fit after the global header.
func (c *Config) TotalBlocks() uint16 {
	if c.BlockSizeBytes == 0 {
		return 0
	}
	usable := c.TotalMemoryBytes()
	if usable <= layout.GlobalHeaderSize {
		return 0
	}
	return uint16((usable - layout.GlobalHeaderSize) / uint32(c.BlockSizeBytes))
}

// MaxEntrySpan returns the largest on-device footprint a single entry can have.
func (c *Config) MaxEntrySpan() uint16 {
	return layout.EntryHeaderSize + uint16(c.MaxKeyLength) + c.MaxValueLength
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Version <= 0 {
		return fmt.Errorf("%w: invalid version %d", ErrInvalidConfig, c.Version)
	}

	if c.MemoryType != MemoryEEPROM && c.MemoryType != MemoryFRAM {
		return fmt.Errorf("%w: unknown memory type %d", ErrInvalidConfig, c.MemoryType)
	}

	if c.TotalMemoryBits == 0 || c.TotalMemoryBits%8 != 0 {
		return fmt.Errorf("%w: total memory must be a whole number of bytes, got %d bits",
			ErrInvalidConfig, c.TotalMemoryBits)
	}

	// Device addresses are 16-bit
	if c.TotalMemoryBytes() > 65536 {
		return fmt.Errorf("%w: device capacity %d bytes exceeds 16-bit address space",
			ErrInvalidConfig, c.TotalMemoryBytes())
	}

	if c.MaxKeyLength == 0 {
		return fmt.Errorf("%w: max key length must be positive", ErrInvalidConfig)
	}

	// A block must at least hold a maximum-key entry with an empty value.
	// The combined maxima may exceed the block (an entry that large simply
	// cannot be stored); NewStore warns about that case.
	minBlock := uint16(layout.BlockHeaderSize + layout.EntryHeaderSize + uint16(c.MaxKeyLength))
	if c.BlockSizeBytes < minBlock {
		return fmt.Errorf("%w: block size %d cannot hold an entry with a %d-byte key",
			ErrInvalidConfig, c.BlockSizeBytes, c.MaxKeyLength)
	}

	if c.TotalBlocks() == 0 {
		return fmt.Errorf("%w: no whole block fits in %d bytes of memory",
			ErrInvalidConfig, c.TotalMemoryBytes())
	}

	if layout.GlobalHeaderSize+uint32(c.TotalBlocks())*uint32(c.BlockSizeBytes) > c.TotalMemoryBytes() {
		return fmt.Errorf("%w: layout exceeds device capacity", ErrInvalidConfig)
	}

	return nil
}

// LoadConfigFromFile loads a configuration from a JSON file
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SaveConfigToFile writes the configuration to a JSON file
func (c *Config) SaveConfigToFile(path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tempPath, path)
}
