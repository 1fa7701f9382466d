// Package prefs is the typed preferences surface over the storage engine.
// Each accessor serializes one fixed-width scalar (or a length-delimited
// string/blob) and funnels it through the engine's write and find paths;
// reads that miss, or that find a value of a different type or width,
// return the caller's default.
package prefs

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/FramKV/framkv/pkg/config"
	"github.com/FramKV/framkv/pkg/device"
	"github.com/FramKV/framkv/pkg/store"
)

// Prefs wraps a Store with per-type accessors.
type Prefs struct {
	store *store.Store
}

// New wraps an already-begun store.
func New(s *store.Store) *Prefs {
	return &Prefs{store: s}
}

// Open builds a store over the device, begins it and returns the typed
// surface. The usual entry point for applications.
func Open(cfg *config.Config, dev device.Device, options ...store.Option) (*Prefs, error) {
	s, err := store.NewStore(cfg, dev, options...)
	if err != nil {
		return nil, err
	}
	if err := s.Begin(); err != nil {
		return nil, err
	}
	return &Prefs{store: s}, nil
}

// Store exposes the underlying engine.
func (p *Prefs) Store() *store.Store {
	return p.store
}

// Close releases the device.
func (p *Prefs) Close() error {
	return p.store.End()
}

// Has reports whether key exists.
func (p *Prefs) Has(key string) (bool, error) {
	return p.store.Has([]byte(key))
}

// Remove deletes key. Returns false if the key did not exist.
func (p *Prefs) Remove(key string) (bool, error) {
	err := p.store.Delete([]byte(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, store.ErrKeyNotFound) {
		return false, nil
	}
	return false, err
}

// Clear erases every stored preference.
func (p *Prefs) Clear() error {
	return p.store.Clear()
}

// getTyped returns the raw value bytes if key exists with the expected type
// tag and width. A width of -1 accepts any length.
func (p *Prefs) getTyped(key string, expected DataType, width int) ([]byte, bool) {
	value, dataType, err := p.store.Get([]byte(key))
	if err != nil {
		return nil, false
	}
	if dataType != expected {
		return nil, false
	}
	if width >= 0 && len(value) != width {
		return nil, false
	}
	return value, true
}

// PutBool stores a boolean value under key.
func (p *Prefs) PutBool(key string, value bool) error {
	b := byte(0)
	if value {
		b = 1
	}
	return p.store.WriteEntry([]byte(key), TypeBool, []byte{b})
}

// GetBool returns the boolean stored under key, or defaultValue.
func (p *Prefs) GetBool(key string, defaultValue bool) bool {
	if value, ok := p.getTyped(key, TypeBool, 1); ok {
		return value[0] != 0
	}
	return defaultValue
}

// PutInt8 stores an 8-bit signed value under key.
func (p *Prefs) PutInt8(key string, value int8) error {
	return p.store.WriteEntry([]byte(key), TypeChar, []byte{byte(value)})
}

// GetInt8 returns the 8-bit signed value stored under key, or defaultValue.
func (p *Prefs) GetInt8(key string, defaultValue int8) int8 {
	if value, ok := p.getTyped(key, TypeChar, 1); ok {
		return int8(value[0])
	}
	return defaultValue
}

// PutUint8 stores an 8-bit unsigned value under key.
func (p *Prefs) PutUint8(key string, value uint8) error {
	return p.store.WriteEntry([]byte(key), TypeUChar, []byte{value})
}

// GetUint8 returns the 8-bit unsigned value stored under key, or defaultValue.
func (p *Prefs) GetUint8(key string, defaultValue uint8) uint8 {
	if value, ok := p.getTyped(key, TypeUChar, 1); ok {
		return value[0]
	}
	return defaultValue
}

// PutInt16 stores a 16-bit signed value under key.
func (p *Prefs) PutInt16(key string, value int16) error {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, uint16(value))
	return p.store.WriteEntry([]byte(key), TypeShort, buf)
}

// GetInt16 returns the 16-bit signed value stored under key, or defaultValue.
func (p *Prefs) GetInt16(key string, defaultValue int16) int16 {
	if value, ok := p.getTyped(key, TypeShort, 2); ok {
		return int16(binary.LittleEndian.Uint16(value))
	}
	return defaultValue
}

// PutUint16 stores a 16-bit unsigned value under key.
func (p *Prefs) PutUint16(key string, value uint16) error {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, value)
	return p.store.WriteEntry([]byte(key), TypeUShort, buf)
}

// GetUint16 returns the 16-bit unsigned value stored under key, or defaultValue.
func (p *Prefs) GetUint16(key string, defaultValue uint16) uint16 {
	if value, ok := p.getTyped(key, TypeUShort, 2); ok {
		return binary.LittleEndian.Uint16(value)
	}
	return defaultValue
}

// PutInt32 stores a 32-bit signed value under key.
func (p *Prefs) PutInt32(key string, value int32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(value))
	return p.store.WriteEntry([]byte(key), TypeInt, buf)
}

// GetInt32 returns the 32-bit signed value stored under key, or defaultValue.
func (p *Prefs) GetInt32(key string, defaultValue int32) int32 {
	if value, ok := p.getTyped(key, TypeInt, 4); ok {
		return int32(binary.LittleEndian.Uint32(value))
	}
	return defaultValue
}

// PutUint32 stores a 32-bit unsigned value under key.
func (p *Prefs) PutUint32(key string, value uint32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, value)
	return p.store.WriteEntry([]byte(key), TypeUInt, buf)
}

// GetUint32 returns the 32-bit unsigned value stored under key, or defaultValue.
func (p *Prefs) GetUint32(key string, defaultValue uint32) uint32 {
	if value, ok := p.getTyped(key, TypeUInt, 4); ok {
		return binary.LittleEndian.Uint32(value)
	}
	return defaultValue
}

// PutLong stores a 32-bit signed value tagged as a long. Existing device
// images written by firmware distinguish int and long even though both are
// four bytes; the distinct tag keeps those images readable.
func (p *Prefs) PutLong(key string, value int32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(value))
	return p.store.WriteEntry([]byte(key), TypeLong, buf)
}

// GetLong returns the long value stored under key, or defaultValue.
func (p *Prefs) GetLong(key string, defaultValue int32) int32 {
	if value, ok := p.getTyped(key, TypeLong, 4); ok {
		return int32(binary.LittleEndian.Uint32(value))
	}
	return defaultValue
}

// PutULong stores a 32-bit unsigned value tagged as an unsigned long.
func (p *Prefs) PutULong(key string, value uint32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, value)
	return p.store.WriteEntry([]byte(key), TypeULong, buf)
}

// GetULong returns the unsigned long value stored under key, or defaultValue.
func (p *Prefs) GetULong(key string, defaultValue uint32) uint32 {
	if value, ok := p.getTyped(key, TypeULong, 4); ok {
		return binary.LittleEndian.Uint32(value)
	}
	return defaultValue
}

// PutInt64 stores a 64-bit signed value under key.
func (p *Prefs) PutInt64(key string, value int64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(value))
	return p.store.WriteEntry([]byte(key), TypeLong64, buf)
}

// GetInt64 returns the 64-bit signed value stored under key, or defaultValue.
func (p *Prefs) GetInt64(key string, defaultValue int64) int64 {
	if value, ok := p.getTyped(key, TypeLong64, 8); ok {
		return int64(binary.LittleEndian.Uint64(value))
	}
	return defaultValue
}

// PutUint64 stores a 64-bit unsigned value under key.
func (p *Prefs) PutUint64(key string, value uint64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, value)
	return p.store.WriteEntry([]byte(key), TypeULong64, buf)
}

// GetUint64 returns the 64-bit unsigned value stored under key, or defaultValue.
func (p *Prefs) GetUint64(key string, defaultValue uint64) uint64 {
	if value, ok := p.getTyped(key, TypeULong64, 8); ok {
		return binary.LittleEndian.Uint64(value)
	}
	return defaultValue
}

// PutFloat32 stores a 32-bit float under key.
func (p *Prefs) PutFloat32(key string, value float32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, math.Float32bits(value))
	return p.store.WriteEntry([]byte(key), TypeFloat, buf)
}

// GetFloat32 returns the 32-bit float stored under key, or defaultValue.
func (p *Prefs) GetFloat32(key string, defaultValue float32) float32 {
	if value, ok := p.getTyped(key, TypeFloat, 4); ok {
		return math.Float32frombits(binary.LittleEndian.Uint32(value))
	}
	return defaultValue
}

// PutFloat64 stores a 64-bit float under key.
func (p *Prefs) PutFloat64(key string, value float64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(value))
	return p.store.WriteEntry([]byte(key), TypeDouble, buf)
}

// GetFloat64 returns the 64-bit float stored under key, or defaultValue.
func (p *Prefs) GetFloat64(key string, defaultValue float64) float64 {
	if value, ok := p.getTyped(key, TypeDouble, 8); ok {
		return math.Float64frombits(binary.LittleEndian.Uint64(value))
	}
	return defaultValue
}

// PutString stores a string under key. The terminator byte is stored with
// the value, as firmware-written images expect.
func (p *Prefs) PutString(key string, value string) error {
	buf := make([]byte, len(value)+1)
	copy(buf, value)
	return p.store.WriteEntry([]byte(key), TypeString, buf)
}

// GetString returns the string stored under key, or defaultValue.
func (p *Prefs) GetString(key string, defaultValue string) string {
	value, ok := p.getTyped(key, TypeString, -1)
	if !ok || len(value) == 0 {
		return defaultValue
	}
	// Strip the stored terminator
	if value[len(value)-1] == 0 {
		value = value[:len(value)-1]
	}
	return string(value)
}

// PutBytes stores an opaque blob under key.
func (p *Prefs) PutBytes(key string, value []byte) error {
	return p.store.WriteEntry([]byte(key), TypeBytes, value)
}

// GetBytes returns the blob stored under key, or nil if it is missing or
// not a blob.
func (p *Prefs) GetBytes(key string) []byte {
	if value, ok := p.getTyped(key, TypeBytes, -1); ok {
		return value
	}
	return nil
}
