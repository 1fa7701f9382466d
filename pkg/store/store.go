// Package store implements the on-device storage engine: a fixed global
// header followed by equal-size blocks, each holding an append-only entry
// log. One block is active and receives appends; garbage collection migrates
// live entries to a fresh block, erasing the drained ones and rotating the
// active pointer across the device to level wear.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/FramKV/framkv/pkg/common/log"
	"github.com/FramKV/framkv/pkg/config"
	"github.com/FramKV/framkv/pkg/device"
	"github.com/FramKV/framkv/pkg/layout"
	"github.com/FramKV/framkv/pkg/stats"
	"github.com/FramKV/framkv/pkg/telemetry"
)

// Entry describes where a live entry sits on the device.
type Entry struct {
	// HeaderAddress is the device address of the entry header
	HeaderAddress uint16
	// ValueAddress is the device address of the first value byte
	ValueAddress uint16
	// ValueLength is the stored value length in bytes
	ValueLength uint16
	// DataType is the stored type tag
	DataType uint8
}

// Store is the storage engine. All public operations serialize on an
// internal mutex and run to completion on the caller's goroutine; the only
// in-RAM state besides configuration is the block count and the active
// block index; everything else lives on the device.
type Store struct {
	mu sync.Mutex

	cfg     *config.Config
	dev     device.Device
	logger  log.Logger
	stats   *stats.AtomicCollector
	tel     telemetry.Telemetry

	initialized      bool
	totalBlocks      uint16
	activeBlockIndex uint16

	// Scratch buffer for GC entry copies, sized for the largest entry
	copyBuf []byte
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used by the store
func WithLogger(logger log.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithCollector sets the statistics collector
func WithCollector(collector *stats.AtomicCollector) Option {
	return func(s *Store) {
		s.stats = collector
	}
}

// WithTelemetry sets the telemetry sink
func WithTelemetry(tel telemetry.Telemetry) Option {
	return func(s *Store) {
		s.tel = tel
	}
}

// NewStore creates a store over the given device. Begin must be called
// before any other operation.
func NewStore(cfg *config.Config, dev device.Device, options ...Option) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config cannot be nil", ErrBadArgument)
	}
	if dev == nil {
		return nil, fmt.Errorf("%w: device cannot be nil", ErrBadArgument)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Store{
		cfg:     cfg,
		dev:     dev,
		logger:  log.GetDefaultLogger().WithField("component", "store"),
		stats:   stats.NewAtomicCollector(),
		tel:     telemetry.NewNoop(),
		copyBuf: make([]byte, cfg.MaxEntrySpan()),
	}

	for _, option := range options {
		option(s)
	}

	if layout.BlockHeaderSize+cfg.MaxEntrySpan() > cfg.BlockSizeBytes {
		s.logger.Warn("a maximum key with a maximum value (%d bytes) cannot fit in one %d-byte block",
			cfg.MaxEntrySpan(), cfg.BlockSizeBytes)
	}

	return s, nil
}

// Begin probes the device, carves the block layout and either resumes an
// existing store, formats a fresh one, or repairs a damaged one. It is the
// only path that may transparently run garbage collection for repair.
func (s *Store) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	ctx, span := s.tel.StartSpan(context.Background(), "store.begin")
	defer span.End()

	if err := s.dev.Probe(); err != nil {
		s.stats.TrackError("device_fault")
		return fmt.Errorf("device did not acknowledge: %w", err)
	}

	s.totalBlocks = s.cfg.TotalBlocks()
	if s.totalBlocks == 0 {
		return fmt.Errorf("%w: no blocks fit on the device", ErrBadArgument)
	}

	header, err := s.readGlobalHeader()
	switch {
	case err != nil:
		// Uninitialized or damaged global header: first run
		s.logger.Info("no valid global header, formatting %d blocks", s.totalBlocks)
		if gcErr := s.runGC(ctx, false); gcErr != nil {
			return fmt.Errorf("%w: format failed: %v", ErrCorrupt, gcErr)
		}

	case header.ActiveBlockIndex >= s.totalBlocks:
		s.logger.Warn("recorded active block %d out of range, repairing", header.ActiveBlockIndex)
		if gcErr := s.runGC(ctx, false); gcErr != nil {
			return fmt.Errorf("%w: repair failed: %v", ErrCorrupt, gcErr)
		}

	default:
		s.activeBlockIndex = header.ActiveBlockIndex
		blockHeader, bhErr := s.readBlockHeader(s.activeBlockIndex)
		if bhErr != nil || blockHeader.Status != layout.BlockStatusActive {
			s.logger.Warn("recorded active block %d is not active, repairing", s.activeBlockIndex)
			if gcErr := s.runGC(ctx, false); gcErr != nil {
				return fmt.Errorf("%w: repair failed: %v", ErrCorrupt, gcErr)
			}
		}
	}

	s.initialized = true
	s.stats.TrackOperationWithLatency(stats.OpBegin, uint64(time.Since(start).Nanoseconds()))
	s.logger.Info("store ready: %d blocks of %d bytes, active block %d",
		s.totalBlocks, s.cfg.BlockSizeBytes, s.activeBlockIndex)
	return nil
}

// End releases the device. The store can be reopened with Begin.
func (s *Store) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = false
	return s.dev.Close()
}

// Clear erases every block and reformats the store. All stored keys are lost.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}

	ctx, span := s.tel.StartSpan(context.Background(), "store.clear")
	defer span.End()

	// Rewrite every block header as empty, then take the same path a fresh
	// device takes. This keeps GC's precondition (it never runs on an
	// uninitialized store mid-operation) intact.
	for i := uint16(0); i < s.totalBlocks; i++ {
		if err := s.writeBlockHeader(i, &layout.BlockHeader{
			Status:        layout.BlockStatusEmpty,
			CurrentOffset: layout.BlockHeaderSize,
		}); err != nil {
			return err
		}
		s.stats.TrackBlockErase(i)
	}

	if err := s.runGC(ctx, false); err != nil {
		return err
	}

	s.stats.TrackOperation(stats.OpClear)
	s.logger.Info("store cleared")
	return nil
}

// Has reports whether key currently resolves to a live entry.
func (s *Store) Has(key []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return false, ErrNotInitialized
	}

	s.stats.TrackOperation(stats.OpHas)
	_, err := s.findEntry(key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// FindEntry locates the live entry for key.
func (s *Store) FindEntry(key []byte) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	start := time.Now()
	entry, err := s.findEntry(key)
	s.stats.TrackOperationWithLatency(stats.OpGet, uint64(time.Since(start).Nanoseconds()))
	return entry, err
}

// ReadValue reads the value bytes of a previously located entry.
func (s *Store) ReadValue(entry *Entry) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: entry cannot be nil", ErrBadArgument)
	}

	buf := make([]byte, entry.ValueLength)
	if err := s.dev.Read(entry.ValueAddress, buf); err != nil {
		return nil, err
	}
	s.stats.TrackBytes(false, uint64(len(buf)))
	return buf, nil
}

// Get locates key and returns its value bytes and type tag in one call.
func (s *Store) Get(key []byte) ([]byte, uint8, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, 0, ErrNotInitialized
	}

	start := time.Now()
	defer func() {
		s.stats.TrackOperationWithLatency(stats.OpGet, uint64(time.Since(start).Nanoseconds()))
	}()

	entry, err := s.findEntry(key)
	if err != nil {
		return nil, 0, err
	}

	buf := make([]byte, entry.ValueLength)
	if err := s.dev.Read(entry.ValueAddress, buf); err != nil {
		return nil, 0, err
	}
	s.stats.TrackBytes(false, uint64(len(buf)))
	return buf, entry.DataType, nil
}

// ReadBytes is a raw passthrough read for callers that hold entry addresses.
func (s *Store) ReadBytes(addr uint16, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	if err := s.dev.Read(addr, buf); err != nil {
		return err
	}
	s.stats.TrackBytes(false, uint64(len(buf)))
	return nil
}

// Delete tombstones the live entry for key. Deleting a missing key returns
// ErrKeyNotFound.
func (s *Store) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}

	start := time.Now()
	ctx, span := s.tel.StartSpan(context.Background(), "store.delete")
	defer span.End()

	entry, err := s.findEntry(key)
	if err != nil {
		return err
	}

	marked, err := s.markEntryDeleted(entry.HeaderAddress)
	if err != nil {
		return err
	}
	if !marked {
		return ErrKeyNotFound
	}

	s.stats.TrackOperationWithLatency(stats.OpDelete, uint64(time.Since(start).Nanoseconds()))
	s.tel.RecordCounter(ctx, "framkv.deletes", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentStore))
	return nil
}

// Stats returns a snapshot of the collector's statistics.
func (s *Store) Stats() map[string]interface{} {
	return s.stats.GetStats()
}

// Collector exposes the statistics collector for callers that aggregate.
func (s *Store) Collector() *stats.AtomicCollector {
	return s.stats
}

// ActiveBlockIndex returns the index of the block receiving appends.
func (s *Store) ActiveBlockIndex() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeBlockIndex
}

// TotalBlocks returns the number of blocks carved from the device.
func (s *Store) TotalBlocks() uint16 {
	return s.totalBlocks
}

// Config returns the store configuration.
func (s *Store) Config() *config.Config {
	return s.cfg
}
