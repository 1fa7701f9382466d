package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/FramKV/framkv/pkg/layout"
	"github.com/FramKV/framkv/pkg/stats"
	"github.com/FramKV/framkv/pkg/telemetry"
)

// WriteEntry stores value under key with the given type tag, replacing any
// existing entry. The old entry is tombstoned before the new one is
// appended, so duplicates never coexist; the cost is that a crash between
// the two steps loses the old value.
func (s *Store) WriteEntry(key []byte, dataType uint8, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}

	start := time.Now()
	ctx, span := s.tel.StartSpan(context.Background(), "store.write_entry")
	defer span.End()

	if len(key) == 0 {
		return fmt.Errorf("%w: empty key", ErrBadArgument)
	}
	if len(key) > int(s.cfg.MaxKeyLength) {
		return fmt.Errorf("%w: key length %d exceeds maximum %d",
			ErrBadArgument, len(key), s.cfg.MaxKeyLength)
	}
	if len(value) > int(s.cfg.MaxValueLength) {
		return fmt.Errorf("%w: value length %d exceeds maximum %d",
			ErrBadArgument, len(value), s.cfg.MaxValueLength)
	}

	// Replace-by-tombstone: retire the old entry first
	if old, err := s.findEntry(key); err == nil {
		if _, err := s.markEntryDeleted(old.HeaderAddress); err != nil {
			return err
		}
	} else if !errors.Is(err, ErrKeyNotFound) {
		return err
	}

	header, err := s.readBlockHeader(s.activeBlockIndex)
	if err != nil || header.Status != layout.BlockStatusActive {
		s.stats.TrackError("active_block_lost")
		return fmt.Errorf("%w: active block %d unusable", ErrCorrupt, s.activeBlockIndex)
	}

	entry := &layout.EntryHeader{
		Status:      layout.EntryStatusLive,
		DataType:    dataType,
		KeyHash:     layout.HashKey(key),
		KeyLength:   uint8(len(key)),
		ValueLength: uint16(len(value)),
	}

	err = s.appendEntry(s.activeBlockIndex, header, entry, key, value)
	if errors.Is(err, errBlockFull) {
		// Reclaim space, then retry once against the new active block
		if err := s.runGC(ctx, true); err != nil {
			return err
		}

		header, err = s.readBlockHeader(s.activeBlockIndex)
		if err != nil || header.Status != layout.BlockStatusActive {
			return fmt.Errorf("%w: active block %d unusable after GC", ErrCorrupt, s.activeBlockIndex)
		}

		err = s.appendEntry(s.activeBlockIndex, header, entry, key, value)
		if errors.Is(err, errBlockFull) {
			// The device is genuinely full of live data
			s.stats.TrackError("store_full")
			return ErrStoreFull
		}
	}
	if err != nil {
		return err
	}

	s.stats.TrackOperationWithLatency(stats.OpPut, uint64(time.Since(start).Nanoseconds()))
	s.tel.RecordCounter(ctx, "framkv.puts", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentStore))
	telemetry.RecordDuration(ctx, s.tel, "framkv.put.duration", start)
	return nil
}
