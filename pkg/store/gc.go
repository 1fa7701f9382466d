package store

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/FramKV/framkv/pkg/layout"
	"github.com/FramKV/framkv/pkg/telemetry"
)

// runGC migrates every live entry into a fresh block and erases the drained
// sources. Because the target is the first empty (or unreadable) block
// found scanning ascending from just past the active block, wrapping at the
// end, and the drained blocks return to the empty pool, the active block
// rotates across the whole device over time, spreading write wear.
//
// demoteActive is true when the store has a working active block that must
// be closed before the copy; the first-run and repair paths pass false.
//
// The step order matters for crash recovery: demote, prime the target,
// copy, finalize, then commit the global header. After the target header
// lands, the target is the only active block on the device, so a crash at
// any later step is repaired by re-running GC on the next Begin.
func (s *Store) runGC(ctx context.Context, demoteActive bool) error {
	start := time.Now()
	ctx, span := s.tel.StartSpan(ctx, "store.gc")
	defer span.End()

	// Step 1: pick the target block. A rotating pass starts just past the
	// current active block so the target advances across the device; the
	// first-run and repair paths scan from block zero.
	scanFrom := uint16(0)
	if demoteActive {
		scanFrom = (s.activeBlockIndex + 1) % s.totalBlocks
	}
	target, err := s.pickTargetBlock(scanFrom)
	if err != nil {
		return err
	}

	gcLog := s.logger.WithField("target", target)
	gcLog.Debug("garbage collection started")

	// Step 2: demote the old active block so the copy pass picks it up as
	// a source and the device never shows two active blocks
	if demoteActive {
		if header, err := s.readBlockHeader(s.activeBlockIndex); err == nil &&
			header.Status == layout.BlockStatusActive {
			header.Status = layout.BlockStatusValid
			if err := s.writeBlockHeader(s.activeBlockIndex, header); err != nil {
				return err
			}
		}
	}

	// Step 3: prime the target
	targetHeader := &layout.BlockHeader{
		Status:        layout.BlockStatusActive,
		CurrentOffset: layout.BlockHeaderSize,
	}
	if err := s.writeBlockHeader(target, targetHeader); err != nil {
		return err
	}
	targetAddr := layout.BlockAddress(target, s.cfg.BlockSizeBytes)
	writeOffset := targetHeader.CurrentOffset

	// Step 4: drain every other block with live data into the target
	for blockIndex := uint16(0); blockIndex < s.totalBlocks; blockIndex++ {
		if blockIndex == target {
			continue
		}

		header, err := s.readBlockHeader(blockIndex)
		if err != nil {
			// Unverifiable header: recycle the block instead of reusing it
			// in place, so it rejoins the empty pool
			if err := s.writeBlockHeader(blockIndex, &layout.BlockHeader{
				Status:        layout.BlockStatusEmpty,
				CurrentOffset: layout.BlockHeaderSize,
			}); err != nil {
				return err
			}
			s.stats.TrackBlockErase(blockIndex)
			continue
		}
		if header.Status != layout.BlockStatusActive && header.Status != layout.BlockStatusValid {
			continue
		}

		var copyErr error
		walkErr := s.walkBlock(blockIndex, header, func(addr uint16, entry *layout.EntryHeader) (bool, error) {
			if entry.Status != layout.EntryStatusLive {
				return false, nil
			}

			entrySpan := entry.Span()
			if uint32(writeOffset)+uint32(entrySpan) > uint32(s.cfg.BlockSizeBytes) {
				copyErr = fmt.Errorf("%w: live entries exceed one block", ErrStoreFull)
				return true, nil
			}

			buf := s.copyBuf[:entrySpan]
			if err := s.dev.Read(addr, buf); err != nil {
				return false, err
			}
			if err := s.dev.Write(targetAddr+writeOffset, buf); err != nil {
				return false, err
			}
			s.stats.TrackBytes(false, uint64(entrySpan))
			s.stats.TrackBytes(true, uint64(entrySpan))

			writeOffset += entrySpan
			return false, nil
		})
		if walkErr != nil {
			return walkErr
		}
		if copyErr != nil {
			return copyErr
		}

		// Source drained: return it to the empty pool
		if err := s.writeBlockHeader(blockIndex, &layout.BlockHeader{
			Status:        layout.BlockStatusEmpty,
			CurrentOffset: layout.BlockHeaderSize,
		}); err != nil {
			return err
		}
		s.stats.TrackBlockErase(blockIndex)
		gcLog.Debug("drained block %d (%s)", blockIndex, blockStatusName(header.Status))
	}

	// Step 5: finalize the target header with the accumulated offset
	targetHeader.CurrentOffset = writeOffset
	if err := s.writeBlockHeader(target, targetHeader); err != nil {
		return err
	}

	// Step 6: commit the new active pointer
	s.activeBlockIndex = target
	if err := s.writeGlobalHeader(target); err != nil {
		return err
	}

	s.stats.TrackGC()
	s.stats.TrackBlockActivate(target)
	s.tel.RecordCounter(ctx, "framkv.gc.passes", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentGC))
	telemetry.RecordDuration(ctx, s.tel, "framkv.gc.duration", start,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentGC))

	gcLog.Info("garbage collection done: active block %d, %d live bytes, %s",
		target, writeOffset-layout.BlockHeaderSize, time.Since(start))
	return nil
}

// pickTargetBlock scans every block in ascending index order starting at
// scanFrom, wrapping at the end, and returns the first whose header is
// unreadable or whose status is empty. An unreadable header holds nothing a
// reader would ever see, so the block is as good as erased.
func (s *Store) pickTargetBlock(scanFrom uint16) (uint16, error) {
	for n := uint16(0); n < s.totalBlocks; n++ {
		i := (scanFrom + n) % s.totalBlocks
		header, err := s.readBlockHeader(i)
		if err != nil || header.Status == layout.BlockStatusEmpty {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: no empty block available", ErrStoreFull)
}
