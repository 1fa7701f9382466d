package store

import (
	"fmt"

	"github.com/FramKV/framkv/pkg/layout"
)

func (s *Store) readGlobalHeader() (*layout.GlobalHeader, error) {
	buf := make([]byte, layout.GlobalHeaderSize)
	if err := s.dev.Read(0, buf); err != nil {
		return nil, err
	}
	s.stats.TrackBytes(false, layout.GlobalHeaderSize)
	return layout.DecodeGlobalHeader(buf)
}

func (s *Store) writeGlobalHeader(activeBlockIndex uint16) error {
	header := layout.NewGlobalHeader(s.totalBlocks, activeBlockIndex)
	if err := s.dev.Write(0, header.Encode()); err != nil {
		return err
	}
	s.stats.TrackBytes(true, layout.GlobalHeaderSize)
	return nil
}

func (s *Store) readBlockHeader(blockIndex uint16) (*layout.BlockHeader, error) {
	addr := layout.BlockAddress(blockIndex, s.cfg.BlockSizeBytes)
	buf := make([]byte, layout.BlockHeaderSize)
	if err := s.dev.Read(addr, buf); err != nil {
		return nil, err
	}
	s.stats.TrackBytes(false, layout.BlockHeaderSize)
	return layout.DecodeBlockHeader(buf)
}

func (s *Store) writeBlockHeader(blockIndex uint16, header *layout.BlockHeader) error {
	addr := layout.BlockAddress(blockIndex, s.cfg.BlockSizeBytes)
	if err := s.dev.Write(addr, header.Encode()); err != nil {
		return err
	}
	s.stats.TrackBytes(true, layout.BlockHeaderSize)
	return nil
}

// walkBlock visits each entry recorded in the block, calling visitor with
// the entry's device address and decoded header. The walk never reads at or
// beyond the header's current offset. An entry header advertising lengths
// beyond the configured maxima means the log is corrupt from that point on;
// the walk stops there silently and preceding entries stand.
//
// The visitor returns true to stop the walk early.
func (s *Store) walkBlock(blockIndex uint16, header *layout.BlockHeader,
	visitor func(addr uint16, entry *layout.EntryHeader) (bool, error)) error {

	blockStart := layout.BlockAddress(blockIndex, s.cfg.BlockSizeBytes)
	offset := uint32(layout.BlockHeaderSize)
	buf := make([]byte, layout.EntryHeaderSize)

	// Never follow an offset past the block end, whatever the header claims
	end := uint32(header.CurrentOffset)
	if end > uint32(s.cfg.BlockSizeBytes) {
		end = uint32(s.cfg.BlockSizeBytes)
	}

	for offset+layout.EntryHeaderSize <= end {
		addr := blockStart + uint16(offset)
		if err := s.dev.Read(addr, buf); err != nil {
			return err
		}
		s.stats.TrackBytes(false, layout.EntryHeaderSize)

		entry, err := layout.DecodeEntryHeader(buf)
		if err != nil {
			return err
		}

		if uint16(entry.KeyLength) > uint16(s.cfg.MaxKeyLength) ||
			entry.ValueLength > s.cfg.MaxValueLength {
			// Corrupt past this point
			return nil
		}

		stop, err := visitor(addr, entry)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}

		offset += uint32(entry.Span())
	}

	return nil
}

// appendEntry writes one entry at the block's current offset and bumps the
// header. The entry bytes land in a single device write before the header
// does, so a crash between the two leaks the tail bytes but never corrupts
// the log: the old header still points before them.
//
// Returns errBlockFull, without touching the device, if the entry does not fit.
func (s *Store) appendEntry(blockIndex uint16, header *layout.BlockHeader,
	entry *layout.EntryHeader, key, value []byte) error {

	span := entry.Span()
	if uint32(header.CurrentOffset)+uint32(span) > uint32(s.cfg.BlockSizeBytes) {
		return errBlockFull
	}

	frame := make([]byte, 0, span)
	frame = append(frame, entry.Encode()...)
	frame = append(frame, key...)
	frame = append(frame, value...)

	addr := layout.BlockAddress(blockIndex, s.cfg.BlockSizeBytes) + header.CurrentOffset
	if err := s.dev.Write(addr, frame); err != nil {
		return err
	}
	s.stats.TrackBytes(true, uint64(span))

	header.CurrentOffset += span
	return s.writeBlockHeader(blockIndex, header)
}

// markEntryDeleted flips the entry's status byte from live to deleted.
// Returns false if the entry was not live, which makes the flip idempotent.
func (s *Store) markEntryDeleted(entryAddr uint16) (bool, error) {
	buf := make([]byte, 1)
	if err := s.dev.Read(entryAddr, buf); err != nil {
		return false, err
	}

	if buf[0] != layout.EntryStatusLive {
		return false, nil
	}

	if err := s.dev.Write(entryAddr, []byte{layout.EntryStatusDeleted}); err != nil {
		return false, err
	}
	s.stats.TrackBytes(true, 1)
	return true, nil
}

// blockStatusName renders a status byte for log lines and summaries.
func blockStatusName(status uint8) string {
	switch status {
	case layout.BlockStatusEmpty:
		return "empty"
	case layout.BlockStatusActive:
		return "active"
	case layout.BlockStatusValid:
		return "valid"
	case layout.BlockStatusInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("status(%#02x)", status)
	}
}
