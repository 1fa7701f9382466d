package store

import (
	"bytes"

	"github.com/FramKV/framkv/pkg/layout"
)

// findEntry scans blocks in ascending index order for the live entry whose
// key matches. The hash and length fields filter candidates; key bytes are
// compared before a hit is returned. Tombstones are skipped but still
// advertise their span, so the walk stays aligned.
//
// Scan order does not need to prefer the active block: the write pipeline
// tombstones the old entry before appending the new one, so at most one
// live copy of a key exists on the device.
func (s *Store) findEntry(key []byte) (*Entry, error) {
	if len(key) == 0 || len(key) > int(s.cfg.MaxKeyLength) {
		return nil, ErrBadArgument
	}

	targetHash := layout.HashKey(key)
	targetLen := uint8(len(key))

	var found *Entry
	keyBuf := make([]byte, targetLen)

	for blockIndex := uint16(0); blockIndex < s.totalBlocks; blockIndex++ {
		header, err := s.readBlockHeader(blockIndex)
		if err != nil {
			// Unreadable header: the block is invalid for reads
			continue
		}
		if header.Status != layout.BlockStatusActive && header.Status != layout.BlockStatusValid {
			continue
		}

		err = s.walkBlock(blockIndex, header, func(addr uint16, entry *layout.EntryHeader) (bool, error) {
			if entry.Status != layout.EntryStatusLive {
				return false, nil
			}
			if entry.KeyHash != targetHash || entry.KeyLength != targetLen {
				return false, nil
			}

			if err := s.dev.Read(addr+layout.EntryHeaderSize, keyBuf); err != nil {
				return false, err
			}
			s.stats.TrackBytes(false, uint64(len(keyBuf)))

			if !bytes.Equal(keyBuf, key) {
				return false, nil
			}

			found = &Entry{
				HeaderAddress: addr,
				ValueAddress:  addr + layout.EntryHeaderSize + uint16(entry.KeyLength),
				ValueLength:   entry.ValueLength,
				DataType:      entry.DataType,
			}
			return true, nil
		})
		if err != nil {
			return nil, err
		}
		if found != nil {
			return found, nil
		}
	}

	return nil, ErrKeyNotFound
}
