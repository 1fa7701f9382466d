package layout

import (
	"encoding/binary"
	"fmt"
)

// GlobalHeader sits at device address 0 and records the block geometry and
// the index of the block currently receiving appends.
type GlobalHeader struct {
	Magic            uint8
	Version          uint8
	TotalBlocks      uint16
	ActiveBlockIndex uint16
	Checksum         uint8
}

// NewGlobalHeader creates a global header for the given geometry.
func NewGlobalHeader(totalBlocks, activeBlockIndex uint16) *GlobalHeader {
	return &GlobalHeader{
		Magic:            Magic,
		Version:          Version,
		TotalBlocks:      totalBlocks,
		ActiveBlockIndex: activeBlockIndex,
	}
}

// Encode serializes the header, computing the checksum over the preceding bytes.
func (h *GlobalHeader) Encode() []byte {
	result := make([]byte, GlobalHeaderSize)

	result[0] = h.Magic
	result[1] = h.Version
	binary.LittleEndian.PutUint16(result[2:4], h.TotalBlocks)
	binary.LittleEndian.PutUint16(result[4:6], h.ActiveBlockIndex)

	h.Checksum = Crc8(result[:GlobalHeaderSize-1])
	result[6] = h.Checksum

	return result
}

// DecodeGlobalHeader parses a global header and verifies magic, version and
// checksum. Any mismatch means the device is uninitialized (or corrupt) and
// the caller should take the first-run path.
func DecodeGlobalHeader(data []byte) (*GlobalHeader, error) {
	if len(data) < GlobalHeaderSize {
		return nil, fmt.Errorf("global header data too small: %d bytes, expected %d",
			len(data), GlobalHeaderSize)
	}

	header := &GlobalHeader{
		Magic:            data[0],
		Version:          data[1],
		TotalBlocks:      binary.LittleEndian.Uint16(data[2:4]),
		ActiveBlockIndex: binary.LittleEndian.Uint16(data[4:6]),
		Checksum:         data[6],
	}

	if header.Magic != Magic {
		return nil, fmt.Errorf("invalid magic: %#02x, expected %#02x", header.Magic, Magic)
	}
	if header.Version != Version {
		return nil, fmt.Errorf("unsupported version: %#02x, expected %#02x", header.Version, Version)
	}

	expected := Crc8(data[:GlobalHeaderSize-1])
	if header.Checksum != expected {
		return nil, fmt.Errorf("global header checksum mismatch: stored %#02x, calculated %#02x",
			header.Checksum, expected)
	}

	return header, nil
}

// BlockHeader sits at the start of each block. CurrentOffset is the offset
// within the block at which the next entry would be appended.
type BlockHeader struct {
	Status        uint8
	CurrentOffset uint16
	Checksum      uint8
}

// Encode serializes the header, computing the checksum over status and offset.
func (h *BlockHeader) Encode() []byte {
	result := make([]byte, BlockHeaderSize)

	result[0] = h.Status
	binary.LittleEndian.PutUint16(result[1:3], h.CurrentOffset)

	h.Checksum = Crc8(result[:BlockHeaderSize-1])
	result[3] = h.Checksum

	return result
}

// DecodeBlockHeader parses a block header and verifies its checksum. A
// mismatch means the block must be skipped for reads and recycled by GC.
func DecodeBlockHeader(data []byte) (*BlockHeader, error) {
	if len(data) < BlockHeaderSize {
		return nil, fmt.Errorf("block header data too small: %d bytes, expected %d",
			len(data), BlockHeaderSize)
	}

	header := &BlockHeader{
		Status:        data[0],
		CurrentOffset: binary.LittleEndian.Uint16(data[1:3]),
		Checksum:      data[3],
	}

	expected := Crc8(data[:BlockHeaderSize-1])
	if header.Checksum != expected {
		return nil, fmt.Errorf("block header checksum mismatch: stored %#02x, calculated %#02x",
			header.Checksum, expected)
	}

	return header, nil
}

// EntryHeader precedes every entry in a block. It has no checksum of its own;
// only the status byte is ever rewritten after the entry lands (the tombstone
// flip from live to deleted).
type EntryHeader struct {
	Status      uint8
	DataType    uint8
	KeyHash     uint16
	KeyLength   uint8
	ValueLength uint16
}

// Span returns the total number of bytes the entry occupies on the device.
func (h *EntryHeader) Span() uint16 {
	return EntryHeaderSize + uint16(h.KeyLength) + h.ValueLength
}

// Encode serializes the entry header.
func (h *EntryHeader) Encode() []byte {
	result := make([]byte, EntryHeaderSize)

	result[0] = h.Status
	result[1] = h.DataType
	binary.LittleEndian.PutUint16(result[2:4], h.KeyHash)
	result[4] = h.KeyLength
	binary.LittleEndian.PutUint16(result[5:7], h.ValueLength)

	return result
}

// DecodeEntryHeader parses an entry header. Entry headers carry no checksum,
// so this cannot fail beyond a short buffer; callers validate the lengths
// against their configured maxima.
func DecodeEntryHeader(data []byte) (*EntryHeader, error) {
	if len(data) < EntryHeaderSize {
		return nil, fmt.Errorf("entry header data too small: %d bytes, expected %d",
			len(data), EntryHeaderSize)
	}

	return &EntryHeader{
		Status:      data[0],
		DataType:    data[1],
		KeyHash:     binary.LittleEndian.Uint16(data[2:4]),
		KeyLength:   data[4],
		ValueLength: binary.LittleEndian.Uint16(data[5:7]),
	}, nil
}
