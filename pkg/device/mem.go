package device

import (
	"fmt"
	"sync/atomic"
)

// MemDevice is an in-RAM device simulator. A fresh device reads as all
// 0xFF, matching an erased part.
type MemDevice struct {
	data   []byte
	closed atomic.Bool

	// Counters for tests and the benchmark tool
	bytesRead    atomic.Uint64
	bytesWritten atomic.Uint64
}

// NewMemDevice creates a simulated device of the given capacity.
func NewMemDevice(size uint32) (*MemDevice, error) {
	if size == 0 || size > 65536 {
		return nil, fmt.Errorf("%w: unsupported capacity %d", ErrOutOfRange, size)
	}

	data := make([]byte, size)
	for i := range data {
		data[i] = 0xFF
	}

	return &MemDevice{data: data}, nil
}

// Probe always succeeds on an open simulator.
func (d *MemDevice) Probe() error {
	if d.closed.Load() {
		return ErrDeviceClosed
	}
	return nil
}

// Read fills buf from the simulated memory. Bytes beyond the capacity read
// as 0xFF, the same as a transport failure on the real part.
func (d *MemDevice) Read(addr uint16, buf []byte) error {
	if d.closed.Load() {
		return ErrDeviceClosed
	}

	for i := range buf {
		pos := int(addr) + i
		if pos < len(d.data) {
			buf[i] = d.data[pos]
		} else {
			buf[i] = 0xFF
		}
	}
	d.bytesRead.Add(uint64(len(buf)))
	return nil
}

// Write stores data into the simulated memory.
func (d *MemDevice) Write(addr uint16, data []byte) error {
	if d.closed.Load() {
		return ErrDeviceClosed
	}

	if int(addr)+len(data) > len(d.data) {
		return fmt.Errorf("%w: write of %d bytes at %d exceeds capacity %d",
			ErrOutOfRange, len(data), addr, len(d.data))
	}

	copy(d.data[addr:], data)
	d.bytesWritten.Add(uint64(len(data)))
	return nil
}

// Size returns the device capacity in bytes.
func (d *MemDevice) Size() uint32 {
	return uint32(len(d.data))
}

// Close marks the device closed.
func (d *MemDevice) Close() error {
	d.closed.Store(true)
	return nil
}

// BytesRead returns the total bytes read since creation.
func (d *MemDevice) BytesRead() uint64 {
	return d.bytesRead.Load()
}

// BytesWritten returns the total bytes written since creation.
func (d *MemDevice) BytesWritten() uint64 {
	return d.bytesWritten.Load()
}

// Image returns a copy of the raw device contents.
func (d *MemDevice) Image() []byte {
	img := make([]byte, len(d.data))
	copy(img, d.data)
	return img
}

// Corrupt flips the byte at addr. Tests use this to damage headers in place.
func (d *MemDevice) Corrupt(addr uint16, xor byte) {
	d.data[addr] ^= xor
}
