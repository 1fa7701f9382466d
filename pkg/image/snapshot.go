package image

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/FramKV/framkv/pkg/device"
)

// Snapshot file layout: magic (4 bytes), format version (1), codec (1),
// uncompressed image size u32 little-endian, compressed payload.
const (
	snapshotMagic   = "FKVS"
	snapshotVersion = uint8(1)
	headerSize      = 4 + 1 + 1 + 4

	// Device transfers happen in bounded chunks
	chunkSize = 4096
)

// dumpDevice reads the full device image through chunked transfers.
func dumpDevice(dev device.Device) ([]byte, error) {
	size := dev.Size()
	img := make([]byte, size)

	for off := uint32(0); off < size; off += chunkSize {
		n := uint32(chunkSize)
		if off+n > size {
			n = size - off
		}
		if err := dev.Read(uint16(off), img[off:off+n]); err != nil {
			return nil, fmt.Errorf("failed to read device at %d: %w", off, err)
		}
	}
	return img, nil
}

// loadDevice writes a full image back through chunked transfers.
func loadDevice(dev device.Device, img []byte) error {
	if uint32(len(img)) != dev.Size() {
		return fmt.Errorf("image size %d does not match device capacity %d", len(img), dev.Size())
	}

	for off := 0; off < len(img); off += chunkSize {
		end := off + chunkSize
		if end > len(img) {
			end = len(img)
		}
		if err := dev.Write(uint16(off), img[off:end]); err != nil {
			return fmt.Errorf("failed to write device at %d: %w", off, err)
		}
	}
	return nil
}

// WriteSnapshot dumps the device into a compressed snapshot file.
func WriteSnapshot(path string, dev device.Device, codec Codec) error {
	img, err := dumpDevice(dev)
	if err != nil {
		return err
	}

	manager, err := NewCompressionManager()
	if err != nil {
		return err
	}
	defer manager.Close()

	payload, err := manager.Compress(img, codec)
	if err != nil {
		return err
	}

	out := make([]byte, headerSize, headerSize+len(payload))
	copy(out[0:4], snapshotMagic)
	out[4] = snapshotVersion
	out[5] = uint8(codec)
	binary.LittleEndian.PutUint32(out[6:10], uint32(len(img)))
	out = append(out, payload...)

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, out, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return os.Rename(tempPath, path)
}

// ReadSnapshot loads and decompresses a snapshot file into a raw image.
func ReadSnapshot(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if len(data) < headerSize || string(data[0:4]) != snapshotMagic {
		return nil, fmt.Errorf("%w: not a snapshot file", ErrInvalidCompressedData)
	}
	if data[4] != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", data[4])
	}

	codec := Codec(data[5])
	size := binary.LittleEndian.Uint32(data[6:10])

	manager, err := NewCompressionManager()
	if err != nil {
		return nil, err
	}
	defer manager.Close()

	img, err := manager.Decompress(data[headerSize:], codec)
	if err != nil {
		return nil, err
	}
	if uint32(len(img)) != size {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidCompressedData, size, len(img))
	}
	return img, nil
}

// RestoreSnapshot writes a snapshot file's contents back onto a device.
func RestoreSnapshot(path string, dev device.Device) error {
	img, err := ReadSnapshot(path)
	if err != nil {
		return err
	}
	return loadDevice(dev, img)
}
