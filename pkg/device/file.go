package device

import (
	"fmt"
	"io"
	"os"
)

// FileDevice backs the device with an image file on the host. Useful for
// working with dumps of real parts and for the CLI when no hardware is
// attached. Reads past the end of the image return 0xFF.
type FileDevice struct {
	file *os.File
	size uint32
}

// OpenFileDevice opens (or creates) an image file of the given capacity.
// An existing larger file is used as-is up to size.
func OpenFileDevice(path string, size uint32) (*FileDevice, error) {
	if size == 0 || size > 65536 {
		return nil, fmt.Errorf("%w: unsupported capacity %d", ErrOutOfRange, size)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat image file: %w", err)
	}

	// A fresh image starts erased
	if info.Size() < int64(size) {
		erased := make([]byte, int64(size)-info.Size())
		for i := range erased {
			erased[i] = 0xFF
		}
		if _, err := file.WriteAt(erased, info.Size()); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to erase image file: %w", err)
		}
	}

	return &FileDevice{file: file, size: size}, nil
}

// Probe succeeds while the image file is open.
func (d *FileDevice) Probe() error {
	if d.file == nil {
		return ErrDeviceClosed
	}
	if _, err := d.file.Stat(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceFault, err)
	}
	return nil
}

// Read fills buf from the image, padding with 0xFF past the end.
func (d *FileDevice) Read(addr uint16, buf []byte) error {
	if d.file == nil {
		return ErrDeviceClosed
	}

	n, err := d.file.ReadAt(buf, int64(addr))
	if err != nil && err != io.EOF {
		return fmt.Errorf("%w: %v", ErrDeviceFault, err)
	}
	for i := n; i < len(buf); i++ {
		buf[i] = 0xFF
	}
	return nil
}

// Write stores data into the image and syncs it, mirroring the durability
// the real part gives once its write cycle completes.
func (d *FileDevice) Write(addr uint16, data []byte) error {
	if d.file == nil {
		return ErrDeviceClosed
	}

	if uint32(addr)+uint32(len(data)) > d.size {
		return fmt.Errorf("%w: write of %d bytes at %d exceeds capacity %d",
			ErrOutOfRange, len(data), addr, d.size)
	}

	if _, err := d.file.WriteAt(data, int64(addr)); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceFault, err)
	}
	return d.file.Sync()
}

// Size returns the device capacity in bytes.
func (d *FileDevice) Size() uint32 {
	return d.size
}

// Close closes the image file.
func (d *FileDevice) Close() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}
