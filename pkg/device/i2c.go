package device

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/FramKV/framkv/pkg/config"
)

// EEPROM parts need the internal write cycle to finish before the next
// transaction; 5 ms covers the common 24LCxx family. FRAM has no write cycle.
const eepromSettleDelay = 5 * time.Millisecond

// I2CDevice drives a serial FRAM or EEPROM over a two-wire bus. The part is
// addressed with a two-byte big-endian memory pointer, as 4 Kbit and larger
// parts expect.
type I2CDevice struct {
	bus        i2c.BusCloser
	dev        i2c.Dev
	memoryType config.MemoryType
	size       uint32
}

// OpenI2CDevice opens the named bus ("" for the first available) and
// prepares transfers to the part described by cfg. FRAM parts are clocked at
// 1 MHz, EEPROM conservatively at 100 kHz.
func OpenI2CDevice(busName string, cfg *config.Config) (*I2CDevice, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize host drivers: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %q: %w", busName, err)
	}

	speed := 100 * physic.KiloHertz
	if cfg.MemoryType == config.MemoryFRAM {
		speed = 1 * physic.MegaHertz
	}
	// Some adapters pin the clock; the part still works, just slower
	_ = bus.SetSpeed(speed)

	return &I2CDevice{
		bus:        bus,
		dev:        i2c.Dev{Bus: bus, Addr: cfg.DeviceAddress},
		memoryType: cfg.MemoryType,
		size:       cfg.TotalMemoryBytes(),
	}, nil
}

// Probe verifies the part acknowledges its address.
func (d *I2CDevice) Probe() error {
	if d.bus == nil {
		return ErrDeviceClosed
	}
	if err := d.dev.Tx(nil, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceFault, err)
	}
	return nil
}

// Read sets the memory pointer and reads len(buf) bytes. A failed transfer
// fills buf with 0xFF, which readers treat as erased or corrupt.
func (d *I2CDevice) Read(addr uint16, buf []byte) error {
	if d.bus == nil {
		return ErrDeviceClosed
	}

	pointer := []byte{byte(addr >> 8), byte(addr & 0xFF)}
	if err := d.dev.Tx(pointer, buf); err != nil {
		for i := range buf {
			buf[i] = 0xFF
		}
	}
	return nil
}

// Write stores data at addr. FRAM takes the whole run in one transfer;
// EEPROM is written byte-at-a-time with a settle delay, which sidesteps
// page-boundary rules at the cost of speed.
func (d *I2CDevice) Write(addr uint16, data []byte) error {
	if d.bus == nil {
		return ErrDeviceClosed
	}

	if uint32(addr)+uint32(len(data)) > d.size {
		return fmt.Errorf("%w: write of %d bytes at %d exceeds capacity %d",
			ErrOutOfRange, len(data), addr, d.size)
	}

	if d.memoryType == config.MemoryFRAM {
		frame := make([]byte, 2+len(data))
		frame[0] = byte(addr >> 8)
		frame[1] = byte(addr & 0xFF)
		copy(frame[2:], data)
		if err := d.dev.Tx(frame, nil); err != nil {
			return fmt.Errorf("%w: %v", ErrDeviceFault, err)
		}
		return nil
	}

	for i, b := range data {
		a := addr + uint16(i)
		if err := d.dev.Tx([]byte{byte(a >> 8), byte(a & 0xFF), b}, nil); err != nil {
			return fmt.Errorf("%w: %v", ErrDeviceFault, err)
		}
		time.Sleep(eepromSettleDelay)
	}
	return nil
}

// Size returns the device capacity in bytes.
func (d *I2CDevice) Size() uint32 {
	return d.size
}

// Close releases the bus.
func (d *I2CDevice) Close() error {
	if d.bus == nil {
		return nil
	}
	err := d.bus.Close()
	d.bus = nil
	return err
}
