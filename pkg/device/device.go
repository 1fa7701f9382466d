// Package device provides byte-addressable access to the non-volatile
// memory under the store: a real I2C FRAM/EEPROM driver, an image-file
// device for host-side work, and an in-RAM simulator for tests.
package device

import "errors"

var (
	// ErrDeviceFault is returned when the device does not respond on the bus
	ErrDeviceFault = errors.New("device fault")

	// ErrOutOfRange is returned for accesses beyond the device capacity
	ErrOutOfRange = errors.New("address out of range")

	// ErrDeviceClosed is returned for accesses after Close
	ErrDeviceClosed = errors.New("device is closed")
)

// Device is a byte-addressable memory. Addresses are 16-bit, so a device
// holds at most 65536 bytes.
//
// Read fills buf starting at addr. Bytes the transport could not deliver are
// filled with 0xFF rather than reported as errors; an error return is
// reserved for hard faults. Write stores data starting at addr and is
// durable when it returns; implementations honour the part's write-cycle
// timing internally.
type Device interface {
	// Probe checks that the device acknowledges on the bus.
	Probe() error

	// Read fills buf with len(buf) bytes starting at addr.
	Read(addr uint16, buf []byte) error

	// Write stores data starting at addr.
	Write(addr uint16, data []byte) error

	// Size returns the device capacity in bytes.
	Size() uint32

	// Close releases the transport.
	Close() error
}
