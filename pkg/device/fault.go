package device

import (
	"errors"
	"sync/atomic"
)

// ErrPowerLoss is returned by a FaultDevice once its write budget is spent.
var ErrPowerLoss = errors.New("simulated power loss")

// FaultDevice wraps another device and cuts power after a fixed number of
// written bytes. Bytes up to the budget land on the inner device; everything
// after is dropped. Crash-recovery tests wrap a MemDevice, run an operation
// until it trips, then reopen the store on the inner device.
type FaultDevice struct {
	inner       Device
	budget      atomic.Int64
	tripped     atomic.Bool
	failOnProbe bool
}

// NewFaultDevice wraps inner with a write budget of writeBudget bytes.
// A negative budget never trips.
func NewFaultDevice(inner Device, writeBudget int64) *FaultDevice {
	d := &FaultDevice{inner: inner}
	d.budget.Store(writeBudget)
	return d
}

// Probe passes through to the inner device.
func (d *FaultDevice) Probe() error {
	if d.failOnProbe {
		return ErrDeviceFault
	}
	return d.inner.Probe()
}

// FailProbe makes subsequent probes fail, simulating a missing part.
func (d *FaultDevice) FailProbe() {
	d.failOnProbe = true
}

// Read passes through; power loss only interrupts writes.
func (d *FaultDevice) Read(addr uint16, buf []byte) error {
	return d.inner.Read(addr, buf)
}

// Write forwards as many bytes as the budget allows, then trips.
func (d *FaultDevice) Write(addr uint16, data []byte) error {
	if d.tripped.Load() {
		return ErrPowerLoss
	}

	budget := d.budget.Load()
	if budget < 0 {
		return d.inner.Write(addr, data)
	}

	if int64(len(data)) <= budget {
		d.budget.Store(budget - int64(len(data)))
		return d.inner.Write(addr, data)
	}

	// Partial write, then lights out
	if budget > 0 {
		if err := d.inner.Write(addr, data[:budget]); err != nil {
			return err
		}
	}
	d.budget.Store(0)
	d.tripped.Store(true)
	return ErrPowerLoss
}

// Size returns the inner device capacity.
func (d *FaultDevice) Size() uint32 {
	return d.inner.Size()
}

// Close closes the inner device.
func (d *FaultDevice) Close() error {
	return d.inner.Close()
}

// Tripped reports whether the simulated power loss has occurred.
func (d *FaultDevice) Tripped() bool {
	return d.tripped.Load()
}
