// Package hostdev provides a host-memory gpu.Device and a gpu.Kernel that
// records dispatches and runs registered Go pass functions. It backs the
// headless tools and the tests.
package hostdev

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Faultbox/softbody/internal/gpu"
)

var (
	// ErrUnknownHandle is returned for handles the device never issued or
	// has already released.
	ErrUnknownHandle = errors.New("unknown handle")
	// ErrSizeMismatch is returned when an upload or download exceeds the
	// allocation.
	ErrSizeMismatch = errors.New("size exceeds allocation")
)

// Device stores buffers as byte slices.
type Device struct {
	mu       sync.Mutex
	next     gpu.Handle
	bufs     map[gpu.Handle][]byte
	names    map[gpu.Handle]string
	released int
}

// NewDevice returns an empty host device.
func NewDevice() *Device {
	return &Device{
		bufs:  make(map[gpu.Handle][]byte),
		names: make(map[gpu.Handle]string),
	}
}

// Allocate implements gpu.Device.
func (d *Device) Allocate(l gpu.Layout, count int) (gpu.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	d.bufs[d.next] = make([]byte, l.Stride*count)
	d.names[d.next] = l.Name
	return d.next, nil
}

// Upload implements gpu.Device.
func (d *Device) Upload(h gpu.Handle, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.bufs[h]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	if len(data) > len(buf) {
		return fmt.Errorf("%w: %s %d > %d", ErrSizeMismatch, d.names[h], len(data), len(buf))
	}
	copy(buf, data)
	return nil
}

// Download implements gpu.Device.
func (d *Device) Download(h gpu.Handle, dst []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.bufs[h]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	if len(dst) > len(buf) {
		return fmt.Errorf("%w: %s %d > %d", ErrSizeMismatch, d.names[h], len(dst), len(buf))
	}
	copy(dst, buf)
	return nil
}

// Release implements gpu.Device. Releasing a handle twice is an error.
func (d *Device) Release(h gpu.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.bufs[h]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	delete(d.bufs, h)
	delete(d.names, h)
	d.released++
	return nil
}

// Live returns the number of allocations not yet released.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.bufs)
}

// ReleasedCount returns the number of successful releases.
func (d *Device) ReleasedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released
}

// FailingDevice wraps a Device and fails the Nth allocation. FailUpload and
// FailRelease make every upload or release fail.
type FailingDevice struct {
	*Device
	FailAt      int
	FailUpload  bool
	FailRelease bool
	calls       int
}

var (
	// ErrInjected is the error returned by FailingDevice.
	ErrInjected = errors.New("injected allocation failure")
	// ErrInjectedRelease is returned by Release when FailRelease is set.
	ErrInjectedRelease = errors.New("injected release failure")
)

// Allocate fails on the FailAt-th call (1-based).
func (f *FailingDevice) Allocate(l gpu.Layout, count int) (gpu.Handle, error) {
	f.calls++
	if f.calls == f.FailAt {
		return 0, ErrInjected
	}
	return f.Device.Allocate(l, count)
}

// Upload fails when FailUpload is set.
func (f *FailingDevice) Upload(h gpu.Handle, data []byte) error {
	if f.FailUpload {
		return ErrInjected
	}
	return f.Device.Upload(h, data)
}

// Release fails when FailRelease is set. The allocation stays live.
func (f *FailingDevice) Release(h gpu.Handle) error {
	if f.FailRelease {
		return ErrInjectedRelease
	}
	return f.Device.Release(h)
}
