// Package gldev implements gpu.Device and gpu.Kernel on OpenGL 4.3 compute:
// per-element buffers are shader storage buffers, constant blocks are
// uniform buffers, and each pass is a linked compute program.
//
// Every call must be made from the thread that owns the GL context.
package gldev

import (
	"errors"
	"fmt"

	"github.com/go-gl/gl/v4.3-core/gl"

	"github.com/Faultbox/softbody/internal/gpu"
)

// ErrUnknownHandle is returned for buffers this device never allocated or
// already deleted.
var ErrUnknownHandle = errors.New("unknown buffer handle")

type allocation struct {
	target uint32
	size   int
	name   string
}

// Device allocates GL buffer objects.
type Device struct {
	bufs map[gpu.Handle]allocation
}

// NewDevice returns a device bound to the current GL context.
func NewDevice() *Device {
	return &Device{bufs: make(map[gpu.Handle]allocation)}
}

func target(l gpu.Layout) uint32 {
	if l.Class == gpu.Constant {
		return gl.UNIFORM_BUFFER
	}
	return gl.SHADER_STORAGE_BUFFER
}

// Allocate implements gpu.Device. Storage is zero-initialized.
func (d *Device) Allocate(l gpu.Layout, count int) (gpu.Handle, error) {
	size := l.Stride * count
	t := target(l)

	var id uint32
	gl.GenBuffers(1, &id)
	if id == 0 {
		return 0, fmt.Errorf("glGenBuffers returned 0 for %s", l.Name)
	}
	gl.BindBuffer(t, id)
	zero := make([]byte, size)
	gl.BufferData(t, size, gl.Ptr(zero), gl.DYNAMIC_DRAW)
	gl.BindBuffer(t, 0)

	if code := gl.GetError(); code != gl.NO_ERROR {
		gl.DeleteBuffers(1, &id)
		return 0, fmt.Errorf("allocate %s (%d bytes): gl error 0x%x", l.Name, size, code)
	}

	h := gpu.Handle(id)
	d.bufs[h] = allocation{target: t, size: size, name: l.Name}
	return h, nil
}

// Upload implements gpu.Device.
func (d *Device) Upload(h gpu.Handle, data []byte) error {
	a, err := d.lookup(h, len(data))
	if err != nil || len(data) == 0 {
		return err
	}
	gl.BindBuffer(a.target, uint32(h))
	gl.BufferSubData(a.target, 0, len(data), gl.Ptr(data))
	gl.BindBuffer(a.target, 0)
	return nil
}

// Download implements gpu.Device. It waits for pending kernel writes.
func (d *Device) Download(h gpu.Handle, dst []byte) error {
	a, err := d.lookup(h, len(dst))
	if err != nil || len(dst) == 0 {
		return err
	}
	gl.MemoryBarrier(gl.BUFFER_UPDATE_BARRIER_BIT)
	gl.BindBuffer(a.target, uint32(h))
	gl.GetBufferSubData(a.target, 0, len(dst), gl.Ptr(dst))
	gl.BindBuffer(a.target, 0)
	return nil
}

// Release implements gpu.Device.
func (d *Device) Release(h gpu.Handle) error {
	if _, ok := d.bufs[h]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	id := uint32(h)
	gl.DeleteBuffers(1, &id)
	delete(d.bufs, h)
	return nil
}

// Live returns the number of buffer objects not yet deleted.
func (d *Device) Live() int {
	return len(d.bufs)
}

func (d *Device) lookup(h gpu.Handle, n int) (allocation, error) {
	a, ok := d.bufs[h]
	if !ok {
		return a, fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	if n > a.size {
		return a, fmt.Errorf("%s: %d bytes exceeds allocation of %d", a.name, n, a.size)
	}
	return a, nil
}
