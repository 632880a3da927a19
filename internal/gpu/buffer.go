package gpu

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
)

// Buffer is a device allocation bound to one layout. It is released at most
// once; every operation after release returns ErrBufferReleased.
type Buffer struct {
	layout   Layout
	count    int
	handle   Handle
	dev      Device
	released atomic.Bool
}

// NewBuffer allocates count elements of record type T under layout l. The
// binary size of T must equal l.Stride, otherwise ErrBufferContract is
// returned. A count of zero still allocates one element so kernels always
// see a valid binding.
func NewBuffer[T any](dev Device, l Layout, count int) (*Buffer, error) {
	if err := checkStride[T](l); err != nil {
		return nil, err
	}
	if l.Class == Constant {
		count = 1
	}
	if count < 1 {
		count = 1
	}
	h, err := dev.Allocate(l, count)
	if err != nil {
		return nil, fmt.Errorf("allocate %s: %w", l.Name, err)
	}
	return &Buffer{layout: l, count: count, handle: h, dev: dev}, nil
}

// MustNewBuffer is like NewBuffer but panics on a contract violation.
// Device allocation failures still panic; use it only at setup.
func MustNewBuffer[T any](dev Device, l Layout, count int) *Buffer {
	b, err := NewBuffer[T](dev, l, count)
	if err != nil {
		panic(err)
	}
	return b
}

func checkStride[T any](l Layout) error {
	var zero T
	size := binary.Size(zero)
	if size != l.Stride {
		return fmt.Errorf("%w: %s declares stride %d, record %T is %d bytes",
			ErrBufferContract, l.Name, l.Stride, zero, size)
	}
	return nil
}

// Layout returns the buffer's layout.
func (b *Buffer) Layout() Layout { return b.layout }

// Name returns the kernel-side resource name.
func (b *Buffer) Name() string { return b.layout.Name }

// Len returns the element capacity.
func (b *Buffer) Len() int { return b.count }

// Size returns the allocation size in bytes.
func (b *Buffer) Size() int { return b.count * b.layout.Stride }

// Handle returns the device handle.
func (b *Buffer) Handle() Handle { return b.handle }

// Released reports whether the buffer has been released.
func (b *Buffer) Released() bool { return b.released.Load() }

// Release frees the device allocation. Only the first call reaches the
// device; later calls are no-ops.
func (b *Buffer) Release() error {
	if !b.released.CompareAndSwap(false, true) {
		return nil
	}
	return b.dev.Release(b.handle)
}

// Write encodes records into b starting at element 0.
func Write[T any](b *Buffer, records []T) error {
	if b.released.Load() {
		return fmt.Errorf("%w: %s", ErrBufferReleased, b.layout.Name)
	}
	if err := checkStride[T](b.layout); err != nil {
		return err
	}
	if len(records) > b.count {
		return fmt.Errorf("%w: %s holds %d, got %d", ErrBufferOverflow, b.layout.Name, b.count, len(records))
	}
	if len(records) == 0 {
		return nil
	}
	data, err := binary.Append(make([]byte, 0, len(records)*b.layout.Stride), binary.LittleEndian, records)
	if err != nil {
		return fmt.Errorf("encode %s: %w", b.layout.Name, err)
	}
	return b.dev.Upload(b.handle, data)
}

// WriteOne encodes a single record, typically a constant block.
func WriteOne[T any](b *Buffer, record T) error {
	return Write(b, []T{record})
}

// Read decodes len(dst) records from the start of b.
func Read[T any](b *Buffer, dst []T) error {
	if b.released.Load() {
		return fmt.Errorf("%w: %s", ErrBufferReleased, b.layout.Name)
	}
	if err := checkStride[T](b.layout); err != nil {
		return err
	}
	if len(dst) > b.count {
		return fmt.Errorf("%w: %s holds %d, read %d", ErrBufferOverflow, b.layout.Name, b.count, len(dst))
	}
	if len(dst) == 0 {
		return nil
	}
	raw := make([]byte, len(dst)*b.layout.Stride)
	if err := b.dev.Download(b.handle, raw); err != nil {
		return fmt.Errorf("download %s: %w", b.layout.Name, err)
	}
	if _, err := binary.Decode(raw, binary.LittleEndian, dst); err != nil {
		return fmt.Errorf("decode %s: %w", b.layout.Name, err)
	}
	return nil
}

// ReadAll decodes every element of b.
func ReadAll[T any](b *Buffer) ([]T, error) {
	out := make([]T, b.count)
	if err := Read(b, out); err != nil {
		return nil, err
	}
	return out, nil
}
