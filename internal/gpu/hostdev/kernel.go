package hostdev

import (
	"fmt"
	"sync"

	"github.com/Faultbox/softbody/internal/gpu"
)

// Dispatch records one kernel dispatch.
type Dispatch struct {
	Pass    gpu.Pass
	X, Y, Z int
}

// Bindings maps resource names to buffers for one pass.
type Bindings map[string]*gpu.Buffer

// PassFunc runs a pass on the host.
type PassFunc func(b Bindings, x, y, z int) error

// Kernel is a host-side gpu.Kernel.
type Kernel struct {
	mu         sync.Mutex
	bindings   map[gpu.Pass]Bindings
	funcs      map[gpu.Pass]PassFunc
	dispatches []Dispatch
}

// NewKernel returns a kernel with no pass functions; dispatches are
// recorded and otherwise do nothing.
func NewKernel() *Kernel {
	return &Kernel{
		bindings: make(map[gpu.Pass]Bindings),
		funcs:    make(map[gpu.Pass]PassFunc),
	}
}

// Handle registers fn to run when p is dispatched.
func (k *Kernel) Handle(p gpu.Pass, fn PassFunc) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.funcs[p] = fn
}

// Bind implements gpu.Kernel.
func (k *Kernel) Bind(p gpu.Pass, slot string, b *gpu.Buffer) error {
	if b == nil {
		return fmt.Errorf("bind %s/%s: nil buffer", p, slot)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.bindings[p]
	if !ok {
		m = make(Bindings)
		k.bindings[p] = m
	}
	m[slot] = b
	return nil
}

// Dispatch implements gpu.Kernel.
func (k *Kernel) Dispatch(p gpu.Pass, x, y, z int) error {
	k.mu.Lock()
	k.dispatches = append(k.dispatches, Dispatch{Pass: p, X: x, Y: y, Z: z})
	fn := k.funcs[p]
	bound := k.bindings[p]
	k.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(bound, x, y, z)
}

// Bound returns the buffer bound to slot for pass p.
func (k *Kernel) Bound(p gpu.Pass, slot string) *gpu.Buffer {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.bindings[p][slot]
}

// Dispatches returns a copy of every recorded dispatch.
func (k *Kernel) Dispatches() []Dispatch {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]Dispatch(nil), k.dispatches...)
}

// PassOrder returns the recorded passes in dispatch order.
func (k *Kernel) PassOrder() []gpu.Pass {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]gpu.Pass, len(k.dispatches))
	for i, d := range k.dispatches {
		out[i] = d.Pass
	}
	return out
}

// Reset clears recorded dispatches.
func (k *Kernel) Reset() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.dispatches = nil
}
