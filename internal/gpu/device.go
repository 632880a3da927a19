package gpu

import (
	"errors"
	"fmt"
)

var (
	// ErrBufferContract signals a record type whose binary size disagrees
	// with the declared stride of its layout.
	ErrBufferContract = errors.New("buffer contract violated")
	// ErrBufferReleased is returned by operations on a released buffer.
	ErrBufferReleased = errors.New("buffer released")
	// ErrBufferOverflow is returned when more records are written than the
	// buffer holds.
	ErrBufferOverflow = errors.New("buffer overflow")
	// ErrUnknownPass is returned when a kernel has no program for a pass.
	ErrUnknownPass = errors.New("unknown kernel pass")
)

// Handle identifies a device allocation.
type Handle uint32

// Device owns raw storage for buffers.
type Device interface {
	Allocate(l Layout, count int) (Handle, error)
	Upload(h Handle, data []byte) error
	Download(h Handle, dst []byte) error
	Release(h Handle) error
}

// Kernel runs the numeric integration passes over bound buffers.
type Kernel interface {
	Bind(p Pass, slot string, b *Buffer) error
	Dispatch(p Pass, x, y, z int) error
}

// Pass names one kernel entry point.
type Pass int

const (
	PassSimulateTruss Pass = iota
	PassHashTrussForces
	PassSimulateNode
	PassContinuous
	PassContinuousMesh
	PassImpulse
	PassSolidNode
	PassNodeInterpolate
)

var passNames = [...]string{
	PassSimulateTruss:   "SimulateTruss",
	PassHashTrussForces: "HashTrussForces",
	PassSimulateNode:    "SimulateNode",
	PassContinuous:      "RunCC",
	PassContinuousMesh:  "CCMeshCalc",
	PassImpulse:         "RunIC",
	PassSolidNode:       "FSBSimulateNode",
	PassNodeInterpolate: "NodeInter",
}

// String returns the kernel entry point name.
func (p Pass) String() string {
	if p >= 0 && int(p) < len(passNames) {
		return passNames[p]
	}
	return fmt.Sprintf("Pass(%d)", int(p))
}

// Passes lists every pass in declaration order.
func Passes() []Pass {
	out := make([]Pass, len(passNames))
	for i := range out {
		out[i] = Pass(i)
	}
	return out
}

// ThreadGroupSize is the kernel's local size for node-indexed passes.
const ThreadGroupSize = 256

// TrussGroups is the fixed 2D group grid used by the truss passes.
const TrussGroups = 18

// Groups returns the number of thread groups covering n elements.
func Groups(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + ThreadGroupSize - 1) / ThreadGroupSize
}
