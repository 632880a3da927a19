// Package gpu defines the fixed binary buffer contract exchanged with the
// numeric integration kernel: record layouts, access direction, buffer
// lifetime, and the per-pass binding table.
package gpu

import "fmt"

// Access is the direction data flows through a buffer.
type Access int

const (
	// ReadOnly buffers are written by the host and only read by the kernel.
	ReadOnly Access = iota
	// ReadWrite buffers are mutated by the kernel every step.
	ReadWrite
	// HostRead buffers are written by the kernel and read back by the host
	// only; the host never uploads to them after allocation.
	HostRead
)

// String returns the access name.
func (a Access) String() string {
	switch a {
	case ReadOnly:
		return "RO"
	case ReadWrite:
		return "RW"
	case HostRead:
		return "HostRead"
	default:
		return fmt.Sprintf("Access(%d)", int(a))
	}
}

// Class separates per-element arrays from single-record constant blocks.
type Class int

const (
	PerElement Class = iota
	Constant
)

// Layout declares a named buffer's element stride, direction and class.
type Layout struct {
	Name   string
	Stride int
	Access Access
	Class  Class
}

const (
	sizeFloat = 4
	sizeInt   = 4
)

// Buffer layouts. Names are the kernel-side resource names.
var (
	LayoutTrusses         = Layout{"ROTrussesData", sizeInt*2 + sizeFloat, ReadOnly, PerElement}
	LayoutNodeInfo        = Layout{"RONodeTInfo", sizeInt * 2, ReadOnly, PerElement}
	LayoutNodeOther       = Layout{"RONodeOtherData", sizeFloat*8 + sizeInt, ReadOnly, PerElement}
	LayoutTotalForce      = Layout{"TotalDForce", sizeFloat * 3, ReadWrite, PerElement}
	LayoutPositions       = Layout{"RWNodePositions", sizeFloat * 3, ReadWrite, PerElement}
	LayoutVelocities      = Layout{"RWNodeVelocities", sizeFloat * 3, ReadWrite, PerElement}
	LayoutTrussForce      = Layout{"RWTrussForce", sizeFloat * 3, ReadWrite, PerElement}
	LayoutStiffnessLength = Layout{"RWNodeStiffnessLengthTO", sizeFloat, ReadWrite, PerElement}
	LayoutStiffnessPoints = Layout{"RWStiffnesPoints", sizeFloat * 3, ReadWrite, PerElement}
	LayoutDiagnostics     = Layout{"Diagnostics", sizeFloat * 3, HostRead, PerElement}
	LayoutContinuous      = Layout{"ROCCData", sizeFloat*11 + sizeInt*2, ReadOnly, PerElement}
	LayoutContinuousCount = Layout{"ROCCCounter", sizeInt, ReadOnly, PerElement}
	LayoutContact         = Layout{"ROICDataONE", sizeFloat * 6, ReadOnly, PerElement}
	LayoutMeshVertices    = Layout{"ROMeshVertONE", sizeFloat * 3, ReadOnly, PerElement}
	LayoutMeshTriangles   = Layout{"ROMeshTriONE", sizeInt, ReadOnly, PerElement}
	LayoutMeshTransform   = Layout{"ROTransfONE", sizeFloat*10 + sizeInt*2, ReadOnly, PerElement}
	LayoutOriginPositions = Layout{"RWOriginVertices", sizeFloat * 3, ReadWrite, PerElement}
	LayoutOriginOther     = Layout{"ROOriginOther", sizeFloat*8 + sizeInt, ReadOnly, PerElement}

	LayoutSimulationParams = Layout{"SimulationParams", sizeFloat*6 + sizeInt*2, ReadOnly, Constant}
	LayoutImpulseParams    = Layout{"ICParams", sizeFloat * 3, ReadOnly, Constant}
)
