package gpu

import (
	"errors"
	"fmt"
	"sync"
)

// Profile selects which buffers a body needs.
type Profile int

const (
	// ProfileSoft allocates the full mass-spring set.
	ProfileSoft Profile = iota
	// ProfileSolid allocates node and origin buffers without trusses.
	ProfileSolid
)

// Counts sizes every per-element buffer of a set.
type Counts struct {
	Nodes            int
	Trusses          int
	MaxConnections   int
	MaxCollisions    int
	MaxMeshVertices  int
	MaxMeshTriangles int
	OriginNodes      int
}

// BufferSet is the complete collection of buffers owned by one body. It is
// the only owner of those buffers; Release frees them exactly once.
type BufferSet struct {
	Profile Profile
	Counts  Counts

	Trusses         *Buffer
	NodeInfo        *Buffer
	NodeOther       *Buffer
	TotalForce      *Buffer
	Positions       *Buffer
	Velocities      *Buffer
	TrussForce      *Buffer
	StiffnessLength *Buffer
	StiffnessPoints *Buffer
	Diagnostics     *Buffer

	Continuous      *Buffer
	ContinuousCount *Buffer
	Contact         *Buffer
	MeshVertices    *Buffer
	MeshTriangles   *Buffer
	MeshTransform   *Buffer

	OriginPositions *Buffer
	OriginOther     *Buffer

	SimulationParams *Buffer
	ImpulseParams    *Buffer

	all  []*Buffer
	once sync.Once
	err  error
}

// NewBufferSet allocates every buffer required by profile p. If any
// allocation fails, buffers already allocated are released before the error
// is returned. A stride contract violation panics: it is a programming error
// in the record declarations, not a runtime condition.
func NewBufferSet(dev Device, p Profile, c Counts) (*BufferSet, error) {
	sb := &setBuilder{dev: dev, set: &BufferSet{Profile: p, Counts: c}}
	set := sb.set
	n := c.Nodes

	build[NodeOtherRecord](sb, &set.NodeOther, LayoutNodeOther, n)
	build[Vec3Record](sb, &set.Positions, LayoutPositions, n)
	build[Vec3Record](sb, &set.Velocities, LayoutVelocities, n)

	if p == ProfileSoft {
		build[TrussRecord](sb, &set.Trusses, LayoutTrusses, c.Trusses)
		build[NodeInfoRecord](sb, &set.NodeInfo, LayoutNodeInfo, n*c.MaxConnections)
		build[Vec3Record](sb, &set.TotalForce, LayoutTotalForce, n)
		build[Vec3Record](sb, &set.TrussForce, LayoutTrussForce, c.Trusses)
		build[float32](sb, &set.StiffnessLength, LayoutStiffnessLength, n)
		build[Vec3Record](sb, &set.StiffnessPoints, LayoutStiffnessPoints, n)
		build[Vec3Record](sb, &set.Diagnostics, LayoutDiagnostics, n)
	} else {
		build[Vec3Record](sb, &set.OriginPositions, LayoutOriginPositions, c.OriginNodes)
		build[NodeOtherRecord](sb, &set.OriginOther, LayoutOriginOther, c.OriginNodes)
	}

	build[ContinuousRecord](sb, &set.Continuous, LayoutContinuous, c.MaxCollisions)
	build[int32](sb, &set.ContinuousCount, LayoutContinuousCount, 1)
	build[ContactRecord](sb, &set.Contact, LayoutContact, 1)
	build[Vec3Record](sb, &set.MeshVertices, LayoutMeshVertices, c.MaxMeshVertices)
	build[int32](sb, &set.MeshTriangles, LayoutMeshTriangles, c.MaxMeshTriangles*3)
	build[TransformRecord](sb, &set.MeshTransform, LayoutMeshTransform, 1)

	build[SimulationParams](sb, &set.SimulationParams, LayoutSimulationParams, 1)
	build[ImpulseParams](sb, &set.ImpulseParams, LayoutImpulseParams, 1)

	if sb.err != nil {
		_ = set.Release()
		return nil, sb.err
	}
	return set, nil
}

type setBuilder struct {
	dev Device
	set *BufferSet
	err error
}

// build allocates one buffer unless an earlier allocation failed.
func build[T any](sb *setBuilder, dst **Buffer, l Layout, count int) {
	if sb.err != nil {
		return
	}
	b, err := NewBuffer[T](sb.dev, l, count)
	if err != nil {
		if errors.Is(err, ErrBufferContract) {
			panic(err)
		}
		sb.err = err
		return
	}
	*dst = b
	sb.set.all = append(sb.set.all, b)
}

// Buffers returns every allocated buffer in allocation order.
func (s *BufferSet) Buffers() []*Buffer {
	return append([]*Buffer(nil), s.all...)
}

// Binding attaches one buffer to one pass.
type Binding struct {
	Pass   Pass
	Buffer *Buffer
}

// Bindings returns the binding table for the set's profile. Constant blocks
// are bound to every pass that runs for the profile.
func (s *BufferSet) Bindings() []Binding {
	var table []Binding
	add := func(p Pass, bufs ...*Buffer) {
		for _, b := range bufs {
			table = append(table, Binding{Pass: p, Buffer: b})
		}
		table = append(table,
			Binding{Pass: p, Buffer: s.SimulationParams},
			Binding{Pass: p, Buffer: s.ImpulseParams})
	}

	if s.Profile == ProfileSoft {
		add(PassSimulateTruss, s.Trusses, s.Positions, s.TrussForce, s.NodeOther, s.StiffnessLength)
		add(PassHashTrussForces, s.NodeInfo, s.TrussForce, s.TotalForce, s.StiffnessLength, s.NodeOther)
		add(PassSimulateNode, s.TotalForce, s.Positions, s.Velocities, s.NodeOther,
			s.StiffnessLength, s.StiffnessPoints, s.Diagnostics)
	} else {
		add(PassSolidNode, s.Positions, s.Velocities, s.NodeOther, s.OriginPositions, s.OriginOther)
		add(PassNodeInterpolate, s.Positions, s.OriginPositions, s.OriginOther)
	}
	add(PassContinuous, s.Continuous, s.ContinuousCount, s.Positions, s.Velocities, s.NodeOther)
	add(PassContinuousMesh, s.MeshVertices, s.MeshTriangles, s.MeshTransform, s.Positions, s.Velocities)
	add(PassImpulse, s.Contact, s.Positions, s.Velocities, s.NodeOther,
		s.MeshVertices, s.MeshTriangles, s.MeshTransform)
	return table
}

// Bind attaches every buffer to its passes on k.
func (s *BufferSet) Bind(k Kernel) error {
	for _, b := range s.Bindings() {
		if err := k.Bind(b.Pass, b.Buffer.Name(), b.Buffer); err != nil {
			return fmt.Errorf("bind %s to %s: %w", b.Buffer.Name(), b.Pass, err)
		}
	}
	return nil
}

// Release frees every buffer in the set. Later calls return the result of
// the first.
func (s *BufferSet) Release() error {
	s.once.Do(func() {
		var errs []error
		for _, b := range s.all {
			if err := b.Release(); err != nil {
				errs = append(errs, fmt.Errorf("release %s: %w", b.Name(), err))
			}
		}
		s.err = errors.Join(errs...)
	})
	return s.err
}
