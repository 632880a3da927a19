package gpu

// Record types mirror the kernel's structured buffer elements field for
// field. They contain only fixed-size fields so encoding/binary can size and
// encode them; binary.Size of each equals its declared stride.

// TrussRecord is one spring: rest length and node index pair.
type TrussRecord struct {
	RestLength float32
	IndexPair  [2]int32
}

// NodeInfoRecord is one slot of the node-to-truss adjacency table.
// Right is -1 for the left end, +1 for the right end, 0 for an empty slot.
type NodeInfoRecord struct {
	TrussID int32
	Right   int32
}

// NodeOtherRecord holds static per-node attributes.
type NodeOtherRecord struct {
	TrussesConnected int32
	Mass             float32
	Normal           [3]float32
	StartPosition    [3]float32
	Weight           float32
}

// Vec3Record is a bare float3 (positions, velocities, forces).
type Vec3Record = [3]float32

// TransformRecord describes a collider in the body's local frame.
type TransformRecord struct {
	LocalPosition  [3]float32
	LocalScale     [3]float32
	LocalRotation  [4]float32 // x, y, z, w
	TrianglesCount int32
	ColliderType   int32
}

// ContinuousRecord is one overlapping collider for the continuous pass.
type ContinuousRecord struct {
	Transform    TransformRecord
	SphereRadius float32
}

// ContactRecord is one discrete impulse contact in the body's local frame.
type ContactRecord struct {
	Velocity [3]float32
	Point    [3]float32
}

// SimulationParams is the constant block shared by all kernel passes.
type SimulationParams struct {
	DeltaTime     float32
	MaxAmplitude  float32
	Stiffness     float32 // surface ("O") spring stiffness scaled by tension
	StiffnessO    float32 // inner ("T") spring stiffness
	Damping       float32
	NodesCount    int32
	CollisionType int32
	DampingT      float32
}

// ImpulseParams is the constant block read by the impulse pass.
type ImpulseParams struct {
	DamageMultiplier float32
	MinVelocity      float32
	Radius           float32
}
