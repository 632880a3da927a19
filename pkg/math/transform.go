package math

import "github.com/go-gl/mathgl/mgl32"

// Transform is a translation-rotation-scale pose in world space, the
// equivalent of a scene node transform without hierarchy.
type Transform struct {
	Position Vec3
	Rotation Quat
	Scale    Vec3
}

// IdentityTransform returns a transform at the origin with unit scale.
func IdentityTransform() Transform {
	return Transform{Rotation: QuatIdentity(), Scale: Vec3One}
}

// Matrix returns the local-to-world matrix (T * R * S).
func (t Transform) Matrix() mgl32.Mat4 {
	tr := mgl32.Translate3D(t.Position.X, t.Position.Y, t.Position.Z)
	rot := toMgl(t.Rotation.Normalize()).Mat4()
	sc := mgl32.Scale3D(t.Scale.X, t.Scale.Y, t.Scale.Z)
	return tr.Mul4(rot).Mul4(sc)
}

// TransformPoint maps a local point to world space.
func (t Transform) TransformPoint(p Vec3) Vec3 {
	return fromMglVec(mgl32.TransformCoordinate(toMglVec(p), t.Matrix()))
}

// InverseTransformPoint maps a world point into this transform's local space.
// A transform with a zero scale axis is not invertible; the zero vector is
// returned in that case.
func (t Transform) InverseTransformPoint(p Vec3) Vec3 {
	m := t.Matrix()
	if m.Det() == 0 {
		return Vec3{}
	}
	return fromMglVec(mgl32.TransformCoordinate(toMglVec(p), m.Inv()))
}

// InverseTransformDirection rotates a world direction into local space.
// Scale does not affect directions.
func (t Transform) InverseTransformDirection(d Vec3) Vec3 {
	return t.Rotation.Normalize().Inverse().Rotate(d)
}

func toMgl(q Quat) mgl32.Quat {
	return mgl32.Quat{W: q.W, V: mgl32.Vec3{q.X, q.Y, q.Z}}
}

func toMglVec(v Vec3) mgl32.Vec3 {
	return mgl32.Vec3{v.X, v.Y, v.Z}
}

func fromMglVec(v mgl32.Vec3) Vec3 {
	return Vec3{v[0], v[1], v[2]}
}
