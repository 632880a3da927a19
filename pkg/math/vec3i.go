package math

import "fmt"

// Vec3i is an integer 3D vector, used for voxel coordinates and per-axis
// subdivision counts.
type Vec3i struct {
	X, Y, Z int
}

// Add returns v + other.
func (v Vec3i) Add(other Vec3i) Vec3i {
	return Vec3i{v.X + other.X, v.Y + other.Y, v.Z + other.Z}
}

// Float returns the vector converted to Vec3.
func (v Vec3i) Float() Vec3 {
	return Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
}

// String returns "(x,y,z)".
func (v Vec3i) String() string {
	return fmt.Sprintf("(%d,%d,%d)", v.X, v.Y, v.Z)
}
