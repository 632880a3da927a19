// Package collide converts live colliders and impulse contacts into the
// records the kernel consumes, and decides which collision passes run each
// tick.
package collide

import (
	"fmt"

	"github.com/Faultbox/softbody/pkg/math"
	"github.com/Faultbox/softbody/pkg/mesh"
)

// ColliderType is the shape tag written into transform records.
type ColliderType int32

const (
	TypeUndefined ColliderType = iota
	TypeSphere
	TypeBox
	TypeMesh
)

func (t ColliderType) String() string {
	switch t {
	case TypeSphere:
		return "sphere"
	case TypeBox:
		return "box"
	case TypeMesh:
		return "mesh"
	default:
		return "undefined"
	}
}

// Shape is the closed set of collider geometries: Sphere, Box, MeshShape.
// Any other implementation classifies as TypeUndefined.
type Shape interface {
	shape()
}

// Sphere is a sphere in collider space.
type Sphere struct {
	Center math.Vec3
	Radius float32
}

// Box is an oriented box in collider space; Size is the full edge length.
type Box struct {
	Center math.Vec3
	Size   math.Vec3
}

// MeshShape is an arbitrary triangle mesh in collider space.
type MeshShape struct {
	Vertices  []math.Vec3
	Triangles []int
}

func (Sphere) shape()    {}
func (Box) shape()       {}
func (MeshShape) shape() {}

// Collider is a host physics collider: a shape placed by a world transform.
type Collider struct {
	Name      string
	Shape     Shape
	Transform math.Transform
}

func (c *Collider) String() string {
	return fmt.Sprintf("%s(%s)", c.Name, Classify(c.Shape))
}

// Classify returns the shape tag.
func Classify(s Shape) ColliderType {
	switch s.(type) {
	case Sphere, *Sphere:
		return TypeSphere
	case Box, *Box:
		return TypeBox
	case MeshShape, *MeshShape:
		return TypeMesh
	default:
		return TypeUndefined
	}
}

// Center returns the shape-local center offset: the collider's center for
// spheres and boxes, zero for meshes and unknown shapes.
func Center(s Shape) math.Vec3 {
	switch v := s.(type) {
	case Sphere:
		return v.Center
	case *Sphere:
		return v.Center
	case Box:
		return v.Center
	case *Box:
		return v.Center
	default:
		return math.Vec3Zero
	}
}

func meshOf(s Shape) (MeshShape, bool) {
	switch v := s.(type) {
	case MeshShape:
		return v, true
	case *MeshShape:
		return *v, true
	default:
		return MeshShape{}, false
	}
}

// IsMesh reports whether c is a mesh collider.
func (c *Collider) IsMesh() bool {
	return Classify(c.Shape) == TypeMesh
}

// Bounds returns the collider's world-space axis-aligned bounds.
func (c *Collider) Bounds() mesh.Bounds {
	var local []math.Vec3
	switch v := c.Shape.(type) {
	case Sphere:
		local = cubeCorners(v.Center, math.Vec3{X: v.Radius, Y: v.Radius, Z: v.Radius})
	case *Sphere:
		local = cubeCorners(v.Center, math.Vec3{X: v.Radius, Y: v.Radius, Z: v.Radius})
	case Box:
		local = cubeCorners(v.Center, v.Size.Scale(0.5))
	case *Box:
		local = cubeCorners(v.Center, v.Size.Scale(0.5))
	case MeshShape:
		local = v.Vertices
	case *MeshShape:
		local = v.Vertices
	}
	if len(local) == 0 {
		p := c.Transform.Position
		return mesh.Bounds{Min: p, Max: p}
	}
	world := make([]math.Vec3, len(local))
	for i, p := range local {
		world[i] = c.Transform.TransformPoint(p)
	}
	return mesh.BoundsOf(world)
}

func cubeCorners(center, half math.Vec3) []math.Vec3 {
	out := make([]math.Vec3, 0, 8)
	for _, sx := range []float32{-1, 1} {
		for _, sy := range []float32{-1, 1} {
			for _, sz := range []float32{-1, 1} {
				out = append(out, center.Add(half.Mul(math.Vec3{X: sx, Y: sy, Z: sz})))
			}
		}
	}
	return out
}
