// Package mesh provides the triangle mesh type consumed by the topology
// analyzer and the convex decomposer, plus small geometry utilities.
package mesh

import (
	"errors"
	"fmt"

	"github.com/Faultbox/softbody/pkg/math"
)

// Mesh errors.
var (
	ErrIndexOutOfRange   = errors.New("triangle index out of range")
	ErrTriangleCount     = errors.New("triangle index count is not a multiple of 3")
	ErrAttributeMismatch = errors.New("vertex attribute length mismatch")
)

// Mesh is an indexed triangle mesh. Triangles holds three vertex indices per
// face in winding order. Normals and Weights are optional; when present they
// must match Vertices in length.
type Mesh struct {
	Vertices  []math.Vec3
	Normals   []math.Vec3
	Weights   []float32 // per-vertex plastic/elastic blend in [0,1]
	Triangles []int
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min math.Vec3
	Max math.Vec3
}

// Size returns Max - Min.
func (b Bounds) Size() math.Vec3 {
	return b.Max.Sub(b.Min)
}

// Extents returns half of Size.
func (b Bounds) Extents() math.Vec3 {
	return b.Size().Scale(0.5)
}

// Center returns the midpoint of the box.
func (b Bounds) Center() math.Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Intersects reports whether two boxes overlap (touching counts).
func (b Bounds) Intersects(other Bounds) bool {
	return b.Min.X <= other.Max.X && b.Max.X >= other.Min.X &&
		b.Min.Y <= other.Max.Y && b.Max.Y >= other.Min.Y &&
		b.Min.Z <= other.Max.Z && b.Max.Z >= other.Min.Z
}

// ClosestPoint returns the point of the box nearest to p.
func (b Bounds) ClosestPoint(p math.Vec3) math.Vec3 {
	return p.Max(b.Min).Min(b.Max)
}

// BoundsOf returns the bounding box of points. An empty slice yields a zero box.
func BoundsOf(points []math.Vec3) Bounds {
	if len(points) == 0 {
		return Bounds{}
	}
	b := Bounds{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		b.Min = b.Min.Min(p)
		b.Max = b.Max.Max(p)
	}
	return b
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

// TriangleCount returns the number of whole triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Triangles) / 3
}

// Bounds returns the mesh bounding box.
func (m *Mesh) Bounds() Bounds {
	return BoundsOf(m.Vertices)
}

// Validate checks index ranges and attribute lengths.
func (m *Mesh) Validate() error {
	if len(m.Triangles)%3 != 0 {
		return fmt.Errorf("%w: %d", ErrTriangleCount, len(m.Triangles))
	}
	n := len(m.Vertices)
	for i, idx := range m.Triangles {
		if idx < 0 || idx >= n {
			return fmt.Errorf("%w: triangles[%d] = %d, vertices = %d", ErrIndexOutOfRange, i, idx, n)
		}
	}
	if m.Normals != nil && len(m.Normals) != n {
		return fmt.Errorf("%w: %d normals for %d vertices", ErrAttributeMismatch, len(m.Normals), n)
	}
	if m.Weights != nil && len(m.Weights) != n {
		return fmt.Errorf("%w: %d weights for %d vertices", ErrAttributeMismatch, len(m.Weights), n)
	}
	return nil
}

// RecalculateNormals replaces Normals with area-weighted vertex normals.
// Vertices not referenced by any triangle get a zero normal.
func (m *Mesh) RecalculateNormals() {
	normals := make([]math.Vec3, len(m.Vertices))
	for i := 0; i+2 < len(m.Triangles); i += 3 {
		a, b, c := m.Triangles[i], m.Triangles[i+1], m.Triangles[i+2]
		e1 := m.Vertices[b].Sub(m.Vertices[a])
		e2 := m.Vertices[c].Sub(m.Vertices[a])
		n := e1.Cross(e2)
		normals[a] = normals[a].Add(n)
		normals[b] = normals[b].Add(n)
		normals[c] = normals[c].Add(n)
	}
	for i := range normals {
		normals[i] = normals[i].Normalize()
	}
	m.Normals = normals
}

// Clone returns a deep copy.
func (m *Mesh) Clone() *Mesh {
	c := &Mesh{
		Vertices:  append([]math.Vec3(nil), m.Vertices...),
		Triangles: append([]int(nil), m.Triangles...),
	}
	if m.Normals != nil {
		c.Normals = append([]math.Vec3(nil), m.Normals...)
	}
	if m.Weights != nil {
		c.Weights = append([]float32(nil), m.Weights...)
	}
	return c
}
