// Package decompose partitions a mesh into disjoint convex vertex groups on a
// uniform voxel grid. Each group backs one convex collider proxy.
package decompose

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/softbody/internal/logger"
	"github.com/Faultbox/softbody/pkg/math"
	"github.com/Faultbox/softbody/pkg/mesh"
)

var (
	// ErrNoTriangles is returned when the mesh has no complete triangle.
	ErrNoTriangles = errors.New("mesh has no triangles")
	// ErrInvalidCuts is returned for negative cut counts.
	ErrInvalidCuts = errors.New("cuts must be non-negative")
)

// MinGroupSize is the smallest vertex count that can form a collider.
const MinGroupSize = 3

// Group is one surviving voxel bucket.
type Group struct {
	Voxel   math.Vec3i  `yaml:"voxel"`
	Indices []int       `yaml:"indices,flow"`
	Points  []math.Vec3 `yaml:"points"`
}

// Mesh returns a point-only mesh over the group's points. Proxies carry no
// triangles; the physics engine builds a convex hull over the point set.
func (g Group) Mesh() *mesh.Mesh {
	pts := make([]math.Vec3, len(g.Points))
	copy(pts, g.Points)
	return &mesh.Mesh{Vertices: pts}
}

// Partition is the decomposition output: groups in first-seen voxel order.
type Partition struct {
	Cuts     math.Vec3i `yaml:"cuts"`
	Vertices int        `yaml:"vertices"`
	Groups   []Group    `yaml:"groups"`
}

// IndexGroups returns the raw index arrays.
func (p *Partition) IndexGroups() [][]int {
	out := make([][]int, len(p.Groups))
	for i, g := range p.Groups {
		out[i] = g.Indices
	}
	return out
}

// Covered reports whether vertex index v appears in any group.
func (p *Partition) Covered(v int) bool {
	for _, g := range p.Groups {
		for _, i := range g.Indices {
			if i == v {
				return true
			}
		}
	}
	return false
}

type bucket struct {
	voxel   math.Vec3i
	indices []int
	seen    map[int]struct{}
}

func (b *bucket) add(idx ...int) {
	for _, i := range idx {
		if _, ok := b.seen[i]; ok {
			continue
		}
		b.seen[i] = struct{}{}
		b.indices = append(b.indices, i)
	}
}

// Decompose splits m into voxel buckets. A triangle contributes all three
// vertex indices to every distinct voxel its vertices fall in. Buckets with
// fewer than MinGroupSize indices are dropped.
func Decompose(m *mesh.Mesh, cuts math.Vec3i) (*Partition, error) {
	if cuts.X < 0 || cuts.Y < 0 || cuts.Z < 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCuts, cuts)
	}
	if m.TriangleCount() == 0 {
		return nil, ErrNoTriangles
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("decompose: %w", err)
	}

	bounds := m.Bounds()
	voxel := bounds.Size().Div(cuts.Add(math.Vec3i{X: 1, Y: 1, Z: 1}).Float())
	if voxel == math.Vec3Zero {
		logger.Debug("degenerate bounds, using a single bucket",
			zap.Int("vertices", m.VertexCount()))
	}

	var order []*bucket
	byVoxel := make(map[math.Vec3i]*bucket)
	get := func(c math.Vec3i) *bucket {
		b, ok := byVoxel[c]
		if !ok {
			b = &bucket{voxel: c, seen: make(map[int]struct{})}
			byVoxel[c] = b
			order = append(order, b)
		}
		return b
	}

	tris := m.Triangles
	for i := 0; i+2 < len(tris); i += 3 {
		a, b, c := tris[i], tris[i+1], tris[i+2]
		ca := voxelCoord(m.Vertices[a], bounds.Min, voxel, cuts)
		cb := voxelCoord(m.Vertices[b], bounds.Min, voxel, cuts)
		cc := voxelCoord(m.Vertices[c], bounds.Min, voxel, cuts)

		get(ca).add(a, b, c)
		if cb != ca {
			get(cb).add(a, b, c)
		}
		if cc != ca && cc != cb {
			get(cc).add(a, b, c)
		}
	}

	p := &Partition{Cuts: cuts, Vertices: m.VertexCount()}
	dropped := 0
	for _, b := range order {
		if len(b.indices) < MinGroupSize {
			dropped++
			continue
		}
		pts := make([]math.Vec3, len(b.indices))
		for j, idx := range b.indices {
			pts[j] = m.Vertices[idx]
		}
		p.Groups = append(p.Groups, Group{Voxel: b.voxel, Indices: b.indices, Points: pts})
	}

	logger.Debug("mesh decomposed",
		zap.String("cuts", cuts.String()),
		zap.Int("groups", len(p.Groups)),
		zap.Int("dropped", dropped))
	return p, nil
}

// voxelCoord maps v to its clamped grid cell. An axis with zero voxel size
// maps every vertex to 0.
func voxelCoord(v, origin, size math.Vec3, cuts math.Vec3i) math.Vec3i {
	off := v.Sub(origin)
	return math.Vec3i{
		X: axisCoord(off.X, size.X, cuts.X),
		Y: axisCoord(off.Y, size.Y, cuts.Y),
		Z: axisCoord(off.Z, size.Z, cuts.Z),
	}
}

func axisCoord(pos, size float32, cuts int) int {
	switch {
	case size <= 0 || pos <= size:
		return 0
	case pos > size*float32(cuts):
		return cuts
	default:
		return int(pos / size)
	}
}

// Bake simplifies m with s at the given quality, then decomposes the result.
// The returned mesh is the one the partition indexes into.
func Bake(m *mesh.Mesh, cuts math.Vec3i, s mesh.Simplifier, quality float32) (*Partition, *mesh.Mesh, error) {
	if s == nil {
		s = mesh.Passthrough
	}
	simplified, err := s.Simplify(m, quality)
	if err != nil {
		return nil, nil, fmt.Errorf("simplify: %w", err)
	}
	p, err := Decompose(simplified, cuts)
	if err != nil {
		return nil, nil, err
	}
	return p, simplified, nil
}
