// Package topology derives the truss (spring) network and per-node attributes
// of a deformable body from its triangle mesh.
package topology

import (
	"errors"
	"fmt"

	"github.com/Faultbox/softbody/pkg/math"
	"github.com/Faultbox/softbody/pkg/mesh"
)

// MaxTrusses is the largest truss count the truss kernel pass can address
// (18x18 work groups of 64 threads).
const MaxTrusses = 20736

// DefaultNodeMass is the mass assigned to every node.
const DefaultNodeMass float32 = 0.1

// Topology errors.
var (
	ErrTopologyTooLarge = errors.New("topology too large")
	ErrInvalidMesh      = errors.New("invalid source mesh")
)

// EdgeMode selects how trusses are enumerated from the triangle list.
type EdgeMode int

const (
	// ConsecutiveIndices links every consecutive pair in the flattened
	// triangle index stream, including pairs that cross triangle boundaries.
	ConsecutiveIndices EdgeMode = iota
	// PerTriangleEdges links the three edges of each triangle.
	PerTriangleEdges
)

// String returns the mode name.
func (m EdgeMode) String() string {
	switch m {
	case ConsecutiveIndices:
		return "consecutive"
	case PerTriangleEdges:
		return "per-triangle"
	default:
		return fmt.Sprintf("EdgeMode(%d)", int(m))
	}
}

// Side marks which end of a truss a node sits on.
type Side int32

const (
	SideNone  Side = 0 // empty adjacency slot
	SideLeft  Side = -1
	SideRight Side = 1
)

// Node holds the static per-node attributes uploaded once at init.
type Node struct {
	TrussesConnected int32
	Mass             float32
	Normal           math.Vec3
	StartPosition    math.Vec3
	Weight           float32
}

// Truss is a spring between two nodes.
type Truss struct {
	A, B       int32
	RestLength float32
}

// Connects reports whether the truss joins i and j in either order.
func (t Truss) Connects(i, j int32) bool {
	return (t.A == i && t.B == j) || (t.A == j && t.B == i)
}

// AdjacencyEntry is one slot of the dense node-to-truss table.
type AdjacencyEntry struct {
	TrussID int32
	Side    Side
}

// Empty reports whether the slot is unused.
func (e AdjacencyEntry) Empty() bool {
	return e.Side == SideNone
}

// Graph is the analyzed topology of one body.
type Graph struct {
	Nodes   []Node
	Trusses []Truss

	// Adjacency is a dense table of NodeCount()*MaxConnections entries,
	// laid out slot-major: entry k of node n is at k*NodeCount()+n.
	Adjacency      []AdjacencyEntry
	MaxConnections int
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.Nodes)
}

// Slot returns adjacency entry k of node n.
func (g *Graph) Slot(n, k int) AdjacencyEntry {
	return g.Adjacency[k*len(g.Nodes)+n]
}

// Options tunes Build.
type Options struct {
	Mode EdgeMode
	Mass float32 // 0 selects DefaultNodeMass
}

// Build analyzes m and returns its truss graph. It fails with
// ErrTopologyTooLarge if more than MaxTrusses trusses would be created, in
// which case no graph is returned.
func Build(m *mesh.Mesh, opts Options) (*Graph, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMesh, err)
	}

	nodeCount := m.VertexCount()
	counts := make([]int32, nodeCount)
	trusses := buildTrusses(m, opts.Mode, counts)

	if len(trusses) > MaxTrusses {
		return nil, fmt.Errorf("%w: %d trusses (max %d), use a mesh with fewer triangles and vertices",
			ErrTopologyTooLarge, len(trusses), MaxTrusses)
	}

	g := &Graph{
		Nodes:   buildNodes(m, opts.Mass, counts),
		Trusses: trusses,
	}
	for _, c := range counts {
		g.MaxConnections = max(g.MaxConnections, int(c))
	}
	g.Adjacency = buildAdjacency(trusses, nodeCount, g.MaxConnections)

	return g, nil
}

// BuildNodes returns a graph with nodes only and no trusses, as used by
// solid bodies whose nodes are driven without springs.
func BuildNodes(m *mesh.Mesh, mass float32) (*Graph, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMesh, err)
	}
	return &Graph{Nodes: buildNodes(m, mass, make([]int32, m.VertexCount()))}, nil
}

func buildTrusses(m *mesh.Mesh, mode EdgeMode, counts []int32) []Truss {
	var trusses []Truss
	seen := make(map[[2]int32]struct{})

	add := func(i, j int) {
		a, b := int32(i), int32(j)
		if a == b {
			return
		}
		key := [2]int32{min(a, b), max(a, b)}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		trusses = append(trusses, Truss{
			A:          a,
			B:          b,
			RestLength: m.Vertices[i].Distance(m.Vertices[j]),
		})
		counts[a]++
		counts[b]++
	}

	tris := m.Triangles
	switch mode {
	case PerTriangleEdges:
		for i := 0; i+2 < len(tris); i += 3 {
			add(tris[i], tris[i+1])
			add(tris[i+1], tris[i+2])
			add(tris[i+2], tris[i])
		}
	default:
		for i := 0; i+1 < len(tris); i++ {
			add(tris[i], tris[i+1])
		}
	}
	return trusses
}

func buildNodes(m *mesh.Mesh, mass float32, counts []int32) []Node {
	if mass <= 0 {
		mass = DefaultNodeMass
	}
	nodes := make([]Node, m.VertexCount())
	for i, v := range m.Vertices {
		nodes[i] = Node{
			TrussesConnected: counts[i],
			Mass:             mass,
			StartPosition:    v,
		}
		if m.Normals != nil {
			nodes[i].Normal = m.Normals[i]
		}
		if m.Weights != nil {
			nodes[i].Weight = m.Weights[i]
		}
	}
	return nodes
}

func buildAdjacency(trusses []Truss, nodeCount, width int) []AdjacencyEntry {
	table := make([]AdjacencyEntry, nodeCount*width)
	next := make([]int, nodeCount)

	for id, t := range trusses {
		table[int(t.A)+nodeCount*next[t.A]] = AdjacencyEntry{TrussID: int32(id), Side: SideLeft}
		table[int(t.B)+nodeCount*next[t.B]] = AdjacencyEntry{TrussID: int32(id), Side: SideRight}
		next[t.A]++
		next[t.B]++
	}
	return table
}
