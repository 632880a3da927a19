package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/softbody/pkg/math"
	"github.com/Faultbox/softbody/pkg/mesh"
)

func quad() *mesh.Mesh {
	return &mesh.Mesh{
		Vertices: []math.Vec3{
			{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
		},
		Normals:   []math.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		Triangles: []int{0, 1, 2, 0, 2, 3},
	}
}

// lineMesh returns a mesh whose flattened index stream 0,1,...,n-1 yields
// n-1 distinct consecutive pairs. n must be a multiple of 3.
func lineMesh(n int) *mesh.Mesh {
	m := &mesh.Mesh{}
	for i := 0; i < n; i++ {
		m.Vertices = append(m.Vertices, math.Vec3{X: float32(i)})
		m.Triangles = append(m.Triangles, i)
	}
	return m
}

func TestBuildQuad(t *testing.T) {
	g, err := Build(quad(), Options{})
	require.NoError(t, err)

	want := []Truss{
		{A: 0, B: 1, RestLength: 1},
		{A: 1, B: 2, RestLength: 1},
		{A: 2, B: 0, RestLength: math.Vec3{1, 1, 0}.Length()},
		{A: 2, B: 3, RestLength: 1},
	}
	assert.Equal(t, want, g.Trusses)

	assert.Equal(t, []int32{2, 2, 3, 1}, connected(g))
	assert.Equal(t, 3, g.MaxConnections)
	assert.Len(t, g.Adjacency, 4*3)
}

func TestBuildPerTriangleEdges(t *testing.T) {
	g, err := Build(quad(), Options{Mode: PerTriangleEdges})
	require.NoError(t, err)

	// 0-1, 1-2, 2-0, 2-3, 3-0
	assert.Len(t, g.Trusses, 5)
	assert.Equal(t, []int32{3, 2, 3, 2}, connected(g))
}

func TestBuildNoDuplicatePairs(t *testing.T) {
	m := &mesh.Mesh{
		Vertices:  []math.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		Triangles: []int{0, 1, 2, 2, 1, 0, 0, 0, 3, 3, 2, 1, 1, 0, 3},
	}
	for _, mode := range []EdgeMode{ConsecutiveIndices, PerTriangleEdges} {
		t.Run(mode.String(), func(t *testing.T) {
			g, err := Build(m, Options{Mode: mode})
			require.NoError(t, err)

			seen := map[[2]int32]bool{}
			for _, tr := range g.Trusses {
				assert.NotEqual(t, tr.A, tr.B, "self pair")
				key := [2]int32{min(tr.A, tr.B), max(tr.A, tr.B)}
				assert.False(t, seen[key], "duplicate truss %v", key)
				seen[key] = true
			}
		})
	}
}

func TestBuildDeterministic(t *testing.T) {
	m := lineMesh(30)
	m.Triangles = append(m.Triangles, 5, 2, 9, 9, 2, 5)

	a, err := Build(m, Options{})
	require.NoError(t, err)
	b, err := Build(m, Options{})
	require.NoError(t, err)

	assert.Equal(t, a.Trusses, b.Trusses)
	assert.Equal(t, a.Adjacency, b.Adjacency)
}

func TestAdjacencyCompleteness(t *testing.T) {
	m := quad()
	m.Vertices = append(m.Vertices, math.Vec3{5, 5, 5}) // isolated node
	m.Normals = append(m.Normals, math.Vec3{})

	g, err := Build(m, Options{})
	require.NoError(t, err)

	for n := range g.Nodes {
		filled := 0
		for k := 0; k < g.MaxConnections; k++ {
			e := g.Slot(n, k)
			if e.Empty() {
				continue
			}
			filled++
			tr := g.Trusses[e.TrussID]
			switch e.Side {
			case SideLeft:
				assert.Equal(t, int32(n), tr.A)
			case SideRight:
				assert.Equal(t, int32(n), tr.B)
			}
		}
		assert.Equal(t, int(g.Nodes[n].TrussesConnected), filled, "node %d", n)
	}
	assert.Equal(t, int32(0), g.Nodes[4].TrussesConnected)
}

func TestAdjacencyDiscoveryOrder(t *testing.T) {
	g, err := Build(quad(), Options{})
	require.NoError(t, err)

	// Node 2 is touched by trusses 1 (right), 2 (left), 3 (left) in that order.
	assert.Equal(t, AdjacencyEntry{TrussID: 1, Side: SideRight}, g.Slot(2, 0))
	assert.Equal(t, AdjacencyEntry{TrussID: 2, Side: SideLeft}, g.Slot(2, 1))
	assert.Equal(t, AdjacencyEntry{TrussID: 3, Side: SideLeft}, g.Slot(2, 2))
}

func TestBuildCapEnforcement(t *testing.T) {
	t.Run("at cap", func(t *testing.T) {
		g, err := Build(lineMesh(MaxTrusses+1-(MaxTrusses+1)%3), Options{})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(g.Trusses), MaxTrusses)
	})

	t.Run("over cap", func(t *testing.T) {
		g, err := Build(lineMesh(MaxTrusses+3), Options{})
		require.ErrorIs(t, err, ErrTopologyTooLarge)
		assert.Nil(t, g)
	})
}

func TestBuildNodeAttributes(t *testing.T) {
	m := quad()
	m.Weights = []float32{0, 0.25, 0.5, 1}

	g, err := Build(m, Options{Mass: 0.5})
	require.NoError(t, err)

	for i, n := range g.Nodes {
		assert.Equal(t, float32(0.5), n.Mass)
		assert.Equal(t, m.Vertices[i], n.StartPosition)
		assert.Equal(t, m.Normals[i], n.Normal)
		assert.Equal(t, m.Weights[i], n.Weight)
	}

	g, err = Build(quad(), Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultNodeMass, g.Nodes[0].Mass)
}

func TestBuildNodes(t *testing.T) {
	g, err := BuildNodes(quad(), 0)
	require.NoError(t, err)

	assert.Len(t, g.Nodes, 4)
	assert.Empty(t, g.Trusses)
	assert.Zero(t, g.MaxConnections)
	for _, n := range g.Nodes {
		assert.Zero(t, n.TrussesConnected)
	}
}

func TestBuildInvalidMesh(t *testing.T) {
	_, err := Build(&mesh.Mesh{Vertices: []math.Vec3{{}}, Triangles: []int{0, 1, 2}}, Options{})
	assert.ErrorIs(t, err, ErrInvalidMesh)
}

func connected(g *Graph) []int32 {
	out := make([]int32, len(g.Nodes))
	for i, n := range g.Nodes {
		out[i] = n.TrussesConnected
	}
	return out
}
