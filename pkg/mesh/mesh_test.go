package mesh

import (
	"errors"
	"strings"
	"testing"

	"github.com/Faultbox/softbody/pkg/math"
)

func quad() *Mesh {
	return &Mesh{
		Vertices: []math.Vec3{
			{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
		},
		Triangles: []int{0, 1, 2, 0, 2, 3},
	}
}

func TestBounds(t *testing.T) {
	m := quad()
	b := m.Bounds()

	if b.Min != (math.Vec3{0, 0, 0}) || b.Max != (math.Vec3{1, 1, 0}) {
		t.Errorf("Bounds() = %+v", b)
	}
	if got, want := b.Center(), (math.Vec3{0.5, 0.5, 0}); got != want {
		t.Errorf("Center() = %v, want %v", got, want)
	}
	if got, want := b.Extents(), (math.Vec3{0.5, 0.5, 0}); got != want {
		t.Errorf("Extents() = %v, want %v", got, want)
	}
}

func TestBoundsIntersects(t *testing.T) {
	a := Bounds{Min: math.Vec3{0, 0, 0}, Max: math.Vec3{1, 1, 1}}
	tests := []struct {
		name  string
		other Bounds
		want  bool
	}{
		{"overlap", Bounds{Min: math.Vec3{0.5, 0.5, 0.5}, Max: math.Vec3{2, 2, 2}}, true},
		{"touching", Bounds{Min: math.Vec3{1, 0, 0}, Max: math.Vec3{2, 1, 1}}, true},
		{"apart", Bounds{Min: math.Vec3{3, 3, 3}, Max: math.Vec3{4, 4, 4}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Intersects(tt.other); got != tt.want {
				t.Errorf("Intersects() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mesh    *Mesh
		wantErr error
	}{
		{"valid", quad(), nil},
		{"bad count", &Mesh{Vertices: quad().Vertices, Triangles: []int{0, 1}}, ErrTriangleCount},
		{"out of range", &Mesh{Vertices: quad().Vertices, Triangles: []int{0, 1, 9}}, ErrIndexOutOfRange},
		{"normals mismatch", &Mesh{Vertices: quad().Vertices, Normals: []math.Vec3{{}}, Triangles: []int{0, 1, 2}}, ErrAttributeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mesh.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecalculateNormals(t *testing.T) {
	m := quad()
	m.RecalculateNormals()
	for i, n := range m.Normals {
		if !n.ApproxEqual(math.Vec3{0, 0, 1}, 1e-6) {
			t.Errorf("normal[%d] = %v, want +Z", i, n)
		}
	}
}

func TestParseOBJ(t *testing.T) {
	src := `# quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
f 1 2 3 4
`
	m, err := ParseOBJ(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseOBJ() error = %v", err)
	}
	if m.VertexCount() != 4 {
		t.Errorf("expected 4 vertices, got %d", m.VertexCount())
	}
	want := []int{0, 1, 2, 0, 2, 3}
	if len(m.Triangles) != len(want) {
		t.Fatalf("triangles = %v, want %v", m.Triangles, want)
	}
	for i := range want {
		if m.Triangles[i] != want[i] {
			t.Errorf("triangles = %v, want %v", m.Triangles, want)
			break
		}
	}
	if len(m.Normals) != 4 {
		t.Errorf("expected recomputed normals, got %d", len(m.Normals))
	}
}

func TestParseOBJNegativeAndSlashed(t *testing.T) {
	src := `v 0 0 0
v 1 0 0
v 0 1 0
vn 0 0 1
f -3//1 -2//1 -1//1
`
	m, err := ParseOBJ(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseOBJ() error = %v", err)
	}
	if m.Triangles[0] != 0 || m.Triangles[2] != 2 {
		t.Errorf("triangles = %v", m.Triangles)
	}
	if m.Normals[1] != (math.Vec3{0, 0, 1}) {
		t.Errorf("normal[1] = %v", m.Normals[1])
	}
}

func TestParseOBJInvalid(t *testing.T) {
	tests := []string{
		"v 1 2\n",
		"v 0 0 0\nf 1 2 3\n",
		"v a b c\n",
	}
	for _, src := range tests {
		if _, err := ParseOBJ(strings.NewReader(src)); !errors.Is(err, ErrInvalidOBJ) {
			t.Errorf("ParseOBJ(%q) error = %v, want ErrInvalidOBJ", src, err)
		}
	}
}

func TestCombine(t *testing.T) {
	a := quad()
	b := quad()
	shifted := math.IdentityTransform()
	shifted.Position = math.Vec3{10, 0, 0}

	m := Combine([]Part{
		{Mesh: a, Transform: math.IdentityTransform()},
		{Mesh: b, Transform: shifted},
	})

	if m.VertexCount() != 8 {
		t.Fatalf("expected 8 vertices, got %d", m.VertexCount())
	}
	if m.Triangles[6] != 4 {
		t.Errorf("second part indices should be offset by 4, got %d", m.Triangles[6])
	}
	if !m.Vertices[5].ApproxEqual(math.Vec3{11, 0, 0}, 1e-5) {
		t.Errorf("vertex 5 = %v, want (11,0,0)", m.Vertices[5])
	}
	if m.Weights != nil {
		t.Error("weights should be dropped when parts lack them")
	}
	if err := m.Validate(); err != nil {
		t.Errorf("combined mesh invalid: %v", err)
	}
}
