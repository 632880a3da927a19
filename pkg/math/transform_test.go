package math

import (
	"math"
	"testing"
)

func TestTransformRoundTrip(t *testing.T) {
	tr := Transform{
		Position: Vec3{1, 2, 3},
		Rotation: QuatFromAxisAngle(Vec3{0, 1, 0}, float32(math.Pi/3)),
		Scale:    Vec3{2, 1, 0.5},
	}

	points := []Vec3{{0, 0, 0}, {1, 0, 0}, {-3, 4, 5}}
	for _, p := range points {
		got := tr.InverseTransformPoint(tr.TransformPoint(p))
		if !got.ApproxEqual(p, 1e-4) {
			t.Errorf("round trip of %v = %v", p, got)
		}
	}
}

func TestTransformInverseTransformPoint(t *testing.T) {
	tests := []struct {
		name string
		tr   Transform
		in   Vec3
		want Vec3
	}{
		{
			name: "identity",
			tr:   IdentityTransform(),
			in:   Vec3{1, 2, 3},
			want: Vec3{1, 2, 3},
		},
		{
			name: "translated",
			tr:   Transform{Position: Vec3{10, 0, 0}, Rotation: QuatIdentity(), Scale: Vec3One},
			in:   Vec3{11, 1, 0},
			want: Vec3{1, 1, 0},
		},
		{
			name: "scaled",
			tr:   Transform{Rotation: QuatIdentity(), Scale: Vec3{2, 2, 2}},
			in:   Vec3{4, 2, 0},
			want: Vec3{2, 1, 0},
		},
		{
			name: "degenerate scale",
			tr:   Transform{Rotation: QuatIdentity(), Scale: Vec3{0, 1, 1}},
			in:   Vec3{4, 2, 0},
			want: Vec3{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.tr.InverseTransformPoint(tt.in)
			if !got.ApproxEqual(tt.want, 1e-5) {
				t.Errorf("InverseTransformPoint(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTransformInverseTransformDirectionIgnoresScale(t *testing.T) {
	tr := Transform{
		Position: Vec3{5, 5, 5},
		Rotation: QuatFromAxisAngle(Vec3{0, 1, 0}, float32(math.Pi/2)),
		Scale:    Vec3{3, 3, 3},
	}
	got := tr.InverseTransformDirection(Vec3{0, 0, -1})
	want := Vec3{1, 0, 0}
	if !got.ApproxEqual(want, 1e-5) {
		t.Errorf("InverseTransformDirection() = %v, want %v", got, want)
	}
}
