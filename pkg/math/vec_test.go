package math

import (
	"testing"
)

func TestVec3Cross(t *testing.T) {
	x := Vec3{1, 0, 0}
	y := Vec3{0, 1, 0}
	got := x.Cross(y)
	want := Vec3{0, 0, 1}
	if got != want {
		t.Errorf("Vec3.Cross() = %v, want %v", got, want)
	}
}

func TestVec3Distance(t *testing.T) {
	a := Vec3{0, 0, 0}
	b := Vec3{3, 4, 0}
	if got := a.Distance(b); got != 5 {
		t.Errorf("Vec3.Distance() = %v, want 5", got)
	}
}

func TestVec3Div(t *testing.T) {
	tests := []struct {
		name string
		a, b Vec3
		want Vec3
	}{
		{"regular", Vec3{2, 4, 6}, Vec3{2, 2, 2}, Vec3{1, 2, 3}},
		{"zero divisor", Vec3{2, 4, 6}, Vec3{0, 2, 0}, Vec3{0, 2, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Div(tt.b); got != tt.want {
				t.Errorf("Vec3.Div() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVec3MinMax(t *testing.T) {
	a := Vec3{1, 5, -2}
	b := Vec3{3, 2, -1}
	if got, want := a.Min(b), (Vec3{1, 2, -2}); got != want {
		t.Errorf("Vec3.Min() = %v, want %v", got, want)
	}
	if got, want := a.Max(b), (Vec3{3, 5, -1}); got != want {
		t.Errorf("Vec3.Max() = %v, want %v", got, want)
	}
}

func TestVec3GeometricMean(t *testing.T) {
	tests := []struct {
		v    Vec3
		want float32
	}{
		{Vec3{1, 1, 1}, 1},
		{Vec3{2, 2, 2}, 2},
		{Vec3{1, 8, 1}, 2},
		{Vec3{-2, 2, 2}, 2},
		{Vec3{0, 5, 5}, 0},
	}
	for _, tt := range tests {
		got := tt.v.GeometricMean()
		if abs32(got-tt.want) > 1e-5 {
			t.Errorf("GeometricMean(%v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestVec3iString(t *testing.T) {
	if got := (Vec3i{1, 0, 2}).String(); got != "(1,0,2)" {
		t.Errorf("Vec3i.String() = %q", got)
	}
}
