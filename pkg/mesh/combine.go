package mesh

import "github.com/Faultbox/softbody/pkg/math"

// Part is one input of Combine: a mesh and the transform placing it in the
// combined mesh's space.
type Part struct {
	Mesh      *Mesh
	Transform math.Transform
}

// Combine merges parts into a single mesh, baking each part's transform into
// its vertices and offsetting its triangle indices. Normals are recomputed.
// Weights are kept only if every part carries them.
func Combine(parts []Part) *Mesh {
	out := &Mesh{}
	keepWeights := len(parts) > 0
	for _, p := range parts {
		if p.Mesh == nil || p.Mesh.Weights == nil {
			keepWeights = false
		}
	}

	for _, p := range parts {
		if p.Mesh == nil {
			continue
		}
		base := len(out.Vertices)
		for _, v := range p.Mesh.Vertices {
			out.Vertices = append(out.Vertices, p.Transform.TransformPoint(v))
		}
		for _, idx := range p.Mesh.Triangles {
			out.Triangles = append(out.Triangles, base+idx)
		}
		if keepWeights {
			out.Weights = append(out.Weights, p.Mesh.Weights...)
		}
	}

	out.RecalculateNormals()
	return out
}
