package mesh

// Simplifier reduces a mesh to a lower vertex count. quality is in (0,1],
// where 1 keeps the mesh unchanged. Implementations live outside this module;
// the decomposer and solid bodies consume them as black boxes.
type Simplifier interface {
	Simplify(m *Mesh, quality float32) (*Mesh, error)
}

// SimplifierFunc adapts a function to the Simplifier interface.
type SimplifierFunc func(m *Mesh, quality float32) (*Mesh, error)

// Simplify calls f.
func (f SimplifierFunc) Simplify(m *Mesh, quality float32) (*Mesh, error) {
	return f(m, quality)
}

// Passthrough returns a copy of the input regardless of quality.
var Passthrough = SimplifierFunc(func(m *Mesh, _ float32) (*Mesh, error) {
	return m.Clone(), nil
})
