package collide

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/softbody/internal/gpu"
	"github.com/Faultbox/softbody/internal/logger"
	"github.com/Faultbox/softbody/pkg/math"
)

const (
	// RadiusRatio inflates sphere radii written to continuous records.
	RadiusRatio = 1.25
	// DamageRatio scales relative contact velocity into impulse records.
	DamageRatio = 0.2
	// ShapeScale halves collider scale so box records carry half extents.
	ShapeScale = 0.5
	// SolidAmplitude further inflates collider scale for solid bodies.
	SolidAmplitude = 1.1
)

// Options configures a Classifier.
type Options struct {
	Mode             ContinuousMode
	Impulse          ImpulseKind
	ScaleMultiplier  float32
	MaxCollisions    int
	// Mesh capacities match the kernel scratch buffers, which always
	// hold at least one element.
	MaxMeshVertices  int
	MaxMeshTriangles int
	// Amplitude multiplies collider scale; 1 for soft bodies,
	// SolidAmplitude for solid ones. Zero means 1.
	Amplitude float32
	Logger    *zap.Logger
}

// colliderSet is an insertion-ordered set of colliders.
type colliderSet struct {
	items []*Collider
	index map[*Collider]struct{}
}

func newColliderSet() colliderSet {
	return colliderSet{index: make(map[*Collider]struct{})}
}

func (s *colliderSet) add(c *Collider) bool {
	if _, ok := s.index[c]; ok {
		return false
	}
	s.index[c] = struct{}{}
	s.items = append(s.items, c)
	return true
}

func (s *colliderSet) remove(c *Collider) bool {
	if _, ok := s.index[c]; !ok {
		return false
	}
	delete(s.index, c)
	for i, it := range s.items {
		if it == c {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
	return true
}

func (s *colliderSet) has(c *Collider) bool {
	_, ok := s.index[c]
	return ok
}

// Classifier tracks overlapping colliders and builds kernel records from
// them. Host events and the tick may arrive on different goroutines.
type Classifier struct {
	mu      sync.Mutex
	opts    Options
	generic colliderSet
	meshes  colliderSet
	contact *pendingContact
	log     *zap.Logger
}

type pendingContact struct {
	record gpu.ContactRecord
	mesh   *Collider
}

// NewClassifier returns a classifier with empty collider sets.
func NewClassifier(opts Options) *Classifier {
	if opts.Amplitude == 0 {
		opts.Amplitude = 1
	}
	if opts.ScaleMultiplier == 0 {
		opts.ScaleMultiplier = 1
	}
	log := opts.Logger
	if log == nil {
		log = logger.Named("collide")
	}
	return &Classifier{
		opts:    opts,
		generic: newColliderSet(),
		meshes:  newColliderSet(),
		log:     log,
	}
}

// SetMode changes the continuous mode; it takes effect at the next Plan.
func (c *Classifier) SetMode(m ContinuousMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Mode = m
}

// SetImpulse changes the impulse detection kind.
func (c *Classifier) SetImpulse(k ImpulseKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Impulse = k
}

// SetScaleMultiplier changes the scale applied to collider records.
func (c *Classifier) SetScaleMultiplier(s float32) {
	if s <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.ScaleMultiplier = s
}

// Mode returns the current continuous mode.
func (c *Classifier) Mode() ContinuousMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts.Mode
}

// Subscribe starts tracking col. Mesh colliders go to the mesh set, all
// others to the generic set. Subscribing a tracked collider is a no-op.
func (c *Classifier) Subscribe(col *Collider) {
	if col == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	set := &c.generic
	if col.IsMesh() {
		set = &c.meshes
	}
	if set.add(col) {
		c.log.Debug("collider tracked", zap.Stringer("collider", col))
	}
}

// Unsubscribe stops tracking col. Unknown colliders are ignored.
func (c *Classifier) Unsubscribe(col *Collider) {
	if col == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generic.remove(col) || c.meshes.remove(col) {
		c.log.Debug("collider released", zap.Stringer("collider", col))
	}
}

// Tracking reports whether col is in either set.
func (c *Classifier) Tracking(col *Collider) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generic.has(col) || c.meshes.has(col)
}

// Tracked returns the number of tracked colliders across both sets.
func (c *Classifier) Tracked() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.generic.items) + len(c.meshes.items)
}

// Generic returns the tracked non-mesh colliders in subscription order.
func (c *Classifier) Generic() []*Collider {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Collider(nil), c.generic.items...)
}

// Meshes returns the tracked mesh colliders in subscription order.
func (c *Classifier) Meshes() []*Collider {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Collider(nil), c.meshes.items...)
}

// TransformRecord expresses col in the local frame of body.
func (c *Classifier) TransformRecord(body math.Transform, col *Collider) gpu.TransformRecord {
	c.mu.Lock()
	opts := c.opts
	c.mu.Unlock()
	return transformRecord(opts, body, col)
}

func transformRecord(opts Options, body math.Transform, col *Collider) gpu.TransformRecord {
	kind := Classify(col.Shape)
	center := Center(col.Shape)

	rec := gpu.TransformRecord{
		LocalPosition: body.InverseTransformPoint(col.Transform.TransformPoint(center)).Array(),
		ColliderType:  int32(kind),
	}
	rot := body.Rotation.Normalize().Inverse().Mul(col.Transform.Rotation.Normalize())
	rec.LocalRotation = [4]float32{rot.X, rot.Y, rot.Z, rot.W}

	if kind == TypeMesh {
		if m, ok := meshOf(col.Shape); ok {
			rec.TrianglesCount = int32(len(m.Triangles) / 3)
		}
	}
	rec.LocalScale = col.Transform.Scale.Scale(ShapeScale * opts.ScaleMultiplier * opts.Amplitude).Array()
	return rec
}

// continuousRecord builds the full continuous record for col.
func continuousRecord(opts Options, body math.Transform, col *Collider) gpu.ContinuousRecord {
	rec := gpu.ContinuousRecord{Transform: transformRecord(opts, body, col)}
	switch s := col.Shape.(type) {
	case Sphere:
		rec.SphereRadius = sphereRadius(opts, s.Radius, col.Transform.Scale)
	case *Sphere:
		rec.SphereRadius = sphereRadius(opts, s.Radius, col.Transform.Scale)
	}
	return rec
}

func sphereRadius(opts Options, r float32, scale math.Vec3) float32 {
	return r * RadiusRatio * opts.ScaleMultiplier * scale.GeometricMean()
}

// ContinuousSnapshot is the bounded set of continuous records for one tick.
type ContinuousSnapshot struct {
	Records []gpu.ContinuousRecord
	// Dropped counts tracked colliders beyond capacity.
	Dropped int
}

// Count returns the number of live records.
func (s ContinuousSnapshot) Count() int { return len(s.Records) }

// BuildContinuousSnapshot encodes every tracked collider that feeds the
// continuous pass under the current mode. Colliders beyond MaxCollisions are
// not represented; earlier subscriptions win.
func (c *Classifier) BuildContinuousSnapshot(body math.Transform) ContinuousSnapshot {
	c.mu.Lock()
	opts := c.opts
	cols := c.continuousSourcesLocked()
	c.mu.Unlock()

	var snap ContinuousSnapshot
	limit := opts.MaxCollisions
	for _, col := range cols {
		if len(snap.Records) >= limit {
			snap.Dropped++
			continue
		}
		snap.Records = append(snap.Records, continuousRecord(opts, body, col))
	}
	return snap
}

// continuousSourcesLocked returns the non-mesh colliders; mesh colliders
// only reach the kernel through Plan.MeshPasses.
func (c *Classifier) continuousSourcesLocked() []*Collider {
	switch c.opts.Mode {
	case ContinuousBasicShapes, ContinuousFull:
		return append([]*Collider(nil), c.generic.items...)
	default:
		return nil
	}
}

// MeshSnapshot is a mesh collider's transform plus its geometry.
type MeshSnapshot struct {
	Transform gpu.TransformRecord
	Vertices  []gpu.Vec3Record
	Triangles []int32
	Truncated bool
}

// BuildMeshSnapshot encodes col's transform and copies its vertex and index
// arrays. Geometry beyond the configured capacities is truncated; triangles
// that reference dropped vertices are dropped with it. ok is false when col
// is not a mesh collider.
func (c *Classifier) BuildMeshSnapshot(body math.Transform, col *Collider) (snap MeshSnapshot, ok bool) {
	m, ok := meshOf(col.Shape)
	if !ok {
		return MeshSnapshot{}, false
	}
	c.mu.Lock()
	opts := c.opts
	c.mu.Unlock()

	nv := len(m.Vertices)
	if limit := max(opts.MaxMeshVertices, 1); nv > limit {
		nv = limit
		snap.Truncated = true
	}
	snap.Vertices = make([]gpu.Vec3Record, nv)
	for i := 0; i < nv; i++ {
		snap.Vertices[i] = m.Vertices[i].Array()
	}

	maxTris := len(m.Triangles) / 3
	if limit := max(opts.MaxMeshTriangles, 1); maxTris > limit {
		maxTris = limit
		snap.Truncated = true
	}
	snap.Triangles = make([]int32, 0, maxTris*3)
	for i := 0; i+2 < len(m.Triangles) && len(snap.Triangles) < maxTris*3; i += 3 {
		a, b, cc := m.Triangles[i], m.Triangles[i+1], m.Triangles[i+2]
		if a >= nv || b >= nv || cc >= nv {
			snap.Truncated = true
			continue
		}
		snap.Triangles = append(snap.Triangles, int32(a), int32(b), int32(cc))
	}

	snap.Transform = transformRecord(opts, body, col)
	snap.Transform.TrianglesCount = int32(len(snap.Triangles) / 3)
	if snap.Truncated {
		c.log.Warn("mesh collider exceeds buffer capacity, truncated",
			zap.Stringer("collider", col),
			zap.Int("vertices", len(m.Vertices)),
			zap.Int("triangles", len(m.Triangles)/3),
			zap.Int("max_vertices", opts.MaxMeshVertices),
			zap.Int("max_triangles", opts.MaxMeshTriangles))
	}
	return snap, true
}

// OnDiscreteContact records an impulse contact in body space. Under
// ImpulseMesh, contacts from non-mesh colliders are ignored and false is
// returned. The latest accepted contact replaces any still pending.
func (c *Classifier) OnDiscreteContact(body math.Transform, point, relVelocity math.Vec3, other *Collider) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	var meshCol *Collider
	if c.opts.Impulse == ImpulseMesh {
		if other == nil || !other.IsMesh() {
			c.log.Debug("contact ignored, impulse kind requires a mesh collider")
			return false
		}
		meshCol = other
	}
	c.contact = &pendingContact{
		record: ContactRecord(body, point, relVelocity),
		mesh:   meshCol,
	}
	return true
}

// ContactRecord converts a world contact into the body's local frame.
func ContactRecord(body math.Transform, point, relVelocity math.Vec3) gpu.ContactRecord {
	return gpu.ContactRecord{
		Velocity: body.InverseTransformDirection(relVelocity.Scale(DamageRatio)).Array(),
		Point:    body.InverseTransformPoint(point).Array(),
	}
}

// Plan lists the collision work for one tick.
type Plan struct {
	Continuous ContinuousSnapshot
	// MeshPasses holds one snapshot per mesh collider in Full mode.
	MeshPasses []MeshSnapshot
	// Contact is the pending impulse contact, if any.
	Contact *gpu.ContactRecord
	// ContactMesh is the mesh collider behind Contact under ImpulseMesh.
	ContactMesh *MeshSnapshot
}

// RunContinuous reports whether the continuous pass has work.
func (p Plan) RunContinuous() bool { return p.Continuous.Count() > 0 }

// Plan reads the mode and builds this tick's collision work. A pending
// contact is consumed.
func (c *Classifier) Plan(body math.Transform) Plan {
	p := Plan{Continuous: c.BuildContinuousSnapshot(body)}

	if c.Mode() == ContinuousFull {
		for _, col := range c.Meshes() {
			if snap, ok := c.BuildMeshSnapshot(body, col); ok {
				p.MeshPasses = append(p.MeshPasses, snap)
			}
		}
	}

	c.mu.Lock()
	pending := c.contact
	c.contact = nil
	c.mu.Unlock()

	if pending != nil {
		rec := pending.record
		p.Contact = &rec
		if pending.mesh != nil {
			if snap, ok := c.BuildMeshSnapshot(body, pending.mesh); ok {
				p.ContactMesh = &snap
			}
		}
	}
	if p.Continuous.Dropped > 0 {
		c.log.Debug("continuous colliders over capacity",
			zap.Int("dropped", p.Continuous.Dropped))
	}
	return p
}

// Reset forgets every tracked collider and any pending contact.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generic = newColliderSet()
	c.meshes = newColliderSet()
	c.contact = nil
}
