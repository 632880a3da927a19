// Package body owns the lifetime of one simulated deformable body: topology
// analysis, kernel buffers, collision classification and collider sync.
package body

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/softbody/internal/collide"
	"github.com/Faultbox/softbody/internal/colsync"
	"github.com/Faultbox/softbody/internal/config"
	"github.com/Faultbox/softbody/internal/decompose"
	"github.com/Faultbox/softbody/internal/gpu"
	"github.com/Faultbox/softbody/internal/logger"
	"github.com/Faultbox/softbody/internal/topology"
	"github.com/Faultbox/softbody/pkg/math"
	"github.com/Faultbox/softbody/pkg/mesh"
)

var (
	// ErrTornDown is returned by operations on a body after Teardown.
	ErrTornDown = errors.New("body torn down")
	// ErrNoDevice is returned when Initialize is missing its device or kernel.
	ErrNoDevice = errors.New("device and kernel are required")
)

// Options supplies the collaborators a body needs.
type Options struct {
	Device gpu.Device
	Kernel gpu.Kernel

	// Partition maps node indices to collider proxies. Nil disables
	// collider sync.
	Partition *decompose.Partition
	// Simplifier produces the anchor mesh of solid bodies.
	Simplifier mesh.Simplifier
	// Ignorer receives proxy collision toggles on contact.
	Ignorer colsync.Ignorer

	Transform math.Transform
	Logger    *zap.Logger
}

// Body is one initialized simulated body.
type Body struct {
	ID   uuid.UUID
	Kind config.BodyKind

	cfg     *config.Config
	graph   *topology.Graph
	origin  *mesh.Mesh
	buffers *gpu.BufferSet
	kernel  gpu.Kernel

	classifier *collide.Classifier
	sync       *colsync.Synchronizer
	predictor  collide.Scheduler

	// stepMu serializes every access to kernel buffers.
	stepMu sync.Mutex

	stateMu    sync.RWMutex
	transform  math.Transform
	velocity   math.Vec3
	positions  []math.Vec3
	velocities []math.Vec3
	ticks      uint64

	ctx      context.Context
	cancel   context.CancelFunc
	tornDown bool
	once     sync.Once
	log      *zap.Logger
}

// Initialize builds a body from m. Soft bodies analyze m into a truss
// network; solid bodies simulate the simplified anchor mesh and interpolate
// m from it. On any error every buffer allocated so far is released and no
// body is returned.
func Initialize(cfg *config.Config, m *mesh.Mesh, opts Options) (*Body, error) {
	if opts.Device == nil || opts.Kernel == nil {
		return nil, ErrNoDevice
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &Body{
		ID:        uuid.New(),
		Kind:      cfg.Body.Kind,
		cfg:       cloneConfig(cfg),
		kernel:    opts.Kernel,
		transform: opts.Transform,
	}
	if b.transform == (math.Transform{}) {
		b.transform = math.IdentityTransform()
	}
	b.log = opts.Logger
	if b.log == nil {
		b.log = logger.Named("body")
	}
	b.log = b.log.With(zap.String("body", b.ID.String()), zap.Stringer("kind", b.Kind))

	var err error
	var profile gpu.Profile
	var counts gpu.Counts
	switch b.Kind {
	case config.SolidBody:
		profile = gpu.ProfileSolid
		err = b.analyzeSolid(m, opts.Simplifier, &counts)
	default:
		profile = gpu.ProfileSoft
		err = b.analyzeSoft(m, &counts)
	}
	if err != nil {
		return nil, err
	}

	nodes := b.graph.NodeCount()
	if opts.Partition != nil {
		if err := opts.Partition.Validate(nodes); err != nil {
			return nil, fmt.Errorf("partition does not match body nodes: %w", err)
		}
	}

	counts.Nodes = nodes
	counts.MaxCollisions = cfg.Body.MaxCollisions
	counts.MaxMeshVertices = cfg.Body.MaxVertices
	counts.MaxMeshTriangles = cfg.Body.MaxTriangles

	b.buffers, err = gpu.NewBufferSet(opts.Device, profile, counts)
	if err != nil {
		return nil, fmt.Errorf("allocating buffers: %w", err)
	}
	if err := b.upload(); err != nil {
		return nil, errors.Join(fmt.Errorf("uploading body: %w", err), b.buffers.Release())
	}
	if err := b.buffers.Bind(opts.Kernel); err != nil {
		return nil, errors.Join(err, b.buffers.Release())
	}

	amplitude := float32(1)
	if b.Kind == config.SolidBody {
		amplitude = collide.SolidAmplitude
	}
	b.classifier = collide.NewClassifier(collide.Options{
		Mode:             cfg.Body.ContinuousDetection,
		Impulse:          cfg.Impulse.Detection,
		ScaleMultiplier:  cfg.Body.ScaleMultiplier,
		MaxCollisions:    cfg.Body.MaxCollisions,
		MaxMeshVertices:  cfg.Body.MaxVertices,
		MaxMeshTriangles: cfg.Body.MaxTriangles,
		Amplitude:        amplitude,
		Logger:           b.log.Named("collide"),
	})

	var proxies []*colsync.Proxy
	if opts.Partition != nil {
		proxies = colsync.ProxiesFrom(opts.Partition)
	}
	b.sync = colsync.New(proxies, b, colsync.Options{
		Strategy:  cfg.Sync.Strategy,
		Interval:  cfg.Sync.Interval.D(),
		Lookahead: cfg.Sync.PredictionLookahead,
		Workers:   cfg.Sync.Workers,
		Ignorer:   opts.Ignorer,
		Logger:    b.log.Named("colsync"),
	})

	b.ctx, b.cancel = context.WithCancel(context.Background())

	b.log.Info("body initialized",
		zap.Int("nodes", nodes),
		zap.Int("trusses", len(b.graph.Trusses)),
		zap.Int("max_connections", b.graph.MaxConnections),
		zap.Int("proxies", len(proxies)))
	return b, nil
}

func (b *Body) analyzeSoft(m *mesh.Mesh, counts *gpu.Counts) error {
	mode := topology.ConsecutiveIndices
	if b.cfg.Body.PerTriangleEdges {
		mode = topology.PerTriangleEdges
	}
	g, err := topology.Build(m, topology.Options{Mode: mode, Mass: b.cfg.Simulation.Mass})
	if err != nil {
		if errors.Is(err, topology.ErrTopologyTooLarge) {
			b.log.Error("body not initialized", zap.Error(err))
		}
		return err
	}
	b.graph = g
	counts.Trusses = len(g.Trusses)
	counts.MaxConnections = g.MaxConnections
	return nil
}

func (b *Body) analyzeSolid(m *mesh.Mesh, s mesh.Simplifier, counts *gpu.Counts) error {
	if s == nil {
		s = mesh.Passthrough
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %w", topology.ErrInvalidMesh, err)
	}
	anchor, err := s.Simplify(m, b.cfg.Decompose.Quality)
	if err != nil {
		return fmt.Errorf("simplifying anchor mesh: %w", err)
	}
	g, err := topology.BuildNodes(anchor, b.cfg.Simulation.Mass)
	if err != nil {
		return err
	}
	for i := range g.Nodes {
		g.Nodes[i].Weight = 0
	}
	b.graph = g
	b.origin = m.Clone()
	counts.OriginNodes = m.VertexCount()
	return nil
}

func (b *Body) upload() error {
	set := b.buffers
	g := b.graph

	start := make([]math.Vec3, len(g.Nodes))
	for i, n := range g.Nodes {
		start[i] = n.StartPosition
	}
	if err := gpu.Write(set.NodeOther, nodeRecords(g.Nodes)); err != nil {
		return err
	}
	if err := gpu.Write(set.Positions, vec3Records(start)); err != nil {
		return err
	}
	if err := gpu.Write(set.Velocities, make([]gpu.Vec3Record, len(start))); err != nil {
		return err
	}

	if set.Profile == gpu.ProfileSoft {
		if err := gpu.Write(set.Trusses, trussRecords(g.Trusses)); err != nil {
			return err
		}
		if err := gpu.Write(set.NodeInfo, adjacencyRecords(g.Adjacency)); err != nil {
			return err
		}
		if err := gpu.Write(set.StiffnessPoints, vec3Records(start)); err != nil {
			return err
		}
	} else {
		originNodes, err := topology.BuildNodes(b.origin, b.cfg.Simulation.Mass)
		if err != nil {
			return err
		}
		if err := gpu.Write(set.OriginPositions, vec3Records(b.origin.Vertices)); err != nil {
			return err
		}
		if err := gpu.Write(set.OriginOther, nodeRecords(originNodes.Nodes)); err != nil {
			return err
		}
	}

	if err := b.uploadParams(b.cfg); err != nil {
		return err
	}

	b.positions = start
	b.velocities = make([]math.Vec3, len(start))
	return nil
}

func (b *Body) uploadParams(cfg *config.Config) error {
	if err := gpu.WriteOne(b.buffers.SimulationParams, SimulationParams(cfg, b.graph.NodeCount())); err != nil {
		return err
	}
	return gpu.WriteOne(b.buffers.ImpulseParams, ImpulseParams(cfg))
}

func cloneConfig(cfg *config.Config) *config.Config {
	c := *cfg
	return &c
}

// Teardown cancels pending predictions, stops the collider cycle and
// releases every kernel buffer. Later calls are no-ops.
func (b *Body) Teardown() error {
	var err error
	b.once.Do(func() {
		b.predictor.Cancel()
		b.cancel()

		b.stepMu.Lock()
		defer b.stepMu.Unlock()
		b.stateMu.Lock()
		b.tornDown = true
		b.stateMu.Unlock()

		b.sync.Stop()
		err = b.buffers.Release()
		b.log.Info("body torn down", zap.Uint64("ticks", b.Ticks()))
	})
	return err
}

// Graph returns the analyzed topology.
func (b *Body) Graph() *topology.Graph { return b.graph }

// Buffers returns the body's kernel buffers.
func (b *Body) Buffers() *gpu.BufferSet { return b.buffers }

// Classifier returns the collision classifier.
func (b *Body) Classifier() *collide.Classifier { return b.classifier }

// Synchronizer returns the collider synchronizer.
func (b *Body) Synchronizer() *colsync.Synchronizer { return b.sync }

// Proxies returns the collider proxies.
func (b *Body) Proxies() []*colsync.Proxy { return b.sync.Proxies() }

// Config returns a copy of the active configuration.
func (b *Body) Config() config.Config {
	b.stepMu.Lock()
	defer b.stepMu.Unlock()
	return *b.cfg
}

// Snapshot implements colsync.Source. The returned slices are replaced, not
// mutated, by later ticks.
func (b *Body) Snapshot() (positions, velocities []math.Vec3) {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.positions, b.velocities
}

// Ticks returns the number of completed ticks.
func (b *Body) Ticks() uint64 {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.ticks
}

// Transform returns the body's world transform.
func (b *Body) Transform() math.Transform {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.transform
}

// SetTransform moves the body; collider records are computed relative to it.
func (b *Body) SetTransform(t math.Transform) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	b.transform = t
}

// SetVelocity records the body's rigid velocity for impact prediction.
func (b *Body) SetVelocity(v math.Vec3) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	b.velocity = v
}

// WorldBounds returns the world-space bounds of the current node positions.
func (b *Body) WorldBounds() mesh.Bounds {
	pos, _ := b.Snapshot()
	t := b.Transform()
	world := make([]math.Vec3, len(pos))
	for i, p := range pos {
		world[i] = t.TransformPoint(p)
	}
	return mesh.BoundsOf(world)
}
