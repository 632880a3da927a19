package colsync

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/softbody/internal/collide"
	"github.com/Faultbox/softbody/internal/decompose"
	"github.com/Faultbox/softbody/internal/logger"
	"github.com/Faultbox/softbody/pkg/math"
)

// DefaultLookahead is the velocity lookahead used for predictive syncs.
const DefaultLookahead = 0.04

// Proxy is one convex collider fragment: a point cloud tracking the node
// positions at Indices.
type Proxy struct {
	Name    string
	Indices []int

	mu     sync.RWMutex
	points []math.Vec3
}

// Points returns a copy of the proxy's current point cloud.
func (p *Proxy) Points() []math.Vec3 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]math.Vec3(nil), p.points...)
}

func (p *Proxy) setPoints(pts []math.Vec3) {
	p.mu.Lock()
	p.points = pts
	p.mu.Unlock()
}

// ProxiesFrom builds one proxy per partition group, seeded with the group's
// baked points.
func ProxiesFrom(part *decompose.Partition) []*Proxy {
	out := make([]*Proxy, len(part.Groups))
	for i, g := range part.Groups {
		out[i] = &Proxy{
			Name:    fmt.Sprintf("proxy-%d%s", i, g.Voxel),
			Indices: append([]int(nil), g.Indices...),
			points:  append([]math.Vec3(nil), g.Points...),
		}
	}
	return out
}

// Source publishes node state. Returned slices must not be mutated after
// publication; a new step publishes new slices.
type Source interface {
	Snapshot() (positions, velocities []math.Vec3)
}

// Ignorer toggles collision between a proxy and a host collider.
type Ignorer interface {
	IgnoreCollision(p *Proxy, other *collide.Collider, ignore bool)
}

// Options configures a Synchronizer.
type Options struct {
	Strategy  Strategy
	Interval  time.Duration
	Lookahead float32
	Workers   int
	Ignorer   Ignorer
	Logger    *zap.Logger
}

// Synchronizer refreshes proxies from a Source.
type Synchronizer struct {
	opts    Options
	proxies []*Proxy
	src     Source
	log     *zap.Logger

	mu      sync.Mutex
	running atomic.Bool
	stop    chan struct{}
	wg      sync.WaitGroup

	syncs atomic.Int64
}

// New returns a synchronizer over proxies.
func New(proxies []*Proxy, src Source, opts Options) *Synchronizer {
	if opts.Lookahead == 0 {
		opts.Lookahead = DefaultLookahead
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Interval <= 0 {
		opts.Interval = 20 * time.Millisecond
	}
	log := opts.Logger
	if log == nil {
		log = logger.Named("colsync")
	}
	return &Synchronizer{opts: opts, proxies: proxies, src: src, log: log}
}

// Proxies returns the managed proxies.
func (s *Synchronizer) Proxies() []*Proxy { return s.proxies }

// Strategy returns the configured strategy.
func (s *Synchronizer) Strategy() Strategy { return s.opts.Strategy }

// Syncs returns how many full refreshes have completed.
func (s *Synchronizer) Syncs() int64 { return s.syncs.Load() }

// Sync refreshes every proxy using the configured strategy. Under Cycle it
// is a no-op; the background loop owns refreshes.
func (s *Synchronizer) Sync(ctx context.Context) error {
	switch s.opts.Strategy {
	case Immediate:
		return s.SyncImmediate(Displacement{})
	case Parallel:
		return s.SyncParallel(ctx, Displacement{})
	default:
		return nil
	}
}

// SyncImmediate gathers every proxy on the calling goroutine.
func (s *Synchronizer) SyncImmediate(d Displacement) error {
	pos, _ := s.src.Snapshot()
	results := make([][]math.Vec3, len(s.proxies))
	for i, p := range s.proxies {
		pts, err := Remap(pos, p.Indices, d)
		if err != nil {
			return fmt.Errorf("%s: %w", p.Name, err)
		}
		results[i] = pts
	}
	s.assign(results)
	return nil
}

// SyncParallel gathers every proxy with ParallelRemap and assigns results
// only after all proxies succeed.
func (s *Synchronizer) SyncParallel(ctx context.Context, d Displacement) error {
	pos, _ := s.src.Snapshot()
	results := make([][]math.Vec3, len(s.proxies))
	for i, p := range s.proxies {
		pts, err := ParallelRemap(ctx, pos, p.Indices, d, s.opts.Workers)
		if err != nil {
			return fmt.Errorf("%s: %w", p.Name, err)
		}
		results[i] = pts
	}
	s.assign(results)
	return nil
}

func (s *Synchronizer) assign(results [][]math.Vec3) {
	for i, p := range s.proxies {
		p.setPoints(results[i])
	}
	s.syncs.Add(1)
}

// Predict refreshes once with every point pushed forward along its node's
// velocity by the lookahead.
func (s *Synchronizer) Predict(ctx context.Context) error {
	_, vel := s.src.Snapshot()
	d := Displacement{Velocities: vel, Lookahead: s.opts.Lookahead}
	if err := s.SyncParallel(ctx, d); err != nil {
		return err
	}
	s.log.Debug("predictive collider sync", zap.Int("proxies", len(s.proxies)))
	return nil
}

// Start launches the background cycle. It returns false if the cycle is
// already running.
func (s *Synchronizer) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.CompareAndSwap(false, true) {
		return false
	}
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.loop(s.stop)
	s.log.Debug("collider cycle started", zap.Duration("interval", s.opts.Interval))
	return true
}

// Stop cancels the background cycle and waits for it to exit. A gather in
// progress is abandoned without touching the proxies. Stopping a stopped
// cycle is a no-op.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stop)
	s.wg.Wait()
	s.log.Debug("collider cycle stopped")
}

// Running reports whether the background cycle is active.
func (s *Synchronizer) Running() bool { return s.running.Load() }

func (s *Synchronizer) loop(stop <-chan struct{}) {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-stop:
			return
		case <-timer.C:
		}
		// A stop that raced the timer still wins before the gather.
		select {
		case <-stop:
			return
		default:
		}
		if err := s.SyncParallel(ctx, Displacement{}); err != nil && ctx.Err() == nil {
			s.log.Warn("collider cycle sync failed", zap.Error(err))
		}
		timer.Reset(s.opts.Interval)
	}
}

// OnContact suppresses collisions between every proxy and other.
func (s *Synchronizer) OnContact(other *collide.Collider) {
	s.setIgnore(other, true)
}

// Unfreeze restores collisions between every proxy and other.
func (s *Synchronizer) Unfreeze(other *collide.Collider) {
	s.setIgnore(other, false)
}

func (s *Synchronizer) setIgnore(other *collide.Collider, ignore bool) {
	if s.opts.Ignorer == nil || other == nil {
		return
	}
	for _, p := range s.proxies {
		s.opts.Ignorer.IgnoreCollision(p, other, ignore)
	}
}
