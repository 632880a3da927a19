package collide

import (
	"sync"
	"time"

	"github.com/Faultbox/softbody/pkg/math"
	"github.com/Faultbox/softbody/pkg/mesh"
)

const (
	// PredictionHorizon is the shortest time-to-impact worth precomputing.
	PredictionHorizon = 600 * time.Millisecond
	// PredictionLead fires the scheduled action this long before impact.
	PredictionLead = 100 * time.Millisecond
)

// Prediction is an impact expected against a mesh collider.
type Prediction struct {
	Collider *Collider
	Distance float32
	Impact   time.Duration
	// Delay is when the pre-impact action should fire.
	Delay time.Duration
}

// PredictImpact searches candidates for the nearest mesh collider ahead of a
// body moving at velocity. The bounding point of each candidate closest to
// the body is used; candidates behind the body are skipped and the nearest
// one wins. ok is false when the body is slower than minSpeed, no mesh
// collider qualifies, or the impact is closer than PredictionHorizon.
func PredictImpact(velocity math.Vec3, body mesh.Bounds, candidates []*Collider, minSpeed float32) (Prediction, bool) {
	speed := velocity.Length()
	if speed <= 0 || speed < minSpeed {
		return Prediction{}, false
	}
	dir := velocity.Scale(1 / speed)
	center := body.Center()

	var best Prediction
	found := false
	for _, col := range candidates {
		if col == nil || !col.IsMesh() {
			continue
		}
		target := col.Bounds().ClosestPoint(center)
		if target.Sub(center).Dot(dir) <= 0 {
			continue
		}
		dist := target.Distance(body.ClosestPoint(target))
		if !found || dist < best.Distance {
			best = Prediction{Collider: col, Distance: dist}
			found = true
		}
	}
	if !found {
		return Prediction{}, false
	}

	best.Impact = time.Duration(float64(best.Distance) / float64(speed) * float64(time.Second))
	if best.Impact < PredictionHorizon {
		return Prediction{}, false
	}
	best.Delay = best.Impact - PredictionLead
	return best, true
}

// Scheduler runs at most one delayed action. Scheduling replaces any pending
// action and Cancel guarantees a cancelled action never runs.
type Scheduler struct {
	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// Schedule runs fn after d unless cancelled or replaced first.
func (s *Scheduler) Schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.mu.Unlock()
		fn()
	})
}

// Pending reports whether an action is waiting to fire.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Cancel drops the pending action, if any.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.gen++
}

func (s *Scheduler) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
