package body

import (
	"go.uber.org/zap"

	"github.com/Faultbox/softbody/internal/collide"
	"github.com/Faultbox/softbody/internal/config"
	"github.com/Faultbox/softbody/pkg/math"
)

// OnTriggerEnter starts tracking a collider that began overlapping the body.
func (b *Body) OnTriggerEnter(c *collide.Collider) {
	b.classifier.Subscribe(c)
}

// OnTriggerExit stops tracking a collider and restores proxy collisions
// against it.
func (b *Body) OnTriggerExit(c *collide.Collider) {
	b.classifier.Unsubscribe(c)
	b.sync.Unfreeze(c)
}

// OnCollisionEnter records a discrete contact for the next tick's impulse
// pass and suppresses collisions between the proxies and the impactor. It
// reports whether the contact was accepted under the impulse detection kind.
func (b *Body) OnCollisionEnter(point, relVelocity math.Vec3, other *collide.Collider) bool {
	ok := b.classifier.OnDiscreteContact(b.Transform(), point, relVelocity, other)
	if ok {
		b.sync.OnContact(other)
	}
	return ok
}

// CheckPrediction looks for an imminent high-speed impact against one of
// candidates. When one is found, a predictive collider sync and an impulse
// contact at the expected impact point are scheduled shortly before impact.
// A newer prediction replaces a pending one.
func (b *Body) CheckPrediction(candidates []*collide.Collider) (collide.Prediction, bool) {
	if b.isTornDown() {
		return collide.Prediction{}, false
	}
	b.stateMu.RLock()
	velocity := b.velocity
	b.stateMu.RUnlock()

	cfg := b.Config()
	bounds := b.WorldBounds()
	pred, ok := collide.PredictImpact(velocity, bounds, candidates, cfg.Sync.MinPredictSpeed)
	if !ok {
		b.log.Debug("impact prediction skipped")
		return pred, false
	}

	target := pred.Collider
	b.predictor.Schedule(pred.Delay, func() {
		if b.ctx.Err() != nil {
			return
		}
		impact := target.Bounds().ClosestPoint(b.WorldBounds().Center())
		b.classifier.OnDiscreteContact(b.Transform(), impact, velocity, target)
		if err := b.sync.Predict(b.ctx); err != nil && b.ctx.Err() == nil {
			b.log.Warn("predictive collider sync failed", zap.Error(err))
		}
	})
	b.log.Debug("impact predicted",
		zap.Stringer("collider", target),
		zap.Duration("impact", pred.Impact),
		zap.Duration("delay", pred.Delay))
	return pred, true
}

// PredictionPending reports whether a predicted impact is scheduled.
func (b *Body) PredictionPending() bool {
	return b.predictor.Pending()
}

// UpdateParameters applies new tunables between ticks: detection modes and
// the constant parameter blocks. Fields that size buffers are logged and
// ignored until the body is re-initialized.
func (b *Body) UpdateParameters(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	b.stepMu.Lock()
	defer b.stepMu.Unlock()
	if b.isTornDown() {
		return ErrTornDown
	}

	next := cloneConfig(cfg)
	if b.cfg.CapacityChanged(next) {
		b.log.Warn("capacity settings changed, re-initialize the body to apply them")
		next.Body.Kind = b.cfg.Body.Kind
		next.Body.MaxCollisions = b.cfg.Body.MaxCollisions
		next.Body.MaxVertices = b.cfg.Body.MaxVertices
		next.Body.MaxTriangles = b.cfg.Body.MaxTriangles
		next.Body.PerTriangleEdges = b.cfg.Body.PerTriangleEdges
		next.Simulation.Mass = b.cfg.Simulation.Mass
	}
	if err := b.uploadParams(next); err != nil {
		return err
	}
	b.classifier.SetMode(next.Body.ContinuousDetection)
	b.classifier.SetImpulse(next.Impulse.Detection)
	b.classifier.SetScaleMultiplier(next.Body.ScaleMultiplier)
	b.cfg = next
	b.log.Info("parameters updated")
	return nil
}
