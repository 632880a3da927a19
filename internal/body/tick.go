package body

import (
	"context"
	"fmt"

	"github.com/Faultbox/softbody/internal/collide"
	"github.com/Faultbox/softbody/internal/colsync"
	"github.com/Faultbox/softbody/internal/config"
	"github.com/Faultbox/softbody/internal/gpu"
)

// Tick advances the simulation one fixed step: integration passes, the
// collision passes the classifier plans, readback of node state, and
// collider sync. It blocks until the readback completes.
func (b *Body) Tick(ctx context.Context) error {
	b.stepMu.Lock()
	defer b.stepMu.Unlock()

	if b.isTornDown() {
		return ErrTornDown
	}

	plan := b.classifier.Plan(b.Transform())
	n := b.graph.NodeCount()
	groups := gpu.Groups(n)

	if err := b.integrate(groups); err != nil {
		return err
	}
	if err := b.collide(plan, groups); err != nil {
		return err
	}
	if err := b.readback(n); err != nil {
		return err
	}
	return b.syncColliders(ctx)
}

func (b *Body) integrate(groups int) error {
	if b.Kind == config.SoftBody {
		if err := b.dispatch(gpu.PassSimulateTruss, gpu.TrussGroups, gpu.TrussGroups, 1); err != nil {
			return err
		}
		if err := b.dispatch(gpu.PassHashTrussForces, groups, 1, 1); err != nil {
			return err
		}
		return b.dispatch(gpu.PassSimulateNode, groups, 1, 1)
	}
	if err := b.dispatch(gpu.PassSolidNode, groups, 1, 1); err != nil {
		return err
	}
	return b.dispatch(gpu.PassNodeInterpolate, gpu.Groups(b.origin.VertexCount()), 1, 1)
}

func (b *Body) collide(plan collide.Plan, groups int) error {
	set := b.buffers

	if plan.RunContinuous() {
		if err := gpu.Write(set.Continuous, plan.Continuous.Records); err != nil {
			return err
		}
		if err := gpu.WriteOne(set.ContinuousCount, int32(plan.Continuous.Count())); err != nil {
			return err
		}
		if err := b.dispatch(gpu.PassContinuous, groups, 1, 1); err != nil {
			return err
		}
	}

	for _, snap := range plan.MeshPasses {
		if err := b.writeMesh(snap); err != nil {
			return err
		}
		if err := b.dispatch(gpu.PassContinuousMesh, groups, 1, 1); err != nil {
			return err
		}
	}

	if plan.Contact != nil {
		if plan.ContactMesh != nil {
			if err := b.writeMesh(*plan.ContactMesh); err != nil {
				return err
			}
		}
		if err := gpu.WriteOne(set.Contact, *plan.Contact); err != nil {
			return err
		}
		if err := b.dispatch(gpu.PassImpulse, groups, 1, 1); err != nil {
			return err
		}
	}
	return nil
}

func (b *Body) writeMesh(snap collide.MeshSnapshot) error {
	set := b.buffers
	if err := gpu.Write(set.MeshVertices, snap.Vertices); err != nil {
		return err
	}
	if err := gpu.Write(set.MeshTriangles, snap.Triangles); err != nil {
		return err
	}
	return gpu.WriteOne(set.MeshTransform, snap.Transform)
}

func (b *Body) dispatch(p gpu.Pass, x, y, z int) error {
	if err := b.kernel.Dispatch(p, x, y, z); err != nil {
		return fmt.Errorf("dispatch %s: %w", p, err)
	}
	return nil
}

func (b *Body) readback(n int) error {
	pos := make([]gpu.Vec3Record, n)
	if err := gpu.Read(b.buffers.Positions, pos); err != nil {
		return err
	}
	vel := make([]gpu.Vec3Record, n)
	if err := gpu.Read(b.buffers.Velocities, vel); err != nil {
		return err
	}

	b.stateMu.Lock()
	b.positions = fromVec3Records(pos)
	b.velocities = fromVec3Records(vel)
	b.ticks++
	b.stateMu.Unlock()
	return nil
}

func (b *Body) syncColliders(ctx context.Context) error {
	if len(b.sync.Proxies()) == 0 {
		return nil
	}
	if b.sync.Strategy() != colsync.Cycle {
		return b.sync.Sync(ctx)
	}
	if b.classifier.Tracked() > 0 {
		b.sync.Start()
	} else {
		b.sync.Stop()
	}
	return nil
}

func (b *Body) isTornDown() bool {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.tornDown
}

// Diagnostics reads the kernel's per-node diagnostic vectors. Solid bodies
// have none.
func (b *Body) Diagnostics() ([]gpu.Vec3Record, error) {
	b.stepMu.Lock()
	defer b.stepMu.Unlock()
	if b.isTornDown() {
		return nil, ErrTornDown
	}
	if b.buffers.Diagnostics == nil {
		return nil, nil
	}
	return gpu.ReadAll[gpu.Vec3Record](b.buffers.Diagnostics)
}

// OriginPositions reads the interpolated full-resolution vertices of a solid
// body. Soft bodies return their node positions.
func (b *Body) OriginPositions() ([]gpu.Vec3Record, error) {
	b.stepMu.Lock()
	defer b.stepMu.Unlock()
	if b.isTornDown() {
		return nil, ErrTornDown
	}
	if b.buffers.OriginPositions == nil {
		pos, _ := b.Snapshot()
		return vec3Records(pos), nil
	}
	return gpu.ReadAll[gpu.Vec3Record](b.buffers.OriginPositions)
}
