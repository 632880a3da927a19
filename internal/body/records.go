package body

import (
	"github.com/Faultbox/softbody/internal/config"
	"github.com/Faultbox/softbody/internal/gpu"
	"github.com/Faultbox/softbody/internal/topology"
	"github.com/Faultbox/softbody/pkg/math"
)

func nodeRecords(nodes []topology.Node) []gpu.NodeOtherRecord {
	out := make([]gpu.NodeOtherRecord, len(nodes))
	for i, n := range nodes {
		out[i] = gpu.NodeOtherRecord{
			TrussesConnected: n.TrussesConnected,
			Mass:             n.Mass,
			Normal:           n.Normal.Array(),
			StartPosition:    n.StartPosition.Array(),
			Weight:           n.Weight,
		}
	}
	return out
}

func trussRecords(trusses []topology.Truss) []gpu.TrussRecord {
	out := make([]gpu.TrussRecord, len(trusses))
	for i, t := range trusses {
		out[i] = gpu.TrussRecord{RestLength: t.RestLength, IndexPair: [2]int32{t.A, t.B}}
	}
	return out
}

func adjacencyRecords(table []topology.AdjacencyEntry) []gpu.NodeInfoRecord {
	out := make([]gpu.NodeInfoRecord, len(table))
	for i, e := range table {
		out[i] = gpu.NodeInfoRecord{TrussID: e.TrussID, Right: int32(e.Side)}
	}
	return out
}

func vec3Records(vs []math.Vec3) []gpu.Vec3Record {
	out := make([]gpu.Vec3Record, len(vs))
	for i, v := range vs {
		out[i] = v.Array()
	}
	return out
}

func fromVec3Records(rs []gpu.Vec3Record) []math.Vec3 {
	out := make([]math.Vec3, len(rs))
	for i, r := range rs {
		out[i] = math.Vec3FromArray(r)
	}
	return out
}

// SimulationParams derives the constant block shared by every pass.
func SimulationParams(cfg *config.Config, nodes int) gpu.SimulationParams {
	sim := cfg.Simulation
	return gpu.SimulationParams{
		DeltaTime:     sim.DeltaTime(),
		MaxAmplitude:  sim.Amplitude * cfg.Body.ScaleMultiplier,
		Stiffness:     2 * sim.Stiffness * cfg.Body.SurfaceTension,
		StiffnessO:    sim.Stiffness,
		Damping:       sim.Damping,
		NodesCount:    int32(nodes),
		CollisionType: int32(cfg.Impulse.Detection),
		DampingT:      sim.DampingT,
	}
}

// ImpulseParams derives the impulse constant block.
func ImpulseParams(cfg *config.Config) gpu.ImpulseParams {
	return gpu.ImpulseParams{
		DamageMultiplier: cfg.Impulse.DamageMultiplier,
		MinVelocity:      cfg.Impulse.MinVelocity,
		Radius:           cfg.Impulse.Radius * cfg.Body.ScaleMultiplier,
	}
}
