// Package config handles simulation configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Faultbox/softbody/internal/collide"
	"github.com/Faultbox/softbody/internal/colsync"
	"github.com/Faultbox/softbody/pkg/math"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Config holds all simulation settings.
type Config struct {
	Body       BodyConfig       `yaml:"body" toml:"body"`
	Impulse    ImpulseConfig    `yaml:"impulse" toml:"impulse"`
	Sync       SyncConfig       `yaml:"sync" toml:"sync"`
	Decompose  DecomposeConfig  `yaml:"decompose" toml:"decompose"`
	Simulation SimulationConfig `yaml:"simulation" toml:"simulation"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging"`
}

// BodyConfig holds per-body tunables. The max_* fields size kernel buffers
// and only take effect on re-initialization.
type BodyConfig struct {
	Kind                BodyKind               `yaml:"kind" toml:"kind"`
	ScaleMultiplier     float32                `yaml:"scale_multiplier" toml:"scale_multiplier"`
	SurfaceTension      float32                `yaml:"surface_tension" toml:"surface_tension"`
	MaxCollisions       int                    `yaml:"max_collisions" toml:"max_collisions"`
	MaxVertices         int                    `yaml:"max_vertices" toml:"max_vertices"`
	MaxTriangles        int                    `yaml:"max_triangles" toml:"max_triangles"`
	ContinuousDetection collide.ContinuousMode `yaml:"continuous_detection" toml:"continuous_detection"`
	PerTriangleEdges    bool                   `yaml:"per_triangle_edges" toml:"per_triangle_edges"`
}

// ImpulseConfig holds discrete contact settings.
type ImpulseConfig struct {
	Detection        collide.ImpulseKind `yaml:"detection" toml:"detection"`
	DamageMultiplier float32             `yaml:"damage_multiplier" toml:"damage_multiplier"`
	MinVelocity      float32             `yaml:"min_velocity" toml:"min_velocity"`
	Radius           float32             `yaml:"radius" toml:"radius"`
}

// SyncConfig holds collider synchronization settings.
type SyncConfig struct {
	Strategy            colsync.Strategy `yaml:"strategy" toml:"strategy"`
	Interval            Duration         `yaml:"interval" toml:"interval"`
	PredictionLookahead float32          `yaml:"prediction_lookahead" toml:"prediction_lookahead"`
	MinPredictSpeed     float32          `yaml:"min_predict_speed" toml:"min_predict_speed"`
	Workers             int              `yaml:"workers" toml:"workers"`
}

// DecomposeConfig holds bake-time decomposition settings.
type DecomposeConfig struct {
	Cuts    [3]int  `yaml:"cuts,flow" toml:"cuts"`
	Quality float32 `yaml:"quality" toml:"quality"`
}

// CutsVec returns Cuts as a grid vector.
func (d DecomposeConfig) CutsVec() math.Vec3i {
	return math.Vec3i{X: d.Cuts[0], Y: d.Cuts[1], Z: d.Cuts[2]}
}

// SimulationConfig holds kernel constants.
type SimulationConfig struct {
	TickRate  int     `yaml:"tick_rate" toml:"tick_rate"`
	Mass      float32 `yaml:"mass" toml:"mass"`
	Stiffness float32 `yaml:"stiffness" toml:"stiffness"`
	Damping   float32 `yaml:"damping" toml:"damping"`
	DampingT  float32 `yaml:"damping_t" toml:"damping_t"`
	Amplitude float32 `yaml:"amplitude" toml:"amplitude"`
}

// DeltaTime returns the fixed step length in seconds.
func (s SimulationConfig) DeltaTime() float32 {
	if s.TickRate <= 0 {
		return 0
	}
	return 1 / float32(s.TickRate)
}

// TickInterval returns the fixed step as a duration.
func (s SimulationConfig) TickInterval() time.Duration {
	if s.TickRate <= 0 {
		return 0
	}
	return time.Second / time.Duration(s.TickRate)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level" toml:"level"`
	LogFile string `yaml:"log_file" toml:"log_file"`
	JSON    bool   `yaml:"json" toml:"json"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Body: BodyConfig{
			Kind:                SoftBody,
			ScaleMultiplier:     1,
			SurfaceTension:      0.5,
			MaxCollisions:       5,
			MaxVertices:         3000,
			MaxTriangles:        10000,
			ContinuousDetection: collide.ContinuousBasicShapes,
		},
		Impulse: ImpulseConfig{
			Detection:        collide.ImpulseSphere,
			DamageMultiplier: 1,
			MinVelocity:      0,
			Radius:           1,
		},
		Sync: SyncConfig{
			Strategy:            colsync.Immediate,
			Interval:            Duration(20 * time.Millisecond),
			PredictionLookahead: colsync.DefaultLookahead,
			MinPredictSpeed:     5,
		},
		Decompose: DecomposeConfig{
			Cuts:    [3]int{1, 1, 1},
			Quality: 1,
		},
		Simulation: SimulationConfig{
			TickRate:  50,
			Mass:      0.1,
			Stiffness: 20,
			Damping:   1,
			DampingT:  1,
			Amplitude: 5,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks ranges and capacities.
func (c *Config) Validate() error {
	var errs []string
	if c.Body.ScaleMultiplier <= 0 {
		errs = append(errs, "body.scale_multiplier must be positive")
	}
	if c.Body.SurfaceTension < 0 {
		errs = append(errs, "body.surface_tension must not be negative")
	}
	if c.Body.MaxCollisions < 0 {
		errs = append(errs, "body.max_collisions must not be negative")
	}
	if c.Body.MaxVertices < 1 || c.Body.MaxTriangles < 1 {
		errs = append(errs, "body.max_vertices and body.max_triangles must be positive")
	}
	if c.Sync.Interval < 0 {
		errs = append(errs, "sync.interval must not be negative")
	}
	for _, n := range c.Decompose.Cuts {
		if n < 0 {
			errs = append(errs, "decompose.cuts must not be negative")
			break
		}
	}
	if c.Decompose.Quality <= 0 || c.Decompose.Quality > 1 {
		errs = append(errs, "decompose.quality must be in (0,1]")
	}
	if c.Simulation.TickRate <= 0 {
		errs = append(errs, "simulation.tick_rate must be positive")
	}
	if c.Simulation.Mass <= 0 {
		errs = append(errs, "simulation.mass must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}
	return nil
}

// CapacityChanged reports whether other differs from c in a field that
// sizes kernel buffers or the node graph.
func (c *Config) CapacityChanged(other *Config) bool {
	a, b := c.Body, other.Body
	return a.Kind != b.Kind ||
		a.MaxCollisions != b.MaxCollisions ||
		a.MaxVertices != b.MaxVertices ||
		a.MaxTriangles != b.MaxTriangles ||
		a.PerTriangleEdges != b.PerTriangleEdges ||
		c.Simulation.Mass != other.Simulation.Mass
}
