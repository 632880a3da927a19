package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"

	"github.com/Faultbox/softbody/internal/collide"
	"github.com/Faultbox/softbody/internal/colsync"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Body defaults
	if cfg.Body.Kind != SoftBody {
		t.Errorf("expected soft body, got %s", cfg.Body.Kind)
	}
	if cfg.Body.SurfaceTension != 0.5 {
		t.Errorf("expected surface tension 0.5, got %f", cfg.Body.SurfaceTension)
	}
	if cfg.Body.MaxCollisions != 5 {
		t.Errorf("expected max collisions 5, got %d", cfg.Body.MaxCollisions)
	}
	if cfg.Body.MaxVertices != 3000 || cfg.Body.MaxTriangles != 10000 {
		t.Errorf("unexpected mesh capacities %d/%d", cfg.Body.MaxVertices, cfg.Body.MaxTriangles)
	}

	// Sync defaults
	if cfg.Sync.Strategy != colsync.Immediate {
		t.Errorf("expected immediate sync, got %s", cfg.Sync.Strategy)
	}
	if cfg.Sync.Interval.D() != 20*time.Millisecond {
		t.Errorf("expected interval 20ms, got %v", cfg.Sync.Interval.D())
	}

	// Simulation defaults
	if cfg.Simulation.TickRate != 50 {
		t.Errorf("expected tick rate 50, got %d", cfg.Simulation.TickRate)
	}
	if dt := cfg.Simulation.DeltaTime(); dt != 0.02 {
		t.Errorf("expected dt 0.02, got %f", dt)
	}
	if cfg.Simulation.TickInterval() != 20*time.Millisecond {
		t.Errorf("expected tick interval 20ms, got %v", cfg.Simulation.TickInterval())
	}

	// Logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
body:
  kind: solid
  scale_multiplier: 2
  surface_tension: 0.25
  max_collisions: 8
  continuous_detection: full

impulse:
  detection: mesh
  damage_multiplier: 3
  radius: 0.5

sync:
  strategy: cycle
  interval: 50ms

decompose:
  cuts: [2, 1, 0]
  quality: 0.5

logging:
  level: "debug"
  log_file: "sim.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Load config
	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Verify values were loaded
	if cfg.Body.Kind != SolidBody {
		t.Errorf("expected solid body, got %s", cfg.Body.Kind)
	}
	if cfg.Body.ScaleMultiplier != 2 {
		t.Errorf("expected scale 2, got %f", cfg.Body.ScaleMultiplier)
	}
	if cfg.Body.MaxCollisions != 8 {
		t.Errorf("expected max collisions 8, got %d", cfg.Body.MaxCollisions)
	}
	if cfg.Body.MaxVertices != 3000 {
		t.Errorf("expected default max vertices kept, got %d", cfg.Body.MaxVertices)
	}
	if cfg.Body.ContinuousDetection != collide.ContinuousFull {
		t.Errorf("expected full detection, got %s", cfg.Body.ContinuousDetection)
	}
	if cfg.Impulse.Detection != collide.ImpulseMesh {
		t.Errorf("expected mesh impulse, got %s", cfg.Impulse.Detection)
	}
	if cfg.Sync.Strategy != colsync.Cycle {
		t.Errorf("expected cycle sync, got %s", cfg.Sync.Strategy)
	}
	if cfg.Sync.Interval.D() != 50*time.Millisecond {
		t.Errorf("expected interval 50ms, got %v", cfg.Sync.Interval.D())
	}
	if cfg.Decompose.Cuts != [3]int{2, 1, 0} {
		t.Errorf("expected cuts [2 1 0], got %v", cfg.Decompose.Cuts)
	}
	if cfg.Logging.LogFile != "sim.log" {
		t.Errorf("expected log file 'sim.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	tomlContent := `
[body]
kind = "solid"
max_triangles = 500
continuous_detection = "none"

[sync]
strategy = "parallel"
interval = "5ms"
workers = 4

[decompose]
cuts = [3, 3, 3]
`

	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Body.Kind != SolidBody {
		t.Errorf("expected solid body, got %s", cfg.Body.Kind)
	}
	if cfg.Body.MaxTriangles != 500 {
		t.Errorf("expected max triangles 500, got %d", cfg.Body.MaxTriangles)
	}
	if cfg.Body.ContinuousDetection != collide.ContinuousNone {
		t.Errorf("expected no continuous detection, got %s", cfg.Body.ContinuousDetection)
	}
	if cfg.Sync.Strategy != colsync.Parallel || cfg.Sync.Workers != 4 {
		t.Errorf("unexpected sync config %+v", cfg.Sync)
	}
	if cfg.Sync.Interval.D() != 5*time.Millisecond {
		t.Errorf("expected interval 5ms, got %v", cfg.Sync.Interval.D())
	}
	if cfg.Decompose.CutsVec().X != 3 {
		t.Errorf("expected 3 cuts on x, got %v", cfg.Decompose.Cuts)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"out.yaml", "out.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)

			cfg := Default()
			cfg.Body.Kind = SolidBody
			cfg.Sync.Strategy = colsync.Cycle
			cfg.Sync.Interval = Duration(75 * time.Millisecond)
			if err := cfg.SaveTo(path); err != nil {
				t.Fatalf("save: %v", err)
			}

			loaded, err := LoadFile(path)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if loaded.Body.Kind != SolidBody || loaded.Sync.Strategy != colsync.Cycle {
				t.Errorf("enums not preserved: %+v", loaded)
			}
			if loaded.Sync.Interval.D() != 75*time.Millisecond {
				t.Errorf("interval not preserved: %v", loaded.Sync.Interval.D())
			}
		})
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"bad yaml", "invalid.yaml", "body:\n  max_collisions: not a number\n  invalid syntax here\n"},
		{"unknown enum", "enum.yaml", "body:\n  kind: liquid\n"},
		{"bad duration", "dur.toml", "[sync]\ninterval = \"soon\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}
			if err := loadFromFile(Default(), configPath); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	err := loadFromFile(cfg, "/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero scale", func(c *Config) { c.Body.ScaleMultiplier = 0 }},
		{"negative capacity", func(c *Config) { c.Body.MaxCollisions = -1 }},
		{"zero mesh vertices", func(c *Config) { c.Body.MaxVertices = 0 }},
		{"zero mesh triangles", func(c *Config) { c.Body.MaxTriangles = 0 }},
		{"negative cuts", func(c *Config) { c.Decompose.Cuts[1] = -2 }},
		{"quality above one", func(c *Config) { c.Decompose.Quality = 1.5 }},
		{"zero tick rate", func(c *Config) { c.Simulation.TickRate = 0 }},
		{"zero mass", func(c *Config) { c.Simulation.Mass = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestCapacityChanged(t *testing.T) {
	a, b := Default(), Default()
	b.Body.SurfaceTension = 0.9
	b.Impulse.Radius = 3
	if a.CapacityChanged(b) {
		t.Error("tunables should not count as capacity changes")
	}
	b.Body.MaxVertices = 10
	if !a.CapacityChanged(b) {
		t.Error("expected capacity change")
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	// Just verify it returns a non-empty path
	// Actual path depends on OS
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}

	// Verify path is absolute
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	// Save current directory
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	// Isolate from any real user config
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))
	t.Setenv("HOME", filepath.Join(tmpDir, "home"))
	os.Chdir(tmpDir)

	// No config file exists - should return empty
	path := findConfigFile()
	if path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	// Create softbody.toml in current directory
	configPath := filepath.Join(tmpDir, "softbody.toml")
	if err := os.WriteFile(configPath, []byte("[body]\nmax_collisions = 2\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	// Should find it now
	path = findConfigFile()
	if path == "" {
		t.Error("expected to find softbody.toml in current directory")
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*testing.T, *Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name:  "kind flag",
			setup: func() { *flagKind = "solid" },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Body.Kind != SolidBody {
					t.Errorf("expected solid body, got %s", cfg.Body.Kind)
				}
			},
			teardown: func() { *flagKind = "" },
		},
		{
			name: "detection and sync flags",
			setup: func() {
				*flagContinuous = "full"
				*flagStrategy = "parallel"
			},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Body.ContinuousDetection != collide.ContinuousFull {
					t.Errorf("expected full detection, got %s", cfg.Body.ContinuousDetection)
				}
				if cfg.Sync.Strategy != colsync.Parallel {
					t.Errorf("expected parallel sync, got %s", cfg.Sync.Strategy)
				}
			},
			teardown: func() {
				*flagContinuous = ""
				*flagStrategy = ""
			},
		},
		{
			name:  "tick rate flag",
			setup: func() { *flagTickRate = 120 },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Simulation.TickRate != 120 {
					t.Errorf("expected tick rate 120, got %d", cfg.Simulation.TickRate)
				}
			},
			teardown: func() { *flagTickRate = 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			tt.setup()
			defer tt.teardown()

			// Apply flags to default config
			cfg := Default()
			if err := applyFlags(cfg); err != nil {
				t.Fatalf("apply flags: %v", err)
			}

			// Verify
			tt.verify(t, cfg)
		})
	}
}

func TestApplyFlagsInvalidEnum(t *testing.T) {
	*flagStrategy = "eventually"
	defer func() { *flagStrategy = "" }()

	if err := applyFlags(Default()); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestLoadPriority(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
simulation:
  tick_rate: 30
  damping: 0.5
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Set flag to override config file
	*flagConfig = configPath
	*flagTickRate = 90
	defer func() {
		*flagConfig = ""
		*flagTickRate = 0
	}()

	// Load config
	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Tick rate should be from flag (90), not file (30)
	if cfg.Simulation.TickRate != 90 {
		t.Errorf("expected tick rate 90 from flag, got %d", cfg.Simulation.TickRate)
	}

	// Damping should be from file since no flag override
	if cfg.Simulation.Damping != 0.5 {
		t.Errorf("expected damping 0.5 from file, got %f", cfg.Simulation.Damping)
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watched.yaml")
	if err := os.WriteFile(path, []byte("body:\n  surface_tension: 0.3\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) { changes <- c })
	}()

	// Give the watcher time to register, then rewrite until a reload lands.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case c := <-changes:
			// A reload can observe the truncated file mid-write.
			if c.Body.SurfaceTension != 0.7 {
				continue
			}
			cancel()
			if err := <-done; err != nil {
				t.Errorf("watch returned %v", err)
			}
			return
		case <-tick.C:
			os.WriteFile(path, []byte("body:\n  surface_tension: 0.7\n"), 0644)
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}

func TestExpandPath(t *testing.T) {
	home, err := homedir.Dir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/etc/softbody.yaml", "/etc/softbody.yaml"},
		{"relative/cfg.toml", "relative/cfg.toml"},
		{"~/softbody.yaml", filepath.Join(home, "softbody.yaml")},
	}
	for _, tt := range tests {
		if got := expandPath(tt.in); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
