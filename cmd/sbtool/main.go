// sbtool is a CLI utility for preparing and inspecting soft-body assets.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/Faultbox/softbody/internal/body"
	"github.com/Faultbox/softbody/internal/colsync"
	"github.com/Faultbox/softbody/internal/config"
	"github.com/Faultbox/softbody/internal/decompose"
	"github.com/Faultbox/softbody/internal/gpu"
	"github.com/Faultbox/softbody/internal/gpu/hostdev"
	"github.com/Faultbox/softbody/internal/logger"
	"github.com/Faultbox/softbody/internal/topology"
	"github.com/Faultbox/softbody/pkg/math"
	"github.com/Faultbox/softbody/pkg/mesh"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "inspect", "i":
		cmdInspect(args)
	case "bake", "b":
		cmdBake(args)
	case "sync-bench":
		cmdSyncBench(args)
	case "simulate", "sim":
		cmdSimulate(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`sbtool - soft-body asset utility

Usage:
  sbtool <command> [options]

Commands:
  inspect <mesh.obj>                  Show topology and buffer sizes
  bake <mesh.obj> <out.yaml>          Decompose a mesh into collider proxies
  sync-bench <mesh.obj> <bake.yaml>   Time serial vs parallel proxy remap
  simulate <mesh.obj>                 Run ticks headless on the host device

Examples:
  sbtool inspect jelly.obj
  sbtool bake -cuts 2,1,2 jelly.obj jelly.proxies.yaml
  sbtool sync-bench -n 500 jelly.obj jelly.proxies.yaml
  sbtool simulate -ticks 100 -bake jelly.proxies.yaml jelly.obj`)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func loadMesh(path string) *mesh.Mesh {
	m, err := mesh.LoadOBJ(path)
	if err != nil {
		fatalf("%v", err)
	}
	return m
}

// parseCuts parses "x,y,z" or a single value applied to every axis.
func parseCuts(s string) (math.Vec3i, error) {
	parts := strings.Split(s, ",")
	if len(parts) == 1 {
		parts = []string{parts[0], parts[0], parts[0]}
	}
	if len(parts) != 3 {
		return math.Vec3i{}, fmt.Errorf("cuts must be N or X,Y,Z: %q", s)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return math.Vec3i{}, fmt.Errorf("invalid cut count %q", p)
		}
		v[i] = n
	}
	return math.Vec3i{X: v[0], Y: v[1], Z: v[2]}, nil
}

func cmdInspect(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	perTriangle := fs.Bool("per-triangle", false, "Build trusses from triangle edges")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: sbtool inspect [-per-triangle] <mesh.obj>")
		os.Exit(1)
	}

	m := loadMesh(fs.Arg(0))
	mode := topology.ConsecutiveIndices
	if *perTriangle {
		mode = topology.PerTriangleEdges
	}

	fmt.Printf("Mesh:      %s\n", fs.Arg(0))
	fmt.Printf("Vertices:  %d\n", m.VertexCount())
	fmt.Printf("Triangles: %d\n", m.TriangleCount())
	b := m.Bounds()
	fmt.Printf("Bounds:    %v .. %v\n", b.Min, b.Max)

	g, err := topology.Build(m, topology.Options{Mode: mode})
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("Trusses:   %d (%s, max %d)\n", len(g.Trusses), mode, topology.MaxTrusses)
	fmt.Printf("Max conn:  %d\n", g.MaxConnections)
	fmt.Println()

	cfg := config.Default()
	dev := hostdev.NewDevice()
	set, err := gpu.NewBufferSet(dev, gpu.ProfileSoft, gpu.Counts{
		Nodes:            g.NodeCount(),
		Trusses:          len(g.Trusses),
		MaxConnections:   g.MaxConnections,
		MaxCollisions:    cfg.Body.MaxCollisions,
		MaxMeshVertices:  cfg.Body.MaxVertices,
		MaxMeshTriangles: cfg.Body.MaxTriangles,
	})
	if err != nil {
		fatalf("%v", err)
	}
	defer set.Release()

	fmt.Println("Buffers:")
	var total int
	for _, buf := range set.Buffers() {
		l := buf.Layout()
		fmt.Printf("  %-26s %-10s %8d x %3d B = %10d B\n", l.Name, l.Access, buf.Len(), l.Stride, buf.Size())
		total += buf.Size()
	}
	fmt.Printf("  %-26s %45.2f KB\n", "total", float64(total)/1024)
}

func cmdBake(args []string) {
	fs := flag.NewFlagSet("bake", flag.ExitOnError)
	cutsFlag := fs.String("cuts", "1", "Grid cuts per axis: N or X,Y,Z")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: sbtool bake [-cuts X,Y,Z] <mesh.obj> <out.yaml>")
		os.Exit(1)
	}
	cuts, err := parseCuts(*cutsFlag)
	if err != nil {
		fatalf("%v", err)
	}

	m := loadMesh(fs.Arg(0))
	part, _, err := decompose.Bake(m, cuts, nil, 1)
	if err != nil {
		fatalf("%v", err)
	}
	if err := part.Save(fs.Arg(1)); err != nil {
		fatalf("%v", err)
	}

	covered := 0
	for v := range m.VertexCount() {
		if part.Covered(v) {
			covered++
		}
	}
	fmt.Printf("Groups:   %d\n", len(part.Groups))
	fmt.Printf("Covered:  %d/%d vertices\n", covered, m.VertexCount())
	for i, g := range part.Groups {
		fmt.Printf("  %3d  voxel %v  %d points\n", i, g.Voxel, len(g.Indices))
	}
	fmt.Printf("Written:  %s\n", fs.Arg(1))
}

func cmdSyncBench(args []string) {
	fs := flag.NewFlagSet("sync-bench", flag.ExitOnError)
	iterations := fs.Int("n", 100, "Iterations per strategy")
	workers := fs.Int("workers", runtime.GOMAXPROCS(0), "Parallel workers")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: sbtool sync-bench [-n N] [-workers W] <mesh.obj> <bake.yaml>")
		os.Exit(1)
	}

	m := loadMesh(fs.Arg(0))
	part, err := decompose.Load(fs.Arg(1))
	if err != nil {
		fatalf("%v", err)
	}
	if err := part.Validate(m.VertexCount()); err != nil {
		fatalf("bake does not match mesh: %v", err)
	}

	velocities := make([]math.Vec3, m.VertexCount())
	for i := range velocities {
		velocities[i] = math.Vec3{Y: -1}
	}
	d := colsync.Displacement{Velocities: velocities, Lookahead: colsync.DefaultLookahead}
	groups := part.IndexGroups()
	ctx := context.Background()

	run := func(name string, fn func(indices []int) error) {
		start := time.Now()
		for range *iterations {
			for _, idx := range groups {
				if err := fn(idx); err != nil {
					fatalf("%s: %v", name, err)
				}
			}
		}
		elapsed := time.Since(start)
		fmt.Printf("  %-10s %10v total  %10v/iter\n", name, elapsed, elapsed/time.Duration(max(*iterations, 1)))
	}

	fmt.Printf("Proxies: %d, vertices: %d, workers: %d\n", len(groups), m.VertexCount(), *workers)
	run("serial", func(idx []int) error {
		_, err := colsync.Remap(m.Vertices, idx, d)
		return err
	})
	run("parallel", func(idx []int) error {
		_, err := colsync.ParallelRemap(ctx, m.Vertices, idx, d, *workers)
		return err
	})
}

// sag is a stand-in node pass that pulls every node down by a fixed step.
func sag(step float32) hostdev.PassFunc {
	return func(b hostdev.Bindings, _, _, _ int) error {
		buf := b[gpu.LayoutPositions.Name]
		pos, err := gpu.ReadAll[gpu.Vec3Record](buf)
		if err != nil {
			return err
		}
		for i := range pos {
			pos[i][1] -= step
		}
		return gpu.Write(buf, pos)
	}
}

func cmdSimulate(args []string) {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file (.yaml or .toml)")
	bakePath := fs.String("bake", "", "Proxy bake file")
	ticks := fs.Int("ticks", 50, "Ticks to run")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: sbtool simulate [-config file] [-bake file] [-ticks N] <mesh.obj>")
		os.Exit(1)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath); err != nil {
			fatalf("%v", err)
		}
	}
	if *debug {
		cfg.Logging.Level = "debug"
	}
	var fc logger.FileConfig
	if cfg.Logging.LogFile != "" {
		fc = logger.DefaultFileConfig(cfg.Logging.LogFile)
		fc.JSON = cfg.Logging.JSON
	}
	if err := logger.InitWithFileConfig(cfg.Logging.Level, fc, true); err != nil {
		fatalf("%v", err)
	}
	defer logger.Sync()

	m := loadMesh(fs.Arg(0))
	opts := body.Options{Device: hostdev.NewDevice()}
	if *bakePath != "" {
		part, err := decompose.Load(*bakePath)
		if err != nil {
			fatalf("%v", err)
		}
		opts.Partition = part
	}

	kernel := hostdev.NewKernel()
	kernel.Handle(gpu.PassSimulateNode, sag(0.001))
	kernel.Handle(gpu.PassSolidNode, sag(0.001))
	opts.Kernel = kernel

	b, err := body.Initialize(cfg, m, opts)
	if err != nil {
		fatalf("%v", err)
	}
	defer b.Teardown()

	ctx := context.Background()
	start := time.Now()
	for range *ticks {
		if err := b.Tick(ctx); err != nil {
			fatalf("tick %d: %v", b.Ticks(), err)
		}
	}
	elapsed := time.Since(start)

	fmt.Printf("Body:       %s (%s)\n", b.ID, b.Kind)
	fmt.Printf("Ticks:      %d in %v\n", b.Ticks(), elapsed)
	fmt.Printf("Dispatches: %d\n", len(kernel.Dispatches()))
	fmt.Printf("Proxies:    %d (%s, %d syncs)\n", len(b.Proxies()), b.Synchronizer().Strategy(), b.Synchronizer().Syncs())
	fmt.Printf("Bounds:     %v .. %v\n", b.WorldBounds().Min, b.WorldBounds().Max)
}
