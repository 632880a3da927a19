// sbsim runs a soft body on the OpenGL compute backend. The integration
// passes are compute shaders loaded from -shaders, one "<Pass>.comp" file
// per pass of the body kind.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/softbody/internal/body"
	"github.com/Faultbox/softbody/internal/config"
	"github.com/Faultbox/softbody/internal/decompose"
	"github.com/Faultbox/softbody/internal/gpu"
	"github.com/Faultbox/softbody/internal/gpu/gldev"
	"github.com/Faultbox/softbody/internal/logger"
	"github.com/Faultbox/softbody/pkg/mesh"
)

var (
	flagMesh    = flag.String("mesh", "", "Body mesh (.obj)")
	flagBake    = flag.String("bake", "", "Collider proxy bake file (.yaml)")
	flagShaders = flag.String("shaders", "shaders", "Directory of compute shader sources")
	flagTicks   = flag.Int("ticks", 0, "Stop after N ticks (0 = run until interrupted)")
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := initLogging(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *flagMesh == "" {
		logger.Fatal("-mesh is required")
	}

	if err := run(cfg); err != nil {
		logger.Error("simulation failed", zap.Error(err))
		os.Exit(1)
	}
}

func initLogging(c config.LoggingConfig) error {
	var fc logger.FileConfig
	if c.LogFile != "" {
		fc = logger.DefaultFileConfig(c.LogFile)
		fc.JSON = c.JSON
	}
	return logger.InitWithFileConfig(c.Level, fc, true)
}

func passesFor(kind config.BodyKind) []gpu.Pass {
	common := []gpu.Pass{gpu.PassContinuous, gpu.PassContinuousMesh, gpu.PassImpulse}
	if kind == config.SolidBody {
		return append([]gpu.Pass{gpu.PassSolidNode, gpu.PassNodeInterpolate}, common...)
	}
	return append([]gpu.Pass{gpu.PassSimulateTruss, gpu.PassHashTrussForces, gpu.PassSimulateNode}, common...)
}

func run(cfg *config.Config) error {
	m, err := mesh.LoadOBJ(*flagMesh)
	if err != nil {
		return err
	}

	var part *decompose.Partition
	if *flagBake != "" {
		if part, err = decompose.Load(*flagBake); err != nil {
			return err
		}
	}

	glctx, err := gldev.NewContext()
	if err != nil {
		return err
	}
	defer glctx.Close()

	sources, err := gldev.LoadSources(*flagShaders, passesFor(cfg.Body.Kind)...)
	if err != nil {
		return err
	}
	kernel, err := gldev.NewKernel(sources)
	if err != nil {
		return err
	}
	defer kernel.Delete()

	b, err := body.Initialize(cfg, m, body.Options{
		Device:    gldev.NewDevice(),
		Kernel:    kernel,
		Partition: part,
	})
	if err != nil {
		return err
	}
	defer b.Teardown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// GL calls stay on this goroutine; reloads are applied between ticks.
	reloads := make(chan *config.Config, 1)
	if path := config.ConfigPath(); path != "" {
		go func() {
			err := config.Watch(ctx, path, func(next *config.Config) {
				select {
				case reloads <- next:
				default:
					// Keep only the newest pending reload.
					select {
					case <-reloads:
					default:
					}
					reloads <- next
				}
			})
			if err != nil && ctx.Err() == nil {
				logger.Warn("config watch stopped", zap.Error(err))
			}
		}()
	}

	ticker := time.NewTicker(cfg.Simulation.TickInterval())
	defer ticker.Stop()

	logger.Info("simulation started",
		zap.String("mesh", *flagMesh),
		zap.Stringer("kind", b.Kind),
		zap.Duration("tick", cfg.Simulation.TickInterval()))

	for {
		select {
		case <-ctx.Done():
			logger.Info("simulation stopped", zap.Uint64("ticks", b.Ticks()))
			return nil
		case next := <-reloads:
			if err := b.UpdateParameters(next); err != nil {
				logger.Warn("config reload rejected", zap.Error(err))
			}
		case <-ticker.C:
			if err := b.Tick(ctx); err != nil {
				return err
			}
			if *flagTicks > 0 && b.Ticks() >= uint64(*flagTicks) {
				logger.Info("tick limit reached", zap.Uint64("ticks", b.Ticks()))
				return nil
			}
		}
	}
}
