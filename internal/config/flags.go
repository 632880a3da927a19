package config

import (
	"flag"

	"github.com/mitchellh/go-homedir"
)

var (
	flagConfig     = flag.String("config", "", "Path to config file (.yaml, .yml or .toml)")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagKind       = flag.String("kind", "", "Body kind: soft or solid")
	flagContinuous = flag.String("continuous", "", "Continuous detection: none, basic or full")
	flagStrategy   = flag.String("sync", "", "Collider sync strategy: immediate, parallel or cycle")
	flagTickRate   = flag.Int("tick-rate", 0, "Simulation ticks per second")
	flagLogFile    = flag.String("log-file", "", "Write logs to this file")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag,
// with a leading ~ expanded to the home directory.
func ConfigPath() string {
	return expandPath(*flagConfig)
}

func expandPath(path string) string {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return path
	}
	return expanded
}

// applyFlags applies CLI flag overrides to the config. Unparseable enum
// values are reported rather than ignored.
func applyFlags(cfg *Config) error {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagKind != "" {
		if err := cfg.Body.Kind.UnmarshalText([]byte(*flagKind)); err != nil {
			return err
		}
	}
	if *flagContinuous != "" {
		if err := cfg.Body.ContinuousDetection.UnmarshalText([]byte(*flagContinuous)); err != nil {
			return err
		}
	}
	if *flagStrategy != "" {
		if err := cfg.Sync.Strategy.UnmarshalText([]byte(*flagStrategy)); err != nil {
			return err
		}
	}
	if *flagTickRate > 0 {
		cfg.Simulation.TickRate = *flagTickRate
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = expandPath(*flagLogFile)
	}
	return nil
}
