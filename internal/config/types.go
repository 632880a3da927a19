package config

import (
	"fmt"
	"strings"
	"time"
)

// BodyKind selects the simulation model.
type BodyKind int

const (
	// SoftBody is a full mass-spring network.
	SoftBody BodyKind = iota
	// SolidBody simulates a simplified anchor mesh without trusses.
	SolidBody
)

func (k BodyKind) String() string {
	switch k {
	case SoftBody:
		return "soft"
	case SolidBody:
		return "solid"
	default:
		return fmt.Sprintf("BodyKind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k BodyKind) MarshalText() ([]byte, error) {
	if k != SoftBody && k != SolidBody {
		return nil, fmt.Errorf("invalid body kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *BodyKind) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "soft":
		*k = SoftBody
	case "solid":
		*k = SolidBody
	default:
		return fmt.Errorf("unknown body kind %q", string(text))
	}
	return nil
}

// Duration is a time.Duration written as a string such as "20ms" in both
// YAML and TOML files.
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}
