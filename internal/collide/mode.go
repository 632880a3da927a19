package collide

import (
	"fmt"
	"strings"
)

// ContinuousMode selects which tracked colliders feed the continuous passes.
type ContinuousMode int

const (
	// ContinuousNone keeps no continuous buffers; only impulses are handled.
	ContinuousNone ContinuousMode = iota
	// ContinuousBasicShapes feeds sphere and box colliders.
	ContinuousBasicShapes
	// ContinuousFull feeds every collider and runs a pass per mesh collider.
	ContinuousFull
)

var continuousNames = map[ContinuousMode]string{
	ContinuousNone:        "none",
	ContinuousBasicShapes: "basic",
	ContinuousFull:        "full",
}

func (m ContinuousMode) String() string {
	if s, ok := continuousNames[m]; ok {
		return s
	}
	return fmt.Sprintf("ContinuousMode(%d)", int(m))
}

// MarshalText implements encoding.TextMarshaler.
func (m ContinuousMode) MarshalText() ([]byte, error) {
	if _, ok := continuousNames[m]; !ok {
		return nil, fmt.Errorf("invalid continuous mode %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *ContinuousMode) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	for k, v := range continuousNames {
		if v == s {
			*m = k
			return nil
		}
	}
	return fmt.Errorf("unknown continuous mode %q", s)
}

// ImpulseKind selects which contacts produce impulse records.
type ImpulseKind int

const (
	// ImpulseSphere accepts contacts from any collider.
	ImpulseSphere ImpulseKind = iota
	// ImpulseMesh accepts contacts from mesh colliders only.
	ImpulseMesh
)

func (k ImpulseKind) String() string {
	switch k {
	case ImpulseSphere:
		return "sphere"
	case ImpulseMesh:
		return "mesh"
	default:
		return fmt.Sprintf("ImpulseKind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ImpulseKind) MarshalText() ([]byte, error) {
	if k != ImpulseSphere && k != ImpulseMesh {
		return nil, fmt.Errorf("invalid impulse kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ImpulseKind) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "sphere":
		*k = ImpulseSphere
	case "mesh":
		*k = ImpulseMesh
	default:
		return fmt.Errorf("unknown impulse kind %q", string(text))
	}
	return nil
}
