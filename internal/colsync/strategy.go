package colsync

import (
	"fmt"
	"strings"
)

// Strategy selects how proxies are refreshed after a simulation step.
type Strategy int

const (
	// Immediate gathers on the calling goroutine.
	Immediate Strategy = iota
	// Parallel gathers with a bounded worker group and blocks until done.
	Parallel
	// Cycle refreshes from a background loop while colliders overlap.
	Cycle
)

var strategyNames = [...]string{
	Immediate: "immediate",
	Parallel:  "parallel",
	Cycle:     "cycle",
}

func (s Strategy) String() string {
	if s >= 0 && int(s) < len(strategyNames) {
		return strategyNames[s]
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(strategyNames) {
		return nil, fmt.Errorf("invalid sync strategy %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for i, n := range strategyNames {
		if n == name {
			*s = Strategy(i)
			return nil
		}
	}
	return fmt.Errorf("unknown sync strategy %q", name)
}
