package decompose

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Save writes the partition as YAML.
func (p *Partition) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create bake directory: %w", err)
		}
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal partition: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write partition: %w", err)
	}
	return nil
}

// Load reads a partition written by Save and checks every index against the
// recorded vertex count.
func Load(path string) (*Partition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Partition
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse partition: %w", err)
	}
	if err := p.Validate(p.Vertices); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks every group index is below vertexCount and every group is
// large enough to form a collider.
func (p *Partition) Validate(vertexCount int) error {
	for gi, g := range p.Groups {
		if len(g.Indices) < MinGroupSize {
			return fmt.Errorf("group %d: %d indices, need %d", gi, len(g.Indices), MinGroupSize)
		}
		for _, i := range g.Indices {
			if i < 0 || i >= vertexCount {
				return fmt.Errorf("group %d: index %d out of range [0,%d)", gi, i, vertexCount)
			}
		}
	}
	return nil
}
