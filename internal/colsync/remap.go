// Package colsync keeps convex collider proxies aligned with simulated node
// positions.
package colsync

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/softbody/pkg/math"
)

// ErrIndexOutOfRange is returned when a group index exceeds the source.
var ErrIndexOutOfRange = errors.New("proxy index out of range")

// BatchSize is the number of indices each parallel worker gathers.
const BatchSize = 64

// Displacement is added to every gathered point. When Velocities is set,
// each point additionally moves by Velocities[idx] * Lookahead.
type Displacement struct {
	Offset     math.Vec3
	Velocities []math.Vec3
	Lookahead  float32
}

func (d Displacement) at(idx int) math.Vec3 {
	off := d.Offset
	if d.Velocities != nil && idx < len(d.Velocities) {
		off = off.Add(d.Velocities[idx].Scale(d.Lookahead))
	}
	return off
}

func checkIndices(src []math.Vec3, indices []int) error {
	for _, idx := range indices {
		if idx < 0 || idx >= len(src) {
			return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, idx, len(src))
		}
	}
	return nil
}

// Remap gathers src at indices on the calling goroutine.
func Remap(src []math.Vec3, indices []int, d Displacement) ([]math.Vec3, error) {
	if err := checkIndices(src, indices); err != nil {
		return nil, err
	}
	dst := make([]math.Vec3, len(indices))
	for i, idx := range indices {
		dst[i] = src[idx].Add(d.at(idx))
	}
	return dst, nil
}

// ParallelRemap gathers src at indices in batches of BatchSize across at
// most workers goroutines. Each batch writes a disjoint range of the result.
// The call blocks until every batch finishes; on error or cancellation no
// partial result is returned.
func ParallelRemap(ctx context.Context, src []math.Vec3, indices []int, d Displacement, workers int) ([]math.Vec3, error) {
	if err := checkIndices(src, indices); err != nil {
		return nil, err
	}
	dst := make([]math.Vec3, len(indices))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for start := 0; start < len(indices); start += BatchSize {
		end := min(start+BatchSize, len(indices))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				idx := indices[i]
				dst[i] = src[idx].Add(d.at(idx))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dst, nil
}
