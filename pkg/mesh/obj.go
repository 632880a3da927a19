package mesh

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Faultbox/softbody/pkg/math"
)

// OBJ format errors.
var (
	ErrInvalidOBJ = errors.New("invalid OBJ data")
)

// LoadOBJ reads a Wavefront OBJ file from disk.
func LoadOBJ(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := ParseOBJ(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return m, nil
}

// ParseOBJ reads positions, normals and faces from OBJ text. Faces with more
// than three corners are fan-triangulated. Normals are attached to the
// position index they are paired with; if the file has none they are
// recomputed. Texture coordinates, groups and materials are ignored.
func ParseOBJ(r io.Reader) (*Mesh, error) {
	var (
		positions []math.Vec3
		normals   []math.Vec3
		tris      []int
		vnFor     = map[int]int{}
	)

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)

		switch fields[0] {
		case "v":
			v, err := parseVec3(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidOBJ, lineNo, err)
			}
			positions = append(positions, v)
		case "vn":
			v, err := parseVec3(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidOBJ, lineNo, err)
			}
			normals = append(normals, v)
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("%w: line %d: face needs 3 corners", ErrInvalidOBJ, lineNo)
			}
			corners := make([]int, 0, len(fields)-1)
			for _, c := range fields[1:] {
				vi, ni, err := parseCorner(c, len(positions), len(normals))
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidOBJ, lineNo, err)
				}
				if ni >= 0 {
					vnFor[vi] = ni
				}
				corners = append(corners, vi)
			}
			for i := 1; i+1 < len(corners); i++ {
				tris = append(tris, corners[0], corners[i], corners[i+1])
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	m := &Mesh{Vertices: positions, Triangles: tris}
	if len(normals) > 0 && len(vnFor) == len(positions) {
		m.Normals = make([]math.Vec3, len(positions))
		for vi, ni := range vnFor {
			m.Normals[vi] = normals[ni]
		}
	} else {
		m.RecalculateNormals()
	}

	return m, m.Validate()
}

func parseVec3(fields []string) (math.Vec3, error) {
	if len(fields) < 3 {
		return math.Vec3{}, fmt.Errorf("expected 3 components, got %d", len(fields))
	}
	var out [3]float32
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return math.Vec3{}, err
		}
		out[i] = float32(f)
	}
	return math.Vec3FromArray(out), nil
}

// parseCorner parses "v", "v/vt", "v//vn" or "v/vt/vn" into zero-based
// position and normal indices (normal is -1 when absent).
func parseCorner(s string, nPos, nNorm int) (int, int, error) {
	parts := strings.Split(s, "/")
	vi, err := resolveIndex(parts[0], nPos)
	if err != nil {
		return 0, 0, err
	}
	ni := -1
	if len(parts) == 3 && parts[2] != "" {
		ni, err = resolveIndex(parts[2], nNorm)
		if err != nil {
			return 0, 0, err
		}
	}
	return vi, ni, nil
}

func resolveIndex(s string, n int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	switch {
	case i > 0 && i <= n:
		return i - 1, nil
	case i < 0 && -i <= n:
		return n + i, nil
	default:
		return 0, fmt.Errorf("index %d out of range (%d)", i, n)
	}
}
