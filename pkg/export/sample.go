// Package export writes solids and their derived point clouds to disk:
// STL through the geometry kernel, PLY for surface samples.
package export

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/chazu/cadbench/pkg/kernel"
	"github.com/go-gl/mathgl/mgl64"
)

// DefaultPoints is the number of surface samples per point cloud.
const DefaultPoints = 2000

// ErrEmptyMesh is returned when a mesh has no area to sample from.
var ErrEmptyMesh = errors.New("export: mesh has no surface area")

// SampleSurface draws n points uniformly from the surface of m. Triangles
// are picked with probability proportional to their area, so the result
// is uniform over the whole surface. The same seed always yields the
// same points.
func SampleSurface(m *kernel.Mesh, n int, seed uint64) ([]mgl64.Vec3, error) {
	if n < 0 {
		return nil, fmt.Errorf("export: negative sample count %d", n)
	}
	if m == nil || m.TriangleCount() == 0 {
		return nil, ErrEmptyMesh
	}

	// cum[i] is the total area of triangles 0..i.
	cum := make([]float64, m.TriangleCount())
	var total float64
	for t := range cum {
		total += m.TriangleArea(t)
		cum[t] = total
	}
	if !(total > 0) || math.IsInf(total, 0) {
		return nil, ErrEmptyMesh
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	points := make([]mgl64.Vec3, n)
	for i := range points {
		t := sort.SearchFloat64s(cum, rng.Float64()*total)
		if t >= len(cum) {
			t = len(cum) - 1
		}
		a, b, c := m.Triangle(t)
		points[i] = pointInTriangle(a, b, c, rng.Float64(), rng.Float64())
	}
	return points, nil
}

// pointInTriangle maps the unit square onto triangle abc with uniform
// density.
func pointInTriangle(a, b, c mgl64.Vec3, u, v float64) mgl64.Vec3 {
	if u+v > 1 {
		u, v = 1-u, 1-v
	}
	return a.Add(b.Sub(a).Mul(u)).Add(c.Sub(a).Mul(v))
}
