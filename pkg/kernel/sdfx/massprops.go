package sdfx

import (
	"math"

	"github.com/chazu/cadbench/pkg/kernel"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/go-gl/mathgl/mgl64"
)

// snapTolerance is the fraction of the inertia trace below which
// off-diagonal integration noise is treated as zero.
const snapTolerance = 1e-9

// massProps holds the integrated properties of a solid at unit density.
type massProps struct {
	volume   float64
	centroid mgl64.Vec3
	inertia  mgl64.Mat3 // about the centroid
}

// grid describes the voxel lattice laid over a bounding box.
type grid struct {
	n      [3]int
	step   [3]float64
	centre [3]float64
	half   [3]float64
}

func newGrid(bb sdf.Box3, resolution int) (grid, bool) {
	lo := [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	hi := [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}

	var g grid
	longest := 0.0
	for i := 0; i < 3; i++ {
		size := hi[i] - lo[i]
		if !(size > 0) || math.IsInf(size, 0) {
			return grid{}, false
		}
		longest = math.Max(longest, size)
		g.centre[i] = (lo[i] + hi[i]) / 2
		g.half[i] = size / 2
	}
	h := longest / float64(resolution)
	for i := 0; i < 3; i++ {
		size := 2 * g.half[i]
		g.n[i] = max(1, int(math.Ceil(size/h-1e-9)))
		g.step[i] = size / float64(g.n[i])
	}
	return g, true
}

// coord returns the cell centre offset from the grid centre along axis a.
func (g grid) coord(a, i int) float64 {
	return -g.half[a] + (float64(i)+0.5)*g.step[a]
}

// integrate samples s at every voxel centre of its bounding box and
// accumulates volume, first and second moments. Moments are taken about
// the box centre so that symmetric parts cancel cleanly, and each voxel
// contributes its own second moment so filled boxes integrate exactly.
func integrate(s sdf.SDF3, resolution int) (massProps, error) {
	g, ok := newGrid(s.BoundingBox(), resolution)
	if !ok {
		return massProps{}, kernel.ErrUndefinedVolume
	}

	var count int
	var m1 [3]float64    // first moments
	var m2 [3][3]float64 // second moments
	var p [3]float64
	for i := 0; i < g.n[0]; i++ {
		p[0] = g.coord(0, i)
		for j := 0; j < g.n[1]; j++ {
			p[1] = g.coord(1, j)
			for k := 0; k < g.n[2]; k++ {
				p[2] = g.coord(2, k)
				q := v3.Vec{X: p[0] + g.centre[0], Y: p[1] + g.centre[1], Z: p[2] + g.centre[2]}
				if s.Evaluate(q) >= 0 {
					continue
				}
				count++
				for a := 0; a < 3; a++ {
					m1[a] += p[a]
					for b := a; b < 3; b++ {
						m2[a][b] += p[a] * p[b]
					}
				}
			}
		}
	}
	if count == 0 {
		return massProps{}, kernel.ErrUndefinedVolume
	}

	n := float64(count)
	volume := n * g.step[0] * g.step[1] * g.step[2]

	var mean [3]float64
	for a := 0; a < 3; a++ {
		mean[a] = m1[a] / n
	}
	// Covariance of the material about its centroid.
	var cov [3][3]float64
	for a := 0; a < 3; a++ {
		for b := a; b < 3; b++ {
			cov[a][b] = m2[a][b]/n - mean[a]*mean[b]
			cov[b][a] = cov[a][b]
		}
		cov[a][a] += g.step[a] * g.step[a] / 12
	}

	ixx := volume * (cov[1][1] + cov[2][2])
	iyy := volume * (cov[0][0] + cov[2][2])
	izz := volume * (cov[0][0] + cov[1][1])
	ixy := -volume * cov[0][1]
	ixz := -volume * cov[0][2]
	iyz := -volume * cov[1][2]

	tol := snapTolerance * (ixx + iyy + izz)
	ixy, ixz, iyz = snap(ixy, tol), snap(ixz, tol), snap(iyz, tol)

	return massProps{
		volume: volume,
		centroid: mgl64.Vec3{
			g.centre[0] + mean[0],
			g.centre[1] + mean[1],
			g.centre[2] + mean[2],
		},
		inertia: mgl64.Mat3{
			ixx, ixy, ixz,
			ixy, iyy, iyz,
			ixz, iyz, izz,
		},
	}, nil
}

func snap(v, tol float64) float64 {
	if math.Abs(v) < tol {
		return 0
	}
	return v
}
