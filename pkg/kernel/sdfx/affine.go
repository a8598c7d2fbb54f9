package sdfx

import (
	"errors"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/go-gl/mathgl/mgl64"
)

var errSingular = errors.New("singular transform")

// affineSDF3 applies an arbitrary affine map to an SDF. Points are pulled
// back through the inverse map and the distance is rescaled by the cube
// root of the determinant, which is exact for similarity transforms. For
// other maps only the sign of the distance is exact, which is all the
// voxel integrator needs.
type affineSDF3 struct {
	s   sdf.SDF3
	inv mgl64.Mat4
	k   float64
	bb  sdf.Box3
}

func newAffineSDF3(s sdf.SDF3, m mgl64.Mat4) (*affineSDF3, error) {
	det := m.Det()
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return nil, errSingular
	}
	return &affineSDF3{
		s:   s,
		inv: m.Inv(),
		k:   math.Cbrt(math.Abs(det)),
		bb:  transformBox(s.BoundingBox(), m),
	}, nil
}

// Evaluate returns the distance from p to the transformed surface.
func (a *affineSDF3) Evaluate(p v3.Vec) float64 {
	q := a.inv.Mul4x1(mgl64.Vec4{p.X, p.Y, p.Z, 1})
	return a.k * a.s.Evaluate(v3.Vec{X: q[0], Y: q[1], Z: q[2]})
}

// BoundingBox returns the box enclosing the transformed input box.
func (a *affineSDF3) BoundingBox() sdf.Box3 {
	return a.bb
}

// transformBox maps the eight corners of bb through m and returns their
// axis-aligned bounds.
func transformBox(bb sdf.Box3, m mgl64.Mat4) sdf.Box3 {
	lo := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for i := 0; i < 8; i++ {
		c := mgl64.Vec4{bb.Min.X, bb.Min.Y, bb.Min.Z, 1}
		if i&1 != 0 {
			c[0] = bb.Max.X
		}
		if i&2 != 0 {
			c[1] = bb.Max.Y
		}
		if i&4 != 0 {
			c[2] = bb.Max.Z
		}
		w := m.Mul4x1(c)
		for j := 0; j < 3; j++ {
			lo[j] = math.Min(lo[j], w[j])
			hi[j] = math.Max(hi[j], w[j])
		}
	}
	return sdf.Box3{
		Min: v3.Vec{X: lo[0], Y: lo[1], Z: lo[2]},
		Max: v3.Vec{X: hi[0], Y: hi[1], Z: hi[2]},
	}
}

// boundedSDF3 overrides the bounding box of an SDF with a tighter one.
type boundedSDF3 struct {
	sdf.SDF3
	bb sdf.Box3
}

// BoundingBox returns the overridden box.
func (b *boundedSDF3) BoundingBox() sdf.Box3 {
	return b.bb
}

// overlap returns the intersection of two boxes and whether it has
// positive extent on every axis.
func overlap(a, b sdf.Box3) (sdf.Box3, bool) {
	r := sdf.Box3{
		Min: v3.Vec{X: math.Max(a.Min.X, b.Min.X), Y: math.Max(a.Min.Y, b.Min.Y), Z: math.Max(a.Min.Z, b.Min.Z)},
		Max: v3.Vec{X: math.Min(a.Max.X, b.Max.X), Y: math.Min(a.Max.Y, b.Max.Y), Z: math.Min(a.Max.Z, b.Max.Z)},
	}
	ok := r.Min.X < r.Max.X && r.Min.Y < r.Max.Y && r.Min.Z < r.Max.Z
	return r, ok
}
