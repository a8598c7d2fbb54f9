package kernel

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// MassProperties are the volume integrals of a solid of unit density.
type MassProperties struct {
	Volume   float64
	Centroid mgl64.Vec3
	// Inertia is taken about the centroid.
	Inertia mgl64.Mat3
}

// MeshMassProperties integrates a closed triangle mesh by summing signed
// tetrahedra against the origin. An inward-facing mesh is handled by
// flipping the sign of every integral.
func MeshMassProperties(m *Mesh) (MassProperties, error) {
	if m == nil || m.TriangleCount() == 0 {
		return MassProperties{}, fmt.Errorf("mesh mass properties: %w", ErrUndefinedVolume)
	}

	var (
		vol   float64
		first mgl64.Vec3
		// second is the covariance ∫ x xᵀ dV about the origin.
		second mgl64.Mat3
	)
	for t := 0; t < m.TriangleCount(); t++ {
		a, b, c := m.Triangle(t)
		det := a.Dot(b.Cross(c))
		vol += det / 6
		first = first.Add(a.Add(b).Add(c).Mul(det / 24))

		s := a.Add(b).Add(c)
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				// Canonical tetrahedron covariance mapped through [a b c].
				v := a[i]*a[j] + b[i]*b[j] + c[i]*c[j] + s[i]*s[j]
				second.Set(i, j, second.At(i, j)+det*v/120)
			}
		}
	}

	if vol < 0 {
		vol = -vol
		first = first.Mul(-1)
		second = second.Mul(-1)
	}
	if !(vol > 0) || math.IsInf(vol, 0) {
		return MassProperties{}, fmt.Errorf("mesh mass properties: %w", ErrUndefinedVolume)
	}

	c := first.Mul(1 / vol)
	// Shift the covariance to the centroid, then convert to inertia.
	cov := second.Sub(outer(c, c).Mul(vol))
	tr := cov.Trace()
	inertia := mgl64.Ident3().Mul(tr).Sub(cov)
	return MassProperties{Volume: vol, Centroid: c, Inertia: inertia}, nil
}

func outer(a, b mgl64.Vec3) mgl64.Mat3 {
	var m mgl64.Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(i, j, a[i]*b[j])
		}
	}
	return m
}
