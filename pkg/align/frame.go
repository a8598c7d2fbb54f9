package align

import (
	"fmt"
	"math"

	"github.com/chazu/cadbench/pkg/kernel"
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"
)

// Frame is the principal inertia frame of a solid: where it sits, how
// its mass is distributed, and the scale that normalizes its size.
type Frame struct {
	Centroid mgl64.Vec3
	Volume   float64
	// Values holds the principal moments in ascending order.
	Values [3]float64
	// Vectors holds the matching principal axes as columns.
	Vectors mgl64.Mat3
	Scale   float64
}

// NewFrame queries k for the mass properties of s and decomposes its
// inertia tensor. The eigenvectors are used exactly as the symmetric
// decomposition returns them, with no sign or order canonicalization.
func NewFrame(k kernel.Kernel, s kernel.Solid) (Frame, error) {
	c, err := k.CenterOfMass(s)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrDegenerateInput, err)
	}
	inertia, err := k.MatrixOfInertia(s)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrDegenerateInput, err)
	}
	v, err := k.Mass(s)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrDegenerateInput, err)
	}
	if !(v > 0) || math.IsInf(v, 0) {
		return Frame{}, fmt.Errorf("%w: volume %v", ErrDegenerateInput, v)
	}

	values, vectors, err := eigenSym(inertia)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrDegenerateInput, err)
	}

	sum := math.Abs(values[0]) + math.Abs(values[1]) + math.Abs(values[2])
	scale := math.Sqrt(sum / v)
	if !(scale > 0) || math.IsInf(scale, 0) {
		return Frame{}, fmt.Errorf("%w: normalization scale %v", ErrDegenerateInput, scale)
	}

	return Frame{
		Centroid: c,
		Volume:   v,
		Values:   values,
		Vectors:  vectors,
		Scale:    scale,
	}, nil
}

// eigenSym decomposes a symmetric 3x3 tensor. Eigenvalues come back in
// ascending order with eigenvectors as the columns of the returned matrix.
func eigenSym(m mgl64.Mat3) ([3]float64, mgl64.Mat3, error) {
	data := make([]float64, 0, 9)
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			data = append(data, m.At(row, col))
		}
	}
	for _, x := range data {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return [3]float64{}, mgl64.Mat3{}, fmt.Errorf("non-finite inertia tensor %v", m)
		}
	}

	var es mat.EigenSym
	if ok := es.Factorize(mat.NewSymDense(3, data), true); !ok {
		return [3]float64{}, mgl64.Mat3{}, fmt.Errorf("eigendecomposition of %v did not converge", m)
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	var values [3]float64
	var vectors mgl64.Mat3
	for col := 0; col < 3; col++ {
		values[col] = vals[col]
		for row := 0; row < 3; row++ {
			vectors.Set(row, col, vecs.At(row, col))
		}
	}
	return values, vectors, nil
}
