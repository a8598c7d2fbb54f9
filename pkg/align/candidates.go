package align

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// NumCandidates is the size of the orientation search.
const NumCandidates = 4

// FlipSigns returns the per-axis sign pattern of flip schedule i in
// [0, 3): each axis is negated where the condition
// (i > 0, (i+1)%2 == 1, i%3 <= 1) holds.
//
//	i=0 -> ( 1, -1, -1)
//	i=1 -> (-1,  1, -1)
//	i=2 -> (-1, -1,  1)
func FlipSigns(i int) [3]float64 {
	flip := [3]bool{i > 0, (i+1)%2 == 1, i%3 <= 1}
	var a [3]float64
	for j, f := range flip {
		a[j] = 1
		if f {
			a[j] = -1
		}
	}
	return a
}

// CandidateRotations returns the orientations tried when mapping the
// source frame onto the target frame. Candidate 0 is the direct eigenbasis
// product V_t * V_s^T; candidates 1..3 first negate columns of V_s
// according to FlipSigns(0..2).
func CandidateRotations(target, source Frame) [NumCandidates]mgl64.Mat3 {
	var rs [NumCandidates]mgl64.Mat3
	rs[0] = target.Vectors.Mul3(source.Vectors.Transpose())
	for i := 0; i < NumCandidates-1; i++ {
		a := FlipSigns(i)
		flipped := source.Vectors
		for col := 0; col < 3; col++ {
			for row := 0; row < 3; row++ {
				flipped.Set(row, col, a[col]*source.Vectors.At(row, col))
			}
		}
		rs[i+1] = target.Vectors.Mul3(flipped.Transpose())
	}
	return rs
}

// Pose embeds r as the linear part of a homogeneous transform with zero
// translation.
func Pose(r mgl64.Mat3) mgl64.Mat4 {
	m := mgl64.Ident4()
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			m.Set(row, col, r.At(row, col))
		}
	}
	return m
}

// IsOrthogonal reports whether m^T m is the identity within tol.
func IsOrthogonal(m mgl64.Mat3, tol float64) bool {
	p := m.Transpose().Mul3(m)
	id := mgl64.Ident3()
	for i := range p {
		if math.Abs(p[i]-id[i]) > tol {
			return false
		}
	}
	return true
}
