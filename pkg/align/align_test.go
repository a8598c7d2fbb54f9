package align

import (
	"errors"
	"math"
	"testing"

	"github.com/chazu/cadbench/pkg/kernel"
	"github.com/chazu/cadbench/pkg/kernel/sdfx"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKernel() *sdfx.SdfxKernel {
	return sdfx.NewWithOptions(sdfx.Options{Resolution: 32})
}

// failingKernel fails every boolean operation.
type failingKernel struct {
	kernel.Kernel
}

func (failingKernel) Intersection(_, _ kernel.Solid) (kernel.Solid, error) {
	return nil, kernel.ErrNonManifold
}

func (failingKernel) Union(_, _ kernel.Solid) (kernel.Solid, error) {
	return nil, kernel.ErrNonManifold
}

// markerSolid is returned by the fake booleans below; its volume is fixed.
type markerSolid struct {
	volume float64
}

func (markerSolid) BoundingBox() (min, max [3]float64) { return }

// fixedOverlapKernel makes every candidate score the same intersection
// and union volumes.
type fixedOverlapKernel struct {
	kernel.Kernel
	inter, union float64
}

func (k fixedOverlapKernel) Intersection(_, _ kernel.Solid) (kernel.Solid, error) {
	return markerSolid{k.inter}, nil
}

func (k fixedOverlapKernel) Union(_, _ kernel.Solid) (kernel.Solid, error) {
	return markerSolid{k.union}, nil
}

func (k fixedOverlapKernel) Volume(s kernel.Solid) (float64, error) {
	if m, ok := s.(markerSolid); ok {
		return m.volume, nil
	}
	return k.Kernel.Volume(s)
}

func TestFlipSigns(t *testing.T) {
	want := [3][3]float64{
		{1, -1, -1},
		{-1, 1, -1},
		{-1, -1, 1},
	}
	for i, w := range want {
		assert.Equal(t, w, FlipSigns(i), "FlipSigns(%d)", i)
	}
}

func TestCandidateRotations(t *testing.T) {
	// Two arbitrary orthonormal bases.
	vs := mgl64.Rotate3DX(0.3).Mul3(mgl64.Rotate3DY(1.1))
	vt := mgl64.Rotate3DZ(-0.7)
	rs := CandidateRotations(Frame{Vectors: vt}, Frame{Vectors: vs})

	assert.True(t, rs[0].ApproxEqualThreshold(vt.Mul3(vs.Transpose()), 1e-12))
	for i, r := range rs {
		assert.True(t, IsOrthogonal(r, 1e-9), "candidate %d not orthogonal: %v", i, r)
	}

	// Candidate i+1 maps source axis j to target axis j with sign a_i[j].
	for i := 0; i < NumCandidates-1; i++ {
		a := FlipSigns(i)
		for j := 0; j < 3; j++ {
			got := rs[i+1].Mul3x1(vs.Col(j))
			want := vt.Col(j).Mul(a[j])
			assert.True(t, got.ApproxEqualThreshold(want, 1e-9), "candidate %d axis %d: %v != %v", i+1, j, got, want)
		}
	}
}

func TestPose(t *testing.T) {
	r := mgl64.Rotate3DZ(math.Pi / 2)
	p := Pose(r)
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			want := 0.0
			switch {
			case row < 3 && col < 3:
				want = r.At(row, col)
			case row == col:
				want = 1
			}
			assert.Equal(t, want, p.At(row, col), "Pose[%d][%d]", row, col)
		}
	}
	assert.False(t, IsOrthogonal(mgl64.Diag3(mgl64.Vec3{1, 2, 1}), 1e-9))
}

func TestNewFrameBox(t *testing.T) {
	k := testKernel()
	f, err := NewFrame(k, k.Translate(k.Box(1, 2, 3), mgl64.Vec3{1, 1, 1}))
	require.NoError(t, err)

	assert.InDelta(t, 6.0, f.Volume, 1e-9)
	assert.True(t, f.Centroid.ApproxEqualThreshold(mgl64.Vec3{1, 1, 1}, 1e-9))
	assert.True(t, f.Values[0] <= f.Values[1] && f.Values[1] <= f.Values[2], "values not ascending: %v", f.Values)
	assert.True(t, IsOrthogonal(f.Vectors, 1e-9))

	// Box a x b x c: sum of principal moments is V(a^2+b^2+c^2)/6.
	wantScale := math.Sqrt((1.0 + 4 + 9) / 6)
	assert.InDelta(t, wantScale, f.Scale, 1e-9)
}

func TestNewFrameDegenerate(t *testing.T) {
	k := testKernel()
	empty, err := k.Difference(k.Box(1, 1, 1), k.Box(2, 2, 2))
	require.NoError(t, err)

	_, err = NewFrame(k, empty)
	assert.ErrorIs(t, err, ErrDegenerateInput)
	assert.ErrorIs(t, err, kernel.ErrUndefinedVolume)
}

func TestAlignDegenerateInput(t *testing.T) {
	k := testKernel()
	empty, err := k.Difference(k.Box(1, 1, 1), k.Box(2, 2, 2))
	require.NoError(t, err)

	_, err = New(k, nil).Align(k.Box(1, 1, 1), empty)
	assert.ErrorIs(t, err, ErrDegenerateInput)

	_, err = New(k, nil).Align(nil, k.Box(1, 1, 1))
	assert.ErrorIs(t, err, ErrDegenerateInput)
}

func TestSelfAlignment(t *testing.T) {
	k := testKernel()
	a := New(k, nil)
	solids := map[string]kernel.Solid{
		"box":      k.Box(1, 2, 3),
		"cylinder": k.Cylinder(3, 0.5, 0),
		"rotated":  k.Rotate(k.Box(1, 2, 4), 30, 0, 45),
	}
	for name, s := range solids {
		t.Run(name, func(t *testing.T) {
			res, err := a.Align(s, s)
			require.NoError(t, err)
			assert.True(t, res.Found())
			assert.GreaterOrEqual(t, res.IoU, 0.99)
			assert.LessOrEqual(t, res.IoU, 1.0)
			assert.NotNil(t, res.Aligned)
		})
	}
}

func TestScaleInvariance(t *testing.T) {
	k := testKernel()
	a := New(k, nil)
	s := k.Box(1, 2, 3)

	self, err := a.Align(s, s)
	require.NoError(t, err)
	for _, factor := range []float64{0.25, 3} {
		res, err := a.Align(s, k.Scale(s, factor))
		require.NoError(t, err)
		assert.InDelta(t, self.IoU, res.IoU, 0.01, "scale %v", factor)
	}
}

func TestTranslationInvariance(t *testing.T) {
	k := testKernel()
	a := New(k, nil)
	s := k.Box(1, 2, 3)

	self, err := a.Align(s, s)
	require.NoError(t, err)
	res, err := a.Align(s, k.Translate(s, mgl64.Vec3{10, -4, 7}))
	require.NoError(t, err)
	assert.InDelta(t, self.IoU, res.IoU, 0.01)
	assert.True(t, res.TargetCentroid.ApproxEqualThreshold(mgl64.Vec3{10, -4, 7}, 1e-9))
	assert.True(t, res.SourceCentroid.ApproxEqualThreshold(mgl64.Vec3{}, 1e-9))
}

func TestIoUBounds(t *testing.T) {
	k := testKernel()
	a := New(k, nil)
	pairs := [][2]kernel.Solid{
		{k.Box(1, 1, 1), k.Sphere(1)},
		{k.Box(1, 2, 3), k.Cylinder(2, 1, 0)},
		{k.Sphere(1), k.Box(4, 1, 1)},
	}
	for i, p := range pairs {
		res, err := a.Align(p[0], p[1])
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.IoU, 0.0, "pair %d", i)
		assert.LessOrEqual(t, res.IoU, 1.0, "pair %d", i)
		for _, c := range res.Candidates {
			assert.GreaterOrEqual(t, c.IoU, 0.0)
			assert.LessOrEqual(t, c.IoU, 1.0)
		}
	}
}

func TestAllBooleansFail(t *testing.T) {
	k := failingKernel{testKernel()}
	res, err := New(k, nil).Align(k.Box(1, 2, 3), k.Box(1, 2, 3))
	require.NoError(t, err)

	assert.False(t, res.Found())
	assert.Equal(t, 0.0, res.IoU)
	assert.Nil(t, res.Aligned)
	assert.Equal(t, -1, res.Best)
	for i, c := range res.Candidates {
		assert.Equal(t, i, c.Index)
		assert.False(t, c.Defined())
		assert.True(t, errors.Is(c.Err, ErrUndefinedOverlap))
		assert.True(t, errors.Is(c.Err, kernel.ErrNonManifold))
	}
}

func TestZeroOverlap(t *testing.T) {
	k := fixedOverlapKernel{Kernel: testKernel(), inter: 0, union: 2}
	res, err := New(k, nil).Align(k.Box(1, 1, 1), k.Translate(k.Box(1, 1, 1), mgl64.Vec3{10, 0, 0}))
	require.NoError(t, err)

	assert.False(t, res.Found())
	assert.Equal(t, 0.0, res.IoU)
	assert.Nil(t, res.Aligned)
	for _, c := range res.Candidates {
		// A kernel that reports an empty intersection as volume 0 yields a
		// defined score of 0.
		assert.True(t, c.Defined())
		assert.Equal(t, 0.0, c.IoU)
	}
}

func TestDisjointOverlapUndefinedWithSdfx(t *testing.T) {
	// sdfx refuses an intersection of disjoint bounds, so the candidate
	// is undefined rather than scored 0.
	k := testKernel()
	a := New(k, nil)
	_, err := a.score(k.Box(1, 1, 1), k.Translate(k.Box(1, 1, 1), mgl64.Vec3{10, 0, 0}))
	assert.ErrorIs(t, err, ErrUndefinedOverlap)
	assert.ErrorIs(t, err, kernel.ErrEmptyResult)
}

func TestTiesKeepLowestIndex(t *testing.T) {
	k := fixedOverlapKernel{Kernel: testKernel(), inter: 1, union: 2}
	res, err := New(k, nil).Align(k.Box(1, 2, 3), k.Box(1, 2, 3))
	require.NoError(t, err)

	assert.True(t, res.Found())
	assert.Equal(t, 0, res.Best)
	assert.Equal(t, 0.5, res.IoU)
	assert.Equal(t, Pose(res.Candidates[0].Rotation), res.Pose)
}

func TestRotatedTranslatedScaledCube(t *testing.T) {
	k := testKernel()
	cube := k.Box(1, 1, 1)
	target := k.Translate(k.Scale(k.Rotate(cube, 0, 0, 90), 2), mgl64.Vec3{5, 5, 5})

	res, err := New(k, nil).Align(cube, target)
	require.NoError(t, err)
	require.True(t, res.Found())
	assert.GreaterOrEqual(t, res.IoU, 0.99)
	assert.True(t, res.TargetCentroid.ApproxEqualThreshold(mgl64.Vec3{5, 5, 5}, 1e-6))

	// The aligned source lands in the target's size and position.
	vol, err := k.Volume(res.Aligned)
	require.NoError(t, err)
	assert.InDelta(t, 8.0, vol, 0.2)
	c, err := k.CenterOfMass(res.Aligned)
	require.NoError(t, err)
	assert.True(t, c.ApproxEqualThreshold(mgl64.Vec3{5, 5, 5}, 1e-3), "aligned centroid %v", c)
}

func TestCubeVersusSphere(t *testing.T) {
	k := testKernel()
	cube := k.Box(1, 1, 1)
	sphere := k.Sphere(math.Cbrt(3 / (4 * math.Pi)))

	first, err := New(k, nil).Align(cube, sphere)
	require.NoError(t, err)
	assert.Greater(t, first.IoU, 0.0)
	assert.Less(t, first.IoU, 1.0)

	// Fresh solids on a fresh kernel give the identical score.
	k2 := testKernel()
	second, err := New(k2, nil).Align(k2.Box(1, 1, 1), k2.Sphere(math.Cbrt(3/(4*math.Pi))))
	require.NoError(t, err)
	assert.Equal(t, first.IoU, second.IoU)
	assert.Equal(t, first.Best, second.Best)
}
