//go:build manifold

package manifold

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/chazu/cadbench/pkg/export"
	"github.com/chazu/cadbench/pkg/kernel"
	"github.com/go-gl/mathgl/mgl64"
)

func mustNew(t *testing.T) export.Kernel {
	t.Helper()
	k, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return k
}

func assertBounds(t *testing.T, s kernel.Solid, wantMin, wantMax [3]float64, tol float64) {
	t.Helper()
	min, max := s.BoundingBox()
	for i := 0; i < 3; i++ {
		if math.Abs(min[i]-wantMin[i]) > tol {
			t.Errorf("min[%d] = %f, want %f", i, min[i], wantMin[i])
		}
		if math.Abs(max[i]-wantMax[i]) > tol {
			t.Errorf("max[%d] = %f, want %f", i, max[i], wantMax[i])
		}
	}
}

func TestBox(t *testing.T) {
	k := mustNew(t)
	assertBounds(t, k.Box(10, 20, 30), [3]float64{-5, -10, -15}, [3]float64{5, 10, 15}, 1e-6)
}

func TestCylinder(t *testing.T) {
	k := mustNew(t)
	min, max := k.Cylinder(20, 5, 32).BoundingBox()
	if math.Abs(min[2]+10) > 1e-6 || math.Abs(max[2]-10) > 1e-6 {
		t.Errorf("Cylinder Z bounds = [%f, %f], want [-10, 10]", min[2], max[2])
	}
	// The polygon is inscribed in the circle.
	for i := 0; i < 2; i++ {
		if min[i] > -4.5 || max[i] < 4.5 {
			t.Errorf("Cylinder axis %d bounds = [%f, %f], want about ±5", i, min[i], max[i])
		}
	}
}

func TestDifference(t *testing.T) {
	k := mustNew(t)
	result, err := k.Difference(k.Box(10, 10, 10), k.Cylinder(20, 3, 32))
	if err != nil {
		t.Fatalf("Difference() error = %v", err)
	}
	assertBounds(t, result, [3]float64{-5, -5, -5}, [3]float64{5, 5, 5}, 1e-6)
}

func TestDisjointIntersectionIsEmpty(t *testing.T) {
	k := mustNew(t)
	far := k.Translate(k.Box(1, 1, 1), mgl64.Vec3{10, 0, 0})
	if _, err := k.Intersection(k.Box(1, 1, 1), far); !errors.Is(err, kernel.ErrEmptyResult) {
		t.Fatalf("Intersection() error = %v, want ErrEmptyResult", err)
	}
}

func TestTranslateAndScale(t *testing.T) {
	k := mustNew(t)
	moved := k.Translate(k.Box(10, 10, 10), mgl64.Vec3{100, 200, 300})
	assertBounds(t, moved, [3]float64{95, 195, 295}, [3]float64{105, 205, 305}, 1e-6)

	scaled := k.Scale(k.Box(2, 2, 2), 3)
	assertBounds(t, scaled, [3]float64{-3, -3, -3}, [3]float64{3, 3, 3}, 1e-6)
}

func TestTransformMatchesTranslate(t *testing.T) {
	k := mustNew(t)
	m := mgl64.Translate3D(1, 2, 3).Mul4(mgl64.HomogRotate3DZ(math.Pi / 2))
	got := k.Transform(k.Box(4, 2, 2), m)
	assertBounds(t, got, [3]float64{0, 0, 2}, [3]float64{2, 4, 4}, 1e-6)
}

func TestMassProperties(t *testing.T) {
	k := mustNew(t)
	s := k.Translate(k.Box(2, 4, 6), mgl64.Vec3{1, 1, 1})

	v, err := k.Volume(s)
	if err != nil {
		t.Fatalf("Volume() error = %v", err)
	}
	if math.Abs(v-48) > 1e-6 {
		t.Errorf("Volume() = %f, want 48", v)
	}
	c, err := k.CenterOfMass(s)
	if err != nil {
		t.Fatalf("CenterOfMass() error = %v", err)
	}
	if !c.ApproxEqualThreshold(mgl64.Vec3{1, 1, 1}, 1e-6) {
		t.Errorf("CenterOfMass() = %v, want (1, 1, 1)", c)
	}
	in, err := k.MatrixOfInertia(s)
	if err != nil {
		t.Fatalf("MatrixOfInertia() error = %v", err)
	}
	// Ixx = m(b²+c²)/12 for a box with sides a, b, c.
	want := mgl64.Diag3(mgl64.Vec3{48 * (16 + 36) / 12.0, 48 * (4 + 36) / 12.0, 48 * (4 + 16) / 12.0})
	if !in.ApproxEqualThreshold(want, 1e-4) {
		t.Errorf("MatrixOfInertia() = %v, want %v", in, want)
	}
}

func TestToMesh(t *testing.T) {
	k := mustNew(t)
	mesh, err := k.ToMesh(k.Box(10, 10, 10))
	if err != nil {
		t.Fatalf("ToMesh() error = %v", err)
	}
	if mesh.TriangleCount() < 12 {
		t.Errorf("ToMesh() triangle count = %d, want >= 12", mesh.TriangleCount())
	}
	if len(mesh.Normals) != len(mesh.Vertices) {
		t.Errorf("ToMesh() normals length = %d, vertices length = %d, want equal",
			len(mesh.Normals), len(mesh.Vertices))
	}
}

func TestSaveSTL(t *testing.T) {
	k := mustNew(t)
	path := filepath.Join(t.TempDir(), "model_stl", "1.stl")
	if err := export.SaveSTL(k, k.Sphere(3), path); err != nil {
		t.Fatalf("SaveSTL() error = %v", err)
	}
}
