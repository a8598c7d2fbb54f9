// Package kernel defines the abstract geometry kernel interface.
// Implementations provide solid modeling, boolean operations and mass
// property queries behind this interface. The aligner, the script builder
// and the export pipeline only ever talk to a Kernel, so backends can be
// swapped without touching the rest of the system.
package kernel

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
)

// Boolean and query failures. Backends wrap these so callers can classify
// a failure with errors.Is without knowing which backend produced it.
var (
	// ErrEmptyResult is returned when a boolean operation produces no material.
	ErrEmptyResult = errors.New("kernel: empty result")
	// ErrNonManifold is returned when a backend cannot produce a valid solid.
	ErrNonManifold = errors.New("kernel: non-manifold result")
	// ErrUndefinedVolume is returned when a solid has no measurable volume.
	ErrUndefinedVolume = errors.New("kernel: undefined volume")
	// ErrNilSolid is returned when an operation receives a nil solid.
	ErrNilSolid = errors.New("kernel: nil solid")
)

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation. A Solid is never
// mutated; every operation returns a new one.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel is the abstract geometry kernel interface.
type Kernel interface {
	// Primitives, centred at the origin.
	Box(x, y, z float64) Solid
	Cylinder(height, radius float64, segments int) Solid
	Sphere(radius float64) Solid

	// Boolean operations
	Union(a, b Solid) (Solid, error)
	Difference(a, b Solid) (Solid, error)
	Intersection(a, b Solid) (Solid, error)

	// Transforms
	Translate(s Solid, v mgl64.Vec3) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees
	Scale(s Solid, k float64) Solid
	Transform(s Solid, m mgl64.Mat4) Solid

	// Mass properties, for uniform unit density.
	CenterOfMass(s Solid) (mgl64.Vec3, error)
	MatrixOfInertia(s Solid) (mgl64.Mat3, error) // about the centre of mass
	Mass(s Solid) (float64, error)
	Volume(s Solid) (float64, error)

	// Mesh output
	ToMesh(s Solid) (*Mesh, error)
}
