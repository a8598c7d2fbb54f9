// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library.
//
// Signed distance fields have no exact volume, so mass properties are
// integrated numerically over a voxel grid spanning the solid's bounding
// box. Results are memoised per solid.
package sdfx

import (
	"fmt"
	"math"
	"sync"

	"github.com/chazu/cadbench/pkg/kernel"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/go-gl/mathgl/mgl64"
)

// Compile-time interface checks.
var _ kernel.Kernel = (*SdfxKernel)(nil)
var _ kernel.Solid = (*sdfxSolid)(nil)

const (
	// DefaultResolution is the number of voxel cells along the longest
	// bounding box axis used for mass property integration.
	DefaultResolution = 64
	// DefaultMeshCells controls marching cubes tessellation resolution.
	DefaultMeshCells = 200
)

// Options tunes the numerical resolution of the kernel.
type Options struct {
	Resolution int `yaml:"resolution"`
	MeshCells  int `yaml:"mesh_cells"`
}

// sdfxSolid wraps an sdf.SDF3 to implement kernel.Solid.
type sdfxSolid struct {
	s sdf.SDF3

	once  sync.Once
	props massProps
	err   error
}

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxSolid) BoundingBox() (min, max [3]float64) {
	bb := s.s.BoundingBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// SDF exposes the underlying signed distance field.
func (s *sdfxSolid) SDF() sdf.SDF3 {
	return s.s
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct {
	opts Options
}

// New returns a new SdfxKernel with default resolution.
func New() *SdfxKernel {
	return NewWithOptions(Options{})
}

// NewWithOptions returns a kernel using opts, filling zero fields with defaults.
func NewWithOptions(opts Options) *SdfxKernel {
	if opts.Resolution <= 0 {
		opts.Resolution = DefaultResolution
	}
	if opts.MeshCells <= 0 {
		opts.MeshCells = DefaultMeshCells
	}
	return &SdfxKernel{opts: opts}
}

// Options returns the effective options.
func (k *SdfxKernel) Options() Options {
	return k.opts
}

// unwrap extracts the underlying solid from a kernel.Solid.
func unwrap(s kernel.Solid) *sdfxSolid {
	return s.(*sdfxSolid)
}

// wrap creates a kernel.Solid from an sdf.SDF3.
func wrap(s sdf.SDF3) kernel.Solid {
	return &sdfxSolid{s: s}
}

// Box creates a box with the given dimensions, centred at the origin.
func (k *SdfxKernel) Box(x, y, z float64) kernel.Solid {
	s, err := sdf.Box3D(v3.Vec{X: x, Y: y, Z: z}, 0)
	if err != nil {
		panic(fmt.Sprintf("sdfx.Box3D: %v", err))
	}
	return wrap(s)
}

// Cylinder creates a cylinder along Z with the given height and radius.
// The segments parameter is ignored since SDF represents smooth surfaces.
func (k *SdfxKernel) Cylinder(height, radius float64, segments int) kernel.Solid {
	s, err := sdf.Cylinder3D(height, radius, 0)
	if err != nil {
		panic(fmt.Sprintf("sdfx.Cylinder3D: %v", err))
	}
	return wrap(s)
}

// Sphere creates a sphere centred at the origin.
func (k *SdfxKernel) Sphere(radius float64) kernel.Solid {
	s, err := sdf.Sphere3D(radius)
	if err != nil {
		panic(fmt.Sprintf("sdfx.Sphere3D: %v", err))
	}
	return wrap(s)
}

// Union returns the union of two solids.
func (k *SdfxKernel) Union(a, b kernel.Solid) (kernel.Solid, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("sdfx: union: %w", kernel.ErrNilSolid)
	}
	return wrap(sdf.Union3D(unwrap(a).s, unwrap(b).s)), nil
}

// Difference returns the difference a - b.
func (k *SdfxKernel) Difference(a, b kernel.Solid) (kernel.Solid, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("sdfx: difference: %w", kernel.ErrNilSolid)
	}
	return wrap(sdf.Difference3D(unwrap(a).s, unwrap(b).s)), nil
}

// Intersection returns the intersection of two solids. The result's
// bounding box is the overlap of the inputs' boxes; disjoint boxes yield
// kernel.ErrEmptyResult.
func (k *SdfxKernel) Intersection(a, b kernel.Solid) (kernel.Solid, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("sdfx: intersection: %w", kernel.ErrNilSolid)
	}
	sa, sb := unwrap(a).s, unwrap(b).s
	bb, ok := overlap(sa.BoundingBox(), sb.BoundingBox())
	if !ok {
		return nil, fmt.Errorf("sdfx: intersection: %w", kernel.ErrEmptyResult)
	}
	return wrap(&boundedSDF3{SDF3: sdf.Intersect3D(sa, sb), bb: bb}), nil
}

// Translate moves a solid by v.
func (k *SdfxKernel) Translate(s kernel.Solid, v mgl64.Vec3) kernel.Solid {
	m := sdf.Translate3d(v3.Vec{X: v[0], Y: v[1], Z: v[2]})
	return wrap(sdf.Transform3D(unwrap(s).s, m))
}

// Rotate rotates a solid by Euler angles (degrees) around X, Y, Z axes.
func (k *SdfxKernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	xRad := x * math.Pi / 180.0
	yRad := y * math.Pi / 180.0
	zRad := z * math.Pi / 180.0

	m := sdf.RotateZ(zRad).Mul(sdf.RotateY(yRad)).Mul(sdf.RotateX(xRad))
	return wrap(sdf.Transform3D(unwrap(s).s, m))
}

// Scale scales a solid uniformly about the origin. k must be positive.
func (k *SdfxKernel) Scale(s kernel.Solid, factor float64) kernel.Solid {
	if !(factor > 0) || math.IsInf(factor, 0) {
		panic(fmt.Sprintf("sdfx: scale factor %v must be positive and finite", factor))
	}
	return k.Transform(s, mgl64.Scale3D(factor, factor, factor))
}

// Transform applies an arbitrary non-singular affine transform.
func (k *SdfxKernel) Transform(s kernel.Solid, m mgl64.Mat4) kernel.Solid {
	a, err := newAffineSDF3(unwrap(s).s, m)
	if err != nil {
		panic(fmt.Sprintf("sdfx: transform: %v", err))
	}
	return wrap(a)
}

// properties integrates and memoises the mass properties of s.
func (k *SdfxKernel) properties(s kernel.Solid) (massProps, error) {
	if s == nil {
		return massProps{}, kernel.ErrNilSolid
	}
	ss := unwrap(s)
	ss.once.Do(func() {
		ss.props, ss.err = integrate(ss.s, k.opts.Resolution)
	})
	return ss.props, ss.err
}

// CenterOfMass returns the centroid of a solid of uniform density.
func (k *SdfxKernel) CenterOfMass(s kernel.Solid) (mgl64.Vec3, error) {
	p, err := k.properties(s)
	if err != nil {
		return mgl64.Vec3{}, fmt.Errorf("sdfx: center of mass: %w", err)
	}
	return p.centroid, nil
}

// MatrixOfInertia returns the inertia tensor about the centroid.
func (k *SdfxKernel) MatrixOfInertia(s kernel.Solid) (mgl64.Mat3, error) {
	p, err := k.properties(s)
	if err != nil {
		return mgl64.Mat3{}, fmt.Errorf("sdfx: matrix of inertia: %w", err)
	}
	return p.inertia, nil
}

// Mass returns the mass at unit density, i.e. the volume.
func (k *SdfxKernel) Mass(s kernel.Solid) (float64, error) {
	p, err := k.properties(s)
	if err != nil {
		return 0, fmt.Errorf("sdfx: mass: %w", err)
	}
	return p.volume, nil
}

// Volume returns the enclosed volume.
func (k *SdfxKernel) Volume(s kernel.Solid) (float64, error) {
	p, err := k.properties(s)
	if err != nil {
		return 0, fmt.Errorf("sdfx: volume: %w", err)
	}
	return p.volume, nil
}

// ToMesh converts a solid to a triangle mesh using marching cubes.
func (k *SdfxKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	if s == nil {
		return nil, fmt.Errorf("sdfx: to mesh: %w", kernel.ErrNilSolid)
	}
	sdf3 := unwrap(s).s

	renderer := render.NewMarchingCubesUniform(k.opts.MeshCells)
	triangles := render.ToTriangles(sdf3, renderer)

	numTri := len(triangles)
	numVerts := numTri * 3

	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		// Compute face normal.
		n := tri.Normal()
		nx := float32(n.X)
		ny := float32(n.Y)
		nz := float32(n.Z)

		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, nx, ny, nz)
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}, nil
}

// SaveSTL renders a solid with marching cubes and writes it as binary STL.
func (k *SdfxKernel) SaveSTL(s kernel.Solid, path string) error {
	if s == nil {
		return fmt.Errorf("sdfx: save stl: %w", kernel.ErrNilSolid)
	}
	triangles := render.ToTriangles(unwrap(s).s, render.NewMarchingCubesUniform(k.opts.MeshCells))
	if len(triangles) == 0 {
		return fmt.Errorf("sdfx: save stl %s: %w", path, kernel.ErrEmptyResult)
	}
	if err := render.SaveSTL(path, triangles); err != nil {
		return fmt.Errorf("sdfx: save stl %s: %w", path, err)
	}
	return nil
}
