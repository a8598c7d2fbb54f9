//go:build manifold

// Package manifold binds the Manifold mesh kernel
// (https://github.com/elalish/manifold) through its C API. Booleans are
// exact on triangle meshes, so it is the backend of choice when scripts
// lean on thin walls that a voxel kernel would blur.
//
// Requires manifoldc to be installed. Build with: go build -tags=manifold
package manifold

/*
#cgo CFLAGS: -I/usr/local/include
#cgo LDFLAGS: -L/usr/local/lib -lmanifoldc

#include <stdlib.h>
#include <manifold/manifoldc.h>
*/
import "C"

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/chazu/cadbench/pkg/export"
	"github.com/chazu/cadbench/pkg/kernel"
	"github.com/go-gl/mathgl/mgl64"
)

var (
	_ export.Kernel = (*ManifoldKernel)(nil)
	_ kernel.Solid  = (*manifoldSolid)(nil)
)

// manifoldSolid owns a C manifold. Mass properties are derived from the
// mesh once and cached.
type manifoldSolid struct {
	ptr *C.ManifoldManifold

	once sync.Once
	mp   kernel.MassProperties
	err  error
}

func (s *manifoldSolid) BoundingBox() (min, max [3]float64) {
	bbox := C.manifold_bounding_box(C.manifold_alloc_box(), s.ptr)
	defer C.manifold_delete_box(bbox)

	min[0] = float64(C.manifold_box_min_x(bbox))
	min[1] = float64(C.manifold_box_min_y(bbox))
	min[2] = float64(C.manifold_box_min_z(bbox))
	max[0] = float64(C.manifold_box_max_x(bbox))
	max[1] = float64(C.manifold_box_max_y(bbox))
	max[2] = float64(C.manifold_box_max_z(bbox))
	return min, max
}

// newSolid takes ownership of ptr; the finalizer frees it.
func newSolid(ptr *C.ManifoldManifold) *manifoldSolid {
	s := &manifoldSolid{ptr: ptr}
	runtime.SetFinalizer(s, func(s *manifoldSolid) {
		if s.ptr != nil {
			C.manifold_delete_manifold(s.ptr)
			s.ptr = nil
		}
	})
	return s
}

func unwrap(s kernel.Solid) *manifoldSolid {
	return s.(*manifoldSolid)
}

// ManifoldKernel implements export.Kernel on top of manifoldc.
type ManifoldKernel struct{}

// New returns a ManifoldKernel.
func New() (export.Kernel, error) {
	return &ManifoldKernel{}, nil
}

// Box creates a box centred at the origin.
func (k *ManifoldKernel) Box(x, y, z float64) kernel.Solid {
	return newSolid(C.manifold_cube(C.manifold_alloc_manifold(),
		C.double(x), C.double(y), C.double(z), C.int(1)))
}

// Cylinder creates a cylinder along Z, centred at the origin.
func (k *ManifoldKernel) Cylinder(height, radius float64, segments int) kernel.Solid {
	return newSolid(C.manifold_cylinder(C.manifold_alloc_manifold(),
		C.double(height), C.double(radius), C.double(radius),
		C.int(segments), C.int(1)))
}

// Sphere creates a sphere centred at the origin. Manifold picks the
// tessellation from its global circular defaults.
func (k *ManifoldKernel) Sphere(radius float64) kernel.Solid {
	return newSolid(C.manifold_sphere(C.manifold_alloc_manifold(), C.double(radius), C.int(0)))
}

// boolean runs op and classifies an empty or invalid result.
func (k *ManifoldKernel) boolean(name string, a, b kernel.Solid,
	op func(mem unsafe.Pointer, a, b *C.ManifoldManifold) *C.ManifoldManifold) (kernel.Solid, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("manifold: %s: %w", name, kernel.ErrNilSolid)
	}
	s := newSolid(op(unsafe.Pointer(C.manifold_alloc_manifold()), unwrap(a).ptr, unwrap(b).ptr))
	if st := C.manifold_status(s.ptr); st != C.MANIFOLD_NO_ERROR {
		return nil, fmt.Errorf("manifold: %s: status %d: %w", name, int(st), kernel.ErrNonManifold)
	}
	if C.manifold_is_empty(s.ptr) != 0 {
		return nil, fmt.Errorf("manifold: %s: %w", name, kernel.ErrEmptyResult)
	}
	return s, nil
}

// Union returns a ∪ b.
func (k *ManifoldKernel) Union(a, b kernel.Solid) (kernel.Solid, error) {
	return k.boolean("union", a, b, func(mem unsafe.Pointer, a, b *C.ManifoldManifold) *C.ManifoldManifold {
		return C.manifold_union(mem, a, b)
	})
}

// Difference returns a - b.
func (k *ManifoldKernel) Difference(a, b kernel.Solid) (kernel.Solid, error) {
	return k.boolean("difference", a, b, func(mem unsafe.Pointer, a, b *C.ManifoldManifold) *C.ManifoldManifold {
		return C.manifold_difference(mem, a, b)
	})
}

// Intersection returns a ∩ b.
func (k *ManifoldKernel) Intersection(a, b kernel.Solid) (kernel.Solid, error) {
	return k.boolean("intersection", a, b, func(mem unsafe.Pointer, a, b *C.ManifoldManifold) *C.ManifoldManifold {
		return C.manifold_intersection(mem, a, b)
	})
}

// Translate moves s by v.
func (k *ManifoldKernel) Translate(s kernel.Solid, v mgl64.Vec3) kernel.Solid {
	return newSolid(C.manifold_translate(C.manifold_alloc_manifold(), unwrap(s).ptr,
		C.double(v[0]), C.double(v[1]), C.double(v[2])))
}

// Rotate applies Euler angles in degrees, X first, then Y, then Z.
func (k *ManifoldKernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	return newSolid(C.manifold_rotate(C.manifold_alloc_manifold(), unwrap(s).ptr,
		C.double(x), C.double(y), C.double(z)))
}

// Scale scales s uniformly about the origin.
func (k *ManifoldKernel) Scale(s kernel.Solid, factor float64) kernel.Solid {
	return newSolid(C.manifold_scale(C.manifold_alloc_manifold(), unwrap(s).ptr,
		C.double(factor), C.double(factor), C.double(factor)))
}

// Transform applies the affine part of m. manifoldc takes the 3x4 matrix
// column by column, which matches mgl64's column-major layout.
func (k *ManifoldKernel) Transform(s kernel.Solid, m mgl64.Mat4) kernel.Solid {
	return newSolid(C.manifold_transform(C.manifold_alloc_manifold(), unwrap(s).ptr,
		C.double(m[0]), C.double(m[1]), C.double(m[2]),
		C.double(m[4]), C.double(m[5]), C.double(m[6]),
		C.double(m[8]), C.double(m[9]), C.double(m[10]),
		C.double(m[12]), C.double(m[13]), C.double(m[14])))
}

func (k *ManifoldKernel) properties(s kernel.Solid) (kernel.MassProperties, error) {
	if s == nil {
		return kernel.MassProperties{}, fmt.Errorf("manifold: mass properties: %w", kernel.ErrNilSolid)
	}
	ms := unwrap(s)
	ms.once.Do(func() {
		m, err := k.ToMesh(s)
		if err != nil {
			ms.err = err
			return
		}
		ms.mp, ms.err = kernel.MeshMassProperties(m)
	})
	return ms.mp, ms.err
}

// CenterOfMass returns the centroid at unit density.
func (k *ManifoldKernel) CenterOfMass(s kernel.Solid) (mgl64.Vec3, error) {
	mp, err := k.properties(s)
	return mp.Centroid, err
}

// MatrixOfInertia returns the inertia tensor about the centroid.
func (k *ManifoldKernel) MatrixOfInertia(s kernel.Solid) (mgl64.Mat3, error) {
	mp, err := k.properties(s)
	return mp.Inertia, err
}

// Mass equals Volume at unit density.
func (k *ManifoldKernel) Mass(s kernel.Solid) (float64, error) {
	return k.Volume(s)
}

// Volume returns the enclosed volume of s.
func (k *ManifoldKernel) Volume(s kernel.Solid) (float64, error) {
	mp, err := k.properties(s)
	return mp.Volume, err
}

// SaveSTL writes s as binary STL.
func (k *ManifoldKernel) SaveSTL(s kernel.Solid, path string) error {
	if s == nil {
		return fmt.Errorf("manifold: save stl: %w", kernel.ErrNilSolid)
	}
	m, err := k.ToMesh(s)
	if err != nil {
		return err
	}
	if err := export.WriteSTLFile(path, m); err != nil {
		return fmt.Errorf("manifold: save stl %s: %w", path, err)
	}
	return nil
}

// ToMesh extracts the triangle mesh. MeshGL interleaves vertex
// properties; positions come first and normals, when present, follow.
func (k *ManifoldKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	if s == nil {
		return nil, fmt.Errorf("manifold: to mesh: %w", kernel.ErrNilSolid)
	}
	meshGL := C.manifold_get_meshgl(C.manifold_alloc_meshgl(), unwrap(s).ptr)
	defer C.manifold_delete_meshgl(meshGL)

	numVert := int(C.manifold_meshgl_num_vert(meshGL))
	numTri := int(C.manifold_meshgl_num_tri(meshGL))
	if numVert == 0 || numTri == 0 {
		return &kernel.Mesh{}, nil
	}
	numProp := int(C.manifold_meshgl_num_prop(meshGL))

	props := make([]float32, numVert*numProp)
	C.manifold_meshgl_vert_properties((*C.float)(unsafe.Pointer(&props[0])), meshGL)

	indices := make([]uint32, numTri*3)
	C.manifold_meshgl_tri_verts((*C.uint32_t)(unsafe.Pointer(&indices[0])), meshGL)

	vertices := make([]float32, numVert*3)
	hasNormals := numProp >= 6
	var normals []float32
	if hasNormals {
		normals = make([]float32, numVert*3)
	}
	for i := 0; i < numVert; i++ {
		base := i * numProp
		copy(vertices[3*i:3*i+3], props[base:base+3])
		if hasNormals {
			copy(normals[3*i:3*i+3], props[base+3:base+6])
		}
	}

	m := &kernel.Mesh{Vertices: vertices, Normals: normals, Indices: indices}
	if !hasNormals {
		m.Normals = vertexNormals(m)
	}
	return m, nil
}

// vertexNormals averages the area-weighted face normals around each vertex.
func vertexNormals(m *kernel.Mesh) []float32 {
	acc := make([]mgl64.Vec3, m.VertexCount())
	for t := 0; t < m.TriangleCount(); t++ {
		a, b, c := m.Triangle(t)
		n := b.Sub(a).Cross(c.Sub(a))
		for _, i := range m.Indices[3*t : 3*t+3] {
			acc[i] = acc[i].Add(n)
		}
	}

	out := make([]float32, 3*len(acc))
	for i, n := range acc {
		if n.Len() > 1e-12 {
			n = n.Normalize()
		}
		out[3*i], out[3*i+1], out[3*i+2] = float32(n[0]), float32(n[1]), float32(n[2])
	}
	return out
}
