package export

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/chazu/cadbench/pkg/kernel"
)

// STLWriter is implemented by kernels that can write a solid as STL.
type STLWriter interface {
	SaveSTL(s kernel.Solid, path string) error
}

// SaveSTL writes s to path with w, creating parent directories.
func SaveSTL(w STLWriter, s kernel.Solid, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return w.SaveSTL(s, path)
}

// Kernel is a geometry kernel that can also write STL files.
type Kernel interface {
	kernel.Kernel
	STLWriter
}

// WriteSTL writes m as binary STL. Facet normals are taken from the
// winding order; degenerate triangles get a zero normal.
func WriteSTL(w io.Writer, m *kernel.Mesh) error {
	if m == nil || m.TriangleCount() == 0 {
		return ErrEmptyMesh
	}
	bw := bufio.NewWriter(w)

	var header [80]byte
	copy(header[:], "cadbench")
	bw.Write(header[:])
	binary.Write(bw, binary.LittleEndian, uint32(m.TriangleCount()))

	var rec [50]byte
	for t := 0; t < m.TriangleCount(); t++ {
		a, b, c := m.Triangle(t)
		n := b.Sub(a).Cross(c.Sub(a))
		if l := n.Len(); l > 0 {
			n = n.Mul(1 / l)
		}
		off := 0
		for _, v := range [4][3]float64{n, a, b, c} {
			for i := 0; i < 3; i++ {
				binary.LittleEndian.PutUint32(rec[off:], math.Float32bits(float32(v[i])))
				off += 4
			}
		}
		if _, err := bw.Write(rec[:]); err != nil {
			return fmt.Errorf("export: write stl: %w", err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("export: write stl: %w", err)
	}
	return nil
}

// WriteSTLFile writes m as a binary STL file, creating parent directories.
func WriteSTLFile(path string, m *kernel.Mesh) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("export: close %s: %w", path, cerr)
		}
	}()
	return WriteSTL(f, m)
}
