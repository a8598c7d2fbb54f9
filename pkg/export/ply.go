package export

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl64"
)

// WritePLY writes points as a PLY vertex element with float x, y, z
// properties, in binary little endian or ASCII form.
func WritePLY(w io.Writer, points []mgl64.Vec3, binaryFormat bool) error {
	bw := bufio.NewWriter(w)

	format := "ascii"
	if binaryFormat {
		format = "binary_little_endian"
	}
	fmt.Fprintf(bw, "ply\nformat %s 1.0\n", format)
	fmt.Fprintf(bw, "comment vertices\n")
	fmt.Fprintf(bw, "element vertex %d\n", len(points))
	fmt.Fprintf(bw, "property float x\nproperty float y\nproperty float z\n")
	fmt.Fprintf(bw, "end_header\n")

	if binaryFormat {
		var buf [12]byte
		for _, p := range points {
			for i := 0; i < 3; i++ {
				binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(float32(p[i])))
			}
			if _, err := bw.Write(buf[:]); err != nil {
				return fmt.Errorf("export: write ply: %w", err)
			}
		}
	} else {
		for _, p := range points {
			fmt.Fprintf(bw, "%g %g %g\n", float32(p[0]), float32(p[1]), float32(p[2]))
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("export: write ply: %w", err)
	}
	return nil
}

// WritePLYFile writes a binary PLY file, creating parent directories.
func WritePLYFile(path string, points []mgl64.Vec3) (err error) {
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
	return WritePLY(f, points, true)
}
