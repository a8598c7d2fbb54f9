package export

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/cadbench/pkg/kernel"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoTriangles returns a mesh in the z=0 plane: a unit right triangle at
// the origin and a right triangle with legs 3 at x in [10, 13].
func twoTriangles() *kernel.Mesh {
	return &kernel.Mesh{
		Vertices: []float32{
			0, 0, 0, 1, 0, 0, 0, 1, 0,
			10, 0, 0, 13, 0, 0, 10, 3, 0,
		},
		Indices: []uint32{0, 1, 2, 3, 4, 5},
	}
}

func TestSampleSurfaceDeterministic(t *testing.T) {
	m := twoTriangles()

	a, err := SampleSurface(m, 500, 42)
	require.NoError(t, err)
	b, err := SampleSurface(m, 500, 42)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := SampleSurface(m, 500, 43)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestSampleSurfaceOnSurface(t *testing.T) {
	points, err := SampleSurface(twoTriangles(), 1000, 7)
	require.NoError(t, err)
	require.Len(t, points, 1000)

	for _, p := range points {
		assert.Zero(t, p.Z())
		switch {
		case p.X() <= 1:
			assert.LessOrEqual(t, p.X()+p.Y(), 1+1e-9, "point %v outside small triangle", p)
		default:
			assert.GreaterOrEqual(t, p.X(), 10.0)
			assert.LessOrEqual(t, (p.X()-10)+p.Y(), 3+1e-9, "point %v outside large triangle", p)
		}
	}
}

func TestSampleSurfaceAreaWeighted(t *testing.T) {
	// Areas are 0.5 and 4.5, so a tenth of the points land on the small one.
	points, err := SampleSurface(twoTriangles(), 20000, 1)
	require.NoError(t, err)

	small := 0
	for _, p := range points {
		if p.X() <= 1 {
			small++
		}
	}
	assert.InDelta(t, 0.1, float64(small)/float64(len(points)), 0.01)
}

func TestSampleSurfaceErrors(t *testing.T) {
	_, err := SampleSurface(nil, 10, 0)
	assert.ErrorIs(t, err, ErrEmptyMesh)

	_, err = SampleSurface(&kernel.Mesh{}, 10, 0)
	assert.ErrorIs(t, err, ErrEmptyMesh)

	degenerate := &kernel.Mesh{Vertices: []float32{0, 0, 0, 1, 1, 1, 2, 2, 2}, Indices: []uint32{0, 1, 2}}
	_, err = SampleSurface(degenerate, 10, 0)
	assert.ErrorIs(t, err, ErrEmptyMesh)

	_, err = SampleSurface(twoTriangles(), -1, 0)
	assert.Error(t, err)
}

func TestWritePLYASCII(t *testing.T) {
	var buf bytes.Buffer
	points := []mgl64.Vec3{{1, 2, 3}, {-0.5, 0, 4.25}}
	require.NoError(t, WritePLY(&buf, points, false))

	want := strings.Join([]string{
		"ply",
		"format ascii 1.0",
		"comment vertices",
		"element vertex 2",
		"property float x",
		"property float y",
		"property float z",
		"end_header",
		"1 2 3",
		"-0.5 0 4.25",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestWritePLYBinary(t *testing.T) {
	var buf bytes.Buffer
	points := []mgl64.Vec3{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}
	require.NoError(t, WritePLY(&buf, points, true))

	out := buf.Bytes()
	header := "end_header\n"
	idx := bytes.Index(out, []byte(header))
	require.GreaterOrEqual(t, idx, 0)
	assert.Contains(t, string(out[:idx]), "format binary_little_endian 1.0")
	assert.Contains(t, string(out[:idx]), "element vertex 3")

	body := out[idx+len(header):]
	require.Len(t, body, 3*12)
	for i, p := range points {
		for j := 0; j < 3; j++ {
			bits := binary.LittleEndian.Uint32(body[12*i+4*j:])
			assert.Equal(t, float32(p[j]), math.Float32frombits(bits))
		}
	}
}

func TestWritePLYFileCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model_point_cloud_0", "7.ply")
	require.NoError(t, WritePLYFile(path, []mgl64.Vec3{{1, 1, 1}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("ply\n")))
}

type recordingWriter struct {
	paths []string
}

func (r *recordingWriter) SaveSTL(s kernel.Solid, path string) error {
	r.paths = append(r.paths, path)
	return nil
}

func TestSaveSTLCreatesDirectories(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "model_stl")
	path := filepath.Join(dir, "3.stl")
	w := &recordingWriter{}

	require.NoError(t, SaveSTL(w, nil, path))
	assert.Equal(t, []string{path}, w.paths)
	assert.DirExists(t, dir)
}

func TestWriteSTL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSTL(&buf, twoTriangles()))

	out := buf.Bytes()
	require.Len(t, out, 80+4+2*50)
	assert.True(t, bytes.HasPrefix(out, []byte("cadbench")))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(out[80:]))

	f32 := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(out[off:]))
	}
	// First facet: normal +z, then the three corners.
	facet := 84
	assert.Equal(t, []float32{0, 0, 1}, []float32{f32(facet), f32(facet + 4), f32(facet + 8)})
	assert.Equal(t, []float32{1, 0, 0}, []float32{f32(facet + 24), f32(facet + 28), f32(facet + 32)})
	// Second facet starts with its normal, and its first corner is (10, 0, 0).
	facet += 50
	assert.Equal(t, float32(1), f32(facet+8))
	assert.Equal(t, float32(10), f32(facet+12))
}

func TestWriteSTLEmpty(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, WriteSTL(&buf, &kernel.Mesh{}), ErrEmptyMesh)
	assert.ErrorIs(t, WriteSTL(&buf, nil), ErrEmptyMesh)
	assert.Zero(t, buf.Len())
}

func TestWriteSTLFileCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aligned_stl", "4.stl")
	require.NoError(t, WriteSTLFile(path, twoTriangles()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(80+4+2*50), info.Size())
}
