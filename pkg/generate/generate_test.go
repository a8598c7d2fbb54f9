package generate

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/cadbench/pkg/build"
	"github.com/chazu/cadbench/pkg/config"
	"github.com/chazu/cadbench/pkg/dataset"
	"github.com/chazu/cadbench/pkg/kernel/sdfx"
	"github.com/chazu/cadbench/pkg/logging"
	"github.com/chazu/cadbench/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipeline(t *testing.T, reps int) (*Pipeline, config.Layout) {
	t.Helper()
	layout := config.Layout{Dir: t.TempDir()}
	k := sdfx.NewWithOptions(sdfx.Options{Resolution: 24, MeshCells: 24})
	p := New(k, Options{
		Model:            "test-model",
		Layout:           layout,
		Workers:          2,
		PointCloudReps:   reps,
		PointCloudPoints: 50,
	}, logging.Discard(), metrics.New())
	return p, layout
}

func TestRunRecords(t *testing.T) {
	p, layout := newPipeline(t, 2)
	records := []dataset.Record{
		{QuestionID: 1, Text: "```lisp\n(difference (box 10 10 2) (cylinder 4 2))\n```"},
		{QuestionID: 2, Text: "(box 1 2"},
		{QuestionID: 3, Text: ""},
		{QuestionID: 4, Text: "(sphere 3)"},
	}

	results, err := p.Run(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, results, 4)

	ids := []string{results[0].ID, results[1].ID, results[2].ID, results[3].ID}
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids, "results keep input order")

	ok := results[0]
	assert.True(t, ok.ValidCode)
	assert.True(t, ok.ValidSTL)
	assert.True(t, ok.ValidPointCloud)
	assert.NoError(t, ok.Err)
	assert.FileExists(t, layout.STLPath("1"))
	assert.FileExists(t, filepath.Join(layout.PointCloudDir(0), "1.ply"))
	assert.FileExists(t, filepath.Join(layout.PointCloudDir(1), "1.ply"))

	code, err := os.ReadFile(layout.CodePath("1"))
	require.NoError(t, err)
	assert.NotContains(t, string(code), "```", "fences are stripped before saving")

	bad := results[1]
	assert.False(t, bad.ValidCode)
	assert.ErrorIs(t, bad.Err, ErrInvalidScript)
	assert.FileExists(t, layout.CodePath("2"), "invalid code is still saved")

	empty := results[2]
	assert.True(t, empty.ValidCode)
	assert.False(t, empty.ValidSTL)
	assert.ErrorIs(t, empty.Err, build.ErrNoOutput)

	assert.True(t, results[3].ValidPointCloud)
}

func TestPointCloudsDependOnSeed(t *testing.T) {
	p, layout := newPipeline(t, 2)
	_, err := p.Run(context.Background(), []dataset.Record{{QuestionID: 9, Text: "(box 4 4 4)"}})
	require.NoError(t, err)

	a, err := os.ReadFile(filepath.Join(layout.PointCloudDir(0), "9.ply"))
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(layout.PointCloudDir(1), "9.ply"))
	require.NoError(t, err)
	assert.Equal(t, len(a), len(b))
	assert.NotEqual(t, a, b)
}

func TestRunNoPointClouds(t *testing.T) {
	p, layout := newPipeline(t, 0)
	results, err := p.Run(context.Background(), []dataset.Record{{QuestionID: 5, Text: "(box 1 1 1)"}})
	require.NoError(t, err)
	assert.True(t, results[0].ValidSTL)
	assert.False(t, results[0].ValidPointCloud)
	assert.NoDirExists(t, layout.PointCloudDir(0))
}

func TestRunCancelled(t *testing.T) {
	p, _ := newPipeline(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, []dataset.Record{{QuestionID: 1, Text: "(box 1 1 1)"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSummarize(t *testing.T) {
	results := []Result{
		{ID: "1", ValidCode: true, ValidSTL: true, ValidPointCloud: true},
		{ID: "2", ValidCode: true, ValidSTL: true},
		{ID: "3", ValidCode: true},
		{ID: "4"},
	}
	s := Summarize(results)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 0.75, s.CodeRate)
	assert.Equal(t, 0.5, s.STLRate)
	assert.Equal(t, 0.25, s.PointCloudRate)

	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestWriteReports(t *testing.T) {
	dir := t.TempDir()
	results := []Result{
		{ID: "1", ValidCode: true, ValidSTL: true},
		{ID: "2", Err: errors.New("boom, again")},
	}

	summaryPath := filepath.Join(dir, "cad_gen_results.txt")
	require.NoError(t, WriteSummary(summaryPath, Summarize(results)))
	text, err := os.ReadFile(summaryPath)
	require.NoError(t, err)
	assert.Equal(t, "Valid code: 0.5\nValid stl: 0.5\nValid point cloud: 0\n", string(text))

	csvPath := filepath.Join(dir, "results.csv")
	require.NoError(t, WriteResultsCSV(csvPath, results))
	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "q_ids", rows[0][0])
	assert.Equal(t, []string{"1", "true", "true", "false", ""}, rows[1])
	assert.Equal(t, "boom, again", rows[2][4])
}
