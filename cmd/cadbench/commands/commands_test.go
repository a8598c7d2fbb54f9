package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/cadbench/pkg/config"
)

// run executes the CLI with args and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// testConfig writes a config with a coarse kernel rooted in dir.
func testConfig(t *testing.T, dir string) string {
	t.Helper()
	cfg := config.Default()
	cfg.ResultsDir = filepath.Join(dir, "results")
	cfg.DatasetDir = filepath.Join(dir, "data")
	cfg.GroundTruthDir = filepath.Join(dir, "gt")
	cfg.Workers = 2
	cfg.PointCloudPoints = 20
	cfg.Kernel.Resolution = 24
	cfg.Kernel.MeshCells = 24
	cfg.Log.Level = "error"
	path := filepath.Join(dir, "cadbench.yaml")
	require.NoError(t, config.Save(path, cfg))
	return path
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cadbench.yaml")

	out, err := run(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	_, err = run(t, "config", "init", path)
	assert.Error(t, err, "refuses to overwrite")

	_, err = run(t, "config", "init", "--force", path)
	assert.NoError(t, err)
}

func TestEvalCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := testConfig(t, dir)
	script := filepath.Join(dir, "part.lisp")
	writeFile(t, script, "(box 2 3 4)")
	stl := filepath.Join(dir, "out", "part.stl")

	out, err := run(t, "--config", cfgPath, "eval", script, "--stl", stl)
	require.NoError(t, err)
	assert.Contains(t, out, "Nodes: 1")
	assert.Contains(t, out, "Volume: ")
	assert.FileExists(t, stl)
}

func TestEvalCommandScriptError(t *testing.T) {
	dir := t.TempDir()
	cfgPath := testConfig(t, dir)
	script := filepath.Join(dir, "bad.lisp")
	writeFile(t, script, "(box 0 1 1)")

	_, err := run(t, "--config", cfgPath, "eval", script)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script error")
}

func TestAlignCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := testConfig(t, dir)
	src := filepath.Join(dir, "src.lisp")
	tgt := filepath.Join(dir, "tgt.lisp")
	writeFile(t, src, "(translate (rotate (box 4 2 1) (vec3 0 0 90)) 5 5 5)")
	writeFile(t, tgt, "(box 4 2 1)")

	out, err := run(t, "--config", cfgPath, "align", src, tgt, "--out", filepath.Join(dir, "aligned.stl"))
	require.NoError(t, err)
	assert.Contains(t, out, "IoU: ")
	assert.Contains(t, out, "Best candidate:")
	assert.Equal(t, 4, strings.Count(out, "candidate "))
	assert.FileExists(t, filepath.Join(dir, "aligned.stl"))
}

func TestGenerateAndScore(t *testing.T) {
	dir := t.TempDir()
	cfgPath := testConfig(t, dir)
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	layout := cfg.Run("org/model", "tiny")
	writeFile(t, layout.Merge(), strings.Join([]string{
		`{"text": "(box 4 2 1)", "question_id": 1}`,
		`{"text": "(box 4 2", "question_id": 2}`,
	}, "\n"))
	writeFile(t, cfg.TestSetPath("tiny"), strings.Join([]string{
		`{"question_id": 1, "image": "part_a_0.png"}`,
		`{"question_id": 2, "image": "part_b_0.png"}`,
	}, "\n"))
	writeFile(t, cfg.GroundTruthPath("part_a"), "(rotate (box 4 2 1) 0 90 0)")
	writeFile(t, cfg.GroundTruthPath("part_b"), "(sphere 1)")
	metricsFile := filepath.Join(dir, "metrics.prom")

	out, err := run(t, "--config", cfgPath, "generate", "--model", "org/model", "--test-set", "tiny", "--pc-reps", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Valid code: 50.00%")
	assert.FileExists(t, layout.ResultsCSV())
	assert.FileExists(t, layout.GenResults())
	assert.FileExists(t, filepath.Join(layout.PointCloudDir(0), "1.ply"))

	out, err = run(t, "--config", cfgPath, "score", "--model", "org/model", "--test-set", "tiny",
		"--metrics-file", metricsFile)
	require.NoError(t, err)
	assert.Contains(t, out, "1 valid, 1 undefined")

	summary, err := os.ReadFile(layout.IoUResults())
	require.NoError(t, err)
	assert.Contains(t, string(summary), "Model: model\n")
	assert.Contains(t, string(summary), "Number of valid cases: 1\n")
	assert.FileExists(t, metricsFile)
}

func TestGenerateRequiresFlags(t *testing.T) {
	_, err := run(t, "generate")
	assert.Error(t, err)
}
