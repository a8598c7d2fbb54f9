// Package config holds cadbench settings and the on-disk layout of a
// benchmark run.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/chazu/cadbench/pkg/kernel/sdfx"
	"gopkg.in/yaml.v3"
)

// Config is the full cadbench configuration.
type Config struct {
	// ResultsDir holds one directory per model and test set.
	ResultsDir string `yaml:"results_dir"`
	// DatasetDir holds test sets as <name>.jsonl.
	DatasetDir string `yaml:"dataset_dir"`
	// GroundTruthDir holds ground-truth scripts as <part id>.lisp.
	GroundTruthDir string `yaml:"ground_truth_dir"`

	Workers          int           `yaml:"workers"`
	PointCloudReps   int           `yaml:"point_cloud_reps"`
	PointCloudPoints int           `yaml:"point_cloud_points"`
	EvalTimeout      time.Duration `yaml:"eval_timeout"`
	CaseTimeout      time.Duration `yaml:"case_timeout"`
	ExportAligned    bool          `yaml:"export_aligned"`
	MetricsFile      string        `yaml:"metrics_file,omitempty"`

	// KernelBackend is "sdfx" or "manifold". The manifold backend needs a
	// binary built with -tags=manifold.
	KernelBackend string       `yaml:"kernel_backend"`
	Kernel        sdfx.Options `yaml:"kernel"`
	Log           LogConfig    `yaml:"log"`
}

// Kernel backends.
const (
	BackendSdfx     = "sdfx"
	BackendManifold = "manifold"
)

// LogConfig selects log level and format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ResultsDir:       filepath.Join("inference", "inference_results"),
		DatasetDir:       "inference",
		GroundTruthDir:   filepath.Join("inference", "ground_truth"),
		Workers:          min(8, runtime.NumCPU()),
		PointCloudReps:   1,
		PointCloudPoints: 2000,
		EvalTimeout:      5 * time.Second,
		CaseTimeout:      2 * time.Minute,
		KernelBackend:    BackendSdfx,
		Kernel: sdfx.Options{
			Resolution: sdfx.DefaultResolution,
			MeshCells:  sdfx.DefaultMeshCells,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at path over the defaults. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.ResultsDir == "" {
		errs = append(errs, errors.New("results_dir must be set"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.PointCloudReps < 0 {
		errs = append(errs, fmt.Errorf("point_cloud_reps must not be negative, got %d", c.PointCloudReps))
	}
	if c.PointCloudPoints < 1 {
		errs = append(errs, fmt.Errorf("point_cloud_points must be at least 1, got %d", c.PointCloudPoints))
	}
	if c.EvalTimeout <= 0 {
		errs = append(errs, fmt.Errorf("eval_timeout must be positive, got %s", c.EvalTimeout))
	}
	if c.CaseTimeout <= 0 {
		errs = append(errs, fmt.Errorf("case_timeout must be positive, got %s", c.CaseTimeout))
	}
	switch c.KernelBackend {
	case BackendSdfx, BackendManifold:
	default:
		errs = append(errs, fmt.Errorf("kernel_backend must be %q or %q, got %q", BackendSdfx, BackendManifold, c.KernelBackend))
	}
	if c.Kernel.Resolution < 0 || c.Kernel.MeshCells < 0 {
		errs = append(errs, errors.New("kernel resolution and mesh_cells must not be negative"))
	}
	return errors.Join(errs...)
}

// ModelName reduces a model path such as "org/CAD-Coder" to its last
// segment.
func ModelName(model string) string {
	model = strings.TrimRight(model, "/")
	return model[strings.LastIndex(model, "/")+1:]
}

// TestSetPath returns the JSONL file of a test set.
func (c Config) TestSetPath(testSet string) string {
	return filepath.Join(c.DatasetDir, testSet+".jsonl")
}

// GroundTruthPath returns the script of a ground-truth part.
func (c Config) GroundTruthPath(partID string) string {
	return filepath.Join(c.GroundTruthDir, partID+".lisp")
}

// Run returns the directory layout for one model on one test set.
func (c Config) Run(model, testSet string) Layout {
	return Layout{Dir: filepath.Join(c.ResultsDir, ModelName(model), testSet)}
}

// Layout names the files of a run directory.
type Layout struct {
	Dir string
}

func (l Layout) Merge() string             { return filepath.Join(l.Dir, "merge.jsonl") }
func (l Layout) CodeDir() string           { return filepath.Join(l.Dir, "model_code") }
func (l Layout) STLDir() string            { return filepath.Join(l.Dir, "model_stl") }
func (l Layout) AlignedDir() string        { return filepath.Join(l.Dir, "aligned_stl") }
func (l Layout) ResultsCSV() string        { return filepath.Join(l.Dir, "results.csv") }
func (l Layout) GenResults() string        { return filepath.Join(l.Dir, "cad_gen_results.txt") }
func (l Layout) IoUResults() string        { return filepath.Join(l.Dir, "cad_iou_results.txt") }
func (l Layout) CodePath(id string) string { return filepath.Join(l.CodeDir(), id+".lisp") }
func (l Layout) STLPath(id string) string  { return filepath.Join(l.STLDir(), id+".stl") }

// PointCloudDir returns the directory of point cloud repetition i.
func (l Layout) PointCloudDir(i int) string {
	return filepath.Join(l.Dir, fmt.Sprintf("model_point_cloud_%d", i))
}
