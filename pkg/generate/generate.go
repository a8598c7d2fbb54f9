// Package generate turns model outputs into artifacts: each generated
// script is saved, evaluated, built into a solid, written as STL, and
// sampled into point clouds. Every stage that succeeds is recorded so
// valid-code, valid-STL and valid-point-cloud rates can be reported.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chazu/cadbench/pkg/build"
	"github.com/chazu/cadbench/pkg/config"
	"github.com/chazu/cadbench/pkg/dataset"
	"github.com/chazu/cadbench/pkg/engine"
	"github.com/chazu/cadbench/pkg/export"
	"github.com/chazu/cadbench/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// BaseSeed seeds point cloud repetition 0; repetition i uses BaseSeed+i.
const BaseSeed = 42

// ErrInvalidScript is recorded when a script fails to evaluate.
var ErrInvalidScript = errors.New("generate: invalid script")

// Options configures a Pipeline.
type Options struct {
	Model            string
	Layout           config.Layout
	Workers          int
	PointCloudReps   int
	PointCloudPoints int
	EvalTimeout      time.Duration
}

// Result is the outcome for one record.
type Result struct {
	ID              string
	ValidCode       bool
	ValidSTL        bool
	ValidPointCloud bool
	Err             error
}

// stage names the furthest step a result reached.
func (r Result) stage() string {
	switch {
	case r.ValidPointCloud:
		return "point_cloud"
	case r.ValidSTL:
		return "stl"
	case r.ValidCode:
		return "code"
	}
	return "none"
}

// Pipeline runs records through evaluation and export.
type Pipeline struct {
	opts    Options
	k       export.Kernel
	eng     *engine.Engine
	log     *slog.Logger
	metrics *metrics.Recorder
}

// New returns a Pipeline. logger and rec may be nil.
func New(k export.Kernel, opts Options, logger *slog.Logger, rec *metrics.Recorder) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.PointCloudPoints < 1 {
		opts.PointCloudPoints = export.DefaultPoints
	}
	return &Pipeline{
		opts:    opts,
		k:       k,
		eng:     engine.NewEngine(engine.WithTimeout(opts.EvalTimeout), engine.WithLogger(logger)),
		log:     logger,
		metrics: rec,
	}
}

// Run processes records on a bounded worker pool. Results are returned in
// input order. Per-record failures are recorded on the Result; Run itself
// fails only when the output directories cannot be created or ctx ends.
func (p *Pipeline) Run(ctx context.Context, records []dataset.Record) ([]Result, error) {
	dirs := []string{p.opts.Layout.CodeDir(), p.opts.Layout.STLDir()}
	for i := 0; i < p.opts.PointCloudReps; i++ {
		dirs = append(dirs, p.opts.Layout.PointCloudDir(i))
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("generate: %w", err)
		}
	}

	results := make([]Result, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, rec := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.Process(gctx, rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	return results, nil
}

// Process handles a single record.
func (p *Pipeline) Process(ctx context.Context, rec dataset.Record) (res Result) {
	res.ID = rec.ID()
	log := p.log.With("id", res.ID)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("generate: panic: %v", r)
		}
		if res.Err != nil {
			log.Warn("record failed", "stage", res.stage(), "error", res.Err)
		} else {
			log.Debug("record done", "elapsed", time.Since(start))
		}
		if p.metrics != nil {
			p.metrics.ObserveGenerated(p.opts.Model, res.stage())
		}
	}()

	code := dataset.StripCodeFences(rec.Text)
	codePath := p.opts.Layout.CodePath(res.ID)
	if err := os.WriteFile(codePath, []byte(code), 0o644); err != nil {
		res.Err = fmt.Errorf("generate: %w", err)
		return res
	}

	g, evalErrs, err := p.eng.Evaluate(ctx, code)
	if err != nil {
		res.Err = fmt.Errorf("generate: %w", err)
		return res
	}
	if len(evalErrs) > 0 {
		res.Err = fmt.Errorf("%w: %s", ErrInvalidScript, evalErrs[0].Error())
		return res
	}
	res.ValidCode = true

	solid, err := build.Solid(g, p.k)
	if err != nil {
		res.Err = err
		return res
	}
	stlPath := p.opts.Layout.STLPath(res.ID)
	if err := export.SaveSTL(p.k, solid, stlPath); err != nil {
		res.Err = err
		return res
	}
	if _, err := os.Stat(stlPath); err != nil {
		res.Err = fmt.Errorf("generate: stl not written: %w", err)
		return res
	}
	res.ValidSTL = true

	if p.opts.PointCloudReps == 0 {
		return res
	}
	mesh, err := p.k.ToMesh(solid)
	if err != nil {
		res.Err = err
		return res
	}
	for i := 0; i < p.opts.PointCloudReps; i++ {
		points, err := export.SampleSurface(mesh, p.opts.PointCloudPoints, uint64(BaseSeed+i))
		if err == nil {
			err = export.WritePLYFile(filepath.Join(p.opts.Layout.PointCloudDir(i), res.ID+".ply"), points)
		}
		if err != nil {
			log.Warn("point cloud failed", "rep", i, "error", err)
			continue
		}
		res.ValidPointCloud = true
	}
	return res
}
