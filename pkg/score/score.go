// Package score pairs generated parts with their ground truth, aligns
// each pair and aggregates the IoU over a run.
//
// A case whose IoU cannot be defined (no ground-truth mapping, a script
// that fails, a degenerate solid, or an alignment that outlives its
// deadline) is counted as undefined and left out of the mean.
package score

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chazu/cadbench/pkg/align"
	"github.com/chazu/cadbench/pkg/build"
	"github.com/chazu/cadbench/pkg/config"
	"github.com/chazu/cadbench/pkg/dataset"
	"github.com/chazu/cadbench/pkg/engine"
	"github.com/chazu/cadbench/pkg/export"
	"github.com/chazu/cadbench/pkg/kernel"
	"github.com/chazu/cadbench/pkg/metrics"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const scriptExt = ".lisp"

var (
	// ErrNoGroundTruth is recorded when a question has no test set entry.
	ErrNoGroundTruth = errors.New("score: no ground truth for question")
	// ErrCaseTimeout is recorded when a case exceeds its deadline.
	ErrCaseTimeout = errors.New("score: case timed out")
	// ErrScript is recorded when a generated or ground-truth script fails.
	ErrScript = errors.New("score: script failed")
)

// Options configures a Driver.
type Options struct {
	Model          string
	TestSet        string
	Layout         config.Layout
	GroundTruthDir string
	Workers        int
	CaseTimeout    time.Duration
	EvalTimeout    time.Duration
	ExportAligned  bool
}

// CaseResult is the outcome of one generated part. IoU is nil when the
// case is undefined.
type CaseResult struct {
	ID            string
	GroundTruthID string
	IoU           *float64
	Err           error
	Duration      time.Duration
}

// Defined reports whether the case produced an IoU.
func (c CaseResult) Defined() bool {
	return c.IoU != nil
}

// Driver scores a run directory.
type Driver struct {
	opts    Options
	k       export.Kernel
	ts      *dataset.TestSet
	eng     *engine.Engine
	aligner *align.Aligner
	log     *slog.Logger
	metrics *metrics.Recorder
	runID   string

	// slots bounds running alignments to Workers, including ones whose
	// case already timed out.
	slots chan struct{}
}

// New returns a Driver. logger and rec may be nil.
func New(k export.Kernel, ts *dataset.TestSet, opts Options, logger *slog.Logger, rec *metrics.Recorder) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	runID := uuid.NewString()
	logger = logger.With("run", runID)
	return &Driver{
		opts:    opts,
		k:       k,
		ts:      ts,
		eng:     engine.NewEngine(engine.WithTimeout(opts.EvalTimeout), engine.WithLogger(logger)),
		aligner: align.New(k, logger),
		log:     logger,
		metrics: rec,
		runID:   runID,
		slots:   make(chan struct{}, opts.Workers),
	}
}

// RunID identifies this driver's run in logs and summaries.
func (d *Driver) RunID() string {
	return d.runID
}

// Run scores every script in the run's code directory, in file name
// order. It fails only when the code directory cannot be listed or ctx
// ends.
func (d *Driver) Run(ctx context.Context) ([]CaseResult, Summary, error) {
	paths, err := filepath.Glob(filepath.Join(d.opts.Layout.CodeDir(), "*"+scriptExt))
	if err != nil {
		return nil, Summary{}, fmt.Errorf("score: %w", err)
	}
	if _, err := os.Stat(d.opts.Layout.CodeDir()); err != nil {
		return nil, Summary{}, fmt.Errorf("score: %w", err)
	}
	sort.Strings(paths)
	d.log.Info("scoring run", "model", d.opts.Model, "test_set", d.opts.TestSet, "cases", len(paths))

	results := make([]CaseResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = d.Case(gctx, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Summary{}, fmt.Errorf("score: %w", err)
	}

	s := Summarize(results)
	s.RunID = d.runID
	s.Model = config.ModelName(d.opts.Model)
	s.TestSet = d.opts.TestSet
	if d.metrics != nil {
		d.metrics.MarkRunFinished(time.Now())
	}
	return results, s, nil
}

// Case scores one generated script against its ground truth.
func (d *Driver) Case(ctx context.Context, codePath string) (res CaseResult) {
	res.ID = strings.TrimSuffix(filepath.Base(codePath), scriptExt)
	log := d.log.With("id", res.ID)
	start := time.Now()

	defer func() {
		res.Duration = time.Since(start)
		outcome := metrics.OutcomeValid
		var iou float64
		switch {
		case res.Defined():
			iou = *res.IoU
			log.Debug("case scored", "iou", iou, "elapsed", res.Duration)
		case errors.Is(res.Err, ErrCaseTimeout):
			outcome = metrics.OutcomeTimeout
			log.Warn("case undefined", "error", res.Err)
		case errors.Is(res.Err, ErrScript):
			outcome = metrics.OutcomeFailed
			log.Warn("case undefined", "error", res.Err)
		default:
			outcome = metrics.OutcomeUndefined
			log.Warn("case undefined", "error", res.Err)
		}
		if d.metrics != nil {
			d.metrics.ObserveCase(d.opts.Model, outcome, iou, res.Duration)
		}
	}()

	qid, err := strconv.Atoi(res.ID)
	if err != nil {
		res.Err = fmt.Errorf("%w: %q is not a question id", ErrNoGroundTruth, res.ID)
		return res
	}
	gtID, ok := d.ts.OriginalID(qid)
	if !ok {
		res.Err = fmt.Errorf("%w %d", ErrNoGroundTruth, qid)
		return res
	}
	res.GroundTruthID = gtID

	ctx, cancel := context.WithTimeout(ctx, d.opts.caseTimeout())
	defer cancel()

	source, err := d.solid(ctx, codePath)
	if err != nil {
		res.Err = err
		return res
	}
	target, err := d.solid(ctx, filepath.Join(d.opts.GroundTruthDir, gtID+scriptExt))
	if err != nil {
		res.Err = err
		return res
	}

	ar, err := d.align(ctx, source, target)
	if err != nil {
		res.Err = err
		return res
	}
	iou := ar.IoU
	res.IoU = &iou

	if d.opts.ExportAligned && ar.Found() {
		path := filepath.Join(d.opts.Layout.AlignedDir(), res.ID+".stl")
		if err := export.SaveSTL(d.k, ar.Aligned, path); err != nil {
			log.Warn("aligned export failed", "error", err)
		}
	}
	return res
}

func (o Options) caseTimeout() time.Duration {
	if o.CaseTimeout > 0 {
		return o.CaseTimeout
	}
	return 2 * time.Minute
}

// solid evaluates the script at path and builds its output.
func (d *Driver) solid(ctx context.Context, path string) (kernel.Solid, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScript, err)
	}
	g, evalErrs, err := d.eng.Evaluate(ctx, string(src))
	if err != nil {
		if errors.Is(err, engine.ErrTimeout) {
			return nil, fmt.Errorf("%w: %s: %w", ErrCaseTimeout, filepath.Base(path), err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrScript, filepath.Base(path), err)
	}
	if len(evalErrs) > 0 {
		return nil, fmt.Errorf("%w: %s: %s", ErrScript, filepath.Base(path), evalErrs[0].Error())
	}
	s, err := build.Solid(g, d.k)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrScript, filepath.Base(path), err)
	}
	return s, nil
}

type alignOutcome struct {
	res *align.Result
	err error
}

// align runs the aligner in a goroutine bounded by ctx. The aligner
// cannot be interrupted; on timeout its result is abandoned, but the
// goroutine keeps its slot until it returns so abandoned work still
// counts against Workers.
func (d *Driver) align(ctx context.Context, source, target kernel.Solid) (*align.Result, error) {
	select {
	case d.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, caseErr(ctx)
	}

	ch := make(chan alignOutcome, 1)
	go func() {
		defer func() { <-d.slots }()
		defer func() {
			if r := recover(); r != nil {
				ch <- alignOutcome{err: fmt.Errorf("score: align panic: %v", r)}
			}
		}()
		res, err := d.aligner.Align(source, target)
		ch <- alignOutcome{res: res, err: err}
	}()

	select {
	case out := <-ch:
		return out.res, out.err
	case <-ctx.Done():
		return nil, caseErr(ctx)
	}
}

func caseErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrCaseTimeout, ctx.Err())
	}
	return ctx.Err()
}
