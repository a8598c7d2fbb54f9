// Package align registers a source solid onto a target solid.
//
// Both solids are centred on their centroids and scaled by a radius
// derived from their principal moments of inertia. A small fixed set of
// orientations built from the two inertia eigenbases is then scored by
// volumetric intersection over union, and the best one is mapped into the
// target's own size and position.
//
// The four orientations are a reduced search, not the full cube symmetry
// group. Shapes whose best fit needs a sign or axis pattern outside the
// four can score below their true overlap.
package align

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/chazu/cadbench/pkg/kernel"
	"github.com/go-gl/mathgl/mgl64"
)

var (
	// ErrDegenerateInput is returned when a solid has no usable volume or
	// inertia, so it cannot be normalized.
	ErrDegenerateInput = errors.New("align: degenerate input solid")
	// ErrUndefinedOverlap marks a candidate whose intersection or union
	// could not be measured. It is recorded on the candidate and scored as
	// zero; Align never returns it.
	ErrUndefinedOverlap = errors.New("align: undefined overlap")
)

// Candidate is one scored orientation.
type Candidate struct {
	Index    int
	Rotation mgl64.Mat3
	IoU      float64
	// Err is non-nil exactly when IoU could not be computed.
	Err error
}

// Defined reports whether the candidate's IoU was computed.
func (c Candidate) Defined() bool {
	return c.Err == nil
}

// Result is the outcome of one alignment.
type Result struct {
	// Aligned is the source mapped into the target's frame, or nil when no
	// candidate overlapped the target.
	Aligned kernel.Solid
	IoU     float64

	SourceCentroid mgl64.Vec3
	TargetCentroid mgl64.Vec3

	// Best is the winning candidate index, -1 when none.
	Best       int
	Pose       mgl64.Mat4
	Candidates [NumCandidates]Candidate
	Source     Frame
	Target     Frame
}

// Found reports whether some candidate produced a positive overlap.
func (r *Result) Found() bool {
	return r.Best >= 0
}

// Aligner scores orientations using a geometry kernel. It holds no
// per-call state and is safe for concurrent use when the kernel is.
type Aligner struct {
	k   kernel.Kernel
	log *slog.Logger
}

// New returns an Aligner backed by k. A nil logger uses slog.Default().
func New(k kernel.Kernel, logger *slog.Logger) *Aligner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aligner{k: k, log: logger}
}

// Align finds the best of the candidate orientations of source onto
// target. Per-candidate geometry failures score zero and are recorded on
// Result.Candidates; the only error returned is ErrDegenerateInput.
func (a *Aligner) Align(source, target kernel.Solid) (*Result, error) {
	if source == nil || target == nil {
		return nil, fmt.Errorf("%w: %w", ErrDegenerateInput, kernel.ErrNilSolid)
	}
	fs, err := NewFrame(a.k, source)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	ft, err := NewFrame(a.k, target)
	if err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}

	srcN := a.normalize(source, fs)
	tgtN := a.normalize(target, ft)

	res := &Result{
		IoU:            0,
		SourceCentroid: fs.Centroid,
		TargetCentroid: ft.Centroid,
		Best:           -1,
		Pose:           mgl64.Ident4(),
		Source:         fs,
		Target:         ft,
	}

	for i, r := range CandidateRotations(ft, fs) {
		c := Candidate{Index: i, Rotation: r}
		c.IoU, c.Err = a.score(a.k.Transform(srcN, Pose(r)), tgtN)
		if c.Err != nil {
			a.log.Debug("candidate overlap undefined", "candidate", i, "error", c.Err)
		} else {
			a.log.Debug("candidate scored", "candidate", i, "iou", c.IoU)
		}
		res.Candidates[i] = c

		if c.IoU > res.IoU {
			res.IoU = c.IoU
			res.Best = i
		}
	}

	if !res.Found() {
		return res, nil
	}

	res.Pose = Pose(res.Candidates[res.Best].Rotation)
	aligned := a.k.Transform(srcN, res.Pose)
	aligned = a.k.Scale(aligned, ft.Scale)
	res.Aligned = a.k.Translate(aligned, ft.Centroid)
	return res, nil
}

// normalize centres s on its centroid and divides out its inertia scale.
func (a *Aligner) normalize(s kernel.Solid, f Frame) kernel.Solid {
	return a.k.Scale(a.k.Translate(s, f.Centroid.Mul(-1)), 1/f.Scale)
}

// score returns the volumetric IoU of two solids.
func (a *Aligner) score(aligned, target kernel.Solid) (float64, error) {
	inter, err := a.k.Intersection(aligned, target)
	if err != nil {
		return 0, fmt.Errorf("%w: intersection: %w", ErrUndefinedOverlap, err)
	}
	union, err := a.k.Union(aligned, target)
	if err != nil {
		return 0, fmt.Errorf("%w: union: %w", ErrUndefinedOverlap, err)
	}
	vi, err := a.k.Volume(inter)
	if err != nil {
		return 0, fmt.Errorf("%w: intersection volume: %w", ErrUndefinedOverlap, err)
	}
	vu, err := a.k.Volume(union)
	if err != nil {
		return 0, fmt.Errorf("%w: union volume: %w", ErrUndefinedOverlap, err)
	}
	if !(vu > 0) || math.IsNaN(vi) || math.IsInf(vu, 0) {
		return 0, fmt.Errorf("%w: volumes %v / %v", ErrUndefinedOverlap, vi, vu)
	}
	// Intersection and union are integrated on different grids, so the
	// ratio can land a hair outside [0, 1].
	return math.Min(1, math.Max(0, vi/vu)), nil
}
