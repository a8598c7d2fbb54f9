package score

import (
	"fmt"
	"os"

	"github.com/samber/lo"
)

// Summary aggregates a run.
type Summary struct {
	RunID   string
	Model   string
	TestSet string
	// Mean is the average IoU over defined cases, nil when none are defined.
	Mean      *float64
	Valid     int
	Undefined int
}

// Summarize averages the defined cases and counts the undefined ones.
func Summarize(results []CaseResult) Summary {
	defined, undefined := lo.FilterReject(results, func(c CaseResult, _ int) bool {
		return c.Defined()
	})
	s := Summary{Valid: len(defined), Undefined: len(undefined)}
	if len(defined) > 0 {
		mean := lo.SumBy(defined, func(c CaseResult) float64 { return *c.IoU }) / float64(len(defined))
		s.Mean = &mean
	}
	return s
}

// WriteSummary writes s in the cad_iou_results.txt format.
func WriteSummary(path string, s Summary) error {
	mean := "None"
	if s.Mean != nil {
		mean = fmt.Sprint(*s.Mean)
	}
	text := fmt.Sprintf("Model: %s\nTest set: %s\nAverage IoU: %s\nNumber of valid cases: %d\nNumber of undefined cases: %d\nRun: %s\n",
		s.Model, s.TestSet, mean, s.Valid, s.Undefined, s.RunID)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("score: %w", err)
	}
	return nil
}
