package generate

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/samber/lo"
)

// Summary holds the validity rates of a run.
type Summary struct {
	Total          int
	CodeRate       float64
	STLRate        float64
	PointCloudRate float64
}

// Summarize computes validity rates. An empty run has all rates zero.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	if s.Total == 0 {
		return s
	}
	rate := func(pred func(Result) bool) float64 {
		return float64(lo.CountBy(results, pred)) / float64(s.Total)
	}
	s.CodeRate = rate(func(r Result) bool { return r.ValidCode })
	s.STLRate = rate(func(r Result) bool { return r.ValidSTL })
	s.PointCloudRate = rate(func(r Result) bool { return r.ValidPointCloud })
	return s
}

// WriteSummary writes the rates in the cad_gen_results.txt format.
func WriteSummary(path string, s Summary) error {
	text := fmt.Sprintf("Valid code: %v\nValid stl: %v\nValid point cloud: %v\n",
		s.CodeRate, s.STLRate, s.PointCloudRate)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	return nil
}

// WriteResultsCSV writes one row per result.
func WriteResultsCSV(path string, results []Result) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("generate: close %s: %w", path, cerr)
		}
	}()

	w := csv.NewWriter(f)
	rows := [][]string{{"q_ids", "model_valid_code", "model_valid_stl", "model_valid_point_clouds", "error"}}
	for _, r := range results {
		msg := ""
		if r.Err != nil {
			msg = r.Err.Error()
		}
		rows = append(rows, []string{
			r.ID,
			strconv.FormatBool(r.ValidCode),
			strconv.FormatBool(r.ValidSTL),
			strconv.FormatBool(r.ValidPointCloud),
			msg,
		})
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	return nil
}
