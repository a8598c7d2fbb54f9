package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chazu/cadbench/pkg/dataset"
	"github.com/chazu/cadbench/pkg/generate"
	"github.com/chazu/cadbench/pkg/metrics"
)

func generateCmd(a *app) *cobra.Command {
	var (
		model, testSet  string
		pcReps, workers int
		metricsFile     string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Evaluate model outputs into scripts, STL files and point clouds",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			if f.Changed("pc-reps") {
				a.cfg.PointCloudReps = pcReps
			}
			if f.Changed("workers") {
				a.cfg.Workers = workers
			}
			if f.Changed("metrics-file") {
				a.cfg.MetricsFile = metricsFile
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			layout := a.cfg.Run(model, testSet)
			records, err := dataset.ReadRecords(layout.Merge())
			if err != nil {
				return err
			}

			k, err := a.kernel()
			if err != nil {
				return err
			}
			rec := metrics.New()
			p := generate.New(k, generate.Options{
				Model:            model,
				Layout:           layout,
				Workers:          a.cfg.Workers,
				PointCloudReps:   a.cfg.PointCloudReps,
				PointCloudPoints: a.cfg.PointCloudPoints,
				EvalTimeout:      a.cfg.EvalTimeout,
			}, a.log, rec)

			start := time.Now()
			a.log.Info("generating", "model", model, "test_set", testSet, "records", len(records), "workers", a.cfg.Workers)
			results, err := p.Run(cmd.Context(), records)
			if err != nil {
				return err
			}
			s := generate.Summarize(results)
			if err := generate.WriteResultsCSV(layout.ResultsCSV(), results); err != nil {
				return err
			}
			if err := generate.WriteSummary(layout.GenResults(), s); err != nil {
				return err
			}
			rec.MarkRunFinished(time.Now())
			a.writeMetrics(rec)

			a.log.Info("generation finished", "elapsed", time.Since(start))
			fmt.Fprintf(a.out, "Results:\n")
			fmt.Fprintf(a.out, "  - Valid code: %.2f%%\n", 100*s.CodeRate)
			fmt.Fprintf(a.out, "  - Valid STL: %.2f%%\n", 100*s.STLRate)
			fmt.Fprintf(a.out, "  - Valid point clouds: %.2f%%\n", 100*s.PointCloudRate)
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "model name or path (last segment names the run)")
	cmd.Flags().StringVar(&testSet, "test-set", "", "test set name")
	cmd.Flags().IntVar(&pcReps, "pc-reps", 0, "point cloud repetitions (default from config)")
	cmd.Flags().IntVar(&workers, "workers", 0, "worker count (default from config)")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this file")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("test-set")
	return cmd
}
