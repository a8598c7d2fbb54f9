package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chazu/cadbench/pkg/dataset"
	"github.com/chazu/cadbench/pkg/metrics"
	"github.com/chazu/cadbench/pkg/score"
)

func scoreCmd(a *app) *cobra.Command {
	var (
		model, testSet string
		exportAligned  bool
		workers        int
		caseTimeout    time.Duration
		metricsFile    string
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Align generated parts with ground truth and report mean IoU",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			if f.Changed("export-aligned") {
				a.cfg.ExportAligned = exportAligned
			}
			if f.Changed("workers") {
				a.cfg.Workers = workers
			}
			if f.Changed("case-timeout") {
				a.cfg.CaseTimeout = caseTimeout
			}
			if f.Changed("metrics-file") {
				a.cfg.MetricsFile = metricsFile
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			ts, err := dataset.ReadTestSet(a.cfg.TestSetPath(testSet))
			if err != nil {
				return err
			}
			layout := a.cfg.Run(model, testSet)

			k, err := a.kernel()
			if err != nil {
				return err
			}
			rec := metrics.New()
			d := score.New(k, ts, score.Options{
				Model:          model,
				TestSet:        testSet,
				Layout:         layout,
				GroundTruthDir: a.cfg.GroundTruthDir,
				Workers:        a.cfg.Workers,
				CaseTimeout:    a.cfg.CaseTimeout,
				EvalTimeout:    a.cfg.EvalTimeout,
				ExportAligned:  a.cfg.ExportAligned,
			}, a.log, rec)

			_, s, err := d.Run(cmd.Context())
			if err != nil {
				return err
			}
			if err := score.WriteSummary(layout.IoUResults(), s); err != nil {
				return err
			}
			a.writeMetrics(rec)

			mean := "undefined"
			if s.Mean != nil {
				mean = fmt.Sprintf("%.4f", *s.Mean)
			}
			fmt.Fprintf(a.out, "Model's average IoU score: %s (%d valid, %d undefined)\n", mean, s.Valid, s.Undefined)
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "model name or path (last segment names the run)")
	cmd.Flags().StringVar(&testSet, "test-set", "", "test set name")
	cmd.Flags().BoolVar(&exportAligned, "export-aligned", false, "write aligned generated parts as STL")
	cmd.Flags().IntVar(&workers, "workers", 0, "worker count (default from config)")
	cmd.Flags().DurationVar(&caseTimeout, "case-timeout", 0, "per-case deadline (default from config)")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this file")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("test-set")
	return cmd
}
