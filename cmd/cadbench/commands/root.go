package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/chazu/cadbench/pkg/config"
	"github.com/chazu/cadbench/pkg/engine"
	"github.com/chazu/cadbench/pkg/export"
	"github.com/chazu/cadbench/pkg/kernel/manifold"
	"github.com/chazu/cadbench/pkg/kernel/sdfx"
	"github.com/chazu/cadbench/pkg/logging"
	"github.com/chazu/cadbench/pkg/metrics"
)

// app carries state shared by all subcommands of one invocation.
type app struct {
	cfgPath   string
	logLevel  string
	logFormat string

	cfg config.Config
	log *slog.Logger
	out io.Writer
}

// Execute runs the CLI.
func Execute(ctx context.Context) error {
	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "error:", err)
		return err
	}
	return nil
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "cadbench",
		Short:         "Evaluate generated CAD scripts against ground truth",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.out = cmd.OutOrStdout()
			cfg, err := config.Load(a.cfgPath)
			if err != nil {
				return err
			}
			if a.logLevel != "" {
				cfg.Log.Level = a.logLevel
			}
			if a.logFormat != "" {
				cfg.Log.Format = a.logFormat
			}
			logger, err := logging.New(logging.Config{
				Level:  cfg.Log.Level,
				Format: logging.Format(cfg.Log.Format),
				Output: cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logger
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "config file (default: built-in defaults)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format: text or json")

	root.AddCommand(
		generateCmd(a),
		scoreCmd(a),
		alignCmd(a),
		evalCmd(a),
		configCmd(a),
	)
	return root
}

// kernel returns the configured geometry backend.
func (a *app) kernel() (export.Kernel, error) {
	if a.cfg.KernelBackend == config.BackendManifold {
		return manifold.New()
	}
	return sdfx.NewWithOptions(a.cfg.Kernel), nil
}

func (a *app) engine() *engine.Engine {
	return engine.NewEngine(engine.WithTimeout(a.cfg.EvalTimeout), engine.WithLogger(a.log))
}

// writeMetrics writes rec to the configured metrics file, if any.
func (a *app) writeMetrics(rec *metrics.Recorder) {
	if a.cfg.MetricsFile == "" {
		return
	}
	if err := rec.WriteTextfile(a.cfg.MetricsFile); err != nil {
		a.log.Error("failed to write metrics", "error", err)
	}
}
