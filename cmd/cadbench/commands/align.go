package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chazu/cadbench/pkg/align"
	"github.com/chazu/cadbench/pkg/export"
)

func alignCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "align SOURCE TARGET",
		Short: "Align one script's solid onto another's and print the IoU",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := a.kernel()
			if err != nil {
				return err
			}
			source, _, err := a.loadSolid(cmd.Context(), k, args[0])
			if err != nil {
				return err
			}
			target, _, err := a.loadSolid(cmd.Context(), k, args[1])
			if err != nil {
				return err
			}

			res, err := align.New(k, a.log).Align(source, target)
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "IoU: %.4f\n", res.IoU)
			fmt.Fprintf(a.out, "Source centroid: %v\n", res.SourceCentroid)
			fmt.Fprintf(a.out, "Target centroid: %v\n", res.TargetCentroid)
			for _, c := range res.Candidates {
				if c.Defined() {
					fmt.Fprintf(a.out, "  candidate %d: %.4f\n", c.Index, c.IoU)
				} else {
					fmt.Fprintf(a.out, "  candidate %d: undefined (%v)\n", c.Index, c.Err)
				}
			}
			if !res.Found() {
				fmt.Fprintln(a.out, "No candidate overlapped the target.")
				return nil
			}
			fmt.Fprintf(a.out, "Best candidate: %d\n", res.Best)
			if out != "" {
				if err := export.SaveSTL(k, res.Aligned, out); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Aligned solid written to %s\n", out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "write the aligned source as STL")
	return cmd
}
