package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chazu/cadbench/pkg/export"
)

func evalCmd(a *app) *cobra.Command {
	var stl string
	cmd := &cobra.Command{
		Use:   "eval SCRIPT",
		Short: "Evaluate a single script and report its solid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := a.kernel()
			if err != nil {
				return err
			}
			s, g, err := a.loadSolid(cmd.Context(), k, args[0])
			if err != nil {
				return err
			}
			vol, err := k.Volume(s)
			if err != nil {
				return err
			}
			c, err := k.CenterOfMass(s)
			if err != nil {
				return err
			}
			lo, hi := s.BoundingBox()

			fmt.Fprintf(a.out, "Nodes: %d\n", g.NodeCount())
			fmt.Fprintf(a.out, "Output: %s\n", g.Output.Short())
			fmt.Fprintf(a.out, "Volume: %.4f %s^3\n", vol, g.Defaults.Units)
			fmt.Fprintf(a.out, "Centroid: (%.4f, %.4f, %.4f)\n", c[0], c[1], c[2])
			fmt.Fprintf(a.out, "Bounds: %v .. %v\n", lo, hi)

			if stl != "" {
				if err := export.SaveSTL(k, s, stl); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "STL written to %s\n", stl)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&stl, "stl", "", "write the solid as STL")
	return cmd
}
