package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/chazu/cadbench/pkg/build"
	"github.com/chazu/cadbench/pkg/graph"
	"github.com/chazu/cadbench/pkg/kernel"
)

// loadSolid evaluates the script at path and builds its output solid.
func (a *app) loadSolid(ctx context.Context, k kernel.Kernel, path string) (kernel.Solid, *graph.DesignGraph, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	res, err := a.engine().Run(ctx, string(src))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, w := range res.Warnings {
		a.log.Warn("script warning", "path", path, "message", w.Message)
	}
	if len(res.Errors) > 0 {
		for _, e := range res.Errors {
			a.log.Error("script error", "path", path, "error", e.Error())
		}
		return nil, nil, fmt.Errorf("%s: %d script error(s), first: %s", path, len(res.Errors), res.Errors[0].Error())
	}
	s, err := build.Solid(res.Graph, k)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, res.Graph, nil
}
