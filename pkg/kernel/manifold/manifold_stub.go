//go:build !manifold

// Package manifold binds the Manifold mesh kernel. Without the "manifold"
// build tag this stub is compiled and New reports ErrUnavailable.
package manifold

import "github.com/chazu/cadbench/pkg/export"

// New always fails in builds without the manifold tag.
func New() (export.Kernel, error) {
	return nil, ErrUnavailable
}
