// Package build walks a design graph and produces solids and triangle
// meshes using a geometry kernel. The builder is read-only and never
// mutates the graph.
package build

import (
	"errors"
	"fmt"

	"github.com/chazu/cadbench/pkg/graph"
	"github.com/chazu/cadbench/pkg/kernel"
	"github.com/go-gl/mathgl/mgl64"
)

// DefaultSegments is used for cylinders that do not set a segment count.
const DefaultSegments = 32

var (
	// ErrNoOutput is returned when the graph exports nothing.
	ErrNoOutput = errors.New("build: graph has no output")
	// ErrMissingNode is returned when a node references an unknown child.
	ErrMissingNode = errors.New("build: missing node")
)

// builder memoises the solid of each node, so nodes shared between
// branches of the graph are built once.
type builder struct {
	g     *graph.DesignGraph
	k     kernel.Kernel
	cache map[graph.NodeID]kernel.Solid
}

func newBuilder(g *graph.DesignGraph, k kernel.Kernel) *builder {
	return &builder{g: g, k: k, cache: make(map[graph.NodeID]kernel.Solid)}
}

// Solid builds the solid exported by the graph.
func Solid(g *graph.DesignGraph, k kernel.Kernel) (kernel.Solid, error) {
	if g == nil || g.OutputNode() == nil {
		return nil, ErrNoOutput
	}
	return newBuilder(g, k).node(g.Output)
}

// Tessellate produces one triangle mesh per graph root. Each mesh is
// named after its root node, falling back to the short ID.
func Tessellate(g *graph.DesignGraph, k kernel.Kernel) ([]*kernel.Mesh, error) {
	if g == nil {
		return nil, nil
	}

	b := newBuilder(g, k)
	var meshes []*kernel.Mesh
	for _, rootID := range g.Roots {
		root := g.Get(rootID)
		if root == nil {
			continue
		}
		s, err := b.node(rootID)
		if err != nil {
			return nil, fmt.Errorf("build: root %s: %w", rootID.Short(), err)
		}
		mesh, err := k.ToMesh(s)
		if err != nil {
			return nil, fmt.Errorf("build: ToMesh failed for node %s: %w", rootID.Short(), err)
		}
		if root.Name != "" {
			mesh.PartName = root.Name
		} else {
			mesh.PartName = rootID.Short()
		}
		meshes = append(meshes, mesh)
	}
	return meshes, nil
}

// node returns the solid for id, building it on first use.
func (b *builder) node(id graph.NodeID) (kernel.Solid, error) {
	if s, ok := b.cache[id]; ok {
		return s, nil
	}
	n := b.g.Get(id)
	if n == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingNode, id.Short())
	}

	var (
		s   kernel.Solid
		err error
	)
	switch n.Kind {
	case graph.NodePrimitive:
		s, err = b.primitive(n)
	case graph.NodeTransform:
		s, err = b.transform(n)
	case graph.NodeBoolean:
		s, err = b.boolean(n)
	default:
		err = fmt.Errorf("unknown node kind: %v", n.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", id.Short(), err)
	}
	b.cache[id] = s
	return s, nil
}

func (b *builder) primitive(n *graph.Node) (kernel.Solid, error) {
	switch data := n.Data.(type) {
	case graph.BoxData:
		return b.k.Box(data.Size.X, data.Size.Y, data.Size.Z), nil
	case graph.CylinderData:
		seg := data.Segments
		if seg <= 0 {
			seg = DefaultSegments
		}
		return b.k.Cylinder(data.Height, data.Radius, seg), nil
	case graph.SphereData:
		return b.k.Sphere(data.Radius), nil
	}
	return nil, fmt.Errorf("unsupported primitive data %T", n.Data)
}

// transform applies scale, then rotation, then translation.
func (b *builder) transform(n *graph.Node) (kernel.Solid, error) {
	td, ok := n.Data.(graph.TransformData)
	if !ok {
		return nil, fmt.Errorf("unexpected transform data %T", n.Data)
	}
	if len(n.Children) != 1 {
		return nil, fmt.Errorf("transform has %d children, want 1", len(n.Children))
	}
	s, err := b.node(n.Children[0])
	if err != nil {
		return nil, err
	}
	if td.Scale != nil {
		if !(*td.Scale > 0) {
			return nil, fmt.Errorf("scale factor %v must be positive", *td.Scale)
		}
		s = b.k.Scale(s, *td.Scale)
	}
	if r := td.Rotation; r != nil && (r.X != 0 || r.Y != 0 || r.Z != 0) {
		s = b.k.Rotate(s, r.X, r.Y, r.Z)
	}
	if t := td.Translation; t != nil && (t.X != 0 || t.Y != 0 || t.Z != 0) {
		s = b.k.Translate(s, mgl64.Vec3{t.X, t.Y, t.Z})
	}
	return s, nil
}

// boolean folds the children left to right, so difference subtracts every
// later child from the first.
func (b *builder) boolean(n *graph.Node) (kernel.Solid, error) {
	bd, ok := n.Data.(graph.BooleanData)
	if !ok {
		return nil, fmt.Errorf("unexpected boolean data %T", n.Data)
	}
	if len(n.Children) < 2 {
		return nil, fmt.Errorf("%s has %d children, want at least 2", bd.Op, len(n.Children))
	}

	var op func(a, b kernel.Solid) (kernel.Solid, error)
	switch bd.Op {
	case graph.OpUnion:
		op = b.k.Union
	case graph.OpDifference:
		op = b.k.Difference
	case graph.OpIntersection:
		op = b.k.Intersection
	default:
		return nil, fmt.Errorf("unknown boolean op %v", bd.Op)
	}

	acc, err := b.node(n.Children[0])
	if err != nil {
		return nil, err
	}
	for _, cid := range n.Children[1:] {
		next, err := b.node(cid)
		if err != nil {
			return nil, err
		}
		if acc, err = op(acc, next); err != nil {
			return nil, fmt.Errorf("%s: %w", bd.Op, err)
		}
	}
	return acc, nil
}
