// Package graph defines the design graph types for cadbench.
// The design graph is an immutable DAG of primitives, transforms and
// boolean combinations that represents one evaluated CAD script.
package graph
