package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"strings"
)

// NodeID is a content-addressed identifier: the SHA-256 of whatever defines
// the node. Identical subexpressions in a script collapse to one node.
type NodeID [32]byte

// ZeroID is the unset NodeID.
var ZeroID NodeID

// NewNodeID hashes the given path segments into a NodeID.
func NewNodeID(parts ...string) NodeID {
	return NodeID(sha256.Sum256([]byte(strings.Join(parts, "\x00"))))
}

// HashNode derives the ID of a node from its kind, payload and children.
func HashNode(kind NodeKind, data NodeData, children []NodeID) NodeID {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00", kind)
	writePayload(h, data)
	for _, c := range children {
		h.Write([]byte{0})
		h.Write(c[:])
	}
	var id NodeID
	copy(id[:], h.Sum(nil))
	return id
}

// writePayload writes a canonical text form of data. Floats print in
// shortest round-trip form, so equal values always encode identically.
func writePayload(w io.Writer, data NodeData) {
	opt := func(v any) string {
		switch p := v.(type) {
		case *Vec3:
			if p != nil {
				return p.String()
			}
		case *float64:
			if p != nil {
				return fmt.Sprint(*p)
			}
		}
		return "-"
	}
	switch d := data.(type) {
	case nil:
	case BoxData:
		fmt.Fprintf(w, "box:%s", d.Size)
	case CylinderData:
		fmt.Fprintf(w, "cylinder:%v:%v:%d", d.Height, d.Radius, d.Segments)
	case SphereData:
		fmt.Fprintf(w, "sphere:%v", d.Radius)
	case TransformData:
		fmt.Fprintf(w, "transform:%s:%s:%s", opt(d.Translation), opt(d.Rotation), opt(d.Scale))
	case BooleanData:
		fmt.Fprintf(w, "boolean:%s", d.Op)
	default:
		fmt.Fprintf(w, "%T:%+v", d, d)
	}
}

// IsZero reports whether id is unset.
func (id NodeID) IsZero() bool {
	return id == ZeroID
}

// String returns the full hex form.
func (id NodeID) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns the first 6 bytes in hex, for logs and error messages.
func (id NodeID) Short() string {
	return hex.EncodeToString(id[:6])
}

// MarshalText encodes the ID as hex.
func (id NodeID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText decodes a hex ID.
func (id *NodeID) UnmarshalText(b []byte) error {
	n, err := hex.Decode(id[:], b)
	if err != nil {
		return fmt.Errorf("graph: node id: %w", err)
	}
	if n != len(id) {
		return fmt.Errorf("graph: node id has %d bytes, want %d", n, len(id))
	}
	return nil
}

// Vec3 is a 3-component vector in model units.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Scale returns v * k.
func (v Vec3) Scale(k float64) Vec3 {
	return Vec3{v.X * k, v.Y * k, v.Z * k}
}

// Finite reports whether every component is a finite number.
func (v Vec3) Finite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}
