package graph

// ---------------------------------------------------------------------------
// Primitives
// ---------------------------------------------------------------------------

// PrimitiveKind distinguishes between primitive shapes.
type PrimitiveKind int

const (
	PrimBox      PrimitiveKind = iota // rectangular solid
	PrimCylinder                      // cylinder along Z
	PrimSphere
)

func (k PrimitiveKind) String() string {
	switch k {
	case PrimBox:
		return "box"
	case PrimCylinder:
		return "cylinder"
	case PrimSphere:
		return "sphere"
	default:
		return "unknown"
	}
}

// BoxData is an axis-aligned box centred at the origin.
type BoxData struct {
	PrimKind PrimitiveKind `json:"prim_kind"`
	Size     Vec3          `json:"size"`
}

func (BoxData) nodeData() {}

// CylinderData is a cylinder along Z centred at the origin.
type CylinderData struct {
	PrimKind PrimitiveKind `json:"prim_kind"`
	Height   float64       `json:"height"`
	Radius   float64       `json:"radius"`
	Segments int           `json:"segments,omitempty"` // tessellation hint, 0 = kernel default
}

func (CylinderData) nodeData() {}

// SphereData is a sphere centred at the origin.
type SphereData struct {
	PrimKind PrimitiveKind `json:"prim_kind"`
	Radius   float64       `json:"radius"`
}

func (SphereData) nodeData() {}

// ---------------------------------------------------------------------------
// Transform
// ---------------------------------------------------------------------------

// TransformData represents a spatial transformation applied to its single
// child. Set fields apply in the order scale, rotation, translation.
type TransformData struct {
	Translation *Vec3    `json:"translation,omitempty"`
	Rotation    *Vec3    `json:"rotation,omitempty"` // Euler angles in degrees
	Scale       *float64 `json:"scale,omitempty"`    // uniform, about the origin
}

func (TransformData) nodeData() {}

// ---------------------------------------------------------------------------
// Boolean
// ---------------------------------------------------------------------------

// BooleanOp enumerates CSG combinations.
type BooleanOp int

const (
	OpUnion        BooleanOp = iota // all children
	OpDifference                    // first child minus the rest
	OpIntersection                  // common volume of all children
)

func (op BooleanOp) String() string {
	switch op {
	case OpUnion:
		return "union"
	case OpDifference:
		return "difference"
	case OpIntersection:
		return "intersection"
	default:
		return "unknown"
	}
}

// BooleanData combines two or more children.
type BooleanData struct {
	Op BooleanOp `json:"op"`
}

func (BooleanData) nodeData() {}
