package graph

import (
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Tier 2: geometric validation (errors + warnings)
// ---------------------------------------------------------------------------

// validateGeometry runs all Tier 2 geometric checks.
// Returns errors (blocking) and warnings (advisory) separately.
func validateGeometry(g *DesignGraph) ([]ValidationError, []ValidationWarning) {
	var errs []ValidationError
	var warnings []ValidationWarning

	errs = append(errs, validateDimensions(g)...)
	errs = append(errs, validateTransforms(g)...)
	warnings = append(warnings, validateDegenerateBooleans(g)...)

	return errs, warnings
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// validateDimensions checks that every primitive has positive, finite size.
func validateDimensions(g *DesignGraph) []ValidationError {
	var errs []ValidationError
	bad := func(node *Node, what string, v float64) {
		errs = append(errs, ValidationError{
			NodeID:   node.ID,
			Message:  fmt.Sprintf("%s is %.4f, must be positive", what, v),
			Severity: SeverityError,
		})
	}

	for _, node := range g.Nodes {
		switch d := node.Data.(type) {
		case BoxData:
			if !positive(d.Size.X) {
				bad(node, "box dimension X", d.Size.X)
			}
			if !positive(d.Size.Y) {
				bad(node, "box dimension Y", d.Size.Y)
			}
			if !positive(d.Size.Z) {
				bad(node, "box dimension Z", d.Size.Z)
			}
		case CylinderData:
			if !positive(d.Height) {
				bad(node, "cylinder height", d.Height)
			}
			if !positive(d.Radius) {
				bad(node, "cylinder radius", d.Radius)
			}
		case SphereData:
			if !positive(d.Radius) {
				bad(node, "sphere radius", d.Radius)
			}
		}
	}

	return errs
}

// validateTransforms checks that transform payloads are finite and that
// scale factors are positive.
func validateTransforms(g *DesignGraph) []ValidationError {
	var errs []ValidationError

	for _, node := range g.Nodes {
		td, ok := node.Data.(TransformData)
		if !ok {
			continue
		}
		if td.Translation == nil && td.Rotation == nil && td.Scale == nil {
			errs = append(errs, ValidationError{
				NodeID:   node.ID,
				Message:  "transform sets no translation, rotation or scale",
				Severity: SeverityError,
			})
		}
		if td.Translation != nil && !td.Translation.Finite() {
			errs = append(errs, ValidationError{
				NodeID:   node.ID,
				Message:  fmt.Sprintf("translation %s is not finite", td.Translation),
				Severity: SeverityError,
			})
		}
		if td.Rotation != nil && !td.Rotation.Finite() {
			errs = append(errs, ValidationError{
				NodeID:   node.ID,
				Message:  fmt.Sprintf("rotation %s is not finite", td.Rotation),
				Severity: SeverityError,
			})
		}
		if td.Scale != nil && !positive(*td.Scale) {
			errs = append(errs, ValidationError{
				NodeID:   node.ID,
				Message:  fmt.Sprintf("scale factor is %.4f, must be positive", *td.Scale),
				Severity: SeverityError,
			})
		}
	}

	return errs
}

// validateDegenerateBooleans warns about booleans that list the same child
// twice; a difference with itself is always empty.
func validateDegenerateBooleans(g *DesignGraph) []ValidationWarning {
	var warnings []ValidationWarning

	for _, node := range g.Nodes {
		bd, ok := node.Data.(BooleanData)
		if !ok {
			continue
		}
		seen := make(map[NodeID]bool, len(node.Children))
		for _, c := range node.Children {
			if seen[c] {
				warnings = append(warnings, ValidationWarning{
					NodeID:  node.ID,
					Message: fmt.Sprintf("%s lists child %s more than once", bd.Op, c.Short()),
				})
				break
			}
			seen[c] = true
		}
	}

	return warnings
}
