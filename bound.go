package resolver

// Bound is one edge (lower or upper) of a Constraint's admissible range.
type Bound struct {
	Version   Version
	Inclusive bool
}

func lowerZero() Bound      { return Bound{Version: Zero(), Inclusive: true} }
func upperInfinity() Bound  { return Bound{Version: Infinity(), Inclusive: false} }
func boundEq(v Version) (Bound, Bound) {
	return Bound{Version: v, Inclusive: true}, Bound{Version: v, Inclusive: true}
}

// boundsOverlap reports whether [lo1,hi1] and [lo2,hi2] share any point,
// per spec.md §4.1: "[a,b] ∩ [c,d] non-empty iff a ≤ d and c ≤ b", with
// inclusivity folded into the comparisons at the boundary.
func boundsOverlap(lo1, hi1, lo2, hi2 Bound) bool {
	return boundLE(lo1, hi2) && boundLE(lo2, hi1)
}

// boundLE reports whether lower bound a is compatible with being at or
// below upper bound b (i.e. a version satisfying a can also satisfy b).
func boundLE(a, b Bound) bool {
	c := a.Version.Compare(b.Version)
	switch c {
	case cmpLess:
		return true
	case cmpEqual:
		return a.Inclusive && b.Inclusive
	default:
		return false
	}
}

// maxLowerBound returns the more restrictive (higher) of two lower bounds.
func maxLowerBound(a, b Bound) Bound {
	switch a.Version.Compare(b.Version) {
	case cmpGreater:
		return a
	case cmpLess:
		return b
	default:
		if !a.Inclusive || !b.Inclusive {
			return Bound{Version: a.Version, Inclusive: false}
		}
		return a
	}
}

// minUpperBound returns the more restrictive (lower) of two upper bounds.
func minUpperBound(a, b Bound) Bound {
	switch a.Version.Compare(b.Version) {
	case cmpLess:
		return a
	case cmpGreater:
		return b
	default:
		if !a.Inclusive || !b.Inclusive {
			return Bound{Version: a.Version, Inclusive: false}
		}
		return a
	}
}

func minLowerBound(a, b Bound) Bound {
	switch a.Version.Compare(b.Version) {
	case cmpLess:
		return a
	case cmpGreater:
		return b
	default:
		if a.Inclusive || b.Inclusive {
			return Bound{Version: a.Version, Inclusive: true}
		}
		return a
	}
}

func maxUpperBound(a, b Bound) Bound {
	switch a.Version.Compare(b.Version) {
	case cmpGreater:
		return a
	case cmpLess:
		return b
	default:
		if a.Inclusive || b.Inclusive {
			return Bound{Version: a.Version, Inclusive: true}
		}
		return a
	}
}
