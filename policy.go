package resolver

import "sort"

// Policy orders candidates for a name from most- to least-preferred,
// the way the teacher's unselectedComparator cascades multiple tie-
// break criteria into one total order (spec.md §4.8's decision
// heuristic, fed by Policy rather than hard-coded into the solver).
type Policy struct {
	pool *Pool
	req  Request
}

// NewPolicy builds a Policy over pool and req.
func NewPolicy(pool *Pool, req Request) *Policy {
	return &Policy{pool: pool, req: req}
}

// Order returns ids sorted most-preferred-first, per spec.md §4.8:
//  1. a Fixed candidate for this name always wins outright.
//  2. a preferred-locked candidate (see DESIGN.md decision #2) ranks next.
//  3. stability: PreferStable pulls stable-or-higher ahead of dev/alpha/
//     beta/rc regardless of version number; otherwise stability order
//     follows naturally from version comparison.
//  4. abandoned candidates are downranked, never excluded (spec.md §4
//     supplemented feature).
//  5. PreferLowest reverses the default highest-first version order.
//  6. ties break on version order, then candidate id, for determinism.
func (p *Policy) Order(name string, ids []PackageId) []PackageId {
	out := make([]PackageId, len(ids))
	copy(out, ids)

	fixed, hasFixed := p.req.IsFixed(name)
	locked, hasLocked := p.req.IsPreferredLocked(name)

	rank := func(id PackageId) int {
		pkg := p.pool.Package(id)
		switch {
		case hasFixed && pkg.version.Equal(fixed.version):
			return 0
		case hasLocked && pkg.version.Equal(locked.version):
			return 1
		default:
			return 2
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rank(out[i]), rank(out[j])
		if ri != rj {
			return ri < rj
		}

		pi, pj := p.pool.Package(out[i]), p.pool.Package(out[j])

		if p.req.PreferStable {
			si, sj := pi.version.Stability(), pj.version.Stability()
			if si != sj {
				return si > sj
			}
		}

		if pi.abandoned != pj.abandoned {
			return !pi.abandoned
		}

		if !pi.version.Equal(pj.version) {
			less := pi.version.Less(pj.version)
			if p.req.PreferLowest {
				return less
			}
			return !less
		}

		return out[i] < out[j]
	})

	return out
}

// BestFirst is a convenience for the solver's decision-making loop: it
// returns the single most-preferred id from ids, and false if ids is
// empty.
func (p *Policy) BestFirst(name string, ids []PackageId) (PackageId, bool) {
	ordered := p.Order(name, ids)
	if len(ordered) == 0 {
		return 0, false
	}
	return ordered[0], true
}
