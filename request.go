package resolver

// Request bundles everything the RuleGenerator needs beyond the Pool
// itself: the root project's declared requirements, which packages are
// hard-fixed, which are merely locked (preferred, per the partial-update
// semantics decision in DESIGN.md), and the update/stability knobs that
// shape Policy's candidate ordering (spec.md §4.1/§4.6/§9).
type Request struct {
	// Require and RequireDev are the root project's own dependency
	// declarations, in manifest order.
	Require    []Link
	RequireDev []Link
	InstallDev bool

	// Fixed packages are pinned exactly: the solver may not pick any
	// other version for that name, and must not leave it uninstalled
	// either (spec.md §4.1, "Fixed" candidates).
	Fixed []Package

	// Locked packages are the composer.lock snapshot. A name in
	// UpdateAllowlist is free to move; every other locked package is a
	// strong-but-not-absolute preference (see DESIGN.md Open Question
	// decision #2).
	Locked          []Package
	UpdateAllowlist map[string]bool

	PreferStable bool
	PreferLowest bool

	// MinimumStability is the floor below which a candidate is excluded
	// unless explicitly stability-flagged for that package (spec.md
	// §4.3's minimum-stability notion).
	MinimumStability Stability
	// StabilityFlags overrides MinimumStability per-package, matching
	// composer.json's "@<stability>" suffix and "minimum-stability"
	// per-requirement overrides.
	StabilityFlags map[string]Stability
}

// IsPreferredLocked reports whether name has a locked candidate and is
// not free to move under UpdateAllowlist, returning that Package if so.
func (r Request) IsPreferredLocked(name string) (Package, bool) {
	if r.UpdateAllowlist[name] {
		return Package{}, false
	}
	for _, p := range r.Locked {
		if p.name == name {
			return p, true
		}
	}
	return Package{}, false
}

// IsFixed reports whether name is hard-pinned, returning the fixed
// Package if so.
func (r Request) IsFixed(name string) (Package, bool) {
	for _, p := range r.Fixed {
		if p.name == name {
			return p, true
		}
	}
	return Package{}, false
}

// MinimumStabilityFor returns the effective minimum stability for name,
// honoring per-package overrides.
func (r Request) MinimumStabilityFor(name string) Stability {
	if s, ok := r.StabilityFlags[name]; ok {
		return s
	}
	return r.MinimumStability
}
