package resolver

// RuleGenerator translates a Pool and Request into the CNF clauses the
// Solver works over (spec.md §4.6): one Fixed unit clause per candidate
// of a pinned name (positive for the pinned version, negative for the
// rest), one RootRequire clause per root requirement listing its allowed
// candidates, one PackageRequires clause per dependency edge an allowed
// candidate declares, one binary PackageConflict clause per declared
// conflict pair (plus, where provably exhaustive, one n-ary
// MultiConflict clause), and one binary PackageSameName clause per pair
// of same-named candidates enforcing "at most one installed version of
// any given package".
type RuleGenerator struct {
	pool *Pool
	req  Request
}

// NewRuleGenerator builds a RuleGenerator over pool and req.
func NewRuleGenerator(pool *Pool, req Request) *RuleGenerator {
	return &RuleGenerator{pool: pool, req: req}
}

// Generate produces the full initial RuleSet. It never mutates pool or
// req; the Solver adds further (learned) rules to the returned RuleSet
// as it runs.
func (g *RuleGenerator) Generate() *RuleSet {
	rs := NewRuleSet()

	g.genFixedRules(rs)
	g.genSameNameRules(rs)
	g.genRootRequireRules(rs)

	visited := make(map[PackageId]bool)
	var queue []PackageId
	for id := 0; id < g.pool.Len(); id++ {
		queue = append(queue, PackageId(id))
	}
	for _, id := range queue {
		if visited[id] {
			continue
		}
		visited[id] = true
		g.genPackageRequiresRules(rs, id)
		g.genPackageConflictRules(rs, id)
	}

	g.genMultiConflictRules(rs)

	return rs
}

func (g *RuleGenerator) genFixedRules(rs *RuleSet) {
	for _, fixed := range g.req.Fixed {
		ids := g.pool.IdsForName(fixed.name)
		for _, id := range ids {
			lit := NegLiteral(id)
			if g.pool.Package(id).version.Equal(fixed.version) {
				lit = PosLiteral(id)
			}
			rs.Add(newRule(RuleFixed, lit))
		}
	}
}

// genSameNameRules emits, for every name with more than one candidate,
// one binary "not both" clause per pair - this is what keeps the solver
// from selecting two versions of the same package at once.
func (g *RuleGenerator) genSameNameRules(rs *RuleSet) {
	seen := make(map[string]bool)
	for id := 0; id < g.pool.Len(); id++ {
		name := g.pool.Package(PackageId(id)).name
		if seen[name] {
			continue
		}
		seen[name] = true

		ids := g.pool.IdsForName(name)
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				rs.Add(newRule(RulePackageSameName, NegLiteral(ids[i]), NegLiteral(ids[j])))
			}
		}
	}
}

// genRootRequireRules emits one clause per root requirement: at least
// one candidate satisfying the named constraint must be installed.
func (g *RuleGenerator) genRootRequireRules(rs *RuleSet) {
	links := g.req.Require
	if g.req.InstallDev {
		links = append(append([]Link{}, links...), g.req.RequireDev...)
	}
	for _, link := range links {
		ids := g.pool.WhatProvides(link.target, link.constraint)
		lits := make([]Literal, 0, len(ids))
		for _, id := range ids {
			if g.candidateAllowed(id) {
				lits = append(lits, PosLiteral(id))
			}
		}
		rs.Add(newRule(RuleRootRequire, lits...))
	}
}

// genPackageRequiresRules emits, for each require link a candidate
// declares, "not installed OR one of the satisfying candidates is
// installed".
func (g *RuleGenerator) genPackageRequiresRules(rs *RuleSet, from PackageId) {
	pkg := g.pool.Package(from)
	if !g.candidateAllowed(from) {
		return
	}
	for _, link := range pkg.require {
		ids := g.pool.WhatProvides(link.target, link.constraint)
		lits := make([]Literal, 0, len(ids)+1)
		lits = append(lits, NegLiteral(from))
		for _, id := range ids {
			if g.candidateAllowed(id) {
				lits = append(lits, PosLiteral(id))
			}
		}
		rs.Add(newRuleWithReason(RulePackageRequires, from, link, lits...))
	}
}

// genPackageConflictRules emits, for each conflict link a candidate
// declares, one binary "not both" clause per matching candidate.
func (g *RuleGenerator) genPackageConflictRules(rs *RuleSet, from PackageId) {
	pkg := g.pool.Package(from)
	for _, link := range pkg.conflict {
		for _, id := range g.pool.WhatProvides(link.target, link.constraint) {
			if id == from {
				continue
			}
			rs.Add(newRuleWithReason(RulePackageConflict, from, link, NegLiteral(from), NegLiteral(id)))
		}
	}
}

// genMultiConflictRules implements the Open Question decision recorded
// in DESIGN.md: for a replace target whose own candidates plus replacers
// number three or more, and whose every pair is already covered by a
// binary PackageConflict or PackageSameName clause in rs, add one n-ary
// all-negative clause over the whole group ("not all of them
// installed"). The pairwise clauses stay in rs. Where the group isn't
// fully pairwise-covered, no n-ary clause is added.
func (g *RuleGenerator) genMultiConflictRules(rs *RuleSet) {
	groups := make(map[string][]PackageId)
	for id := 0; id < g.pool.Len(); id++ {
		pid := PackageId(id)
		pkg := g.pool.Package(pid)
		for _, l := range pkg.replace {
			groups[l.target] = append(groups[l.target], pid)
		}
	}

	for target, members := range groups {
		base := g.pool.IdsForName(target)
		all := append(append([]PackageId{}, base...), members...)
		if len(all) < 3 {
			continue
		}
		if !g.pairwiseConflictExhaustive(rs, all) {
			continue
		}
		lits := make([]Literal, len(all))
		for i, id := range all {
			lits[i] = NegLiteral(id)
		}
		rs.Add(newRule(RuleMultiConflict, lits...))
	}
}

// pairwiseConflictExhaustive reports whether every distinct pair within
// ids already has a PackageConflict or PackageSameName clause covering
// it, which is the proof obligation the Open Question decision requires
// before collapsing to a genuine n-ary clause.
func (g *RuleGenerator) pairwiseConflictExhaustive(rs *RuleSet, ids []PackageId) bool {
	pairCovered := make(map[[2]PackageId]bool)
	check := func(t RuleType) {
		for _, idx := range rs.ByType(t) {
			r := rs.Rule(idx)
			if len(r.Literals) != 2 {
				continue
			}
			a, b := r.Literals[0].Id(), r.Literals[1].Id()
			if a > b {
				a, b = b, a
			}
			pairCovered[[2]PackageId{a, b}] = true
		}
	}
	check(RulePackageConflict)
	check(RulePackageSameName)

	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := ids[i], ids[j]
			if a > b {
				a, b = b, a
			}
			if !pairCovered[[2]PackageId{a, b}] {
				return false
			}
		}
	}
	return true
}

// candidateAllowed applies stability filtering and abandoned-downranking
// inputs that are purely structural (full preference ordering is
// Policy's job): a candidate below the effective minimum stability for
// its name is never offered to the solver at all.
func (g *RuleGenerator) candidateAllowed(id PackageId) bool {
	pkg := g.pool.Package(id)
	return pkg.version.Stability() >= g.req.MinimumStabilityFor(pkg.name)
}
