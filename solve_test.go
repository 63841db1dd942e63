package resolver

import (
	"context"
	"testing"
)

// solveAll is a small test harness wiring Pool -> RuleGenerator ->
// Solver the way cmd/composer-resolve/main.go does, returning the
// selected package ids on success.
func solveAll(t *testing.T, pool *Pool, req Request) ([]PackageId, *ProblemSet) {
	t.Helper()
	gen := NewRuleGenerator(pool, req)
	rs := gen.Generate()
	policy := NewPolicy(pool, req)
	s := NewSolver(pool, policy, rs, SolveParameters{})

	dec, problems, err := s.Solve(context.Background())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if problems != nil {
		return nil, problems
	}

	var solved []PackageId
	for id := 0; id < pool.Len(); id++ {
		if dec.Value(PackageId(id)) == 1 {
			solved = append(solved, PackageId(id))
		}
	}
	return solved, nil
}

func containsName(t *testing.T, pool *Pool, ids []PackageId, name, version string) bool {
	t.Helper()
	for _, id := range ids {
		p := pool.Package(id)
		if p.name == name && p.version.Equal(mustVersion(t, version)) {
			return true
		}
	}
	return false
}

func TestSolveSimpleChain(t *testing.T) {
	a := newPkg(t, "vendor/a", "1.0.0", PackageOptions{
		Require: []Link{NewLink(LinkRequire, "vendor/b", mustConstraint(t, "^1.0"))},
	})
	b1 := newPkg(t, "vendor/b", "1.0.0", PackageOptions{})
	b2 := newPkg(t, "vendor/b", "2.0.0", PackageOptions{})

	pool := NewPool([]Package{a, b1, b2})
	req := Request{
		Require:          []Link{NewLink(LinkRequire, "vendor/a", mustConstraint(t, "^1.0"))},
		MinimumStability: StabilityStable,
	}

	solved, problems := solveAll(t, pool, req)
	if problems != nil {
		t.Fatalf("expected a solution, got problems: %v", problems.Error())
	}
	if !containsName(t, pool, solved, "vendor/a", "1.0.0") {
		t.Errorf("expected vendor/a 1.0.0 in solution")
	}
	if !containsName(t, pool, solved, "vendor/b", "1.0.0") {
		t.Errorf("expected vendor/b 1.0.0 (satisfying ^1.0) in solution, not 2.0.0")
	}
}

func TestSolveConflictIsUnsatisfiable(t *testing.T) {
	a := newPkg(t, "vendor/a", "1.0.0", PackageOptions{
		Require: []Link{
			NewLink(LinkRequire, "vendor/b", MatchAll()),
			NewLink(LinkRequire, "vendor/c", MatchAll()),
		},
	})
	b := newPkg(t, "vendor/b", "1.0.0", PackageOptions{
		Conflict: []Link{NewLink(LinkConflict, "vendor/c", MatchAll())},
	})
	c := newPkg(t, "vendor/c", "1.0.0", PackageOptions{})

	pool := NewPool([]Package{a, b, c})
	req := Request{
		Require:          []Link{NewLink(LinkRequire, "vendor/a", MatchAll())},
		MinimumStability: StabilityStable,
	}

	_, problems := solveAll(t, pool, req)
	if problems == nil {
		t.Fatalf("expected conflicting requirements to be unsatisfiable")
	}
}

func TestSolveSameNameExclusivity(t *testing.T) {
	a1 := newPkg(t, "vendor/a", "1.0.0", PackageOptions{})
	a2 := newPkg(t, "vendor/a", "2.0.0", PackageOptions{})

	pool := NewPool([]Package{a1, a2})
	req := Request{
		Require:          []Link{NewLink(LinkRequire, "vendor/a", MatchAll())},
		MinimumStability: StabilityStable,
		PreferLowest:     true,
	}

	solved, problems := solveAll(t, pool, req)
	if problems != nil {
		t.Fatalf("expected a solution, got problems: %v", problems.Error())
	}
	if len(solved) != 1 {
		t.Fatalf("expected exactly one version of vendor/a installed, got %d", len(solved))
	}
	if !containsName(t, pool, solved, "vendor/a", "1.0.0") {
		t.Errorf("PreferLowest should select 1.0.0, got a different version")
	}
}

func mustConstraint(t *testing.T, raw string) Constraint {
	t.Helper()
	c, err := ParseConstraint(raw)
	if err != nil {
		t.Fatalf("ParseConstraint(%q): %v", raw, err)
	}
	return c
}
