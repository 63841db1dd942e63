package resolver

import (
	"bytes"
	"fmt"
)

// Problem is one human-readable explanation of a rule the solver could
// not satisfy, templated per RuleType the way the teacher's errors.go
// has one message template per failure shape (spec.md §4.10).
type Problem struct {
	Rule    Rule
	Message string
}

// ProblemSet collects every Problem produced while proving a request
// unsatisfiable; each Problem carries its Rule for callers that want to
// re-render diagnostics themselves.
type ProblemSet struct {
	Problems []Problem
}

// NewProblemSet builds a ProblemSet explaining why the clauses at
// conflictIndices could not all be satisfied.
func NewProblemSet(rs *RuleSet, pool *Pool, conflictIndices []int) *ProblemSet {
	ps := &ProblemSet{}
	for _, idx := range conflictIndices {
		r := rs.Rule(idx)
		ps.Problems = append(ps.Problems, Problem{
			Rule:    r,
			Message: renderProblem(pool, r),
		})
	}
	return ps
}

func renderProblem(pool *Pool, r Rule) string {
	var buf bytes.Buffer
	switch r.Type {
	case RuleFixed:
		buf.WriteString("a fixed package requirement could not be satisfied")
	case RuleRootRequire:
		buf.WriteString("the root requirement could not be satisfied by any candidate")
	case RulePackageRequires:
		if r.reason.has {
			from := pool.Package(r.reason.from)
			fmt.Fprintf(&buf, "%s requires %s (%s) -> no matching candidate could be installed alongside it",
				from.ID(), r.reason.link.target, r.reason.link.constraint)
		} else {
			buf.WriteString("a package dependency could not be satisfied")
		}
	case RulePackageConflict:
		if r.reason.has {
			from := pool.Package(r.reason.from)
			fmt.Fprintf(&buf, "%s conflicts with %s (%s)", from.ID(), r.reason.link.target, r.reason.link.constraint)
		} else {
			buf.WriteString("two packages conflict and cannot be installed together")
		}
	case RulePackageSameName:
		buf.WriteString("only one version of a package may be installed at a time")
	case RuleMultiConflict:
		buf.WriteString("a mutually exclusive group of packages cannot all be installed together")
	case RuleLearned:
		buf.WriteString("the constraints above are jointly unsatisfiable")
	}
	return buf.String()
}

func (ps *ProblemSet) Error() string {
	var buf bytes.Buffer
	buf.WriteString("could not resolve dependencies:\n")
	for i, p := range ps.Problems {
		fmt.Fprintf(&buf, "  %d. %s\n", i+1, p.Message)
	}
	return buf.String()
}

// AbandonedWarning is the one-line, non-fatal notice problem.go surfaces
// (spec.md §4 supplemented feature) when a package that made it into the
// solved set is itself flagged abandoned.
type AbandonedWarning struct {
	Package string
	InFavorOf string
}

func (w AbandonedWarning) String() string {
	if w.InFavorOf == "" {
		return fmt.Sprintf("package %s is abandoned", w.Package)
	}
	return fmt.Sprintf("package %s is abandoned, you should avoid using it. Use %s instead", w.Package, w.InFavorOf)
}

// CollectAbandonedWarnings scans solved for any abandoned package.
func CollectAbandonedWarnings(pool *Pool, solved []PackageId) []AbandonedWarning {
	var out []AbandonedWarning
	for _, id := range solved {
		pkg := pool.Package(id)
		if pkg.abandoned {
			out = append(out, AbandonedWarning{Package: pkg.name, InFavorOf: pkg.abandonedInFavorOf})
		}
	}
	return out
}
