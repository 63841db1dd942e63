package resolver

import "fmt"

// Literal is a signed reference to a PackageId: positive means "this
// package is installed", negative means "this package is not
// installed". Rules are disjunctions ("at least one of these literals
// holds") over such literals, per spec.md §4.5.
type Literal int32

// Id returns the PackageId this literal refers to, regardless of sign.
func (l Literal) Id() PackageId {
	if l < 0 {
		return PackageId(-l - 1)
	}
	return PackageId(l - 1)
}

// Positive reports whether this literal asserts presence rather than
// absence.
func (l Literal) Positive() bool { return l > 0 }

// Negate returns the opposite-polarity literal for the same PackageId.
func (l Literal) Negate() Literal { return -l }

func (l Literal) String() string {
	if l.Positive() {
		return fmt.Sprintf("+%d", l.Id())
	}
	return fmt.Sprintf("-%d", l.Id())
}

// PosLiteral builds the "id is installed" literal.
func PosLiteral(id PackageId) Literal { return Literal(id) + 1 }

// NegLiteral builds the "id is not installed" literal.
func NegLiteral(id PackageId) Literal { return -(Literal(id) + 1) }

// RuleType is the provenance tag spec.md §4.5/§4.6 assigns to every
// Rule, both for solver priority ordering and for Problem reporting.
// Lower values sort first in clauseQueue, matching the teacher's general
// "lower number wins ties" convention (see unselectedComparator in
// solver.go); the solver's decision scan follows its own decisionOrder
// instead.
type RuleType uint8

const (
	RuleFixed RuleType = iota
	RuleRootRequire
	RulePackageRequires
	RulePackageConflict
	RulePackageSameName
	RuleMultiConflict
	RuleLearned
)

func (t RuleType) String() string {
	switch t {
	case RuleFixed:
		return "fixed"
	case RuleRootRequire:
		return "root-require"
	case RulePackageRequires:
		return "package-requires"
	case RulePackageConflict:
		return "package-conflict"
	case RulePackageSameName:
		return "package-same-name"
	case RuleMultiConflict:
		return "multi-conflict"
	case RuleLearned:
		return "learned"
	default:
		return "unknown"
	}
}

// Rule is a single CNF clause: a disjunction of Literals, tagged with
// the RuleType that produced it so the Problem Reporter can explain a
// conflict in domain terms instead of bare literal arithmetic.
type Rule struct {
	Literals []Literal
	Type     RuleType
	// reason carries the requiring package id and the Link that gave
	// rise to this rule, when applicable (zero value for Fixed/Learned
	// rules), used by problem.go to render a human-readable cause.
	reason ruleReason
}

type ruleReason struct {
	from PackageId
	link Link
	has  bool
}

func newRule(typ RuleType, lits ...Literal) Rule {
	return Rule{Type: typ, Literals: lits}
}

func newRuleWithReason(typ RuleType, from PackageId, link Link, lits ...Literal) Rule {
	return Rule{Type: typ, Literals: lits, reason: ruleReason{from: from, link: link, has: true}}
}

// IsUnit reports whether this rule has exactly one literal.
func (r Rule) IsUnit() bool { return len(r.Literals) == 1 }
