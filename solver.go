package resolver

import (
	"container/heap"
	"context"
	"log"
)

// SolveParameters bundles the tunables the teacher's own SolveParameters
// carries (spec.md §4.8): a trace switch plus logger for verbose solver
// tracing, matching the gps package's own Trace/TraceLogger fields.
type SolveParameters struct {
	Trace       bool
	TraceLogger *log.Logger
}

// Cancelled is returned when the solver's context is cancelled
// mid-search (spec.md §5/§7). It carries no extra data - the caller
// already has the ctx.Err() that triggered it.
type Cancelled struct{}

func (Cancelled) Error() string { return "solve cancelled" }

// clauseQueue is a container/heap priority queue over clause indices,
// ordered by (RuleType, index), shaped after the teacher's unselected-
// identifier heap in solver.go. The solver initializes one (s.open) but
// nothing is pushed to it: propagation walks the trail, and pickDecision
// scans clauses in decisionOrder.
type clauseQueue struct {
	rs    *RuleSet
	items []int32
}

func (q *clauseQueue) Len() int { return len(q.items) }
func (q *clauseQueue) Less(i, j int) bool {
	ri, rj := q.rs.Rule(int(q.items[i])), q.rs.Rule(int(q.items[j]))
	if ri.Type != rj.Type {
		return ri.Type < rj.Type
	}
	return q.items[i] < q.items[j]
}
func (q *clauseQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }
func (q *clauseQueue) Push(x interface{}) {
	q.items = append(q.items, x.(int32))
}
func (q *clauseQueue) Pop() interface{} {
	n := len(q.items)
	v := q.items[n-1]
	q.items = q.items[:n-1]
	return v
}

// solver is the CDCL engine: two-watched-literal unit propagation, first-
// unique-implication-point conflict analysis, non-chronological backjump
// and clause learning (spec.md §4.7/§4.8), structured after the
// teacher's own *solver type - a struct holding the problem state plus a
// container/heap priority queue of work, with traceXxx hook methods
// gating all diagnostic output behind the Trace flag.
type solver struct {
	pool   *Pool
	policy *Policy
	rs     *RuleSet
	dec    *Decisions

	watch map[Literal][]int32
	open  *clauseQueue

	params SolveParameters

	propSteps uint64
}

// NewSolver builds a solver over an already-generated RuleSet.
func NewSolver(pool *Pool, policy *Policy, rs *RuleSet, params SolveParameters) *solver {
	s := &solver{
		pool:   pool,
		policy: policy,
		rs:     rs,
		dec:    NewDecisions(pool.Len()),
		watch:  make(map[Literal][]int32),
		params: params,
	}
	s.open = &clauseQueue{rs: rs}
	heap.Init(s.open)
	return s
}

// Solve runs the search to completion, returning the final Decisions on
// success. On unsolvability it returns a ProblemSet built from the
// conflicting clauses (spec.md §4.10). Cooperative cancellation is
// polled once per decision and once per 1024 propagation steps, per
// spec.md §5.
func (s *solver) Solve(ctx context.Context) (*Decisions, *ProblemSet, error) {
	s.initWatches()

	// An empty clause, or a unit clause that a contradicting unit clause
	// overwrote during initWatches, cannot be satisfied.
	for i, r := range s.rs.All() {
		if len(r.Literals) == 0 || (len(r.Literals) == 1 && !s.dec.Satisfies(r.Literals[0])) {
			return nil, s.buildProblemSet(i), nil
		}
	}

	if conflict := s.propagate(ctx); conflict >= 0 {
		return nil, s.buildProblemSet(conflict), nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil, nil, Cancelled{}
		default:
		}

		lit, ok := s.pickDecision()
		if !ok {
			s.traceFinish()
			return s.dec, nil, nil
		}

		s.traceDecide(lit)
		s.dec.PushLevel()
		s.dec.Assign(lit, -1)

		for {
			conflict := s.propagate(ctx)
			if conflict < 0 {
				break
			}

			s.traceConflict(conflict)
			learned, backjumpLevel, assertingLit, ok := s.analyzeConflict(conflict)
			if !ok {
				return nil, s.buildProblemSet(conflict), nil
			}

			idx, isNew := s.rs.Add(learned)
			if isNew {
				s.watchClause(int32(idx))
			}

			s.dec.RevertToLevel(backjumpLevel)
			if len(learned.Literals) == 1 {
				s.dec.Assign(assertingLit, int32(idx))
			} else {
				s.dec.Assign(assertingLit, int32(idx))
			}
		}
	}
}

// initWatches sets up the two-watched-literal index for every clause
// currently in the RuleSet, and immediately enqueues true unit clauses
// as level-0 forced assignments.
func (s *solver) initWatches() {
	for i := range s.rs.All() {
		s.watchClause(int32(i))
	}
}

// watchClause registers clause idx's watch literals. A unit clause (one
// literal) has no second watch - it's asserted directly at level 0 if
// not already satisfied.
func (s *solver) watchClause(idx int32) {
	r := s.rs.Rule(int(idx))
	if len(r.Literals) == 0 {
		return
	}
	if len(r.Literals) == 1 {
		if !s.dec.Satisfies(r.Literals[0]) {
			if s.dec.Level() == 0 {
				s.dec.Assign(r.Literals[0], idx)
			}
		}
		return
	}
	s.watch[r.Literals[0]] = append(s.watch[r.Literals[0]], idx)
	s.watch[r.Literals[1]] = append(s.watch[r.Literals[1]], idx)
}

// propagate performs unit propagation to fixpoint, returning the index
// of a falsified clause on conflict, or -1 if propagation reached a
// fixpoint cleanly. It also doubles as the cancellation poll point every
// 1024 steps, per spec.md §5.
func (s *solver) propagate(ctx context.Context) int {
	head := 0
	for head < len(s.dec.Trail()) {
		lit := s.dec.Trail()[head]
		head++

		s.propSteps++
		if s.propSteps%1024 == 0 {
			select {
			case <-ctx.Done():
				return -1
			default:
			}
		}

		falsified := lit.Negate()
		watchers := s.watch[falsified]
		still := watchers[:0]
		for wi := 0; wi < len(watchers); wi++ {
			cidx := watchers[wi]
			if conflictIdx := s.propagateClause(cidx, falsified, &still); conflictIdx {
				still = append(still, watchers[wi+1:]...)
				s.watch[falsified] = still
				return int(cidx)
			}
		}
		s.watch[falsified] = still
	}
	return -1
}

// propagateClause re-checks clause cidx after falsified just became
// false. It returns true on conflict (appending cidx to *still so the
// caller's watch-list rebuild stays consistent up to the point of
// failure); otherwise it either finds a new literal to watch (moving
// cidx off falsified's list) or, if the clause is now unit, assigns the
// remaining literal and keeps watching falsified.
func (s *solver) propagateClause(cidx int32, falsified Literal, still *[]int32) bool {
	r := s.rs.Rule(int(cidx))
	lits := r.Literals

	if lits[0] == falsified {
		lits[0], lits[1] = lits[1], lits[0]
	}
	if s.dec.Satisfies(lits[0]) {
		*still = append(*still, cidx)
		return false
	}

	for k := 2; k < len(lits); k++ {
		if !s.dec.Conflicts(lits[k]) {
			lits[1], lits[k] = lits[k], lits[1]
			s.watch[lits[1]] = append(s.watch[lits[1]], cidx)
			return false
		}
	}

	*still = append(*still, cidx)
	if s.dec.Conflicts(lits[0]) {
		return true
	}
	s.dec.Assign(lits[0], cidx)
	return false
}

// decisionOrder is the RuleType scan order pickDecision uses: clauses
// that carry a positive literal (a candidate to select) are considered
// before pure-exclusion clauses like PackageSameName/PackageConflict, so
// Policy's preference ordering actually drives which candidate gets
// picked instead of the solver stumbling into an arbitrary exclusion
// decision first.
var decisionOrder = []RuleType{
	RuleRootRequire,
	RulePackageRequires,
	RuleLearned,
	RuleFixed,
	RulePackageSameName,
	RulePackageConflict,
	RuleMultiConflict,
}

// pickDecision chooses the next literal to branch on: the first
// unsatisfied clause in decisionOrder priority, with Policy choosing the
// most preferred unassigned positive candidate among its literals.
func (s *solver) pickDecision() (Literal, bool) {
	for _, t := range decisionOrder {
		for _, idx := range s.rs.ByType(t) {
			r := s.rs.Rule(idx)
			if s.clauseSatisfied(r) {
				continue
			}
			lit, ok := s.bestUnassignedLiteral(r)
			if ok {
				return lit, true
			}
		}
	}
	return 0, false
}

func (s *solver) clauseSatisfied(r Rule) bool {
	for _, l := range r.Literals {
		if s.dec.Satisfies(l) {
			return true
		}
	}
	return false
}

func (s *solver) bestUnassignedLiteral(r Rule) (Literal, bool) {
	var candidates []PackageId
	byID := make(map[PackageId]Literal)
	for _, l := range r.Literals {
		if s.dec.Value(l.Id()) != unassigned {
			continue
		}
		if l.Positive() {
			candidates = append(candidates, l.Id())
			byID[l.Id()] = l
		}
	}
	if len(candidates) == 0 {
		for _, l := range r.Literals {
			if s.dec.Value(l.Id()) == unassigned {
				return l, true
			}
		}
		return 0, false
	}

	name := s.pool.Package(candidates[0]).name
	best, ok := s.policy.BestFirst(name, candidates)
	if !ok {
		return 0, false
	}
	return byID[best], true
}

// analyzeConflict implements first-unique-implication-point conflict
// analysis: walk the implication graph backward from the conflicting
// clause, resolving away every literal assigned at the current decision
// level except one (the UIP), producing a learned clause and the level
// to backjump to. ok is false when the conflict clause contains no
// literal above level 0, meaning the formula is unsatisfiable outright.
func (s *solver) analyzeConflict(conflictIdx int) (Rule, int, Literal, bool) {
	seen := make(map[PackageId]bool)
	learned := make([]Literal, 0, 4)
	trail := s.dec.Trail()
	pos := len(trail)
	currentLevel := s.dec.Level()

	counter := 0
	var p Literal
	reasonIdx := int32(conflictIdx)

	for {
		reasonLits := s.rs.Rule(int(reasonIdx)).Literals
		for _, l := range reasonLits {
			if p != 0 && l == p.Negate() {
				continue
			}
			id := l.Id()
			if seen[id] {
				continue
			}
			lvl := s.dec.LevelOf(id)
			if lvl <= 0 {
				if lvl == 0 {
					learned = append(learned, l.Negate())
				}
				continue
			}
			seen[id] = true
			if lvl == currentLevel {
				counter++
			} else {
				learned = append(learned, l.Negate())
			}
		}

		for pos > 0 {
			pos--
			p = trail[pos]
			if seen[p.Id()] {
				break
			}
		}
		if pos < 0 || !seen[p.Id()] {
			break
		}
		seen[p.Id()] = false
		counter--
		if counter == 0 {
			break
		}
		reasonIdx = s.dec.ReasonOf(p.Id())
		if reasonIdx < 0 {
			break
		}
	}

	assertingLit := p.Negate()
	learned = append(learned, assertingLit)

	if len(learned) == 1 {
		return newRule(RuleLearned, learned...), 0, assertingLit, true
	}

	backjump := 0
	for _, l := range learned {
		if l == assertingLit {
			continue
		}
		lvl := s.dec.LevelOf(l.Id())
		if lvl > backjump {
			backjump = lvl
		}
	}

	if backjump >= currentLevel {
		return Rule{}, 0, 0, false
	}

	dedup := dedupLiterals(learned)
	r := newRule(RuleLearned, dedup...)
	for i, l := range r.Literals {
		if l == assertingLit {
			r.Literals[0], r.Literals[i] = r.Literals[i], r.Literals[0]
			break
		}
	}
	return r, backjump, assertingLit, true
}

func dedupLiterals(lits []Literal) []Literal {
	seen := make(map[Literal]bool, len(lits))
	out := make([]Literal, 0, len(lits))
	for _, l := range lits {
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

func (s *solver) buildProblemSet(conflictIdx int) *ProblemSet {
	return NewProblemSet(s.rs, s.pool, []int{conflictIdx})
}

func (s *solver) traceDecide(lit Literal) {
	if !s.params.Trace || s.params.TraceLogger == nil {
		return
	}
	pkg := s.pool.Package(lit.Id())
	if lit.Positive() {
		s.params.TraceLogger.Printf("decide: select %s", pkg.ID())
	} else {
		s.params.TraceLogger.Printf("decide: exclude %s", pkg.ID())
	}
}

func (s *solver) traceConflict(idx int) {
	if !s.params.Trace || s.params.TraceLogger == nil {
		return
	}
	s.params.TraceLogger.Printf("conflict: clause %d (%s)", idx, s.rs.Rule(idx).Type)
}

func (s *solver) traceFinish() {
	if !s.params.Trace || s.params.TraceLogger == nil {
		return
	}
	s.params.TraceLogger.Printf("solve: complete, %d decisions", s.dec.Level())
}
