package resolver

// Decisions is the CDCL solver's assignment trail (spec.md §4.7/§9): a
// flat, auto-growing array indexed by PackageId holding, for each id,
// either 0 (unassigned), +level+1 (decided/propagated true at that
// decision level) or -(level+1) (false at that level). The sign carries
// truth value; the magnitude minus one carries the decision level, so a
// single int32 slot does the job of what would otherwise be two parallel
// arrays.
type Decisions struct {
	assign []int32
	// trail records literals in assignment order, for conflict analysis
	// and for reverting ("undoing" back to a decision level).
	trail []Literal
	// reasons[id] is the clause index that forced id's assignment via
	// unit propagation, or -1 if id was a decision (branched on) rather
	// than implied.
	reasons []int32
	// levelMarks[i] is the trail length at which decision level i+1
	// began (level 0 needs no mark), enabling O(1) "how many literals were assigned at or
	// above this level" bookkeeping during backjump.
	levelMarks []int
}

const unassigned = 0

// NewDecisions builds a Decisions array sized for n PackageIds.
func NewDecisions(n int) *Decisions {
	return &Decisions{
		assign:  make([]int32, n),
		reasons: make([]int32, n),
	}
}

func (d *Decisions) grow(n int) {
	for len(d.assign) < n {
		d.assign = append(d.assign, unassigned)
		d.reasons = append(d.reasons, -1)
	}
}

// Level returns the current decision level (number of decisions made so
// far, not counting propagated literals).
func (d *Decisions) Level() int { return len(d.levelMarks) }

// PushLevel begins a new decision level, recording the current trail
// length as its start mark.
func (d *Decisions) PushLevel() {
	d.levelMarks = append(d.levelMarks, len(d.trail))
}

// Assign records lit as true at the current level. reason is the clause
// index responsible, or -1 if this is itself a branching decision.
func (d *Decisions) Assign(lit Literal, reason int32) {
	id := lit.Id()
	d.grow(int(id) + 1)

	level := int32(d.Level())
	if lit.Positive() {
		d.assign[id] = level + 1
	} else {
		d.assign[id] = -(level + 1)
	}
	d.reasons[id] = reason
	d.trail = append(d.trail, lit)
}

// Value reports the current assignment of id: +1 true, -1 false, 0
// unassigned.
func (d *Decisions) Value(id PackageId) int {
	if int(id) >= len(d.assign) {
		return unassigned
	}
	v := d.assign[id]
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// LevelOf returns the decision level at which id was assigned, or -1 if
// unassigned.
func (d *Decisions) LevelOf(id PackageId) int {
	if int(id) >= len(d.assign) || d.assign[id] == 0 {
		return -1
	}
	v := d.assign[id]
	if v < 0 {
		v = -v
	}
	return int(v) - 1
}

// ReasonOf returns the clause index that forced id's assignment, or -1
// if it was a decision or id is unassigned.
func (d *Decisions) ReasonOf(id PackageId) int32 {
	if int(id) >= len(d.reasons) || d.assign[id] == unassigned {
		return -1
	}
	return d.reasons[id]
}

// IsDecision reports whether id's current assignment was a branching
// decision rather than an implication.
func (d *Decisions) IsDecision(id PackageId) bool {
	return d.Value(id) != unassigned && d.ReasonOf(id) == -1
}

// Satisfies reports whether lit currently evaluates to true.
func (d *Decisions) Satisfies(lit Literal) bool {
	v := d.Value(lit.Id())
	if lit.Positive() {
		return v == 1
	}
	return v == -1
}

// Conflicts reports whether lit currently evaluates to false.
func (d *Decisions) Conflicts(lit Literal) bool {
	v := d.Value(lit.Id())
	if v == 0 {
		return false
	}
	if lit.Positive() {
		return v == -1
	}
	return v == 1
}

// RevertToLevel undoes every assignment made above level, keeping those
// made at level itself and below, and makes level the current level,
// returning the undone literals in reverse (most-recent-first) trail
// order so the caller can re-enqueue them for decision-making.
func (d *Decisions) RevertToLevel(level int) []Literal {
	if level >= d.Level() {
		return nil
	}
	mark := d.levelMarks[level]
	undone := make([]Literal, 0, len(d.trail)-mark)
	for i := len(d.trail) - 1; i >= mark; i-- {
		lit := d.trail[i]
		d.assign[lit.Id()] = unassigned
		d.reasons[lit.Id()] = -1
		undone = append(undone, lit)
	}
	d.trail = d.trail[:mark]
	d.levelMarks = d.levelMarks[:level]
	return undone
}

// Trail returns the full assignment trail in chronological order.
func (d *Decisions) Trail() []Literal {
	return d.trail
}
