package resolver

import (
	"sort"

	nuts "github.com/jmank88/nuts"
)

// RuleSet stores every Rule the RuleGenerator produces (and every clause
// the Solver later learns), deduplicated by literal content and indexed
// by RuleType for the solver's decision scan and the generator's
// conflict bookkeeping (spec.md §4.6).
type RuleSet struct {
	rules   []Rule
	byType  map[RuleType][]int
	dedup   map[string]int
}

// NewRuleSet builds an empty RuleSet.
func NewRuleSet() *RuleSet {
	return &RuleSet{
		byType: make(map[RuleType][]int),
		dedup:  make(map[string]int),
	}
}

// Add inserts r unless an existing rule has the exact same literal set
// (irrespective of order), in which case it returns the existing rule's
// index and false. The de-dup key is built with jmank88/nuts's sortable
// byte-key encoder: each literal's zigzag-mapped unsigned value is
// appended as a fixed-width, lexically-sortable byte run, so sorting the
// literal set first and concatenating its keys gives a canonical,
// content-addressed byte string to use as a map key, rather than relying
// on fmt.Sprintf or a second hash layer.
func (rs *RuleSet) Add(r Rule) (int, bool) {
	key := string(canonicalLiteralKey(r.Literals))
	if idx, ok := rs.dedup[key]; ok {
		return idx, false
	}

	idx := len(rs.rules)
	rs.rules = append(rs.rules, r)
	rs.dedup[key] = idx
	rs.byType[r.Type] = append(rs.byType[r.Type], idx)
	return idx, true
}

// canonicalLiteralKey builds a sortable byte key uniquely identifying a
// literal multiset, regardless of the order literals were supplied in.
func canonicalLiteralKey(lits []Literal) []byte {
	sorted := make([]int32, len(lits))
	for i, l := range lits {
		sorted[i] = int32(l)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	const maxMagnitude = uint64(1) << 33 // headroom past int32 range, zigzag-encoded
	out := make([]byte, 0, len(sorted)*nuts.KeyLen(maxMagnitude))
	for _, v := range sorted {
		zz := zigzagEncode(v)
		k := make(nuts.Key, nuts.KeyLen(maxMagnitude))
		k.Put(zz)
		out = append(out, k...)
	}
	return out
}

// zigzagEncode maps a signed literal one-to-one onto an unsigned value
// (0, -1, 1, -2, ... become 0, 1, 2, 3, ...), since nuts.Key is defined
// over uint64. The mapping does not preserve sort order.
func zigzagEncode(v int32) uint64 {
	return uint64(uint32((v << 1) ^ (v >> 31)))
}

// Len returns the total number of stored rules.
func (rs *RuleSet) Len() int { return len(rs.rules) }

// Rule returns the rule at idx.
func (rs *RuleSet) Rule(idx int) Rule { return rs.rules[idx] }

// ByType returns the indices of every rule of the given type, in
// insertion order.
func (rs *RuleSet) ByType(t RuleType) []int { return rs.byType[t] }

// All returns every rule, in insertion order.
func (rs *RuleSet) All() []Rule { return rs.rules }
